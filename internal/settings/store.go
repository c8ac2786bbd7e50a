package settings

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	// ErrCorruptDocument indicates that the stored option value is not a JSON object.
	ErrCorruptDocument = errors.New("settings: stored document is not a json object")
	errMissingDatabase = errors.New("settings: database handle is required")
)

// Store is the key-value collaborator holding the settings document.
type Store interface {
	// Get returns the stored document and whether one exists.
	Get(ctx context.Context) (map[string]any, bool, error)
	// Put replaces the stored document as a whole.
	Put(ctx context.Context, document map[string]any) error
}

// GormStoreConfig configures a GormStore.
type GormStoreConfig struct {
	Database   *gorm.DB
	OptionName string
	Clock      func() time.Time
}

// GormStore keeps the document in the options table.
type GormStore struct {
	db         *gorm.DB
	optionName string
	clock      func() time.Time
}

// NewGormStore constructs a GormStore bound to one option name.
func NewGormStore(cfg GormStoreConfig) (*GormStore, error) {
	if cfg.Database == nil {
		return nil, errMissingDatabase
	}
	if cfg.OptionName == "" {
		return nil, errors.New("settings: option name is required")
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	return &GormStore{db: cfg.Database, optionName: cfg.OptionName, clock: clock}, nil
}

// Get loads the stored document. A stored value that is not a JSON object
// is reported as ErrCorruptDocument.
func (s *GormStore) Get(ctx context.Context) (map[string]any, bool, error) {
	var record Option
	err := s.db.WithContext(ctx).Where("option_name = ?", s.optionName).Take(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	document, err := decodeDocument(record.Value)
	if err != nil {
		return nil, true, err
	}
	return document, true, nil
}

// Put upserts the document under a fresh revision.
func (s *GormStore) Put(ctx context.Context, document map[string]any) error {
	encoded, err := json.Marshal(document)
	if err != nil {
		return fmt.Errorf("settings: encode document: %w", err)
	}
	revision, err := uuid.NewV7()
	if err != nil {
		return fmt.Errorf("settings: revision id: %w", err)
	}
	record := Option{
		Name:             s.optionName,
		Value:            datatypes.JSON(encoded),
		Revision:         revision.String(),
		UpdatedAtSeconds: s.clock().UTC().Unix(),
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "option_name"}},
		DoUpdates: clause.AssignmentColumns([]string{"option_value", "revision", "updated_at_s"}),
	}).Create(&record).Error
}

// Revision returns the revision of the stored document, or "" when none exists.
func (s *GormStore) Revision(ctx context.Context) (string, error) {
	var record Option
	err := s.db.WithContext(ctx).Select("revision").Where("option_name = ?", s.optionName).Take(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return record.Revision, nil
}

// MemoryStore keeps the document in process memory. Documents are copied
// through JSON on the way in and out.
type MemoryStore struct {
	mu      sync.RWMutex
	encoded []byte
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Get returns a copy of the stored document.
func (s *MemoryStore) Get(_ context.Context) (map[string]any, bool, error) {
	s.mu.RLock()
	encoded := s.encoded
	s.mu.RUnlock()
	if encoded == nil {
		return nil, false, nil
	}
	document, err := decodeDocument(encoded)
	if err != nil {
		return nil, true, err
	}
	return document, true, nil
}

// Put replaces the stored document.
func (s *MemoryStore) Put(_ context.Context, document map[string]any) error {
	encoded, err := json.Marshal(document)
	if err != nil {
		return fmt.Errorf("settings: encode document: %w", err)
	}
	s.mu.Lock()
	s.encoded = encoded
	s.mu.Unlock()
	return nil
}

func decodeDocument(encoded []byte) (map[string]any, error) {
	decoder := json.NewDecoder(bytes.NewReader(encoded))
	decoder.UseNumber()
	var document map[string]any
	if err := decoder.Decode(&document); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptDocument, err)
	}
	if document == nil {
		document = map[string]any{}
	}
	return document, nil
}
