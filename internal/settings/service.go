package settings

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/MarcoPoloResearchLab/linkinbio/internal/metrics"
	"github.com/MarcoPoloResearchLab/linkinbio/internal/pagecache"
	"github.com/MarcoPoloResearchLab/linkinbio/internal/profile"
	"github.com/MarcoPoloResearchLab/linkinbio/internal/render"
	"go.uber.org/zap"
)

var (
	errMissingStore    = errors.New("settings store is required")
	errMissingRenderer = errors.New("page renderer is required")
	noOpLogger         = zap.NewNop()
)

type ServiceError struct {
	code string
	err  error
}

func (e *ServiceError) Error() string {
	if e.err == nil {
		return e.code
	}
	return fmt.Sprintf("%s: %v", e.code, e.err)
}

func (e *ServiceError) Unwrap() error {
	return e.err
}

func (e *ServiceError) Code() string {
	return e.code
}

const (
	opServiceNew  = "settings.service.new"
	opLoad        = "settings.load"
	opSave        = "settings.save"
	opPreview     = "settings.preview"
	opPublicPage  = "settings.public_page"
	publicPageKey = "public:"
)

func newServiceError(operation, reason string, cause error) error {
	code := fmt.Sprintf("%s.%s", operation, reason)
	return &ServiceError{code: code, err: cause}
}

// PageConfig describes the host page that embeds the link page.
type PageConfig struct {
	Title   string
	Content string
}

type ServiceConfig struct {
	Store    Store
	Renderer *render.Renderer
	Cache    *pagecache.Cache
	Metrics  metrics.Recorder
	Page     PageConfig
	Clock    func() time.Time
	Logger   *zap.Logger
}

// Service owns the read, save and preview paths of the settings record.
type Service struct {
	store      Store
	renderer   *render.Renderer
	cache      *pagecache.Cache
	metrics    metrics.Recorder
	page       PageConfig
	clock      func() time.Time
	logger     *zap.Logger
	generation atomic.Uint64
}

// SaveResult reports a persisted record.
type SaveResult struct {
	Settings profile.Settings
	SavedAt  time.Time
}

func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Store == nil {
		return nil, newServiceError(opServiceNew, "missing_store", errMissingStore)
	}
	if cfg.Renderer == nil {
		return nil, newServiceError(opServiceNew, "missing_renderer", errMissingRenderer)
	}

	recorder := cfg.Metrics
	if recorder == nil {
		recorder = metrics.NopRecorder{}
	}

	page := cfg.Page
	if page.Content == "" {
		page.Content = render.Shortcode
	}

	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}

	logger := cfg.Logger
	if logger == nil {
		logger = noOpLogger
	}

	return &Service{
		store:    cfg.Store,
		renderer: cfg.Renderer,
		cache:    cfg.Cache,
		metrics:  recorder,
		page:     page,
		clock:    clock,
		logger:   logger,
	}, nil
}

// Load returns the stored record normalized on read. Missing records and
// corrupt documents both yield the defaults.
func (s *Service) Load(ctx context.Context) (profile.Settings, error) {
	document, found, err := s.store.Get(ctx)
	if err != nil {
		if errors.Is(err, ErrCorruptDocument) {
			s.loggerOrDefault().Warn("stored settings are corrupt, serving defaults",
				zap.String("operation", opLoad),
				zap.Error(err))
			return profile.Default(), nil
		}
		s.logError(opLoad, "store_get_failed", err)
		return profile.Settings{}, newServiceError(opLoad, "store_get_failed", err)
	}
	if !found {
		return profile.Default(), nil
	}
	return profile.Normalize(document), nil
}

// Save normalizes raw and replaces the stored record with the result.
func (s *Service) Save(ctx context.Context, raw map[string]any) (SaveResult, error) {
	settings := profile.Normalize(raw)
	if err := s.store.Put(ctx, settings.Map()); err != nil {
		s.metrics.RecordSave(err)
		s.logError(opSave, "store_put_failed", err)
		return SaveResult{}, newServiceError(opSave, "store_put_failed", err)
	}
	s.invalidate()
	s.metrics.RecordSave(nil)
	return SaveResult{Settings: settings, SavedAt: s.clock().UTC()}, nil
}

// Preview renders the page fragment for an unsaved candidate. The store is
// never touched.
func (s *Service) Preview(raw map[string]any) (string, error) {
	candidate := profile.Normalize(raw)
	started := s.clock()
	fragment, err := s.renderer.Fragment(candidate)
	s.metrics.RecordRender(metrics.RenderPreview, s.clock().Sub(started), err)
	if err != nil {
		s.logError(opPreview, "render_failed", err)
		return "", newServiceError(opPreview, "render_failed", err)
	}
	return fragment, nil
}

// PublicPage returns the rendered public page, served from the page cache
// until the next save.
func (s *Service) PublicPage(ctx context.Context) ([]byte, error) {
	key := publicPageKey + strconv.FormatUint(s.generation.Load(), 10)
	if page, ok := s.cache.Get(key); ok {
		s.metrics.RecordCache(true)
		return page, nil
	}
	s.metrics.RecordCache(false)

	settings, err := s.Load(ctx)
	if err != nil {
		return nil, err
	}

	started := s.clock()
	page, err := s.renderer.HostPage(s.page.Title, s.page.Content, settings)
	s.metrics.RecordRender(metrics.RenderPublic, s.clock().Sub(started), err)
	if err != nil {
		s.logError(opPublicPage, "render_failed", err)
		return nil, newServiceError(opPublicPage, "render_failed", err)
	}

	rendered := []byte(page)
	s.cache.Set(key, rendered)
	return rendered, nil
}

func (s *Service) invalidate() {
	s.generation.Add(1)
	s.cache.Invalidate()
}

func (s *Service) loggerOrDefault() *zap.Logger {
	if s == nil {
		return noOpLogger
	}
	if s.logger == nil {
		return noOpLogger
	}
	return s.logger
}

func (s *Service) logError(operation, reason string, err error, fields ...zap.Field) {
	attrs := []zap.Field{
		zap.String("operation", operation),
		zap.String("reason", reason),
	}
	if err != nil {
		attrs = append(attrs, zap.Error(err))
	}
	attrs = append(attrs, fields...)
	s.loggerOrDefault().Error("settings service error", attrs...)
}
