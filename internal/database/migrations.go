package database

import (
	"context"
	"errors"
	"time"

	"github.com/MarcoPoloResearchLab/linkinbio/internal/profile"
	"github.com/MarcoPoloResearchLab/linkinbio/internal/settings"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const migrationNormalizeLegacyOptions = "2026-10-19_normalize_legacy_options"

type migrationRecord struct {
	Name             string `gorm:"column:name;primaryKey;size:190;not null"`
	AppliedAtSeconds int64  `gorm:"column:applied_at_s;not null"`
}

func (migrationRecord) TableName() string {
	return "db_migrations"
}

type migrationDefinition struct {
	name  string
	apply func(*gorm.DB, *zap.Logger) error
}

func applyMigrations(db *gorm.DB, logger *zap.Logger) error {
	migrations := []migrationDefinition{
		{name: migrationNormalizeLegacyOptions, apply: normalizeLegacyOptions},
	}

	for _, migration := range migrations {
		var record migrationRecord
		err := db.Where("name = ?", migration.name).Take(&record).Error
		if err == nil {
			continue
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		if err := migration.apply(db, logger); err != nil {
			return err
		}
		appliedAt := time.Now().UTC().Unix()
		if err := db.Create(&migrationRecord{Name: migration.name, AppliedAtSeconds: appliedAt}).Error; err != nil {
			return err
		}
		if logger != nil {
			logger.Info("database migration applied", zap.String("migration", migration.name))
		}
	}
	return nil
}

// normalizeLegacyOptions rewrites a stored document in canonical form so that
// documents saved under older key spellings or bounds are upgraded once.
// A corrupt document is left untouched; readers fall back to defaults.
func normalizeLegacyOptions(db *gorm.DB, logger *zap.Logger) error {
	store, err := settings.NewGormStore(settings.GormStoreConfig{Database: db, OptionName: profile.OptionName})
	if err != nil {
		return err
	}
	ctx := context.Background()
	document, found, err := store.Get(ctx)
	if errors.Is(err, settings.ErrCorruptDocument) {
		if logger != nil {
			logger.Warn("skipping corrupt options document", zap.String("option", profile.OptionName))
		}
		return nil
	}
	if err != nil {
		return err
	}
	if !found {
		return nil
	}
	return store.Put(ctx, profile.Normalize(document).Map())
}
