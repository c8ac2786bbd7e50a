package database

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/MarcoPoloResearchLab/linkinbio/internal/profile"
	"github.com/MarcoPoloResearchLab/linkinbio/internal/settings"
	sqlite "github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

func openTestDatabase(testContext *testing.T) *gorm.DB {
	testContext.Helper()
	databasePath := filepath.Join(testContext.TempDir(), "migration.db")

	database, err := gorm.Open(sqlite.Open(databasePath), &gorm.Config{})
	if err != nil {
		testContext.Fatalf("failed to open sqlite: %v", err)
	}
	if err := database.AutoMigrate(&settings.Option{}, &migrationRecord{}); err != nil {
		testContext.Fatalf("failed to migrate schema: %v", err)
	}
	return database
}

func TestApplyMigrationsNormalizesLegacyOptions(testContext *testing.T) {
	database := openTestDatabase(testContext)

	legacy := settings.Option{
		Name:             profile.OptionName,
		Value:            datatypes.JSON(`{"profileTitle":"<b>Jane</b>","profileImageSize":9000,"links":{"3":{"title":"B","url":"https://b.example"},"1":{"title":"A","url":"https://a.example"}}}`),
		Revision:         "legacy",
		UpdatedAtSeconds: 1,
	}
	if err := database.Create(&legacy).Error; err != nil {
		testContext.Fatalf("failed to insert legacy options: %v", err)
	}

	if err := applyMigrations(database, zap.NewNop()); err != nil {
		testContext.Fatalf("failed to apply migrations: %v", err)
	}

	store, err := settings.NewGormStore(settings.GormStoreConfig{Database: database, OptionName: profile.OptionName})
	if err != nil {
		testContext.Fatalf("failed to build store: %v", err)
	}
	document, found, err := store.Get(context.Background())
	if err != nil || !found {
		testContext.Fatalf("expected stored document, found=%v err=%v", found, err)
	}
	if _, ok := document["profileTitle"]; ok {
		testContext.Fatalf("expected legacy key to be rewritten, got %#v", document)
	}
	if document["profile_title"] != "Jane" {
		testContext.Fatalf("unexpected title %#v", document["profile_title"])
	}
	normalized := profile.Normalize(document)
	if normalized.ProfileImageSize() != 400 {
		testContext.Fatalf("expected image size to be clamped, got %d", normalized.ProfileImageSize())
	}
	links := normalized.Links()
	if len(links) != 2 || links[0].Title != "A" || links[1].Title != "B" {
		testContext.Fatalf("expected links ordered by index, got %#v", links)
	}
	revision, err := store.Revision(context.Background())
	if err != nil || revision == "legacy" {
		testContext.Fatalf("expected a fresh revision, got %q err=%v", revision, err)
	}

	var record migrationRecord
	if err := database.Where("name = ?", migrationNormalizeLegacyOptions).Take(&record).Error; err != nil {
		testContext.Fatalf("expected migration record to be created: %v", err)
	}
	if record.AppliedAtSeconds == 0 {
		testContext.Fatalf("expected migration timestamp to be set")
	}
}

func TestApplyMigrationsRunsOnce(testContext *testing.T) {
	database := openTestDatabase(testContext)

	if err := applyMigrations(database, zap.NewNop()); err != nil {
		testContext.Fatalf("failed to apply migrations: %v", err)
	}
	legacy := settings.Option{
		Name:             profile.OptionName,
		Value:            datatypes.JSON(`{"profileTitle":"Later"}`),
		Revision:         "later",
		UpdatedAtSeconds: 2,
	}
	if err := database.Create(&legacy).Error; err != nil {
		testContext.Fatalf("failed to insert options: %v", err)
	}
	if err := applyMigrations(database, zap.NewNop()); err != nil {
		testContext.Fatalf("failed to re-apply migrations: %v", err)
	}

	var stored settings.Option
	if err := database.Where("option_name = ?", profile.OptionName).Take(&stored).Error; err != nil {
		testContext.Fatalf("failed to reload options: %v", err)
	}
	if stored.Revision != "later" {
		testContext.Fatalf("expected applied migration to be skipped, got revision %q", stored.Revision)
	}
}

func TestApplyMigrationsSkipsCorruptDocument(testContext *testing.T) {
	database := openTestDatabase(testContext)

	corrupt := settings.Option{
		Name:             profile.OptionName,
		Value:            datatypes.JSON(`"not an object"`),
		Revision:         "corrupt",
		UpdatedAtSeconds: 1,
	}
	if err := database.Create(&corrupt).Error; err != nil {
		testContext.Fatalf("failed to insert options: %v", err)
	}
	if err := applyMigrations(database, zap.NewNop()); err != nil {
		testContext.Fatalf("expected corrupt document to be skipped, got %v", err)
	}
}

func TestOpenSQLiteCreatesSchema(testContext *testing.T) {
	databasePath := filepath.Join(testContext.TempDir(), "open.db")
	database, err := OpenSQLite(databasePath, zap.NewNop())
	if err != nil {
		testContext.Fatalf("failed to open database: %v", err)
	}
	if !database.Migrator().HasTable(&settings.Option{}) {
		testContext.Fatalf("expected options table")
	}
	if !database.Migrator().HasTable(&migrationRecord{}) {
		testContext.Fatalf("expected migrations table")
	}
	if _, err := OpenSQLite("", nil); err == nil {
		testContext.Fatalf("expected error for empty path")
	}
}
