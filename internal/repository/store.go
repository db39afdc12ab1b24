package repository

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"testops/internal/config"
	"testops/internal/models"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var (
	// ErrNotFound is returned when no active row matches.
	ErrNotFound = errors.New("record not found")
	// ErrDuplicate is returned when a write violates a unique index.
	ErrDuplicate = errors.New("duplicate key")
)

// GormConfig returns the gorm settings shared by every database type.
func GormConfig(log *slog.Logger) *gorm.Config {
	cfg := &gorm.Config{
		TranslateError: true,
		NowFunc: func() time.Time {
			return time.Now().UTC().Truncate(time.Microsecond)
		},
	}
	if log != nil {
		cfg.Logger = logger.New(slog.NewLogLogger(log.Handler(), slog.LevelWarn), logger.Config{
			SlowThreshold:             200 * time.Millisecond,
			LogLevel:                  logger.Warn,
			IgnoreRecordNotFoundError: true,
		})
	} else {
		cfg.Logger = logger.Default.LogMode(logger.Silent)
	}
	return cfg
}

// Open connects to the configured database.
func Open(cfg config.DatabaseConfig, log *slog.Logger) (*gorm.DB, error) {
	switch cfg.Type {
	case "sqlite":
		// Ensure data directory exists
		if dir := filepath.Dir(cfg.DSN); dir != "" {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return nil, fmt.Errorf("failed to create data directory: %w", err)
			}
		}

		db, err := gorm.Open(sqlite.Open(sqliteDSN(cfg.DSN)), GormConfig(log))
		if err != nil {
			return nil, fmt.Errorf("failed to open sqlite database: %w", err)
		}
		return db, nil

	case "postgres":
		db, err := gorm.Open(postgres.Open(cfg.DSN), GormConfig(log))
		if err != nil {
			return nil, fmt.Errorf("failed to open postgres database: %w", err)
		}
		return db, nil

	default:
		return nil, fmt.Errorf("unsupported database type: %s", cfg.Type)
	}
}

// sqliteDSN turns on foreign key enforcement, which sqlite leaves off per connection.
func sqliteDSN(dsn string) string {
	if strings.Contains(dsn, "_foreign_keys") || strings.Contains(dsn, "_fk=") {
		return dsn
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + "_foreign_keys=1&_busy_timeout=5000"
}

// partialIndexes keep names unique among active rows only.
var partialIndexes = []string{
	`CREATE UNIQUE INDEX IF NOT EXISTS uq_test_cases_name_active ON test_cases (name) WHERE is_deleted = false`,
	`CREATE UNIQUE INDEX IF NOT EXISTS uq_test_suites_name_active ON test_suites (name) WHERE is_deleted = false`,
	`CREATE INDEX IF NOT EXISTS idx_test_runs_keyset ON test_runs (created_at DESC, id DESC)`,
}

// Migrate creates or updates the schema.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&models.TestSuite{},
		&models.Tag{},
		&models.TestCase{},
		&models.TestCaseStep{},
		&models.TestCaseTag{},
		&models.TestCaseSuite{},
		&models.Attachment{},
		&models.TestRun{},
	); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}
	for _, stmt := range partialIndexes {
		if err := db.Exec(stmt).Error; err != nil {
			return fmt.Errorf("failed to create index: %w", err)
		}
	}
	return nil
}

// Store bundles the repositories bound to one *gorm.DB, either the pool or a transaction.
type Store struct {
	db *gorm.DB

	TestCases   TestCaseRepository
	Suites      TestSuiteRepository
	Tags        TagRepository
	Runs        TestRunRepository
	Attachments AttachmentRepository
}

// NewStore creates a Store on db.
func NewStore(db *gorm.DB) *Store {
	return &Store{
		db:          db,
		TestCases:   NewTestCaseRepository(db),
		Suites:      NewTestSuiteRepository(db),
		Tags:        NewTagRepository(db),
		Runs:        NewTestRunRepository(db),
		Attachments: NewAttachmentRepository(db),
	}
}

// DB returns the underlying handle.
func (s *Store) DB() *gorm.DB {
	return s.db
}

// Transaction runs fn with a Store bound to a single transaction. Returning an
// error (or panicking) rolls back every write made through tx.
func (s *Store) Transaction(ctx context.Context, fn func(tx *Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(NewStore(tx))
	})
}

// MarkDeleted soft-deletes the active row of model with the given id.
func MarkDeleted(ctx context.Context, db *gorm.DB, model interface{}, id uint) error {
	now := db.NowFunc()
	result := db.WithContext(ctx).Model(model).
		Where("id = ? AND is_deleted = ?", id, false).
		Updates(map[string]interface{}{"is_deleted": true, "deleted_at": now})
	if result.Error != nil {
		return fmt.Errorf("mark deleted: %w", translate(result.Error))
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// translate maps driver errors onto the package sentinels.
func translate(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return fmt.Errorf("%w: %v", ErrDuplicate, err)
	}
	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "unique constraint") || strings.Contains(msg, "duplicate key") {
		return fmt.Errorf("%w: %v", ErrDuplicate, err)
	}
	return err
}
