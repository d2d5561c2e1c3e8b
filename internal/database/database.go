package database

import (
	"context"
	"fmt"
	"log"
	"strings"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/mrlokans/libreria/internal/entities"
)

// Counter row is created from whatever visits already exist so that an
// upgraded database starts consistent.
const (
	seedVisitCounterSQL = `INSERT OR IGNORE INTO contador_visitas (id, total) SELECT 1, COUNT(*) FROM visitas`

	visitCounterTriggerSQL = `CREATE TRIGGER IF NOT EXISTS visitas_contador
AFTER INSERT ON visitas
BEGIN
	UPDATE contador_visitas SET total = total + 1 WHERE id = 1;
END`
)

type Database struct {
	DB *gorm.DB
}

// Option customises NewDatabase.
type Option func(*gorm.Config)

// WithLogLevel sets the gorm logger level: silent, error, warn or info.
func WithLogLevel(level string) Option {
	return func(c *gorm.Config) {
		c.Logger = logger.Default.LogMode(parseLogLevel(level))
	}
}

func NewDatabase(dbPath string, opts ...Option) (*Database, error) {
	gormCfg := &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	}
	for _, opt := range opts {
		opt(gormCfg)
	}

	db, err := gorm.Open(sqlite.Open(dsn(dbPath)), gormCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	err = db.AutoMigrate(
		&entities.BookID{},
		&entities.Book{},
		&entities.LinkedBook{},
		&entities.Visit{},
		&entities.VisitCounter{},
	)
	if err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	if err := db.Exec(seedVisitCounterSQL).Error; err != nil {
		return nil, fmt.Errorf("failed to seed visit counter: %w", err)
	}
	if err := db.Exec(visitCounterTriggerSQL).Error; err != nil {
		return nil, fmt.Errorf("failed to install visit counter trigger: %w", err)
	}

	log.Printf("Database initialized successfully at %s", dbPath)

	return &Database{DB: db}, nil
}

// dsn enables WAL and a busy timeout so concurrent writers queue instead of
// failing with "database is locked".
func dsn(dbPath string) string {
	sep := "?"
	if strings.Contains(dbPath, "?") {
		sep = "&"
	}
	return dbPath + sep + "_busy_timeout=5000&_journal_mode=WAL"
}

func parseLogLevel(level string) logger.LogLevel {
	switch strings.ToLower(level) {
	case "silent":
		return logger.Silent
	case "error":
		return logger.Error
	case "info":
		return logger.Info
	default:
		return logger.Warn
	}
}

func (d *Database) Close() error {
	sqlDB, err := d.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Ping checks connectivity of the underlying connection pool.
func (d *Database) Ping(ctx context.Context) error {
	sqlDB, err := d.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// CountBooks returns the number of primary and linked records.
func (d *Database) CountBooks(ctx context.Context) (primary, linked int64, err error) {
	if err = d.DB.WithContext(ctx).Model(&entities.Book{}).Count(&primary).Error; err != nil {
		return 0, 0, &StoreError{Op: "count libros", Err: err}
	}
	if err = d.DB.WithContext(ctx).Model(&entities.LinkedBook{}).Count(&linked).Error; err != nil {
		return 0, 0, &StoreError{Op: "count libros1", Err: err}
	}
	return primary, linked, nil
}

// PayloadReferences returns every on-disk payload path recorded in libros.
func (d *Database) PayloadReferences(ctx context.Context) (map[string]struct{}, error) {
	var paths []string
	err := d.DB.WithContext(ctx).Model(&entities.Book{}).
		Where("archivo IS NOT NULL AND archivo <> ''").
		Pluck("archivo", &paths).Error
	if err != nil {
		return nil, &StoreError{Op: "list payload paths", Err: err}
	}

	refs := make(map[string]struct{}, len(paths))
	for _, p := range paths {
		refs[p] = struct{}{}
	}
	return refs, nil
}
