// Package storage opens the gorm database selected by a database URL and keeps
// the schema migrated.
package storage

import (
	"fmt"
	"log/slog"

	"pressroom/internal/config"
	"pressroom/internal/models"

	"github.com/google/uuid"
	"github.com/xo/dburl"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Open parses a database url (see github.com/xo/dburl) and connects to it.
// Supported drivers are sqlite3 and postgres.
func Open(databaseURL string, log *slog.Logger) (*gorm.DB, error) {
	if databaseURL == "" {
		databaseURL = config.DefaultDatabaseURL
	}

	u, err := dburl.Parse(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("could not parse database url: %w", err)
	}

	var dialector gorm.Dialector
	switch u.Driver {
	case "sqlite3":
		dialector = sqlite.Open(u.DSN)
	case "postgres":
		dialector = postgres.Open(u.DSN)
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", u.Driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Warn),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("could not open database: %w", err)
	}

	if log != nil {
		log.Info("database connection established", "driver", u.Driver)
	}
	return db, nil
}

// OpenSQLite opens a sqlite database from a raw DSN, e.g. an in-memory database in tests.
func OpenSQLite(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		return nil, err
	}
	return db, nil
}

// OpenMemory opens a private, migrated in-memory sqlite database.
// A single connection is used so the shared-cache database never sees lock contention.
func OpenMemory() (*gorm.DB, error) {
	db, err := OpenSQLite("file:" + uuid.NewString() + "?mode=memory&cache=shared&_foreign_keys=on")
	if err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)

	if err := Migrate(db); err != nil {
		return nil, err
	}
	return db, nil
}

// Migrate creates or updates every table.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(models.All()...); err != nil {
		return fmt.Errorf("auto-migrate: %w", err)
	}
	return nil
}

func Close(db *gorm.DB) error {
	if db == nil {
		return nil
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
