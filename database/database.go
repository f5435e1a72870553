package database

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"psychotest/models"
)

// Settings selects the database driver and DSN.
type Settings struct {
	Driver string
	DSN    string
}

// Init opens the database connection.
// Driver "postgres" uses the DSN as a libpq connection string. Any other driver
// uses SQLite: "memory" or an empty DSN opens a shared in-memory database,
// anything else is treated as a file path.
func Init(settings Settings) (*gorm.DB, error) {
	// GORM logger writes through the standard logger so it follows the log file setup.
	gormLogger := logger.New(
		log.New(log.Writer(), "\r\n", log.LstdFlags),
		logger.Config{
			SlowThreshold:             200 * time.Millisecond,
			LogLevel:                  logger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)
	gormConfig := &gorm.Config{Logger: gormLogger}

	var (
		db  *gorm.DB
		err error
		dsn = settings.DSN
	)
	switch settings.Driver {
	case "postgres":
		log.Println("INFO: [Database] Initializing PostgreSQL database.")
		db, err = gorm.Open(postgres.Open(dsn), gormConfig)
	default:
		if dsn == "memory" || dsn == "" {
			log.Println("INFO: [Database] Initializing in-memory SQLite database (DSN: 'memory' or empty).")
			dsn = "file::memory:?cache=shared"
		} else {
			log.Printf("INFO: [Database] Initializing file-based SQLite database at DSN: '%s'.", dsn)
			if err := ensureDir(filepath.Dir(dsn)); err != nil {
				return nil, err
			}
		}
		db, err = gorm.Open(sqlite.Open(dsn), gormConfig)
	}
	if err != nil {
		log.Printf("ERROR: [Database] Failed to connect to database (driver: '%s'): %v", settings.Driver, err)
		return nil, fmt.Errorf("failed to connect to database (driver: '%s'): %w", settings.Driver, err)
	}

	log.Println("INFO: [Database] Database connection established successfully.")
	return db, nil
}

func ensureDir(dbDir string) error {
	if dbDir == "." || dbDir == "/" {
		return nil
	}
	if _, statErr := os.Stat(dbDir); os.IsNotExist(statErr) {
		log.Printf("INFO: [Database] Database directory '%s' does not exist, attempting to create.", dbDir)
		if mkdirErr := os.MkdirAll(dbDir, 0o755); mkdirErr != nil {
			log.Printf("ERROR: [Database] Failed to create database directory '%s': %v", dbDir, mkdirErr)
			return fmt.Errorf("failed to create database directory '%s': %w", dbDir, mkdirErr)
		}
	}
	return nil
}

// Migrate creates or updates every table the service uses.
func Migrate(db *gorm.DB) error {
	log.Println("INFO: [Database] Running database migrations...")
	if err := db.AutoMigrate(
		&models.User{},
		&models.Test{},
		&models.Question{},
		&models.Attempt{},
		&models.AttemptAnswer{},
	); err != nil {
		return fmt.Errorf("failed to auto-migrate database: %w", err)
	}
	log.Println("INFO: [Database] Database migration completed.")
	return nil
}
