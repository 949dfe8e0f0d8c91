package database

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/driftwatch/driftwatch/internal/models"
	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var DB *gorm.DB

// Initialize sets up the database connection and runs migrations
func Initialize() error {
	// Get home directory
	home, err := os.UserHomeDir()
	if err != nil {
		return fmt.Errorf("failed to get home directory: %w", err)
	}

	// Create .driftwatch directory
	dbDir := filepath.Join(home, ".driftwatch")
	if err := os.MkdirAll(dbDir, 0755); err != nil {
		return fmt.Errorf("failed to create database directory: %w", err)
	}

	return Open(filepath.Join(dbDir, "driftwatch.db"))
}

// Open connects to the database at the given path (":memory:" for tests) and
// runs migrations.
func Open(path string) error {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.AutoMigrate(
		&models.PermissionEntry{},
		&models.Baseline{},
		&models.Change{},
		&models.NotificationJob{},
		&models.Recipient{},
		&models.CollectionStatus{},
		&models.ComparisonCache{},
	); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	DB = db
	return nil
}
