// Package db holds the gorm models and database bootstrap.
package db

import (
	"fmt"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Open opens the sqlite database at path and migrates the schema.
// Use ":memory:" for tests.
func Open(path string) (*gorm.DB, error) {
	gdb, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open sqlite database %s: %w", path, err)
	}

	if err := gdb.AutoMigrate(&Appointment{}, &TranscriptEntry{}); err != nil {
		return nil, fmt.Errorf("migrate database schema: %w", err)
	}

	return gdb, nil
}
