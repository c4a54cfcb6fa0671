// Package db opens the SQLite database used by the SQL ledger backend.
package db

import (
	"fmt"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Open opens (creating if needed) the database at path and migrates the
// schema. ":memory:" gives a private in-memory database.
func Open(path string) (*gorm.DB, error) {
	gdb, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		PrepareStmt: true,
		Logger:      logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	sqlDB, err := gdb.DB()
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	// a single connection keeps ":memory:" databases shared and serialises writers
	sqlDB.SetMaxOpenConns(1)

	if err := gdb.AutoMigrate(&Transfer{}); err != nil {
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	return gdb, nil
}
