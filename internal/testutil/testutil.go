// Package testutil opens throwaway in-memory databases for package tests.
package testutil

import (
	"testing"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"hw-inventory/internal/database"
	"hw-inventory/internal/models"
)

// OpenDB returns a migrated in-memory SQLite database private to t.
func OpenDB(t testing.TB) *gorm.DB {
	t.Helper()

	dsn := "file:" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := database.Open("sqlite", dsn, false)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := database.Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

// AuditRows returns every audit row in insertion order.
func AuditRows(t testing.TB, db *gorm.DB) []models.AuditLog {
	t.Helper()
	var rows []models.AuditLog
	if err := db.Order("id asc").Find(&rows).Error; err != nil {
		t.Fatalf("load audit rows: %v", err)
	}
	return rows
}

// EntityRows returns the entity-change rows only.
func EntityRows(t testing.TB, db *gorm.DB) []models.AuditLog {
	t.Helper()
	var rows []models.AuditLog
	if err := db.Where("action IS NOT NULL").Order("id asc").Find(&rows).Error; err != nil {
		t.Fatalf("load entity rows: %v", err)
	}
	return rows
}

func NewHardware(hostname, serial string) *models.Hardware {
	return &models.Hardware{
		Hostname:     hostname,
		SerialNumber: serial,
		Model:        models.ModelNotebook,
		Status:       models.StatusInStock,
		Admin:        "tester",
	}
}
