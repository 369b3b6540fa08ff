package audit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"hw-inventory/internal/database"
	"hw-inventory/internal/models"
)

func TestChangeSet(t *testing.T) {
	history := []database.AttributeHistory{
		{Field: models.Field{Name: "status"}, Old: "IN_STOCK", New: "SHIPPED"},
		{Field: models.Field{Name: "comment"}, Old: "same", New: "same"},
		{Field: models.Field{Name: "password_hash", NoAudit: true}, Old: "a", New: "b"},
		{Field: models.Field{Name: "shipped_at"}, Old: "", New: "2024-05-01T10:00:00Z"},
	}

	got := ChangeSet(history)

	assert.Equal(t, map[string]any{
		"status":     map[string]any{"old": "IN_STOCK", "new": "SHIPPED"},
		"shipped_at": map[string]any{"old": "", "new": "2024-05-01T10:00:00Z"},
	}, got)
}

func TestChangeSet_Empty(t *testing.T) {
	assert.Empty(t, ChangeSet(nil))
	assert.Empty(t, ChangeSet([]database.AttributeHistory{
		{Field: models.Field{Name: "last_ip", NoAudit: true}, Old: "", New: "10.0.0.1"},
	}))
}

func TestSnapshot_SkipsNoAuditFields(t *testing.T) {
	login := time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)
	u := &models.User{
		Username:     "alice",
		Role:         models.RoleAdmin,
		IsActive:     true,
		PasswordHash: "$2a$secret",
		LastLogin:    &login,
		LoginCount:   3,
	}

	snap := Snapshot(u)

	assert.Equal(t, "alice", snap["username"])
	assert.Equal(t, "admin", snap["role"])
	assert.Equal(t, "true", snap["is_active"])
	assert.NotContains(t, snap, "password_hash")
	assert.NotContains(t, snap, "last_login")
	assert.NotContains(t, snap, "login_count")
	assert.NotContains(t, snap, "last_ip")
}

func TestSnapshot_Hardware(t *testing.T) {
	hw := &models.Hardware{
		Hostname:     "nb-1001",
		SerialNumber: "SN-1",
		Model:        models.ModelNotebook,
		Status:       models.StatusInStock,
	}

	snap := Snapshot(hw)

	assert.Equal(t, "nb-1001", snap["hostname"])
	assert.Equal(t, "IN_STOCK", snap["status"])
	assert.Equal(t, "false", snap["missing"])
	assert.Equal(t, "", snap["shipped_at"])
	assert.Len(t, snap, len(hw.TrackedFields()))
}
