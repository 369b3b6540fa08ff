package models

import (
	"time"

	"gorm.io/datatypes"
)

type AuditAction string

const (
	ActionCreate AuditAction = "CREATE"
	ActionUpdate AuditAction = "UPDATE"
	ActionDelete AuditAction = "DELETE"
)

// EntityActions are the actions of entity-change rows; access-log rows have none.
var EntityActions = []AuditAction{ActionCreate, ActionUpdate, ActionDelete}

func (a AuditAction) Valid() bool {
	return a == ActionCreate || a == ActionUpdate || a == ActionDelete
}

// AuditLog is append-only. Rows with Action set describe an entity change,
// rows without it describe one HTTP request.
type AuditLog struct {
	ID        uint      `gorm:"primaryKey"`
	Timestamp time.Time `gorm:"not null;index"`

	// entity-change rows
	Action     *AuditAction      `gorm:"type:varchar(10);index"`
	EntityName *string           `gorm:"size:100;index:idx_audit_entity"`
	EntityID   *string           `gorm:"size:100;index:idx_audit_entity"`
	Changes    datatypes.JSONMap `json:"changes"`

	// request metadata, also copied onto entity-change rows when known
	RequestID  *string `gorm:"size:64;index"`
	Method     *string `gorm:"size:10"`
	Path       *string `gorm:"size:500"`
	RemoteAddr *string `gorm:"size:45"`
	UserAgent  *string `gorm:"size:500"`

	// access-log rows
	QueryParams      *string `gorm:"type:text"`
	StatusCode       *int    `gorm:"index"`
	ResponseTimeMs   *float64
	ErrorMessage     *string `gorm:"type:text"`
	RequestBodySize  *int
	ResponseBodySize *int

	UserID   *string `gorm:"size:255"`
	Username *string `gorm:"size:255;index"`
}

func (AuditLog) TableName() string { return "audit_logs" }

// IsAccessLog reports whether the row describes an HTTP request.
func (l *AuditLog) IsAccessLog() bool { return l.Action == nil }

// Deref helpers keep templates free of nil checks.

func (l *AuditLog) ActionName() string { return derefString((*string)(l.Action)) }
func (l *AuditLog) EntityNameValue() string { return derefString(l.EntityName) }
func (l *AuditLog) EntityIDValue() string { return derefString(l.EntityID) }
func (l *AuditLog) UsernameValue() string { return derefString(l.Username) }
func (l *AuditLog) MethodValue() string { return derefString(l.Method) }
func (l *AuditLog) PathValue() string { return derefString(l.Path) }

func (l *AuditLog) StatusCodeValue() int {
	if l.StatusCode == nil {
		return 0
	}
	return *l.StatusCode
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// StringPtr returns nil for "" so optional columns stay NULL.
func StringPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
