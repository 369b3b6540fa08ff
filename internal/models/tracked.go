package models

import (
	"fmt"
	"strconv"
	"time"
)

// Tracked is implemented by every model whose writes go through the unit of
// work. The field list is explicit so change sets never depend on reflection.
type Tracked interface {
	EntityName() string
	// PrimaryKey returns "" while the row has no key yet.
	PrimaryKey() string
	TrackedFields() []Field
}

// Field is one persisted column of a tracked entity.
type Field struct {
	Name  string
	Value any
	// NoAudit fields are compared for dirtiness but never written to audit rows.
	NoAudit bool
}

// String is the canonical text form used both for dirty checks and in audit payloads.
func (f Field) String() string {
	return FormatValue(f.Value)
}

func FormatValue(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case *string:
		if val == nil {
			return ""
		}
		return *val
	case bool:
		return strconv.FormatBool(val)
	case int:
		return strconv.Itoa(val)
	case uint:
		return strconv.FormatUint(uint64(val), 10)
	case int64:
		return strconv.FormatInt(val, 10)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case time.Time:
		if val.IsZero() {
			return ""
		}
		return val.UTC().Format(time.RFC3339Nano)
	case *time.Time:
		if val == nil || val.IsZero() {
			return ""
		}
		return val.UTC().Format(time.RFC3339Nano)
	case fmt.Stringer:
		return val.String()
	default:
		return fmt.Sprint(val)
	}
}

func formatID(id uint) string {
	if id == 0 {
		return ""
	}
	return strconv.FormatUint(uint64(id), 10)
}
