package audit

import (
	"hw-inventory/internal/database"
	"hw-inventory/internal/models"
)

// ChangeSet turns attribute history into {"field": {"old": ..., "new": ...}}.
// Fields marked NoAudit and pairs whose text forms match are left out.
func ChangeSet(history []database.AttributeHistory) map[string]any {
	changes := make(map[string]any, len(history))
	for _, h := range history {
		if h.Field.NoAudit || h.Old == h.New {
			continue
		}
		changes[h.Field.Name] = map[string]any{"old": h.Old, "new": h.New}
	}
	return changes
}

// Snapshot is the full audited state of e, used for CREATE and DELETE rows.
func Snapshot(e models.Tracked) map[string]any {
	fields := e.TrackedFields()
	out := make(map[string]any, len(fields))
	for _, f := range fields {
		if f.NoAudit {
			continue
		}
		out[f.Name] = f.String()
	}
	return out
}
