package audit

import (
	"errors"
	"fmt"
	"time"

	"hw-inventory/internal/database"
	"hw-inventory/internal/models"
	"hw-inventory/internal/telemetry"
)

const pendingKey = "pending_audit_logs"

// ErrMissingPrimaryKey aborts a transaction whose inserted entity came back
// without a key, so it can never exist without its CREATE row.
var ErrMissingPrimaryKey = errors.New("created entity has no primary key after flush")

type pendingCreate struct {
	entity models.Tracked
	values map[string]any
	rc     *RequestContext
}

// Recorder is the database.Hook that writes entity-change rows. UPDATE and
// DELETE rows are staged before the flush and written with it; CREATE rows
// wait until the flush has assigned keys and are written by the next round.
// AuditLog is not Tracked, so rows staged here never produce rows themselves.
type Recorder struct{}

var _ database.Hook = Recorder{}

func (Recorder) BeforeFlush(s *database.Session) error {
	rc, _ := FromContext(s.Context())

	for _, d := range s.Dirty() {
		changes := ChangeSet(d.History)
		if len(changes) == 0 {
			continue
		}
		s.Add(entityLog(models.ActionUpdate, d.Entity, d.Entity.PrimaryKey(), changes, rc))
	}

	for _, e := range s.Deleted() {
		changes := map[string]any{"old_values": Snapshot(e)}
		s.Add(entityLog(models.ActionDelete, e, e.PrimaryKey(), changes, rc))
	}

	pending := pendingCreates(s)
	for _, obj := range s.New() {
		e, ok := obj.(models.Tracked)
		if !ok {
			continue
		}
		pending = append(pending, pendingCreate{entity: e, values: Snapshot(e), rc: rc})
	}
	if len(pending) > 0 {
		s.Info[pendingKey] = pending
	}
	return nil
}

func (Recorder) AfterFlush(s *database.Session) error {
	pending := pendingCreates(s)
	if len(pending) == 0 {
		return nil
	}
	delete(s.Info, pendingKey)

	for _, p := range pending {
		id := p.entity.PrimaryKey()
		if id == "" {
			return fmt.Errorf("%s: %w", p.entity.EntityName(), ErrMissingPrimaryKey)
		}
		changes := map[string]any{"new_values": p.values}
		s.Add(entityLog(models.ActionCreate, p.entity, id, changes, p.rc))
	}
	return nil
}

func pendingCreates(s *database.Session) []pendingCreate {
	pending, _ := s.Info[pendingKey].([]pendingCreate)
	return pending
}

func entityLog(action models.AuditAction, e models.Tracked, id string, changes map[string]any, rc *RequestContext) *models.AuditLog {
	name := e.EntityName()
	row := &models.AuditLog{
		Timestamp:  time.Now().UTC(),
		Action:     &action,
		EntityName: &name,
		EntityID:   models.StringPtr(id),
		Changes:    changes,
	}
	if rc != nil {
		row.UserID = models.StringPtr(rc.UserID)
		row.Username = models.StringPtr(rc.Username)
		row.RequestID = models.StringPtr(rc.RequestID)
		row.Method = models.StringPtr(rc.Method)
		row.Path = models.StringPtr(rc.Path)
		row.RemoteAddr = models.StringPtr(rc.RemoteAddr)
		row.UserAgent = models.StringPtr(rc.UserAgent)
	}
	telemetry.AuditEntityRecordsTotal.WithLabelValues(string(action)).Inc()
	return row
}
