package database

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"hw-inventory/internal/models"
)

// maxFlushRounds bounds the flush loop; hooks that keep adding rows every
// round would otherwise never settle.
const maxFlushRounds = 100

var (
	ErrNotFound  = errors.New("record not found")
	ErrFlushLoop = errors.New("flush did not settle")
)

// Hook observes every flush round of a Session. BeforeFlush sees the new,
// dirty and deleted sets before any SQL is sent and may stage more rows with
// Add. AfterFlush runs once keys are assigned; rows it adds are written by the
// next round of the same transaction.
type Hook interface {
	BeforeFlush(s *Session) error
	AfterFlush(s *Session) error
}

// AttributeHistory is one field that changed since the entity was loaded.
type AttributeHistory struct {
	Field models.Field
	Old   string
	New   string
}

type DirtyEntity struct {
	Entity  models.Tracked
	History []AttributeHistory
}

type trackedEntity struct {
	entity   models.Tracked
	baseline map[string]string
}

// Store runs transactions whose writes go through a Session.
type Store struct {
	db    *gorm.DB
	hooks []Hook
}

func NewStore(db *gorm.DB, hooks ...Hook) *Store {
	return &Store{db: db, hooks: hooks}
}

// DB is for reads outside a transaction.
func (st *Store) DB() *gorm.DB { return st.db }

// Transaction runs fn inside one database transaction. Everything staged on
// the session is flushed before commit; any error rolls all of it back,
// including rows staged by hooks.
func (st *Store) Transaction(ctx context.Context, fn func(s *Session) error) error {
	if ctx == nil {
		ctx = context.Background()
	}
	return st.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		s := &Session{
			ctx:   ctx,
			tx:    tx,
			hooks: st.hooks,
			Info:  map[string]any{},
		}
		if err := fn(s); err != nil {
			return err
		}
		return s.Flush()
	})
}

// Session is the unit of work of one transaction. It is not safe for
// concurrent use.
type Session struct {
	ctx   context.Context
	tx    *gorm.DB
	hooks []Hook

	pending []any
	tracked []*trackedEntity
	deleted []models.Tracked

	// Info is scratch space shared by hooks for the lifetime of the transaction.
	Info map[string]any
}

func (s *Session) Context() context.Context { return s.ctx }

// DB is the transaction handle, for reads that must see uncommitted writes.
func (s *Session) DB() *gorm.DB { return s.tx }

// Add stages a new row. obj must be a pointer to a model.
func (s *Session) Add(obj any) {
	s.pending = append(s.pending, obj)
}

// Get loads the row with the given primary key into dest and tracks it.
func (s *Session) Get(dest models.Tracked, id any) error {
	if err := s.tx.First(dest, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotFound
		}
		return err
	}
	s.Attach(dest)
	return nil
}

// Attach starts tracking an entity loaded elsewhere; its current field values
// become the baseline for dirty detection.
func (s *Session) Attach(e models.Tracked) {
	if s.find(e) != nil {
		return
	}
	s.tracked = append(s.tracked, &trackedEntity{entity: e, baseline: snapshot(e)})
}

// Delete stages e for deletion. A pending object that was never written is
// simply dropped.
func (s *Session) Delete(e models.Tracked) {
	for i, obj := range s.pending {
		if obj == any(e) {
			s.pending = append(s.pending[:i], s.pending[i+1:]...)
			return
		}
	}
	s.Attach(e)
	for _, d := range s.deleted {
		if d == e {
			return
		}
	}
	s.deleted = append(s.deleted, e)
}

// New returns the objects staged with Add that are not written yet.
func (s *Session) New() []any {
	out := make([]any, len(s.pending))
	copy(out, s.pending)
	return out
}

// Deleted returns the entities staged for deletion.
func (s *Session) Deleted() []models.Tracked {
	out := make([]models.Tracked, len(s.deleted))
	copy(out, s.deleted)
	return out
}

// Dirty returns tracked entities whose fields differ from their baseline.
// Entities staged for deletion are never dirty.
func (s *Session) Dirty() []DirtyEntity {
	var out []DirtyEntity
	for _, t := range s.tracked {
		if s.isDeleted(t.entity) {
			continue
		}
		if history := t.history(); len(history) > 0 {
			out = append(out, DirtyEntity{Entity: t.entity, History: history})
		}
	}
	return out
}

func (s *Session) hasPending() bool {
	return len(s.pending) > 0 || len(s.deleted) > 0 || len(s.Dirty()) > 0
}

// Flush writes staged work, repeating rounds until hooks stop adding rows.
func (s *Session) Flush() error {
	for round := 0; round < maxFlushRounds; round++ {
		if !s.hasPending() {
			return nil
		}
		if err := s.flushRound(); err != nil {
			return err
		}
	}
	return ErrFlushLoop
}

func (s *Session) flushRound() error {
	for _, h := range s.hooks {
		if err := h.BeforeFlush(s); err != nil {
			return fmt.Errorf("before flush: %w", err)
		}
	}

	inserts := s.pending
	s.pending = nil
	dirty := s.Dirty()
	deletes := s.deleted
	s.deleted = nil

	for _, obj := range inserts {
		if err := s.tx.Create(obj).Error; err != nil {
			return fmt.Errorf("insert %T: %w", obj, err)
		}
	}
	for _, d := range dirty {
		if err := s.tx.Save(d.Entity).Error; err != nil {
			return fmt.Errorf("update %s %s: %w", d.Entity.EntityName(), d.Entity.PrimaryKey(), err)
		}
	}
	for _, e := range deletes {
		if err := s.tx.Delete(e).Error; err != nil {
			return fmt.Errorf("delete %s %s: %w", e.EntityName(), e.PrimaryKey(), err)
		}
		s.untrack(e)
	}

	for _, d := range dirty {
		if t := s.find(d.Entity); t != nil {
			t.baseline = snapshot(d.Entity)
		}
	}
	for _, obj := range inserts {
		if e, ok := obj.(models.Tracked); ok {
			s.Attach(e)
		}
	}

	for _, h := range s.hooks {
		if err := h.AfterFlush(s); err != nil {
			return fmt.Errorf("after flush: %w", err)
		}
	}
	return nil
}

func (s *Session) find(e models.Tracked) *trackedEntity {
	for _, t := range s.tracked {
		if t.entity == e {
			return t
		}
	}
	return nil
}

func (s *Session) untrack(e models.Tracked) {
	for i, t := range s.tracked {
		if t.entity == e {
			s.tracked = append(s.tracked[:i], s.tracked[i+1:]...)
			return
		}
	}
}

func (s *Session) isDeleted(e models.Tracked) bool {
	for _, d := range s.deleted {
		if d == e {
			return true
		}
	}
	return false
}

func (t *trackedEntity) history() []AttributeHistory {
	var out []AttributeHistory
	for _, f := range t.entity.TrackedFields() {
		current := f.String()
		if old := t.baseline[f.Name]; old != current {
			out = append(out, AttributeHistory{Field: f, Old: old, New: current})
		}
	}
	return out
}

func snapshot(e models.Tracked) map[string]string {
	fields := e.TrackedFields()
	out := make(map[string]string, len(fields))
	for _, f := range fields {
		out[f.Name] = f.String()
	}
	return out
}
