package database_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hw-inventory/internal/database"
	"hw-inventory/internal/models"
	"hw-inventory/internal/testutil"
)

// recordingHook captures what each flush round exposes.
type recordingHook struct {
	rounds      int
	newCounts   []int
	dirtyCounts []int
	deleted     []int
	afterKeys   [][]string
	before      func(s *database.Session) error
}

func (h *recordingHook) BeforeFlush(s *database.Session) error {
	h.rounds++
	h.newCounts = append(h.newCounts, len(s.New()))
	h.dirtyCounts = append(h.dirtyCounts, len(s.Dirty()))
	h.deleted = append(h.deleted, len(s.Deleted()))
	if h.before != nil {
		return h.before(s)
	}
	return nil
}

func (h *recordingHook) AfterFlush(s *database.Session) error {
	var keys []string
	for _, obj := range s.New() {
		if e, ok := obj.(models.Tracked); ok {
			keys = append(keys, e.PrimaryKey())
		}
	}
	h.afterKeys = append(h.afterKeys, keys)
	return nil
}

func TestTransaction_InsertAssignsKey(t *testing.T) {
	db := testutil.OpenDB(t)
	hook := &recordingHook{}
	st := database.NewStore(db, hook)

	hw := testutil.NewHardware("nb-1", "SN-1")
	err := st.Transaction(context.Background(), func(s *database.Session) error {
		s.Add(hw)
		return nil
	})
	require.NoError(t, err)

	assert.NotZero(t, hw.ID)
	assert.Equal(t, 1, hook.rounds)
	assert.Equal(t, []int{1}, hook.newCounts)

	var count int64
	require.NoError(t, db.Model(&models.Hardware{}).Count(&count).Error)
	assert.EqualValues(t, 1, count)
}

func TestSession_DirtyTracksChangedFieldsOnly(t *testing.T) {
	db := testutil.OpenDB(t)
	st := database.NewStore(db)

	hw := testutil.NewHardware("nb-1", "SN-1")
	require.NoError(t, st.Transaction(context.Background(), func(s *database.Session) error {
		s.Add(hw)
		return nil
	}))

	err := st.Transaction(context.Background(), func(s *database.Session) error {
		var loaded models.Hardware
		require.NoError(t, s.Get(&loaded, hw.ID))
		assert.Empty(t, s.Dirty())

		loaded.Status = models.StatusReserved
		loaded.Hostname = "nb-1" // same value, not a change
		dirty := s.Dirty()
		require.Len(t, dirty, 1)
		require.Len(t, dirty[0].History, 1)
		assert.Equal(t, "status", dirty[0].History[0].Field.Name)
		assert.Equal(t, "IN_STOCK", dirty[0].History[0].Old)
		assert.Equal(t, "RESERVED", dirty[0].History[0].New)
		return nil
	})
	require.NoError(t, err)

	var reloaded models.Hardware
	require.NoError(t, db.First(&reloaded, hw.ID).Error)
	assert.Equal(t, models.StatusReserved, reloaded.Status)
}

func TestSession_GetMissing(t *testing.T) {
	db := testutil.OpenDB(t)
	st := database.NewStore(db)

	err := st.Transaction(context.Background(), func(s *database.Session) error {
		var hw models.Hardware
		return s.Get(&hw, uint(999))
	})
	assert.ErrorIs(t, err, database.ErrNotFound)
}

func TestSession_DeleteWinsOverDirty(t *testing.T) {
	db := testutil.OpenDB(t)
	hook := &recordingHook{}
	st := database.NewStore(db, hook)

	hw := testutil.NewHardware("nb-1", "SN-1")
	require.NoError(t, st.Transaction(context.Background(), func(s *database.Session) error {
		s.Add(hw)
		return nil
	}))

	hook.rounds = 0
	hook.dirtyCounts = nil
	hook.deleted = nil
	require.NoError(t, st.Transaction(context.Background(), func(s *database.Session) error {
		var loaded models.Hardware
		if err := s.Get(&loaded, hw.ID); err != nil {
			return err
		}
		loaded.Status = models.StatusShipped
		s.Delete(&loaded)
		return nil
	}))

	assert.Equal(t, []int{0}, hook.dirtyCounts)
	assert.Equal(t, []int{1}, hook.deleted)

	var count int64
	require.NoError(t, db.Model(&models.Hardware{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestSession_DeletePendingDiscardsIt(t *testing.T) {
	db := testutil.OpenDB(t)
	hook := &recordingHook{}
	st := database.NewStore(db, hook)

	require.NoError(t, st.Transaction(context.Background(), func(s *database.Session) error {
		hw := testutil.NewHardware("nb-1", "SN-1")
		s.Add(hw)
		s.Delete(hw)
		return nil
	}))

	assert.Zero(t, hook.rounds)
	var count int64
	require.NoError(t, db.Model(&models.Hardware{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestSession_RowsAddedAfterFlushGoToNextRound(t *testing.T) {
	db := testutil.OpenDB(t)
	hook := &recordingHook{}
	st := database.NewStore(db, hook, &addOnceHook{})

	require.NoError(t, st.Transaction(context.Background(), func(s *database.Session) error {
		s.Add(testutil.NewHardware("nb-1", "SN-1"))
		return nil
	}))

	assert.Equal(t, 2, hook.rounds)
	var count int64
	require.NoError(t, db.Model(&models.Hardware{}).Count(&count).Error)
	assert.EqualValues(t, 2, count)
}

// addOnceHook stages one extra device after the first round.
type addOnceHook struct{ done bool }

func (h *addOnceHook) BeforeFlush(*database.Session) error { return nil }

func (h *addOnceHook) AfterFlush(s *database.Session) error {
	if h.done {
		return nil
	}
	h.done = true
	s.Add(testutil.NewHardware("nb-2", "SN-2"))
	return nil
}

func TestTransaction_HookErrorRollsBack(t *testing.T) {
	db := testutil.OpenDB(t)
	boom := errors.New("boom")
	st := database.NewStore(db, &recordingHook{before: func(*database.Session) error { return boom }})

	err := st.Transaction(context.Background(), func(s *database.Session) error {
		s.Add(testutil.NewHardware("nb-1", "SN-1"))
		return nil
	})
	require.ErrorIs(t, err, boom)

	var count int64
	require.NoError(t, db.Model(&models.Hardware{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestTransaction_CallbackErrorRollsBackEarlierFlush(t *testing.T) {
	db := testutil.OpenDB(t)
	st := database.NewStore(db)
	boom := errors.New("handler failed")

	err := st.Transaction(context.Background(), func(s *database.Session) error {
		s.Add(testutil.NewHardware("nb-1", "SN-1"))
		if err := s.Flush(); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	var count int64
	require.NoError(t, db.Model(&models.Hardware{}).Count(&count).Error)
	assert.Zero(t, count)
}

// endlessHook adds a row on every round.
type endlessHook struct{}

func (endlessHook) BeforeFlush(*database.Session) error { return nil }

func (endlessHook) AfterFlush(s *database.Session) error {
	s.Add(&models.AuditLog{})
	return nil
}

func TestFlush_StopsRunawayHooks(t *testing.T) {
	db := testutil.OpenDB(t)
	st := database.NewStore(db, endlessHook{})

	err := st.Transaction(context.Background(), func(s *database.Session) error {
		s.Add(testutil.NewHardware("nb-1", "SN-1"))
		return nil
	})
	require.ErrorIs(t, err, database.ErrFlushLoop)

	var count int64
	require.NoError(t, db.Model(&models.AuditLog{}).Count(&count).Error)
	assert.Zero(t, count)
}
