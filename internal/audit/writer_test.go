package audit_test

import (
	"context"
	"testing"
	"time"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hw-inventory/internal/audit"
	"hw-inventory/internal/models"
	"hw-inventory/internal/testutil"
)

func accessRow(path string, status int) *models.AuditLog {
	method := "GET"
	return &models.AuditLog{
		Timestamp:  time.Now().UTC(),
		Method:     &method,
		Path:       &path,
		StatusCode: &status,
	}
}

func TestAccessLogWriter_EnqueueWrites(t *testing.T) {
	db := testutil.OpenDB(t)
	w := audit.NewAccessLogWriter(db, time.Second)

	w.Enqueue(context.Background(), accessRow("/hardware", 200))
	w.Enqueue(context.Background(), accessRow("/", 302))
	w.Wait()

	rows := testutil.AuditRows(t, db)
	require.Len(t, rows, 2)
	for _, row := range rows {
		assert.True(t, row.IsAccessLog())
	}
}

func TestAccessLogWriter_SurvivesCancelledRequest(t *testing.T) {
	db := testutil.OpenDB(t)
	w := audit.NewAccessLogWriter(db, time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	w.Enqueue(ctx, accessRow("/hardware", 200))
	w.Wait()

	assert.Len(t, testutil.AuditRows(t, db), 1)
}

func TestAccessLogWriter_FailureIsSwallowed(t *testing.T) {
	db := testutil.OpenDB(t)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	require.NoError(t, sqlDB.Close())

	w := audit.NewAccessLogWriter(db, time.Second)
	assert.NotPanics(t, func() {
		w.Enqueue(context.Background(), accessRow("/hardware", 200))
		w.Wait()
	})
	assert.Error(t, w.Write(context.Background(), accessRow("/hardware", 200)))
}

func TestAccessLogWriter_BreakerOpensAfterFailures(t *testing.T) {
	db := testutil.OpenDB(t)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	require.NoError(t, sqlDB.Close())

	w := audit.NewAccessLogWriter(db, time.Second)
	for i := 0; i < 5; i++ {
		err := w.Write(context.Background(), accessRow("/", 200))
		require.Error(t, err)
		assert.NotErrorIs(t, err, gobreaker.ErrOpenState)
	}

	err = w.Write(context.Background(), accessRow("/", 200))
	require.ErrorIs(t, err, gobreaker.ErrOpenState)
	assert.Equal(t, "open", w.State())
}

func TestAccessLogWriter_NilDB(t *testing.T) {
	w := audit.NewAccessLogWriter(nil, 0)
	assert.Error(t, w.Write(context.Background(), accessRow("/", 200)))
}
