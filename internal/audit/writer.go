package audit

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sony/gobreaker"
	"gorm.io/gorm"

	"hw-inventory/internal/logging"
	"hw-inventory/internal/models"
	"hw-inventory/internal/telemetry"
)

// AccessLogSink receives finished access-log rows from the HTTP layer.
// Enqueue must not block on I/O and must not fail the request.
type AccessLogSink interface {
	Enqueue(ctx context.Context, row *models.AuditLog)
}

// AccessLogWriter persists access-log rows from background goroutines. A
// circuit breaker stops hammering a database that keeps failing; rows that
// arrive while it is open are dropped.
type AccessLogWriter struct {
	db      *gorm.DB
	timeout time.Duration
	cb      *gobreaker.CircuitBreaker
	wg      sync.WaitGroup
}

func NewAccessLogWriter(db *gorm.DB, timeout time.Duration) *AccessLogWriter {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &AccessLogWriter{
		db:      db,
		timeout: timeout,
		cb: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:    "access-log",
			Timeout: 30 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 5
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				logging.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).
					Msg("access log circuit breaker changed state")
			},
		}),
	}
}

// Enqueue writes row in the background. ctx only contributes values (request
// id for logs); its cancellation does not abort the write.
func (w *AccessLogWriter) Enqueue(ctx context.Context, row *models.AuditLog) {
	if ctx == nil {
		ctx = context.Background()
	}
	bg := context.WithoutCancel(ctx)

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				telemetry.AccessLogWritesTotal.WithLabelValues("error").Inc()
				logging.Ctx(bg).Error().Interface("panic", r).Msg("recovered panic while writing access log")
			}
		}()

		if err := w.Write(bg, row); err != nil {
			logging.Ctx(bg).Error().Err(err).
				Str("method", derefOrEmpty(row.Method)).
				Str("path", derefOrEmpty(row.Path)).
				Msg("failed to save access log")
		}
	}()
}

// Write persists row synchronously through the breaker.
func (w *AccessLogWriter) Write(ctx context.Context, row *models.AuditLog) error {
	if w.db == nil {
		return errors.New("access log writer has no database")
	}
	ctx, cancel := context.WithTimeout(ctx, w.timeout)
	defer cancel()

	start := time.Now()
	_, err := w.cb.Execute(func() (interface{}, error) {
		return nil, w.db.WithContext(ctx).Create(row).Error
	})
	telemetry.AccessLogWriteDuration.Observe(time.Since(start).Seconds())

	switch {
	case err == nil:
		telemetry.AccessLogWritesTotal.WithLabelValues("ok").Inc()
		return nil
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		telemetry.AccessLogWritesTotal.WithLabelValues("dropped").Inc()
		return fmt.Errorf("access log dropped: %w", err)
	default:
		telemetry.AccessLogWritesTotal.WithLabelValues("error").Inc()
		return err
	}
}

// Wait blocks until every enqueued write has finished.
func (w *AccessLogWriter) Wait() {
	w.wg.Wait()
}

// State exposes the breaker state for the health endpoint.
func (w *AccessLogWriter) State() string {
	return w.cb.State().String()
}

func derefOrEmpty(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
