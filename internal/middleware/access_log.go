package middleware

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"net"
	"net/http"
	"runtime/debug"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"hw-inventory/internal/audit"
	"hw-inventory/internal/logging"
	"hw-inventory/internal/models"
)

// DefaultMaxBodyBytes caps the request body the access log buffers.
const DefaultMaxBodyBytes int64 = 10 << 20

const errBodyTooLarge = "request body too large"

// IdentityResolver returns the actor of a request; false means anonymous.
type IdentityResolver func(c *gin.Context) (audit.Actor, bool)

// AccessLog writes one access-log row per request not under skipPaths. It
// installs the request context that entity-change rows are attributed with,
// and it answers with 500 when the chain panics so the row is still written.
// Bodies over maxBody bytes (DefaultMaxBodyBytes when <= 0) are refused with
// 413 before the chain runs.
func AccessLog(sink audit.AccessLogSink, resolve IdentityResolver, skipPaths []string, maxBody int64) gin.HandlerFunc {
	if maxBody <= 0 {
		maxBody = DefaultMaxBodyBytes
	}
	return func(c *gin.Context) {
		path := c.Request.URL.Path
		if skipped(path, skipPaths) {
			c.Next()
			return
		}

		actor := resolveActor(c, resolve)
		rc := &audit.RequestContext{
			RequestID:  GetRequestID(c),
			UserID:     actor.UserID,
			Username:   actor.Username,
			Method:     c.Request.Method,
			Path:       path,
			RemoteAddr: ClientAddr(c.Request),
			UserAgent:  c.Request.UserAgent(),
			StatusCode: http.StatusInternalServerError,
		}

		var prev context.Context
		c.Request, prev = audit.Install(c.Request, rc)
		defer func() { c.Request = audit.Restore(c.Request, prev) }()

		requestSize, tooLarge := bufferBody(c, maxBody)

		start := time.Now()
		var errMsg string
		var panicked bool
		if tooLarge {
			errMsg = errBodyTooLarge
			c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge, gin.H{"error": errMsg})
		} else {
			errMsg, panicked = runChain(c)
		}
		elapsed := time.Since(start)

		status := c.Writer.Status()
		if panicked {
			status = http.StatusInternalServerError
		}
		if errMsg == "" && len(c.Errors) > 0 {
			errMsg = c.Errors.Last().Error()
		}

		rc.StatusCode = status
		c.Request = c.Request.WithContext(audit.WithRequestContext(c.Request.Context(), rc))

		responseSize := c.Writer.Size()
		if responseSize < 0 {
			responseSize = 0
		}
		ms := math.Round(float64(elapsed.Microseconds())/10) / 100

		row := &models.AuditLog{
			Timestamp:        start.UTC(),
			RequestID:        models.StringPtr(rc.RequestID),
			Method:           models.StringPtr(rc.Method),
			Path:             models.StringPtr(rc.Path),
			QueryParams:      models.StringPtr(c.Request.URL.RawQuery),
			RemoteAddr:       models.StringPtr(rc.RemoteAddr),
			UserAgent:        models.StringPtr(rc.UserAgent),
			StatusCode:       &status,
			ResponseTimeMs:   &ms,
			ErrorMessage:     models.StringPtr(errMsg),
			RequestBodySize:  &requestSize,
			ResponseBodySize: &responseSize,
			UserID:           models.StringPtr(rc.UserID),
			Username:         models.StringPtr(rc.Username),
		}
		enqueue(c.Request.Context(), sink, row)
	}
}

// runChain runs the rest of the chain, turning a panic into a 500.
func runChain(c *gin.Context) (errMsg string, panicked bool) {
	defer func() {
		if r := recover(); r != nil {
			panicked = true
			errMsg = fmt.Sprint(r)
			logging.Ctx(c.Request.Context()).Error().
				Str("panic", errMsg).
				Bytes("stack", debug.Stack()).
				Str("path", c.Request.URL.Path).
				Msg("recovered panic in request handler")
			if !c.Writer.Written() {
				c.AbortWithStatus(http.StatusInternalServerError)
			} else {
				c.Abort()
			}
		}
	}()
	c.Next()
	return "", false
}

func enqueue(ctx context.Context, sink audit.AccessLogSink, row *models.AuditLog) {
	defer func() {
		if r := recover(); r != nil {
			logging.Ctx(ctx).Error().Interface("panic", r).Msg("access log sink panicked")
		}
	}()
	if sink != nil {
		sink.Enqueue(ctx, row)
	}
}

func resolveActor(c *gin.Context, resolve IdentityResolver) (actor audit.Actor) {
	if resolve == nil {
		return audit.Actor{}
	}
	defer func() {
		if r := recover(); r != nil {
			logging.Ctx(c.Request.Context()).Warn().Interface("panic", r).Msg("identity resolution failed, treating as anonymous")
			actor = audit.Actor{}
		}
	}()
	if a, ok := resolve(c); ok {
		return a
	}
	return audit.Actor{}
}

// bufferBody reads up to limit bytes of the body and puts an identical reader
// back. tooLarge reports a body over limit.
func bufferBody(c *gin.Context, limit int64) (size int, tooLarge bool) {
	if c.Request.Body == nil || c.Request.Body == http.NoBody {
		return 0, false
	}
	body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, limit))
	_ = c.Request.Body.Close()
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			logging.Ctx(c.Request.Context()).Warn().Int64("limit", maxErr.Limit).Msg("request body too large")
			c.Request.Body = http.NoBody
			return len(body), true
		}
		logging.Ctx(c.Request.Context()).Warn().Err(err).Msg("failed to buffer request body")
	}
	c.Request.Body = io.NopCloser(bytes.NewReader(body))
	return len(body), false
}

func skipped(path string, skipPaths []string) bool {
	for _, p := range skipPaths {
		if strings.HasPrefix(path, p) {
			return true
		}
	}
	return false
}

// ClientAddr is the first X-Forwarded-For hop, else X-Real-IP, else the
// socket peer.
func ClientAddr(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if first = strings.TrimSpace(first); first != "" {
			return first
		}
	}
	if realIP := strings.TrimSpace(r.Header.Get("X-Real-IP")); realIP != "" {
		return realIP
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
