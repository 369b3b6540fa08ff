// Package audit records who changed what: entity-change rows written inside
// the mutating transaction, and access-log rows written after each request.
package audit

import (
	"context"
	"net/http"
)

type contextKey struct{}

// RequestContext is the per-request metadata that entity-change rows are
// attributed with. It travels in the request's context.Context, so concurrent
// requests never see each other's values.
type RequestContext struct {
	RequestID  string
	UserID     string
	Username   string
	Method     string
	Path       string
	RemoteAddr string
	UserAgent  string
	StatusCode int
}

// WithRequestContext installs a copy of rc. The returned context is the only
// place the new value is visible; keeping parent around is how callers
// restore the previous one.
func WithRequestContext(parent context.Context, rc *RequestContext) context.Context {
	if rc == nil {
		return context.WithValue(parent, contextKey{}, (*RequestContext)(nil))
	}
	cp := *rc
	return context.WithValue(parent, contextKey{}, &cp)
}

// FromContext returns a copy of the installed request context, if any.
func FromContext(ctx context.Context) (*RequestContext, bool) {
	if ctx == nil {
		return nil, false
	}
	rc, ok := ctx.Value(contextKey{}).(*RequestContext)
	if !ok || rc == nil {
		return nil, false
	}
	cp := *rc
	return &cp, true
}

// Install sets rc on r and returns the request carrying it together with the
// previous context, which Restore puts back.
func Install(r *http.Request, rc *RequestContext) (*http.Request, context.Context) {
	prev := r.Context()
	return r.WithContext(WithRequestContext(prev, rc)), prev
}

// Restore returns r carrying prev, the context Install replaced.
func Restore(r *http.Request, prev context.Context) *http.Request {
	return r.WithContext(prev)
}

// Actor is the identity a mutation or request is attributed to.
type Actor struct {
	UserID   string
	Username string
}

func (rc *RequestContext) Actor() Actor {
	if rc == nil {
		return Actor{}
	}
	return Actor{UserID: rc.UserID, Username: rc.Username}
}
