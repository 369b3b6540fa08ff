package audit

import (
	"context"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromContext_Unset(t *testing.T) {
	rc, ok := FromContext(context.Background())
	assert.False(t, ok)
	assert.Nil(t, rc)

	rc, ok = FromContext(nil) //nolint:staticcheck
	assert.False(t, ok)
	assert.Nil(t, rc)
}

func TestWithRequestContext_CopiesValue(t *testing.T) {
	rc := &RequestContext{Username: "alice", StatusCode: 500}
	ctx := WithRequestContext(context.Background(), rc)

	rc.Username = "mallory"

	got, ok := FromContext(ctx)
	require.True(t, ok)
	assert.Equal(t, "alice", got.Username)

	got.StatusCode = 200
	again, _ := FromContext(ctx)
	assert.Equal(t, 500, again.StatusCode)
}

func TestWithRequestContext_NestAndRestore(t *testing.T) {
	outer := WithRequestContext(context.Background(), &RequestContext{Username: "alice", StatusCode: 500})
	inner := WithRequestContext(outer, &RequestContext{Username: "alice", StatusCode: 201})

	got, _ := FromContext(inner)
	assert.Equal(t, 201, got.StatusCode)

	// the parent is the restoration token
	got, _ = FromContext(outer)
	assert.Equal(t, 500, got.StatusCode)
}

func TestWithRequestContext_NilClears(t *testing.T) {
	outer := WithRequestContext(context.Background(), &RequestContext{Username: "alice"})
	cleared := WithRequestContext(outer, nil)

	_, ok := FromContext(cleared)
	assert.False(t, ok)
}

func TestInstallRestore(t *testing.T) {
	r := httptest.NewRequest("GET", "/hardware", nil)

	installed, prev := Install(r, &RequestContext{Method: "GET", Path: "/hardware"})
	got, ok := FromContext(installed.Context())
	require.True(t, ok)
	assert.Equal(t, "/hardware", got.Path)

	restored := Restore(installed, prev)
	_, ok = FromContext(restored.Context())
	assert.False(t, ok)
}

func TestRequestContext_IsolatedAcrossGoroutines(t *testing.T) {
	var wg sync.WaitGroup
	errs := make(chan string, 200)

	for i := 0; i < 100; i++ {
		name := "alice"
		if i%2 == 1 {
			name = "bob"
		}
		wg.Add(1)
		go func(name string) {
			defer wg.Done()
			ctx := WithRequestContext(context.Background(), &RequestContext{Username: name})
			for j := 0; j < 50; j++ {
				got, _ := FromContext(ctx)
				if got.Username != name {
					errs <- got.Username
					return
				}
			}
		}(name)
	}
	wg.Wait()
	close(errs)

	for e := range errs {
		t.Errorf("saw foreign actor %q", e)
	}
}

func TestActor(t *testing.T) {
	var nilRC *RequestContext
	assert.Equal(t, Actor{}, nilRC.Actor())

	rc := &RequestContext{UserID: "7", Username: "alice"}
	assert.Equal(t, Actor{UserID: "7", Username: "alice"}, rc.Actor())
}
