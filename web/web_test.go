package web

import (
	"io/fs"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hw-inventory/internal/models"
)

func TestTemplatesParse(t *testing.T) {
	tmpl, err := Templates()
	require.NoError(t, err)

	for _, name := range []string{
		"login.html", "dashboard.html", "hardware_list.html", "hardware_detail.html",
		"hardware_form.html", "audit_logs.html", "audit_activity.html",
		"access_denied.html", "error.html",
	} {
		assert.NotNil(t, tmpl.Lookup(name), name)
	}
}

func TestStaticContainsStylesheet(t *testing.T) {
	_, err := fs.Stat(Static(), "app.css")
	assert.NoError(t, err)
}

func TestDeref(t *testing.T) {
	s := "alice"
	code := 404
	ms := 12.345
	action := models.ActionUpdate

	assert.Equal(t, "alice", deref(&s))
	assert.Equal(t, "404", deref(&code))
	assert.Equal(t, "12.35", deref(&ms))
	assert.Equal(t, "UPDATE", deref(&action))
	assert.Equal(t, "", deref((*string)(nil)))
	assert.Equal(t, "", deref(nil))
}

func TestFormatTime(t *testing.T) {
	ts := time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC)
	assert.Equal(t, "2024-03-01 09:30:00", formatTime(ts))
	assert.Equal(t, "2024-03-01 09:30:00", formatTime(&ts))
	assert.Equal(t, "", formatTime((*time.Time)(nil)))
	assert.Equal(t, "", formatTime(time.Time{}))
}

func TestPageURLKeepsFilters(t *testing.T) {
	q := url.Values{"status": {"IN_STOCK", "SHIPPED"}, "page": {"1"}}
	got := pageURL(q, 3)

	parsed, err := url.ParseQuery(got[1:])
	require.NoError(t, err)
	assert.Equal(t, []string{"IN_STOCK", "SHIPPED"}, parsed["status"])
	assert.Equal(t, "3", parsed.Get("page"))
	assert.Equal(t, "1", q.Get("page"), "input must not be modified")
}

func TestDict(t *testing.T) {
	m, err := dict("Page", 2, "Pages", 5)
	require.NoError(t, err)
	assert.Equal(t, 2, m["Page"])

	_, err = dict("Page")
	assert.Error(t, err)
	_, err = dict(1, 2)
	assert.Error(t, err)
}
