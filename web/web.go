// Package web embeds the HTML templates and static assets.
package web

import (
	"embed"
	"encoding/json"
	"fmt"
	"html/template"
	"io/fs"
	"net/url"
	"slices"
	"strconv"
	"time"

	"hw-inventory/internal/models"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed static
var staticFS embed.FS

const timeLayout = "2006-01-02 15:04:05"

// Static returns the assets served under /static.
func Static() fs.FS {
	sub, err := fs.Sub(staticFS, "static")
	if err != nil {
		panic(err)
	}
	return sub
}

// Templates parses every page with FuncMap installed.
func Templates() (*template.Template, error) {
	return template.New("").Funcs(FuncMap()).ParseFS(templateFS, "templates/*.html")
}

func FuncMap() template.FuncMap {
	return template.FuncMap{
		"statusLabel": func(s models.HardwareStatus) string { return s.DisplayName() },
		"modelLabel":  func(m models.HardwareModel) string { return m.DisplayName() },
		"formatTime":  formatTime,
		"deref":       deref,
		"add":         func(a, b int) int { return a + b },
		"sub":         func(a, b int) int { return a - b },
		"toJSON":      toJSON,
		"hasStatus":   hasStatus,
		"pageURL":     pageURL,
		"statusClass": statusClass,
		"dict":        dict,
	}
}

func formatTime(v any) string {
	switch t := v.(type) {
	case time.Time:
		if t.IsZero() {
			return ""
		}
		return t.UTC().Format(timeLayout)
	case *time.Time:
		if t == nil {
			return ""
		}
		return formatTime(*t)
	default:
		return ""
	}
}

// deref renders optional columns; nil is shown as "".
func deref(v any) string {
	switch p := v.(type) {
	case *string:
		if p != nil {
			return *p
		}
	case *int:
		if p != nil {
			return strconv.Itoa(*p)
		}
	case *float64:
		if p != nil {
			return strconv.FormatFloat(*p, 'f', 2, 64)
		}
	case *models.AuditAction:
		if p != nil {
			return string(*p)
		}
	case nil:
	default:
		return fmt.Sprint(v)
	}
	return ""
}

func toJSON(v any) string {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return ""
	}
	return string(b)
}

// dict builds the argument map of nested templates.
func dict(kv ...any) (map[string]any, error) {
	if len(kv)%2 != 0 {
		return nil, fmt.Errorf("dict: odd number of arguments")
	}
	m := make(map[string]any, len(kv)/2)
	for i := 0; i < len(kv); i += 2 {
		k, ok := kv[i].(string)
		if !ok {
			return nil, fmt.Errorf("dict: key %v is not a string", kv[i])
		}
		m[k] = kv[i+1]
	}
	return m, nil
}

func hasStatus(list []models.HardwareStatus, s models.HardwareStatus) bool {
	return slices.Contains(list, s)
}

// pageURL keeps the current filters and swaps the page number.
func pageURL(q url.Values, page int) string {
	next := url.Values{}
	for k, vs := range q {
		next[k] = slices.Clone(vs)
	}
	next.Set("page", strconv.Itoa(page))
	return "?" + next.Encode()
}

func statusClass(s models.HardwareStatus) string {
	switch s {
	case models.StatusInStock:
		return "badge-green"
	case models.StatusReserved:
		return "badge-yellow"
	case models.StatusImaging:
		return "badge-blue"
	case models.StatusShipped:
		return "badge-purple"
	default:
		return "badge-grey"
	}
}
