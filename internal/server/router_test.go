package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"hw-inventory/internal/audit"
	"hw-inventory/internal/config"
	"hw-inventory/internal/database"
	"hw-inventory/internal/models"
	"hw-inventory/internal/testutil"
)

const adminPassword = "Admin123!"

type testApp struct {
	router *gin.Engine
	db     *gorm.DB
	writer *audit.AccessLogWriter
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db := testutil.OpenDB(t)
	st := database.NewStore(db, audit.Recorder{})
	require.NoError(t, database.EnsureAdmin(context.Background(), st, "admin", adminPassword))

	cfg := &config.Config{
		SessionSecret:      "test-secret",
		SessionCookieName:  "inventory_session",
		SessionExpireHours: 1,
		AuditSkipPaths:     config.DefaultSkipPaths,
		LoginRatePerMinute: 100,
		StockThresholds:    map[models.HardwareModel]int{models.ModelNotebook: 2},
	}
	writer := audit.NewAccessLogWriter(db, time.Second)
	r, err := NewRouter(cfg, st, writer)
	require.NoError(t, err)

	return &testApp{router: r, db: db, writer: writer}
}

func (a *testApp) do(req *http.Request, cookie *http.Cookie) *httptest.ResponseRecorder {
	if cookie != nil {
		req.AddCookie(cookie)
	}
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)
	return w
}

func postForm(path string, form url.Values) *http.Request {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}

func (a *testApp) login(t *testing.T, username, password string) *http.Cookie {
	t.Helper()
	w := a.do(postForm("/login", url.Values{"username": {username}, "password": {password}}), nil)
	require.Equal(t, http.StatusFound, w.Code, w.Body.String())
	for _, c := range w.Result().Cookies() {
		if c.Name == "inventory_session" {
			return c
		}
	}
	t.Fatal("no session cookie")
	return nil
}

func (a *testApp) addUser(t *testing.T, username, password string, role models.UserRole) {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	require.NoError(t, a.db.Create(&models.User{
		Username: username, PasswordHash: string(hash), Role: role, IsActive: true,
	}).Error)
}

func TestRouter_LoginCreateAndAudit(t *testing.T) {
	app := newTestApp(t)
	cookie := app.login(t, "admin", adminPassword)

	w := app.do(postForm("/hardware/add", url.Values{
		"hostname":      {"nb-1001"},
		"serial_number": {"SN-1001"},
		"model":         {"Notebook"},
		"status":        {"IN_STOCK"},
	}), cookie)
	require.Equal(t, http.StatusFound, w.Code, w.Body.String())
	assert.True(t, strings.HasPrefix(w.Header().Get("Location"), "/hardware/"))
	app.writer.Wait()

	var hw models.Hardware
	require.NoError(t, app.db.Where("serial_number = ?", "SN-1001").First(&hw).Error)
	assert.Equal(t, "admin", hw.Admin)

	var entity []models.AuditLog
	require.NoError(t, app.db.Where("action IS NOT NULL AND entity_name = ?", "Hardware").Find(&entity).Error)
	require.Len(t, entity, 1)
	row := entity[0]
	assert.Equal(t, models.ActionCreate, *row.Action)
	require.NotNil(t, row.Username)
	assert.Equal(t, "admin", *row.Username)
	require.NotNil(t, row.Path)
	assert.Equal(t, "/hardware/add", *row.Path)
	require.NotNil(t, row.RequestID)

	var access []models.AuditLog
	require.NoError(t, app.db.Where("action IS NULL AND path = ?", "/hardware/add").Find(&access).Error)
	require.Len(t, access, 1)
	assert.Equal(t, http.StatusFound, *access[0].StatusCode)
	assert.Equal(t, "admin", *access[0].Username)
	assert.Equal(t, *row.RequestID, *access[0].RequestID, "both rows share the request id")
}

func TestRouter_DetailShowsHistory(t *testing.T) {
	app := newTestApp(t)
	cookie := app.login(t, "admin", adminPassword)

	w := app.do(postForm("/hardware/add", url.Values{
		"hostname": {"mon-7"}, "serial_number": {"MON-7"}, "model": {"Monitor"}, "status": {"IN_STOCK"},
	}), cookie)
	require.Equal(t, http.StatusFound, w.Code)
	detail := w.Header().Get("Location")

	w = app.do(httptest.NewRequest(http.MethodPost, detail+"/cycle", nil), cookie)
	require.Equal(t, http.StatusFound, w.Code)

	w = app.do(httptest.NewRequest(http.MethodGet, detail, nil), cookie)
	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, "mon-7")
	assert.Contains(t, body, "badge-yellow", "status badge shows RESERVED")
	assert.Contains(t, body, "CREATE")
	assert.Contains(t, body, "UPDATE")
	app.writer.Wait()
}

func TestRouter_UnauthenticatedRedirects(t *testing.T) {
	app := newTestApp(t)

	w := app.do(httptest.NewRequest(http.MethodGet, "/hardware", nil), nil)
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/login?next=/hardware", w.Header().Get("Location"))

	w = app.do(httptest.NewRequest(http.MethodGet, "/api/audit/stats", nil), nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	app.writer.Wait()
}

func TestRouter_BadPassword(t *testing.T) {
	app := newTestApp(t)
	w := app.do(postForm("/login", url.Values{"username": {"admin"}, "password": {"nope"}}), nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "Invalid username or password")
	app.writer.Wait()

	var access []models.AuditLog
	require.NoError(t, app.db.Where("action IS NULL AND path = ?", "/login").Find(&access).Error)
	require.Len(t, access, 1)
	assert.Nil(t, access[0].Username)
	assert.Equal(t, http.StatusUnauthorized, *access[0].StatusCode)
}

func TestRouter_ViewerCannotMutate(t *testing.T) {
	app := newTestApp(t)
	app.addUser(t, "victor", "viewer-pass", models.RoleViewer)
	cookie := app.login(t, "victor", "viewer-pass")

	w := app.do(httptest.NewRequest(http.MethodGet, "/hardware", nil), cookie)
	assert.Equal(t, http.StatusOK, w.Code)

	w = app.do(httptest.NewRequest(http.MethodGet, "/hardware/add", nil), cookie)
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/access-denied", w.Header().Get("Location"))

	w = app.do(httptest.NewRequest(http.MethodGet, "/api/audit/activity", nil), cookie)
	assert.Equal(t, http.StatusForbidden, w.Code)
	app.writer.Wait()
}

func TestRouter_HealthIsNotLogged(t *testing.T) {
	app := newTestApp(t)

	w := app.do(httptest.NewRequest(http.MethodGet, "/health", nil), nil)
	require.Equal(t, http.StatusOK, w.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "closed", body["access_log"])

	app.writer.Wait()
	var access int64
	require.NoError(t, app.db.Model(&models.AuditLog{}).Where("action IS NULL").Count(&access).Error)
	assert.Zero(t, access)
}

func TestRouter_ImportAndAuditAPI(t *testing.T) {
	app := newTestApp(t)
	cookie := app.login(t, "admin", adminPassword)

	payload := `{"items":[
		{"hostname":"nb-1","serial_number":"IMP-1","model":"Notebook","status":"IN_STOCK"},
		{"hostname":"","serial_number":"IMP-2","model":"Notebook","status":"IN_STOCK"}
	]}`
	req := httptest.NewRequest(http.MethodPost, "/api/hardware/import", strings.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	w := app.do(req, cookie)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var res struct {
		Created int `json:"created"`
		Failed  int `json:"failed"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	assert.Equal(t, 1, res.Created)
	assert.Equal(t, 1, res.Failed)
	app.writer.Wait()

	var hw models.Hardware
	require.NoError(t, app.db.Where("serial_number = ?", "IMP-1").First(&hw).Error)

	w = app.do(httptest.NewRequest(http.MethodGet, "/api/audit/history/Hardware/"+hw.PrimaryKey(), nil), cookie)
	require.Equal(t, http.StatusOK, w.Code)
	var page struct {
		Total int64 `json:"total"`
		Logs  []struct {
			Action   string  `json:"action"`
			Username *string `json:"username"`
		} `json:"logs"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &page))
	require.EqualValues(t, 1, page.Total)
	assert.Equal(t, "CREATE", page.Logs[0].Action)
	require.NotNil(t, page.Logs[0].Username)
	assert.Equal(t, "admin", *page.Logs[0].Username)

	w = app.do(httptest.NewRequest(http.MethodGet, "/api/audit/stats?days=1", nil), cookie)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"total_requests"`)
	app.writer.Wait()
}
