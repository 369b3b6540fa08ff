package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"hw-inventory/internal/audit"
	"hw-inventory/internal/database"
	"hw-inventory/internal/middleware"
	"hw-inventory/internal/models"
	"hw-inventory/internal/services"
)

// Services shared by all handlers; Init wires them at startup.
var (
	store       *database.Store
	hardwareSvc *services.HardwareService
	auditSvc    *services.AuditService
	stockSvc    *services.StockService
	accessLog   interface{ State() string }
)

// Init must run before the router serves requests. writer may be nil.
func Init(st *database.Store, thresholds map[models.HardwareModel]int, writer *audit.AccessLogWriter) {
	store = st
	hardwareSvc = services.NewHardwareService(st)
	auditSvc = services.NewAuditService(st.DB())
	stockSvc = services.NewStockService(st.DB(), thresholds)
	accessLog = nil
	if writer != nil {
		accessLog = writer
	}
}

// render wraps c.HTML and passes the current user to every template.
func render(c *gin.Context, status int, tmpl string, data gin.H) {
	if data == nil {
		data = gin.H{}
	}

	if u := middleware.CurrentUser(c); u != nil {
		data["CurrentUser"] = u
		data["CurrentUsername"] = u.Username
		data["CurrentUserRole"] = u.Role
		data["IsAdmin"] = u.IsAdmin()
	}
	data["Path"] = c.Request.URL.Path
	data["RequestID"] = middleware.GetRequestID(c)

	c.HTML(status, tmpl, data)
}

func renderError(c *gin.Context, status int, msg string) {
	render(c, status, "error.html", gin.H{
		"Status":  status,
		"Message": msg,
	})
}

// wantsJSON is true for API paths and XHR calls from the list page.
func wantsJSON(c *gin.Context) bool {
	return strings.HasPrefix(c.Request.URL.Path, "/api/") ||
		c.GetHeader("X-Requested-With") == "XMLHttpRequest" ||
		strings.Contains(c.GetHeader("Accept"), "application/json")
}

// fail maps service errors to a status, records the error for the access
// log and answers in the format the caller expects.
func fail(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	msg := "internal server error"
	switch {
	case errors.Is(err, services.ErrHardwareNotFound), errors.Is(err, database.ErrNotFound):
		status, msg = http.StatusNotFound, err.Error()
	case errors.Is(err, services.ErrInvalidInput), errors.Is(err, services.ErrDuplicateSerial),
		errors.Is(err, services.ErrFinalStatus):
		status, msg = http.StatusBadRequest, err.Error()
	}
	_ = c.Error(err)

	if wantsJSON(c) {
		c.JSON(status, gin.H{"error": msg})
		return
	}
	renderError(c, status, msg)
}

func paramID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		fail(c, services.ErrHardwareNotFound)
		return 0, false
	}
	return uint(id), true
}

func queryInt(c *gin.Context, key string, def int) int {
	if v, err := strconv.Atoi(c.Query(key)); err == nil {
		return v
	}
	return def
}

// actorName is the username written to the admin column.
func actorName(c *gin.Context) string {
	if u := middleware.CurrentUser(c); u != nil {
		return u.Username
	}
	if rc, ok := audit.FromContext(c.Request.Context()); ok && rc.Username != "" {
		return rc.Username
	}
	return "system"
}
