package server

import (
	"fmt"
	"net/http"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"hw-inventory/internal/audit"
	"hw-inventory/internal/config"
	"hw-inventory/internal/database"
	"hw-inventory/internal/handlers"
	"hw-inventory/internal/middleware"
	"hw-inventory/web"
)

// NewRouter builds the engine. writer may be nil, which disables the
// request log.
func NewRouter(cfg *config.Config, st *database.Store, writer *audit.AccessLogWriter) (*gin.Engine, error) {
	r := gin.New()
	r.Use(gin.Recovery())

	tmpl, err := web.Templates()
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}
	r.SetHTMLTemplate(tmpl)
	r.StaticFS("/static", http.FS(web.Static()))

	store := cookie.NewStore([]byte(cfg.SessionSecret))
	store.Options(sessions.Options{
		Path:     "/",
		MaxAge:   cfg.SessionExpireHours * 3600,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	r.Use(sessions.Sessions(cfg.SessionCookieName, store))

	r.Use(middleware.RequestID())
	if writer != nil {
		r.Use(middleware.AccessLog(writer, middleware.SessionIdentity, cfg.AuditSkipPaths, cfg.AccessLogMaxBodyBytes))
	}
	r.Use(middleware.Metrics())
	r.Use(middleware.InjectUser(st.DB()))

	handlers.Init(st, cfg.StockThresholds, writer)

	r.GET("/health", handlers.Health)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// AUTH
	r.GET("/login", handlers.ShowLogin)
	r.POST("/login", middleware.LoginRateLimit(cfg.LoginRatePerMinute), handlers.Login)
	r.POST("/logout", handlers.Logout)
	r.GET("/access-denied", handlers.AccessDenied)

	auth := r.Group("/")
	auth.Use(middleware.RequireAuth())
	admin := middleware.RequireAdmin()

	auth.GET("/", handlers.Dashboard)

	// HARDWARE
	auth.GET("/hardware", handlers.ListHardware)
	auth.GET("/hardware/add", admin, handlers.ShowNewHardware)
	auth.POST("/hardware/add", admin, handlers.CreateHardware)
	auth.GET("/hardware/:id", handlers.ShowHardware)
	auth.GET("/hardware/:id/edit", admin, handlers.ShowEditHardware)
	auth.POST("/hardware/:id/edit", admin, handlers.UpdateHardware)
	auth.POST("/hardware/:id/delete", admin, handlers.DeleteHardware)
	auth.DELETE("/hardware/:id", admin, handlers.DeleteHardware)
	auth.POST("/hardware/:id/cycle", admin, handlers.CycleHardwareStatus)
	auth.POST("/hardware/:id/status", admin, handlers.ChangeHardwareStatus)

	// AUDIT
	auth.GET("/audit/logs", admin, handlers.AuditLogs)
	auth.GET("/audit/activity", admin, handlers.AuditActivity)

	// API
	api := r.Group("/api")
	api.Use(middleware.RequireAuth())
	api.GET("/stock", handlers.APIStock)
	api.POST("/hardware/import", admin, handlers.ImportHardware)

	apiAudit := api.Group("/audit", admin)
	apiAudit.GET("/history/:entity/:id", handlers.APIEntityHistory)
	apiAudit.GET("/activity", handlers.APIActivity)
	apiAudit.GET("/stats", handlers.APIStats)
	apiAudit.GET("/errors", handlers.APIErrors)
	apiAudit.GET("/users", handlers.APIUserActivity)

	return r, nil
}
