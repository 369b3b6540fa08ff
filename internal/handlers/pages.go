package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"hw-inventory/internal/logging"
	"hw-inventory/internal/models"
)

const dashboardRecent = 10

func Dashboard(c *gin.Context) {
	ctx := c.Request.Context()

	counts, err := hardwareSvc.StatusCounts(ctx)
	if err != nil {
		fail(c, err)
		return
	}
	var total int64
	for _, n := range counts {
		total += n
	}

	recent, err := hardwareSvc.Recent(ctx, dashboardRecent)
	if err != nil {
		fail(c, err)
		return
	}

	stock, err := stockSvc.Summary(ctx)
	if err != nil {
		// the dashboard still works without alerts
		logging.Ctx(ctx).Error().Err(err).Msg("failed to load stock summary")
	}

	render(c, http.StatusOK, "dashboard.html", gin.H{
		"Total":        total,
		"StatusCounts": counts,
		"Statuses":     models.HardwareStatuses,
		"Recent":       recent,
		"Stock":        stock,
		"Models":       models.HardwareModels,
	})
}

// Health reports database reachability and the access-log breaker state.
func Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	body := gin.H{"status": "ok", "database": "ok"}
	status := http.StatusOK

	sqlDB, err := store.DB().DB()
	if err == nil {
		err = sqlDB.PingContext(ctx)
	}
	if err != nil {
		body["status"] = "degraded"
		body["database"] = err.Error()
		status = http.StatusServiceUnavailable
	}
	if accessLog != nil {
		body["access_log"] = accessLog.State()
	}

	c.JSON(status, body)
}
