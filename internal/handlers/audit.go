package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"hw-inventory/internal/models"
	"hw-inventory/internal/services"
)

const noData = "Audit data is currently unavailable."

// AuditLogs shows request statistics and recent errors.
func AuditLogs(c *gin.Context) {
	ctx := c.Request.Context()
	days := queryInt(c, "days", 30)

	stats := auditSvc.LogStatistics(ctx, days)
	errs := auditSvc.RecentErrors(ctx, queryInt(c, "limit", 50))

	data := gin.H{
		"Days":   days,
		"Stats":  stats,
		"Errors": errs,
	}
	if stats == nil || errs == nil {
		data["error"] = noData
	}
	render(c, http.StatusOK, "audit_logs.html", data)
}

// AuditActivity is the feed of entity changes.
func AuditActivity(c *gin.Context) {
	filter := activityFilter(c)
	feed := auditSvc.ActivityFeed(c.Request.Context(), filter)

	data := gin.H{
		"Feed":    feed,
		"Filter":  filter,
		"Actions": models.EntityActions,
		"Query":   c.Request.URL.Query(),
	}
	if feed == nil {
		data["error"] = noData
	}
	render(c, http.StatusOK, "audit_activity.html", data)
}

func activityFilter(c *gin.Context) services.ActivityFilter {
	return services.ActivityFilter{
		Page:       queryInt(c, "page", 1),
		Limit:      queryInt(c, "limit", 50),
		Username:   c.Query("username"),
		Action:     c.Query("action"),
		EntityName: c.Query("entity_name"),
	}
}

// JSON

// unavailable is the body of read endpoints whose query failed.
func unavailable(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"data": nil, "message": noData})
}

func APIEntityHistory(c *gin.Context) {
	page := auditSvc.EntityHistory(c.Request.Context(), c.Param("entity"), c.Param("id"),
		queryInt(c, "page", 1), queryInt(c, "limit", 100))
	if page == nil {
		unavailable(c)
		return
	}
	c.JSON(http.StatusOK, page)
}

func APIActivity(c *gin.Context) {
	feed := auditSvc.ActivityFeed(c.Request.Context(), activityFilter(c))
	if feed == nil {
		unavailable(c)
		return
	}
	c.JSON(http.StatusOK, feed)
}

func APIStats(c *gin.Context) {
	stats := auditSvc.LogStatistics(c.Request.Context(), queryInt(c, "days", 30))
	if stats == nil {
		unavailable(c)
		return
	}
	c.JSON(http.StatusOK, stats)
}

func APIErrors(c *gin.Context) {
	errs := auditSvc.RecentErrors(c.Request.Context(), queryInt(c, "limit", 50))
	if errs == nil {
		unavailable(c)
		return
	}
	c.JSON(http.StatusOK, gin.H{"errors": errs})
}

func APIUserActivity(c *gin.Context) {
	activity := auditSvc.UserActivity(c.Request.Context(), c.Query("username"), queryInt(c, "days", 7))
	if activity == nil {
		unavailable(c)
		return
	}
	c.JSON(http.StatusOK, gin.H{"activity": activity})
}

// APIStock exposes the threshold summary used by the dashboard.
func APIStock(c *gin.Context) {
	summary, err := stockSvc.Summary(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}
