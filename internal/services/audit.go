// Package services holds the read and write operations behind the HTTP
// handlers. Writes go through database.Store so every mutation is audited.
package services

import (
	"context"
	"database/sql"
	"math"
	"strconv"
	"time"

	"gorm.io/gorm"

	"hw-inventory/internal/logging"
	"hw-inventory/internal/models"
)

const (
	defaultHistoryLimit = 100
	maxHistoryLimit     = 500
	defaultErrorLimit   = 50
	topEndpointLimit    = 10
	userActivityLimit   = 100
)

// AuditService answers read-only questions about the audit table. Every
// method logs and returns nil when the query fails, and an empty result when
// nothing matches.
type AuditService struct {
	db  *gorm.DB
	now func() time.Time
}

func NewAuditService(db *gorm.DB) *AuditService {
	return &AuditService{db: db, now: func() time.Time { return time.Now().UTC() }}
}

type HistoryEntry struct {
	ID         uint           `json:"id"`
	Timestamp  time.Time      `json:"timestamp"`
	Username   *string        `json:"username"`
	Action     string         `json:"action"`
	EntityName string         `json:"entity_name"`
	EntityID   string         `json:"entity_id"`
	Changes    map[string]any `json:"changes"`
	Method     *string        `json:"method"`
	Path       *string        `json:"path"`
	RequestID  *string        `json:"request_id,omitempty"`
}

type LogPage struct {
	Logs  []HistoryEntry `json:"logs"`
	Total int64          `json:"total"`
	Page  int            `json:"page"`
	Limit int            `json:"limit"`
}

// TotalPages is used by the pager in templates.
func (p *LogPage) TotalPages() int {
	if p == nil || p.Limit <= 0 {
		return 0
	}
	return int((p.Total + int64(p.Limit) - 1) / int64(p.Limit))
}

type ActivityFilter struct {
	Page       int
	Limit      int
	Username   string
	Action     string
	EntityName string
}

type EndpointCount struct {
	Path  string `json:"path"`
	Count int64  `json:"count"`
}

type LogStatistics struct {
	PeriodDays        int              `json:"period_days"`
	TotalRequests     int64            `json:"total_requests"`
	ErrorCount        int64            `json:"error_count"`
	ErrorRate         float64          `json:"error_rate"`
	AvgResponseTimeMs float64          `json:"avg_response_time_ms"`
	StatusCodes       map[string]int64 `json:"status_codes"`
	TopEndpoints      []EndpointCount  `json:"top_endpoints"`
}

type ErrorEntry struct {
	Timestamp      time.Time `json:"timestamp"`
	Method         *string   `json:"method"`
	Path           *string   `json:"path"`
	StatusCode     *int      `json:"status_code"`
	RemoteAddr     *string   `json:"remote_addr"`
	UserAgent      *string   `json:"user_agent"`
	ErrorMessage   *string   `json:"error_message"`
	ResponseTimeMs *float64  `json:"response_time_ms"`
}

type ActivityEntry struct {
	Timestamp      time.Time `json:"timestamp"`
	Username       *string   `json:"username"`
	Method         *string   `json:"method"`
	Path           *string   `json:"path"`
	StatusCode     *int      `json:"status_code"`
	RemoteAddr     *string   `json:"remote_addr"`
	ResponseTimeMs *float64  `json:"response_time_ms"`
}

func entityActions() []string {
	out := make([]string, len(models.EntityActions))
	for i, a := range models.EntityActions {
		out[i] = string(a)
	}
	return out
}

func normalizePage(page, limit, def int) (int, int) {
	if page < 1 {
		page = 1
	}
	if limit <= 0 {
		limit = def
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}
	return page, limit
}

// EntityHistory pages through the change records of one entity, newest first.
func (s *AuditService) EntityHistory(ctx context.Context, entityName, entityID string, page, limit int) *LogPage {
	page, limit = normalizePage(page, limit, defaultHistoryLimit)

	q := s.db.WithContext(ctx).Model(&models.AuditLog{}).
		Where("entity_name = ? AND entity_id = ? AND action IN ?", entityName, entityID, entityActions())

	out, err := s.logPage(q, page, limit)
	if err != nil {
		logging.Ctx(ctx).Error().Err(err).
			Str("entity_name", entityName).
			Str("entity_id", entityID).
			Msg("failed to load entity history")
		return nil
	}
	return out
}

// ActivityFeed pages through all change records, optionally narrowed.
func (s *AuditService) ActivityFeed(ctx context.Context, f ActivityFilter) *LogPage {
	page, limit := normalizePage(f.Page, f.Limit, defaultHistoryLimit)

	q := s.db.WithContext(ctx).Model(&models.AuditLog{}).Where("action IN ?", entityActions())
	if f.Username != "" {
		q = q.Where("username = ?", f.Username)
	}
	if f.Action != "" {
		q = q.Where("action = ?", f.Action)
	}
	if f.EntityName != "" {
		q = q.Where("entity_name = ?", f.EntityName)
	}

	out, err := s.logPage(q, page, limit)
	if err != nil {
		logging.Ctx(ctx).Error().Err(err).Msg("failed to load activity feed")
		return nil
	}
	return out
}

func (s *AuditService) logPage(q *gorm.DB, page, limit int) (*LogPage, error) {
	var total int64
	if err := q.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, err
	}

	var rows []models.AuditLog
	if err := q.Session(&gorm.Session{}).
		Order("timestamp DESC").Order("id DESC").
		Offset((page - 1) * limit).Limit(limit).
		Find(&rows).Error; err != nil {
		return nil, err
	}

	out := &LogPage{Logs: make([]HistoryEntry, 0, len(rows)), Total: total, Page: page, Limit: limit}
	for _, r := range rows {
		out.Logs = append(out.Logs, HistoryEntry{
			ID:         r.ID,
			Timestamp:  r.Timestamp,
			Username:   r.Username,
			Action:     r.ActionName(),
			EntityName: r.EntityNameValue(),
			EntityID:   r.EntityIDValue(),
			Changes:    r.Changes,
			Method:     r.Method,
			Path:       r.Path,
			RequestID:  r.RequestID,
		})
	}
	return out, nil
}

// LogStatistics summarises access-log rows of the trailing window.
func (s *AuditService) LogStatistics(ctx context.Context, days int) *LogStatistics {
	if days <= 0 {
		days = 30
	}
	stats, err := s.logStatistics(ctx, days)
	if err != nil {
		logging.Ctx(ctx).Error().Err(err).Int("days", days).Msg("failed to compute log statistics")
		return nil
	}
	return stats
}

func (s *AuditService) logStatistics(ctx context.Context, days int) (*LogStatistics, error) {
	cutoff := s.now().Add(-time.Duration(days) * 24 * time.Hour)
	window := func() *gorm.DB {
		return s.db.WithContext(ctx).Model(&models.AuditLog{}).
			Where("timestamp >= ? AND action IS NULL", cutoff)
	}

	stats := &LogStatistics{
		PeriodDays:   days,
		StatusCodes:  map[string]int64{},
		TopEndpoints: []EndpointCount{},
	}

	if err := window().Count(&stats.TotalRequests).Error; err != nil {
		return nil, err
	}
	if err := window().Where("status_code >= ?", 400).Count(&stats.ErrorCount).Error; err != nil {
		return nil, err
	}

	var avg sql.NullFloat64
	if err := window().Where("response_time_ms IS NOT NULL").
		Select("AVG(response_time_ms)").Row().Scan(&avg); err != nil {
		return nil, err
	}
	if avg.Valid {
		stats.AvgResponseTimeMs = math.Round(avg.Float64*100) / 100
	}
	if stats.TotalRequests > 0 {
		rate := float64(stats.ErrorCount) / float64(stats.TotalRequests) * 100
		stats.ErrorRate = math.Round(rate*100) / 100
	}

	var byStatus []struct {
		StatusCode *int
		Hits       int64
	}
	if err := window().Select("status_code, COUNT(id) AS hits").
		Group("status_code").Scan(&byStatus).Error; err != nil {
		return nil, err
	}
	for _, row := range byStatus {
		key := "unknown"
		if row.StatusCode != nil {
			key = strconv.Itoa(*row.StatusCode)
		}
		stats.StatusCodes[key] += row.Hits
	}

	var byPath []struct {
		Path *string
		Hits int64
	}
	if err := window().Select("path, COUNT(id) AS hits").
		Group("path").Order("hits DESC").Limit(topEndpointLimit).
		Scan(&byPath).Error; err != nil {
		return nil, err
	}
	for _, row := range byPath {
		path := ""
		if row.Path != nil {
			path = *row.Path
		}
		stats.TopEndpoints = append(stats.TopEndpoints, EndpointCount{Path: path, Count: row.Hits})
	}

	return stats, nil
}

// RecentErrors returns the newest access-log rows with status >= 400.
func (s *AuditService) RecentErrors(ctx context.Context, limit int) []ErrorEntry {
	if limit <= 0 {
		limit = defaultErrorLimit
	}

	var rows []models.AuditLog
	err := s.db.WithContext(ctx).
		Where("status_code >= ? AND action IS NULL", 400).
		Order("timestamp DESC").Order("id DESC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		logging.Ctx(ctx).Error().Err(err).Msg("failed to load recent errors")
		return nil
	}

	out := make([]ErrorEntry, 0, len(rows))
	for _, r := range rows {
		out = append(out, ErrorEntry{
			Timestamp:      r.Timestamp,
			Method:         r.Method,
			Path:           r.Path,
			StatusCode:     r.StatusCode,
			RemoteAddr:     r.RemoteAddr,
			UserAgent:      r.UserAgent,
			ErrorMessage:   r.ErrorMessage,
			ResponseTimeMs: r.ResponseTimeMs,
		})
	}
	return out
}

// UserActivity lists the latest requests of one user, or of everyone when
// username is empty.
func (s *AuditService) UserActivity(ctx context.Context, username string, days int) []ActivityEntry {
	if days <= 0 {
		days = 7
	}
	cutoff := s.now().Add(-time.Duration(days) * 24 * time.Hour)

	q := s.db.WithContext(ctx).Where("timestamp >= ? AND action IS NULL", cutoff)
	if username != "" {
		q = q.Where("username = ?", username)
	}

	var rows []models.AuditLog
	if err := q.Order("timestamp DESC").Order("id DESC").Limit(userActivityLimit).Find(&rows).Error; err != nil {
		logging.Ctx(ctx).Error().Err(err).Str("username", username).Msg("failed to load user activity")
		return nil
	}

	out := make([]ActivityEntry, 0, len(rows))
	for _, r := range rows {
		out = append(out, ActivityEntry{
			Timestamp:      r.Timestamp,
			Username:       r.Username,
			Method:         r.Method,
			Path:           r.Path,
			StatusCode:     r.StatusCode,
			RemoteAddr:     r.RemoteAddr,
			ResponseTimeMs: r.ResponseTimeMs,
		})
	}
	return out
}
