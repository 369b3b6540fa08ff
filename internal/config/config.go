package config

import (
	"errors"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"hw-inventory/internal/models"
)

type Config struct {
	DBDriver string
	DBDSN    string

	ServerPort string
	BaseURL    string

	SessionSecret      string
	SessionCookieName  string
	SessionExpireHours int

	LogLevel  string
	LogFormat string

	AuditSkipPaths        []string
	AccessLogTimeout      time.Duration
	AccessLogMaxBodyBytes int64

	LoginRatePerMinute int

	AdminUsername string
	AdminPassword string

	// StockThresholds maps a hardware model to the minimum IN_STOCK count.
	StockThresholds map[models.HardwareModel]int
}

var DefaultSkipPaths = []string{
	"/static/",
	"/docs",
	"/redoc",
	"/openapi.json",
	"/health",
	"/favicon.ico",
	"/metrics",
}

var thresholdKeys = map[models.HardwareModel]string{
	models.ModelAllInOne:       "THRESHOLD_ALL_IN_ONE",
	models.ModelNotebook:       "THRESHOLD_NOTEBOOK",
	models.ModelDockingStation: "THRESHOLD_DOCKING_STATION",
	models.ModelMFF:            "THRESHOLD_MICRO_FORM_FACTOR",
	models.ModelMonitor:        "THRESHOLD_MONITOR",
	models.ModelBackpack:       "THRESHOLD_BACKPACK",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("DB_DRIVER", "postgres")
	v.SetDefault("SERVER_PORT", "8080")
	v.SetDefault("BASE_URL", "http://localhost:8080")
	v.SetDefault("SESSION_COOKIE_NAME", "inventory_session")
	v.SetDefault("SESSION_EXPIRE_HOURS", 8)
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")
	v.SetDefault("AUDIT_SKIP_PATHS", strings.Join(DefaultSkipPaths, ","))
	v.SetDefault("ACCESS_LOG_TIMEOUT", 5*time.Second)
	v.SetDefault("AUDIT_MAX_BODY_BYTES", 10<<20)
	v.SetDefault("LOGIN_RATE_PER_MINUTE", 10)
	v.SetDefault("ADMIN_USERNAME", "admin")
	v.SetDefault("ADMIN_PASSWORD", "Admin123!")

	v.SetDefault("THRESHOLD_ALL_IN_ONE", 4)
	v.SetDefault("THRESHOLD_NOTEBOOK", 4)
	v.SetDefault("THRESHOLD_DOCKING_STATION", 4)
	v.SetDefault("THRESHOLD_MICRO_FORM_FACTOR", 2)
	v.SetDefault("THRESHOLD_MONITOR", 3)
	v.SetDefault("THRESHOLD_BACKPACK", 4)
}

// Load reads .env (if any) and the process environment.
func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.AutomaticEnv()
	setDefaults(v)

	cfg := &Config{
		DBDriver:              strings.ToLower(v.GetString("DB_DRIVER")),
		DBDSN:                 v.GetString("DB_DSN"),
		ServerPort:            v.GetString("SERVER_PORT"),
		BaseURL:               strings.TrimRight(v.GetString("BASE_URL"), "/"),
		SessionSecret:         v.GetString("SESSION_SECRET"),
		SessionCookieName:     v.GetString("SESSION_COOKIE_NAME"),
		SessionExpireHours:    v.GetInt("SESSION_EXPIRE_HOURS"),
		LogLevel:              v.GetString("LOG_LEVEL"),
		LogFormat:             v.GetString("LOG_FORMAT"),
		AuditSkipPaths:        splitList(v.GetString("AUDIT_SKIP_PATHS")),
		AccessLogTimeout:      v.GetDuration("ACCESS_LOG_TIMEOUT"),
		AccessLogMaxBodyBytes: v.GetInt64("AUDIT_MAX_BODY_BYTES"),
		LoginRatePerMinute:    v.GetInt("LOGIN_RATE_PER_MINUTE"),
		AdminUsername:         v.GetString("ADMIN_USERNAME"),
		AdminPassword:         v.GetString("ADMIN_PASSWORD"),
		StockThresholds:       make(map[models.HardwareModel]int, len(thresholdKeys)),
	}
	for model, key := range thresholdKeys {
		cfg.StockThresholds[model] = v.GetInt(key)
	}

	if cfg.DBDSN == "" {
		return nil, errors.New("DB_DSN is not set")
	}
	if cfg.SessionSecret == "" {
		return nil, errors.New("SESSION_SECRET is not set")
	}
	if cfg.DBDriver != "postgres" && cfg.DBDriver != "sqlite" {
		return nil, errors.New("DB_DRIVER must be postgres or sqlite")
	}

	return cfg, nil
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
