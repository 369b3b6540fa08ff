package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/avast/retry-go/v5"
	"github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"hw-inventory/internal/logging"
	"hw-inventory/internal/models"
)

var (
	DB *gorm.DB
	// Default is the store used by handlers; it carries the audit hooks.
	Default *Store
)

const (
	connectAttempts = 10
	connectDelay    = 2 * time.Second
)

// Open connects once without retrying.
func Open(driver, dsn string, debug bool) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch driver {
	case "postgres", "":
		dialector = postgres.Open(dsn)
	case "sqlite":
		dialector = sqlite.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}

	level := logger.Silent
	if debug {
		level = logger.Info
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:  logger.Default.LogMode(level),
		NowFunc: func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		return nil, err
	}

	if driver == "sqlite" {
		// one connection: sqlite serialises writers anyway and in-memory
		// databases are per connection
		sqlDB, err := db.DB()
		if err != nil {
			return nil, err
		}
		sqlDB.SetMaxOpenConns(1)
	}
	return db, nil
}

// Connect opens the database, retrying while it comes up.
func Connect(ctx context.Context, driver, dsn string, debug bool) (*gorm.DB, error) {
	var db *gorm.DB
	attempt := 0

	r := retry.New(
		retry.Context(ctx),
		retry.Attempts(connectAttempts),
		retry.DelayType(func(n uint, err error, config retry.DelayContext) time.Duration {
			return connectDelay
		}),
	)
	err := r.Do(func() error {
		attempt++
		logging.Info().Int("attempt", attempt).Int("max", connectAttempts).Msg("connecting to database")

		conn, err := Open(driver, dsn, debug)
		if err != nil {
			logging.Warn().Err(err).Msg("failed to connect to database")
			return err
		}
		db = conn
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("connect to database after %d attempts: %w", attempt, err)
	}

	logging.Info().Str("driver", driver).Msg("connected to database")
	return db, nil
}

func Migrate(db *gorm.DB) error {
	if db == nil {
		return errors.New("database is not initialised")
	}
	return db.AutoMigrate(
		&models.User{},
		&models.Hardware{},
		&models.AuditLog{},
	)
}

// Init wires the package-level DB and Default store used by the HTTP layer.
func Init(ctx context.Context, driver, dsn string, debug bool, hooks ...Hook) error {
	db, err := Connect(ctx, driver, dsn, debug)
	if err != nil {
		return err
	}
	if err := Migrate(db); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	Use(db, hooks...)
	return nil
}

// Use installs db as the package-level database.
func Use(db *gorm.DB, hooks ...Hook) {
	DB = db
	Default = NewStore(db, hooks...)
}
