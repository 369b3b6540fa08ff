package main

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"hw-inventory/internal/audit"
	"hw-inventory/internal/config"
	"hw-inventory/internal/database"
	"hw-inventory/internal/logging"
	"hw-inventory/internal/server"
)

const shutdownTimeout = 15 * time.Second

var debugSQL bool

func main() {
	root := &cobra.Command{
		Use:           "hw-inventory",
		Short:         "Hardware inventory with audit trail",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          runServe,
	}
	root.PersistentFlags().BoolVar(&debugSQL, "debug-sql", false, "log every SQL statement (also on with LOG_LEVEL=debug)")

	seed := &cobra.Command{
		Use:   "seed",
		Short: "Insert random hardware for demos",
		RunE:  runSeed,
	}
	seed.Flags().Int("count", 50, "number of devices to create")

	root.AddCommand(
		&cobra.Command{Use: "serve", Short: "Run the HTTP server", RunE: runServe},
		&cobra.Command{Use: "migrate", Short: "Create or update the schema", RunE: runMigrate},
		seed,
	)

	if err := root.Execute(); err != nil {
		logging.Error().Err(err).Msg("command failed")
		os.Exit(1)
	}
}

// setup loads config, configures logging and opens the audited store.
func setup(ctx context.Context) (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	logging.Init(logging.Config{Level: cfg.LogLevel, Format: cfg.LogFormat})

	debug := debugSQL || strings.EqualFold(cfg.LogLevel, "debug")
	if err := database.Init(ctx, cfg.DBDriver, cfg.DBDSN, debug, audit.Recorder{}); err != nil {
		return nil, err
	}
	return cfg, nil
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := setup(ctx)
	if err != nil {
		return err
	}
	if err := database.EnsureAdmin(ctx, database.Default, cfg.AdminUsername, cfg.AdminPassword); err != nil {
		return err
	}

	if cfg.LogLevel != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	writer := audit.NewAccessLogWriter(database.DB, cfg.AccessLogTimeout)
	r, err := server.NewRouter(cfg, database.Default, writer)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logging.Info().Str("addr", srv.Addr).Str("base_url", cfg.BaseURL).Msg("starting server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	case <-ctx.Done():
	}

	logging.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logging.Error().Err(err).Msg("graceful shutdown failed")
	}

	// pending request-log rows
	writer.Wait()
	return nil
}

func runMigrate(cmd *cobra.Command, _ []string) error {
	if _, err := setup(cmd.Context()); err != nil {
		return err
	}
	logging.Info().Msg("schema is up to date")
	return nil
}

func runSeed(cmd *cobra.Command, _ []string) error {
	count, err := cmd.Flags().GetInt("count")
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	cfg, err := setup(ctx)
	if err != nil {
		return err
	}
	if err := database.EnsureAdmin(ctx, database.Default, cfg.AdminUsername, cfg.AdminPassword); err != nil {
		return err
	}

	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	created, err := database.SeedHardware(ctx, database.Default, count, rng)
	if err != nil {
		return err
	}
	logging.Info().Int("created", created).Int("requested", count).Msg("seeded hardware")
	return nil
}
