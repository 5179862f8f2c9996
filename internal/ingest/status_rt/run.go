package status_rt

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"tarediiran-industries.com/ticketing-services/internal/common"
	"tarediiran-industries.com/ticketing-services/internal/db"
	"tarediiran-industries.com/ticketing-services/internal/store"
)

func Run(cfg Config, errOut io.Writer) int {
	logger, err := common.NewLogger(cfg.LogLevel, cfg.LogFormat, errOut)
	if err != nil {
		fmt.Fprintln(errOut, "Error:", err)
		return -1
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("status watcher stopped", "error", err)
		return -1
	}
	logger.Info("finished")
	return 0
}

func run(ctx context.Context, cfg Config, logger *slog.Logger) error {
	dialect, err := db.ParseDialect(cfg.DatabaseDriver)
	if err != nil {
		return err
	}
	database, err := db.NewDatabaseConnection(ctx, dialect, cfg.DatabaseConnection)
	if err != nil {
		return err
	}
	defer database.Close()

	telemetry := common.NewTelemetryServer(cfg.TelemetryAddress, logger)
	metrics := common.NewFeedMetrics(telemetry.GetRegistry())
	if cfg.TelemetryAddress != "" {
		if err := telemetry.Start(); err != nil {
			return fmt.Errorf("failed to start telemetry: %w", err)
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			telemetry.Stop(shutdownCtx)
		}()
	}

	watcher := NewStatusWatcher(cfg.Urls, store.New(database), metrics, logger, cfg.Interval, cfg.DelayThreshold)
	if cfg.Once {
		return watcher.SampleEndpoints(ctx)
	}
	return watcher.Watch(ctx)
}
