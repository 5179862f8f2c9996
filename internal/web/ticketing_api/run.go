package ticketing_api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"tarediiran-industries.com/ticketing-services/internal/authz"
	"tarediiran-industries.com/ticketing-services/internal/common"
	database "tarediiran-industries.com/ticketing-services/internal/db"
	"tarediiran-industries.com/ticketing-services/internal/store"
)

const sessionPurgeInterval = 10 * time.Minute

func Run(cfg Config, errOut io.Writer) int {
	logger, err := common.NewLogger(cfg.LogLevel, cfg.LogFormat, errOut)
	if err != nil {
		fmt.Fprintln(errOut, "Error:", err)
		return -1
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("ticketing api stopped", "error", err)
		return -1
	}
	return 0
}

func run(ctx context.Context, cfg Config, logger *slog.Logger) error {
	dialect, err := database.ParseDialect(cfg.DatabaseDriver)
	if err != nil {
		return err
	}
	db, err := database.NewDatabaseConnection(ctx, dialect, cfg.DatabaseConnection)
	if err != nil {
		return err
	}
	defer db.Close()

	if cfg.Migrate {
		if err := db.Migrate(ctx); err != nil {
			return err
		}
		logger.Info("schema applied", "driver", dialect)
	}

	authorizer, err := authz.NewAuthorizer(ctx)
	if err != nil {
		return err
	}

	telemetry := common.NewTelemetryServer(cfg.TelemetryAddress, logger)
	metrics := common.NewMetrics(telemetry.GetRegistry())
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

	ticketingStore := store.New(db)
	server, err := NewServer(Options{
		Store:          ticketingStore,
		Authorizer:     authorizer,
		Metrics:        metrics,
		Logger:         logger,
		SessionTTL:     cfg.SessionTTL,
		RequestTimeout: cfg.RequestTimeout,
	})
	if err != nil {
		return err
	}

	group, ctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		return server.Serve(ctx, cfg.ListenAddress)
	})
	group.Go(func() error {
		purgeSessions(ctx, ticketingStore, logger)
		return nil
	})
	return group.Wait()
}

func purgeSessions(ctx context.Context, ticketingStore *store.Store, logger *slog.Logger) {
	ticker := time.NewTicker(sessionPurgeInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			purged, err := ticketingStore.PurgeExpiredSessions(ctx)
			if err != nil {
				logger.Warn("session purge failed", "error", err)
				continue
			}
			if purged > 0 {
				logger.Info("expired sessions purged", "count", purged)
			}
		}
	}
}

// Serve listens until ctx is cancelled, then drains in-flight requests.
func (server *Server) Serve(ctx context.Context, listenAddr string) error {
	httpServer := &http.Server{
		Addr:              listenAddr,
		Handler:           server.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- httpServer.ListenAndServe()
	}()
	server.logger.Info("listening", "addr", listenAddr)

	select {
	case err := <-serveErr:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	server.logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return httpServer.Shutdown(shutdownCtx)
}
