// File: cmd/app/main.go
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"payment-reconciler/internal/application"
	"payment-reconciler/internal/config"
	pg "payment-reconciler/internal/infra/db/postgres"
	"payment-reconciler/internal/infra/logging"
	"payment-reconciler/internal/infra/metrics"
	"payment-reconciler/internal/infra/sched"
)

// Set with -ldflags "-X main.version=... -X main.commit=...".
var (
	version = "dev"
	commit  = "none"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		// No logger yet; the config decides its format.
		os.Stderr.WriteString("config: " + err.Error() + "\n")
		os.Exit(1)
	}

	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	if cfg.Runtime.Dev {
		logger.Warn().Msg("[DEV MODE] Enabled")
	}

	metrics.MustRegister()
	metrics.SetBuildInfo(version, commit)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ---- Dependencies ----
	app, err := application.Build(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("startup failed")
	}
	defer func() {
		if err := app.Close(); err != nil {
			logger.Error().Err(err).Msg("shutdown: close dependencies")
		}
	}()

	go pg.ReportPoolStats(ctx, app.Pool, 15*time.Second)

	// ---- Expiry worker ----
	if cfg.Sweep.Enabled {
		worker := sched.NewExpiryWorker(cfg.Sweep.Interval, cfg.Sweep.Cutoff, app.SweepRunner, logger)
		go func() { _ = worker.Run(ctx) }()
	} else {
		logger.Info().Msg("expiry worker disabled; trigger sweeps with reconcilerctl or POST /admin/sweep")
	}

	// ---- HTTP ----
	server := app.Server()
	errc := make(chan error, 1)
	go func() { errc <- server.Start() }()

	select {
	case <-ctx.Done():
		logger.Info().Msg("shutdown requested")
	case err := <-errc:
		if err != nil {
			logger.Error().Err(err).Msg("http server stopped")
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("shutdown: http server")
	}
}
