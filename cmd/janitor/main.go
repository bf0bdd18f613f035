package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/printpoint/handoff/internal/bootstrap"
	"github.com/printpoint/handoff/internal/config"
	"github.com/printpoint/handoff/internal/observability/logging"
	"github.com/printpoint/handoff/internal/observability/metrics"
)

const serviceName = "handoff-janitor"

// The janitor is the backstop for everything the request path cleans up
// opportunistically: staged plaintext past its TTL and pending documents
// whose codes have lapsed.
func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	logger := logging.NewJSONLogger(serviceName, cfg.LogLevel)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg, logger)
	if err != nil {
		logger.Error("bootstrap failed", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	janitorMetrics := metrics.NewJanitorMetrics(serviceName)

	sweep := func() {
		sweepCtx, cancel := context.WithTimeout(ctx, time.Minute)
		defer cancel()
		start := time.Now()

		removed, sweepErr := app.Staging.Sweep(sweepCtx, cfg.StagingMaxAge)
		if sweepErr != nil {
			logger.Error("staging sweep failed", "error", sweepErr)
		}
		janitorMetrics.AddArtifactsRemoved(serviceName, removed)

		reaped, reapErr := app.ExpiryUC.ReapExpired(sweepCtx)
		if reapErr != nil {
			logger.Error("expiry reap failed", "error", reapErr)
		}
		janitorMetrics.AddDocumentsExpired(serviceName, reaped)

		var runErr error
		if sweepErr != nil {
			runErr = sweepErr
		} else if reapErr != nil {
			runErr = reapErr
		}
		janitorMetrics.FinishSweep(serviceName, time.Since(start), runErr)

		logger.Info("sweep finished",
			"artifacts_removed", removed,
			"documents_expired", reaped,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	}

	scheduler := cron.New()
	if _, err := scheduler.AddFunc(cfg.SweepSchedule, sweep); err != nil {
		logger.Error("invalid sweep schedule", "schedule", cfg.SweepSchedule, "error", err)
		os.Exit(1)
	}

	// One pass at startup so a restart never extends an artifact's life.
	sweep()
	scheduler.Start()

	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", janitorMetrics.Handler())
	metricsMux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	metricsServer := &http.Server{
		Addr:    ":" + cfg.JanitorMetricsPort,
		Handler: metricsMux,
	}
	go func() {
		logger.Info("janitor metrics listening", "port", cfg.JanitorMetricsPort)
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("metrics server failed", "error", err)
		}
	}()

	<-ctx.Done()

	stopCtx := scheduler.Stop()
	select {
	case <-stopCtx.Done():
	case <-time.After(30 * time.Second):
		logger.Warn("sweep still running at shutdown")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = metricsServer.Shutdown(shutdownCtx)
}
