package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/voxgate/voxgate/internal/platform/config"
	"github.com/voxgate/voxgate/internal/platform/database"
	"github.com/voxgate/voxgate/internal/platform/logger"
	"github.com/voxgate/voxgate/internal/platform/messagebroker"
	"github.com/voxgate/voxgate/internal/voice/adapters/billing"
	"github.com/voxgate/voxgate/internal/voice/adapters/notify"
	"github.com/voxgate/voxgate/internal/voice/adapters/telephony"
	"github.com/voxgate/voxgate/internal/voice/app"
	"github.com/voxgate/voxgate/internal/voice/repository/postgres"
)

const (
	serviceName     = "reconciliation_service"
	shutdownTimeout = 10 * time.Second
)

func main() {
	mainCtx, mainCancel := context.WithCancel(context.Background())
	defer mainCancel()

	cfg, err := config.Load(serviceName)
	if err != nil {
		slog.Error("failed to load configuration", "service", serviceName, "error", err)
		os.Exit(1)
	}

	appLogger := logger.New(cfg.LogLevel).With("service", serviceName)
	appLogger.Info("starting service",
		"sweep_interval", cfg.SweepInterval,
		"batch_size", cfg.SweepBatchSize,
		"metrics_port", cfg.SweepMetricsPort,
	)

	dbPool, err := database.NewDBPool(mainCtx, cfg.PostgresDSN, appLogger)
	if err != nil {
		appLogger.Error("failed to initialize database connection pool", "error", err)
		os.Exit(1)
	}
	defer dbPool.Close()

	nc, err := messagebroker.NewNATSClient(cfg.NATSUrl, appLogger, serviceName)
	if err != nil {
		appLogger.Error("failed to connect to NATS", "error", err)
		os.Exit(1)
	}
	defer nc.Close()

	numberRepo := postgres.NewPgPhoneNumberRepository(dbPool, appLogger)
	accountRepo := postgres.NewPgAccountRepository(dbPool, appLogger)
	telephonyClient := telephony.NewRESTClient(appLogger, cfg.TelephonyAPIURL, cfg.TelephonyAccountSID, cfg.TelephonyAuthToken, nil)
	billingClient := billing.NewRESTClient(appLogger, cfg.BillingAPIURL, cfg.BillingAPIKey, nil)
	notifier := notify.NewNATSNotifier(nc, appLogger)

	sweep := app.NewReconciliationService(
		numberRepo, accountRepo, telephonyClient, billingClient, notifier,
		app.DefaultSweepConfig(cfg.SweepBatchSize, cfg.AllowedOperatingRoles),
		appLogger,
	)

	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", promhttp.Handler())
	metricsServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.SweepMetricsPort),
		Handler: metricsMux,
	}

	g, groupCtx := errgroup.WithContext(mainCtx)

	g.Go(func() error {
		ticker := time.NewTicker(cfg.SweepInterval)
		defer ticker.Stop()
		for {
			processed, err := sweep.Run(groupCtx)
			if err != nil {
				appLogger.Error("sweep invocation failed", "error", err)
			} else {
				appLogger.Info("sweep invocation finished", "owners_processed", processed)
			}
			select {
			case <-ticker.C:
			case <-groupCtx.Done():
				return nil
			}
		}
	})
	g.Go(func() error {
		appLogger.Info("metrics server listening", "addr", metricsServer.Addr)
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		select {
		case sig := <-sigChan:
			appLogger.Info("shutdown signal received", "signal", sig.String())
			mainCancel()
		case <-groupCtx.Done():
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			appLogger.Warn("metrics server shutdown error", "error", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		appLogger.Error("service exited with error", "error", err)
		os.Exit(1)
	}
	appLogger.Info("service stopped")
}
