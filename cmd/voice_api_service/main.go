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

	"github.com/go-chi/chi/v5"
	chi_middleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/voxgate/voxgate/internal/platform/config"
	"github.com/voxgate/voxgate/internal/platform/database"
	"github.com/voxgate/voxgate/internal/platform/logger"
	"github.com/voxgate/voxgate/internal/voice/adapters/billing"
	"github.com/voxgate/voxgate/internal/voice/adapters/storage"
	"github.com/voxgate/voxgate/internal/voice/adapters/telephony"
	"github.com/voxgate/voxgate/internal/voice/app"
	"github.com/voxgate/voxgate/internal/voice/repository/postgres"
	transporthttp "github.com/voxgate/voxgate/internal/voice/transport/http"
	"github.com/voxgate/voxgate/internal/voice/transport/http/middleware"
)

const (
	serviceName     = "voice_api_service"
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
		"port", cfg.VoiceAPIPort,
		"metrics_port", cfg.VoiceAPIMetricsPort,
		"public_base_url", cfg.PublicBaseURL,
	)

	dbPool, err := database.NewDBPool(mainCtx, cfg.PostgresDSN, appLogger)
	if err != nil {
		appLogger.Error("failed to initialize database connection pool", "error", err)
		os.Exit(1)
	}
	defer dbPool.Close()

	numberRepo := postgres.NewPgPhoneNumberRepository(dbPool, appLogger)
	callRepo := postgres.NewPgPhoneCallRepository(dbPool, appLogger)
	accountRepo := postgres.NewPgAccountRepository(dbPool, appLogger)

	telephonyClient := telephony.NewRESTClient(appLogger, cfg.TelephonyAPIURL, cfg.TelephonyAccountSID, cfg.TelephonyAuthToken, nil)
	billingClient := billing.NewRESTClient(appLogger, cfg.BillingAPIURL, cfg.BillingAPIKey, nil)
	storageClient := storage.NewRESTClient(appLogger, cfg.StorageAPIURL, cfg.StorageAPIKey, nil)

	gate := app.NewQuotaGate(accountRepo, billingClient, appLogger)
	provisioning := app.NewProvisioningService(numberRepo, accountRepo, telephonyClient, gate, app.ProvisioningConfig{
		LifetimeNumberCeiling: cfg.LifetimeNumberCeiling,
		PublicBaseURL:         cfg.PublicBaseURL,
		NumberPriceID:         cfg.NumberPriceID,
	}, appLogger)
	ivr := app.NewIVRRouter(numberRepo, app.IVRConfig{
		AllowedRoles:          cfg.AllowedOperatingRoles,
		VoicePath:             "/webhooks/voice",
		RecordingCallbackPath: cfg.PublicBaseURL + "/webhooks/voice/recording",
	}, appLogger)
	events := app.NewCallEventService(numberRepo, callRepo, accountRepo, telephonyClient, storageClient, appLogger)

	validate := validator.New()
	numberHandler := transporthttp.NewNumberHandler(provisioning, callRepo, appLogger, validate)
	webhookHandler := transporthttp.NewWebhookHandler(ivr, events, appLogger)

	router := chi.NewRouter()
	router.Use(chi_middleware.RequestID)
	router.Use(chi_middleware.RealIP)
	router.Use(chi_middleware.Recoverer)

	// Provider-facing webhooks are unauthenticated; the pipeline re-validates
	// every event against the provider API before acting on it.
	router.Group(webhookHandler.RegisterRoutes)
	router.Group(func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWTAccessSecret, appLogger))
		numberHandler.RegisterRoutes(r)
	})

	apiServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.VoiceAPIPort),
		Handler: router,
	}
	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", promhttp.Handler())
	metricsServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.VoiceAPIMetricsPort),
		Handler: metricsMux,
	}

	g, groupCtx := errgroup.WithContext(mainCtx)

	g.Go(func() error {
		appLogger.Info("API server listening", "addr", apiServer.Addr)
		if err := apiServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
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
		if err := apiServer.Shutdown(shutdownCtx); err != nil {
			appLogger.Warn("API server shutdown error", "error", err)
		}
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
