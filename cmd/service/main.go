package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/kjstillabower/weather-screen/internal/app"
	"github.com/kjstillabower/weather-screen/internal/config"
	httphandler "github.com/kjstillabower/weather-screen/internal/http"
	"github.com/kjstillabower/weather-screen/internal/lifecycle"
	"github.com/kjstillabower/weather-screen/internal/observability"
	"github.com/kjstillabower/weather-screen/internal/refresh"
	"github.com/kjstillabower/weather-screen/internal/screen"
)

func main() {
	logger, err := observability.NewLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("config", zap.Error(err))
	}

	alerts := screen.NewAlertLog(cfg.AlertHistory, nil)
	a, err := app.New(cfg, logger, alerts)
	if err != nil {
		logger.Fatal("app", zap.Error(err))
	}

	if len(cfg.TrackedCities) > 0 {
		observability.SetTrackedCities(cfg.TrackedCities)
	}

	startCtx, startCancel := context.WithTimeout(context.Background(), cfg.RequestTimeout)
	a.Screen.Mount(startCtx)
	startCancel()
	lifecycle.MarkReady()

	var refresher *refresh.Refresher
	if cfg.RefreshSchedule != "" {
		refresher, err = refresh.New(a.Screen, cfg.RefreshSchedule, cfg.RequestTimeout, logger, nil)
		if err != nil {
			logger.Fatal("refresh", zap.Error(err))
		}
		refresher.Start()
	}

	var limiter *rate.Limiter
	if cfg.RateLimitRPS > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimitRPS), cfg.RateLimitBurst)
	}
	handler := httphandler.NewHandler(a.Screen, alerts, &httphandler.HealthConfig{
		StorePing: a.StorePing(),
		StartTime: time.Now(),
	}, logger, cfg.CityMaxLength)
	router := httphandler.NewRouter(handler, logger, limiter, cfg.RequestTimeout)

	srv := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: cfg.RequestTimeout + 5*time.Second,
	}

	go func() {
		logger.Info("server starting", zap.String("addr", ":"+cfg.ServerPort))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	<-ctx.Done()
	stop()

	logger.Info("graceful shutdown triggered")
	lifecycle.MarkShuttingDown()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if refresher != nil {
		if err := refresher.Stop(shutdownCtx); err != nil {
			logger.Warn("refresh stop", zap.Error(err))
		}
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}
	if err := httphandler.WaitForInFlight(shutdownCtx, 50*time.Millisecond); err != nil {
		logger.Warn("in-flight requests not completed", zap.Error(err), zap.Int64("remaining", httphandler.InFlightCount()))
	}

	if err := a.Close(); err != nil {
		logger.Error("store close", zap.Error(err))
	}
	logger.Info("shutdown complete")
	if err := observability.FlushTelemetry(logger); err != nil {
		fmt.Fprintf(os.Stderr, "telemetry flush: %v\n", err)
	}
}
