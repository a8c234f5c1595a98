package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/saturnino-fabrica-de-software/rollcall/internal/api"
	"github.com/saturnino-fabrica-de-software/rollcall/internal/audit"
	"github.com/saturnino-fabrica-de-software/rollcall/internal/backend"
	"github.com/saturnino-fabrica-de-software/rollcall/internal/config"
	"github.com/saturnino-fabrica-de-software/rollcall/internal/face"
	"github.com/saturnino-fabrica-de-software/rollcall/internal/imagesource"
	"github.com/saturnino-fabrica-de-software/rollcall/internal/matcher"
	"github.com/saturnino-fabrica-de-software/rollcall/internal/service"
	"github.com/saturnino-fabrica-de-software/rollcall/internal/webhook"
	"github.com/saturnino-fabrica-de-software/rollcall/internal/ws"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// Initialize logger
	logger := config.NewLogger(cfg)
	slog.SetDefault(logger)

	logger.Info("starting Rollcall API",
		slog.String("environment", cfg.Environment),
		slog.Int("port", cfg.Port),
		slog.String("gallery_backend", cfg.GalleryBackend),
		slog.String("provider", cfg.ProviderType),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := backend.Open(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	faceProvider, err := face.NewFaceProvider(cfg)
	if err != nil {
		return fmt.Errorf("failed to create face provider: %w", err)
	}

	m, err := matcher.New(cfg.Matcher, cfg.HNSWMinSize, cfg.HNSWCandidates, logger)
	if err != nil {
		return fmt.Errorf("failed to create matcher: %w", err)
	}

	// Live feed for kiosk displays
	hub := ws.NewHub()
	go hub.Run()
	defer hub.Stop()

	svc := service.NewRecognitionService(store.Gallery, faceProvider, m, store.Attendance, audit.NewSlogLogger(logger), logger).
		WithThreshold(cfg.MatchThreshold).
		WithAutoAttendance(cfg.AutoAttendance).
		WithProviderName(cfg.ProviderType).
		WithEvents(hub)

	if cfg.WebhookURL != "" {
		dispatcher := webhook.NewDispatcher(webhook.Config{
			URL:         cfg.WebhookURL,
			Secret:      cfg.WebhookSecret,
			Events:      cfg.WebhookEvents,
			MaxAttempts: cfg.WebhookMaxAttempts,
			Timeout:     cfg.WebhookTimeout,
		}, logger)
		go dispatcher.Run(ctx)
		defer dispatcher.Stop()
		svc.WithEvents(dispatcher)
	}

	images := imagesource.New(
		imagesource.WithMaxSide(cfg.ImageMaxSide),
		imagesource.WithMaxBytes(int64(cfg.BodyLimitMB)<<20),
	)

	// Setup router
	router := api.NewRouter(cfg, logger, &api.Dependencies{
		Service:  svc,
		Images:   images,
		Gallery:  store.Gallery,
		Provider: faceProvider,
		Events:   hub,
	})
	router.Setup()

	// Start server in goroutine
	errChan := make(chan error, 1)
	go func() {
		addr := fmt.Sprintf(":%d", cfg.Port)
		logger.Info("server listening", slog.String("addr", addr))
		if err := router.Listen(addr); err != nil {
			errChan <- err
		}
	}()

	// Wait for shutdown signal or error
	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-errChan:
		return fmt.Errorf("server error: %w", err)
	}

	shutdownDone := make(chan error, 1)
	go func() { shutdownDone <- router.Shutdown() }()

	logger.Info("shutting down server...")
	select {
	case err := <-shutdownDone:
		if err != nil {
			logger.Error("shutdown error", slog.Any("error", err))
		}
	case <-time.After(10 * time.Second):
		logger.Warn("shutdown timed out")
	}

	logger.Info("server stopped")
	return nil
}
