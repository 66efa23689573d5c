// Package internal provides the main application initialization and runtime logic.
package internal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/egret-dev/egret/internal/activity"
	"github.com/egret-dev/egret/internal/api"
	"github.com/egret-dev/egret/internal/projectservice"
	"github.com/egret-dev/egret/internal/sse"
	"github.com/egret-dev/egret/internal/storage"
	"github.com/egret-dev/egret/internal/taskstore"
	"github.com/egret-dev/egret/internal/watch"
)

// Run starts the application with the given options.
func Run(ctx context.Context, opts ...Option) error {
	app := &application{}

	for _, opt := range opts {
		opt(app)
	}

	if app.config == nil {
		return fmt.Errorf("config is required")
	}

	cfg := app.config

	// Initialize structured JSON logger.
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.App.LogLevel,
	}))
	slog.SetDefault(logger)

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("work_path", cfg.Work.Path),
		slog.String("taskdb_path", cfg.TaskDB.Path),
		slog.String("log_level", cfg.App.LogLevel.String()))

	// Ensure the work directory exists.
	if err := os.MkdirAll(cfg.Work.Path, 0o755); err != nil {
		return fmt.Errorf("create work dir: %w", err)
	}

	// Initialize storage.
	store, err := storage.NewFS(cfg.Work.Path)
	if err != nil {
		return fmt.Errorf("init storage: %w", err)
	}

	// Sync state sidecar files live next to the projects unless
	// configured elsewhere.
	stateDir := cfg.Work.StateDir
	if stateDir == "" {
		stateDir = filepath.Join(cfg.Work.Path, ".egret-state")
	}
	if err := os.MkdirAll(stateDir, 0o755); err != nil {
		return fmt.Errorf("create state dir: %w", err)
	}

	svcOpts := projectservice.Options{
		StateDir:    stateDir,
		ArchiveDir:  cfg.Work.ArchiveDir,
		DefaultTags: cfg.Work.DefaultTags,
		Activity:    &activity.Git{AuthorEmail: cfg.Work.AuthorEmail},
		Log:         logger,
	}

	// Task store is optional; without it annotation skips task sync.
	if cfg.TaskDB.Enabled() {
		db, err := taskstore.Open(cfg.TaskDB.Path)
		if err != nil {
			return fmt.Errorf("init task store: %w", err)
		}
		defer db.Close()
		svcOpts.Tasks = db
	}

	svc := projectservice.NewService(store, svcOpts)

	// SSE broker.
	broker := sse.NewBroker(2 * time.Second)
	defer broker.Close()

	// Build API router.
	apiRouter := api.NewRouter(svc, cfg.Auth.AuthEnabled(), cfg.Auth.Token, broker)

	// Build chi router.
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// Health check endpoints (unauthenticated).
	r.Get("/health/live", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Get("/health/ready", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	// Mount API routes under /api.
	r.Mount("/api", apiRouter)

	httpServer := &http.Server{
		Addr:    cfg.App.HTTP.Address(),
		Handler: r,
	}

	logger.Info("Server starting...", slog.String("http_address", cfg.App.HTTP.Address()))

	g, gCtx := errgroup.WithContext(ctx)

	// Start file watcher with SSE callback.
	g.Go(func() error {
		if err := watch.Watch(gCtx, store, cfg.Work.Path, logger, func(kind, path string) {
			broker.PublishProjectEvent(kind, path)
		}); err != nil {
			logger.Error("watcher error", slog.String("error", err.Error()))
		}
		return nil
	})

	// Start HTTP server.
	g.Go(func() error {
		logger.Info("Starting HTTP server", slog.String("address", cfg.App.HTTP.Address()))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	// Handle shutdown signals.
	g.Go(func() error {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

		select {
		case sig := <-quit:
			logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
		case <-gCtx.Done():
			logger.Info("Context cancelled, initiating shutdown")
		}

		logger.Info("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
		}

		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}
