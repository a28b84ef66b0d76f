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
	"github.com/gofrs/flock"
	"golang.org/x/sync/errgroup"

	"github.com/pinotes/pinotes/internal/api"
	"github.com/pinotes/pinotes/internal/auth"
	"github.com/pinotes/pinotes/internal/index"
	"github.com/pinotes/pinotes/internal/mcpserver"
	"github.com/pinotes/pinotes/internal/store"
	"github.com/pinotes/pinotes/internal/tree"
	"github.com/pinotes/pinotes/internal/vault"
	"github.com/pinotes/pinotes/internal/wikilink"
)

const (
	dbFileName   = "pinotes.db"
	lockFileName = "pinotes.lock"
)

// services bundles everything built from the configuration.
type services struct {
	vault     *vault.Vault
	db        *store.DB
	engine    *index.Engine
	auth      *auth.Service
	tree      *tree.Cache
	links     *wikilink.Index
	backlinks *wikilink.Finder
	lock      *flock.Flock
}

func (s *services) close() {
	_ = s.db.Close()
	_ = s.lock.Unlock()
}

// buildServices validates the directories, takes the data-dir lock, opens
// the store, and wires every component.
func buildServices(cfg *Config, logger *slog.Logger) (*services, error) {
	info, err := os.Stat(cfg.Vault.Path)
	if err != nil {
		return nil, fmt.Errorf("vault dir %s: %w", cfg.Vault.Path, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("vault dir %s is not a directory", cfg.Vault.Path)
	}
	if err := os.MkdirAll(cfg.Data.Path, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	// Exclusive lock on the data directory: the index has a single writer
	// per process lifetime, and two processes must never share it.
	lock := flock.New(filepath.Join(cfg.Data.Path, lockFileName))
	locked, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire data dir lock: %w", err)
	}
	if !locked {
		return nil, fmt.Errorf("data dir %s is locked by another instance", cfg.Data.Path)
	}

	v, err := vault.New(cfg.Vault.Path)
	if err != nil {
		_ = lock.Unlock()
		return nil, fmt.Errorf("init vault: %w", err)
	}

	db, err := store.Open(filepath.Join(cfg.Data.Path, dbFileName))
	if err != nil {
		_ = lock.Unlock()
		return nil, fmt.Errorf("init store: %w", err)
	}

	authSvc := auth.New(db.Conn(), auth.Params{
		SessionExpiry: cfg.Auth.SessionExpiry(),
		MaxFailures:   cfg.Auth.MaxFailures,
		Lockout:       cfg.Auth.Lockout(),
	}, logger)
	if err := authSvc.Bootstrap(os.Getenv("ADMIN_USERNAME"), os.Getenv("ADMIN_PASSWORD")); err != nil {
		db.Close()
		_ = lock.Unlock()
		return nil, fmt.Errorf("bootstrap admin: %w", err)
	}

	return &services{
		vault:     v,
		db:        db,
		engine:    index.NewEngine(db, v, logger),
		auth:      authSvc,
		tree:      tree.New(v.Root(), cfg.Tree.CacheTTL()),
		links:     wikilink.NewIndex(v.Root()),
		backlinks: wikilink.NewFinder(v.Root()),
		lock:      lock,
	}, nil
}

// Run starts the HTTP server with the given options.
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
		slog.String("vault_path", cfg.Vault.Path),
		slog.String("data_path", cfg.Data.Path),
		slog.String("log_level", cfg.App.LogLevel.String()))

	svcs, err := buildServices(cfg, logger)
	if err != nil {
		return err
	}
	defer svcs.close()

	// Background refresh: the scheduler owns the only writer of the index.
	sched := index.NewScheduler(svcs.engine, cfg.Search.RefreshInterval(), logger)
	sched.Start()
	defer sched.Stop()

	h := api.NewHandler(svcs.vault, svcs.engine, svcs.auth, svcs.tree, svcs.links, svcs.backlinks)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// Liveness probe (unauthenticated).
	r.Get("/health/live", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Mount("/api", api.NewRouter(h))

	httpServer := &http.Server{
		Addr:    cfg.App.HTTP.Address(),
		Handler: r,
	}

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("Starting HTTP server", slog.String("address", cfg.App.HTTP.Address()))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

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

		// Wait for an in-flight refresh cycle to finish before the store closes.
		sched.Stop()
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}

// RunMCP serves the read-only tool surface over stdio instead of HTTP.
func RunMCP(_ context.Context, opts ...Option) error {
	app := &application{}
	for _, opt := range opts {
		opt(app)
	}
	if app.config == nil {
		return fmt.Errorf("config is required")
	}
	cfg := app.config

	// Logs go to stderr; stdout carries the MCP transport.
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: cfg.App.LogLevel,
	}))
	slog.SetDefault(logger)

	svcs, err := buildServices(cfg, logger)
	if err != nil {
		return err
	}
	defer svcs.close()

	srv := mcpserver.New(svcs.vault, svcs.engine, svcs.backlinks)
	logger.Info("Starting MCP server on stdio")
	return srv.ServeStdio()
}
