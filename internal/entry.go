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
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/starford/gridcat/internal/api"
	"github.com/starford/gridcat/internal/catalog"
	"github.com/starford/gridcat/internal/collection"
	"github.com/starford/gridcat/internal/collectionservice"
	"github.com/starford/gridcat/internal/mcpserver"
	"github.com/starford/gridcat/internal/sse"
)

// runtime holds the components shared by every entry point.
type runtime struct {
	cfg     *Config
	logger  *slog.Logger
	db      *catalog.DB
	targets []catalog.Target
	updater *catalog.Updater
	svc     *collectionservice.Service
}

func (rt *runtime) Close() error {
	return rt.db.Close()
}

// setup initialises logging, the ledger and the collection service. cb
// receives node events from every update.
func setup(app *application, cb catalog.EventCallback) (*runtime, error) {
	if app.config == nil {
		return nil, fmt.Errorf("config is required")
	}
	cfg := app.config

	logger := slog.New(slog.NewJSONHandler(app.logOut, &slog.HandlerOptions{
		Level: cfg.App.LogLevel,
	}))
	slog.SetDefault(logger)

	targets, err := cfg.Targets()
	if err != nil {
		return nil, fmt.Errorf("resolve collections: %w", err)
	}

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("sqlite_path", cfg.SQLite.Path),
		slog.Int("collections", len(targets)),
		slog.Int("workers", cfg.App.Workers),
		slog.String("log_level", cfg.App.LogLevel.String()))

	db, err := catalog.Open(cfg.SQLite.Path)
	if err != nil {
		return nil, fmt.Errorf("init ledger: %w", err)
	}

	updater := catalog.NewUpdater(db, logger, cfg.App.Workers, cb)
	return &runtime{
		cfg:     cfg,
		logger:  logger,
		db:      db,
		targets: targets,
		updater: updater,
		svc:     collectionservice.NewService(targets, updater, db),
	}, nil
}

// Run starts the HTTP server, the initial sync and the watcher.
func Run(ctx context.Context, opts ...Option) error {
	app := newApplication(opts)

	// SSE broker.
	broker := sse.NewBroker(2 * time.Second)
	defer broker.Close()

	rt, err := setup(app, broker.PublishNodeEvent)
	if err != nil {
		return err
	}
	defer rt.Close()
	cfg, logger := rt.cfg, rt.logger

	apiRouter := api.NewRouter(rt.svc, cfg.Auth.AuthEnabled(), cfg.Auth.Token, broker)

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

	r.Mount("/api", apiRouter)

	httpServer := &http.Server{
		Addr:              cfg.App.HTTP.Address(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Info("Server starting...", slog.String("http_address", cfg.App.HTTP.Address()))

	g, gCtx := errgroup.WithContext(ctx)

	// Initial sync, then watch for changes.
	g.Go(func() error {
		if err := catalog.Sync(gCtx, rt.updater, rt.targets, logger); err != nil {
			logger.Warn("initial sync failed", slog.String("error", err.Error()))
		}
		if !cfg.Watch.Enabled || len(rt.targets) == 0 {
			return nil
		}
		if err := catalog.Watch(gCtx, rt.updater, rt.targets, cfg.Watch.Debounce, logger); err != nil {
			logger.Error("watcher failed", slog.String("error", err.Error()))
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
		defer signal.Stop(quit)

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
		return errShutdown
	})

	if err := g.Wait(); err != nil && !errors.Is(err, errShutdown) {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}

// errShutdown cancels the group once the server has stopped so that the
// watcher exits too.
var errShutdown = errors.New("shutdown")

// RunUpdate updates the named collections once, or every collection when
// names is empty. Empty policies fall back to each collection's configuration.
func RunUpdate(ctx context.Context, names []string, self, children collection.Policy, opts ...Option) ([]*collectionservice.UpdateResult, error) {
	app := newApplication(opts)
	rt, err := setup(app, nil)
	if err != nil {
		return nil, err
	}
	defer rt.Close()

	if len(names) == 0 {
		for _, t := range rt.targets {
			names = append(names, t.Name)
		}
	}

	var (
		out  []*collectionservice.UpdateResult
		errs []error
	)
	for _, name := range names {
		res, err := rt.svc.UpdateCollection(ctx, name, self, children)
		if res != nil {
			out = append(out, res)
		}
		if err != nil {
			errs = append(errs, err)
		}
	}
	return out, errors.Join(errs...)
}

// RunMCP serves the MCP tools on stdin/stdout until the client disconnects.
func RunMCP(ctx context.Context, opts ...Option) error {
	app := newApplication(append([]Option{WithLogOutput(os.Stderr)}, opts...))
	rt, err := setup(app, nil)
	if err != nil {
		return err
	}
	defer rt.Close()

	rt.logger.Info("MCP server starting", slog.String("transport", "stdio"))
	return mcpserver.New(rt.svc, app.version).ServeStdio(ctx)
}
