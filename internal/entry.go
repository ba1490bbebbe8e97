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

	"github.com/starford/neuralnotes/internal/api"
	"github.com/starford/neuralnotes/internal/editor"
	"github.com/starford/neuralnotes/internal/index"
	"github.com/starford/neuralnotes/internal/markdown"
	"github.com/starford/neuralnotes/internal/mcpserver"
	"github.com/starford/neuralnotes/internal/notestore"
	"github.com/starford/neuralnotes/internal/seed"
	"github.com/starford/neuralnotes/internal/sse"
	"github.com/starford/neuralnotes/internal/storage"
)

// core is everything both front ends share.
type core struct {
	store    *notestore.Store
	db       *index.DB
	renderer *markdown.Renderer
	vault    storage.Provider
	importer *seed.Importer
}

func newApplication(opts []Option) (*application, error) {
	app := &application{version: "dev", logOutput: os.Stdout}
	for _, opt := range opts {
		opt(app)
	}
	if app.config == nil {
		return nil, fmt.Errorf("config is required")
	}
	return app, nil
}

// logger builds the structured JSON logger and installs it as the default.
func (a *application) logger() *slog.Logger {
	logger := slog.New(slog.NewJSONHandler(a.logOutput, &slog.HandlerOptions{
		Level: a.config.App.LogLevel,
	}))
	slog.SetDefault(logger)
	return logger
}

// bootstrap opens the index, subscribes it to a new store and fills the
// store from the seed vault and/or the built-in notes.
func (a *application) bootstrap(logger *slog.Logger) (*core, error) {
	cfg := a.config

	db, err := index.Open(cfg.Index.DSN)
	if err != nil {
		return nil, fmt.Errorf("init index: %w", err)
	}

	c := &core{
		store:    notestore.New(notestore.WithLogger(logger)),
		db:       db,
		renderer: markdown.New(markdown.WithHighlightStyle(cfg.Editor.HighlightStyle)),
	}
	c.store.Subscribe(index.Observer(db, logger))

	if cfg.Seed.Path != "" {
		fs, err := storage.NewFS(cfg.Seed.Path)
		if err != nil {
			db.Close()
			return nil, fmt.Errorf("init seed vault: %w", err)
		}
		c.vault = fs
		c.importer = seed.NewImporter(c.store, fs, logger)
		n, err := c.importer.Import()
		if err != nil {
			db.Close()
			return nil, fmt.Errorf("seed import: %w", err)
		}
		logger.Info("Seed vault imported", slog.String("path", fs.Root()), slog.Int("notes", n))
	}
	if cfg.Seed.UseBuiltin() {
		c.store.LoadBuiltin()
	}

	// A file DSN may hold rows from an earlier run.
	if err := index.Sync(db, c.store.List(), logger); err != nil {
		logger.Warn("initial sync failed", slog.String("error", err.Error()))
	}
	return c, nil
}

// Run starts the HTTP server with the given options.
func Run(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	cfg := app.config
	logger := app.logger()

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("seed_path", cfg.Seed.Path),
		slog.Bool("seed_watch", cfg.Seed.Watch),
		slog.String("index_dsn", cfg.Index.DSN),
		slog.String("log_level", cfg.App.LogLevel.String()))

	c, err := app.bootstrap(logger)
	if err != nil {
		return err
	}
	defer c.db.Close()

	// SSE broker.
	broker := sse.NewBroker(2 * time.Second)
	defer broker.Close()
	c.store.Subscribe(broker.Observer())

	sessions := editor.NewManager(c.store, editor.WithSuggestionLimit(cfg.Editor.SuggestionLimit))
	c.store.Subscribe(func(ev notestore.Event) {
		if ev.Kind == notestore.NoteDeleted {
			if n := sessions.CloseNote(ev.ID); n > 0 {
				logger.Debug("closed sessions of deleted note", slog.String("id", ev.ID), slog.Int("sessions", n))
			}
		}
	})

	apiRouter := api.NewRouter(api.Deps{
		Store:    c.store,
		Sessions: sessions,
		Renderer: c.renderer,
		Index:    c.db,
		Events:   broker,
	}, cfg.Auth.AuthEnabled(), cfg.Auth.Token)

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
		if c.store.Len() == 0 && cfg.Seed.Path == "" {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"status":"empty"}`))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Mount("/api", apiRouter)
	r.Get("/attachments/{filename}", api.NewAttachmentHandler(c.vault).ServeFile)

	httpServer := &http.Server{
		Addr:              cfg.App.HTTP.Address(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Info("Server starting...", slog.String("http_address", cfg.App.HTTP.Address()))

	g, gCtx := errgroup.WithContext(ctx)

	if c.importer != nil && cfg.Seed.Watch {
		g.Go(func() error {
			if err := c.importer.Watch(gCtx); err != nil {
				logger.Error("seed watcher failed", slog.String("error", err.Error()))
			}
			return nil
		})
	}

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

// errShutdown cancels the group context so the watcher stops with the server.
var errShutdown = errors.New("shutdown")

// RunMCP serves the MCP tools over stdio until stdin closes.
func RunMCP(ctx context.Context, opts ...Option) error {
	app, err := newApplication(append([]Option{WithLogOutput(os.Stderr)}, opts...))
	if err != nil {
		return err
	}
	logger := app.logger()

	c, err := app.bootstrap(logger)
	if err != nil {
		return err
	}
	defer c.db.Close()

	watchCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	if c.importer != nil && app.config.Seed.Watch {
		go func() {
			if err := c.importer.Watch(watchCtx); err != nil {
				logger.Error("seed watcher failed", slog.String("error", err.Error()))
			}
		}()
	}

	logger.Info("MCP server starting", slog.Int("notes", c.store.Len()))
	return mcpserver.New(c.store, c.db, c.renderer, app.version).ServeStdio()
}
