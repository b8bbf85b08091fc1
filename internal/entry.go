// Package internal provides the main application initialization and runtime logic.
package internal

import (
	"context"
	"errors"
	"fmt"
	"io"
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

	"github.com/starford/mdnotebook/internal/api"
	"github.com/starford/mdnotebook/internal/commands"
	"github.com/starford/mdnotebook/internal/dialog"
	"github.com/starford/mdnotebook/internal/instance"
	"github.com/starford/mdnotebook/internal/lifecycle"
	"github.com/starford/mdnotebook/internal/mcpserver"
	"github.com/starford/mdnotebook/internal/recent"
	"github.com/starford/mdnotebook/internal/sse"
	"github.com/starford/mdnotebook/internal/storage"
	"github.com/starford/mdnotebook/internal/validate"
	"github.com/starford/mdnotebook/internal/watch"
	"github.com/starford/mdnotebook/internal/window"
)

const sseKeepalive = 15 * time.Second

func newApplication(opts []Option) (*application, error) {
	app := &application{version: "dev", exit: os.Exit}
	for _, opt := range opts {
		opt(app)
	}
	if app.config == nil {
		return nil, fmt.Errorf("config is required")
	}
	return app, nil
}

func newLogger(w io.Writer, level slog.Level) *slog.Logger {
	logger := slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)
	return logger
}

func openRegistry(path string) (*recent.DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	db, err := recent.Open(path)
	if err != nil {
		return nil, fmt.Errorf("init registry: %w", err)
	}
	return db, nil
}

// Run starts the host with the given options. It returns nil without
// starting anything when another instance is already running; the launch
// is handed to that instance instead.
func Run(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	cfg := app.config

	// Initialize structured JSON logger.
	logger := newLogger(os.Stdout, cfg.App.LogLevel)

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("sqlite_path", cfg.SQLite.Path),
		slog.String("socket_path", cfg.Instance.SocketPath),
		slog.String("dialog_backend", cfg.Dialog.Backend),
		slog.String("log_level", cfg.App.LogLevel.String()))

	// Single instance.
	cwd, _ := os.Getwd()
	primary, err := instance.Acquire(cfg.Instance.SocketPath, instance.Launch{Args: app.launchArgs, Cwd: cwd}, logger)
	if errors.Is(err, instance.ErrAlreadyRunning) {
		logger.Info("Another instance is running, launch forwarded")
		return nil
	}
	if err != nil {
		return fmt.Errorf("acquire instance: %w", err)
	}
	defer primary.Close()

	db, err := openRegistry(cfg.SQLite.Path)
	if err != nil {
		return err
	}
	defer db.Close()

	// Event stream to the UI layer and the shell.
	broker := sse.NewBroker(sseKeepalive)
	defer broker.Close()

	win := window.NewHandle(broker)
	tray := window.NewTray(broker, logger)

	dialogs, err := dialog.New(cfg.Dialog.Backend)
	if err != nil {
		return err
	}

	var watcher *watch.Watcher
	var svcWatcher commands.Watcher
	if cfg.Watch.Enabled {
		watcher = watch.New(logger, func(folder string) {
			broker.Emit(watch.EventChanged, map[string]string{"folder": folder})
		})
		svcWatcher = watcher
	}

	svc := commands.NewService(storage.New(), win, dialogs, db, svcWatcher, logger)

	controller := lifecycle.New(win, tray, broker, lifecycle.Options{
		QuitGrace:     cfg.Lifecycle.QuitGrace,
		OpenFileDelay: cfg.Lifecycle.OpenFileDelay,
		Tooltip:       cfg.Lifecycle.Tooltip,
		Exit:          app.exit,
		Logger:        logger,
	})
	if err := controller.Start(validate.AbsLaunchArgs(app.launchArgs, cwd)); err != nil {
		return fmt.Errorf("start tray: %w", err)
	}

	token, removeToken, err := resolveToken(&cfg.Auth)
	if err != nil {
		return err
	}
	defer removeToken()
	if cfg.Auth.Mode == AuthModeSession {
		logger.Info("Session token issued", slog.String("token_file", cfg.Auth.TokenFile))
	}

	apiRouter := api.NewRouter(api.RouterConfig{
		Service:        svc,
		Shell:          controller,
		Window:         win,
		Tray:           tray,
		AllowedHosts:   cfg.App.HTTP.AllowedHosts(),
		AllowedOrigins: cfg.App.HTTP.Origins(),
		AuthEnabled:    cfg.Auth.AuthEnabled(),
		Token:          token,
		Events:         broker,
	})

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
		Addr:              cfg.App.HTTP.Address(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Info("Host starting...", slog.String("http_address", cfg.App.HTTP.Address()))

	g, gCtx := errgroup.WithContext(ctx)

	// Tray and window event dispatcher.
	g.Go(func() error {
		return controller.Run(gCtx)
	})

	// Suppressed launches.
	g.Go(func() error {
		return primary.Serve(gCtx, func(l instance.Launch) {
			controller.HandleSecondInstance(validate.AbsLaunchArgs(l.Args, l.Cwd))
		})
	})

	// External changes to the stored vault.
	if watcher != nil {
		svc.FollowStored()
		g.Go(func() error {
			return watcher.Run(gCtx)
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

		logger.Info("Shutting down host...")

		// Stop the listener before the controller and watcher go away.
		_ = primary.Close()

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

	logger.Info("Host stopped successfully")
	return nil
}

// errShutdown cancels the group once a signal was handled so the
// dispatcher and listeners return.
var errShutdown = errors.New("shutdown")

// ServeMCP serves the vault tools over stdio. Logs go to stderr because
// stdout carries the protocol.
func ServeMCP(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	cfg := app.config
	logger := newLogger(os.Stderr, cfg.App.LogLevel)

	db, err := openRegistry(cfg.SQLite.Path)
	if err != nil {
		return err
	}
	defer db.Close()

	logger.Info("MCP server starting", slog.String("version", app.version))
	srv := mcpserver.New(storage.New(), db, app.version)

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ServeStdio() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		return nil
	}
}
