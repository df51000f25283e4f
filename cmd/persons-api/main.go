// main is the entry point of the Persons API application.
//
// STARTUP SEQUENCE:
//  1. Load configuration from a YAML file (plus .env and env overrides)
//  2. Initialise the logger
//  3. Open the configured storage backend
//  4. Build the router (middleware, probes, metrics, /persons routes)
//  5. Run the HTTP server until an OS signal (Ctrl+C / kill) arrives
//  6. Gracefully shut down: finish in-flight requests, close the backend
//
// RUNNING THE SERVER:
//
//	go run ./cmd/persons-api --config=config/local.yaml
//
// or (with the environment variable):
//
//	CONFIG_PATH=config/local.yaml go run ./cmd/persons-api
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

	"golang.org/x/sync/errgroup"

	"github.com/aanand-mishra/persons-api/internal/config"
	"github.com/aanand-mishra/persons-api/internal/http/router"
	"github.com/aanand-mishra/persons-api/internal/metrics"
	"github.com/aanand-mishra/persons-api/internal/storage"
	"github.com/aanand-mishra/persons-api/internal/storage/memory"
	"github.com/aanand-mishra/persons-api/internal/storage/postgres"
	"github.com/aanand-mishra/persons-api/internal/storage/redis"
	"github.com/aanand-mishra/persons-api/internal/storage/sqlite"
)

const version = "1.0.0"

func main() {
	if err := run(); err != nil {
		slog.Error("persons-api exited with error", slog.String("error", err.Error()))
		os.Exit(1) // non-zero exit code signals failure to the OS / CI system
	}
}

func run() error {
	// ── 1. Load Config ────────────────────────────────────────────────────
	// MustLoad exits the process if the config is missing or invalid.
	cfg := config.MustLoad()

	// ── 2. Initialise Logger ──────────────────────────────────────────────
	// SetDefault makes the package-level slog.Info/slog.Error calls in the
	// handlers use the same handler and level.
	log := setupLogger(cfg.Env)
	slog.SetDefault(log)

	log.Info("starting persons-api",
		slog.String("env", cfg.Env),
		slog.String("version", version),
		slog.String("storage", cfg.Storage.Backend),
	)

	// ctx is cancelled on SIGINT (Ctrl+C) or SIGTERM (kill, orchestrators).
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ── 3. Initialise Storage ─────────────────────────────────────────────
	// The rest of the program only sees the storage.Repository interface.
	repo, err := newRepository(ctx, cfg.Storage)
	if err != nil {
		return fmt.Errorf("initialise storage: %w", err)
	}
	defer closeRepository(log, repo)

	log.Info("storage initialised", slog.String("backend", cfg.Storage.Backend))

	// ── 4. Build the Router ───────────────────────────────────────────────
	var m *metrics.Metrics
	if !cfg.Metrics.Disabled {
		m = metrics.New()
	}

	server := &http.Server{
		Addr: cfg.HTTPServer.Addr, // e.g. "localhost:8082"
		Handler: router.New(router.Options{
			Repository:     repo,
			Metrics:        m,
			Logger:         log,
			AllowedOrigins: cfg.CORS.AllowedOrigins,
		}),

		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       cfg.HTTPServer.ReadTimeout,
		WriteTimeout:      cfg.HTTPServer.WriteTimeout,
		IdleTimeout:       cfg.HTTPServer.IdleTimeout,
	}

	// ── 5. Serve until a signal arrives ───────────────────────────────────
	// Two goroutines in one errgroup: the listener, and a watcher that
	// shuts the listener down once ctx is cancelled. If ListenAndServe
	// fails on its own (port in use), gctx is cancelled and the watcher
	// returns too.
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info("server started", slog.String("address", cfg.HTTPServer.Addr))

		// ErrServerClosed is the normal result of Shutdown.
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutdown signal received, stopping server...")

		// ── 6. Graceful Shutdown ──────────────────────────────────────────
		// A fresh context: gctx is already cancelled.
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPServer.ShutdownTimeout)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}

	log.Info("server stopped gracefully")
	return nil
}

// newRepository opens the backend named by cfg.Backend.
func newRepository(ctx context.Context, cfg config.Storage) (storage.Repository, error) {
	switch cfg.Backend {
	case config.BackendMemory:
		return memory.New(), nil

	case config.BackendSQLite:
		return sqlite.New(cfg.SQLitePath)

	case config.BackendPostgres:
		return postgres.New(ctx, cfg.PostgresURL, postgres.Options{
			MaxConns:       int32(cfg.PoolSize), // bounded by config.validate
			ConnectTimeout: cfg.DialTimeout,
		})

	case config.BackendRedis:
		return redis.Connect(ctx, cfg.RedisURL, redis.Options{
			PoolSize:     cfg.PoolSize,
			DialTimeout:  cfg.DialTimeout,
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
		})

	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
}

func closeRepository(log *slog.Logger, repo storage.Repository) {
	closer, ok := repo.(storage.Closer)
	if !ok {
		return
	}
	if err := closer.Close(); err != nil {
		log.Error("failed to close storage", slog.String("error", err.Error()))
		return
	}
	log.Info("storage closed")
}

// setupLogger returns a *slog.Logger configured for the given environment.
//
// Development (dev): human-readable text output at DEBUG level.
// Production (prod): machine-readable JSON output at INFO level.
//
//	JSON logs are easy to ingest by log aggregators (Loki, CloudWatch, etc.)
func setupLogger(env string) *slog.Logger {
	switch env {
	case "prod":
		return slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
				Level: slog.LevelInfo, // INFO and above in production
			}),
		)
	case "staging":
		return slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
				Level: slog.LevelDebug, // more verbose in staging
			}),
		)
	default: // "dev" and anything unrecognised
		return slog.New(
			slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
				Level: slog.LevelDebug, // all levels in development
			}),
		)
	}
}
