// Command api serves the similarity and relevance matching HTTP API.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/riverqueue/river/riverdriver/riverpgxv5"
	"github.com/riverqueue/river/rivermigrate"

	"github.com/formbricks/riskmatch/internal/config"
	"github.com/formbricks/riskmatch/internal/observability"
	"github.com/formbricks/riskmatch/internal/repository"
	"github.com/formbricks/riskmatch/pkg/database"
)

const (
	exitSuccess     = 0
	exitFailure     = 1
	shutdownTimeout = 30 * time.Second
)

func main() {
	os.Exit(run())
}

func run() int {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)

		return exitFailure
	}

	slog.SetDefault(observability.NewLogger(os.Stdout, cfg.LogLevel, cfg.LogFormat != "text"))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := openDatabase(ctx, cfg)
	if err != nil {
		slog.Error("Failed to connect to database", "error", err)

		return exitFailure
	}
	defer db.Close()

	app, err := NewApp(ctx, cfg, db)
	if err != nil {
		slog.Error("Failed to initialize application", "error", err)

		return exitFailure
	}

	runErr := app.Run(ctx)
	if runErr != nil {
		slog.Error("Server stopped with error", "error", runErr)
	}

	slog.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := app.Shutdown(shutdownCtx); err != nil {
		slog.Error("Shutdown failed", "error", err)

		return exitFailure
	}

	slog.Info("Server exited")

	if runErr != nil {
		return exitFailure
	}

	return exitSuccess
}

// openDatabase applies the schema through a bootstrap pool, then opens the serving pool with
// pgvector types registered. Registration needs the vector extension, which the schema creates.
func openDatabase(ctx context.Context, cfg *config.Config) (*pgxpool.Pool, error) {
	bootstrap, err := database.NewPostgresPool(ctx, cfg.DatabaseURL, database.WithMaxConns(1))
	if err != nil {
		return nil, err
	}

	migrateErr := migrate(ctx, cfg, bootstrap)

	bootstrap.Close()

	if migrateErr != nil {
		return nil, migrateErr
	}

	opts := []database.PoolOption{database.WithVectorTypes()}
	if cfg.DatabaseMaxConns > 0 {
		opts = append(opts, database.WithMaxConns(int32(cfg.DatabaseMaxConns))) //nolint:gosec // bounded by config
	}

	return database.NewPostgresPool(ctx, cfg.DatabaseURL, opts...)
}

func migrate(ctx context.Context, cfg *config.Config, db *pgxpool.Pool) error {
	if err := repository.Migrate(ctx, db); err != nil {
		return err
	}

	if !cfg.RiverEnabled {
		return nil
	}

	migrator, err := rivermigrate.New(riverpgxv5.New(db), nil)
	if err != nil {
		return fmt.Errorf("create river migrator: %w", err)
	}

	res, err := migrator.Migrate(ctx, rivermigrate.DirectionUp, nil)
	if err != nil {
		return fmt.Errorf("river migrate: %w", err)
	}

	if len(res.Versions) > 0 {
		slog.Info("river: migrations applied", "count", len(res.Versions))
	}

	return nil
}
