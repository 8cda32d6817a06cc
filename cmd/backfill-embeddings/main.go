// Package main provides a CLI tool to compute embeddings for risks and controls that are missing
// one. It runs the backfill pipeline in-process; no API server or River worker is needed.
//
// Usage:
//
//	go run ./cmd/backfill-embeddings -kind all
//
// Flags:
//   - -kind: risk, control or all (default: all)
//   - -batch-size: records fetched per page (default: BACKFILL_BATCH_SIZE)
//   - -concurrency: concurrent provider calls (default: BACKFILL_CONCURRENCY)
//   - -dry-run: count records without calling the provider or writing
//   - -force: recompute records that already have an embedding
//
// Environment variables: DATABASE_URL and EMBEDDING_PROVIDER are required (the provider only
// when not a dry run); see internal/config for the rest.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/formbricks/riskmatch/internal/backfill"
	"github.com/formbricks/riskmatch/internal/config"
	"github.com/formbricks/riskmatch/internal/embedding"
	"github.com/formbricks/riskmatch/internal/models"
	"github.com/formbricks/riskmatch/internal/observability"
	"github.com/formbricks/riskmatch/internal/repository"
	"github.com/formbricks/riskmatch/internal/textnorm"
	"github.com/formbricks/riskmatch/pkg/database"
)

const (
	exitSuccess = 0
	exitFailure = 1
	kindAll     = "all"
)

var (
	errProviderRequired = errors.New("EMBEDDING_PROVIDER is required unless -dry-run is set")
	errNonPositiveFlag  = errors.New("-batch-size and -concurrency must be positive")
)

type cliOptions struct {
	kind        string
	batchSize   int
	concurrency int
	dryRun      bool
	force       bool
}

func main() {
	os.Exit(run(os.Args[1:]))
}

func parseFlags(args []string, cfg *config.Config) (cliOptions, error) {
	var opts cliOptions

	fs := flag.NewFlagSet("backfill-embeddings", flag.ContinueOnError)
	fs.StringVar(&opts.kind, "kind", kindAll, "record kind: risk, control or all")
	fs.IntVar(&opts.batchSize, "batch-size", cfg.BackfillBatchSize, "records fetched per page")
	fs.IntVar(&opts.concurrency, "concurrency", cfg.BackfillConcurrency, "concurrent provider calls")
	fs.BoolVar(&opts.dryRun, "dry-run", false, "count records without calling the provider")
	fs.BoolVar(&opts.force, "force", false, "recompute existing embeddings")

	if err := fs.Parse(args); err != nil {
		return cliOptions{}, err
	}

	if opts.kind != kindAll {
		if _, err := models.ParseRecordKind(opts.kind); err != nil {
			return cliOptions{}, err
		}
	}

	if opts.batchSize <= 0 || opts.concurrency <= 0 {
		return cliOptions{}, errNonPositiveFlag
	}

	return opts, nil
}

func run(args []string) int {
	slog.SetDefault(observability.NewLogger(os.Stdout, "info", false))

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)

		return exitFailure
	}

	slog.SetDefault(observability.NewLogger(os.Stdout, cfg.LogLevel, false))

	opts, err := parseFlags(args, cfg)
	if err != nil {
		slog.Error("Invalid flags", "error", err)

		return exitFailure
	}

	if !opts.dryRun && !cfg.EmbeddingsEnabled() {
		slog.Error(errProviderRequired.Error())

		return exitFailure
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// The API server creates the schema; this tool only needs the vector types registered.
	db, err := database.NewPostgresPool(ctx, cfg.DatabaseURL, database.WithVectorTypes())
	if err != nil {
		slog.Error("Failed to connect to database", "error", err)

		return exitFailure
	}
	defer db.Close()

	client, err := embedding.NewClient(ctx, cfg)
	if err != nil {
		slog.Error("Failed to create embedding client", "error", err)

		return exitFailure
	}

	genParams := embedding.Params{
		ProviderName: cfg.EmbeddingProvider,
		Model:        cfg.EmbeddingModel,
		Timeout:      cfg.EmbeddingTimeout,
		RateLimit:    cfg.EmbeddingRateLimit,
		Normalize:    cfg.EmbeddingNormalize,
	}
	if client != nil {
		genParams.Provider = client
	}

	pipeline := backfill.NewPipeline(backfill.PipelineParams{
		Store:      repository.NewRecordsRepository(db),
		Embedder:   embedding.NewGenerator(genParams),
		Normalizer: textnorm.New(cfg.MaxTextLength),
	})

	runOpts := backfill.Options{
		Kind:        models.RecordKind(opts.kind),
		BatchSize:   opts.batchSize,
		Concurrency: opts.concurrency,
		DryRun:      opts.dryRun,
		Force:       opts.force,
	}

	var results []backfill.Progress

	if opts.kind == kindAll {
		results, err = pipeline.RunAll(ctx, runOpts)
	} else {
		var progress backfill.Progress
		progress, err = pipeline.Run(ctx, runOpts)
		results = append(results, progress)
	}

	printSummary(os.Stdout, results)

	if err != nil {
		slog.Error("Backfill failed", "error", err)

		return exitFailure
	}

	slog.Info("Backfill complete")

	return exitSuccess
}

func printSummary(w io.Writer, results []backfill.Progress) {
	_, _ = fmt.Fprintln(w)
	_, _ = fmt.Fprintln(w, "Backfill Summary")
	_, _ = fmt.Fprintln(w, "================")

	for _, p := range results {
		if p.Options.Kind == "" {
			continue
		}

		mode := ""
		if p.Options.DryRun {
			mode = " (dry run)"
		}

		_, _ = fmt.Fprintf(w, "%-8s processed: %d  succeeded: %d  failed: %d  pages: %d%s\n",
			p.Options.Kind, p.Processed, p.Succeeded, p.Failed, p.Pages, mode)
	}

	_, _ = fmt.Fprintln(w)
}
