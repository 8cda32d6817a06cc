// Package backfill computes missing embeddings for every stored record, page by page, with
// bounded parallelism. Runs are resumable: records that already have an embedding are skipped
// unless a forced run is requested.
package backfill

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/formbricks/riskmatch/internal/models"
	"github.com/formbricks/riskmatch/internal/observability"
	"github.com/formbricks/riskmatch/internal/textnorm"
	"github.com/formbricks/riskmatch/pkg/limiter"
)

// Defaults for Options.
const (
	DefaultBatchSize   = 100
	DefaultConcurrency = 3
)

var tracer = otel.Tracer("github.com/formbricks/riskmatch/internal/backfill")

var (
	errEmptyText            = errors.New("record has no text to embed")
	errEmbeddingUnavailable = errors.New("embedding unavailable")
)

// Store pages records and persists embeddings. Pages are ordered by id and start strictly
// after afterID (nil for the first page).
type Store interface {
	FindMissingEmbeddingsPage(ctx context.Context, kind models.RecordKind, afterID *uuid.UUID, limit int) ([]models.Record, error)
	FindRecordsPage(ctx context.Context, kind models.RecordKind, afterID *uuid.UUID, limit int) ([]models.Record, error)
	UpdateEmbedding(ctx context.Context, kind models.RecordKind, id uuid.UUID, embedding []float32) error
}

// Embedder produces embeddings; failures are reported as ok=false.
type Embedder interface {
	Generate(ctx context.Context, text string) ([]float32, bool)
}

// Executor runs a task under a concurrency bound (see limiter.Limiter).
type Executor interface {
	Execute(ctx context.Context, task func(context.Context) error) error
}

// Options configures one run.
type Options struct {
	Kind        models.RecordKind `json:"kind"`
	BatchSize   int               `json:"batch_size"`
	Concurrency int               `json:"concurrency"`
	// DryRun pages and counts records without calling the provider or writing.
	DryRun bool `json:"dry_run"`
	// Force recomputes records that already have an embedding.
	Force bool `json:"force"`
}

// Progress is the accumulated result of a run.
type Progress struct {
	Options   Options    `json:"options"`
	Processed int        `json:"processed"`
	Succeeded int        `json:"succeeded"`
	Failed    int        `json:"failed"`
	Pages     int        `json:"pages"`
	LastID    *uuid.UUID `json:"last_id,omitempty"`
}

// PipelineParams configures a Pipeline. Limiter, Normalizer, Metrics and Logger may be nil.
// Each run is bounded by Options.Concurrency; a Limiter, when set, is a further bound shared
// with other callers.
type PipelineParams struct {
	Store      Store
	Embedder   Embedder
	Normalizer *textnorm.Normalizer
	Limiter    Executor
	Metrics    observability.BackfillMetrics
	Logger     *slog.Logger
}

// Pipeline runs embedding backfills.
type Pipeline struct {
	store      Store
	embedder   Embedder
	normalizer *textnorm.Normalizer
	limiter    Executor
	metrics    observability.BackfillMetrics
	logger     *slog.Logger
}

// NewPipeline creates a Pipeline.
func NewPipeline(p PipelineParams) *Pipeline {
	logger := p.Logger
	if logger == nil {
		logger = slog.Default()
	}

	normalizer := p.Normalizer
	if normalizer == nil {
		normalizer = textnorm.New(textnorm.DefaultMaxLength)
	}

	return &Pipeline{
		store:      p.Store,
		embedder:   p.Embedder,
		normalizer: normalizer,
		limiter:    p.Limiter,
		metrics:    p.Metrics,
		logger:     logger,
	}
}

type outcome struct {
	id  uuid.UUID
	err error
}

// add folds one task outcome into the progress.
func (p Progress) add(o outcome) Progress {
	p.Processed++

	if o.err != nil {
		p.Failed++
	} else {
		p.Succeeded++
	}

	return p
}

// Run processes every qualifying record of opts.Kind. Per-record failures are counted and never
// stop the run. An error is returned only when paging fails or ctx is done; the progress made so
// far is returned with it.
func (p *Pipeline) Run(ctx context.Context, opts Options) (Progress, error) {
	ctx, span := tracer.Start(ctx, "backfill.Run", trace.WithAttributes(
		attribute.String("record.kind", string(opts.Kind)),
		attribute.Bool("backfill.dry_run", opts.DryRun),
		attribute.Bool("backfill.force", opts.Force),
	))
	defer span.End()

	progress, err := p.run(ctx, opts)

	span.SetAttributes(
		attribute.Int("backfill.processed", progress.Processed),
		attribute.Int("backfill.failed", progress.Failed),
	)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "backfill stopped")
	}

	return progress, err
}

func (p *Pipeline) run(ctx context.Context, opts Options) (Progress, error) {
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultBatchSize
	}

	if opts.Concurrency <= 0 {
		opts.Concurrency = DefaultConcurrency
	}

	if _, err := models.ParseRecordKind(string(opts.Kind)); err != nil {
		return Progress{Options: opts}, fmt.Errorf("backfill: %w", err)
	}

	progress := Progress{Options: opts}
	start := time.Now()

	var exec Executor
	if !opts.DryRun {
		exec = newRunExecutor(opts.Concurrency, p.limiter)
	}

	p.logger.InfoContext(ctx, "backfill: starting",
		"kind", opts.Kind,
		"batch_size", opts.BatchSize,
		"concurrency", opts.Concurrency,
		"dry_run", opts.DryRun,
		"force", opts.Force,
	)

	for {
		if err := ctx.Err(); err != nil {
			return progress, fmt.Errorf("backfill %s: %w", opts.Kind, err)
		}

		page, err := p.fetchPage(ctx, opts, progress.LastID)
		if err != nil {
			return progress, fmt.Errorf("backfill %s: fetch page after %v: %w", opts.Kind, progress.LastID, err)
		}

		if len(page) == 0 {
			break
		}

		progress.Pages++
		lastID := page[len(page)-1].ID
		progress.LastID = &lastID

		if opts.DryRun {
			progress.Processed += len(page)
			p.recordMetrics(ctx, opts.Kind, "dry_run", len(page))

			continue
		}

		before := progress
		for _, o := range p.processBatch(ctx, exec, opts.Kind, page) {
			progress = progress.add(o)
		}

		p.recordMetrics(ctx, opts.Kind, "succeeded", progress.Succeeded-before.Succeeded)
		p.recordMetrics(ctx, opts.Kind, "failed", progress.Failed-before.Failed)

		p.logger.InfoContext(ctx, "backfill: batch processed",
			"kind", opts.Kind,
			"batch", len(page),
			"processed", progress.Processed,
			"succeeded", progress.Succeeded,
			"failed", progress.Failed,
		)
	}

	p.logger.InfoContext(ctx, "backfill: finished",
		"kind", opts.Kind,
		"processed", progress.Processed,
		"succeeded", progress.Succeeded,
		"failed", progress.Failed,
		"pages", progress.Pages,
		"dry_run", opts.DryRun,
		"duration", time.Since(start).String(),
	)

	return progress, nil
}

// RunAll runs every record kind in turn with the same options (opts.Kind is ignored).
func (p *Pipeline) RunAll(ctx context.Context, opts Options) ([]Progress, error) {
	var results []Progress

	for _, kind := range models.RecordKinds() {
		opts.Kind = kind

		progress, err := p.Run(ctx, opts)
		results = append(results, progress)

		if err != nil {
			return results, err
		}
	}

	return results, nil
}

func (p *Pipeline) fetchPage(ctx context.Context, opts Options, afterID *uuid.UUID) ([]models.Record, error) {
	if opts.Force {
		return p.store.FindRecordsPage(ctx, opts.Kind, afterID, opts.BatchSize)
	}

	return p.store.FindMissingEmbeddingsPage(ctx, opts.Kind, afterID, opts.BatchSize)
}

// runExecutor admits a task only when both the per-run limiter and the shared executor have a
// free slot. The per-run slot is taken first so one run never holds more shared slots than its
// own concurrency.
type runExecutor struct {
	run    *limiter.Limiter
	shared Executor
}

func newRunExecutor(concurrency int, shared Executor) Executor {
	run := limiter.New(concurrency)
	if shared == nil {
		return run
	}

	return runExecutor{run: run, shared: shared}
}

func (e runExecutor) Execute(ctx context.Context, task func(context.Context) error) error {
	return e.run.Execute(ctx, func(runCtx context.Context) error {
		return e.shared.Execute(runCtx, task)
	})
}

// processBatch runs one task per record under exec. Tasks share nothing; each sends its
// outcome on the channel and the caller folds them.
func (p *Pipeline) processBatch(ctx context.Context, exec Executor, kind models.RecordKind, page []models.Record) []outcome {
	results := make(chan outcome, len(page))

	for _, rec := range page {
		go func() {
			err := exec.Execute(ctx, func(taskCtx context.Context) error {
				return p.embedRecord(taskCtx, kind, rec)
			})
			if err != nil {
				p.logger.WarnContext(ctx, "backfill: record failed", "kind", kind, "id", rec.ID, "error", err)
			}

			results <- outcome{id: rec.ID, err: err}
		}()
	}

	out := make([]outcome, 0, len(page))
	for range page {
		out = append(out, <-results)
	}

	return out
}

func (p *Pipeline) embedRecord(ctx context.Context, kind models.RecordKind, rec models.Record) error {
	text := p.normalizer.CombineRecord(rec)
	if text == "" {
		return errEmptyText
	}

	vec, ok := p.embedder.Generate(ctx, text)
	if !ok {
		return errEmbeddingUnavailable
	}

	if err := p.store.UpdateEmbedding(ctx, kind, rec.ID, vec); err != nil {
		return fmt.Errorf("update embedding: %w", err)
	}

	return nil
}

func (p *Pipeline) recordMetrics(ctx context.Context, kind models.RecordKind, status string, n int) {
	if p.metrics != nil {
		p.metrics.RecordRecords(ctx, string(kind), status, n)
	}
}
