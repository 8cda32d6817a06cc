// Package workers provides River job workers.
package workers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/riverqueue/river"

	"github.com/formbricks/riskmatch/internal/apperrors"
	"github.com/formbricks/riskmatch/internal/models"
	"github.com/formbricks/riskmatch/internal/service"
	"github.com/formbricks/riskmatch/internal/textnorm"
)

var errEmbeddingUnavailable = errors.New("embedding unavailable")

const recordEmbeddingTimeout = 2 * time.Minute

// recordEmbeddingStore is the minimal repository surface the worker needs.
type recordEmbeddingStore interface {
	GetByID(ctx context.Context, kind models.RecordKind, id uuid.UUID) (*models.Record, error)
	UpdateEmbedding(ctx context.Context, kind models.RecordKind, id uuid.UUID, embedding []float32) error
}

// embedder generates embeddings; see embedding.Generator.
type embedder interface {
	Generate(ctx context.Context, text string) ([]float32, bool)
}

// RecordEmbeddingWorker recomputes the embedding of one record after its text changed.
type RecordEmbeddingWorker struct {
	river.WorkerDefaults[service.RecordEmbeddingArgs]

	store      recordEmbeddingStore
	embedder   embedder
	normalizer *textnorm.Normalizer
}

// NewRecordEmbeddingWorker creates the worker.
func NewRecordEmbeddingWorker(store recordEmbeddingStore, embedder embedder, normalizer *textnorm.Normalizer) *RecordEmbeddingWorker {
	if normalizer == nil {
		normalizer = textnorm.New(textnorm.DefaultMaxLength)
	}

	return &RecordEmbeddingWorker{
		store:      store,
		embedder:   embedder,
		normalizer: normalizer,
	}
}

// Timeout limits how long a single job can run.
func (w *RecordEmbeddingWorker) Timeout(*river.Job[service.RecordEmbeddingArgs]) time.Duration {
	return recordEmbeddingTimeout
}

// Work loads the record, embeds its normalized text and stores the vector. Records that vanished
// or have no text complete without retry; provider failures retry until the last attempt.
func (w *RecordEmbeddingWorker) Work(ctx context.Context, job *river.Job[service.RecordEmbeddingArgs]) error {
	args := job.Args

	rec, err := w.store.GetByID(ctx, args.RecordKind, args.RecordID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			slog.Info("embedding: record deleted before job ran", "kind", args.RecordKind, "record_id", args.RecordID)

			return nil
		}

		return fmt.Errorf("get %s: %w", args.RecordKind, err)
	}

	text := w.normalizer.CombineRecord(*rec)
	if text == "" {
		slog.Info("embedding: skipped (no text)", "kind", args.RecordKind, "record_id", args.RecordID)

		return nil
	}

	vec, ok := w.embedder.Generate(ctx, text)
	if !ok {
		if job.Attempt >= job.MaxAttempts {
			slog.Error("embedding: generation failed (final attempt)",
				"kind", args.RecordKind,
				"record_id", args.RecordID,
				"attempt", job.Attempt,
			)

			return nil
		}

		return fmt.Errorf("%s %s: %w", args.RecordKind, args.RecordID, errEmbeddingUnavailable)
	}

	if err := w.store.UpdateEmbedding(ctx, args.RecordKind, args.RecordID, vec); err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			slog.Info("embedding: record deleted before embedding was stored", "kind", args.RecordKind, "record_id", args.RecordID)

			return nil
		}

		return fmt.Errorf("store %s embedding: %w", args.RecordKind, err)
	}

	slog.Info("embedding: stored", "kind", args.RecordKind, "record_id", args.RecordID, "dimensions", len(vec))

	return nil
}
