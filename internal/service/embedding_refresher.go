package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/riverqueue/river"
	"github.com/riverqueue/river/rivertype"

	"github.com/formbricks/riskmatch/internal/models"
)

// EmbeddingJobInserter inserts jobs (the River client in production).
type EmbeddingJobInserter interface {
	Insert(ctx context.Context, args river.JobArgs, opts *river.InsertOpts) (*rivertype.JobInsertResult, error)
}

// EmbeddingRefresher enqueues a recompute job whenever a record's source text changes.
type EmbeddingRefresher struct {
	inserter    EmbeddingJobInserter
	queueName   string
	maxAttempts int
}

// NewEmbeddingRefresher creates a refresher. A nil inserter disables it (Refresh becomes a no-op),
// which is how the service runs without River.
func NewEmbeddingRefresher(inserter EmbeddingJobInserter, queueName string, maxAttempts int) *EmbeddingRefresher {
	return &EmbeddingRefresher{
		inserter:    inserter,
		queueName:   queueName,
		maxAttempts: maxAttempts,
	}
}

// Refresh enqueues a RecordEmbeddingArgs job for the record.
func (r *EmbeddingRefresher) Refresh(ctx context.Context, kind models.RecordKind, id uuid.UUID) error {
	if r == nil || r.inserter == nil {
		return nil
	}

	res, err := r.inserter.Insert(ctx, RecordEmbeddingArgs{RecordKind: kind, RecordID: id}, &river.InsertOpts{
		Queue:       r.queueName,
		MaxAttempts: r.maxAttempts,
		UniqueOpts:  river.UniqueOpts{ByArgs: true},
	})
	if err != nil {
		return fmt.Errorf("enqueue %s embedding: %w", kind, err)
	}

	if res != nil && res.UniqueSkippedAsDuplicate {
		slog.Debug("embedding: refresh already pending", "kind", kind, "record_id", id)

		return nil
	}

	slog.Debug("embedding: refresh enqueued", "kind", kind, "record_id", id)

	return nil
}
