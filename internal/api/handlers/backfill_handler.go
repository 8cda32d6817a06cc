package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/formbricks/riskmatch/internal/api/response"
	"github.com/formbricks/riskmatch/internal/api/validation"
	"github.com/formbricks/riskmatch/internal/backfill"
	"github.com/formbricks/riskmatch/internal/models"
)

// BackfillRunner runs embedding backfills (backfill.Pipeline).
type BackfillRunner interface {
	Run(ctx context.Context, opts backfill.Options) (backfill.Progress, error)
	RunAll(ctx context.Context, opts backfill.Options) ([]backfill.Progress, error)
}

// BackfillRequest is the body for POST /v1/embeddings/backfill.
type BackfillRequest struct {
	Kind        string `json:"kind"        validate:"required,record_kind_or_all"`
	BatchSize   int    `json:"batch_size"  validate:"gte=0,lte=1000"`
	Concurrency int    `json:"concurrency" validate:"gte=0,lte=32"`
	DryRun      bool   `json:"dry_run"`
	Force       bool   `json:"force"`
}

// BackfillResponse lists the progress of every kind that ran.
type BackfillResponse struct {
	Results []backfill.Progress `json:"results"`
}

// BackfillHandler triggers backfills synchronously.
type BackfillHandler struct {
	runner             BackfillRunner
	embeddingsEnabled  bool
	defaultBatchSize   int
	defaultConcurrency int
}

// NewBackfillHandler creates a new backfill handler. When embeddings are disabled only dry runs
// are accepted.
func NewBackfillHandler(runner BackfillRunner, embeddingsEnabled bool, defaultBatchSize, defaultConcurrency int) *BackfillHandler {
	return &BackfillHandler{
		runner:             runner,
		embeddingsEnabled:  embeddingsEnabled,
		defaultBatchSize:   defaultBatchSize,
		defaultConcurrency: defaultConcurrency,
	}
}

// Run handles POST /v1/embeddings/backfill.
func (h *BackfillHandler) Run(w http.ResponseWriter, r *http.Request) {
	var req BackfillRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if !req.DryRun && !h.embeddingsEnabled {
		response.RespondServiceUnavailable(w, "no embedding provider configured")

		return
	}

	opts := backfill.Options{
		BatchSize:   req.BatchSize,
		Concurrency: req.Concurrency,
		DryRun:      req.DryRun,
		Force:       req.Force,
	}
	if opts.BatchSize == 0 {
		opts.BatchSize = h.defaultBatchSize
	}

	if opts.Concurrency == 0 {
		opts.Concurrency = h.defaultConcurrency
	}

	var (
		results []backfill.Progress
		err     error
	)

	if req.Kind == validation.KindAll {
		results, err = h.runner.RunAll(r.Context(), opts)
	} else {
		opts.Kind = models.RecordKind(req.Kind)

		var progress backfill.Progress
		progress, err = h.runner.Run(r.Context(), opts)
		results = []backfill.Progress{progress}
	}

	if err != nil {
		slog.ErrorContext(r.Context(), "backfill: request failed", "kind", req.Kind, "error", err)
		response.RespondInternalServerError(w, "backfill stopped before completion")

		return
	}

	response.RespondJSON(w, http.StatusOK, BackfillResponse{Results: results})
}
