package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/formbricks/riskmatch/internal/api/response"
	"github.com/formbricks/riskmatch/internal/apperrors"
	"github.com/formbricks/riskmatch/internal/models"
)

// Comparer scores two records (similarity.Searcher).
type Comparer interface {
	Compare(ctx context.Context, a, b models.Record) models.SimilarityResult
	ScorePair(ctx context.Context, a, b models.Record) (models.SimilarityResult, bool, error)
}

// CompareRequest is the body for POST /v1/similarity/compare.
type CompareRequest struct {
	A RecordRequest `json:"a"`
	B RecordRequest `json:"b"`
	// VectorOnly skips the heuristic fallback and fails when no embedding can be produced.
	VectorOnly bool `json:"vector_only"`
}

// SimilarityHandler handles pairwise comparison.
type SimilarityHandler struct {
	comparer Comparer
}

// NewSimilarityHandler creates a new similarity handler.
func NewSimilarityHandler(comparer Comparer) *SimilarityHandler {
	return &SimilarityHandler{comparer: comparer}
}

// Compare handles POST /v1/similarity/compare.
func (h *SimilarityHandler) Compare(w http.ResponseWriter, r *http.Request) {
	var req CompareRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	a, b := req.A.toRecord(), req.B.toRecord()

	if !req.VectorOnly {
		response.RespondJSON(w, http.StatusOK, h.comparer.Compare(r.Context(), a, b))

		return
	}

	result, ok, err := h.comparer.ScorePair(r.Context(), a, b)

	switch {
	case errors.Is(err, apperrors.ErrDimensionMismatch):
		response.RespondError(w, http.StatusUnprocessableEntity, "Unprocessable Entity", err.Error())
	case err != nil:
		response.RespondServiceError(w, r, err)
	case !ok:
		response.RespondServiceUnavailable(w, "embeddings unavailable")
	default:
		response.RespondJSON(w, http.StatusOK, result)
	}
}
