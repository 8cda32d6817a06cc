package handlers

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/formbricks/riskmatch/internal/api/response"
	"github.com/formbricks/riskmatch/internal/models"
	"github.com/formbricks/riskmatch/internal/repository"
)

// RecordsService defines the record operations the handler needs.
type RecordsService interface {
	CreateRecord(ctx context.Context, kind models.RecordKind, req repository.CreateRecordRequest) (*models.Record, error)
	GetRecord(ctx context.Context, kind models.RecordKind, id uuid.UUID) (*models.Record, error)
	UpdateRecordText(ctx context.Context, kind models.RecordKind, id uuid.UUID, req repository.CreateRecordRequest) (*models.Record, error)
}

// RecordRequest is the text of a risk or control. It is also the shape of each side of a
// compare request.
type RecordRequest struct {
	Title             string  `json:"title"              validate:"required,max=500,no_null_bytes"`
	ThreatDescription *string `json:"threat_description" validate:"omitempty,max=10000,no_null_bytes"`
	Description       *string `json:"description"        validate:"omitempty,max=10000,no_null_bytes"`
}

func (r RecordRequest) toCreate() repository.CreateRecordRequest {
	return repository.CreateRecordRequest{
		Title:             r.Title,
		ThreatDescription: r.ThreatDescription,
		Description:       r.Description,
	}
}

func (r RecordRequest) toRecord() models.Record {
	return models.Record{
		Title:             r.Title,
		ThreatDescription: r.ThreatDescription,
		Description:       r.Description,
	}
}

// RecordsHandler handles /v1/risks and /v1/controls. Each route is bound to one kind.
type RecordsHandler struct {
	service RecordsService
}

// NewRecordsHandler creates a new records handler.
func NewRecordsHandler(service RecordsService) *RecordsHandler {
	return &RecordsHandler{service: service}
}

// Create handles POST /v1/{kind}s.
func (h *RecordsHandler) Create(kind models.RecordKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req RecordRequest
		if !decodeJSON(w, r, &req) {
			return
		}

		rec, err := h.service.CreateRecord(r.Context(), kind, req.toCreate())
		if err != nil {
			response.RespondServiceError(w, r, err)

			return
		}

		response.RespondJSON(w, http.StatusCreated, rec)
	}
}

// Get handles GET /v1/{kind}s/{id}.
func (h *RecordsHandler) Get(kind models.RecordKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := uuidParam(w, r, "id")
		if !ok {
			return
		}

		rec, err := h.service.GetRecord(r.Context(), kind, id)
		if err != nil {
			response.RespondServiceError(w, r, err)

			return
		}

		response.RespondJSON(w, http.StatusOK, rec)
	}
}

// Update handles PUT /v1/{kind}s/{id}: replaces the text and schedules a new embedding.
func (h *RecordsHandler) Update(kind models.RecordKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := uuidParam(w, r, "id")
		if !ok {
			return
		}

		var req RecordRequest
		if !decodeJSON(w, r, &req) {
			return
		}

		rec, err := h.service.UpdateRecordText(r.Context(), kind, id, req.toCreate())
		if err != nil {
			response.RespondServiceError(w, r, err)

			return
		}

		response.RespondJSON(w, http.StatusOK, rec)
	}
}
