package handlers

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/formbricks/riskmatch/internal/api/response"
	"github.com/formbricks/riskmatch/internal/api/validation"
	"github.com/formbricks/riskmatch/internal/models"
)

// SuppliersStore defines the supplier data access the handler needs.
type SuppliersStore interface {
	Create(ctx context.Context, p models.SupplierProfile) (models.SupplierProfile, error)
	GetSupplier(ctx context.Context, id uuid.UUID) (models.SupplierProfile, error)
	LinkRisk(ctx context.Context, supplierID, riskID uuid.UUID) error
}

// RiskSuggester proposes risks for a supplier (relevance.Matcher).
type RiskSuggester interface {
	SuggestRisks(ctx context.Context, supplierID uuid.UUID, limit int) []models.RiskSuggestion
}

// SupplierRequest is the body for POST /v1/suppliers.
type SupplierRequest struct {
	Name                 string  `json:"name"                  validate:"required,max=500,no_null_bytes"`
	TradingName          *string `json:"trading_name"          validate:"omitempty,max=500,no_null_bytes"`
	SupplierType         *string `json:"supplier_type"         validate:"omitempty,max=200,no_null_bytes"`
	ServiceDescription   *string `json:"service_description"   validate:"omitempty,max=10000,no_null_bytes"`
	RiskRationale        *string `json:"risk_rationale"        validate:"omitempty,max=10000,no_null_bytes"`
	CriticalityRationale *string `json:"criticality_rationale" validate:"omitempty,max=10000,no_null_bytes"`
}

// SuggestionsQuery holds the query parameters of the suggestions endpoint. Limit 0 means the
// configured default.
type SuggestionsQuery struct {
	Limit int `form:"limit" validate:"gte=0,lte=100"`
}

// SuppliersHandler handles supplier profiles, supplier/risk links and risk suggestions.
type SuppliersHandler struct {
	store     SuppliersStore
	suggester RiskSuggester
}

// NewSuppliersHandler creates a new suppliers handler.
func NewSuppliersHandler(store SuppliersStore, suggester RiskSuggester) *SuppliersHandler {
	return &SuppliersHandler{store: store, suggester: suggester}
}

// Create handles POST /v1/suppliers.
func (h *SuppliersHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req SupplierRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	supplier, err := h.store.Create(r.Context(), models.SupplierProfile{
		Name:                 req.Name,
		TradingName:          req.TradingName,
		SupplierType:         req.SupplierType,
		ServiceDescription:   req.ServiceDescription,
		RiskRationale:        req.RiskRationale,
		CriticalityRationale: req.CriticalityRationale,
	})
	if err != nil {
		response.RespondServiceError(w, r, err)

		return
	}

	response.RespondJSON(w, http.StatusCreated, supplier)
}

// Get handles GET /v1/suppliers/{id}.
func (h *SuppliersHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}

	supplier, err := h.store.GetSupplier(r.Context(), id)
	if err != nil {
		response.RespondServiceError(w, r, err)

		return
	}

	response.RespondJSON(w, http.StatusOK, supplier)
}

// LinkRisk handles PUT /v1/suppliers/{id}/risks/{riskID}. Linked risks are never suggested again.
func (h *SuppliersHandler) LinkRisk(w http.ResponseWriter, r *http.Request) {
	supplierID, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}

	riskID, ok := uuidParam(w, r, "riskID")
	if !ok {
		return
	}

	if err := h.store.LinkRisk(r.Context(), supplierID, riskID); err != nil {
		response.RespondServiceError(w, r, err)

		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Suggestions handles GET /v1/suppliers/{id}/risk-suggestions?limit=N. An unknown supplier is a
// 404; every other failure inside matching yields an empty list.
func (h *SuppliersHandler) Suggestions(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}

	var query SuggestionsQuery
	if err := validation.ValidateAndDecodeQueryParams(r, &query); err != nil {
		validation.RespondValidationError(w, err)

		return
	}

	if _, err := h.store.GetSupplier(r.Context(), id); err != nil {
		response.RespondServiceError(w, r, err)

		return
	}

	response.RespondJSON(w, http.StatusOK, h.suggester.SuggestRisks(r.Context(), id, query.Limit))
}
