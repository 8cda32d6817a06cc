package models

import "github.com/google/uuid"

// SupplierProfile is the read-only view of a supplier used to build a relevance query.
type SupplierProfile struct {
	ID                   uuid.UUID `json:"id"`
	Name                 string    `json:"name"`
	TradingName          *string   `json:"trading_name,omitempty"`
	SupplierType         *string   `json:"supplier_type,omitempty"`
	ServiceDescription   *string   `json:"service_description,omitempty"`
	RiskRationale        *string   `json:"risk_rationale,omitempty"`
	CriticalityRationale *string   `json:"criticality_rationale,omitempty"`
}

// RiskSuggestion is a risk proposed for linking to a supplier.
type RiskSuggestion struct {
	RiskID        uuid.UUID `json:"risk_id"`
	Title         string    `json:"title"`
	Score         int       `json:"score"`
	MatchedFields []string  `json:"matched_fields"`
}
