package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// RecordKind identifies which table a record lives in. Both kinds share one embedding pipeline.
type RecordKind string

// Record kinds.
const (
	RecordKindRisk    RecordKind = "risk"
	RecordKindControl RecordKind = "control"
)

// RecordKinds returns every kind in backfill order.
func RecordKinds() []RecordKind {
	return []RecordKind{RecordKindRisk, RecordKindControl}
}

// ParseRecordKind converts a string to a RecordKind.
func ParseRecordKind(s string) (RecordKind, error) {
	switch RecordKind(s) {
	case RecordKindRisk, RecordKindControl:
		return RecordKind(s), nil
	default:
		return "", fmt.Errorf("invalid record kind %q", s)
	}
}

// Record is a risk-like or control-like row. Embedding is nil until computed.
type Record struct {
	ID                uuid.UUID  `json:"id"`
	Kind              RecordKind `json:"kind"`
	Title             string     `json:"title"`
	ThreatDescription *string    `json:"threat_description,omitempty"`
	Description       *string    `json:"description,omitempty"`
	Embedding         []float32  `json:"-"`
	Archived          bool       `json:"archived"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

// HasEmbedding reports whether an embedding has been stored for the record.
func (r Record) HasEmbedding() bool {
	return len(r.Embedding) > 0
}

// CandidateFilter narrows FindCandidates.
type CandidateFilter struct {
	Kind            RecordKind
	IncludeArchived bool
}
