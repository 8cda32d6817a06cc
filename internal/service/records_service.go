// Package service holds the business logic around risks and controls that sits between the HTTP
// handlers and the repositories.
package service

import (
	"context"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/formbricks/riskmatch/internal/apperrors"
	"github.com/formbricks/riskmatch/internal/models"
	"github.com/formbricks/riskmatch/internal/repository"
)

// RecordsRepository defines the data access RecordsService needs.
type RecordsRepository interface {
	Create(ctx context.Context, kind models.RecordKind, req repository.CreateRecordRequest) (*models.Record, error)
	GetByID(ctx context.Context, kind models.RecordKind, id uuid.UUID) (*models.Record, error)
	UpdateText(ctx context.Context, kind models.RecordKind, id uuid.UUID, req repository.CreateRecordRequest) (*models.Record, error)
}

// Refresher schedules embedding recomputation.
type Refresher interface {
	Refresh(ctx context.Context, kind models.RecordKind, id uuid.UUID) error
}

// RecordsService creates and edits risks and controls and keeps their embeddings current.
type RecordsService struct {
	repo      RecordsRepository
	refresher Refresher
}

// NewRecordsService creates a new records service. refresher may be nil.
func NewRecordsService(repo RecordsRepository, refresher Refresher) *RecordsService {
	return &RecordsService{repo: repo, refresher: refresher}
}

// CreateRecord validates and stores a record, then schedules its first embedding.
func (s *RecordsService) CreateRecord(ctx context.Context, kind models.RecordKind, req repository.CreateRecordRequest) (*models.Record, error) {
	if strings.TrimSpace(req.Title) == "" {
		return nil, apperrors.NewValidationError("title", "title is required")
	}

	rec, err := s.repo.Create(ctx, kind, req)
	if err != nil {
		return nil, err
	}

	s.refresh(ctx, rec)

	return rec, nil
}

// GetRecord returns one record.
func (s *RecordsService) GetRecord(ctx context.Context, kind models.RecordKind, id uuid.UUID) (*models.Record, error) {
	return s.repo.GetByID(ctx, kind, id)
}

// UpdateRecordText replaces the record's text. When any text field changes the stored embedding is
// cleared and a recompute is scheduled; an identical update is a no-op.
func (s *RecordsService) UpdateRecordText(
	ctx context.Context, kind models.RecordKind, id uuid.UUID, req repository.CreateRecordRequest,
) (*models.Record, error) {
	if strings.TrimSpace(req.Title) == "" {
		return nil, apperrors.NewValidationError("title", "title is required")
	}

	current, err := s.repo.GetByID(ctx, kind, id)
	if err != nil {
		return nil, err
	}

	if !textChanged(current, req) {
		return current, nil
	}

	rec, err := s.repo.UpdateText(ctx, kind, id, req)
	if err != nil {
		return nil, err
	}

	s.refresh(ctx, rec)

	return rec, nil
}

// refresh failures are logged; the record stays in the backfill set because its embedding is NULL.
func (s *RecordsService) refresh(ctx context.Context, rec *models.Record) {
	if s.refresher == nil {
		return
	}

	if err := s.refresher.Refresh(ctx, rec.Kind, rec.ID); err != nil {
		slog.Warn("embedding: failed to schedule refresh", "kind", rec.Kind, "record_id", rec.ID, "error", err)
	}
}

func textChanged(current *models.Record, req repository.CreateRecordRequest) bool {
	return current.Title != req.Title ||
		deref(current.ThreatDescription) != deref(req.ThreatDescription) ||
		deref(current.Description) != deref(req.Description)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}

	return *s
}
