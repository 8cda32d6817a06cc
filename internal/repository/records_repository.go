// Package repository provides PostgreSQL data access for risks, controls and suppliers.
package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/formbricks/riskmatch/internal/apperrors"
	"github.com/formbricks/riskmatch/internal/models"
)

// errEmbeddingScanInvalidType is returned when Scan receives a type other than []byte.
var errEmbeddingScanInvalidType = errors.New("embedding: expected []byte")

// nullableEmbedding scans a vector column that may be NULL (pgvector.Vector.Scan panics on NULL).
type nullableEmbedding []float32

func (n *nullableEmbedding) Scan(src any) error {
	if src == nil {
		*n = nil

		return nil
	}

	buf, ok := src.([]byte)
	if !ok {
		return fmt.Errorf("%w: got %T", errEmbeddingScanInvalidType, src)
	}

	if len(buf) == 0 {
		*n = nil

		return nil
	}

	var vec pgvector.Vector
	if err := vec.DecodeBinary(buf); err != nil {
		return fmt.Errorf("embedding decode: %w", err)
	}

	*n = vec.Slice()

	return nil
}

// tableFor maps a record kind to its table. Only known kinds reach SQL.
func tableFor(kind models.RecordKind) (string, error) {
	switch kind {
	case models.RecordKindRisk:
		return "risks", nil
	case models.RecordKindControl:
		return "controls", nil
	default:
		return "", apperrors.NewValidationError("kind", fmt.Sprintf("unknown record kind %q", kind))
	}
}

const recordColumns = `id, title, threat_description, description, embedding, archived, created_at, updated_at`

// RecordsRepository handles data access for risks and controls. Both tables share one shape.
type RecordsRepository struct {
	db *pgxpool.Pool
}

// NewRecordsRepository creates a new records repository.
func NewRecordsRepository(db *pgxpool.Pool) *RecordsRepository {
	return &RecordsRepository{db: db}
}

// CreateRecordRequest is the input for Create.
type CreateRecordRequest struct {
	Title             string
	ThreatDescription *string
	Description       *string
}

// Create inserts a record with a time-ordered (v7) id so cursor pagination follows insertion order.
func (r *RecordsRepository) Create(ctx context.Context, kind models.RecordKind, req CreateRecordRequest) (*models.Record, error) {
	table, err := tableFor(kind)
	if err != nil {
		return nil, err
	}

	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("generate id: %w", err)
	}

	query := fmt.Sprintf(`
		INSERT INTO %s (id, title, threat_description, description)
		VALUES ($1, $2, $3, $4)
		RETURNING %s`, table, recordColumns)

	rec, err := scanRecord(r.db.QueryRow(ctx, query, id, req.Title, req.ThreatDescription, req.Description), kind)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", kind, err)
	}

	return rec, nil
}

// GetByID returns one record, or a NotFoundError.
func (r *RecordsRepository) GetByID(ctx context.Context, kind models.RecordKind, id uuid.UUID) (*models.Record, error) {
	table, err := tableFor(kind)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`SELECT %s FROM %s WHERE id = $1`, recordColumns, table)

	rec, err := scanRecord(r.db.QueryRow(ctx, query, id), kind)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFoundError(string(kind), string(kind)+" not found")
		}

		return nil, fmt.Errorf("failed to get %s: %w", kind, err)
	}

	return rec, nil
}

// UpdateText replaces the source text of a record and clears its embedding, which is stale from
// then on. Returns the updated record.
func (r *RecordsRepository) UpdateText(ctx context.Context, kind models.RecordKind, id uuid.UUID, req CreateRecordRequest) (*models.Record, error) {
	table, err := tableFor(kind)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`
		UPDATE %s
		SET title = $2, threat_description = $3, description = $4, embedding = NULL, updated_at = $5
		WHERE id = $1
		RETURNING %s`, table, recordColumns)

	rec, err := scanRecord(r.db.QueryRow(ctx, query, id, req.Title, req.ThreatDescription, req.Description, time.Now()), kind)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFoundError(string(kind), string(kind)+" not found")
		}

		return nil, fmt.Errorf("failed to update %s: %w", kind, err)
	}

	return rec, nil
}

// FindCandidates returns up to limit records of filter.Kind, oldest first, with their embeddings.
func (r *RecordsRepository) FindCandidates(ctx context.Context, filter models.CandidateFilter, limit int) ([]models.Record, error) {
	table, err := tableFor(filter.Kind)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`SELECT %s FROM %s`, recordColumns, table)
	if !filter.IncludeArchived {
		query += ` WHERE archived = FALSE`
	}

	query += ` ORDER BY id LIMIT $1`

	return r.queryRecords(ctx, filter.Kind, query, limit)
}

// FindMissingEmbeddingsPage returns up to limit records without an embedding whose id is greater
// than afterID (all when nil), ordered by id.
func (r *RecordsRepository) FindMissingEmbeddingsPage(
	ctx context.Context, kind models.RecordKind, afterID *uuid.UUID, limit int,
) ([]models.Record, error) {
	return r.page(ctx, kind, afterID, limit, true)
}

// FindRecordsPage is FindMissingEmbeddingsPage without the missing-embedding filter.
func (r *RecordsRepository) FindRecordsPage(
	ctx context.Context, kind models.RecordKind, afterID *uuid.UUID, limit int,
) ([]models.Record, error) {
	return r.page(ctx, kind, afterID, limit, false)
}

func (r *RecordsRepository) page(
	ctx context.Context, kind models.RecordKind, afterID *uuid.UUID, limit int, missingOnly bool,
) ([]models.Record, error) {
	table, err := tableFor(kind)
	if err != nil {
		return nil, err
	}

	query, args := buildPageQuery(table, afterID, limit, missingOnly)

	return r.queryRecords(ctx, kind, query, args...)
}

// buildPageQuery builds the keyset pagination query for one table.
func buildPageQuery(table string, afterID *uuid.UUID, limit int, missingOnly bool) (string, []any) {
	var (
		conditions []string
		args       []any
	)

	if missingOnly {
		conditions = append(conditions, "embedding IS NULL")
	}

	if afterID != nil {
		args = append(args, *afterID)
		conditions = append(conditions, fmt.Sprintf("id > $%d", len(args)))
	}

	query := fmt.Sprintf(`SELECT %s FROM %s`, recordColumns, table)
	for i, c := range conditions {
		if i == 0 {
			query += " WHERE " + c
		} else {
			query += " AND " + c
		}
	}

	args = append(args, limit)
	query += fmt.Sprintf(" ORDER BY id LIMIT $%d", len(args))

	return query, args
}

// UpdateEmbedding stores the embedding for one record.
func (r *RecordsRepository) UpdateEmbedding(ctx context.Context, kind models.RecordKind, id uuid.UUID, embedding []float32) error {
	table, err := tableFor(kind)
	if err != nil {
		return err
	}

	query := fmt.Sprintf(`UPDATE %s SET embedding = $2 WHERE id = $1`, table)

	tag, err := r.db.Exec(ctx, query, id, pgvector.NewVector(embedding))
	if err != nil {
		return fmt.Errorf("update %s embedding: %w", kind, err)
	}

	if tag.RowsAffected() == 0 {
		return apperrors.NewNotFoundError(string(kind), string(kind)+" not found")
	}

	return nil
}

func (r *RecordsRepository) queryRecords(ctx context.Context, kind models.RecordKind, query string, args ...any) ([]models.Record, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", kind, err)
	}
	defer rows.Close()

	records := []models.Record{}

	for rows.Next() {
		rec, err := scanRecord(rows, kind)
		if err != nil {
			return nil, fmt.Errorf("scan %s: %w", kind, err)
		}

		records = append(records, *rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating %s: %w", kind, err)
	}

	return records, nil
}

func scanRecord(row pgx.Row, kind models.RecordKind) (*models.Record, error) {
	var (
		rec models.Record
		emb nullableEmbedding
	)

	if err := row.Scan(
		&rec.ID, &rec.Title, &rec.ThreatDescription, &rec.Description, &emb,
		&rec.Archived, &rec.CreatedAt, &rec.UpdatedAt,
	); err != nil {
		return nil, err
	}

	rec.Kind = kind
	rec.Embedding = emb

	return &rec, nil
}
