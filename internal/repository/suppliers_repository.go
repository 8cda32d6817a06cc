package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/formbricks/riskmatch/internal/apperrors"
	"github.com/formbricks/riskmatch/internal/models"
)

// pgForeignKeyViolation is the PostgreSQL SQLSTATE for foreign_key_violation.
const pgForeignKeyViolation = "23503"

// SuppliersRepository handles data access for suppliers and their linked risks.
type SuppliersRepository struct {
	db *pgxpool.Pool
}

// NewSuppliersRepository creates a new suppliers repository.
func NewSuppliersRepository(db *pgxpool.Pool) *SuppliersRepository {
	return &SuppliersRepository{db: db}
}

// Create inserts a supplier profile and returns it with its generated id.
func (r *SuppliersRepository) Create(ctx context.Context, p models.SupplierProfile) (models.SupplierProfile, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return models.SupplierProfile{}, fmt.Errorf("generate id: %w", err)
	}

	_, err = r.db.Exec(ctx, `
		INSERT INTO suppliers (id, name, trading_name, supplier_type, service_description, risk_rationale, criticality_rationale)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		id, p.Name, p.TradingName, p.SupplierType, p.ServiceDescription, p.RiskRationale, p.CriticalityRationale,
	)
	if err != nil {
		return models.SupplierProfile{}, fmt.Errorf("failed to create supplier: %w", err)
	}

	p.ID = id

	return p, nil
}

// GetSupplier returns the supplier profile, or a NotFoundError.
func (r *SuppliersRepository) GetSupplier(ctx context.Context, id uuid.UUID) (models.SupplierProfile, error) {
	var p models.SupplierProfile

	err := r.db.QueryRow(ctx, `
		SELECT id, name, trading_name, supplier_type, service_description, risk_rationale, criticality_rationale
		FROM suppliers
		WHERE id = $1`, id,
	).Scan(&p.ID, &p.Name, &p.TradingName, &p.SupplierType, &p.ServiceDescription, &p.RiskRationale, &p.CriticalityRationale)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.SupplierProfile{}, apperrors.NewNotFoundError("supplier", "supplier not found")
		}

		return models.SupplierProfile{}, fmt.Errorf("failed to get supplier: %w", err)
	}

	return p, nil
}

// LinkRisk links a risk to a supplier. Linking twice is a no-op.
func (r *SuppliersRepository) LinkRisk(ctx context.Context, supplierID, riskID uuid.UUID) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO supplier_risks (supplier_id, risk_id)
		VALUES ($1, $2)
		ON CONFLICT DO NOTHING`, supplierID, riskID,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgForeignKeyViolation {
			return apperrors.NewNotFoundError("supplier risk", "supplier or risk not found")
		}

		return fmt.Errorf("failed to link risk: %w", err)
	}

	return nil
}

// FindLinkedRiskIDs returns the ids of risks already linked to the supplier.
func (r *SuppliersRepository) FindLinkedRiskIDs(ctx context.Context, supplierID uuid.UUID) ([]uuid.UUID, error) {
	rows, err := r.db.Query(ctx, `SELECT risk_id FROM supplier_risks WHERE supplier_id = $1`, supplierID)
	if err != nil {
		return nil, fmt.Errorf("list linked risks: %w", err)
	}
	defer rows.Close()

	var ids []uuid.UUID

	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan linked risk id: %w", err)
		}

		ids = append(ids, id)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating linked risks: %w", err)
	}

	return ids, nil
}

// MatchingStore joins the two repositories into the view relevance matching reads from.
type MatchingStore struct {
	Records   *RecordsRepository
	Suppliers *SuppliersRepository
}

// GetSupplier delegates to the suppliers repository.
func (s MatchingStore) GetSupplier(ctx context.Context, id uuid.UUID) (models.SupplierProfile, error) {
	return s.Suppliers.GetSupplier(ctx, id)
}

// FindCandidates delegates to the records repository.
func (s MatchingStore) FindCandidates(ctx context.Context, filter models.CandidateFilter, limit int) ([]models.Record, error) {
	return s.Records.FindCandidates(ctx, filter, limit)
}

// FindLinkedRiskIDs delegates to the suppliers repository.
func (s MatchingStore) FindLinkedRiskIDs(ctx context.Context, supplierID uuid.UUID) ([]uuid.UUID, error) {
	return s.Suppliers.FindLinkedRiskIDs(ctx, supplierID)
}
