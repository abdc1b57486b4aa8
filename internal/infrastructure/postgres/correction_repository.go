package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/jhoicas/inventario-ledger/internal/domain"
	"github.com/jhoicas/inventario-ledger/internal/domain/entity"
	"github.com/jhoicas/inventario-ledger/internal/domain/repository"
)

var _ repository.CorrectionRepository = (*CorrectionRepo)(nil)

// CorrectionRepo correcciones de inventario sobre stock_corrections.
type CorrectionRepo struct {
	q Querier
}

// NewCorrectionRepository construye el adaptador. Pasar pool o tx (Querier).
func NewCorrectionRepository(q Querier) *CorrectionRepo {
	return &CorrectionRepo{q: q}
}

// Create inserta la corrección sin movimiento enlazado.
func (r *CorrectionRepo) Create(ctx context.Context, c *entity.CorrectionRecord) error {
	_, err := r.q.Exec(ctx, `
		INSERT INTO stock_corrections (id, business_id, item_variant_id, location_id, system_count_before,
			physical_or_ledger_count, difference, reason, source, status, approved_by, approved_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		c.ID, c.BusinessID, c.ItemVariantID, c.LocationID, c.SystemCountBefore,
		c.PhysicalOrLedgerCount, c.Difference, c.Reason, c.Source, c.Status, c.ApprovedBy, c.ApprovedAt, c.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("create correction %s: %w", c.ID, domain.ErrConflict)
		}
		return fmt.Errorf("create correction: %w", err)
	}
	return nil
}

// LinkMovement enlaza la corrección con su movimiento. Una corrección se enlaza una sola vez.
func (r *CorrectionRepo) LinkMovement(ctx context.Context, correctionID, movementID string) error {
	tag, err := r.q.Exec(ctx, `
		UPDATE stock_corrections SET linked_movement_id = $2
		WHERE id = $1 AND linked_movement_id IS NULL`, correctionID, movementID)
	if err != nil {
		return fmt.Errorf("link correction movement: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("corrección %s sin enlazar: %w", correctionID, domain.ErrNotFound)
	}
	return nil
}

// GetByID obtiene una corrección.
func (r *CorrectionRepo) GetByID(ctx context.Context, id string) (*entity.CorrectionRecord, error) {
	var c entity.CorrectionRecord
	err := r.q.QueryRow(ctx, `
		SELECT id, business_id, item_variant_id, location_id, system_count_before, physical_or_ledger_count,
			difference, reason, source, status, COALESCE(linked_movement_id, ''), approved_by, approved_at, created_at
		FROM stock_corrections WHERE id = $1`, id).Scan(
		&c.ID, &c.BusinessID, &c.ItemVariantID, &c.LocationID, &c.SystemCountBefore, &c.PhysicalOrLedgerCount,
		&c.Difference, &c.Reason, &c.Source, &c.Status, &c.LinkedMovementID, &c.ApprovedBy, &c.ApprovedAt, &c.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get correction: %w", err)
	}
	return &c, nil
}
