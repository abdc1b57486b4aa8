package postgres

import (
	"context"
	"fmt"

	"github.com/jhoicas/inventario-ledger/internal/domain/entity"
	"github.com/jhoicas/inventario-ledger/internal/domain/repository"
)

var _ repository.MovementRepository = (*MovementRepo)(nil)

// MovementRepo log de solo inserción stock_movements (usable con pool o tx).
type MovementRepo struct {
	q Querier
}

// NewMovementRepository construye el adaptador. Pasar pool o tx (Querier).
func NewMovementRepository(q Querier) *MovementRepo {
	return &MovementRepo{q: q}
}

// Create persiste un movimiento. No existe Update ni Delete.
func (r *MovementRepo) Create(ctx context.Context, m *entity.Movement) error {
	_, err := r.q.Exec(ctx, `
		INSERT INTO stock_movements (id, business_id, item_variant_id, location_id, source_kind, reference_type,
			reference_id, quantity_in, quantity_out, counterparty_label, note, occurred_at, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		m.ID, m.BusinessID, m.ItemVariantID, m.LocationID, string(m.SourceKind), m.ReferenceType,
		m.ReferenceID, m.QuantityIn, m.QuantityOut, nullableString(m.CounterpartyLabel), nullableString(m.Note),
		m.Timestamp, nullableString(m.CreatedBy),
	)
	if err != nil {
		return fmt.Errorf("create movement: %w", err)
	}
	return nil
}

// ListByKey lista los movimientos registrados de una llave, en orden de ocurrencia.
func (r *MovementRepo) ListByKey(ctx context.Context, businessID string, key entity.StockKey) ([]entity.Movement, error) {
	rows, err := r.q.Query(ctx, `
		SELECT id, business_id, item_variant_id, location_id, source_kind, reference_type, reference_id,
			quantity_in, quantity_out, COALESCE(counterparty_label, ''), COALESCE(note, ''), occurred_at,
			COALESCE(created_by, '')
		FROM stock_movements
		WHERE business_id = $1 AND item_variant_id = $2 AND location_id = $3
		ORDER BY occurred_at, id`, businessID, key.ItemVariantID, key.LocationID)
	if err != nil {
		return nil, fmt.Errorf("list movements: %w", err)
	}
	defer rows.Close()

	var out []entity.Movement
	for rows.Next() {
		var m entity.Movement
		var kind string
		if err := rows.Scan(&m.ID, &m.BusinessID, &m.ItemVariantID, &m.LocationID, &kind, &m.ReferenceType,
			&m.ReferenceID, &m.QuantityIn, &m.QuantityOut, &m.CounterpartyLabel, &m.Note, &m.Timestamp,
			&m.CreatedBy); err != nil {
			return nil, fmt.Errorf("scan movement: %w", err)
		}
		m.SourceKind = entity.SourceKind(kind)
		out = append(out, m)
	}
	return out, rows.Err()
}
