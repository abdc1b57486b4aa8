package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/jhoicas/inventario-ledger/internal/domain"
	"github.com/jhoicas/inventario-ledger/internal/domain/entity"
	"github.com/jhoicas/inventario-ledger/internal/domain/repository"
)

var _ repository.BalanceRepository = (*BalanceRepo)(nil)

// BalanceRepo implementación de BalanceRepository sobre stock_balances (usable con pool o tx).
type BalanceRepo struct {
	q Querier
}

// NewBalanceRepository construye el adaptador. Pasar pool o tx (Querier).
func NewBalanceRepository(q Querier) *BalanceRepo {
	return &BalanceRepo{q: q}
}

const selectBalance = `
	SELECT item_variant_id, location_id, business_id, quantity_available, updated_at
	FROM stock_balances`

// Get obtiene el saldo de una llave; sin fila devuelve cero.
func (r *BalanceRepo) Get(ctx context.Context, businessID string, key entity.StockKey) (*entity.BalanceRecord, error) {
	b, err := r.scanOne(ctx, selectBalance+`
		WHERE business_id = $1 AND item_variant_id = $2 AND location_id = $3`,
		businessID, key)
	if err != nil {
		return nil, fmt.Errorf("get balance: %w", err)
	}
	return b, nil
}

// GetForUpdate bloquea la fila hasta el fin de la transacción (SELECT FOR UPDATE). Si la llave
// no tenía fila la crea en cero primero, para que el bloqueo exista también en el primer toque.
func (r *BalanceRepo) GetForUpdate(ctx context.Context, businessID string, key entity.StockKey) (*entity.BalanceRecord, error) {
	_, err := r.q.Exec(ctx, `
		INSERT INTO stock_balances (item_variant_id, location_id, business_id, quantity_available, updated_at)
		VALUES ($1, $2, $3, 0, now())
		ON CONFLICT (business_id, item_variant_id, location_id) DO NOTHING`,
		key.ItemVariantID, key.LocationID, businessID)
	if err != nil {
		return nil, fmt.Errorf("seed balance: %w", err)
	}
	var b entity.BalanceRecord
	err = r.q.QueryRow(ctx, selectBalance+`
		WHERE business_id = $1 AND item_variant_id = $2 AND location_id = $3
		FOR UPDATE`,
		businessID, key.ItemVariantID, key.LocationID).Scan(
		&b.ItemVariantID, &b.LocationID, &b.BusinessID, &b.QuantityAvailable, &b.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		// Sin fila bloqueada no hay exclusión: nunca se escribe a ciegas.
		return nil, fmt.Errorf("get balance for update %s: %w", key, domain.ErrConflict)
	}
	if err != nil {
		return nil, fmt.Errorf("get balance for update: %w", err)
	}
	return &b, nil
}

// ListByLocation lista los saldos de una ubicación.
func (r *BalanceRepo) ListByLocation(ctx context.Context, businessID, locationID string) ([]entity.BalanceRecord, error) {
	rows, err := r.q.Query(ctx, selectBalance+`
		WHERE business_id = $1 AND location_id = $2
		ORDER BY location_id, item_variant_id`, businessID, locationID)
	if err != nil {
		return nil, fmt.Errorf("list balances: %w", err)
	}
	defer rows.Close()

	var out []entity.BalanceRecord
	for rows.Next() {
		var b entity.BalanceRecord
		if err := rows.Scan(&b.ItemVariantID, &b.LocationID, &b.BusinessID, &b.QuantityAvailable, &b.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan balance: %w", err)
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// Upsert fija la cantidad disponible de la llave.
func (r *BalanceRepo) Upsert(ctx context.Context, b *entity.BalanceRecord) error {
	_, err := r.q.Exec(ctx, `
		INSERT INTO stock_balances (item_variant_id, location_id, business_id, quantity_available, updated_at)
		VALUES ($1, $2, $3, $4, now())
		ON CONFLICT (business_id, item_variant_id, location_id)
		DO UPDATE SET quantity_available = EXCLUDED.quantity_available, updated_at = now()`,
		b.ItemVariantID, b.LocationID, b.BusinessID, b.QuantityAvailable)
	if err != nil {
		return fmt.Errorf("upsert balance: %w", err)
	}
	return nil
}

func (r *BalanceRepo) scanOne(ctx context.Context, query, businessID string, key entity.StockKey) (*entity.BalanceRecord, error) {
	var b entity.BalanceRecord
	err := r.q.QueryRow(ctx, query, businessID, key.ItemVariantID, key.LocationID).Scan(
		&b.ItemVariantID, &b.LocationID, &b.BusinessID, &b.QuantityAvailable, &b.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return &entity.BalanceRecord{
			ItemVariantID:     key.ItemVariantID,
			LocationID:        key.LocationID,
			BusinessID:        businessID,
			QuantityAvailable: decimal.Zero,
		}, nil
	}
	if err != nil {
		return nil, err
	}
	return &b, nil
}
