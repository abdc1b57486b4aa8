package repository

import (
	"context"

	"github.com/jhoicas/inventario-ledger/internal/domain/entity"
)

// BalanceReader lectura de la caché de saldos (fuera de transacción).
// Una llave sin fila devuelve saldo cero.
type BalanceReader interface {
	Get(ctx context.Context, businessID string, key entity.StockKey) (*entity.BalanceRecord, error)
	ListByLocation(ctx context.Context, businessID, locationID string) ([]entity.BalanceRecord, error)
}

// BalanceRepository define el puerto de escritura de saldos. Solo el aplicador de correcciones
// lo usa, siempre dentro de una transacción.
type BalanceRepository interface {
	BalanceReader
	// GetForUpdate bloquea la fila (SELECT FOR UPDATE) hasta el fin de la transacción.
	GetForUpdate(ctx context.Context, businessID string, key entity.StockKey) (*entity.BalanceRecord, error)
	Upsert(ctx context.Context, balance *entity.BalanceRecord) error
}
