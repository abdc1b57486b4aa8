package repository

import (
	"context"

	"github.com/jhoicas/inventario-ledger/internal/domain/entity"
)

// MovementRepository puerto del log de movimientos (solo inserción).
type MovementRepository interface {
	Create(ctx context.Context, movement *entity.Movement) error
	ListByKey(ctx context.Context, businessID string, key entity.StockKey) ([]entity.Movement, error)
}

// CorrectionRepository puerto de persistencia de correcciones.
type CorrectionRepository interface {
	Create(ctx context.Context, correction *entity.CorrectionRecord) error
	// LinkMovement enlaza la corrección con el movimiento creado a partir de ella.
	LinkMovement(ctx context.Context, correctionID, movementID string) error
	GetByID(ctx context.Context, id string) (*entity.CorrectionRecord, error)
}
