package repository

import (
	"context"
	"time"

	"github.com/jhoicas/inventario-ledger/internal/domain/entity"
)

// IdempotencyStore persiste llaves de idempotencia. Insert y TakeOver deben ser atómicos:
// dos reintentos concurrentes nunca obtienen ambos la llave.
type IdempotencyStore interface {
	// Insert crea la llave en STARTED si no existe (o si la existente expiró).
	// Si ya existe devuelve el registro existente y acquired=false.
	Insert(ctx context.Context, rec entity.IdempotencyRecord) (existing *entity.IdempotencyRecord, acquired bool, err error)
	// TakeOver vuelve a STARTED una llave FAILED o abandonada, solo si no cambió desde lastSeen,
	// y registra payloadHash como el payload de la nueva ejecución.
	TakeOver(ctx context.Context, operationKey string, lastSeen time.Time, payloadHash string) (bool, error)
	Complete(ctx context.Context, operationKey string, result []byte) error
	Fail(ctx context.Context, operationKey string, cause string) error
}
