package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/jhoicas/inventario-ledger/internal/domain"
	"github.com/jhoicas/inventario-ledger/internal/domain/entity"
	"github.com/jhoicas/inventario-ledger/internal/domain/repository"
)

var _ repository.IdempotencyStore = (*IdempotencyRepo)(nil)

// IdempotencyRepo llaves de idempotencia en idempotency_keys. La llave primaria hace atómico el
// check-and-set de Insert; TakeOver es un compare-and-swap sobre updated_at.
type IdempotencyRepo struct {
	q Querier
}

// NewIdempotencyRepository construye el adaptador.
func NewIdempotencyRepository(q Querier) *IdempotencyRepo {
	return &IdempotencyRepo{q: q}
}

// Insert crea la llave; si existía y ya expiró la reemplaza.
func (r *IdempotencyRepo) Insert(ctx context.Context, rec entity.IdempotencyRecord) (*entity.IdempotencyRecord, bool, error) {
	var key string
	err := r.q.QueryRow(ctx, `
		INSERT INTO idempotency_keys (operation_key, business_id, operation, payload_hash, status, created_at, updated_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (operation_key) DO UPDATE SET
			business_id = EXCLUDED.business_id,
			operation = EXCLUDED.operation,
			payload_hash = EXCLUDED.payload_hash,
			status = EXCLUDED.status,
			result = NULL,
			last_error = NULL,
			created_at = EXCLUDED.created_at,
			updated_at = EXCLUDED.updated_at,
			expires_at = EXCLUDED.expires_at
		WHERE idempotency_keys.expires_at < EXCLUDED.created_at
		RETURNING operation_key`,
		rec.OperationKey, rec.BusinessID, rec.Operation, rec.PayloadHash, string(rec.Status),
		rec.CreatedAt, rec.UpdatedAt, rec.ExpiresAt,
	).Scan(&key)
	if err == nil {
		return nil, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, false, fmt.Errorf("insert idempotency key: %w", err)
	}
	existing, err := r.get(ctx, rec.OperationKey)
	if err != nil {
		return nil, false, err
	}
	return existing, false, nil
}

// TakeOver vuelve a STARTED la llave si nadie la tocó desde lastSeen.
func (r *IdempotencyRepo) TakeOver(ctx context.Context, operationKey string, lastSeen time.Time, payloadHash string) (bool, error) {
	tag, err := r.q.Exec(ctx, `
		UPDATE idempotency_keys SET status = $3, payload_hash = $5, last_error = NULL, updated_at = now()
		WHERE operation_key = $1 AND updated_at = $2 AND status <> $4`,
		operationKey, lastSeen, string(entity.IdempotencyStarted), string(entity.IdempotencySucceeded), payloadHash)
	if err != nil {
		return false, fmt.Errorf("take over idempotency key: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *IdempotencyRepo) Complete(ctx context.Context, operationKey string, result []byte) error {
	return r.finish(ctx, operationKey, entity.IdempotencySucceeded, result, "")
}

func (r *IdempotencyRepo) Fail(ctx context.Context, operationKey string, cause string) error {
	return r.finish(ctx, operationKey, entity.IdempotencyFailed, nil, cause)
}

func (r *IdempotencyRepo) finish(ctx context.Context, key string, status entity.IdempotencyStatus, result []byte, cause string) error {
	tag, err := r.q.Exec(ctx, `
		UPDATE idempotency_keys SET status = $2, result = $3, last_error = $4, updated_at = now()
		WHERE operation_key = $1`, key, string(status), result, nullableString(cause))
	if err != nil {
		return fmt.Errorf("finish idempotency key: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *IdempotencyRepo) get(ctx context.Context, key string) (*entity.IdempotencyRecord, error) {
	var rec entity.IdempotencyRecord
	var status string
	var lastError *string
	err := r.q.QueryRow(ctx, `
		SELECT operation_key, business_id, operation, payload_hash, status, result, last_error,
			created_at, updated_at, expires_at
		FROM idempotency_keys WHERE operation_key = $1`, key).Scan(
		&rec.OperationKey, &rec.BusinessID, &rec.Operation, &rec.PayloadHash, &status, &rec.Result, &lastError,
		&rec.CreatedAt, &rec.UpdatedAt, &rec.ExpiresAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get idempotency key: %w", err)
	}
	rec.Status = entity.IdempotencyStatus(status)
	if lastError != nil {
		rec.LastError = *lastError
	}
	return &rec, nil
}
