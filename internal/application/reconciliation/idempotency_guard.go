package reconciliation

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jhoicas/inventario-ledger/internal/domain"
	"github.com/jhoicas/inventario-ledger/internal/domain/entity"
	"github.com/jhoicas/inventario-ledger/internal/domain/repository"
)

// Acquisition resultado de Acquire. Si IsNew es falso, CachedResult trae el resultado de la
// ejecución que ya terminó y no se debe volver a ejecutar nada.
type Acquisition struct {
	OperationKey string
	IsNew        bool
	CachedResult []byte
}

// IdempotencyGuard deduplica operaciones externas reintentables (subidas, lotes de corrección).
type IdempotencyGuard struct {
	store      repository.IdempotencyStore
	ttl        time.Duration
	staleAfter time.Duration
	now        func() time.Time
}

// NewIdempotencyGuard construye el guardián. staleAfter es el tiempo tras el cual una llave
// STARTED se considera abandonada y puede retomarse.
func NewIdempotencyGuard(store repository.IdempotencyStore, ttl, staleAfter time.Duration) *IdempotencyGuard {
	return &IdempotencyGuard{store: store, ttl: ttl, staleAfter: staleAfter, now: time.Now}
}

// OperationKey = hex(sha256(negocio|operación|token)).
func OperationKey(businessID, operation, token string) string {
	sum := sha256.Sum256([]byte(businessID + "|" + operation + "|" + token))
	return hex.EncodeToString(sum[:])
}

// PayloadHash = hex(sha256(JSON del payload)).
func PayloadHash(payload any) (string, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("serializar payload: %w", err)
	}
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:]), nil
}

// Acquire reserva la llave. Devuelve domain.ErrIdempotencyInProgress si otra ejecución la tiene,
// y domain.ErrIdempotencyMismatch si la llave se usó con otro payload.
func (g *IdempotencyGuard) Acquire(ctx context.Context, businessID, operation, token string, payload any) (Acquisition, error) {
	hash, err := PayloadHash(payload)
	if err != nil {
		return Acquisition{}, err
	}
	now := g.now().UTC()
	key := OperationKey(businessID, operation, token)
	existing, acquired, err := g.store.Insert(ctx, entity.IdempotencyRecord{
		OperationKey: key,
		BusinessID:   businessID,
		Operation:    operation,
		PayloadHash:  hash,
		Status:       entity.IdempotencyStarted,
		CreatedAt:    now,
		UpdatedAt:    now,
		ExpiresAt:    now.Add(g.ttl),
	})
	if err != nil {
		return Acquisition{}, fmt.Errorf("idempotencia: %w", err)
	}
	if acquired {
		return Acquisition{OperationKey: key, IsNew: true}, nil
	}
	if existing == nil {
		return Acquisition{}, domain.ErrIdempotencyInProgress
	}
	// Una llave FAILED no dejó efectos: el reintento puede traer el lote corregido.
	if existing.PayloadHash != hash && existing.Status != entity.IdempotencyFailed {
		return Acquisition{}, domain.ErrIdempotencyMismatch
	}

	switch existing.Status {
	case entity.IdempotencySucceeded:
		return Acquisition{OperationKey: key, CachedResult: existing.Result}, nil
	case entity.IdempotencyStarted:
		if now.Sub(existing.UpdatedAt) < g.staleAfter {
			return Acquisition{}, domain.ErrIdempotencyInProgress
		}
	}

	// FAILED o STARTED abandonada: solo uno de los reintentos concurrentes la retoma.
	ok, err := g.store.TakeOver(ctx, key, existing.UpdatedAt, hash)
	if err != nil {
		return Acquisition{}, fmt.Errorf("idempotencia: %w", err)
	}
	if !ok {
		return Acquisition{}, domain.ErrIdempotencyInProgress
	}
	return Acquisition{OperationKey: key, IsNew: true}, nil
}

// Complete guarda el resultado serializado y marca la llave SUCCEEDED.
func (g *IdempotencyGuard) Complete(ctx context.Context, a Acquisition, result any) error {
	raw, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("serializar resultado: %w", err)
	}
	if err := g.store.Complete(context.WithoutCancel(ctx), a.OperationKey, raw); err != nil {
		return fmt.Errorf("idempotencia: %w", err)
	}
	return nil
}

// Fail marca la llave FAILED para que un reintento con el mismo payload pueda retomarla.
func (g *IdempotencyGuard) Fail(ctx context.Context, a Acquisition, cause error) error {
	msg := ""
	if cause != nil {
		msg = cause.Error()
	}
	if err := g.store.Fail(context.WithoutCancel(ctx), a.OperationKey, msg); err != nil {
		return fmt.Errorf("idempotencia: %w", err)
	}
	return nil
}
