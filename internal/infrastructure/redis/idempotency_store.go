package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/jhoicas/inventario-ledger/internal/domain"
	"github.com/jhoicas/inventario-ledger/internal/domain/entity"
	"github.com/jhoicas/inventario-ledger/internal/domain/repository"
)

const (
	keyPrefix     = "idem:"
	maxCASRetries = 3
)

var _ repository.IdempotencyStore = (*IdempotencyStore)(nil)

// IdempotencyStore guarda cada llave como JSON con TTL = ExpiresAt. Insert usa SET NX;
// TakeOver y los cierres usan WATCH/MULTI para no pisar una escritura concurrente.
type IdempotencyStore struct {
	client *goredis.Client
	now    func() time.Time
}

// NewIdempotencyStore construye el adaptador sobre un cliente ya conectado.
func NewIdempotencyStore(client *goredis.Client) *IdempotencyStore {
	return &IdempotencyStore{client: client, now: time.Now}
}

type storedRecord struct {
	BusinessID  string    `json:"business_id"`
	Operation   string    `json:"operation"`
	PayloadHash string    `json:"payload_hash"`
	Status      string    `json:"status"`
	Result      []byte    `json:"result,omitempty"`
	LastError   string    `json:"last_error,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
	ExpiresAt   time.Time `json:"expires_at"`
}

func toStored(rec entity.IdempotencyRecord) storedRecord {
	return storedRecord{
		BusinessID:  rec.BusinessID,
		Operation:   rec.Operation,
		PayloadHash: rec.PayloadHash,
		Status:      string(rec.Status),
		Result:      rec.Result,
		LastError:   rec.LastError,
		CreatedAt:   rec.CreatedAt,
		UpdatedAt:   rec.UpdatedAt,
		ExpiresAt:   rec.ExpiresAt,
	}
}

func (s storedRecord) record(key string) *entity.IdempotencyRecord {
	return &entity.IdempotencyRecord{
		OperationKey: key,
		BusinessID:   s.BusinessID,
		Operation:    s.Operation,
		PayloadHash:  s.PayloadHash,
		Status:       entity.IdempotencyStatus(s.Status),
		Result:       s.Result,
		LastError:    s.LastError,
		CreatedAt:    s.CreatedAt,
		UpdatedAt:    s.UpdatedAt,
		ExpiresAt:    s.ExpiresAt,
	}
}

func (s *IdempotencyStore) Insert(ctx context.Context, rec entity.IdempotencyRecord) (*entity.IdempotencyRecord, bool, error) {
	payload, err := json.Marshal(toStored(rec))
	if err != nil {
		return nil, false, err
	}
	ttl := rec.ExpiresAt.Sub(s.now())
	if ttl <= 0 {
		return nil, false, fmt.Errorf("llave de idempotencia ya expirada")
	}

	// Si la llave expira entre SETNX y GET se vuelve a intentar el SETNX.
	for attempt := 0; attempt < maxCASRetries; attempt++ {
		ok, err := s.client.SetNX(ctx, keyPrefix+rec.OperationKey, payload, ttl).Result()
		if err != nil {
			return nil, false, fmt.Errorf("setnx idempotency key: %w", err)
		}
		if ok {
			return nil, true, nil
		}
		existing, err := s.get(ctx, s.client, rec.OperationKey)
		if errors.Is(err, domain.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, false, err
		}
		return existing.record(rec.OperationKey), false, nil
	}
	return nil, false, &domain.ConcurrencyError{Op: "idempotency_insert", Err: errors.New("la llave cambió durante la inserción")}
}

func (s *IdempotencyStore) TakeOver(ctx context.Context, operationKey string, lastSeen time.Time, payloadHash string) (bool, error) {
	taken := false
	err := s.update(ctx, operationKey, func(rec *storedRecord) bool {
		if !rec.UpdatedAt.Equal(lastSeen) || rec.Status == string(entity.IdempotencySucceeded) {
			return false
		}
		rec.Status = string(entity.IdempotencyStarted)
		rec.PayloadHash = payloadHash
		rec.LastError = ""
		taken = true
		return true
	})
	if errors.Is(err, goredis.TxFailedErr) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return taken, nil
}

func (s *IdempotencyStore) Complete(ctx context.Context, operationKey string, result []byte) error {
	return s.update(ctx, operationKey, func(rec *storedRecord) bool {
		rec.Status = string(entity.IdempotencySucceeded)
		rec.Result = result
		rec.LastError = ""
		return true
	})
}

func (s *IdempotencyStore) Fail(ctx context.Context, operationKey string, cause string) error {
	return s.update(ctx, operationKey, func(rec *storedRecord) bool {
		rec.Status = string(entity.IdempotencyFailed)
		rec.Result = nil
		rec.LastError = cause
		return true
	})
}

// update lee la llave bajo WATCH, aplica mutate y la reescribe conservando el TTL.
// Devuelve goredis.TxFailedErr si otra escritura ganó en todos los intentos.
func (s *IdempotencyStore) update(ctx context.Context, operationKey string, mutate func(*storedRecord) bool) error {
	key := keyPrefix + operationKey
	var err error
	for attempt := 0; attempt < maxCASRetries; attempt++ {
		err = s.client.Watch(ctx, func(tx *goredis.Tx) error {
			rec, err := s.get(ctx, tx, operationKey)
			if err != nil {
				return err
			}
			if !mutate(rec) {
				return nil
			}
			rec.UpdatedAt = s.now().UTC()
			payload, err := json.Marshal(rec)
			if err != nil {
				return err
			}
			_, err = tx.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
				pipe.Set(ctx, key, payload, goredis.KeepTTL)
				return nil
			})
			return err
		}, key)
		if !errors.Is(err, goredis.TxFailedErr) {
			return err
		}
	}
	return err
}

type getter interface {
	Get(ctx context.Context, key string) *goredis.StringCmd
}

func (s *IdempotencyStore) get(ctx context.Context, c getter, operationKey string) (*storedRecord, error) {
	raw, err := c.Get(ctx, keyPrefix+operationKey).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get idempotency key: %w", err)
	}
	var rec storedRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, fmt.Errorf("decode idempotency key: %w", err)
	}
	return &rec, nil
}
