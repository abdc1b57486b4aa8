package memory

import (
	"context"
	"sync"
	"time"

	"github.com/jhoicas/inventario-ledger/internal/domain"
	"github.com/jhoicas/inventario-ledger/internal/domain/entity"
	"github.com/jhoicas/inventario-ledger/internal/domain/repository"
)

// IdempotencyStore llaves de idempotencia en memoria.
type IdempotencyStore struct {
	mu   sync.Mutex
	keys map[string]entity.IdempotencyRecord
	now  func() time.Time
}

var _ repository.IdempotencyStore = (*IdempotencyStore)(nil)

// NewIdempotencyStore crea el almacén vacío.
func NewIdempotencyStore() *IdempotencyStore {
	return &IdempotencyStore{keys: make(map[string]entity.IdempotencyRecord), now: time.Now}
}

func (s *IdempotencyStore) Insert(_ context.Context, rec entity.IdempotencyRecord) (*entity.IdempotencyRecord, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.keys[rec.OperationKey]; ok {
		if existing.ExpiresAt.IsZero() || s.now().Before(existing.ExpiresAt) {
			return &existing, false, nil
		}
	}
	s.keys[rec.OperationKey] = rec
	return nil, true, nil
}

func (s *IdempotencyStore) TakeOver(_ context.Context, key string, lastSeen time.Time, payloadHash string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.keys[key]
	if !ok {
		return false, domain.ErrNotFound
	}
	if !rec.UpdatedAt.Equal(lastSeen) || rec.Status == entity.IdempotencySucceeded {
		return false, nil
	}
	rec.Status = entity.IdempotencyStarted
	rec.PayloadHash = payloadHash
	rec.LastError = ""
	rec.UpdatedAt = s.now().UTC()
	s.keys[key] = rec
	return true, nil
}

func (s *IdempotencyStore) Complete(_ context.Context, key string, result []byte) error {
	return s.finish(key, entity.IdempotencySucceeded, result, "")
}

func (s *IdempotencyStore) Fail(_ context.Context, key string, cause string) error {
	return s.finish(key, entity.IdempotencyFailed, nil, cause)
}

func (s *IdempotencyStore) finish(key string, status entity.IdempotencyStatus, result []byte, cause string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.keys[key]
	if !ok {
		return domain.ErrNotFound
	}
	rec.Status = status
	rec.Result = result
	rec.LastError = cause
	rec.UpdatedAt = s.now().UTC()
	s.keys[key] = rec
	return nil
}

// Get devuelve el registro de una llave (tests).
func (s *IdempotencyStore) Get(key string) (entity.IdempotencyRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.keys[key]
	return rec, ok
}
