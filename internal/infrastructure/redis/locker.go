package redis

import (
	"context"
	"errors"
	"time"

	"github.com/bsm/redislock"
	goredis "github.com/redis/go-redis/v9"

	"github.com/jhoicas/inventario-ledger/internal/application/reconciliation"
)

var _ reconciliation.BatchLocker = (*Locker)(nil)

// Locker candado de lote distribuido con redislock. El TTL libera el candado si la
// instancia que lo tiene muere antes de soltarlo.
type Locker struct {
	client *redislock.Client
}

// NewLocker crea el candado sobre un cliente ya conectado.
func NewLocker(client *goredis.Client) *Locker {
	return &Locker{client: redislock.New(client)}
}

func (l *Locker) Obtain(ctx context.Context, key string, ttl time.Duration) (func(context.Context) error, error) {
	lock, err := l.client.Obtain(ctx, key, ttl, nil)
	if errors.Is(err, redislock.ErrNotObtained) {
		return nil, reconciliation.ErrLockNotObtained
	}
	if err != nil {
		return nil, err
	}
	return func(ctx context.Context) error {
		if err := lock.Release(ctx); err != nil && !errors.Is(err, redislock.ErrLockNotHeld) {
			return err
		}
		return nil
	}, nil
}
