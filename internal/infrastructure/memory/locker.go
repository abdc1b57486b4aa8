package memory

import (
	"context"
	"sync"
	"time"

	"github.com/jhoicas/inventario-ledger/internal/application/reconciliation"
)

// Locker candado de lote dentro del proceso. No expira: se libera solo con release.
type Locker struct {
	mu   sync.Mutex
	held map[string]bool
}

// NewLocker crea el candado.
func NewLocker() *Locker { return &Locker{held: make(map[string]bool)} }

func (l *Locker) Obtain(_ context.Context, key string, _ time.Duration) (func(context.Context) error, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held[key] {
		return nil, reconciliation.ErrLockNotObtained
	}
	l.held[key] = true
	return func(context.Context) error {
		l.mu.Lock()
		defer l.mu.Unlock()
		delete(l.held, key)
		return nil
	}, nil
}
