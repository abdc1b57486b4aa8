package memory

import (
	"context"

	"github.com/jhoicas/inventario-ledger/internal/domain/repository"
)

// TxRunner transacción en memoria: serializa con txMu y acumula las escrituras en un txState
// que solo se aplica si fn termina bien y el contexto sigue vigente al confirmar.
type TxRunner struct{ store *Store }

// NewTxRunner crea el runner sobre el almacén.
func NewTxRunner(store *Store) *TxRunner { return &TxRunner{store: store} }

func (r *TxRunner) Run(ctx context.Context, fn func(
	balanceRepo repository.BalanceRepository,
	movRepo repository.MovementRepository,
	correctionRepo repository.CorrectionRepository,
) error) error {
	r.store.txMu.Lock()
	defer r.store.txMu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	tx := newTxState()
	err := fn(
		&BalanceRepository{store: r.store, tx: tx},
		&MovementRepository{store: r.store, tx: tx},
		&CorrectionRepository{store: r.store, tx: tx},
	)
	if err != nil {
		return err
	}
	r.store.failMu.Lock()
	hook := r.store.beforeCommit
	r.store.failMu.Unlock()
	if hook != nil {
		hook()
	}
	if err := r.store.injected("tx.commit"); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	r.store.commit(tx)
	return nil
}
