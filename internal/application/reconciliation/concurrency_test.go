package reconciliation_test

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/inventario-ledger/internal/application/reconciliation"
	"github.com/jhoicas/inventario-ledger/internal/domain"
	"github.com/jhoicas/inventario-ledger/internal/domain/entity"
	"github.com/jhoicas/inventario-ledger/internal/infrastructure/memory"
)

func TestApply_ConcurrentesSinActualizacionPerdida(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	const n = 20

	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.corrections.Apply(ctx, manualBatch(fmt.Sprintf("tok-%d", i), req(keyK, strconv.Itoa(i+1))))
		}(i)
	}
	wg.Wait()
	for i, err := range errs {
		require.NoError(t, err, "corrección %d", i)
	}

	net := decimal.Zero
	for _, m := range f.store.Movements() {
		net = net.Add(m.QuantityIn).Sub(m.QuantityOut)
	}
	// Cada escritor leyó el saldo bloqueado: el log explica exactamente el saldo final.
	final := f.store.Quantity(keyK)
	assert.True(t, final.Sub(d("5")).Equal(net), "final=%s neto=%s", final, net)

	v, err := f.variances.DetectVariance(ctx, biz, keyK)
	require.NoError(t, err)
	assert.Equal(t, entity.VarianceMatch, v.VarianceType)
	assert.True(t, v.LedgerBalance.Equal(final))
}

func TestApply_ConcurrentesMismoTokenUnSoloEfecto(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	const n = 10
	batch := manualBatch("tok-compartido", req(keyK, "9"))

	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.corrections.Apply(ctx, batch)
		}(i)
	}
	wg.Wait()

	ok := 0
	for _, err := range errs {
		if err == nil {
			ok++
			continue
		}
		assert.ErrorIs(t, err, domain.ErrIdempotencyInProgress)
	}
	assert.GreaterOrEqual(t, ok, 1)
	assert.Len(t, f.store.Movements(), 1)
	assert.Len(t, f.store.Corrections(), 1)
	assert.True(t, f.store.Quantity(keyK).Equal(d("9")))
}

func TestGuard_AcquireConcurrenteUnSoloGanador(t *testing.T) {
	g := reconciliation.NewIdempotencyGuard(memory.NewIdempotencyStore(), time.Hour, time.Minute)
	ctx := context.Background()
	const n = 16

	var (
		wg  sync.WaitGroup
		mu  sync.Mutex
		won int
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			a, err := g.Acquire(ctx, biz, "op", "tok", payload{"1"})
			if err != nil {
				assert.ErrorIs(t, err, domain.ErrIdempotencyInProgress)
				return
			}
			if a.IsNew {
				mu.Lock()
				won++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, won)
}
