package reconciliation_test

import (
	"bytes"
	"context"
	"io"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/inventario-ledger/internal/application/dto"
	"github.com/jhoicas/inventario-ledger/internal/application/reconciliation"
	"github.com/jhoicas/inventario-ledger/internal/domain/entity"
	"github.com/jhoicas/inventario-ledger/internal/domain/ledger"
	"github.com/jhoicas/inventario-ledger/internal/domain/repository"
	"github.com/jhoicas/inventario-ledger/internal/infrastructure/memory"
)

const biz = "biz-1"

var (
	t0 = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

	// keyK: +10 recepción, -3 venta, -2 traslado = 5.
	keyK = entity.StockKey{ItemVariantID: "var-1", LocationID: "loc-1"}
	// keyBig: +100 recepción.
	keyBig = entity.StockKey{ItemVariantID: "var-2", LocationID: "loc-1"}
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

type fixture struct {
	store       *memory.Store
	idem        *memory.IdempotencyStore
	locker      *memory.Locker
	ledger      *reconciliation.LedgerUseCase
	variances   *reconciliation.VarianceUseCase
	corrections *reconciliation.CorrectionUseCase
	physical    *reconciliation.PhysicalCountUseCase
	sheet       *stubSheet
}

type fixtureOpt func(*reconciliation.CorrectionConfig, *txHook)

// txHook permite envolver el TxRunner para simular escritores concurrentes.
type txHook struct{ before func() }

type hookedTx struct {
	inner reconciliation.TxRunner
	hook  *txHook
}

func (h hookedTx) Run(ctx context.Context, fn func(
	balanceRepo repository.BalanceRepository,
	movRepo repository.MovementRepository,
	correctionRepo repository.CorrectionRepository,
) error) error {
	if h.hook.before != nil {
		h.hook.before()
	}
	return h.inner.Run(ctx, fn)
}

func newFixture(t *testing.T, opts ...fixtureOpt) *fixture {
	t.Helper()
	store := memory.NewStore()
	store.AddLocation(entity.Location{ID: "loc-1", BusinessID: biz, Name: "Bodega Central"})
	store.AddLocation(entity.Location{ID: "loc-2", BusinessID: biz, Name: "Sucursal Norte"})
	store.AddItemVariant(entity.ItemVariant{ID: "var-1", BusinessID: biz, Code: "SKU-1", Name: "Camisa", UnitCost: d("10")})
	store.AddItemVariant(entity.ItemVariant{ID: "var-2", BusinessID: biz, Code: "SKU-2", Name: "Pantalón", UnitCost: d("10")})

	store.AddEvent("approved", mov("r-1", entity.SourceReceiving, keyK, t0, "10", "0"))
	store.AddEvent("posted", mov("s-1", entity.SourceSelling, keyK, t0.Add(time.Hour), "0", "3"))
	store.AddEvent("sent", mov("t-1", entity.SourceTransferOut, keyK, t0.Add(2*time.Hour), "0", "2"))
	// Borradores: nunca cuentan.
	store.AddEvent("draft", mov("r-2", entity.SourceReceiving, keyK, t0.Add(3*time.Hour), "100", "0"))
	store.AddEvent("pending", mov("s-2", entity.SourceSelling, keyK, t0.Add(3*time.Hour), "0", "1"))
	store.SetBalance(entity.BalanceRecord{ItemVariantID: "var-1", LocationID: "loc-1", BusinessID: biz, QuantityAvailable: d("5")})

	store.AddEvent("approved", mov("r-3", entity.SourceReceiving, keyBig, t0, "100", "0"))
	store.SetBalance(entity.BalanceRecord{ItemVariantID: "var-2", LocationID: "loc-1", BusinessID: biz, QuantityAvailable: d("100")})

	cfg := reconciliation.CorrectionConfig{BulkTimeout: time.Minute, SingleTimeout: 10 * time.Second, BatchLockTTL: time.Minute}
	hook := &txHook{}
	for _, o := range opts {
		o(&cfg, hook)
	}

	log := zerolog.Nop()
	ledgerUC, err := reconciliation.NewLedgerUseCase(log, store.Sources()...)
	require.NoError(t, err)
	variances := reconciliation.NewVarianceUseCase(ledgerUC, store.Balances(), store.Catalog(), ledger.DefaultPolicy(), log)
	idem := memory.NewIdempotencyStore()
	guard := reconciliation.NewIdempotencyGuard(idem, time.Hour, time.Minute)
	locker := memory.NewLocker()
	corrections := reconciliation.NewCorrectionUseCase(
		hookedTx{inner: memory.NewTxRunner(store), hook: hook},
		store.Balances(), store.Catalog(), variances, guard, locker, cfg, log,
	)
	sheet := &stubSheet{}
	return &fixture{
		store:       store,
		idem:        idem,
		locker:      locker,
		ledger:      ledgerUC,
		variances:   variances,
		corrections: corrections,
		physical:    reconciliation.NewPhysicalCountUseCase(sheet, store.Catalog(), corrections, log),
		sheet:       sheet,
	}
}

func mov(ref string, kind entity.SourceKind, key entity.StockKey, ts time.Time, in, out string) entity.Movement {
	return entity.Movement{
		ID:            "m-" + ref,
		Timestamp:     ts,
		SourceKind:    kind,
		ReferenceType: string(kind),
		ReferenceID:   ref,
		QuantityIn:    d(in),
		QuantityOut:   d(out),
		ItemVariantID: key.ItemVariantID,
		LocationID:    key.LocationID,
		BusinessID:    biz,
	}
}

func manualBatch(token string, reqs ...reconciliation.CorrectionRequest) reconciliation.CorrectionBatch {
	return reconciliation.CorrectionBatch{
		BusinessID:       biz,
		ActorID:          "user-1",
		IdempotencyToken: token,
		Source:           entity.CorrectionSourceManual,
		Requests:         reqs,
	}
}

func req(key entity.StockKey, target string) reconciliation.CorrectionRequest {
	return reconciliation.CorrectionRequest{
		ItemVariantID:  key.ItemVariantID,
		LocationID:     key.LocationID,
		TargetQuantity: d(target),
		Reason:         "ajuste de prueba",
	}
}

// stubSheet devuelve filas fijas sin leer el archivo.
type stubSheet struct {
	rows [][]string
	err  error
}

func (s *stubSheet) ReadRows(r io.Reader, _ string) ([][]string, error) {
	_, _ = io.Copy(io.Discard, r)
	return s.rows, s.err
}

func anyFile() io.Reader { return bytes.NewReader([]byte("xlsx")) }

// stubRenderer captura el reporte recibido.
type stubRenderer struct{ got dto.VarianceReportDTO }

func (s *stubRenderer) RenderVarianceReport(_ context.Context, r dto.VarianceReportDTO) ([]byte, error) {
	s.got = r
	return []byte("%PDF"), nil
}
