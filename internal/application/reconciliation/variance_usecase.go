package reconciliation

import (
	"context"
	"fmt"
	"sort"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/jhoicas/inventario-ledger/internal/domain"
	"github.com/jhoicas/inventario-ledger/internal/domain/entity"
	"github.com/jhoicas/inventario-ledger/internal/domain/ledger"
	"github.com/jhoicas/inventario-ledger/internal/domain/repository"
)

// scanConcurrency máximo de kardex construidos en paralelo durante un barrido de ubicación.
const scanConcurrency = 4

// VarianceUseCase detecta varianzas: caché contra kardex, o conteo físico contra caché.
type VarianceUseCase struct {
	ledger   *LedgerUseCase
	balances repository.BalanceReader
	catalog  repository.CatalogRepository
	policy   ledger.Policy
	log      zerolog.Logger
}

// NewVarianceUseCase construye el caso de uso.
func NewVarianceUseCase(
	ledgerUC *LedgerUseCase,
	balances repository.BalanceReader,
	catalog repository.CatalogRepository,
	policy ledger.Policy,
	log zerolog.Logger,
) *VarianceUseCase {
	return &VarianceUseCase{ledger: ledgerUC, balances: balances, catalog: catalog, policy: policy, log: log}
}

// Policy devuelve los umbrales vigentes de auto-corrección.
func (uc *VarianceUseCase) Policy() ledger.Policy { return uc.policy }

// DetectVariance compara el saldo materializado de la llave contra su kardex completo.
func (uc *VarianceUseCase) DetectVariance(ctx context.Context, businessID string, key entity.StockKey) (entity.VarianceRecord, error) {
	if businessID == "" || key.ItemVariantID == "" || key.LocationID == "" {
		return entity.VarianceRecord{}, domain.ErrInvalidInput
	}
	item, err := uc.resolve(ctx, businessID, key)
	if err != nil {
		return entity.VarianceRecord{}, err
	}
	return uc.detect(ctx, businessID, key, item.UnitCost)
}

// DetectPhysicalVariance compara un conteo físico contra el saldo materializado.
func (uc *VarianceUseCase) DetectPhysicalVariance(ctx context.Context, businessID string, key entity.StockKey, physical decimal.Decimal) (entity.VarianceRecord, error) {
	if businessID == "" || key.ItemVariantID == "" || key.LocationID == "" {
		return entity.VarianceRecord{}, domain.ErrInvalidInput
	}
	item, err := uc.resolve(ctx, businessID, key)
	if err != nil {
		return entity.VarianceRecord{}, err
	}
	system, err := uc.systemBalance(ctx, businessID, key)
	if err != nil {
		return entity.VarianceRecord{}, err
	}
	return ledger.PhysicalCount(key, businessID, system, physical, item.UnitCost, uc.policy), nil
}

// ScanLocation detecta la varianza caché-kardex de cada saldo de la ubicación, ordenadas por
// |valor| descendente. Un lector caído hace fallar el barrido completo.
func (uc *VarianceUseCase) ScanLocation(ctx context.Context, businessID, locationID string) ([]entity.VarianceRecord, error) {
	if businessID == "" || locationID == "" {
		return nil, domain.ErrInvalidInput
	}
	locs, err := uc.catalog.GetLocationsByIDs(ctx, businessID, []string{locationID})
	if err != nil {
		return nil, fmt.Errorf("ubicación: %w", err)
	}
	if _, ok := locs[locationID]; !ok {
		return nil, domain.ErrNotFound
	}
	balances, err := uc.balances.ListByLocation(ctx, businessID, locationID)
	if err != nil {
		return nil, fmt.Errorf("saldos de ubicación: %w", err)
	}
	ids := make([]string, 0, len(balances))
	for _, b := range balances {
		ids = append(ids, b.ItemVariantID)
	}
	items, err := uc.catalog.GetItemVariantsByIDs(ctx, businessID, ids)
	if err != nil {
		return nil, fmt.Errorf("variantes: %w", err)
	}

	out := make([]entity.VarianceRecord, len(balances))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(scanConcurrency)
	for i, b := range balances {
		g.Go(func() error {
			ledgerBalance, err := uc.ledger.LedgerBalance(gctx, businessID, b.Key())
			if err != nil {
				return err
			}
			out[i] = ledger.CacheVsLedger(b.Key(), businessID, ledgerBalance, b.QuantityAvailable, items[b.ItemVariantID].UnitCost, uc.policy)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	sort.SliceStable(out, func(i, j int) bool {
		vi, vj := out[i].VarianceValue.Abs(), out[j].VarianceValue.Abs()
		if !vi.Equal(vj) {
			return vi.GreaterThan(vj)
		}
		return out[i].Key.Less(out[j].Key)
	})
	uc.log.Debug().Str("business_id", businessID).Str("location_id", locationID).Int("keys", len(out)).Msg("barrido de varianzas")
	return out, nil
}

func (uc *VarianceUseCase) detect(ctx context.Context, businessID string, key entity.StockKey, unitCost decimal.Decimal) (entity.VarianceRecord, error) {
	ledgerBalance, err := uc.ledger.LedgerBalance(ctx, businessID, key)
	if err != nil {
		return entity.VarianceRecord{}, err
	}
	system, err := uc.systemBalance(ctx, businessID, key)
	if err != nil {
		return entity.VarianceRecord{}, err
	}
	return ledger.CacheVsLedger(key, businessID, ledgerBalance, system, unitCost, uc.policy), nil
}

func (uc *VarianceUseCase) systemBalance(ctx context.Context, businessID string, key entity.StockKey) (decimal.Decimal, error) {
	b, err := uc.balances.Get(ctx, businessID, key)
	if err != nil {
		return decimal.Zero, fmt.Errorf("saldo %s: %w", key, err)
	}
	return quantityOf(b), nil
}

// resolve verifica que variante y ubicación existan en el negocio.
func (uc *VarianceUseCase) resolve(ctx context.Context, businessID string, key entity.StockKey) (entity.ItemVariant, error) {
	items, err := uc.catalog.GetItemVariantsByIDs(ctx, businessID, []string{key.ItemVariantID})
	if err != nil {
		return entity.ItemVariant{}, fmt.Errorf("variante: %w", err)
	}
	item, ok := items[key.ItemVariantID]
	if !ok {
		return entity.ItemVariant{}, domain.ErrNotFound
	}
	locs, err := uc.catalog.GetLocationsByIDs(ctx, businessID, []string{key.LocationID})
	if err != nil {
		return entity.ItemVariant{}, fmt.Errorf("ubicación: %w", err)
	}
	if _, ok := locs[key.LocationID]; !ok {
		return entity.ItemVariant{}, domain.ErrNotFound
	}
	return item, nil
}

// quantityOf trata una llave sin fila de saldo como cero.
func quantityOf(b *entity.BalanceRecord) decimal.Decimal {
	if b == nil {
		return decimal.Zero
	}
	return b.QuantityAvailable
}
