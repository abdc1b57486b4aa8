package reconciliation

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/jhoicas/inventario-ledger/internal/domain"
	"github.com/jhoicas/inventario-ledger/internal/domain/entity"
	"github.com/jhoicas/inventario-ledger/internal/domain/ledger"
	"github.com/jhoicas/inventario-ledger/internal/domain/repository"
)

// LedgerUseCase reconstruye el kardex de una llave a partir de los siete lectores de eventos.
type LedgerUseCase struct {
	sources []repository.MovementSource
	log     zerolog.Logger
}

// NewLedgerUseCase exige exactamente un lector por cada origen del conjunto cerrado.
func NewLedgerUseCase(log zerolog.Logger, sources ...repository.MovementSource) (*LedgerUseCase, error) {
	byKind := make(map[entity.SourceKind]repository.MovementSource, len(sources))
	for _, s := range sources {
		k := s.Kind()
		if !k.Valid() {
			return nil, fmt.Errorf("lector con origen desconocido %q", k)
		}
		if _, dup := byKind[k]; dup {
			return nil, fmt.Errorf("lector duplicado para %q", k)
		}
		byKind[k] = s
	}
	ordered := make([]repository.MovementSource, 0, len(byKind))
	for _, k := range entity.SourceKinds() {
		s, ok := byKind[k]
		if !ok {
			return nil, fmt.Errorf("falta el lector de %q", k)
		}
		ordered = append(ordered, s)
	}
	return &LedgerUseCase{sources: ordered, log: log}, nil
}

// BuildLedger devuelve el kardex de la llave, más reciente primero. Si algún lector falla
// devuelve *domain.ConsistencyError y ninguna entrada.
func (uc *LedgerUseCase) BuildLedger(ctx context.Context, q repository.MovementQuery) ([]entity.LedgerEntry, error) {
	if q.BusinessID == "" || q.ItemVariantID == "" || q.LocationID == "" {
		return nil, domain.ErrInvalidInput
	}
	if !q.From.IsZero() && !q.To.IsZero() && q.To.Before(q.From) {
		return nil, domain.ErrInvalidInput
	}
	movements, err := uc.collect(ctx, q)
	if err != nil {
		return nil, err
	}
	return ledger.Build(movements), nil
}

// LedgerBalance devuelve el saldo del kardex completo (sin ventana de tiempo) de la llave.
func (uc *LedgerUseCase) LedgerBalance(ctx context.Context, businessID string, key entity.StockKey) (decimal.Decimal, error) {
	entries, err := uc.BuildLedger(ctx, repository.MovementQuery{
		BusinessID:    businessID,
		ItemVariantID: key.ItemVariantID,
		LocationID:    key.LocationID,
	})
	if err != nil {
		return decimal.Zero, err
	}
	return ledger.LatestBalance(entries), nil
}

func (uc *LedgerUseCase) collect(ctx context.Context, q repository.MovementQuery) ([]entity.Movement, error) {
	results := make([][]entity.Movement, len(uc.sources))
	g, gctx := errgroup.WithContext(ctx)
	for i, src := range uc.sources {
		g.Go(func() error {
			movs, err := src.Movements(gctx, q)
			if err != nil {
				return &domain.ConsistencyError{Source: string(src.Kind()), Err: err}
			}
			for _, m := range movs {
				if m.SourceKind != src.Kind() || m.BusinessID != q.BusinessID || m.Key() != q.Key() {
					return &domain.ConsistencyError{
						Source: string(src.Kind()),
						Err:    fmt.Errorf("movimiento %s fuera de la consulta", m.ID),
					}
				}
			}
			results[i] = movs
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		uc.log.Error().Err(err).
			Str("business_id", q.BusinessID).
			Str("key", q.Key().String()).
			Msg("kardex no disponible")
		return nil, err
	}
	var all []entity.Movement
	for _, movs := range results {
		all = append(all, movs...)
	}
	return all, nil
}
