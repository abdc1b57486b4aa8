package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/inventario-ledger/internal/domain"
	"github.com/jhoicas/inventario-ledger/internal/domain/entity"
	"github.com/jhoicas/inventario-ledger/internal/domain/repository"
)

// BalanceRepository saldos en memoria. Con tx distinto de nil lee y escribe sobre la transacción.
type BalanceRepository struct {
	store *Store
	tx    *txState
}

// MovementRepository log de movimientos en memoria.
type MovementRepository struct {
	store *Store
	tx    *txState
}

// CorrectionRepository correcciones en memoria.
type CorrectionRepository struct {
	store *Store
	tx    *txState
}

// CatalogRepository catálogo en memoria.
type CatalogRepository struct{ store *Store }

func (s *Store) Balances() *BalanceRepository { return &BalanceRepository{store: s} }

func (s *Store) MovementLog() *MovementRepository { return &MovementRepository{store: s} }

func (s *Store) CorrectionLog() *CorrectionRepository { return &CorrectionRepository{store: s} }

func (s *Store) Catalog() *CatalogRepository { return &CatalogRepository{store: s} }

var (
	_ repository.BalanceRepository    = (*BalanceRepository)(nil)
	_ repository.MovementRepository   = (*MovementRepository)(nil)
	_ repository.CorrectionRepository = (*CorrectionRepository)(nil)
	_ repository.CatalogRepository    = (*CatalogRepository)(nil)
)

func (r *BalanceRepository) Get(ctx context.Context, businessID string, key entity.StockKey) (*entity.BalanceRecord, error) {
	if err := r.store.injected("balances.get"); err != nil {
		return nil, err
	}
	b, ok := r.lookup(key)
	if !ok || b.BusinessID != businessID {
		return &entity.BalanceRecord{
			ItemVariantID:     key.ItemVariantID,
			LocationID:        key.LocationID,
			BusinessID:        businessID,
			QuantityAvailable: decimal.Zero,
		}, nil
	}
	return &b, nil
}

func (r *BalanceRepository) lookup(key entity.StockKey) (entity.BalanceRecord, bool) {
	if r.tx != nil {
		if b, ok := r.tx.balances[key]; ok {
			return b, true
		}
	}
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	b, ok := r.store.balances[key]
	return b, ok
}

// GetForUpdate no bloquea por fila: el TxRunner en memoria ya serializa las transacciones.
func (r *BalanceRepository) GetForUpdate(ctx context.Context, businessID string, key entity.StockKey) (*entity.BalanceRecord, error) {
	if err := r.store.injected("balances.get_for_update"); err != nil {
		return nil, err
	}
	return r.Get(ctx, businessID, key)
}

func (r *BalanceRepository) ListByLocation(ctx context.Context, businessID, locationID string) ([]entity.BalanceRecord, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	var out []entity.BalanceRecord
	for _, b := range r.store.balances {
		if b.BusinessID == businessID && b.LocationID == locationID {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key().Less(out[j].Key()) })
	return out, nil
}

func (r *BalanceRepository) Upsert(ctx context.Context, b *entity.BalanceRecord) error {
	if err := r.store.injected("balances.upsert"); err != nil {
		return err
	}
	rec := *b
	if rec.UpdatedAt.IsZero() {
		rec.UpdatedAt = time.Now().UTC()
	}
	if r.tx != nil {
		r.tx.balances[rec.Key()] = rec
		return nil
	}
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	r.store.balances[rec.Key()] = rec
	return nil
}

func (r *MovementRepository) Create(ctx context.Context, m *entity.Movement) error {
	if err := r.store.injected("movements.create"); err != nil {
		return err
	}
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	for _, existing := range r.store.movements {
		if existing.ID == m.ID {
			return fmt.Errorf("movimiento %s: %w", m.ID, domain.ErrConflict)
		}
	}
	if r.tx != nil {
		for _, existing := range r.tx.movements {
			if existing.ID == m.ID {
				return fmt.Errorf("movimiento %s: %w", m.ID, domain.ErrConflict)
			}
		}
		r.tx.movements = append(r.tx.movements, *m)
		return nil
	}
	r.store.movements = append(r.store.movements, *m)
	return nil
}

func (r *MovementRepository) ListByKey(ctx context.Context, businessID string, key entity.StockKey) ([]entity.Movement, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	all := r.store.movements
	if r.tx != nil {
		all = append(append([]entity.Movement(nil), all...), r.tx.movements...)
	}
	var out []entity.Movement
	for _, m := range all {
		if m.BusinessID == businessID && m.Key() == key {
			out = append(out, m)
		}
	}
	return out, nil
}

func (r *CorrectionRepository) Create(ctx context.Context, c *entity.CorrectionRecord) error {
	if err := r.store.injected("corrections.create"); err != nil {
		return err
	}
	if _, err := r.GetByID(ctx, c.ID); err == nil {
		return fmt.Errorf("corrección %s: %w", c.ID, domain.ErrConflict)
	}
	if r.tx != nil {
		r.tx.corrections[c.ID] = *c
		return nil
	}
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	r.store.corrections[c.ID] = *c
	return nil
}

func (r *CorrectionRepository) LinkMovement(ctx context.Context, correctionID, movementID string) error {
	if err := r.store.injected("corrections.link"); err != nil {
		return err
	}
	c, err := r.GetByID(ctx, correctionID)
	if err != nil {
		return err
	}
	c.LinkedMovementID = movementID
	if r.tx != nil {
		r.tx.corrections[correctionID] = *c
		return nil
	}
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	r.store.corrections[correctionID] = *c
	return nil
}

func (r *CorrectionRepository) GetByID(ctx context.Context, id string) (*entity.CorrectionRecord, error) {
	if r.tx != nil {
		if c, ok := r.tx.corrections[id]; ok {
			return &c, nil
		}
	}
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	c, ok := r.store.corrections[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &c, nil
}

func (r *CatalogRepository) GetItemVariantsByIDs(ctx context.Context, businessID string, ids []string) (map[string]entity.ItemVariant, error) {
	if err := r.store.injected("catalog.items"); err != nil {
		return nil, err
	}
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	out := make(map[string]entity.ItemVariant, len(ids))
	for _, id := range ids {
		if v, ok := r.store.items[id]; ok && v.BusinessID == businessID {
			out[id] = v
		}
	}
	return out, nil
}

func (r *CatalogRepository) GetLocationsByIDs(ctx context.Context, businessID string, ids []string) (map[string]entity.Location, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	out := make(map[string]entity.Location, len(ids))
	for _, id := range ids {
		if l, ok := r.store.locations[id]; ok && l.BusinessID == businessID {
			out[id] = l
		}
	}
	return out, nil
}

func (r *CatalogRepository) FindItemVariantsByCodes(ctx context.Context, businessID string, codes []string) (map[string]entity.ItemVariant, error) {
	wanted := make(map[string]bool, len(codes))
	for _, c := range codes {
		wanted[repository.NormalizeKey(c)] = true
	}
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	out := make(map[string]entity.ItemVariant)
	for _, v := range r.store.items {
		k := repository.NormalizeKey(v.Code)
		if v.BusinessID == businessID && wanted[k] {
			out[k] = v
		}
	}
	return out, nil
}

func (r *CatalogRepository) FindLocationsByNames(ctx context.Context, businessID string, names []string) (map[string]entity.Location, error) {
	wanted := make(map[string]bool, len(names))
	for _, n := range names {
		wanted[repository.NormalizeKey(n)] = true
	}
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	out := make(map[string]entity.Location)
	for _, l := range r.store.locations {
		k := repository.NormalizeKey(l.Name)
		if l.BusinessID == businessID && wanted[k] {
			out[k] = l
		}
	}
	return out, nil
}
