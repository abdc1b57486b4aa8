package postgres

import (
	"context"
	"fmt"

	"github.com/jhoicas/inventario-ledger/internal/domain/entity"
	"github.com/jhoicas/inventario-ledger/internal/domain/repository"
)

var _ repository.CatalogRepository = (*CatalogRepo)(nil)

// CatalogRepo lectura de variantes y ubicaciones del negocio.
type CatalogRepo struct {
	q Querier
}

// NewCatalogRepository construye el adaptador. Pasar pool o tx (Querier).
func NewCatalogRepository(q Querier) *CatalogRepo {
	return &CatalogRepo{q: q}
}

func (r *CatalogRepo) GetItemVariantsByIDs(ctx context.Context, businessID string, ids []string) (map[string]entity.ItemVariant, error) {
	items, err := r.items(ctx, `WHERE business_id = $1 AND id = ANY($2)`, businessID, ids)
	if err != nil {
		return nil, err
	}
	out := make(map[string]entity.ItemVariant, len(items))
	for _, v := range items {
		out[v.ID] = v
	}
	return out, nil
}

func (r *CatalogRepo) FindItemVariantsByCodes(ctx context.Context, businessID string, codes []string) (map[string]entity.ItemVariant, error) {
	items, err := r.items(ctx, `WHERE business_id = $1 AND lower(trim(code)) = ANY($2)`, businessID, normalizeAll(codes))
	if err != nil {
		return nil, err
	}
	out := make(map[string]entity.ItemVariant, len(items))
	for _, v := range items {
		out[repository.NormalizeKey(v.Code)] = v
	}
	return out, nil
}

func (r *CatalogRepo) GetLocationsByIDs(ctx context.Context, businessID string, ids []string) (map[string]entity.Location, error) {
	locs, err := r.locations(ctx, `WHERE business_id = $1 AND id = ANY($2)`, businessID, ids)
	if err != nil {
		return nil, err
	}
	out := make(map[string]entity.Location, len(locs))
	for _, l := range locs {
		out[l.ID] = l
	}
	return out, nil
}

func (r *CatalogRepo) FindLocationsByNames(ctx context.Context, businessID string, names []string) (map[string]entity.Location, error) {
	locs, err := r.locations(ctx, `WHERE business_id = $1 AND lower(trim(name)) = ANY($2)`, businessID, normalizeAll(names))
	if err != nil {
		return nil, err
	}
	out := make(map[string]entity.Location, len(locs))
	for _, l := range locs {
		out[repository.NormalizeKey(l.Name)] = l
	}
	return out, nil
}

func (r *CatalogRepo) items(ctx context.Context, where, businessID string, values []string) ([]entity.ItemVariant, error) {
	if len(values) == 0 {
		return nil, nil
	}
	rows, err := r.q.Query(ctx, `SELECT id, business_id, code, name, unit_cost FROM item_variants `+where, businessID, values)
	if err != nil {
		return nil, fmt.Errorf("list item variants: %w", err)
	}
	defer rows.Close()
	var out []entity.ItemVariant
	for rows.Next() {
		var v entity.ItemVariant
		if err := rows.Scan(&v.ID, &v.BusinessID, &v.Code, &v.Name, &v.UnitCost); err != nil {
			return nil, fmt.Errorf("scan item variant: %w", err)
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

func (r *CatalogRepo) locations(ctx context.Context, where, businessID string, values []string) ([]entity.Location, error) {
	if len(values) == 0 {
		return nil, nil
	}
	rows, err := r.q.Query(ctx, `SELECT id, business_id, name FROM locations `+where, businessID, values)
	if err != nil {
		return nil, fmt.Errorf("list locations: %w", err)
	}
	defer rows.Close()
	var out []entity.Location
	for rows.Next() {
		var l entity.Location
		if err := rows.Scan(&l.ID, &l.BusinessID, &l.Name); err != nil {
			return nil, fmt.Errorf("scan location: %w", err)
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

func normalizeAll(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		out = append(out, repository.NormalizeKey(v))
	}
	return out
}
