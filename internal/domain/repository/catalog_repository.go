package repository

import (
	"context"
	"strings"

	"github.com/jhoicas/inventario-ledger/internal/domain/entity"
)

// CatalogRepository resuelve variantes y ubicaciones de un negocio. Los mapas devueltos por
// código y por nombre usan la llave normalizada (minúsculas, sin espacios en los extremos).
type CatalogRepository interface {
	GetItemVariantsByIDs(ctx context.Context, businessID string, ids []string) (map[string]entity.ItemVariant, error)
	GetLocationsByIDs(ctx context.Context, businessID string, ids []string) (map[string]entity.Location, error)
	FindItemVariantsByCodes(ctx context.Context, businessID string, codes []string) (map[string]entity.ItemVariant, error)
	FindLocationsByNames(ctx context.Context, businessID string, names []string) (map[string]entity.Location, error)
}

// NormalizeKey normaliza un código o nombre para búsquedas sin distinguir mayúsculas.
func NormalizeKey(s string) string { return strings.ToLower(strings.TrimSpace(s)) }
