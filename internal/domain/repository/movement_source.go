package repository

import (
	"context"
	"time"

	"github.com/jhoicas/inventario-ledger/internal/domain/entity"
)

// MovementQuery filtra los movimientos de una llave dentro de un negocio.
// From y To son inclusivos; el valor cero significa sin límite.
type MovementQuery struct {
	BusinessID    string
	ItemVariantID string
	LocationID    string
	From          time.Time
	To            time.Time
}

// Key devuelve la llave consultada.
func (q MovementQuery) Key() entity.StockKey {
	return entity.StockKey{ItemVariantID: q.ItemVariantID, LocationID: q.LocationID}
}

// MovementSource es el puerto de un lector de eventos: uno por cada origen del conjunto cerrado.
// Solo devuelve registros aprobados, publicados o completados, fechados con el campo
// de vigencia propio de su origen. No tiene efectos secundarios.
type MovementSource interface {
	Kind() entity.SourceKind
	Movements(ctx context.Context, q MovementQuery) ([]entity.Movement, error)
}
