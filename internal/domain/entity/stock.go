package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// StockKey identifica un saldo: variante de producto en una ubicación.
type StockKey struct {
	ItemVariantID string
	LocationID    string
}

func (k StockKey) String() string { return k.ItemVariantID + "@" + k.LocationID }

// Less ordena por ubicación y luego por variante. Es el orden en que se bloquean las filas.
func (k StockKey) Less(o StockKey) bool {
	if k.LocationID != o.LocationID {
		return k.LocationID < o.LocationID
	}
	return k.ItemVariantID < o.ItemVariantID
}

// BalanceRecord es la caché materializada de cantidad disponible por llave (tabla stock_balances).
// Solo la modifica el aplicador de correcciones o la transacción que crea el movimiento.
type BalanceRecord struct {
	ItemVariantID     string
	LocationID        string
	BusinessID        string
	QuantityAvailable decimal.Decimal
	UpdatedAt         time.Time
}

// Key devuelve la llave del saldo.
func (b BalanceRecord) Key() StockKey {
	return StockKey{ItemVariantID: b.ItemVariantID, LocationID: b.LocationID}
}
