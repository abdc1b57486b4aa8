package entity

import "github.com/shopspring/decimal"

// ItemVariant representa una variante de producto (SKU) con su costo unitario vigente.
// UnitCost se usa para valorizar las varianzas.
type ItemVariant struct {
	ID         string
	BusinessID string
	Code       string
	Name       string
	UnitCost   decimal.Decimal
}
