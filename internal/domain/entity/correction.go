package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// Estados y orígenes de una corrección.
const (
	CorrectionStatusApproved = "approved"

	CorrectionSourceExternalUpload = "external_upload"
	CorrectionSourceInternal       = "internal_reconciliation"
	CorrectionSourceManual         = "manual"
)

// CorrectionRecord es el artefacto de auditoría que justifica un cambio de saldo.
// Se inserta antes del movimiento y luego se enlaza con su ID, dentro de la misma transacción.
type CorrectionRecord struct {
	ID                    string
	BusinessID            string
	ItemVariantID         string
	LocationID            string
	SystemCountBefore     decimal.Decimal
	PhysicalOrLedgerCount decimal.Decimal
	Difference            decimal.Decimal
	Reason                string
	Source                string
	Status                string
	LinkedMovementID      string
	ApprovedBy            string
	ApprovedAt            time.Time
	CreatedAt             time.Time
}

// Key devuelve la llave del saldo corregido.
func (c CorrectionRecord) Key() StockKey {
	return StockKey{ItemVariantID: c.ItemVariantID, LocationID: c.LocationID}
}
