package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// SourceKind es el origen de un movimiento. El conjunto es cerrado.
type SourceKind string

const (
	SourceReceiving          SourceKind = "receiving"
	SourceSelling            SourceKind = "selling"
	SourceTransferOut        SourceKind = "transfer_out"
	SourceTransferIn         SourceKind = "transfer_in"
	SourceCorrection         SourceKind = "correction"
	SourceReturnToSupplier   SourceKind = "return_to_supplier"
	SourceReturnFromCustomer SourceKind = "return_from_customer"
)

// ReferenceTypeCorrection es el reference_type de los movimientos creados por una corrección.
const ReferenceTypeCorrection = "correction"

// SourceKinds devuelve los siete orígenes en orden de prioridad de desempate:
// entradas antes que salidas para no mostrar saldos negativos transitorios.
func SourceKinds() []SourceKind {
	return []SourceKind{
		SourceReceiving,
		SourceTransferIn,
		SourceReturnFromCustomer,
		SourceCorrection,
		SourceSelling,
		SourceTransferOut,
		SourceReturnToSupplier,
	}
}

// Priority devuelve la posición de desempate; un origen desconocido va al final.
func (k SourceKind) Priority() int {
	for i, s := range SourceKinds() {
		if s == k {
			return i
		}
	}
	return len(SourceKinds())
}

// Valid indica si el origen pertenece al conjunto cerrado.
func (k SourceKind) Valid() bool { return k.Priority() < len(SourceKinds()) }

// Movement es un hecho inmutable que afecta inventario. Nunca se actualiza ni se borra:
// la única forma de cambiar inventario es agregar otro movimiento.
type Movement struct {
	ID                string
	Timestamp         time.Time
	SourceKind        SourceKind
	ReferenceType     string
	ReferenceID       string
	QuantityIn        decimal.Decimal
	QuantityOut       decimal.Decimal
	ItemVariantID     string
	LocationID        string
	BusinessID        string
	CounterpartyLabel string
	Note              string
	CreatedBy         string
}

// Net devuelve QuantityIn - QuantityOut.
func (m Movement) Net() decimal.Decimal { return m.QuantityIn.Sub(m.QuantityOut) }

// Key devuelve la llave del saldo afectado.
func (m Movement) Key() StockKey {
	return StockKey{ItemVariantID: m.ItemVariantID, LocationID: m.LocationID}
}

// LedgerEntry es un movimiento anotado con el saldo acumulado tras aplicarlo. No se persiste.
type LedgerEntry struct {
	Movement       Movement
	RunningBalance decimal.Decimal
}
