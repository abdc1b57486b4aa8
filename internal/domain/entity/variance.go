package entity

import "github.com/shopspring/decimal"

// VarianceType clasifica la diferencia detectada.
type VarianceType string

const (
	VarianceOverage  VarianceType = "overage"
	VarianceShortage VarianceType = "shortage"
	VarianceMatch    VarianceType = "match"
)

// VarianceMode indica contra qué se comparó el saldo del sistema.
type VarianceMode string

const (
	ModeCacheVsLedger VarianceMode = "cache_vs_ledger"
	ModePhysicalCount VarianceMode = "physical_count"
)

// VarianceRecord es derivado y efímero: existe solo dentro de una pasada de conciliación.
type VarianceRecord struct {
	Key                   StockKey
	BusinessID            string
	Mode                  VarianceMode
	LedgerBalance         decimal.Decimal
	SystemBalance         decimal.Decimal
	PhysicalCount         *decimal.Decimal
	Variance              decimal.Decimal
	VariancePercentage    decimal.Decimal
	VarianceType          VarianceType
	UnitCost              decimal.Decimal
	VarianceValue         decimal.Decimal
	AutoFixable           bool
	RequiresInvestigation bool
	PolicyReasons         []string
}
