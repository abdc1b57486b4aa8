package dto

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/inventario-ledger/internal/domain/entity"
)

// LedgerEntryDTO fila del kardex (más reciente primero).
type LedgerEntryDTO struct {
	Timestamp         time.Time       `json:"timestamp"`
	SourceKind        string          `json:"source_kind"`
	ReferenceID       string          `json:"reference_id"`
	QuantityIn        decimal.Decimal `json:"quantity_in"`
	QuantityOut       decimal.Decimal `json:"quantity_out"`
	RunningBalance    decimal.Decimal `json:"running_balance"`
	CounterpartyLabel string          `json:"counterparty_label,omitempty"`
	Note              string          `json:"note,omitempty"`
}

// LedgerResponse respuesta de GET /api/ledger.
type LedgerResponse struct {
	ItemVariantID string           `json:"item_variant_id"`
	LocationID    string           `json:"location_id"`
	Balance       decimal.Decimal  `json:"balance"`
	Total         int              `json:"total"`
	Entries       []LedgerEntryDTO `json:"entries"`
}

// VarianceDTO representación JSON de una varianza.
type VarianceDTO struct {
	ItemVariantID         string           `json:"item_variant_id"`
	LocationID            string           `json:"location_id"`
	Mode                  string           `json:"mode"`
	LedgerBalance         decimal.Decimal  `json:"ledger_balance"`
	SystemBalance         decimal.Decimal  `json:"system_balance"`
	PhysicalCount         *decimal.Decimal `json:"physical_count,omitempty"`
	Variance              decimal.Decimal  `json:"variance"`
	VariancePercentage    decimal.Decimal  `json:"variance_percentage"`
	VarianceType          string           `json:"variance_type"`
	VarianceValue         decimal.Decimal  `json:"variance_value"`
	AutoFixable           bool             `json:"auto_fixable"`
	RequiresInvestigation bool             `json:"requires_investigation"`
	PolicyReasons         []string         `json:"policy_reasons,omitempty"`
}

// VarianceReportDTO entrada del reporte PDF de varianzas de una ubicación.
type VarianceReportDTO struct {
	BusinessID   string
	LocationID   string
	LocationName string
	GeneratedAt  time.Time
	Items        []VarianceReportItem
}

// VarianceReportItem una fila del reporte.
type VarianceReportItem struct {
	Code     string
	Name     string
	Variance VarianceDTO
}

// FromLedgerEntries convierte entradas del kardex manteniendo el orden.
func FromLedgerEntries(entries []entity.LedgerEntry) []LedgerEntryDTO {
	out := make([]LedgerEntryDTO, 0, len(entries))
	for _, e := range entries {
		out = append(out, LedgerEntryDTO{
			Timestamp:         e.Movement.Timestamp,
			SourceKind:        string(e.Movement.SourceKind),
			ReferenceID:       e.Movement.ReferenceID,
			QuantityIn:        e.Movement.QuantityIn,
			QuantityOut:       e.Movement.QuantityOut,
			RunningBalance:    e.RunningBalance,
			CounterpartyLabel: e.Movement.CounterpartyLabel,
			Note:              e.Movement.Note,
		})
	}
	return out
}

// FromVariance convierte una varianza de dominio.
func FromVariance(v entity.VarianceRecord) VarianceDTO {
	return VarianceDTO{
		ItemVariantID:         v.Key.ItemVariantID,
		LocationID:            v.Key.LocationID,
		Mode:                  string(v.Mode),
		LedgerBalance:         v.LedgerBalance,
		SystemBalance:         v.SystemBalance,
		PhysicalCount:         v.PhysicalCount,
		Variance:              v.Variance,
		VariancePercentage:    v.VariancePercentage,
		VarianceType:          string(v.VarianceType),
		VarianceValue:         v.VarianceValue,
		AutoFixable:           v.AutoFixable,
		RequiresInvestigation: v.RequiresInvestigation,
		PolicyReasons:         v.PolicyReasons,
	}
}
