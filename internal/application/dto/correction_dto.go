package dto

import "github.com/shopspring/decimal"

// Estados por fila de un lote de corrección.
const (
	RowStatusApplied  = "applied"
	RowStatusVerified = "verified"
)

// CorrectionRequestDTO una fila del body de POST /api/corrections.
type CorrectionRequestDTO struct {
	Row            string          `json:"row,omitempty"`
	ItemVariantID  string          `json:"item_variant_id"`
	LocationID     string          `json:"location_id"`
	TargetQuantity decimal.Decimal `json:"target_quantity"`
	Reason         string          `json:"reason"`
}

// CorrectionBatchRequest body de POST /api/corrections y /api/corrections/preview.
type CorrectionBatchRequest struct {
	Source        string                 `json:"source"`
	AllowNegative bool                   `json:"allow_negative"`
	Requests      []CorrectionRequestDTO `json:"requests"`
}

// AutoFixRequest body de POST /api/corrections/auto-fix.
type AutoFixRequest struct {
	Keys []struct {
		ItemVariantID string `json:"item_variant_id"`
		LocationID    string `json:"location_id"`
	} `json:"keys"`
}

// CorrectionRowResult recibo por fila.
type CorrectionRowResult struct {
	Row               string          `json:"row"`
	ItemVariantID     string          `json:"item_variant_id"`
	LocationID        string          `json:"location_id"`
	Status            string          `json:"status"`
	SystemCountBefore decimal.Decimal `json:"system_count_before"`
	TargetQuantity    decimal.Decimal `json:"target_quantity"`
	Difference        decimal.Decimal `json:"difference"`
	CorrectionID      string          `json:"correction_id,omitempty"`
	MovementID        string          `json:"movement_id,omitempty"`
	Variance          *VarianceDTO    `json:"variance,omitempty"`
}

// CorrectionResult resultado de aplicar o previsualizar un lote. Un lote rechazado no produce
// resultado: se reporta como error con el detalle por fila. Preview=true garantiza que no se
// escribió nada. Replayed=true indica un resultado devuelto desde la llave de idempotencia.
type CorrectionResult struct {
	AppliedCount int                   `json:"applied_count"`
	SkippedCount int                   `json:"skipped_count"`
	Preview      bool                  `json:"preview"`
	Replayed     bool                  `json:"replayed"`
	Rows         []CorrectionRowResult `json:"rows"`
}
