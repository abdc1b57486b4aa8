package http

import (
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/inventario-ledger/internal/application/dto"
	"github.com/jhoicas/inventario-ledger/internal/application/reconciliation"
	"github.com/jhoicas/inventario-ledger/internal/domain/entity"
	"github.com/jhoicas/inventario-ledger/internal/domain/ledger"
	"github.com/jhoicas/inventario-ledger/internal/domain/repository"
)

// LedgerHandler consultas de solo lectura: kardex, varianzas y reporte PDF.
type LedgerHandler struct {
	ledger    *reconciliation.LedgerUseCase
	variances *reconciliation.VarianceUseCase
	reports   *reconciliation.ReportUseCase
}

// NewLedgerHandler construye el handler.
func NewLedgerHandler(ledgerUC *reconciliation.LedgerUseCase, variances *reconciliation.VarianceUseCase, reports *reconciliation.ReportUseCase) *LedgerHandler {
	return &LedgerHandler{ledger: ledgerUC, variances: variances, reports: reports}
}

// GetLedger godoc
// @Summary      Kardex de un producto en una ubicación
// @Description  Movimientos aprobados de los siete orígenes, del más reciente al más antiguo,
//
//	con saldo acumulado. from/to en RFC3339, inclusivos.
//
// @Tags         ledger
// @Security     Bearer
// @Produce      json
// @Param        item_variant_id  query  string  true   "Variante"
// @Param        location_id      query  string  true   "Ubicación"
// @Param        from             query  string  false  "Desde (RFC3339)"
// @Param        to               query  string  false  "Hasta (RFC3339)"
// @Success      200  {object}  dto.LedgerResponse
// @Failure      422  {object}  dto.ErrorResponse
// @Failure      503  {object}  dto.ErrorResponse
// @Router       /api/ledger [get]
func (h *LedgerHandler) GetLedger(c *fiber.Ctx) error {
	businessID := GetBusinessID(c)
	if businessID == "" {
		return unauthorized(c)
	}
	q := repository.MovementQuery{
		BusinessID:    businessID,
		ItemVariantID: c.Query("item_variant_id"),
		LocationID:    c.Query("location_id"),
	}
	var err error
	if q.From, err = parseTime(c.Query("from")); err != nil {
		return badRequest(c, "from: "+err.Error())
	}
	if q.To, err = parseTime(c.Query("to")); err != nil {
		return badRequest(c, "to: "+err.Error())
	}

	entries, err := h.ledger.BuildLedger(c.Context(), q)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(dto.LedgerResponse{
		ItemVariantID: q.ItemVariantID,
		LocationID:    q.LocationID,
		Balance:       ledger.LatestBalance(entries),
		Total:         len(entries),
		Entries:       dto.FromLedgerEntries(entries),
	})
}

// GetVariance godoc
// @Summary      Varianza kardex vs. saldo del sistema
// @Tags         variances
// @Security     Bearer
// @Produce      json
// @Param        item_variant_id  query  string  true  "Variante"
// @Param        location_id      query  string  true  "Ubicación"
// @Success      200  {object}  dto.VarianceDTO
// @Failure      404  {object}  dto.ErrorResponse
// @Failure      503  {object}  dto.ErrorResponse
// @Router       /api/variances [get]
func (h *LedgerHandler) GetVariance(c *fiber.Ctx) error {
	businessID := GetBusinessID(c)
	if businessID == "" {
		return unauthorized(c)
	}
	key := entity.StockKey{ItemVariantID: c.Query("item_variant_id"), LocationID: c.Query("location_id")}
	if key.ItemVariantID == "" || key.LocationID == "" {
		return badRequest(c, "item_variant_id y location_id son obligatorios")
	}
	v, err := h.variances.DetectVariance(c.Context(), businessID, key)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(dto.FromVariance(v))
}

// ScanLocation godoc
// @Summary      Varianzas de todos los productos de una ubicación
// @Description  Un registro por saldo de la ubicación, por valor absoluto de varianza descendente.
// @Tags         variances
// @Security     Bearer
// @Produce      json
// @Param        id   path  string  true  "Ubicación"
// @Success      200  {object}  map[string]interface{}
// @Failure      503  {object}  dto.ErrorResponse
// @Router       /api/locations/{id}/variances [get]
func (h *LedgerHandler) ScanLocation(c *fiber.Ctx) error {
	businessID := GetBusinessID(c)
	if businessID == "" {
		return unauthorized(c)
	}
	records, err := h.variances.ScanLocation(c.Context(), businessID, c.Params("id"))
	if err != nil {
		return writeError(c, err)
	}
	out := make([]dto.VarianceDTO, 0, len(records))
	for _, r := range records {
		out = append(out, dto.FromVariance(r))
	}
	return c.JSON(fiber.Map{
		"location_id": c.Params("id"),
		"total":       len(out),
		"variances":   out,
	})
}

// VarianceReportPDF godoc
// @Summary      Reporte PDF de varianzas de una ubicación
// @Tags         variances
// @Security     Bearer
// @Produce      application/pdf
// @Param        id   path  string  true  "Ubicación"
// @Success      200  {file}    binary
// @Failure      404  {object}  dto.ErrorResponse
// @Router       /api/locations/{id}/variances/report.pdf [get]
func (h *LedgerHandler) VarianceReportPDF(c *fiber.Ctx) error {
	businessID := GetBusinessID(c)
	if businessID == "" {
		return unauthorized(c)
	}
	pdf, err := h.reports.VarianceReport(c.Context(), businessID, c.Params("id"))
	if err != nil {
		return writeError(c, err)
	}
	c.Set(fiber.HeaderContentType, "application/pdf")
	c.Set(fiber.HeaderContentDisposition, fmt.Sprintf(`inline; filename="varianzas-%s.pdf"`, c.Params("id")))
	return c.Send(pdf)
}

func parseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("fecha inválida, se espera RFC3339")
	}
	return t, nil
}
