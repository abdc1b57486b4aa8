package http

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/inventario-ledger/internal/application/dto"
	"github.com/jhoicas/inventario-ledger/internal/application/reconciliation"
	"github.com/jhoicas/inventario-ledger/internal/domain/entity"
)

// HeaderIdempotencyKey llave de idempotencia de las operaciones de escritura.
const HeaderIdempotencyKey = "Idempotency-Key"

// CorrectionHandler escrituras: correcciones, auto-corrección e importación de conteo físico.
type CorrectionHandler struct {
	corrections *reconciliation.CorrectionUseCase
	counts      *reconciliation.PhysicalCountUseCase
}

// NewCorrectionHandler construye el handler.
func NewCorrectionHandler(corrections *reconciliation.CorrectionUseCase, counts *reconciliation.PhysicalCountUseCase) *CorrectionHandler {
	return &CorrectionHandler{corrections: corrections, counts: counts}
}

// Preview godoc
// @Summary      Previsualizar un lote de correcciones
// @Description  Misma validación que la aplicación, sin escrituras ni llave de idempotencia.
// @Tags         corrections
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        body  body  dto.CorrectionBatchRequest  true  "source, allow_negative, requests"
// @Success      200   {object}  dto.CorrectionResult
// @Failure      422   {object}  dto.ErrorResponse
// @Router       /api/corrections/preview [post]
func (h *CorrectionHandler) Preview(c *fiber.Ctx) error {
	batch, ok, err := h.batchFromBody(c)
	if !ok {
		return err
	}
	res, err := h.corrections.Preview(c.Context(), batch)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(res)
}

// Apply godoc
// @Summary      Aplicar un lote de correcciones
// @Description  Todo o nada. Reintentar con la misma Idempotency-Key devuelve el mismo resultado.
// @Tags         corrections
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        Idempotency-Key  header  string                      true  "Llave de idempotencia"
// @Param        body             body    dto.CorrectionBatchRequest  true  "source, allow_negative, requests"
// @Success      200   {object}  dto.CorrectionResult
// @Failure      409   {object}  dto.ErrorResponse
// @Failure      422   {object}  dto.ErrorResponse
// @Failure      503   {object}  dto.ErrorResponse
// @Router       /api/corrections [post]
func (h *CorrectionHandler) Apply(c *fiber.Ctx) error {
	batch, ok, err := h.batchFromBody(c)
	if !ok {
		return err
	}
	batch.IdempotencyToken = strings.TrimSpace(c.Get(HeaderIdempotencyKey))
	res, err := h.corrections.Apply(c.Context(), batch)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(res)
}

// AutoFix godoc
// @Summary      Auto-corregir saldos desalineados con el kardex
// @Description  Solo varianzas pequeñas (prueba de tres partes); una varianza mayor rechaza el lote.
// @Tags         corrections
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        Idempotency-Key  header  string              true  "Llave de idempotencia"
// @Param        body             body    dto.AutoFixRequest  true  "keys"
// @Success      200   {object}  dto.CorrectionResult
// @Failure      409   {object}  dto.ErrorResponse
// @Failure      503   {object}  dto.ErrorResponse
// @Router       /api/corrections/auto-fix [post]
func (h *CorrectionHandler) AutoFix(c *fiber.Ctx) error {
	businessID, userID := GetBusinessID(c), GetUserID(c)
	if businessID == "" || userID == "" {
		return unauthorized(c)
	}
	var in dto.AutoFixRequest
	if err := c.BodyParser(&in); err != nil {
		return badRequest(c, "cuerpo inválido")
	}
	keys := make([]entity.StockKey, 0, len(in.Keys))
	for _, k := range in.Keys {
		keys = append(keys, entity.StockKey{ItemVariantID: k.ItemVariantID, LocationID: k.LocationID})
	}
	res, err := h.corrections.AutoFix(c.Context(), businessID, userID, strings.TrimSpace(c.Get(HeaderIdempotencyKey)), keys)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(res)
}

// ImportPhysicalCount godoc
// @Summary      Importar planilla de conteo físico (xlsx)
// @Description  Columnas: fecha, sucursal, código, producto, conteo (con sinónimos).
//
//	preview=true valida y calcula sin escribir.
//
// @Tags         corrections
// @Security     Bearer
// @Accept       multipart/form-data
// @Produce      json
// @Param        Idempotency-Key  header    string  false  "Obligatoria si preview=false"
// @Param        preview          query     bool    false  "Solo previsualizar"
// @Param        sheet            query     string  false  "Hoja a leer (por defecto la primera con datos)"
// @Param        file             formData  file    true   "Planilla xlsx"
// @Success      200   {object}  dto.CorrectionResult
// @Failure      422   {object}  dto.ErrorResponse
// @Router       /api/physical-counts [post]
func (h *CorrectionHandler) ImportPhysicalCount(c *fiber.Ctx) error {
	businessID, userID := GetBusinessID(c), GetUserID(c)
	if businessID == "" || userID == "" {
		return unauthorized(c)
	}
	fh, err := c.FormFile("file")
	if err != nil {
		return badRequest(c, "campo multipart 'file' requerido")
	}
	f, err := fh.Open()
	if err != nil {
		return badRequest(c, "no se pudo abrir el archivo")
	}
	defer f.Close()

	res, err := h.counts.Import(c.Context(), reconciliation.PhysicalCountImport{
		BusinessID:       businessID,
		ActorID:          userID,
		IdempotencyToken: strings.TrimSpace(c.Get(HeaderIdempotencyKey)),
		Sheet:            c.Query("sheet"),
		Preview:          c.QueryBool("preview", false),
		File:             f,
	})
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(res)
}

// batchFromBody arma el lote con la identidad del token. ok=false significa que la respuesta
// ya fue escrita y err es lo que debe devolver el handler.
func (h *CorrectionHandler) batchFromBody(c *fiber.Ctx) (reconciliation.CorrectionBatch, bool, error) {
	businessID, userID := GetBusinessID(c), GetUserID(c)
	if businessID == "" || userID == "" {
		return reconciliation.CorrectionBatch{}, false, unauthorized(c)
	}
	var in dto.CorrectionBatchRequest
	if err := c.BodyParser(&in); err != nil {
		return reconciliation.CorrectionBatch{}, false, badRequest(c, "cuerpo inválido")
	}
	batch := reconciliation.CorrectionBatch{
		BusinessID:    businessID,
		ActorID:       userID,
		Source:        in.Source,
		AllowNegative: in.AllowNegative,
		Requests:      make([]reconciliation.CorrectionRequest, 0, len(in.Requests)),
	}
	for _, r := range in.Requests {
		batch.Requests = append(batch.Requests, reconciliation.CorrectionRequest{
			RowRef:         r.Row,
			ItemVariantID:  r.ItemVariantID,
			LocationID:     r.LocationID,
			TargetQuantity: r.TargetQuantity,
			Reason:         r.Reason,
		})
	}
	return batch, true, nil
}
