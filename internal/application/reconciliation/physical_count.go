package reconciliation

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/jhoicas/inventario-ledger/internal/application/dto"
	"github.com/jhoicas/inventario-ledger/internal/domain"
	"github.com/jhoicas/inventario-ledger/internal/domain/entity"
	"github.com/jhoicas/inventario-ledger/internal/domain/repository"
)

// Campos lógicos de la planilla de conteo físico.
const (
	FieldDate        = "date"
	FieldBranch      = "branch"
	FieldItemCode    = "item_code"
	FieldItemName    = "item_name"
	FieldActualCount = "actual_count"
)

// columnSynonyms encabezados aceptados por campo (comparados en mayúsculas y con espacios simples).
var columnSynonyms = map[string][]string{
	FieldDate:        {"DATE", "COUNT DATE", "FECHA"},
	FieldBranch:      {"BRANCH", "BRANCH NAME", "LOCATION", "STORE", "WAREHOUSE", "BODEGA"},
	FieldItemCode:    {"ITEM CODE", "CODE", "SKU", "PRODUCT CODE", "CODIGO"},
	FieldItemName:    {"ITEM NAME", "NAME", "PRODUCT", "DESCRIPTION"},
	FieldActualCount: {"ACTUAL COUNT", "COUNT", "COUNTED", "QUANTITY", "QTY", "PHYSICAL COUNT", "CANTIDAD"},
}

var requiredColumns = []string{FieldBranch, FieldItemCode, FieldActualCount}

// CountRow fila de datos de la planilla. Row es el número de fila en la hoja (1 = encabezado).
type CountRow struct {
	Row         int
	Date        string
	Branch      string
	ItemCode    string
	ItemName    string
	ActualCount string
}

// ParseCountFeed mapea el encabezado (fila 1) y devuelve las filas de datos no vacías.
func ParseCountFeed(rows [][]string) ([]CountRow, error) {
	if len(rows) == 0 {
		return nil, domain.NewValidationError("1", "", "la planilla está vacía")
	}
	cols := mapHeader(rows[0])
	verr := &domain.ValidationError{}
	for _, f := range requiredColumns {
		if _, ok := cols[f]; !ok {
			verr.Add("1", f, fmt.Sprintf("no se reconoce ninguna columna para %s", f))
		}
	}
	if verr.HasErrors() {
		return nil, verr
	}

	out := make([]CountRow, 0, len(rows)-1)
	for i := 1; i < len(rows); i++ {
		if blank(rows[i]) {
			continue
		}
		out = append(out, CountRow{
			Row:         i + 1,
			Date:        cell(rows[i], cols, FieldDate),
			Branch:      cell(rows[i], cols, FieldBranch),
			ItemCode:    cell(rows[i], cols, FieldItemCode),
			ItemName:    cell(rows[i], cols, FieldItemName),
			ActualCount: cell(rows[i], cols, FieldActualCount),
		})
	}
	if len(out) == 0 {
		return nil, domain.NewValidationError("2", "", "la planilla no tiene filas de datos")
	}
	return out, nil
}

func mapHeader(header []string) map[string]int {
	cols := make(map[string]int)
	for idx, h := range header {
		norm := strings.Join(strings.Fields(strings.ToUpper(strings.ReplaceAll(h, "_", " "))), " ")
		for field, synonyms := range columnSynonyms {
			if _, taken := cols[field]; taken {
				continue
			}
			for _, syn := range synonyms {
				if norm == syn {
					cols[field] = idx
					break
				}
			}
		}
	}
	return cols
}

func cell(row []string, cols map[string]int, field string) string {
	idx, ok := cols[field]
	if !ok || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}

func blank(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

// PhysicalCountImport entrada de la importación de conteo físico.
type PhysicalCountImport struct {
	BusinessID       string
	ActorID          string
	IdempotencyToken string
	Sheet            string
	Preview          bool
	File             io.Reader
}

// PhysicalCountUseCase importa planillas de conteo físico como lotes de corrección external_upload.
type PhysicalCountUseCase struct {
	sheets      SheetReader
	catalog     repository.CatalogRepository
	corrections *CorrectionUseCase
	log         zerolog.Logger
}

// NewPhysicalCountUseCase construye el caso de uso.
func NewPhysicalCountUseCase(sheets SheetReader, catalog repository.CatalogRepository, corrections *CorrectionUseCase, log zerolog.Logger) *PhysicalCountUseCase {
	return &PhysicalCountUseCase{sheets: sheets, catalog: catalog, corrections: corrections, log: log}
}

// Import lee la planilla, resuelve sucursales y códigos y aplica (o previsualiza) el lote.
// Una fila igual al saldo actual queda verified sin escrituras.
func (uc *PhysicalCountUseCase) Import(ctx context.Context, in PhysicalCountImport) (*dto.CorrectionResult, error) {
	if in.File == nil {
		return nil, domain.NewValidationError("file", "file", "archivo obligatorio")
	}
	rows, err := uc.sheets.ReadRows(in.File, in.Sheet)
	if err != nil {
		return nil, domain.NewValidationError("file", "file", fmt.Sprintf("no se pudo leer la planilla: %v", err))
	}
	feed, err := ParseCountFeed(rows)
	if err != nil {
		return nil, err
	}
	batch, err := uc.resolve(ctx, in, feed)
	if err != nil {
		uc.log.Warn().Err(err).Str("business_id", in.BusinessID).Int("rows", len(feed)).Msg("planilla de conteo rechazada")
		return nil, err
	}
	if in.Preview {
		return uc.corrections.Preview(ctx, batch)
	}
	return uc.corrections.applyIdempotent(ctx, OperationPhysicalCount, batch)
}

func (uc *PhysicalCountUseCase) resolve(ctx context.Context, in PhysicalCountImport, feed []CountRow) (CorrectionBatch, error) {
	codes := make([]string, 0, len(feed))
	names := make([]string, 0, len(feed))
	for _, r := range feed {
		if r.ItemCode != "" {
			codes = append(codes, r.ItemCode)
		}
		if r.Branch != "" {
			names = append(names, r.Branch)
		}
	}
	items, err := uc.catalog.FindItemVariantsByCodes(ctx, in.BusinessID, codes)
	if err != nil {
		return CorrectionBatch{}, fmt.Errorf("variantes por código: %w", err)
	}
	locs, err := uc.catalog.FindLocationsByNames(ctx, in.BusinessID, names)
	if err != nil {
		return CorrectionBatch{}, fmt.Errorf("ubicaciones por nombre: %w", err)
	}

	batch := CorrectionBatch{
		BusinessID:       in.BusinessID,
		ActorID:          in.ActorID,
		IdempotencyToken: in.IdempotencyToken,
		Source:           entity.CorrectionSourceExternalUpload,
		Requests:         make([]CorrectionRequest, 0, len(feed)),
	}
	verr := &domain.ValidationError{}
	for _, r := range feed {
		ref := strconv.Itoa(r.Row)
		loc, locOK := locs[repository.NormalizeKey(r.Branch)]
		item, itemOK := items[repository.NormalizeKey(r.ItemCode)]
		switch {
		case r.Branch == "":
			verr.Add(ref, FieldBranch, "sucursal vacía")
		case !locOK:
			verr.Add(ref, FieldBranch, fmt.Sprintf("sucursal desconocida %q", r.Branch))
		}
		switch {
		case r.ItemCode == "":
			verr.Add(ref, FieldItemCode, "código vacío")
		case !itemOK:
			verr.Add(ref, FieldItemCode, fmt.Sprintf("código desconocido %q", r.ItemCode))
		}
		count, err := decimal.NewFromString(r.ActualCount)
		switch {
		case r.ActualCount == "":
			verr.Add(ref, FieldActualCount, "conteo vacío")
		case err != nil:
			verr.Add(ref, FieldActualCount, fmt.Sprintf("conteo inválido %q", r.ActualCount))
		case count.IsNegative():
			verr.Add(ref, FieldActualCount, "el conteo no puede ser negativo")
		}
		if !locOK || !itemOK || err != nil {
			continue
		}
		reason := "conteo físico"
		if r.Date != "" {
			reason += " " + r.Date
		}
		batch.Requests = append(batch.Requests, CorrectionRequest{
			RowRef:         ref,
			ItemVariantID:  item.ID,
			LocationID:     loc.ID,
			TargetQuantity: count,
			Reason:         reason,
		})
	}
	if verr.HasErrors() {
		return CorrectionBatch{}, verr
	}
	return batch, nil
}
