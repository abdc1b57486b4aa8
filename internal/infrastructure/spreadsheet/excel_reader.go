// Package spreadsheet lee planillas de conteo físico (xlsx) con excelize.
package spreadsheet

import (
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/jhoicas/inventario-ledger/internal/application/reconciliation"
)

var _ reconciliation.SheetReader = (*ExcelReader)(nil)

// ExcelReader implementa reconciliation.SheetReader.
type ExcelReader struct{}

// NewExcelReader crea el lector.
func NewExcelReader() *ExcelReader { return &ExcelReader{} }

// ReadRows devuelve las filas con el valor mostrado de cada celda. Con sheet vacío se usa
// la primera hoja que tenga al menos una celda con contenido.
func (ExcelReader) ReadRows(r io.Reader, sheet string) ([][]string, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("abrir xlsx: %w", err)
	}
	defer f.Close()

	if sheet != "" {
		idx, err := f.GetSheetIndex(sheet)
		if err != nil || idx < 0 {
			return nil, fmt.Errorf("la hoja %q no existe", sheet)
		}
		return f.GetRows(sheet)
	}

	for _, name := range f.GetSheetList() {
		rows, err := f.GetRows(name)
		if err != nil {
			return nil, fmt.Errorf("leer hoja %q: %w", name, err)
		}
		if hasContent(rows) {
			return rows, nil
		}
	}
	return nil, fmt.Errorf("la planilla no tiene hojas con datos")
}

func hasContent(rows [][]string) bool {
	for _, row := range rows {
		for _, cell := range row {
			if strings.TrimSpace(cell) != "" {
				return true
			}
		}
	}
	return false
}
