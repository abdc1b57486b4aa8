// Package pdf genera el reporte de varianzas de una ubicación con Maroto v2.
//
// Layout de la página A4:
//
//	┌─────────────────────────────────────────────────────────────┐
//	│  HEADER: Reporte de varianzas │ Ubicación + fecha            │
//	│  ─────────────────────────────────────────────────────────  │
//	│  RESUMEN: ítems / valor absoluto / auto-corregibles         │
//	│  ─────────────────────────────────────────────────────────  │
//	│  TABLA: Código | Producto | Kardex | Sistema | Var | % | $  │
//	│  ─────────────────────────────────────────────────────────  │
//	│  FOOTER: umbrales y leyenda                                  │
//	└─────────────────────────────────────────────────────────────┘
package pdf

import (
	"context"
	"fmt"

	maroto "github.com/johnfercher/maroto/v2"
	"github.com/johnfercher/maroto/v2/pkg/components/col"
	"github.com/johnfercher/maroto/v2/pkg/components/line"
	"github.com/johnfercher/maroto/v2/pkg/components/row"
	"github.com/johnfercher/maroto/v2/pkg/components/text"
	"github.com/johnfercher/maroto/v2/pkg/config"
	"github.com/johnfercher/maroto/v2/pkg/consts/align"
	"github.com/johnfercher/maroto/v2/pkg/consts/fontstyle"
	"github.com/johnfercher/maroto/v2/pkg/consts/pagesize"
	"github.com/johnfercher/maroto/v2/pkg/core"
	"github.com/johnfercher/maroto/v2/pkg/props"
	"github.com/shopspring/decimal"

	"github.com/jhoicas/inventario-ledger/internal/application/dto"
	"github.com/jhoicas/inventario-ledger/internal/application/reconciliation"
)

// ── Paleta de colores ─────────────────────────────────────────────────────────

var (
	colorPrimary = &props.Color{Red: 0, Green: 70, Blue: 127}
	colorGray    = &props.Color{Red: 100, Green: 100, Blue: 100}
	colorAlert   = &props.Color{Red: 170, Green: 30, Blue: 30}
)

var _ reconciliation.ReportRenderer = (*VarianceReportGenerator)(nil)

// ── Generator ─────────────────────────────────────────────────────────────────

// VarianceReportGenerator implementa reconciliation.ReportRenderer usando Maroto v2.
type VarianceReportGenerator struct{}

// NewVarianceReportGenerator construye el generador.
func NewVarianceReportGenerator() *VarianceReportGenerator { return &VarianceReportGenerator{} }

// RenderVarianceReport genera el PDF y devuelve sus bytes.
func (g *VarianceReportGenerator) RenderVarianceReport(_ context.Context, report dto.VarianceReportDTO) ([]byte, error) {
	cfg := config.NewBuilder().
		WithPageSize(pagesize.A4).
		WithLeftMargin(10).WithRightMargin(10).
		WithTopMargin(10).WithBottomMargin(10).
		WithDefaultFont(&props.Font{Family: "helvetica", Size: 9}).
		WithTitle("Reporte de varianzas "+report.LocationName, true).
		Build()

	m := maroto.New(cfg)

	m.AddRows(headerRow(report))
	m.AddRows(line.NewRow(1, props.Line{Color: colorPrimary, Thickness: 0.5}))
	m.AddRows(summaryRow(report.Items))
	m.AddRows(line.NewRow(1, props.Line{Color: colorPrimary, Thickness: 0.3}))

	m.AddRows(tableHeaderRow())
	if len(report.Items) == 0 {
		m.AddRows(row.New(10).Add(col.New(12).Add(
			text.New("La ubicación no tiene saldos registrados.", props.Text{
				Size: 9, Align: align.Center, Top: 3, Color: colorGray,
			}),
		)))
	}
	m.AddRows(tableDetailRows(report.Items)...)

	m.AddRows(line.NewRow(3))
	m.AddRows(line.NewRow(1, props.Line{Color: colorGray, Thickness: 0.3}))
	m.AddRows(footerRow())

	doc, err := m.Generate()
	if err != nil {
		return nil, fmt.Errorf("pdf: generar documento: %w", err)
	}
	return doc.GetBytes(), nil
}

// ── Secciones ─────────────────────────────────────────────────────────────────

func headerRow(report dto.VarianceReportDTO) core.Row {
	return row.New(18).Add(
		col.New(7).Add(
			text.New("REPORTE DE VARIANZAS", props.Text{
				Style: fontstyle.Bold, Size: 13, Color: colorPrimary, Top: 1,
			}),
			text.New("Kardex vs. saldo del sistema", props.Text{
				Size: 9, Top: 9, Color: colorGray,
			}),
		),
		col.New(5).Add(
			text.New(report.LocationName, props.Text{
				Style: fontstyle.Bold, Size: 11, Align: align.Right, Top: 1,
			}),
			text.New("Generado: "+report.GeneratedAt.Format("02/01/2006 15:04")+" UTC", props.Text{
				Size: 8, Align: align.Right, Top: 9, Color: colorGray,
			}),
		),
	)
}

func summaryRow(items []dto.VarianceReportItem) core.Row {
	totalValue := decimal.Zero
	withVariance, fixable, investigate := 0, 0, 0
	for _, it := range items {
		if !it.Variance.Variance.IsZero() {
			withVariance++
		}
		totalValue = totalValue.Add(it.Variance.VarianceValue.Abs())
		if it.Variance.AutoFixable {
			fixable++
		}
		if it.Variance.RequiresInvestigation {
			investigate++
		}
	}
	cell := func(label, value string) core.Col {
		return col.New(3).Add(
			text.New(label, props.Text{Size: 7, Color: colorGray, Top: 1}),
			text.New(value, props.Text{Style: fontstyle.Bold, Size: 11, Top: 5}),
		)
	}
	return row.New(14).Add(
		cell("Productos con varianza", fmt.Sprintf("%d de %d", withVariance, len(items))),
		cell("Valor absoluto", "$"+formatMoney(totalValue.StringFixed(0))),
		cell("Auto-corregibles", fmt.Sprintf("%d", fixable)),
		cell("Requieren investigación", fmt.Sprintf("%d", investigate)),
	)
}

func tableHeaderRow() core.Row {
	h := func(label string, size int, a align.Type) core.Col {
		return col.New(size).Add(text.New(label, props.Text{
			Style: fontstyle.Bold, Size: 8, Align: a,
			Color: colorPrimary, Top: 2, Left: 1, Right: 1,
		}))
	}
	return row.New(8).Add(
		h("Código", 2, align.Left),
		h("Producto", 3, align.Left),
		h("Kardex", 1, align.Right),
		h("Sistema", 1, align.Right),
		h("Varianza", 1, align.Right),
		h("%", 1, align.Right),
		h("Valor", 2, align.Right),
		h("Acción", 1, align.Center),
	)
}

// tableDetailRows: una fila por producto, en el orden del barrido (mayor valor primero).
func tableDetailRows(items []dto.VarianceReportItem) []core.Row {
	result := make([]core.Row, 0, len(items))
	for _, it := range items {
		v := it.Variance
		action, color := "Auto", colorGray
		switch {
		case v.Variance.IsZero():
			action = "OK"
		case v.RequiresInvestigation:
			action, color = "Investigar", colorAlert
		}
		cell := func(s string, size int, a align.Type) core.Col {
			return col.New(size).Add(text.New(s, props.Text{Size: 8, Align: a, Top: 1, Left: 1, Right: 1}))
		}
		result = append(result, row.New(7).Add(
			cell(it.Code, 2, align.Left),
			cell(it.Name, 3, align.Left),
			cell(v.LedgerBalance.String(), 1, align.Right),
			cell(v.SystemBalance.String(), 1, align.Right),
			cell(signed(v.Variance), 1, align.Right),
			cell(v.VariancePercentage.StringFixed(1), 1, align.Right),
			cell("$"+formatMoney(v.VarianceValue.Abs().StringFixed(0)), 2, align.Right),
			col.New(1).Add(text.New(action, props.Text{
				Style: fontstyle.Bold, Size: 7, Align: align.Center, Top: 1.5, Color: color,
			})),
		))
	}
	return result
}

func footerRow() core.Row {
	return row.New(8).Add(col.New(12).Add(
		text.New(
			"Varianza = sistema - kardex. Las varianzas marcadas \"Auto\" pueden corregirse "+
				"automáticamente; las demás requieren un conteo físico antes de ajustar.",
			props.Text{Size: 6.5, Color: colorGray, Top: 2},
		),
	))
}

// ── helpers ───────────────────────────────────────────────────────────────────

func signed(d decimal.Decimal) string {
	if d.IsPositive() {
		return "+" + d.String()
	}
	return d.String()
}

// formatMoney inserta puntos de miles en un string numérico sin decimales.
// Ej: "25000" → "25.000", "-1000000" → "-1.000.000"
func formatMoney(s string) string {
	sign := ""
	if len(s) > 0 && s[0] == '-' {
		sign, s = "-", s[1:]
	}
	n := len(s)
	if n <= 3 {
		return sign + s
	}
	buf := make([]byte, 0, n+n/3)
	for i, c := range []byte(s) {
		if i > 0 && (n-i)%3 == 0 {
			buf = append(buf, '.')
		}
		buf = append(buf, c)
	}
	return sign + string(buf)
}
