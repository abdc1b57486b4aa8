package reconciliation

import (
	"context"
	"fmt"
	"time"

	"github.com/jhoicas/inventario-ledger/internal/application/dto"
	"github.com/jhoicas/inventario-ledger/internal/domain"
	"github.com/jhoicas/inventario-ledger/internal/domain/repository"
)

// ReportUseCase genera el PDF de varianzas de una ubicación.
type ReportUseCase struct {
	variances *VarianceUseCase
	catalog   repository.CatalogRepository
	renderer  ReportRenderer
}

// NewReportUseCase construye el caso de uso.
func NewReportUseCase(variances *VarianceUseCase, catalog repository.CatalogRepository, renderer ReportRenderer) *ReportUseCase {
	return &ReportUseCase{variances: variances, catalog: catalog, renderer: renderer}
}

// VarianceReport arma el reporte con el mismo barrido que ScanLocation y lo entrega al renderer.
func (uc *ReportUseCase) VarianceReport(ctx context.Context, businessID, locationID string) ([]byte, error) {
	records, err := uc.variances.ScanLocation(ctx, businessID, locationID)
	if err != nil {
		return nil, err
	}
	locs, err := uc.catalog.GetLocationsByIDs(ctx, businessID, []string{locationID})
	if err != nil {
		return nil, fmt.Errorf("ubicación: %w", err)
	}
	loc, ok := locs[locationID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	ids := make([]string, 0, len(records))
	for _, r := range records {
		ids = append(ids, r.Key.ItemVariantID)
	}
	items, err := uc.catalog.GetItemVariantsByIDs(ctx, businessID, ids)
	if err != nil {
		return nil, fmt.Errorf("variantes: %w", err)
	}

	report := dto.VarianceReportDTO{
		BusinessID:   businessID,
		LocationID:   locationID,
		LocationName: loc.Name,
		GeneratedAt:  time.Now().UTC(),
		Items:        make([]dto.VarianceReportItem, 0, len(records)),
	}
	for _, r := range records {
		item := items[r.Key.ItemVariantID]
		report.Items = append(report.Items, dto.VarianceReportItem{
			Code:     item.Code,
			Name:     item.Name,
			Variance: dto.FromVariance(r),
		})
	}
	return uc.renderer.RenderVarianceReport(ctx, report)
}
