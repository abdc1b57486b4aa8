package reconciliation_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/inventario-ledger/internal/application/reconciliation"
	"github.com/jhoicas/inventario-ledger/internal/domain/entity"
)

func TestVarianceReport(t *testing.T) {
	f := newFixture(t)
	f.store.SetBalance(entity.BalanceRecord{ItemVariantID: "var-1", LocationID: "loc-1", BusinessID: biz, QuantityAvailable: d("8")})
	renderer := &stubRenderer{}
	uc := reconciliation.NewReportUseCase(f.variances, f.store.Catalog(), renderer)

	pdf, err := uc.VarianceReport(context.Background(), biz, "loc-1")
	require.NoError(t, err)
	assert.Equal(t, []byte("%PDF"), pdf)

	got := renderer.got
	assert.Equal(t, "Bodega Central", got.LocationName)
	require.Len(t, got.Items, 2)
	assert.Equal(t, "SKU-1", got.Items[0].Code)
	assert.Equal(t, "overage", got.Items[0].Variance.VarianceType)
	assert.True(t, got.Items[0].Variance.RequiresInvestigation)
	assert.Equal(t, "match", got.Items[1].Variance.VarianceType)
}
