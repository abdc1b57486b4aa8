package reconciliation_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/inventario-ledger/internal/domain"
	"github.com/jhoicas/inventario-ledger/internal/domain/entity"
)

func TestDetectVariance_Match(t *testing.T) {
	f := newFixture(t)

	v, err := f.variances.DetectVariance(context.Background(), biz, keyK)
	require.NoError(t, err)
	assert.Equal(t, entity.VarianceMatch, v.VarianceType)
	assert.True(t, v.Variance.IsZero())
	assert.False(t, v.RequiresInvestigation)
}

func TestDetectVariance_SobranteRequiereInvestigacion(t *testing.T) {
	f := newFixture(t)
	f.store.SetBalance(entity.BalanceRecord{ItemVariantID: "var-1", LocationID: "loc-1", BusinessID: biz, QuantityAvailable: d("8")})

	v, err := f.variances.DetectVariance(context.Background(), biz, keyK)
	require.NoError(t, err)
	assert.Equal(t, entity.VarianceOverage, v.VarianceType)
	assert.True(t, v.Variance.Equal(d("3")))
	assert.True(t, v.VariancePercentage.Equal(d("60")))
	assert.True(t, v.VarianceValue.Equal(d("30")))
	assert.False(t, v.AutoFixable)
	assert.True(t, v.RequiresInvestigation)
}

func TestDetectVariance_DesconocidaEsNotFound(t *testing.T) {
	f := newFixture(t)

	_, err := f.variances.DetectVariance(context.Background(), biz, entity.StockKey{ItemVariantID: "nope", LocationID: "loc-1"})
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = f.variances.DetectVariance(context.Background(), "otro-negocio", keyK)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestDetectVariance_LectorCaidoNoEsCero(t *testing.T) {
	f := newFixture(t)
	f.store.FailSource(entity.SourceTransferIn, errors.New("timeout"))

	_, err := f.variances.DetectVariance(context.Background(), biz, keyK)
	assert.ErrorIs(t, err, domain.ErrLedgerUnavailable)
}

func TestDetectPhysicalVariance(t *testing.T) {
	f := newFixture(t)

	v, err := f.variances.DetectPhysicalVariance(context.Background(), biz, keyK, d("4"))
	require.NoError(t, err)
	assert.Equal(t, entity.ModePhysicalCount, v.Mode)
	assert.Equal(t, entity.VarianceShortage, v.VarianceType)
	assert.True(t, v.Variance.Equal(d("-1")))
	require.NotNil(t, v.PhysicalCount)
	assert.True(t, v.PhysicalCount.Equal(d("4")))
}

func TestScanLocation_OrdenadoPorValor(t *testing.T) {
	f := newFixture(t)
	f.store.SetBalance(entity.BalanceRecord{ItemVariantID: "var-1", LocationID: "loc-1", BusinessID: biz, QuantityAvailable: d("6")})
	f.store.SetBalance(entity.BalanceRecord{ItemVariantID: "var-2", LocationID: "loc-1", BusinessID: biz, QuantityAvailable: d("97")})

	got, err := f.variances.ScanLocation(context.Background(), biz, "loc-1")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, keyBig, got[0].Key)
	assert.True(t, got[0].VarianceValue.Equal(d("-30")))
	assert.Equal(t, keyK, got[1].Key)
}

func TestScanLocation_FallaCompleta(t *testing.T) {
	f := newFixture(t)
	f.store.FailSource(entity.SourceReceiving, errors.New("caído"))

	got, err := f.variances.ScanLocation(context.Background(), biz, "loc-1")
	assert.Nil(t, got)
	assert.ErrorIs(t, err, domain.ErrLedgerUnavailable)
}

func TestScanLocation_UbicacionDesconocida(t *testing.T) {
	f := newFixture(t)

	_, err := f.variances.ScanLocation(context.Background(), biz, "loc-x")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
