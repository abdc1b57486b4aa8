package ledger_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/inventario-ledger/internal/domain/entity"
	"github.com/jhoicas/inventario-ledger/internal/domain/ledger"
)

var key = entity.StockKey{ItemVariantID: "var-1", LocationID: "loc-1"}

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestCacheVsLedger_Coincide(t *testing.T) {
	rec := ledger.CacheVsLedger(key, "biz-1", d("5"), d("5"), d("10"), ledger.DefaultPolicy())

	assert.Equal(t, entity.VarianceMatch, rec.VarianceType)
	assert.True(t, rec.Variance.IsZero())
	assert.False(t, rec.AutoFixable)
	assert.False(t, rec.RequiresInvestigation)
}

func TestCacheVsLedger_SobranteRequiereInvestigacion(t *testing.T) {
	rec := ledger.CacheVsLedger(key, "biz-1", d("5"), d("8"), d("1"), ledger.DefaultPolicy())

	assert.Equal(t, entity.VarianceOverage, rec.VarianceType)
	assert.True(t, rec.Variance.Equal(d("3")))
	assert.True(t, rec.VariancePercentage.Equal(d("60")), "got %s", rec.VariancePercentage)
	assert.False(t, rec.AutoFixable)
	assert.True(t, rec.RequiresInvestigation)
	assert.NotEmpty(t, rec.PolicyReasons)
}

func TestCacheVsLedger_Faltante(t *testing.T) {
	rec := ledger.CacheVsLedger(key, "biz-1", d("100"), d("98"), d("2"), ledger.DefaultPolicy())

	assert.Equal(t, entity.VarianceShortage, rec.VarianceType)
	assert.True(t, rec.VarianceValue.Equal(d("-4")))
	assert.True(t, rec.AutoFixable)
}

func TestPolicy_LimitesInclusivos(t *testing.T) {
	// kardex 200, sistema 210: 10 unidades, 5 %, valor 10 * 10 = 100.
	policy := ledger.DefaultPolicy()
	rec := ledger.CacheVsLedger(key, "biz-1", d("200"), d("210"), d("10"), policy)

	require.True(t, rec.VariancePercentage.Equal(d("5")), "got %s", rec.VariancePercentage)
	require.True(t, rec.VarianceValue.Equal(d("100")))
	assert.True(t, rec.AutoFixable, "exactamente en los tres límites es auto-corregible")
	assert.False(t, rec.RequiresInvestigation)
}

func TestPolicy_UnaUnidadDeMas(t *testing.T) {
	policy := ledger.DefaultPolicy()
	policy.MaxPercentage = d("100")
	policy.MaxValue = d("1000")

	rec := ledger.CacheVsLedger(key, "biz-1", d("200"), d("211"), d("1"), policy)

	assert.False(t, rec.AutoFixable)
	assert.True(t, rec.RequiresInvestigation)
	require.Len(t, rec.PolicyReasons, 1)
	assert.Contains(t, rec.PolicyReasons[0], "unidades")
}

func TestPolicy_UnPuntoPorcentualDeMas(t *testing.T) {
	// 6 / 100 = 6 % con solo 6 unidades.
	rec := ledger.CacheVsLedger(key, "biz-1", d("100"), d("106"), d("1"), ledger.DefaultPolicy())

	assert.True(t, rec.VariancePercentage.Equal(d("6")))
	assert.False(t, rec.AutoFixable)
	require.Len(t, rec.PolicyReasons, 1)
	assert.Contains(t, rec.PolicyReasons[0], "porcentaje")
}

func TestPolicy_UnaUnidadMonetariaDeMas(t *testing.T) {
	// 10 unidades * 10.1 = 101 > 100.
	rec := ledger.CacheVsLedger(key, "biz-1", d("200"), d("210"), d("10.1"), ledger.DefaultPolicy())

	assert.False(t, rec.AutoFixable)
	require.Len(t, rec.PolicyReasons, 1)
	assert.Contains(t, rec.PolicyReasons[0], "valor")
}

func TestPolicy_ArticuloCaroConPocasUnidades(t *testing.T) {
	// 1 unidad sobre 1000 (0.1 %) pero de alto valor: la prueba de porcentaje sola lo dejaría pasar.
	rec := ledger.CacheVsLedger(key, "biz-1", d("1000"), d("1001"), d("5000"), ledger.DefaultPolicy())

	assert.False(t, rec.AutoFixable)
	assert.True(t, rec.RequiresInvestigation)
}

func TestPhysicalCount_ConteoIgualAlSistema(t *testing.T) {
	rec := ledger.PhysicalCount(key, "biz-1", d("12"), d("12"), d("3"), ledger.DefaultPolicy())

	assert.Equal(t, entity.ModePhysicalCount, rec.Mode)
	assert.Equal(t, entity.VarianceMatch, rec.VarianceType)
	require.NotNil(t, rec.PhysicalCount)
	assert.True(t, rec.PhysicalCount.Equal(d("12")))
}

func TestPhysicalCount_ConteoCeroContraStock(t *testing.T) {
	rec := ledger.PhysicalCount(key, "biz-1", d("3"), d("0"), d("1"), ledger.DefaultPolicy())

	assert.Equal(t, entity.VarianceShortage, rec.VarianceType)
	assert.True(t, rec.Variance.Equal(d("-3")))
	assert.True(t, rec.VariancePercentage.Equal(d("300")), "divisor mínimo de 1")
	assert.True(t, rec.RequiresInvestigation)
}
