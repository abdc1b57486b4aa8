package ledger

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/inventario-ledger/internal/domain/entity"
)

var hundred = decimal.NewFromInt(100)

// Policy define los tres umbrales de auto-corrección. Una varianza es auto-corregible solo
// si cumple los tres a la vez; los límites son inclusivos.
type Policy struct {
	MaxPercentage decimal.Decimal
	MaxUnits      decimal.Decimal
	MaxValue      decimal.Decimal
}

// DefaultPolicy: 5 %, 10 unidades, 100 unidades monetarias.
func DefaultPolicy() Policy {
	return Policy{
		MaxPercentage: decimal.NewFromInt(5),
		MaxUnits:      decimal.NewFromInt(10),
		MaxValue:      decimal.NewFromInt(100),
	}
}

// Evaluate aplica la prueba de tres partes y devuelve las razones de rechazo.
func (p Policy) Evaluate(variance, percentage, value decimal.Decimal) (bool, []string) {
	var reasons []string
	if percentage.GreaterThan(p.MaxPercentage) {
		reasons = append(reasons, fmt.Sprintf("porcentaje %s%% supera %s%%", percentage.String(), p.MaxPercentage.String()))
	}
	if variance.Abs().GreaterThan(p.MaxUnits) {
		reasons = append(reasons, fmt.Sprintf("%s unidades supera %s", variance.Abs().String(), p.MaxUnits.String()))
	}
	if value.Abs().GreaterThan(p.MaxValue) {
		reasons = append(reasons, fmt.Sprintf("valor %s supera %s", value.Abs().String(), p.MaxValue.String()))
	}
	return len(reasons) == 0, reasons
}

// Classify devuelve overage si la varianza es positiva, shortage si es negativa y match si es cero.
func Classify(variance decimal.Decimal) entity.VarianceType {
	switch variance.Sign() {
	case 1:
		return entity.VarianceOverage
	case -1:
		return entity.VarianceShortage
	default:
		return entity.VarianceMatch
	}
}

// Percentage calcula |varianza| / max(min(|a|, |b|), 1) * 100 con cuatro decimales.
// Se divide por la menor de las dos magnitudes comparadas para no subestimar el porcentaje
// cuando ambas ya difieren.
func Percentage(variance, a, b decimal.Decimal) decimal.Decimal {
	divisor := decimal.Min(a.Abs(), b.Abs())
	if divisor.LessThan(decimal.NewFromInt(1)) {
		divisor = decimal.NewFromInt(1)
	}
	return variance.Abs().Mul(hundred).DivRound(divisor, 4)
}

// CacheVsLedger compara el saldo materializado contra el saldo del kardex:
// varianza = sistema - kardex.
func CacheVsLedger(key entity.StockKey, businessID string, ledgerBalance, systemBalance, unitCost decimal.Decimal, p Policy) entity.VarianceRecord {
	variance := systemBalance.Sub(ledgerBalance)
	rec := entity.VarianceRecord{
		Key:           key,
		BusinessID:    businessID,
		Mode:          entity.ModeCacheVsLedger,
		LedgerBalance: ledgerBalance,
		SystemBalance: systemBalance,
		Variance:      variance,
		UnitCost:      unitCost,
	}
	finish(&rec, Percentage(variance, ledgerBalance, systemBalance), p)
	return rec
}

// PhysicalCount compara un conteo externo contra el saldo materializado:
// varianza = conteo - sistema. LedgerBalance queda en cero en este modo.
func PhysicalCount(key entity.StockKey, businessID string, systemBalance, physical, unitCost decimal.Decimal, p Policy) entity.VarianceRecord {
	variance := physical.Sub(systemBalance)
	count := physical
	rec := entity.VarianceRecord{
		Key:           key,
		BusinessID:    businessID,
		Mode:          entity.ModePhysicalCount,
		SystemBalance: systemBalance,
		PhysicalCount: &count,
		Variance:      variance,
		UnitCost:      unitCost,
	}
	finish(&rec, Percentage(variance, physical, systemBalance), p)
	return rec
}

func finish(rec *entity.VarianceRecord, percentage decimal.Decimal, p Policy) {
	rec.VariancePercentage = percentage
	rec.VarianceType = Classify(rec.Variance)
	rec.VarianceValue = rec.Variance.Mul(rec.UnitCost)
	if rec.VarianceType == entity.VarianceMatch {
		return
	}
	ok, reasons := p.Evaluate(rec.Variance, percentage, rec.VarianceValue)
	rec.AutoFixable = ok
	rec.RequiresInvestigation = !ok
	rec.PolicyReasons = reasons
}
