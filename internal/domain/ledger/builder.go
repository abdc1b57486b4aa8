// Package ledger contiene los algoritmos puros del kardex: orden cronológico,
// saldo acumulado y clasificación de varianzas. No hace I/O.
package ledger

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/inventario-ledger/internal/domain/entity"
)

// Chronological devuelve una copia ordenada ascendentemente por fecha. Los empates se
// resuelven por prioridad de origen, luego por referencia y por ID, para que dos
// construcciones sobre el mismo conjunto den siempre la misma secuencia.
func Chronological(movements []entity.Movement) []entity.Movement {
	out := make([]entity.Movement, len(movements))
	copy(out, movements)
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if !a.Timestamp.Equal(b.Timestamp) {
			return a.Timestamp.Before(b.Timestamp)
		}
		if pa, pb := a.SourceKind.Priority(), b.SourceKind.Priority(); pa != pb {
			return pa < pb
		}
		if a.ReferenceID != b.ReferenceID {
			return a.ReferenceID < b.ReferenceID
		}
		return a.ID < b.ID
	})
	return out
}

// Build acumula los movimientos de una llave y devuelve las entradas del más reciente al
// más antiguo. El acumulado se calcula siempre de lo más antiguo a lo más reciente:
// saldo_i = saldo_{i-1} + entrada_i - salida_i, empezando en cero.
func Build(movements []entity.Movement) []entity.LedgerEntry {
	ordered := Chronological(movements)
	entries := make([]entity.LedgerEntry, len(ordered))
	running := decimal.Zero
	for i, m := range ordered {
		running = running.Add(m.QuantityIn).Sub(m.QuantityOut)
		// Se escribe de atrás hacia adelante: la salida queda más reciente primero.
		entries[len(ordered)-1-i] = entity.LedgerEntry{Movement: m, RunningBalance: running}
	}
	return entries
}

// LatestBalance devuelve el saldo acumulado de la entrada más reciente.
// Un kardex vacío tiene saldo cero.
func LatestBalance(entries []entity.LedgerEntry) decimal.Decimal {
	if len(entries) == 0 {
		return decimal.Zero
	}
	return entries[0].RunningBalance
}

// NetQuantity devuelve sum(entradas) - sum(salidas).
func NetQuantity(movements []entity.Movement) decimal.Decimal {
	total := decimal.Zero
	for _, m := range movements {
		total = total.Add(m.Net())
	}
	return total
}
