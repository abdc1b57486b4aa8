// Package memory implementa todos los puertos del motor en memoria. Se usa en tests y con
// DB_DRIVER=memory para desarrollo local; no persiste nada entre reinicios.
package memory

import (
	"sync"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/inventario-ledger/internal/domain/entity"
)

// SourceEvent fila de una tabla de origen (recepción, venta, traslado, devolución) ya normalizada.
// Status es el estado de la fila de origen; los lectores filtran por él.
type SourceEvent struct {
	Status   string
	Movement entity.Movement
}

// Store estado compartido por todos los adaptadores en memoria.
type Store struct {
	mu          sync.RWMutex
	items       map[string]entity.ItemVariant
	locations   map[string]entity.Location
	balances    map[entity.StockKey]entity.BalanceRecord
	movements   []entity.Movement
	corrections map[string]entity.CorrectionRecord
	events      []SourceEvent

	// txMu serializa las transacciones: equivale al bloqueo de filas de Postgres.
	txMu sync.Mutex

	failMu       sync.Mutex
	failOps      map[string]error
	failSources  map[entity.SourceKind]error
	beforeCommit func()
}

// NewStore crea un almacén vacío.
func NewStore() *Store {
	return &Store{
		items:       make(map[string]entity.ItemVariant),
		locations:   make(map[string]entity.Location),
		balances:    make(map[entity.StockKey]entity.BalanceRecord),
		corrections: make(map[string]entity.CorrectionRecord),
		failOps:     make(map[string]error),
		failSources: make(map[entity.SourceKind]error),
	}
}

// AddItemVariant registra una variante en el catálogo.
func (s *Store) AddItemVariant(v entity.ItemVariant) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[v.ID] = v
}

// AddLocation registra una ubicación en el catálogo.
func (s *Store) AddLocation(l entity.Location) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.locations[l.ID] = l
}

// SetBalance fija el saldo materializado de una llave sin movimiento (carga inicial, tests).
func (s *Store) SetBalance(b entity.BalanceRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.balances[b.Key()] = b
}

// AddEvent agrega una fila de origen. Para el origen correction se usa el aplicador, no este método.
func (s *Store) AddEvent(status string, m entity.Movement) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, SourceEvent{Status: status, Movement: m})
}

// FailOn hace que la operación indicada devuelva err (ej. "movements.create", "corrections.link").
// err nil quita la falla.
func (s *Store) FailOn(op string, err error) {
	s.failMu.Lock()
	defer s.failMu.Unlock()
	if err == nil {
		delete(s.failOps, op)
		return
	}
	s.failOps[op] = err
}

// FailSource hace que el lector del origen indicado devuelva err.
func (s *Store) FailSource(kind entity.SourceKind, err error) {
	s.failMu.Lock()
	defer s.failMu.Unlock()
	if err == nil {
		delete(s.failSources, kind)
		return
	}
	s.failSources[kind] = err
}

// BeforeCommit registra una función que corre al final de cada transacción, antes de confirmar.
// Sirve para observar el almacén mientras la transacción sigue abierta.
func (s *Store) BeforeCommit(fn func()) {
	s.failMu.Lock()
	defer s.failMu.Unlock()
	s.beforeCommit = fn
}

func (s *Store) injected(op string) error {
	s.failMu.Lock()
	defer s.failMu.Unlock()
	return s.failOps[op]
}

func (s *Store) sourceFailure(kind entity.SourceKind) error {
	s.failMu.Lock()
	defer s.failMu.Unlock()
	return s.failSources[kind]
}

// Movements devuelve una copia del log de movimientos de corrección.
func (s *Store) Movements() []entity.Movement {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]entity.Movement, len(s.movements))
	copy(out, s.movements)
	return out
}

// Corrections devuelve una copia de las correcciones registradas.
func (s *Store) Corrections() []entity.CorrectionRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]entity.CorrectionRecord, 0, len(s.corrections))
	for _, c := range s.corrections {
		out = append(out, c)
	}
	return out
}

// Quantity devuelve el saldo materializado de una llave (cero si no existe).
func (s *Store) Quantity(key entity.StockKey) decimal.Decimal {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.balances[key].QuantityAvailable
}

// txState escrituras de una transacción en curso. Nada llega a los mapas compartidos hasta
// commit, así que los lectores fuera de la transacción nunca ven cambios que luego se descartan.
type txState struct {
	balances    map[entity.StockKey]entity.BalanceRecord
	movements   []entity.Movement
	corrections map[string]entity.CorrectionRecord
}

func newTxState() *txState {
	return &txState{
		balances:    make(map[entity.StockKey]entity.BalanceRecord),
		corrections: make(map[string]entity.CorrectionRecord),
	}
}

func (s *Store) commit(tx *txState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, b := range tx.balances {
		s.balances[k] = b
	}
	s.movements = append(s.movements, tx.movements...)
	for id, c := range tx.corrections {
		s.corrections[id] = c
	}
}
