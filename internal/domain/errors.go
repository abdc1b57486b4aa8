package domain

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Errores de dominio (sin dependencias de infraestructura).
var (
	ErrNotFound     = errors.New("recurso no encontrado")
	ErrInvalidInput = errors.New("entrada inválida")
	ErrUnauthorized = errors.New("no autorizado")
	ErrForbidden    = errors.New("acceso denegado")
	ErrConflict     = errors.New("conflicto con el estado actual")

	// Idempotencia: otra ejecución con la misma llave está en curso, o la llave
	// se reutilizó con un payload distinto.
	ErrIdempotencyInProgress = errors.New("operación idempotente en curso")
	ErrIdempotencyMismatch   = errors.New("llave de idempotencia reutilizada con otro payload")

	// Centinelas de la taxonomía de errores del motor de conciliación.
	ErrValidation        = errors.New("validación fallida")
	ErrConcurrency       = errors.New("conflicto de concurrencia, reintentar")
	ErrLedgerUnavailable = errors.New("kardex no disponible")
	ErrPolicyViolation   = errors.New("la varianza no es auto-corregible")
)

// RowError describe por qué una fila de un lote fue rechazada.
type RowError struct {
	Row    string `json:"row"`
	Field  string `json:"field,omitempty"`
	Reason string `json:"reason"`
}

// ValidationError agrupa los rechazos por fila de un lote. Un lote con ValidationError
// se rechaza completo y nunca llega a escribir.
type ValidationError struct {
	Rows []RowError
}

// NewValidationError crea un error de validación de una sola fila.
func NewValidationError(row, field, reason string) *ValidationError {
	return &ValidationError{Rows: []RowError{{Row: row, Field: field, Reason: reason}}}
}

func (e *ValidationError) Error() string {
	if len(e.Rows) == 0 {
		return ErrValidation.Error()
	}
	parts := make([]string, 0, len(e.Rows))
	for _, r := range e.Rows {
		if r.Field != "" {
			parts = append(parts, fmt.Sprintf("fila %s (%s): %s", r.Row, r.Field, r.Reason))
			continue
		}
		parts = append(parts, fmt.Sprintf("fila %s: %s", r.Row, r.Reason))
	}
	return fmt.Sprintf("%s: %s", ErrValidation.Error(), strings.Join(parts, "; "))
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// Add agrega un rechazo de fila.
func (e *ValidationError) Add(row, field, reason string) {
	e.Rows = append(e.Rows, RowError{Row: row, Field: field, Reason: reason})
}

// HasErrors indica si hay al menos una fila rechazada.
func (e *ValidationError) HasErrors() bool { return e != nil && len(e.Rows) > 0 }

// ConcurrencyError: conflicto o timeout de la transacción de corrección. El lote completo
// se revierte y el llamador puede reintentar con la misma llave de idempotencia.
type ConcurrencyError struct {
	Op  string
	Err error
}

func (e *ConcurrencyError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, ErrConcurrency.Error())
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, ErrConcurrency.Error(), e.Err)
}

func (e *ConcurrencyError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrConcurrency}
	}
	return []error{ErrConcurrency, e.Err}
}

// ConsistencyError: una fuente de eventos falló y el kardex no puede construirse.
// Nunca se reemplaza por un kardex parcial ni por saldo cero.
type ConsistencyError struct {
	Source string
	Err    error
}

func (e *ConsistencyError) Error() string {
	return fmt.Sprintf("%s (fuente %s): %v", ErrLedgerUnavailable.Error(), e.Source, e.Err)
}

func (e *ConsistencyError) Unwrap() []error { return []error{ErrLedgerUnavailable, e.Err} }

// PolicyViolation: se pidió auto-corregir una varianza que no pasa la prueba de tres partes.
type PolicyViolation struct {
	Key      string
	Variance decimal.Decimal
	Reasons  []string
}

func (e *PolicyViolation) Error() string {
	return fmt.Sprintf("%s: %s varianza %s (%s)",
		ErrPolicyViolation.Error(), e.Key, e.Variance.String(), strings.Join(e.Reasons, ", "))
}

func (e *PolicyViolation) Unwrap() error { return ErrPolicyViolation }

// IsRetryable indica si el llamador puede reintentar la operación tal cual.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrConcurrency) || errors.Is(err, ErrIdempotencyInProgress)
}
