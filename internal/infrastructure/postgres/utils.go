package postgres

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/jhoicas/inventario-ledger/internal/domain"
)

// Códigos SQLSTATE que indican conflicto de concurrencia: el llamador puede reintentar.
var retryableCodes = map[string]bool{
	"40001": true, // serialization_failure
	"40P01": true, // deadlock_detected
	"55P03": true, // lock_not_available
	"57014": true, // query_canceled (statement/lock timeout)
}

// isUniqueViolation verifica si un error es una violación de constraint único (23505).
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return strings.Contains(err.Error(), "23505")
}

func isRetryable(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && retryableCodes[pgErr.Code]
}

// classifyTxError envuelve en *domain.ConcurrencyError los errores de concurrencia o timeout.
func classifyTxError(op string, err error) error {
	if err == nil {
		return nil
	}
	var ce *domain.ConcurrencyError
	if errors.As(err, &ce) {
		return err
	}
	if isRetryable(err) {
		return &domain.ConcurrencyError{Op: op, Err: err}
	}
	return err
}

// nullableTime convierte el valor cero en NULL (límite abierto en las ventanas de tiempo).
func nullableTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
