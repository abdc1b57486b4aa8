package postgres

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"

	"github.com/jhoicas/inventario-ledger/internal/domain"
)

func TestClassifyTxError(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		retryable bool
	}{
		{"deadlock", &pgconn.PgError{Code: "40P01"}, true},
		{"serialización", fmt.Errorf("commit: %w", &pgconn.PgError{Code: "40001"}), true},
		{"lock timeout", &pgconn.PgError{Code: "55P03"}, true},
		{"statement timeout", &pgconn.PgError{Code: "57014"}, true},
		{"deadline", fmt.Errorf("exec: %w", context.DeadlineExceeded), true},
		{"único", &pgconn.PgError{Code: "23505"}, false},
		{"otro", errors.New("boom"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := classifyTxError("tx", tt.err)
			assert.Equal(t, tt.retryable, errors.Is(got, domain.ErrConcurrency))
			assert.ErrorIs(t, got, tt.err)
		})
	}
}

func TestClassifyTxError_ConservaConcurrencyError(t *testing.T) {
	orig := &domain.ConcurrencyError{Op: "auto_fix", Err: errors.New("saldo cambió")}

	got := classifyTxError("tx", fmt.Errorf("lote: %w", orig))
	var ce *domain.ConcurrencyError
	assert.ErrorAs(t, got, &ce)
	assert.Equal(t, "auto_fix", ce.Op)
}

func TestIsUniqueViolation(t *testing.T) {
	assert.True(t, isUniqueViolation(&pgconn.PgError{Code: "23505"}))
	assert.False(t, isUniqueViolation(errors.New("otro")))
}
