package reconciliation

import (
	"context"
	"io"
	"time"

	"github.com/jhoicas/inventario-ledger/internal/application/dto"
	"github.com/jhoicas/inventario-ledger/internal/domain/repository"
)

// TxRunner ejecuta una función dentro de una transacción de BD, pasando repositorios atados a esa tx.
// Si fn devuelve error, o el commit falla, nada de lo escrito persiste.
type TxRunner interface {
	Run(ctx context.Context, fn func(
		balanceRepo repository.BalanceRepository,
		movRepo repository.MovementRepository,
		correctionRepo repository.CorrectionRepository,
	) error) error
}

// BatchLocker serializa lotes masivos del mismo negocio entre instancias.
// Obtain devuelve ErrLockNotObtained si otro lote tiene el candado.
type BatchLocker interface {
	Obtain(ctx context.Context, key string, ttl time.Duration) (release func(context.Context) error, err error)
}

// SheetReader lee las filas de una hoja de cálculo. sheet vacío = primera hoja con datos.
type SheetReader interface {
	ReadRows(r io.Reader, sheet string) ([][]string, error)
}

// ReportRenderer genera el PDF del reporte de varianzas de una ubicación.
type ReportRenderer interface {
	RenderVarianceReport(ctx context.Context, report dto.VarianceReportDTO) ([]byte, error)
}

// NoopLocker no serializa nada (una sola instancia o sin Redis).
type NoopLocker struct{}

func (NoopLocker) Obtain(_ context.Context, _ string, _ time.Duration) (func(context.Context) error, error) {
	return func(context.Context) error { return nil }, nil
}
