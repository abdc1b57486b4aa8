package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/inventario-ledger/internal/application/reconciliation"
)

// RouterDeps dependencias para el router.
type RouterDeps struct {
	AppName        string
	Ledger         *reconciliation.LedgerUseCase
	Variances      *reconciliation.VarianceUseCase
	Corrections    *reconciliation.CorrectionUseCase
	PhysicalCounts *reconciliation.PhysicalCountUseCase
	Reports        *reconciliation.ReportUseCase
	JWTSecret      string
}

// Router registra las rutas de la API.
func Router(app *fiber.App, deps RouterDeps) {
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok", "service": deps.AppName})
	})

	// Todo /api requiere Bearer Token; las escrituras además rol admin o bodeguero.
	api := app.Group("/api", AuthMiddleware(deps.JWTSecret))
	writers := RequireRole(RoleAdmin, RoleBodeguero)

	ledgerHandler := NewLedgerHandler(deps.Ledger, deps.Variances, deps.Reports)
	api.Get("/ledger", ledgerHandler.GetLedger)
	api.Get("/variances", ledgerHandler.GetVariance)
	api.Get("/locations/:id/variances", ledgerHandler.ScanLocation)
	api.Get("/locations/:id/variances/report.pdf", ledgerHandler.VarianceReportPDF)

	correctionHandler := NewCorrectionHandler(deps.Corrections, deps.PhysicalCounts)
	corrections := api.Group("/corrections")
	corrections.Post("/preview", correctionHandler.Preview)
	api.Post("/corrections", writers, correctionHandler.Apply)
	corrections.Post("/auto-fix", writers, correctionHandler.AutoFix)

	api.Post("/physical-counts", writers, correctionHandler.ImportPhysicalCount)
}
