package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/contrib/swagger"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/jackc/pgx/v5/pgxpool"
	goredis "github.com/redis/go-redis/v9"

	"github.com/jhoicas/inventario-ledger/internal/application/reconciliation"
	"github.com/jhoicas/inventario-ledger/internal/domain/ledger"
	"github.com/jhoicas/inventario-ledger/internal/domain/repository"
	"github.com/jhoicas/inventario-ledger/internal/infrastructure/memory"
	infrapdf "github.com/jhoicas/inventario-ledger/internal/infrastructure/pdf"
	"github.com/jhoicas/inventario-ledger/internal/infrastructure/postgres"
	infraredis "github.com/jhoicas/inventario-ledger/internal/infrastructure/redis"
	"github.com/jhoicas/inventario-ledger/internal/infrastructure/spreadsheet"
	httpRouter "github.com/jhoicas/inventario-ledger/internal/interfaces/http"
	"github.com/jhoicas/inventario-ledger/pkg/config"
	"github.com/jhoicas/inventario-ledger/pkg/logger"
)

const swaggerFile = "./docs/swagger.json"

// storage adaptadores de persistencia según DB_DRIVER.
type storage struct {
	sources  []repository.MovementSource
	balances repository.BalanceReader
	catalog  repository.CatalogRepository
	txRunner reconciliation.TxRunner
	idem     repository.IdempotencyStore
	locker   reconciliation.BatchLocker
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("cargar configuración: " + err.Error())
	}

	log := logger.New(logger.Config{
		Env:   cfg.App.Env,
		Level: cfg.App.LogLevel,
	})
	log.Info().
		Str("env", cfg.App.Env).
		Str("app", cfg.App.Name).
		Str("db_driver", cfg.DB.Driver).
		Str("idempotency_backend", cfg.Idempotency.Backend).
		Msg("iniciando aplicación")

	if cfg.JWT.Secret == "" {
		log.Fatal().Msg("JWT_SECRET es obligatorio")
	}

	ctx := context.Background()

	var (
		pool  *pgxpool.Pool
		rdb   *goredis.Client
		store storage
	)
	switch cfg.DB.Driver {
	case "postgres":
		pool, err = postgres.NewPool(ctx, cfg.DB)
		if err != nil {
			log.Fatal().Err(err).Msg("conexión a PostgreSQL")
		}
		defer pool.Close()
		if err := postgres.EnsureSchema(ctx, pool); err != nil {
			log.Fatal().Err(err).Msg("aplicar esquema")
		}
		store = storage{
			sources:  postgres.NewEventReaders(pool),
			balances: postgres.NewBalanceRepository(pool),
			catalog:  postgres.NewCatalogRepository(pool),
			txRunner: postgres.NewTxRunner(pool),
			idem:     postgres.NewIdempotencyRepository(pool),
		}
	default:
		// Solo desarrollo: el estado se pierde al reiniciar.
		mem := memory.NewStore()
		store = storage{
			sources:  mem.Sources(),
			balances: mem.Balances(),
			catalog:  mem.Catalog(),
			txRunner: memory.NewTxRunner(mem),
			idem:     memory.NewIdempotencyStore(),
			locker:   memory.NewLocker(),
		}
		log.Warn().Msg("DB_DRIVER=memory: almacenamiento volátil, no usar en producción")
	}

	if cfg.Redis.Enabled() {
		rdb, err = infraredis.NewClient(ctx, cfg.Redis)
		if err != nil {
			log.Fatal().Err(err).Msg("conexión a Redis")
		}
		defer rdb.Close()
		// Con Redis los lotes masivos se serializan entre instancias.
		store.locker = infraredis.NewLocker(rdb)
	}
	switch cfg.Idempotency.Backend {
	case "redis":
		store.idem = infraredis.NewIdempotencyStore(rdb)
	case "memory":
		store.idem = memory.NewIdempotencyStore()
	}

	policy := ledger.Policy{
		MaxPercentage: cfg.Reconciliation.MaxVariancePercent,
		MaxUnits:      cfg.Reconciliation.MaxVarianceUnits,
		MaxValue:      cfg.Reconciliation.MaxVarianceValue,
	}

	ledgerUC, err := reconciliation.NewLedgerUseCase(log.Component("ledger"), store.sources...)
	if err != nil {
		log.Fatal().Err(err).Msg("lectores de eventos")
	}
	varianceUC := reconciliation.NewVarianceUseCase(ledgerUC, store.balances, store.catalog, policy, log.Component("variances"))
	guard := reconciliation.NewIdempotencyGuard(store.idem, cfg.Idempotency.TTL, cfg.Idempotency.StaleAfter)
	correctionUC := reconciliation.NewCorrectionUseCase(
		store.txRunner, store.balances, store.catalog, varianceUC, guard, store.locker,
		reconciliation.CorrectionConfig{
			BulkTimeout:   cfg.Reconciliation.BulkTimeout,
			SingleTimeout: cfg.Reconciliation.SingleTimeout,
			BatchLockTTL:  cfg.Reconciliation.BatchLockTTL,
		},
		log.Component("corrections"),
	)
	physicalUC := reconciliation.NewPhysicalCountUseCase(spreadsheet.NewExcelReader(), store.catalog, correctionUC, log.Component("physical_counts"))
	reportUC := reconciliation.NewReportUseCase(varianceUC, store.catalog, infrapdf.NewVarianceReportGenerator())

	// WriteTimeout cubre el lote masivo más largo más el margen de respuesta.
	app := fiber.New(fiber.Config{
		AppName:      cfg.App.Name,
		ReadTimeout:  time.Second * 30,
		WriteTimeout: cfg.Reconciliation.BulkTimeout + 10*time.Second,
		IdleTimeout:  time.Second * 60,
		BodyLimit:    20 * 1024 * 1024,
	})
	app.Use(recover.New())
	app.Use(requestid.New())

	// Swagger UI en local: http://localhost:<port>/docs (solo si se generó docs/swagger.json).
	if _, err := os.Stat(swaggerFile); err == nil {
		app.Use(swagger.New(swagger.Config{
			BasePath: "/",
			FilePath: swaggerFile,
			Path:     "docs",
			Title:    "Inventario Ledger API",
		}))
	}

	httpRouter.Router(app, httpRouter.RouterDeps{
		AppName:        cfg.App.Name,
		Ledger:         ledgerUC,
		Variances:      varianceUC,
		Corrections:    correctionUC,
		PhysicalCounts: physicalUC,
		Reports:        reportUC,
		JWTSecret:      cfg.JWT.Secret,
	})

	go func() {
		if err := app.Listen(cfg.HTTP.Addr()); err != nil {
			log.Error().Err(err).Msg("servidor HTTP finalizado")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("señal de apagado recibida, cerrando servidor...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Reconciliation.BulkTimeout+5*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("apagado del servidor")
	}

	log.Info().Msg("aplicación detenida")
}
