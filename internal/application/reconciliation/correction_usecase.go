package reconciliation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/jhoicas/inventario-ledger/internal/application/dto"
	"github.com/jhoicas/inventario-ledger/internal/domain"
	"github.com/jhoicas/inventario-ledger/internal/domain/entity"
	"github.com/jhoicas/inventario-ledger/internal/domain/ledger"
	"github.com/jhoicas/inventario-ledger/internal/domain/repository"
)

// Nombres de operación para las llaves de idempotencia.
const (
	OperationApplyCorrection = "corrections.apply"
	OperationAutoFix         = "corrections.auto_fix"
	OperationPhysicalCount   = "physical_counts.import"
)

const correctionCounterparty = "ajuste de inventario"

// CorrectionRequest una fila del lote. Para filas AutoFix el objetivo es siempre el saldo del
// kardex detectado por el motor; TargetQuantity se ignora.
type CorrectionRequest struct {
	RowRef         string
	ItemVariantID  string
	LocationID     string
	TargetQuantity decimal.Decimal
	Reason         string
	AutoFix        bool
}

// Key devuelve la llave del saldo a corregir.
func (r CorrectionRequest) Key() entity.StockKey {
	return entity.StockKey{ItemVariantID: r.ItemVariantID, LocationID: r.LocationID}
}

// CorrectionBatch lote de correcciones que se aplica completo o no se aplica.
type CorrectionBatch struct {
	BusinessID       string
	ActorID          string
	IdempotencyToken string
	Source           string
	AllowNegative    bool
	Requests         []CorrectionRequest
}

// CorrectionConfig tiempos del aplicador.
type CorrectionConfig struct {
	BulkTimeout   time.Duration
	SingleTimeout time.Duration
	BatchLockTTL  time.Duration
}

// CorrectionUseCase aplica, previsualiza y auto-corrige saldos. Es el único escritor de stock_balances.
type CorrectionUseCase struct {
	txRunner  TxRunner
	balances  repository.BalanceReader
	catalog   repository.CatalogRepository
	variances *VarianceUseCase
	guard     *IdempotencyGuard
	locker    BatchLocker
	cfg       CorrectionConfig
	log       zerolog.Logger
	now       func() time.Time
}

// NewCorrectionUseCase construye el caso de uso. locker nil equivale a NoopLocker.
func NewCorrectionUseCase(
	txRunner TxRunner,
	balances repository.BalanceReader,
	catalog repository.CatalogRepository,
	variances *VarianceUseCase,
	guard *IdempotencyGuard,
	locker BatchLocker,
	cfg CorrectionConfig,
	log zerolog.Logger,
) *CorrectionUseCase {
	if locker == nil {
		locker = NoopLocker{}
	}
	return &CorrectionUseCase{
		txRunner:  txRunner,
		balances:  balances,
		catalog:   catalog,
		variances: variances,
		guard:     guard,
		locker:    locker,
		cfg:       cfg,
		log:       log,
		now:       time.Now,
	}
}

// plannedRow fila ya validada, lista para aplicar o previsualizar.
type plannedRow struct {
	idx      int
	req      CorrectionRequest
	key      entity.StockKey
	target   decimal.Decimal
	unitCost decimal.Decimal
	// expected: saldo del sistema sobre el que se detectó la varianza (solo auto-fix).
	expected *decimal.Decimal
	detected *entity.VarianceRecord
}

// idempotentPayload lo que identifica a un lote para la llave de idempotencia (sin el token).
type idempotentPayload struct {
	Source        string
	ActorID       string
	AllowNegative bool
	Requests      []CorrectionRequest
}

// Apply aplica el lote de forma atómica e idempotente respecto de IdempotencyToken.
func (uc *CorrectionUseCase) Apply(ctx context.Context, batch CorrectionBatch) (*dto.CorrectionResult, error) {
	return uc.applyIdempotent(ctx, OperationApplyCorrection, batch)
}

// Preview ejecuta la misma validación que Apply y devuelve el mismo resultado sin escribir nada.
// No usa el guardián de idempotencia.
func (uc *CorrectionUseCase) Preview(ctx context.Context, batch CorrectionBatch) (*dto.CorrectionResult, error) {
	plan, err := uc.validate(ctx, batch)
	if err != nil {
		return nil, uc.rejected(batch, err)
	}
	rows := make([]dto.CorrectionRowResult, len(batch.Requests))
	for _, p := range plan {
		b, err := uc.balances.Get(ctx, batch.BusinessID, p.key)
		if err != nil {
			return nil, fmt.Errorf("saldo %s: %w", p.key, err)
		}
		current := quantityOf(b)
		if err := checkExpected(p, current); err != nil {
			return nil, err
		}
		rows[p.idx] = uc.rowResult(batch.BusinessID, p, current)
	}
	res := summarize(rows)
	res.Preview = true
	return res, nil
}

// AutoFix repara la caché de las llaves indicadas llevándolas al saldo del kardex. Cualquier
// llave cuya varianza no sea auto-corregible rechaza el lote completo con *domain.PolicyViolation.
func (uc *CorrectionUseCase) AutoFix(ctx context.Context, businessID, actorID, token string, keys []entity.StockKey) (*dto.CorrectionResult, error) {
	batch := CorrectionBatch{
		BusinessID:       businessID,
		ActorID:          actorID,
		IdempotencyToken: token,
		Source:           entity.CorrectionSourceInternal,
		Requests:         make([]CorrectionRequest, 0, len(keys)),
	}
	for i, k := range keys {
		batch.Requests = append(batch.Requests, CorrectionRequest{
			RowRef:        strconv.Itoa(i + 1),
			ItemVariantID: k.ItemVariantID,
			LocationID:    k.LocationID,
			Reason:        "auto-corrección de caché contra kardex",
			AutoFix:       true,
		})
	}
	return uc.applyIdempotent(ctx, OperationAutoFix, batch)
}

func (uc *CorrectionUseCase) applyIdempotent(ctx context.Context, operation string, batch CorrectionBatch) (*dto.CorrectionResult, error) {
	if strings.TrimSpace(batch.IdempotencyToken) == "" {
		return nil, domain.NewValidationError("batch", "idempotency_token", "la llave de idempotencia es obligatoria")
	}
	acq, err := uc.guard.Acquire(ctx, batch.BusinessID, operation, batch.IdempotencyToken, idempotentPayload{
		Source:        batch.Source,
		ActorID:       batch.ActorID,
		AllowNegative: batch.AllowNegative,
		Requests:      batch.Requests,
	})
	if err != nil {
		return nil, err
	}
	if !acq.IsNew {
		var cached dto.CorrectionResult
		if err := json.Unmarshal(acq.CachedResult, &cached); err != nil {
			return nil, fmt.Errorf("resultado idempotente corrupto: %w", err)
		}
		cached.Replayed = true
		return &cached, nil
	}

	res, err := uc.apply(ctx, batch)
	if err != nil {
		if ferr := uc.guard.Fail(ctx, acq, err); ferr != nil {
			uc.log.Error().Err(ferr).Str("operation", operation).Msg("no se pudo marcar la llave como fallida")
		}
		return nil, err
	}
	if err := uc.guard.Complete(ctx, acq, res); err != nil {
		// El lote ya quedó confirmado: un reintento posterior retoma la llave y encuentra filas verified.
		uc.log.Error().Err(err).Str("operation", operation).Msg("no se pudo guardar el resultado idempotente")
	}
	return res, nil
}

func (uc *CorrectionUseCase) apply(ctx context.Context, batch CorrectionBatch) (*dto.CorrectionResult, error) {
	plan, err := uc.validate(ctx, batch)
	if err != nil {
		return nil, uc.rejected(batch, err)
	}

	timeout := uc.cfg.SingleTimeout
	if len(plan) > 1 {
		timeout = uc.cfg.BulkTimeout
		release, err := uc.locker.Obtain(ctx, "recon:batch:"+batch.BusinessID, uc.cfg.BatchLockTTL)
		if err != nil {
			if errors.Is(err, ErrLockNotObtained) {
				return nil, &domain.ConcurrencyError{Op: "batch_lock", Err: err}
			}
			return nil, fmt.Errorf("candado de lote: %w", err)
		}
		defer func() {
			if rerr := release(context.WithoutCancel(ctx)); rerr != nil {
				uc.log.Warn().Err(rerr).Str("business_id", batch.BusinessID).Msg("no se pudo liberar el candado de lote")
			}
		}()
	}

	tctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	// Bloqueo en orden (ubicación, variante) para no generar deadlocks entre lotes.
	ordered := make([]plannedRow, len(plan))
	copy(ordered, plan)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].key.Less(ordered[j].key) })

	rows := make([]dto.CorrectionRowResult, len(batch.Requests))
	err = uc.txRunner.Run(tctx, func(balRepo repository.BalanceRepository, movRepo repository.MovementRepository, corrRepo repository.CorrectionRepository) error {
		for _, p := range ordered {
			locked, err := balRepo.GetForUpdate(tctx, batch.BusinessID, p.key)
			if err != nil {
				return fmt.Errorf("bloquear saldo %s: %w", p.key, err)
			}
			current := quantityOf(locked)
			if err := checkExpected(p, current); err != nil {
				return err
			}
			row := uc.rowResult(batch.BusinessID, p, current)
			if row.Status == dto.RowStatusVerified {
				rows[p.idx] = row
				continue
			}

			now := uc.now().UTC()
			corr := &entity.CorrectionRecord{
				ID:                    uuid.NewString(),
				BusinessID:            batch.BusinessID,
				ItemVariantID:         p.key.ItemVariantID,
				LocationID:            p.key.LocationID,
				SystemCountBefore:     current,
				PhysicalOrLedgerCount: p.target,
				Difference:            row.Difference,
				Reason:                p.req.Reason,
				Source:                batch.Source,
				Status:                entity.CorrectionStatusApproved,
				ApprovedBy:            batch.ActorID,
				ApprovedAt:            now,
				CreatedAt:             now,
			}
			if err := corrRepo.Create(tctx, corr); err != nil {
				return fmt.Errorf("crear corrección: %w", err)
			}
			mov := &entity.Movement{
				ID:                uuid.NewString(),
				Timestamp:         now,
				SourceKind:        entity.SourceCorrection,
				ReferenceType:     entity.ReferenceTypeCorrection,
				ReferenceID:       corr.ID,
				QuantityIn:        decimal.Max(row.Difference, decimal.Zero),
				QuantityOut:       decimal.Max(row.Difference.Neg(), decimal.Zero),
				ItemVariantID:     p.key.ItemVariantID,
				LocationID:        p.key.LocationID,
				BusinessID:        batch.BusinessID,
				CounterpartyLabel: correctionCounterparty,
				Note:              p.req.Reason,
				CreatedBy:         batch.ActorID,
			}
			if err := movRepo.Create(tctx, mov); err != nil {
				return fmt.Errorf("crear movimiento: %w", err)
			}
			if err := corrRepo.LinkMovement(tctx, corr.ID, mov.ID); err != nil {
				return fmt.Errorf("enlazar movimiento: %w", err)
			}
			if err := balRepo.Upsert(tctx, &entity.BalanceRecord{
				ItemVariantID:     p.key.ItemVariantID,
				LocationID:        p.key.LocationID,
				BusinessID:        batch.BusinessID,
				QuantityAvailable: p.target,
				UpdatedAt:         now,
			}); err != nil {
				return fmt.Errorf("actualizar saldo: %w", err)
			}
			row.Status = dto.RowStatusApplied
			row.CorrectionID = corr.ID
			row.MovementID = mov.ID
			rows[p.idx] = row
		}
		return nil
	})
	if err != nil {
		var ce *domain.ConcurrencyError
		if !errors.As(err, &ce) && (errors.Is(err, context.DeadlineExceeded) || tctx.Err() != nil) {
			err = &domain.ConcurrencyError{Op: "correction_tx", Err: err}
		}
		uc.log.Warn().Err(err).
			Str("business_id", batch.BusinessID).
			Int("rows", len(plan)).
			Bool("retryable", domain.IsRetryable(err)).
			Msg("lote de corrección revertido")
		return nil, err
	}

	res := summarize(rows)
	uc.log.Info().
		Str("business_id", batch.BusinessID).
		Str("source", batch.Source).
		Int("applied", res.AppliedCount).
		Int("skipped", res.SkippedCount).
		Msg("lote de corrección confirmado")
	return res, nil
}

// validate revisa el lote completo antes de cualquier escritura. Preview y Apply comparten esta
// función: todas las filas inválidas se reportan juntas en un *domain.ValidationError.
func (uc *CorrectionUseCase) validate(ctx context.Context, batch CorrectionBatch) ([]plannedRow, error) {
	verr := &domain.ValidationError{}
	if batch.BusinessID == "" {
		verr.Add("batch", "business_id", "negocio obligatorio")
	}
	if batch.ActorID == "" {
		verr.Add("batch", "actor_id", "actor obligatorio")
	}
	switch batch.Source {
	case entity.CorrectionSourceExternalUpload, entity.CorrectionSourceInternal, entity.CorrectionSourceManual:
	default:
		verr.Add("batch", "source", fmt.Sprintf("origen %q no soportado", batch.Source))
	}
	if len(batch.Requests) == 0 {
		verr.Add("batch", "requests", "el lote no tiene filas")
	}
	if verr.HasErrors() {
		return nil, verr
	}

	allowNegative := batch.AllowNegative || batch.Source == entity.CorrectionSourceInternal
	seen := make(map[entity.StockKey]string, len(batch.Requests))
	itemIDs := make([]string, 0, len(batch.Requests))
	locIDs := make([]string, 0, len(batch.Requests))
	for i, r := range batch.Requests {
		ref := rowRef(r, i)
		if r.ItemVariantID == "" {
			verr.Add(ref, "item_variant_id", "variante obligatoria")
		}
		if r.LocationID == "" {
			verr.Add(ref, "location_id", "ubicación obligatoria")
		}
		if strings.TrimSpace(r.Reason) == "" {
			verr.Add(ref, "reason", "motivo obligatorio")
		}
		if r.AutoFix && batch.Source != entity.CorrectionSourceInternal {
			verr.Add(ref, "auto_fix", "la auto-corrección solo se admite con origen internal_reconciliation")
		}
		if !r.AutoFix && r.TargetQuantity.IsNegative() && !allowNegative {
			verr.Add(ref, "target_quantity", "la cantidad objetivo no puede ser negativa")
		}
		if r.ItemVariantID == "" || r.LocationID == "" {
			continue
		}
		if prev, dup := seen[r.Key()]; dup {
			verr.Add(ref, "item_variant_id", fmt.Sprintf("llave duplicada con la fila %s", prev))
			continue
		}
		seen[r.Key()] = ref
		itemIDs = append(itemIDs, r.ItemVariantID)
		locIDs = append(locIDs, r.LocationID)
	}

	items, err := uc.catalog.GetItemVariantsByIDs(ctx, batch.BusinessID, itemIDs)
	if err != nil {
		return nil, fmt.Errorf("variantes: %w", err)
	}
	locs, err := uc.catalog.GetLocationsByIDs(ctx, batch.BusinessID, locIDs)
	if err != nil {
		return nil, fmt.Errorf("ubicaciones: %w", err)
	}
	for i, r := range batch.Requests {
		ref := rowRef(r, i)
		if _, ok := items[r.ItemVariantID]; r.ItemVariantID != "" && !ok {
			verr.Add(ref, "item_variant_id", "variante desconocida")
		}
		if _, ok := locs[r.LocationID]; r.LocationID != "" && !ok {
			verr.Add(ref, "location_id", "ubicación desconocida")
		}
	}
	if verr.HasErrors() {
		return nil, verr
	}

	plan := make([]plannedRow, 0, len(batch.Requests))
	for i, r := range batch.Requests {
		p := plannedRow{
			idx:      i,
			req:      r,
			key:      r.Key(),
			target:   r.TargetQuantity,
			unitCost: items[r.ItemVariantID].UnitCost,
		}
		p.req.RowRef = rowRef(r, i)
		if r.AutoFix {
			v, err := uc.variances.detect(ctx, batch.BusinessID, p.key, p.unitCost)
			if err != nil {
				return nil, err
			}
			if v.VarianceType != entity.VarianceMatch && !v.AutoFixable {
				return nil, &domain.PolicyViolation{Key: p.key.String(), Variance: v.Variance, Reasons: v.PolicyReasons}
			}
			p.target = v.LedgerBalance
			expected := v.SystemBalance
			p.expected = &expected
			p.detected = &v
		}
		plan = append(plan, p)
	}
	return plan, nil
}

func (uc *CorrectionUseCase) rowResult(businessID string, p plannedRow, current decimal.Decimal) dto.CorrectionRowResult {
	diff := p.target.Sub(current)
	row := dto.CorrectionRowResult{
		Row:               p.req.RowRef,
		ItemVariantID:     p.key.ItemVariantID,
		LocationID:        p.key.LocationID,
		Status:            dto.RowStatusApplied,
		SystemCountBefore: current,
		TargetQuantity:    p.target,
		Difference:        diff,
	}
	if diff.IsZero() {
		row.Status = dto.RowStatusVerified
	}
	v := ledger.PhysicalCount(p.key, businessID, current, p.target, p.unitCost, uc.variances.Policy())
	if p.detected != nil {
		v = *p.detected
	}
	vd := dto.FromVariance(v)
	row.Variance = &vd
	return row
}

func (uc *CorrectionUseCase) rejected(batch CorrectionBatch, err error) error {
	ev := uc.log.Warn().Err(err).Str("business_id", batch.BusinessID).Str("source", batch.Source).Int("rows", len(batch.Requests))
	var verr *domain.ValidationError
	if errors.As(err, &verr) {
		ev = ev.Int("rejected_rows", len(verr.Rows))
	}
	ev.Msg("lote de corrección rechazado")
	return err
}

// checkExpected: una auto-corrección solo procede si el saldo no cambió desde la detección.
func checkExpected(p plannedRow, current decimal.Decimal) error {
	if p.expected == nil || p.expected.Equal(current) {
		return nil
	}
	return &domain.ConcurrencyError{
		Op:  "auto_fix",
		Err: fmt.Errorf("el saldo de %s cambió de %s a %s", p.key, p.expected.String(), current.String()),
	}
}

func summarize(rows []dto.CorrectionRowResult) *dto.CorrectionResult {
	res := &dto.CorrectionResult{Rows: rows}
	for _, r := range rows {
		switch r.Status {
		case dto.RowStatusApplied:
			res.AppliedCount++
		case dto.RowStatusVerified:
			res.SkippedCount++
		}
	}
	return res
}

func rowRef(r CorrectionRequest, i int) string {
	if r.RowRef != "" {
		return r.RowRef
	}
	return strconv.Itoa(i + 1)
}
