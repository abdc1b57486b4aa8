package memory

import (
	"context"
	"time"

	"github.com/jhoicas/inventario-ledger/internal/domain/entity"
	"github.com/jhoicas/inventario-ledger/internal/domain/repository"
)

// acceptedStatus estados de origen que cuentan como hecho de inventario, por origen.
var acceptedStatus = map[entity.SourceKind][]string{
	entity.SourceReceiving:          {"approved"},
	entity.SourceSelling:            {"posted"},
	entity.SourceTransferOut:        {"sent", "completed"},
	entity.SourceTransferIn:         {"completed"},
	entity.SourceReturnToSupplier:   {"approved"},
	entity.SourceReturnFromCustomer: {"approved"},
}

// Source lector en memoria de un origen.
type Source struct {
	store *Store
	kind  entity.SourceKind
}

// Sources devuelve los siete lectores sobre el almacén.
func (s *Store) Sources() []repository.MovementSource {
	out := make([]repository.MovementSource, 0, len(entity.SourceKinds()))
	for _, k := range entity.SourceKinds() {
		out = append(out, &Source{store: s, kind: k})
	}
	return out
}

func (src *Source) Kind() entity.SourceKind { return src.kind }

func (src *Source) Movements(ctx context.Context, q repository.MovementQuery) ([]entity.Movement, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := src.store.sourceFailure(src.kind); err != nil {
		return nil, err
	}
	if src.kind == entity.SourceCorrection {
		return src.corrections(q), nil
	}

	src.store.mu.RLock()
	defer src.store.mu.RUnlock()
	var out []entity.Movement
	for _, ev := range src.store.events {
		m := ev.Movement
		if m.SourceKind != src.kind || !accepted(src.kind, ev.Status) || !matches(m, q) {
			continue
		}
		out = append(out, m)
	}
	return out, nil
}

// corrections: aprobadas, enlazadas y que no sean reparación de caché.
func (src *Source) corrections(q repository.MovementQuery) []entity.Movement {
	src.store.mu.RLock()
	defer src.store.mu.RUnlock()
	var out []entity.Movement
	for _, c := range src.store.corrections {
		if c.Status != entity.CorrectionStatusApproved || c.LinkedMovementID == "" || c.Source == entity.CorrectionSourceInternal {
			continue
		}
		m := correctionMovement(c)
		if matches(m, q) {
			out = append(out, m)
		}
	}
	return out
}

func correctionMovement(c entity.CorrectionRecord) entity.Movement {
	m := entity.Movement{
		ID:                c.LinkedMovementID,
		Timestamp:         c.ApprovedAt,
		SourceKind:        entity.SourceCorrection,
		ReferenceType:     entity.ReferenceTypeCorrection,
		ReferenceID:       c.ID,
		ItemVariantID:     c.ItemVariantID,
		LocationID:        c.LocationID,
		BusinessID:        c.BusinessID,
		CounterpartyLabel: "ajuste de inventario",
		Note:              c.Reason,
		CreatedBy:         c.ApprovedBy,
	}
	if c.Difference.IsPositive() {
		m.QuantityIn = c.Difference
	} else {
		m.QuantityOut = c.Difference.Neg()
	}
	return m
}

func accepted(kind entity.SourceKind, status string) bool {
	for _, s := range acceptedStatus[kind] {
		if s == status {
			return true
		}
	}
	return false
}

func matches(m entity.Movement, q repository.MovementQuery) bool {
	if m.BusinessID != q.BusinessID || m.ItemVariantID != q.ItemVariantID || m.LocationID != q.LocationID {
		return false
	}
	return inWindow(m.Timestamp, q.From, q.To)
}

func inWindow(t, from, to time.Time) bool {
	if !from.IsZero() && t.Before(from) {
		return false
	}
	if !to.IsZero() && t.After(to) {
		return false
	}
	return true
}
