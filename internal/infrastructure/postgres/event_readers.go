package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/inventario-ledger/internal/domain/entity"
	"github.com/jhoicas/inventario-ledger/internal/domain/repository"
)

// Cada consulta devuelve (id de línea, id de referencia, fecha de vigencia, cantidad, contraparte)
// con los parámetros $1 negocio, $2 variante, $3 ubicación, $4 desde, $5 hasta (NULL = sin límite).
// La fecha de vigencia y el filtro de estado son propios de cada origen.
const (
	receivingSQL = `
		SELECT l.id, h.id, h.approved_at, l.quantity, h.supplier_name
		FROM purchase_receipt_lines l JOIN purchase_receipts h ON h.id = l.receipt_id
		WHERE h.business_id = $1 AND l.item_variant_id = $2 AND h.location_id = $3
		  AND h.status = 'approved' AND h.approved_at IS NOT NULL
		  AND ($4::timestamptz IS NULL OR h.approved_at >= $4)
		  AND ($5::timestamptz IS NULL OR h.approved_at <= $5)`

	sellingSQL = `
		SELECT l.id, h.id, h.posted_at, l.quantity, h.customer_name
		FROM sale_lines l JOIN sales h ON h.id = l.sale_id
		WHERE h.business_id = $1 AND l.item_variant_id = $2 AND h.location_id = $3
		  AND h.status = 'posted' AND h.posted_at IS NOT NULL
		  AND ($4::timestamptz IS NULL OR h.posted_at >= $4)
		  AND ($5::timestamptz IS NULL OR h.posted_at <= $5)`

	transferOutSQL = `
		SELECT l.id, h.id, h.sent_at, l.quantity, COALESCE(dst.name, h.to_location_id)
		FROM stock_transfer_lines l JOIN stock_transfers h ON h.id = l.transfer_id
		LEFT JOIN locations dst ON dst.id = h.to_location_id
		WHERE h.business_id = $1 AND l.item_variant_id = $2 AND h.from_location_id = $3
		  AND h.status IN ('sent', 'completed') AND h.sent_at IS NOT NULL
		  AND ($4::timestamptz IS NULL OR h.sent_at >= $4)
		  AND ($5::timestamptz IS NULL OR h.sent_at <= $5)`

	transferInSQL = `
		SELECT l.id, h.id, h.received_at, l.quantity, COALESCE(src.name, h.from_location_id)
		FROM stock_transfer_lines l JOIN stock_transfers h ON h.id = l.transfer_id
		LEFT JOIN locations src ON src.id = h.from_location_id
		WHERE h.business_id = $1 AND l.item_variant_id = $2 AND h.to_location_id = $3
		  AND h.status = 'completed' AND h.received_at IS NOT NULL
		  AND ($4::timestamptz IS NULL OR h.received_at >= $4)
		  AND ($5::timestamptz IS NULL OR h.received_at <= $5)`

	returnToSupplierSQL = `
		SELECT l.id, h.id, h.approved_at, l.quantity, h.supplier_name
		FROM supplier_return_lines l JOIN supplier_returns h ON h.id = l.return_id
		WHERE h.business_id = $1 AND l.item_variant_id = $2 AND h.location_id = $3
		  AND h.status = 'approved' AND h.approved_at IS NOT NULL
		  AND ($4::timestamptz IS NULL OR h.approved_at >= $4)
		  AND ($5::timestamptz IS NULL OR h.approved_at <= $5)`

	returnFromCustomerSQL = `
		SELECT l.id, h.id, h.approved_at, l.quantity, h.customer_name
		FROM customer_return_lines l JOIN customer_returns h ON h.id = l.return_id
		WHERE h.business_id = $1 AND l.item_variant_id = $2 AND h.location_id = $3
		  AND h.status = 'approved' AND h.approved_at IS NOT NULL
		  AND ($4::timestamptz IS NULL OR h.approved_at >= $4)
		  AND ($5::timestamptz IS NULL OR h.approved_at <= $5)`

	// Las reparaciones de caché (internal_reconciliation) no son hechos de inventario.
	correctionSQL = `
		SELECT linked_movement_id, id, approved_at, difference, reason, approved_by
		FROM stock_corrections
		WHERE business_id = $1 AND item_variant_id = $2 AND location_id = $3
		  AND status = 'approved' AND linked_movement_id IS NOT NULL
		  AND source <> 'internal_reconciliation'
		  AND ($4::timestamptz IS NULL OR approved_at >= $4)
		  AND ($5::timestamptz IS NULL OR approved_at <= $5)`
)

// lineReader lector de un origen basado en líneas de documento.
type lineReader struct {
	q       Querier
	kind    entity.SourceKind
	query   string
	inbound bool
}

// NewEventReaders devuelve los siete lectores de eventos sobre el Querier dado.
func NewEventReaders(q Querier) []repository.MovementSource {
	return []repository.MovementSource{
		&lineReader{q: q, kind: entity.SourceReceiving, query: receivingSQL, inbound: true},
		&lineReader{q: q, kind: entity.SourceSelling, query: sellingSQL},
		&lineReader{q: q, kind: entity.SourceTransferOut, query: transferOutSQL},
		&lineReader{q: q, kind: entity.SourceTransferIn, query: transferInSQL, inbound: true},
		&correctionReader{q: q},
		&lineReader{q: q, kind: entity.SourceReturnToSupplier, query: returnToSupplierSQL},
		&lineReader{q: q, kind: entity.SourceReturnFromCustomer, query: returnFromCustomerSQL, inbound: true},
	}
}

func (r *lineReader) Kind() entity.SourceKind { return r.kind }

func (r *lineReader) Movements(ctx context.Context, q repository.MovementQuery) ([]entity.Movement, error) {
	rows, err := r.q.Query(ctx, r.query, q.BusinessID, q.ItemVariantID, q.LocationID, nullableTime(q.From), nullableTime(q.To))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", r.kind, err)
	}
	defer rows.Close()

	var out []entity.Movement
	for rows.Next() {
		var (
			lineID, refID, counterparty string
			at                          time.Time
			qty                         decimal.Decimal
		)
		if err := rows.Scan(&lineID, &refID, &at, &qty, &counterparty); err != nil {
			return nil, fmt.Errorf("%s scan: %w", r.kind, err)
		}
		m := entity.Movement{
			ID:                lineID,
			Timestamp:         at,
			SourceKind:        r.kind,
			ReferenceType:     string(r.kind),
			ReferenceID:       refID,
			ItemVariantID:     q.ItemVariantID,
			LocationID:        q.LocationID,
			BusinessID:        q.BusinessID,
			CounterpartyLabel: counterparty,
		}
		if r.inbound {
			m.QuantityIn = qty
		} else {
			m.QuantityOut = qty
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s rows: %w", r.kind, err)
	}
	return out, nil
}

// correctionReader correcciones aprobadas y enlazadas; la dirección sale del signo de la diferencia.
type correctionReader struct {
	q Querier
}

func (r *correctionReader) Kind() entity.SourceKind { return entity.SourceCorrection }

func (r *correctionReader) Movements(ctx context.Context, q repository.MovementQuery) ([]entity.Movement, error) {
	rows, err := r.q.Query(ctx, correctionSQL, q.BusinessID, q.ItemVariantID, q.LocationID, nullableTime(q.From), nullableTime(q.To))
	if err != nil {
		return nil, fmt.Errorf("correction: %w", err)
	}
	defer rows.Close()

	var out []entity.Movement
	for rows.Next() {
		var (
			movementID, correctionID, reason, approvedBy string
			at                                           time.Time
			diff                                         decimal.Decimal
		)
		if err := rows.Scan(&movementID, &correctionID, &at, &diff, &reason, &approvedBy); err != nil {
			return nil, fmt.Errorf("correction scan: %w", err)
		}
		m := entity.Movement{
			ID:                movementID,
			Timestamp:         at,
			SourceKind:        entity.SourceCorrection,
			ReferenceType:     entity.ReferenceTypeCorrection,
			ReferenceID:       correctionID,
			ItemVariantID:     q.ItemVariantID,
			LocationID:        q.LocationID,
			BusinessID:        q.BusinessID,
			CounterpartyLabel: "ajuste de inventario",
			Note:              reason,
			CreatedBy:         approvedBy,
		}
		if diff.IsPositive() {
			m.QuantityIn = diff
		} else {
			m.QuantityOut = diff.Neg()
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("correction rows: %w", err)
	}
	return out, nil
}
