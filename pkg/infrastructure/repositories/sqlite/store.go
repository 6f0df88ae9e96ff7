package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/uptrace/bun"

	"github.com/vsinha/lotalloc/pkg/domain/entities"
	"github.com/vsinha/lotalloc/pkg/domain/repositories"
	"github.com/vsinha/lotalloc/pkg/domain/services"
)

// Store is the SQLite allocation ledger.
// It implements every repository port and the allocation gateway.
type Store struct {
	db    *DB
	clock func() time.Time
	newID func() string
}

// NewStore creates a ledger over an open, migrated database
func NewStore(db *DB) *Store {
	return &Store{db: db, clock: time.Now, newID: uuid.NewString}
}

// Verify interface compliance
var (
	_ repositories.CandidateLotRepository = (*Store)(nil)
	_ repositories.AllocationGateway      = (*Store)(nil)
	_ repositories.ReservationRepository  = (*Store)(nil)
	_ repositories.OrderLineRepository    = (*Store)(nil)
)

// WithClock sets the time source used for record timestamps
func (s *Store) WithClock(clock func() time.Time) *Store {
	s.clock = clock
	return s
}

// LoadOrderLines upserts order lines
func (s *Store) LoadOrderLines(ctx context.Context, lines []*entities.OrderLine) error {
	if len(lines) == 0 {
		return nil
	}
	rows := make([]orderLineRow, 0, len(lines))
	for _, line := range lines {
		if line == nil || line.ID == "" {
			return fmt.Errorf("order line id cannot be empty")
		}
		if line.ProductKey == "" {
			return fmt.Errorf("product key cannot be empty for order line %s", line.ID)
		}
		rows = append(rows, newOrderLineRow(line))
	}

	return s.db.WithWriteTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		_, err := tx.NewInsert().
			Model(&rows).
			On("CONFLICT (id) DO UPDATE").
			Set("order_id = EXCLUDED.order_id").
			Set("product_key = EXCLUDED.product_key").
			Set("order_quantity = EXCLUDED.order_quantity").
			Set("converted_quantity = EXCLUDED.converted_quantity").
			Set("unit = EXCLUDED.unit").
			Set("internal_unit = EXCLUDED.internal_unit").
			Set("qty_per_internal_unit = EXCLUDED.qty_per_internal_unit").
			Set("locked_by = EXCLUDED.locked_by").
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("upsert order lines: %w", err)
		}
		return nil
	})
}

// LoadLots upserts lots. Free quantities of existing lots are overwritten.
func (s *Store) LoadLots(ctx context.Context, lots []entities.CandidateLot) error {
	if len(lots) == 0 {
		return nil
	}
	rows := make([]lotRow, 0, len(lots))
	for _, lot := range lots {
		if lot.LotID == "" {
			return fmt.Errorf("lot id cannot be empty")
		}
		if lot.ProductKey == "" {
			return fmt.Errorf("product key cannot be empty for lot %s", lot.LotID)
		}
		rows = append(rows, newLotRow(lot))
	}

	return s.db.WithWriteTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		_, err := tx.NewInsert().
			Model(&rows).
			On("CONFLICT (id) DO UPDATE").
			Set("product_key = EXCLUDED.product_key").
			Set("warehouse_id = EXCLUDED.warehouse_id").
			Set("expiry_date = EXCLUDED.expiry_date").
			Set("free_quantity = EXCLUDED.free_quantity").
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("upsert lots: %w", err)
		}
		return nil
	})
}

// FetchCandidateLots returns lots of the query's product that still have free stock.
// With the FEFO strategy the lots come back in expiry order, undated lots last.
func (s *Store) FetchCandidateLots(ctx context.Context, query repositories.CandidateQuery) ([]entities.CandidateLot, error) {
	var rows []lotRow
	err := s.db.WithReadTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		product := string(query.ProductKey)
		if product == "" {
			var line orderLineRow
			if err := tx.NewSelect().Model(&line).Where("id = ?", string(query.OrderLineID)).Scan(ctx); err != nil {
				return notFound("order line", string(query.OrderLineID), err)
			}
			product = line.ProductKey
		}

		q := tx.NewSelect().Model(&rows).Where("product_key = ?", product)
		if query.Strategy == services.StrategyFEFO {
			q = q.OrderExpr("expiry_date IS NULL").OrderExpr("expiry_date ASC").OrderExpr("id ASC")
		} else {
			q = q.OrderExpr("id ASC")
		}
		return q.Scan(ctx)
	})
	if err != nil {
		return nil, repositories.NewPersistenceError("fetch candidate lots", "", err)
	}

	lots := make([]entities.CandidateLot, 0, len(rows))
	for _, row := range rows {
		if !row.FreeQuantity.IsPositive() {
			continue
		}
		lot, err := row.entity()
		if err != nil {
			return nil, repositories.NewPersistenceError("fetch candidate lots",
				fmt.Sprintf("lot %s has an unreadable expiry date", row.ID), err)
		}
		if !query.NotExpiredBefore.IsZero() && services.IsExpired(lot, query.NotExpiredBefore) {
			continue
		}
		lots = append(lots, lot)
		if query.Limit > 0 && len(lots) == query.Limit {
			break
		}
	}
	return lots, nil
}

// GetOrderLine returns the stored line
func (s *Store) GetOrderLine(ctx context.Context, id entities.OrderLineID) (*entities.OrderLine, error) {
	var row orderLineRow
	err := s.db.WithReadTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		return tx.NewSelect().Model(&row).Where("id = ?", string(id)).Scan(ctx)
	})
	if err != nil {
		return nil, notFound("order line", string(id), err)
	}
	return row.entity(), nil
}

// ListOrderLines returns the lines of an order by ID; an empty order ID lists every line
func (s *Store) ListOrderLines(ctx context.Context, orderID entities.OrderID) ([]*entities.OrderLine, error) {
	var rows []orderLineRow
	err := s.db.WithReadTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		q := tx.NewSelect().Model(&rows).OrderExpr("id ASC")
		if orderID != "" {
			q = q.Where("order_id = ?", string(orderID))
		}
		return q.Scan(ctx)
	})
	if err != nil {
		return nil, fmt.Errorf("list order lines: %w", err)
	}

	out := make([]*entities.OrderLine, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.entity())
	}
	return out, nil
}

// ListReservations returns every reservation record of a line, cancelled ones included
func (s *Store) ListReservations(ctx context.Context, lineID entities.OrderLineID) ([]entities.Reservation, error) {
	var rows []reservationRow
	err := s.db.WithReadTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		return tx.NewSelect().
			Model(&rows).
			Where("order_line_id = ?", string(lineID)).
			OrderExpr("created_at ASC").
			OrderExpr("id ASC").
			Scan(ctx)
	})
	if err != nil {
		return nil, fmt.Errorf("list reservations: %w", err)
	}

	out := make([]entities.Reservation, 0, len(rows))
	for _, row := range rows {
		res, err := row.entity()
		if err != nil {
			return nil, fmt.Errorf("reservation %s: %w", row.ID, err)
		}
		out = append(out, res)
	}
	return out, nil
}

// Reversals returns the reversal ledger of a line, oldest first
func (s *Store) Reversals(ctx context.Context, lineID entities.OrderLineID) ([]entities.Reversal, error) {
	var rows []reversalRow
	err := s.db.WithReadTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		return tx.NewSelect().
			Model(&rows).
			Where("order_line_id = ?", string(lineID)).
			OrderExpr("created_at ASC").
			Scan(ctx)
	})
	if err != nil {
		return nil, fmt.Errorf("list reversals: %w", err)
	}

	out := make([]entities.Reversal, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.entity())
	}
	return out, nil
}

// LotFree returns the current free quantity of a lot
func (s *Store) LotFree(ctx context.Context, lotID entities.LotID) (decimal.Decimal, error) {
	var row lotRow
	err := s.db.WithReadTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		return tx.NewSelect().Model(&row).Where("id = ?", string(lotID)).Scan(ctx)
	})
	if err != nil {
		return decimal.Zero, notFound("lot", string(lotID), err)
	}
	return row.FreeQuantity, nil
}

func notFound(kind, id string, err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s %s: %w", kind, id, repositories.ErrNotFound)
	}
	return fmt.Errorf("%s %s: %w", kind, id, err)
}
