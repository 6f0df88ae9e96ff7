package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/uptrace/bun"

	"github.com/vsinha/lotalloc/pkg/domain/entities"
	"github.com/vsinha/lotalloc/pkg/domain/repositories"
	"github.com/vsinha/lotalloc/pkg/domain/services"
)

// rejection is a business rule failure inside a transaction; it rolls the
// transaction back and is reported to the operator as is.
type rejection struct {
	message string
	err     error
}

func (r *rejection) Error() string {
	return r.message
}

func (r *rejection) Unwrap() error {
	return r.err
}

func reject(err error, format string, args ...any) error {
	return &rejection{message: fmt.Sprintf(format, args...), err: err}
}

func persistenceError(op string, err error) error {
	var rej *rejection
	if errors.As(err, &rej) {
		return repositories.NewPersistenceError(op, rej.message, rej.err)
	}
	return repositories.NewPersistenceError(op, "", err)
}

// CommitAllocation records one hard reservation per allocation in a single transaction
func (s *Store) CommitAllocation(ctx context.Context, req repositories.CommitRequest) (*repositories.CommitResult, error) {
	result := &repositories.CommitResult{OrderLineID: req.OrderLineID}

	err := s.db.WithWriteTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		var line orderLineRow
		if err := tx.NewSelect().Model(&line).Where("id = ?", string(req.OrderLineID)).Scan(ctx); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return reject(repositories.ErrNotFound, "order line %s does not exist", req.OrderLineID)
			}
			return err
		}
		if len(req.Allocations) == 0 {
			return reject(nil, "no allocations given")
		}

		total := decimal.Zero
		lots := make(map[string]*lotRow, len(req.Allocations))
		for _, alloc := range req.Allocations {
			if !alloc.Quantity.IsPositive() {
				return reject(nil, "quantity for lot %s must be positive", alloc.LotID)
			}
			lot, ok := lots[string(alloc.LotID)]
			if !ok {
				lot = &lotRow{}
				if err := tx.NewSelect().Model(lot).Where("id = ?", string(alloc.LotID)).Scan(ctx); err != nil {
					if errors.Is(err, sql.ErrNoRows) {
						return reject(repositories.ErrNotFound, "lot %s does not exist", alloc.LotID)
					}
					return err
				}
				lots[lot.ID] = lot
			}
			if lot.ProductKey != line.ProductKey {
				return reject(nil, "lot %s holds %s, not %s", alloc.LotID, lot.ProductKey, line.ProductKey)
			}
			if alloc.Quantity.GreaterThan(lot.FreeQuantity) {
				return reject(nil, "lot %s has only %s free", alloc.LotID, lot.FreeQuantity)
			}
			lot.FreeQuantity = lot.FreeQuantity.Sub(alloc.Quantity)
			total = total.Add(alloc.Quantity)
		}

		entity := line.entity()
		committed := services.AllocatedQuantity(*entity)
		if services.IsOverAllocated(services.RequiredQuantity(*entity), committed, total) {
			return reject(nil, "order line %s would be over-allocated", req.OrderLineID)
		}

		now := s.clock().UTC()
		rows := make([]reservationRow, 0, len(req.Allocations))
		for _, alloc := range req.Allocations {
			rows = append(rows, reservationRow{
				ID:          s.newID(),
				OrderLineID: string(req.OrderLineID),
				LotID:       string(alloc.LotID),
				Quantity:    alloc.Quantity,
				Kind:        entities.HardReservation.String(),
				Status:      entities.ReservationActive.String(),
				CreatedAt:   now,
			})
		}
		if _, err := tx.NewInsert().Model(&rows).Exec(ctx); err != nil {
			return fmt.Errorf("insert reservations: %w", err)
		}

		for _, lot := range lots {
			if _, err := tx.NewUpdate().Model(lot).Column("free_quantity").WherePK().Exec(ctx); err != nil {
				return fmt.Errorf("update lot %s: %w", lot.ID, err)
			}
		}

		line.AllocatedQuantity = committed.Add(total)
		if _, err := tx.NewUpdate().Model(&line).Column("allocated_quantity").WherePK().Exec(ctx); err != nil {
			return fmt.Errorf("update order line: %w", err)
		}

		result.TotalQuantity = total
		result.AllocatedQuantity = line.AllocatedQuantity
		for _, row := range rows {
			res, err := row.entity()
			if err != nil {
				return err
			}
			result.Reservations = append(result.Reservations, res)
		}
		return nil
	})
	if err != nil {
		return nil, persistenceError("commit", err)
	}
	return result, nil
}

// CancelReservation reverses a whole active hard reservation in a single transaction.
// The reservation row is kept with a cancelled status and a reversal row is inserted.
func (s *Store) CancelReservation(ctx context.Context, req repositories.CancelRequest) (*repositories.CancelResult, error) {
	if !req.Reason.Valid() {
		return nil, repositories.NewPersistenceError("cancel", fmt.Sprintf("invalid cancel reason %q", req.Reason), nil)
	}

	var result *repositories.CancelResult
	err := s.db.WithWriteTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		var res reservationRow
		if err := tx.NewSelect().Model(&res).Where("id = ?", string(req.ReservationID)).Scan(ctx); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return reject(repositories.ErrNotFound, "reservation %s does not exist", req.ReservationID)
			}
			return err
		}
		if res.Status != entities.ReservationActive.String() || res.Kind != entities.HardReservation.String() {
			return reject(nil, "reservation %s is not an active hard reservation", req.ReservationID)
		}

		res.Status = entities.ReservationCancelled.String()
		if _, err := tx.NewUpdate().Model(&res).Column("status").WherePK().Exec(ctx); err != nil {
			return fmt.Errorf("update reservation: %w", err)
		}

		var lot lotRow
		if err := tx.NewSelect().Model(&lot).Where("id = ?", res.LotID).Scan(ctx); err != nil {
			return fmt.Errorf("load lot %s: %w", res.LotID, err)
		}
		lot.FreeQuantity = lot.FreeQuantity.Add(res.Quantity)
		if _, err := tx.NewUpdate().Model(&lot).Column("free_quantity").WherePK().Exec(ctx); err != nil {
			return fmt.Errorf("update lot %s: %w", lot.ID, err)
		}

		var line orderLineRow
		if err := tx.NewSelect().Model(&line).Where("id = ?", res.OrderLineID).Scan(ctx); err != nil {
			return fmt.Errorf("load order line %s: %w", res.OrderLineID, err)
		}
		line.AllocatedQuantity = line.AllocatedQuantity.Sub(res.Quantity)
		if line.AllocatedQuantity.IsNegative() {
			line.AllocatedQuantity = decimal.Zero
		}
		if _, err := tx.NewUpdate().Model(&line).Column("allocated_quantity").WherePK().Exec(ctx); err != nil {
			return fmt.Errorf("update order line: %w", err)
		}

		reversal := reversalRow{
			ID:            s.newID(),
			ReservationID: res.ID,
			OrderLineID:   res.OrderLineID,
			LotID:         res.LotID,
			Quantity:      res.Quantity,
			Reason:        string(req.Reason),
			Note:          req.Note,
			CreatedAt:     s.clock().UTC(),
		}
		if _, err := tx.NewInsert().Model(&reversal).Exec(ctx); err != nil {
			return fmt.Errorf("insert reversal: %w", err)
		}

		result = &repositories.CancelResult{
			ReservationID:     entities.ReservationID(res.ID),
			OrderLineID:       entities.OrderLineID(res.OrderLineID),
			LotID:             entities.LotID(res.LotID),
			Quantity:          res.Quantity,
			AllocatedQuantity: line.AllocatedQuantity,
			Reversal:          reversal.entity(),
		}
		return nil
	})
	if err != nil {
		return nil, persistenceError("cancel", err)
	}
	return result, nil
}

// HoldSoft records a soft reservation that takes stock from a lot without committing the line
func (s *Store) HoldSoft(
	ctx context.Context,
	lineID entities.OrderLineID,
	lotID entities.LotID,
	quantity decimal.Decimal,
) (*entities.Reservation, error) {
	var res entities.Reservation
	err := s.db.WithWriteTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		exists, err := tx.NewSelect().Model((*orderLineRow)(nil)).Where("id = ?", string(lineID)).Exists(ctx)
		if err != nil {
			return err
		}
		if !exists {
			return fmt.Errorf("order line %s: %w", lineID, repositories.ErrNotFound)
		}

		var lot lotRow
		if err := tx.NewSelect().Model(&lot).Where("id = ?", string(lotID)).Scan(ctx); err != nil {
			return notFound("lot", string(lotID), err)
		}
		if !quantity.IsPositive() || quantity.GreaterThan(lot.FreeQuantity) {
			return fmt.Errorf("soft hold of %s on lot %s with %s free", quantity, lotID, lot.FreeQuantity)
		}

		row := reservationRow{
			ID:          s.newID(),
			OrderLineID: string(lineID),
			LotID:       string(lotID),
			Quantity:    quantity,
			Kind:        entities.SoftReservation.String(),
			Status:      entities.ReservationActive.String(),
			CreatedAt:   s.clock().UTC(),
		}
		if _, err := tx.NewInsert().Model(&row).Exec(ctx); err != nil {
			return fmt.Errorf("insert reservation: %w", err)
		}

		lot.FreeQuantity = lot.FreeQuantity.Sub(quantity)
		if _, err := tx.NewUpdate().Model(&lot).Column("free_quantity").WherePK().Exec(ctx); err != nil {
			return fmt.Errorf("update lot %s: %w", lot.ID, err)
		}

		res, err = row.entity()
		return err
	})
	if err != nil {
		return nil, err
	}
	return &res, nil
}
