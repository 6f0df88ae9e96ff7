package memory

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/vsinha/lotalloc/pkg/domain/entities"
	"github.com/vsinha/lotalloc/pkg/domain/repositories"
	"github.com/vsinha/lotalloc/pkg/domain/services"
)

// CommitAllocation records one hard reservation per allocation.
// Every allocation is validated before anything is written.
func (s *Store) CommitAllocation(ctx context.Context, req repositories.CommitRequest) (*repositories.CommitResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, repositories.NewPersistenceError("commit", "", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	line, ok := s.lines[req.OrderLineID]
	if !ok {
		return nil, repositories.NewPersistenceError("commit",
			fmt.Sprintf("order line %s does not exist", req.OrderLineID), repositories.ErrNotFound)
	}
	if len(req.Allocations) == 0 {
		return nil, repositories.NewPersistenceError("commit", "no allocations given", nil)
	}

	total := decimal.Zero
	requested := make(map[entities.LotID]decimal.Decimal, len(req.Allocations))
	for _, alloc := range req.Allocations {
		if !alloc.Quantity.IsPositive() {
			return nil, repositories.NewPersistenceError("commit",
				fmt.Sprintf("quantity for lot %s must be positive", alloc.LotID), nil)
		}
		rec, ok := s.lots[alloc.LotID]
		if !ok {
			return nil, repositories.NewPersistenceError("commit",
				fmt.Sprintf("lot %s does not exist", alloc.LotID), repositories.ErrNotFound)
		}
		if rec.lot.ProductKey != line.ProductKey {
			return nil, repositories.NewPersistenceError("commit",
				fmt.Sprintf("lot %s holds %s, not %s", alloc.LotID, rec.lot.ProductKey, line.ProductKey), nil)
		}
		requested[alloc.LotID] = requested[alloc.LotID].Add(alloc.Quantity)
		if requested[alloc.LotID].GreaterThan(rec.free) {
			return nil, repositories.NewPersistenceError("commit",
				fmt.Sprintf("lot %s has only %s free", alloc.LotID, rec.free), nil)
		}
		total = total.Add(alloc.Quantity)
	}

	committed := services.AllocatedQuantity(*line)
	if services.IsOverAllocated(services.RequiredQuantity(*line), committed, total) {
		return nil, repositories.NewPersistenceError("commit",
			fmt.Sprintf("order line %s would be over-allocated", req.OrderLineID), nil)
	}

	now := s.clock()
	result := &repositories.CommitResult{
		OrderLineID:   req.OrderLineID,
		TotalQuantity: total,
	}
	for _, alloc := range req.Allocations {
		res := &entities.Reservation{
			ID:          entities.ReservationID(s.newID()),
			OrderLineID: req.OrderLineID,
			LotID:       alloc.LotID,
			Quantity:    alloc.Quantity,
			Kind:        entities.HardReservation,
			Status:      entities.ReservationActive,
			CreatedAt:   now,
		}
		s.reservations[res.ID] = res
		s.byLine[req.OrderLineID] = append(s.byLine[req.OrderLineID], res.ID)
		s.lots[alloc.LotID].free = s.lots[alloc.LotID].free.Sub(alloc.Quantity)
		result.Reservations = append(result.Reservations, *res)
	}

	line.AllocatedQuantity = committed.Add(total)
	result.AllocatedQuantity = committed.Add(total)
	return result, nil
}

// CancelReservation reverses a whole active hard reservation.
// The record is kept with a cancelled status and a reversal is added to the ledger.
func (s *Store) CancelReservation(ctx context.Context, req repositories.CancelRequest) (*repositories.CancelResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, repositories.NewPersistenceError("cancel", "", err)
	}
	if !req.Reason.Valid() {
		return nil, repositories.NewPersistenceError("cancel", fmt.Sprintf("invalid cancel reason %q", req.Reason), nil)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	res, ok := s.reservations[req.ReservationID]
	if !ok {
		return nil, repositories.NewPersistenceError("cancel",
			fmt.Sprintf("reservation %s does not exist", req.ReservationID), repositories.ErrNotFound)
	}
	if !res.IsActive() || res.Kind != entities.HardReservation {
		return nil, repositories.NewPersistenceError("cancel",
			fmt.Sprintf("reservation %s is not an active hard reservation", req.ReservationID), nil)
	}

	line := s.lines[res.OrderLineID]
	if line == nil {
		return nil, repositories.NewPersistenceError("cancel",
			fmt.Sprintf("order line %s does not exist", res.OrderLineID), repositories.ErrNotFound)
	}

	reversal := entities.Reversal{
		ID:            s.newID(),
		ReservationID: res.ID,
		OrderLineID:   res.OrderLineID,
		LotID:         res.LotID,
		Quantity:      res.Quantity,
		Reason:        req.Reason,
		Note:          req.Note,
		CreatedAt:     s.clock(),
	}

	res.Status = entities.ReservationCancelled
	if rec, ok := s.lots[res.LotID]; ok {
		rec.free = rec.free.Add(res.Quantity)
	}
	allocated := services.AllocatedQuantity(*line).Sub(res.Quantity)
	if allocated.IsNegative() {
		allocated = decimal.Zero
	}
	line.AllocatedQuantity = allocated
	s.reversals = append(s.reversals, reversal)

	return &repositories.CancelResult{
		ReservationID:     res.ID,
		OrderLineID:       res.OrderLineID,
		LotID:             res.LotID,
		Quantity:          res.Quantity,
		AllocatedQuantity: allocated,
		Reversal:          reversal,
	}, nil
}

// HoldSoft records a soft reservation that takes stock from a lot without committing the line
func (s *Store) HoldSoft(
	ctx context.Context,
	lineID entities.OrderLineID,
	lotID entities.LotID,
	quantity decimal.Decimal,
) (*entities.Reservation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.lines[lineID]; !ok {
		return nil, fmt.Errorf("order line %s: %w", lineID, repositories.ErrNotFound)
	}
	rec, ok := s.lots[lotID]
	if !ok {
		return nil, fmt.Errorf("lot %s: %w", lotID, repositories.ErrNotFound)
	}
	if !quantity.IsPositive() || quantity.GreaterThan(rec.free) {
		return nil, fmt.Errorf("soft hold of %s on lot %s with %s free", quantity, lotID, rec.free)
	}

	res := &entities.Reservation{
		ID:          entities.ReservationID(s.newID()),
		OrderLineID: lineID,
		LotID:       lotID,
		Quantity:    quantity,
		Kind:        entities.SoftReservation,
		Status:      entities.ReservationActive,
		CreatedAt:   s.clock(),
	}
	s.reservations[res.ID] = res
	s.byLine[lineID] = append(s.byLine[lineID], res.ID)
	rec.free = rec.free.Sub(quantity)
	return res, nil
}
