package repositories

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/vsinha/lotalloc/pkg/domain/entities"
)

// CommitRequest turns a line's draft into hard reservations
type CommitRequest struct {
	OrderLineID entities.OrderLineID     `json:"order_line_id"`
	ProductKey  entities.ProductKey      `json:"product_key"`
	Allocations []entities.LotAllocation `json:"allocations"`
}

// CommitResult is the authoritative outcome of a commit
type CommitResult struct {
	OrderLineID entities.OrderLineID `json:"order_line_id"`
	// TotalQuantity is the quantity committed by this request
	TotalQuantity decimal.Decimal `json:"total_quantity"`
	// AllocatedQuantity is the line's committed total after the request
	AllocatedQuantity decimal.Decimal        `json:"allocated_quantity"`
	Reservations      []entities.Reservation `json:"reservations"`
}

// CancelRequest reverses one hard reservation
type CancelRequest struct {
	ReservationID entities.ReservationID `json:"reservation_id"`
	Reason        entities.CancelReason  `json:"reason"`
	Note          string                 `json:"note,omitempty"`
}

// CancelResult describes the reversal that was recorded
type CancelResult struct {
	ReservationID     entities.ReservationID `json:"reservation_id"`
	OrderLineID       entities.OrderLineID   `json:"order_line_id"`
	LotID             entities.LotID         `json:"lot_id"`
	Quantity          decimal.Decimal        `json:"quantity"`
	AllocatedQuantity decimal.Decimal        `json:"allocated_quantity"`
	Reversal          entities.Reversal      `json:"reversal"`
}

// AllocationGateway executes commits and cancellations against the system of record.
// Implementations apply each call entirely or not at all.
type AllocationGateway interface {
	CommitAllocation(ctx context.Context, req CommitRequest) (*CommitResult, error)
	CancelReservation(ctx context.Context, req CancelRequest) (*CancelResult, error)
}
