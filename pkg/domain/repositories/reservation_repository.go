package repositories

import (
	"context"

	"github.com/vsinha/lotalloc/pkg/domain/entities"
)

// ReservationRepository provides access to reservation records, cancelled ones included
type ReservationRepository interface {
	ListReservations(ctx context.Context, lineID entities.OrderLineID) ([]entities.Reservation, error)
}

// OrderLineRepository provides access to the order line read model
type OrderLineRepository interface {
	GetOrderLine(ctx context.Context, id entities.OrderLineID) (*entities.OrderLine, error)
	ListOrderLines(ctx context.Context, orderID entities.OrderID) ([]*entities.OrderLine, error)
}

// LockAdvisor exposes a soft "locked by" signal for order lines.
// It never blocks an operation; callers only display the holder.
type LockAdvisor interface {
	LockedBy(ctx context.Context, lineID entities.OrderLineID) (string, error)
	Acquire(ctx context.Context, lineID entities.OrderLineID, holder string) (bool, error)
	Release(ctx context.Context, lineID entities.OrderLineID, holder string) error
}
