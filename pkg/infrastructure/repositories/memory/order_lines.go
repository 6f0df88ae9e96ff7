package memory

import (
	"context"
	"fmt"

	"github.com/vsinha/lotalloc/pkg/domain/entities"
	"github.com/vsinha/lotalloc/pkg/domain/repositories"
)

// GetOrderLine returns a copy of the stored line
func (s *Store) GetOrderLine(ctx context.Context, id entities.OrderLineID) (*entities.OrderLine, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	line, ok := s.lines[id]
	if !ok {
		return nil, fmt.Errorf("order line %s: %w", id, repositories.ErrNotFound)
	}
	copied := *line
	return &copied, nil
}

// ListOrderLines returns the lines of an order in load order; an empty order ID lists every line
func (s *Store) ListOrderLines(ctx context.Context, orderID entities.OrderID) ([]*entities.OrderLine, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*entities.OrderLine
	for _, id := range s.lineOrder {
		line := s.lines[id]
		if orderID != "" && line.OrderID != orderID {
			continue
		}
		copied := *line
		out = append(out, &copied)
	}
	return out, nil
}

// ListReservations returns every reservation record of a line, cancelled ones included
func (s *Store) ListReservations(ctx context.Context, lineID entities.OrderLineID) ([]entities.Reservation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := s.byLine[lineID]
	out := make([]entities.Reservation, 0, len(ids))
	for _, id := range ids {
		out = append(out, *s.reservations[id])
	}
	return out, nil
}
