package memory

import (
	"context"

	"github.com/vsinha/lotalloc/pkg/domain/entities"
	"github.com/vsinha/lotalloc/pkg/domain/repositories"
	"github.com/vsinha/lotalloc/pkg/domain/services"
)

// FetchCandidateLots returns lots of the query's product that still have free stock.
// With the FEFO strategy the lots come back in expiry order. Expired lots are
// dropped before the limit applies.
func (s *Store) FetchCandidateLots(ctx context.Context, query repositories.CandidateQuery) ([]entities.CandidateLot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	product := query.ProductKey
	if product == "" {
		line, ok := s.lines[query.OrderLineID]
		if !ok {
			return nil, repositories.NewPersistenceError("fetch candidate lots", "unknown order line "+string(query.OrderLineID), repositories.ErrNotFound)
		}
		product = line.ProductKey
	}

	lots := make([]entities.CandidateLot, 0)
	for _, id := range s.lotOrder {
		rec := s.lots[id]
		if rec.lot.ProductKey != product || !rec.free.IsPositive() {
			continue
		}
		lot := rec.snapshot()
		if !query.NotExpiredBefore.IsZero() && services.IsExpired(lot, query.NotExpiredBefore) {
			continue
		}
		lots = append(lots, lot)
	}

	if query.Strategy == services.StrategyFEFO {
		lots = services.SortByExpiry(lots)
	}
	if query.Limit > 0 && len(lots) > query.Limit {
		lots = lots[:query.Limit]
	}
	return lots, nil
}
