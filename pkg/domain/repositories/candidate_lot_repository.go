package repositories

import (
	"context"
	"time"

	"github.com/vsinha/lotalloc/pkg/domain/entities"
)

// CandidateQuery selects the lots that could serve one order line.
// When NotExpiredBefore is set, lots that expired before that date are
// dropped before Limit is applied.
type CandidateQuery struct {
	OrderLineID      entities.OrderLineID `json:"order_line_id"`
	ProductKey       entities.ProductKey  `json:"product_key"`
	Strategy         string               `json:"strategy"`
	Limit            int                  `json:"limit,omitempty"`
	NotExpiredBefore time.Time            `json:"not_expired_before,omitempty"`
}

// CandidateLotRepository provides access to lot stock for allocation
type CandidateLotRepository interface {
	FetchCandidateLots(ctx context.Context, query CandidateQuery) ([]entities.CandidateLot, error)
}
