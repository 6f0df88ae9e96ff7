package dto

import (
	"github.com/shopspring/decimal"

	"github.com/vsinha/lotalloc/pkg/domain/entities"
	"github.com/vsinha/lotalloc/pkg/domain/repositories"
	"github.com/vsinha/lotalloc/pkg/domain/services"
)

// CandidateView is the candidate lot list of one line as the session last fetched it.
// A failed fetch is reported through Err and is not the same as an empty list.
type CandidateView struct {
	OrderLineID entities.OrderLineID    `json:"order_line_id"`
	Lots        []entities.CandidateLot `json:"lots"`
	Err         error                   `json:"-"`
}

// Empty reports whether the fetch succeeded and returned no lots
func (v CandidateView) Empty() bool {
	return v.Err == nil && len(v.Lots) == 0
}

// Failed reports whether the candidate fetch failed
func (v CandidateView) Failed() bool {
	return v.Err != nil
}

// EditResult is returned for every change to a line's draft
type EditResult struct {
	OrderLineID   entities.OrderLineID   `json:"order_line_id"`
	LotID         entities.LotID         `json:"lot_id,omitempty"`
	Clamp         services.ClampResult   `json:"clamp"`
	Draft         entities.LotQuantities `json:"draft"`
	Status        entities.LineStatus    `json:"status"`
	OverAllocated bool                   `json:"over_allocated"`
}

// LineSummary is the per-line read model shown to operators
type LineSummary struct {
	OrderLineID   entities.OrderLineID      `json:"order_line_id"`
	OrderID       entities.OrderID          `json:"order_id"`
	ProductKey    entities.ProductKey       `json:"product_key"`
	Required      decimal.Decimal           `json:"required"`
	Committed     decimal.Decimal           `json:"committed"`
	Draft         decimal.Decimal           `json:"draft"`
	Remaining     decimal.Decimal           `json:"remaining"`
	Status        entities.LineStatus       `json:"status"`
	Reservation   entities.ReservationState `json:"reservation"`
	OverAllocated bool                      `json:"over_allocated"`
	LockedBy      string                    `json:"locked_by,omitempty"`
}

// Shortage records a line that FEFO could not fully cover
type Shortage struct {
	OrderLineID entities.OrderLineID `json:"order_line_id"`
	ProductKey  entities.ProductKey  `json:"product_key"`
	Missing     decimal.Decimal      `json:"missing"`
}

// AllocationReport contains the complete output of an allocation run
type AllocationReport struct {
	Lines     []LineSummary                                     `json:"lines"`
	Drafts    map[entities.OrderLineID][]entities.LotAllocation `json:"drafts"`
	Commits   []repositories.CommitResult                       `json:"commits,omitempty"`
	Failures  map[entities.OrderLineID]string                   `json:"failures,omitempty"`
	Shortages []Shortage                                        `json:"shortages,omitempty"`
}

// NewAllocationReport creates an empty report
func NewAllocationReport() *AllocationReport {
	return &AllocationReport{
		Drafts:   make(map[entities.OrderLineID][]entities.LotAllocation),
		Failures: make(map[entities.OrderLineID]string),
	}
}
