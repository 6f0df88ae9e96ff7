package events

import (
	"github.com/shopspring/decimal"

	"github.com/vsinha/lotalloc/pkg/domain/entities"
	"github.com/vsinha/lotalloc/pkg/domain/repositories"
)

const (
	AllocationDraftedEvent      = "allocation.drafted"
	AllocationClearedEvent      = "allocation.cleared"
	AllocationCommittedEvent    = "allocation.committed"
	AllocationCommitFailedEvent = "allocation.commit_failed"

	ReservationCancelledEvent    = "reservation.cancelled"
	ReservationCancelFailedEvent = "reservation.cancel_failed"
)

// AllEventTypes lists every allocation event type, for subscribers that forward everything
var AllEventTypes = []string{
	AllocationDraftedEvent,
	AllocationClearedEvent,
	AllocationCommittedEvent,
	AllocationCommitFailedEvent,
	ReservationCancelledEvent,
	ReservationCancelFailedEvent,
}

type AllocationDrafted struct {
	OrderLineID entities.OrderLineID     `json:"order_line_id"`
	Source      string                   `json:"source"`
	Allocations []entities.LotAllocation `json:"allocations"`
}

type AllocationCleared struct {
	OrderLineID entities.OrderLineID `json:"order_line_id"`
}

type AllocationCommitted struct {
	Result repositories.CommitResult `json:"result"`
}

type AllocationCommitFailed struct {
	OrderLineID entities.OrderLineID     `json:"order_line_id"`
	Allocations []entities.LotAllocation `json:"allocations"`
	Message     string                   `json:"message"`
}

type ReservationCancelled struct {
	Result repositories.CancelResult `json:"result"`
	Reason entities.CancelReason     `json:"reason"`
}

type ReservationCancelFailed struct {
	ReservationID entities.ReservationID `json:"reservation_id"`
	OrderLineID   entities.OrderLineID   `json:"order_line_id"`
	Reason        entities.CancelReason  `json:"reason"`
	Message       string                 `json:"message"`
}

// Source values for AllocationDrafted
const (
	SourceManual = "manual"
	SourceFEFO   = "fefo"
)

func NewAllocationDraftedEvent(lineID entities.OrderLineID, source string, draft entities.LotQuantities) Event {
	return NewEvent(AllocationDraftedEvent, string(lineID), AllocationDrafted{
		OrderLineID: lineID,
		Source:      source,
		Allocations: draft.Allocations(),
	})
}

func NewAllocationClearedEvent(lineID entities.OrderLineID) Event {
	return NewEvent(AllocationClearedEvent, string(lineID), AllocationCleared{OrderLineID: lineID})
}

func NewAllocationCommittedEvent(result repositories.CommitResult) Event {
	return NewEvent(AllocationCommittedEvent, string(result.OrderLineID), AllocationCommitted{Result: result})
}

func NewAllocationCommitFailedEvent(lineID entities.OrderLineID, allocations []entities.LotAllocation, message string) Event {
	return NewEvent(AllocationCommitFailedEvent, string(lineID), AllocationCommitFailed{
		OrderLineID: lineID,
		Allocations: allocations,
		Message:     message,
	})
}

func NewReservationCancelledEvent(result repositories.CancelResult, reason entities.CancelReason) Event {
	return NewEvent(ReservationCancelledEvent, string(result.OrderLineID), ReservationCancelled{
		Result: result,
		Reason: reason,
	})
}

func NewReservationCancelFailedEvent(
	lineID entities.OrderLineID,
	reservationID entities.ReservationID,
	reason entities.CancelReason,
	message string,
) Event {
	return NewEvent(ReservationCancelFailedEvent, string(lineID), ReservationCancelFailed{
		ReservationID: reservationID,
		OrderLineID:   lineID,
		Reason:        reason,
		Message:       message,
	})
}

// CommittedQuantity extracts the committed total from an allocation.committed event
func CommittedQuantity(e Event) (decimal.Decimal, bool) {
	data, ok := e.Data().(AllocationCommitted)
	if !ok {
		return decimal.Zero, false
	}
	return data.Result.TotalQuantity, true
}
