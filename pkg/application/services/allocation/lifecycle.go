package allocation

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/vsinha/lotalloc/pkg/domain/entities"
	"github.com/vsinha/lotalloc/pkg/domain/repositories"
	"github.com/vsinha/lotalloc/pkg/domain/services"
	"github.com/vsinha/lotalloc/pkg/infrastructure/events"
)

// ReservationLifecycle turns drafts into hard reservations and reverses them.
//
// It holds no line state. Callers pass in the line, its draft and its
// reservation records, and apply the outcome themselves only on success, so a
// failed call never changes anything and can be retried as is.
type ReservationLifecycle struct {
	gateway  repositories.AllocationGateway
	notifier Notifier
	events   events.EventStore
	metrics  Metrics
	logger   zerolog.Logger
}

// NewReservationLifecycle creates a lifecycle over the given gateway
func NewReservationLifecycle(deps Deps) *ReservationLifecycle {
	deps = deps.withDefaults()
	return &ReservationLifecycle{
		gateway:  deps.Gateway,
		notifier: deps.Notifier,
		events:   deps.Events,
		metrics:  deps.Metrics,
		logger:   deps.Logger.With().Str("component", "reservation_lifecycle").Logger(),
	}
}

// State derives the reservation state of a line
func (l *ReservationLifecycle) State(records []entities.Reservation) entities.ReservationState {
	return services.DeriveReservationState(records)
}

// Commit sends a line's draft to the gateway.
// The draft must be non-empty and must not push the line over its required quantity.
func (l *ReservationLifecycle) Commit(
	ctx context.Context,
	line entities.OrderLine,
	draft entities.LotQuantities,
) (*repositories.CommitResult, error) {
	if len(draft) == 0 {
		return nil, fmt.Errorf("commit order line %s: %w", line.ID, ErrNothingToCommit)
	}

	required := services.RequiredQuantity(line)
	committed := services.AllocatedQuantity(line)
	if services.IsOverAllocated(required, committed, draft.Total()) {
		return nil, fmt.Errorf("commit order line %s: %s committed + %s drafted > %s required: %w",
			line.ID, committed, draft.Total(), required, ErrOverAllocated)
	}
	if l.gateway == nil {
		return nil, fmt.Errorf("commit order line %s: allocation gateway: %w", line.ID, ErrNotConfigured)
	}

	allocations := draft.Allocations()
	result, err := l.gateway.CommitAllocation(ctx, repositories.CommitRequest{
		OrderLineID: line.ID,
		ProductKey:  line.ProductKey,
		Allocations: allocations,
	})
	if err != nil {
		perr := asPersistenceError("commit", err)
		l.metrics.RecordPersistenceFailure(ctx, "commit")
		l.publish(events.NewAllocationCommitFailedEvent(line.ID, allocations, perr.UserMessage()))
		l.notifier.Notify(ctx, Notification{
			OrderLineID: line.ID,
			Severity:    SeverityError,
			Message:     perr.UserMessage(),
			Err:         perr,
		})
		return nil, fmt.Errorf("commit order line %s: %w", line.ID, perr)
	}

	l.metrics.RecordCommit(ctx, line.ID, result.TotalQuantity)
	l.publish(events.NewAllocationCommittedEvent(*result))
	l.logger.Info().
		Str("order_line", string(line.ID)).
		Str("quantity", result.TotalQuantity.String()).
		Int("reservations", len(result.Reservations)).
		Msg("allocation committed")

	return result, nil
}

// Cancel reverses one active hard reservation from records.
// The whole reservation is released; there is no partial reversal.
func (l *ReservationLifecycle) Cancel(
	ctx context.Context,
	records []entities.Reservation,
	req repositories.CancelRequest,
) (*repositories.CancelResult, error) {
	if !req.Reason.Valid() {
		return nil, fmt.Errorf("cancel reservation %s: %q: %w", req.ReservationID, req.Reason, ErrInvalidCancelReason)
	}

	record, ok := services.FindReservation(records, req.ReservationID)
	if !ok {
		return nil, fmt.Errorf("cancel reservation %s: %w", req.ReservationID, ErrReservationNotFound)
	}
	if !record.IsActive() || record.Kind != entities.HardReservation {
		return nil, fmt.Errorf("cancel reservation %s (%s, %s): %w",
			req.ReservationID, record.Kind, record.Status, ErrReservationNotHard)
	}
	if l.gateway == nil {
		return nil, fmt.Errorf("cancel reservation %s: allocation gateway: %w", req.ReservationID, ErrNotConfigured)
	}

	result, err := l.gateway.CancelReservation(ctx, req)
	if err != nil {
		perr := asPersistenceError("cancel", err)
		l.metrics.RecordPersistenceFailure(ctx, "cancel")
		l.publish(events.NewReservationCancelFailedEvent(record.OrderLineID, req.ReservationID, req.Reason, perr.UserMessage()))
		l.notifier.Notify(ctx, Notification{
			OrderLineID: record.OrderLineID,
			Severity:    SeverityError,
			Message:     perr.UserMessage(),
			Err:         perr,
		})
		return nil, fmt.Errorf("cancel reservation %s: %w", req.ReservationID, perr)
	}

	l.metrics.RecordCancel(ctx, req.Reason, result.Quantity)
	l.publish(events.NewReservationCancelledEvent(*result, req.Reason))
	l.logger.Info().
		Str("order_line", string(result.OrderLineID)).
		Str("reservation", string(req.ReservationID)).
		Str("reason", string(req.Reason)).
		Str("quantity", result.Quantity.String()).
		Msg("reservation cancelled")

	return result, nil
}

func (l *ReservationLifecycle) publish(event events.Event) {
	if l.events == nil {
		return
	}
	if err := l.events.AppendEvent(event.StreamID(), event); err != nil {
		l.logger.Warn().Err(err).Str("event_type", event.Type()).Msg("failed to append event")
	}
}

func asPersistenceError(op string, err error) *repositories.PersistenceError {
	var perr *repositories.PersistenceError
	if errors.As(err, &perr) {
		return perr
	}
	return repositories.NewPersistenceError(op, "", err)
}
