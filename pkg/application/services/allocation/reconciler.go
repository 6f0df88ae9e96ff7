package allocation

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/vsinha/lotalloc/pkg/application/dto"
	"github.com/vsinha/lotalloc/pkg/domain/entities"
	"github.com/vsinha/lotalloc/pkg/domain/repositories"
	"github.com/vsinha/lotalloc/pkg/domain/services"
)

// Speculation is the expected effect of a commit or cancel that is still in flight
type Speculation struct {
	CommittedDelta decimal.Decimal
	ClearDraft     bool
	Records        []entities.Reservation
}

// Settlement is what the read side reported after a commit or cancel resolved.
// Nil fields were not refetched and keep their previous value.
type Settlement struct {
	Line         *entities.OrderLine
	Reservations []entities.Reservation
	Lots         []entities.CandidateLot
	LotsErr      error
}

// Reconciler implements optimistic updates in two phases.
// Apply shows the expected outcome while a call is in flight; Settle drops
// stale snapshots and refetches the authoritative state once it resolves.
type Reconciler struct {
	lots         repositories.CandidateLotRepository
	reservations repositories.ReservationRepository
	lines        repositories.OrderLineRepository
	cache        SnapshotCache
	config       Config
	clock        func() time.Time
	logger       zerolog.Logger
}

// NewReconciler creates a reconciler over the session's read-side collaborators
func NewReconciler(deps Deps, config Config) *Reconciler {
	deps = deps.withDefaults()
	return &Reconciler{
		lots:         deps.Lots,
		reservations: deps.Reservations,
		lines:        deps.Lines,
		cache:        deps.Cache,
		config:       config,
		clock:        deps.Clock,
		logger:       deps.Logger.With().Str("component", "reconciler").Logger(),
	}
}

// Apply returns the summary a line is expected to have once the speculation succeeds
func (r *Reconciler) Apply(summary dto.LineSummary, sp Speculation) dto.LineSummary {
	out := summary
	out.Committed = summary.Committed.Add(sp.CommittedDelta)
	if sp.ClearDraft {
		out.Draft = decimal.Zero
		out.Status = entities.LineCommitted
	}
	if sp.Records != nil {
		out.Reservation = services.DeriveReservationState(sp.Records)
	}

	out.OverAllocated = services.IsOverAllocated(out.Required, out.Committed, out.Draft)
	out.Remaining = out.Required.Sub(out.Committed).Sub(out.Draft)
	if out.Remaining.IsNegative() {
		out.Remaining = decimal.Zero
	}
	return out
}

// Settle invalidates the line's candidate snapshot and refetches its line,
// reservations and lots. Fetch failures are logged and leave the field nil.
func (r *Reconciler) Settle(ctx context.Context, line entities.OrderLine) Settlement {
	if r.cache != nil {
		r.cache.Invalidate(line.ID)
	}

	var out Settlement
	log := r.logger.With().Str("order_line", string(line.ID)).Logger()

	if r.lines != nil {
		fresh, err := r.lines.GetOrderLine(ctx, line.ID)
		if err != nil {
			log.Warn().Err(err).Msg("failed to refetch order line")
		} else {
			out.Line = fresh
		}
	}

	if r.reservations != nil {
		records, err := r.reservations.ListReservations(ctx, line.ID)
		if err != nil {
			log.Warn().Err(err).Msg("failed to refetch reservations")
		} else {
			out.Reservations = records
		}
	}

	out.Lots, out.LotsErr = r.FetchLots(ctx, line.ID, line.ProductKey)
	if out.LotsErr != nil {
		log.Warn().Err(out.LotsErr).Msg("failed to refetch candidate lots")
	}

	return out
}

// FetchLots returns the line's candidate lots, from the snapshot cache when it has them
func (r *Reconciler) FetchLots(
	ctx context.Context,
	lineID entities.OrderLineID,
	product entities.ProductKey,
) ([]entities.CandidateLot, error) {
	if r.cache != nil {
		if lots, ok := r.cache.Get(lineID); ok {
			return lots, nil
		}
	}
	if r.lots == nil {
		return nil, fmt.Errorf("fetch candidate lots for order line %s: %w", lineID, ErrNotConfigured)
	}

	lots, err := r.lots.FetchCandidateLots(ctx, repositories.CandidateQuery{
		OrderLineID:      lineID,
		ProductKey:       product,
		Strategy:         r.config.Strategy,
		Limit:            r.config.CandidateLimit,
		NotExpiredBefore: r.clock(),
	})
	if err != nil {
		return nil, fmt.Errorf("fetch candidate lots for order line %s: %w", lineID, err)
	}

	if r.cache != nil {
		r.cache.Put(lineID, lots)
	}
	return lots, nil
}
