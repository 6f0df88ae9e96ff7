package allocation

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/vsinha/lotalloc/pkg/domain/entities"
	"github.com/vsinha/lotalloc/pkg/domain/repositories"
	"github.com/vsinha/lotalloc/pkg/domain/services"
	"github.com/vsinha/lotalloc/pkg/infrastructure/events"
)

// Config holds session settings
type Config struct {
	// Strategy is passed to the candidate lot source
	Strategy string
	// CandidateLimit caps how many lots are fetched per line (0 = source default)
	CandidateLimit int
	// Operator identifies this session to the lock advisor
	Operator string
	// Prefetch bounds concurrent candidate fetches in AutoAllocateAll
	Prefetch int
}

// DefaultConfig returns the settings used when none are given
func DefaultConfig() Config {
	return Config{
		Strategy:       services.StrategyFEFO,
		CandidateLimit: 50,
		Prefetch:       4,
	}
}

// SnapshotCache holds the last fetched candidate lots per line
type SnapshotCache interface {
	Get(lineID entities.OrderLineID) ([]entities.CandidateLot, bool)
	Put(lineID entities.OrderLineID, lots []entities.CandidateLot)
	Invalidate(lineID entities.OrderLineID)
}

// Metrics receives counters for session activity
type Metrics interface {
	RecordCommit(ctx context.Context, lineID entities.OrderLineID, quantity decimal.Decimal)
	RecordCancel(ctx context.Context, reason entities.CancelReason, quantity decimal.Decimal)
	RecordPersistenceFailure(ctx context.Context, op string)
	RecordClampWarning(ctx context.Context, warning services.ClampWarning)
}

type nopMetrics struct{}

func (nopMetrics) RecordCommit(context.Context, entities.OrderLineID, decimal.Decimal) {}

func (nopMetrics) RecordCancel(context.Context, entities.CancelReason, decimal.Decimal) {}

func (nopMetrics) RecordPersistenceFailure(context.Context, string) {}

func (nopMetrics) RecordClampWarning(context.Context, services.ClampWarning) {}

// Deps are the collaborators of a Session.
// Lots and Gateway are required; everything else is optional.
type Deps struct {
	Lots         repositories.CandidateLotRepository
	Gateway      repositories.AllocationGateway
	Reservations repositories.ReservationRepository
	Lines        repositories.OrderLineRepository
	Locks        repositories.LockAdvisor
	Cache        SnapshotCache
	Notifier     Notifier
	Events       events.EventStore
	Metrics      Metrics
	Logger       zerolog.Logger
	Clock        func() time.Time
}

func (d Deps) withDefaults() Deps {
	if d.Notifier == nil {
		d.Notifier = NewLogNotifier(d.Logger)
	}
	if d.Metrics == nil {
		d.Metrics = nopMetrics{}
	}
	if d.Clock == nil {
		d.Clock = time.Now
	}
	return d
}
