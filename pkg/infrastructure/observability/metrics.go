// Package observability records allocation session activity as OpenTelemetry metrics.
package observability

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/vsinha/lotalloc/pkg/domain/entities"
	"github.com/vsinha/lotalloc/pkg/domain/services"
)

const instrumentationName = "github.com/vsinha/lotalloc"

// Recorder implements the session metrics port on an OTel meter
type Recorder struct {
	commits         metric.Int64Counter
	committedQty    metric.Float64Counter
	cancels         metric.Int64Counter
	cancelledQty    metric.Float64Counter
	persistFailures metric.Int64Counter
	clampWarnings   metric.Int64Counter
}

// NewRecorder creates the instruments on provider's meter; a nil provider uses the global one
func NewRecorder(provider metric.MeterProvider) (*Recorder, error) {
	if provider == nil {
		provider = otel.GetMeterProvider()
	}
	meter := provider.Meter(instrumentationName)

	r := &Recorder{}
	var err error
	if r.commits, err = meter.Int64Counter("lotalloc.commits.total",
		metric.WithDescription("Committed allocations"),
		metric.WithUnit("{commit}"),
	); err != nil {
		return nil, fmt.Errorf("create commits counter: %w", err)
	}
	if r.committedQty, err = meter.Float64Counter("lotalloc.committed.quantity",
		metric.WithDescription("Quantity moved into hard reservations"),
	); err != nil {
		return nil, fmt.Errorf("create committed quantity counter: %w", err)
	}
	if r.cancels, err = meter.Int64Counter("lotalloc.cancels.total",
		metric.WithDescription("Cancelled hard reservations"),
		metric.WithUnit("{cancel}"),
	); err != nil {
		return nil, fmt.Errorf("create cancels counter: %w", err)
	}
	if r.cancelledQty, err = meter.Float64Counter("lotalloc.cancelled.quantity",
		metric.WithDescription("Quantity released by cancellations"),
	); err != nil {
		return nil, fmt.Errorf("create cancelled quantity counter: %w", err)
	}
	if r.persistFailures, err = meter.Int64Counter("lotalloc.persistence.failures",
		metric.WithDescription("Rejected or failed writes to the allocation ledger"),
		metric.WithUnit("{error}"),
	); err != nil {
		return nil, fmt.Errorf("create failure counter: %w", err)
	}
	if r.clampWarnings, err = meter.Int64Counter("lotalloc.clamp.warnings",
		metric.WithDescription("Operator edits reduced to an allowed quantity"),
		metric.WithUnit("{warning}"),
	); err != nil {
		return nil, fmt.Errorf("create clamp counter: %w", err)
	}
	return r, nil
}

func (r *Recorder) RecordCommit(ctx context.Context, _ entities.OrderLineID, quantity decimal.Decimal) {
	r.commits.Add(ctx, 1)
	r.committedQty.Add(ctx, quantity.InexactFloat64())
}

func (r *Recorder) RecordCancel(ctx context.Context, reason entities.CancelReason, quantity decimal.Decimal) {
	attrs := metric.WithAttributes(attribute.String("reason", string(reason)))
	r.cancels.Add(ctx, 1, attrs)
	r.cancelledQty.Add(ctx, quantity.InexactFloat64(), attrs)
}

func (r *Recorder) RecordPersistenceFailure(ctx context.Context, op string) {
	r.persistFailures.Add(ctx, 1, metric.WithAttributes(attribute.String("op", op)))
}

func (r *Recorder) RecordClampWarning(ctx context.Context, warning services.ClampWarning) {
	r.clampWarnings.Add(ctx, 1, metric.WithAttributes(attribute.String("warning", warning.String())))
}
