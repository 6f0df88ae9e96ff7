package observability

import (
	"context"
	"fmt"
	"sort"

	"go.opentelemetry.io/otel"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

// Provider is an in-process meter provider whose counters can be read back
// at the end of a run. It is installed as the global provider.
type Provider struct {
	reader        *sdkmetric.ManualReader
	meterProvider *sdkmetric.MeterProvider
}

// NewProvider creates the meter provider for service version
func NewProvider(version string) *Provider {
	res := resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName("lotalloc"),
		semconv.ServiceVersion(version),
	)

	reader := sdkmetric.NewManualReader()
	p := &Provider{
		reader: reader,
		meterProvider: sdkmetric.NewMeterProvider(
			sdkmetric.WithResource(res),
			sdkmetric.WithReader(reader),
		),
	}
	otel.SetMeterProvider(p.meterProvider)
	return p
}

// Recorder creates a session metrics recorder on this provider
func (p *Provider) Recorder() (*Recorder, error) {
	return NewRecorder(p.meterProvider)
}

// Total is one counter summed over all attribute sets
type Total struct {
	Name  string
	Value float64
}

// Totals collects every sum instrument, sorted by name
func (p *Provider) Totals(ctx context.Context) ([]Total, error) {
	var rm metricdata.ResourceMetrics
	if err := p.reader.Collect(ctx, &rm); err != nil {
		return nil, fmt.Errorf("collect metrics: %w", err)
	}

	var out []Total
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			total := Total{Name: m.Name}
			switch data := m.Data.(type) {
			case metricdata.Sum[int64]:
				for _, dp := range data.DataPoints {
					total.Value += float64(dp.Value)
				}
			case metricdata.Sum[float64]:
				for _, dp := range data.DataPoints {
					total.Value += dp.Value
				}
			default:
				continue
			}
			out = append(out, total)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// Shutdown flushes and stops the provider
func (p *Provider) Shutdown(ctx context.Context) error {
	return p.meterProvider.Shutdown(ctx)
}
