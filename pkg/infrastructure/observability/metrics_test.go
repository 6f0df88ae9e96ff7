package observability

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/vsinha/lotalloc/pkg/application/services/allocation"
	"github.com/vsinha/lotalloc/pkg/domain/services"
)

var _ allocation.Metrics = (*Recorder)(nil)

func collect(t *testing.T, reader *sdkmetric.ManualReader) map[string]metricdata.Aggregation {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	out := make(map[string]metricdata.Aggregation)
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			out[m.Name] = m.Data
		}
	}
	return out
}

func TestRecorder_Counters(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	rec, err := NewRecorder(provider)
	require.NoError(t, err)

	ctx := context.Background()
	rec.RecordCommit(ctx, "L1", decimal.NewFromInt(80))
	rec.RecordCommit(ctx, "L2", decimal.NewFromInt(20))
	rec.RecordCancel(ctx, "wrong_lot", decimal.NewFromInt(30))
	rec.RecordPersistenceFailure(ctx, "commit")
	rec.RecordClampWarning(ctx, services.ClampStockCeiling)

	data := collect(t, reader)

	commits, ok := data["lotalloc.commits.total"].(metricdata.Sum[int64])
	require.True(t, ok)
	require.Len(t, commits.DataPoints, 1)
	assert.Equal(t, int64(2), commits.DataPoints[0].Value)

	qty, ok := data["lotalloc.committed.quantity"].(metricdata.Sum[float64])
	require.True(t, ok)
	assert.InDelta(t, 100.0, qty.DataPoints[0].Value, 1e-9)

	cancels, ok := data["lotalloc.cancels.total"].(metricdata.Sum[int64])
	require.True(t, ok)
	reason, found := cancels.DataPoints[0].Attributes.Value("reason")
	require.True(t, found)
	assert.Equal(t, "wrong_lot", reason.AsString())

	failures, ok := data["lotalloc.persistence.failures"].(metricdata.Sum[int64])
	require.True(t, ok)
	assert.Equal(t, int64(1), failures.DataPoints[0].Value)

	warnings, ok := data["lotalloc.clamp.warnings"].(metricdata.Sum[int64])
	require.True(t, ok)
	assert.Equal(t, int64(1), warnings.DataPoints[0].Value)
}

func TestProvider_Totals(t *testing.T) {
	provider := NewProvider("test")
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })

	rec, err := provider.Recorder()
	require.NoError(t, err)

	ctx := context.Background()
	rec.RecordCancel(ctx, "wrong_lot", decimal.NewFromInt(5))
	rec.RecordCancel(ctx, "customer_request", decimal.RequireFromString("2.5"))
	rec.RecordCommit(ctx, "L1", decimal.NewFromInt(10))

	totals, err := provider.Totals(ctx)
	require.NoError(t, err)

	byName := make(map[string]float64, len(totals))
	for _, total := range totals {
		byName[total.Name] = total.Value
	}
	assert.Equal(t, 2.0, byName["lotalloc.cancels.total"], "attribute sets are summed")
	assert.InDelta(t, 7.5, byName["lotalloc.cancelled.quantity"], 1e-9)
	assert.Equal(t, 1.0, byName["lotalloc.commits.total"])

	for i := 1; i < len(totals); i++ {
		assert.Less(t, totals[i-1].Name, totals[i].Name)
	}
}
