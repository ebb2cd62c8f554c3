package observability

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func TestInitMetrics_Disabled(t *testing.T) {
	provider, err := InitMetrics(context.Background(), MetricsConfig{Enabled: false})
	require.NoError(t, err)
	require.NotNil(t, provider)

	metrics, err := NewSyncMetrics(provider.Meter("test"))
	require.NoError(t, err)
	metrics.DocumentsUpserted(context.Background(), "db.Person", 3)
}

func TestInitMetrics_Prometheus(t *testing.T) {
	provider, err := InitMetrics(context.Background(), MetricsConfig{Enabled: true, Provider: "prometheus"})
	require.NoError(t, err)

	_, ok := provider.(*sdkmetric.MeterProvider)
	assert.True(t, ok)
	assert.NoError(t, ShutdownMetrics(context.Background(), provider))
}

func TestInitMetrics_InvalidConfig(t *testing.T) {
	tests := []MetricsConfig{
		{Enabled: true, Provider: "statsd"},
		{Enabled: true, Provider: "otlp"},
	}

	for _, cfg := range tests {
		_, err := InitMetrics(context.Background(), cfg)
		assert.Error(t, err, cfg.Provider)
	}
}

func collect(t *testing.T, reader *sdkmetric.ManualReader) map[string]metricdata.Aggregation {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	out := map[string]metricdata.Aggregation{}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			out[m.Name] = m.Data
		}
	}
	return out
}

func sumOf(t *testing.T, data metricdata.Aggregation) int64 {
	t.Helper()
	sum, ok := data.(metricdata.Sum[int64])
	require.True(t, ok, "expected an int64 sum, got %T", data)
	var total int64
	for _, dp := range sum.DataPoints {
		total += dp.Value
	}
	return total
}

func TestSyncMetrics(t *testing.T) {
	ctx := context.Background()
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = provider.Shutdown(ctx) })

	m, err := NewSyncMetrics(provider.Meter(TracerName))
	require.NoError(t, err)

	m.DocumentsUpserted(ctx, "db.Person", 3)
	m.DocumentsUpserted(ctx, "db.Order", 2)
	m.DocumentsUpserted(ctx, "db.Order", 0)
	m.DocumentUpdated(ctx, "db.Person")
	m.DocumentRemoved(ctx, "db.Person")
	m.DocumentSkipped(ctx, "db.Person", "MALFORMED_DOCUMENT")
	m.ConstraintsCreated(ctx, 2)
	m.TransactionCommitted(ctx, 12, 3*time.Millisecond, nil)
	m.TransactionCommitted(ctx, 12, time.Millisecond, errors.New("boom"))

	data := collect(t, reader)
	assert.Equal(t, int64(5), sumOf(t, data[MetricDocumentsUpserted]))
	assert.Equal(t, int64(1), sumOf(t, data[MetricDocumentsUpdated]))
	assert.Equal(t, int64(1), sumOf(t, data[MetricDocumentsRemoved]))
	assert.Equal(t, int64(1), sumOf(t, data[MetricDocumentsSkipped]))
	assert.Equal(t, int64(2), sumOf(t, data[MetricConstraintsCreated]))
	assert.Equal(t, int64(1), sumOf(t, data[MetricTransactionsCommitted]), "failed commits are not counted")

	hist, ok := data[MetricCommitDuration].(metricdata.Histogram[float64])
	require.True(t, ok)
	var count uint64
	for _, dp := range hist.DataPoints {
		count += dp.Count
	}
	assert.Equal(t, uint64(2), count)
}

func TestSyncMetrics_NilIsNoop(t *testing.T) {
	var m *SyncMetrics
	ctx := context.Background()

	assert.NotPanics(t, func() {
		m.DocumentsUpserted(ctx, "db.Person", 1)
		m.DocumentUpdated(ctx, "db.Person")
		m.DocumentRemoved(ctx, "db.Person")
		m.DocumentSkipped(ctx, "db.Person", "x")
		m.ConstraintsCreated(ctx, 1)
		m.TransactionCommitted(ctx, 1, time.Second, nil)
	})
}

func TestStatementBucket(t *testing.T) {
	assert.Equal(t, 1, statementBucket(0))
	assert.Equal(t, 1, statementBucket(1))
	assert.Equal(t, 10, statementBucket(7))
	assert.Equal(t, 100, statementBucket(11))
	assert.Equal(t, 100000, statementBucket(10000000))
}
