package observability

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// Metric names recorded by the sync engine.
const (
	MetricDocumentsUpserted     = "graphsync.documents.upserted"
	MetricDocumentsUpdated      = "graphsync.documents.updated"
	MetricDocumentsRemoved      = "graphsync.documents.removed"
	MetricDocumentsSkipped      = "graphsync.documents.skipped"
	MetricTransactionsCommitted = "graphsync.transactions.committed"
	MetricConstraintsCreated    = "graphsync.constraints.created"
	MetricCommitDuration        = "graphsync.commit.duration"
)

// InitMetrics initializes a meter provider based on the configuration.
//
// For Prometheus the exporter registers with the default Prometheus
// registry, which the admin API serves on /metrics. For OTLP metrics are
// pushed periodically to cfg.Endpoint. Disabled metrics yield a no-op provider.
//
// Example:
//
//	provider, err := InitMetrics(ctx, MetricsConfig{Enabled: true, Provider: "prometheus"})
//	if err != nil {
//	    return err
//	}
//	metrics, err := NewSyncMetrics(provider.Meter(TracerName))
func InitMetrics(ctx context.Context, cfg MetricsConfig) (metric.MeterProvider, error) {
	if !cfg.Enabled {
		return noop.NewMeterProvider(), nil
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid metrics config: %w", err)
	}

	switch strings.ToLower(cfg.Provider) {
	case "prometheus":
		return initPrometheusProvider()
	case "otlp":
		return initOTLPProvider(ctx, cfg)
	default:
		return nil, fmt.Errorf("unsupported metrics provider: %s", cfg.Provider)
	}
}

// initPrometheusProvider creates a meter provider read by a Prometheus exporter.
func initPrometheusProvider() (metric.MeterProvider, error) {
	exporter, err := prometheus.New()
	if err != nil {
		return nil, NewExporterConnectionError("prometheus", err)
	}

	return sdkmetric.NewMeterProvider(sdkmetric.WithReader(exporter)), nil
}

// initOTLPProvider creates a meter provider pushing to an OTLP collector.
func initOTLPProvider(ctx context.Context, cfg MetricsConfig) (metric.MeterProvider, error) {
	exporter, err := otlpmetricgrpc.New(ctx,
		otlpmetricgrpc.WithEndpoint(cfg.Endpoint),
		otlpmetricgrpc.WithInsecure(),
	)
	if err != nil {
		return nil, NewExporterConnectionError(cfg.Endpoint, err)
	}

	return sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter)),
	), nil
}

// ShutdownMetrics flushes and stops provider when it is an SDK provider.
func ShutdownMetrics(ctx context.Context, provider metric.MeterProvider) error {
	mp, ok := provider.(*sdkmetric.MeterProvider)
	if !ok {
		return nil
	}
	if err := mp.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown meter provider: %w", err)
	}
	return nil
}

// SyncMetrics holds the instruments of the sync engine. All methods are
// safe for concurrent use; a nil *SyncMetrics records nothing.
type SyncMetrics struct {
	upserted    metric.Int64Counter
	updated     metric.Int64Counter
	removed     metric.Int64Counter
	skipped     metric.Int64Counter
	committed   metric.Int64Counter
	constraints metric.Int64Counter
	duration    metric.Float64Histogram
}

// NewSyncMetrics creates the sync instruments on meter.
func NewSyncMetrics(meter metric.Meter) (*SyncMetrics, error) {
	m := &SyncMetrics{}
	var err error

	counters := []struct {
		target      *metric.Int64Counter
		name        string
		description string
	}{
		{&m.upserted, MetricDocumentsUpserted, "Documents written by upsert or bulk upsert"},
		{&m.updated, MetricDocumentsUpdated, "Documents changed by update translation"},
		{&m.removed, MetricDocumentsRemoved, "Documents removed"},
		{&m.skipped, MetricDocumentsSkipped, "Documents excluded from a batch"},
		{&m.committed, MetricTransactionsCommitted, "Transactions committed to the graph store"},
		{&m.constraints, MetricConstraintsCreated, "Uniqueness constraints created"},
	}
	for _, c := range counters {
		*c.target, err = meter.Int64Counter(c.name, metric.WithDescription(c.description))
		if err != nil {
			return nil, NewMetricsRegistrationError(c.name, err)
		}
	}

	m.duration, err = meter.Float64Histogram(MetricCommitDuration,
		metric.WithDescription("Transaction commit latency"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, NewMetricsRegistrationError(MetricCommitDuration, err)
	}

	return m, nil
}

// DocumentsUpserted counts n documents written under namespace.
func (m *SyncMetrics) DocumentsUpserted(ctx context.Context, namespace string, n int) {
	if m == nil || n == 0 {
		return
	}
	m.upserted.Add(ctx, int64(n), metric.WithAttributes(attribute.String("namespace", namespace)))
}

// DocumentUpdated counts one translated update.
func (m *SyncMetrics) DocumentUpdated(ctx context.Context, namespace string) {
	if m == nil {
		return
	}
	m.updated.Add(ctx, 1, metric.WithAttributes(attribute.String("namespace", namespace)))
}

// DocumentRemoved counts one removal.
func (m *SyncMetrics) DocumentRemoved(ctx context.Context, namespace string) {
	if m == nil {
		return
	}
	m.removed.Add(ctx, 1, metric.WithAttributes(attribute.String("namespace", namespace)))
}

// DocumentSkipped counts a document excluded from a batch, by error code.
func (m *SyncMetrics) DocumentSkipped(ctx context.Context, namespace, reason string) {
	if m == nil {
		return
	}
	m.skipped.Add(ctx, 1, metric.WithAttributes(
		attribute.String("namespace", namespace),
		attribute.String("reason", reason),
	))
}

// ConstraintsCreated counts n constraints issued.
func (m *SyncMetrics) ConstraintsCreated(ctx context.Context, n int) {
	if m == nil || n == 0 {
		return
	}
	m.constraints.Add(ctx, int64(n))
}

// TransactionCommitted records one commit attempt and its latency.
func (m *SyncMetrics) TransactionCommitted(ctx context.Context, statements int, elapsed time.Duration, err error) {
	if m == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	attrs := metric.WithAttributes(attribute.String("status", status))
	if err == nil {
		m.committed.Add(ctx, 1, attrs)
	}
	m.duration.Record(ctx, float64(elapsed.Microseconds())/1000.0, attrs,
		metric.WithAttributes(attribute.Int("statements.bucket", statementBucket(statements))))
}

// statementBucket keeps the statements attribute low-cardinality.
func statementBucket(n int) int {
	bucket := 1
	for bucket < n && bucket < 100000 {
		bucket *= 10
	}
	return bucket
}
