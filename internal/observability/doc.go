// Package observability provides logging, tracing and metrics for graphsync.
//
// # Logging
//
// TracedLogger wraps log/slog and adds the component name plus the trace_id
// and span_id of the active OpenTelemetry span. Secrets are redacted at info
// level and above; connection URIs keep everything but their password.
//
//	handler, err := NewHandler(LoggingConfig{Level: "info", Format: "json"}, os.Stderr)
//	logger := NewTracedLogger(handler, "docmanager")
//	logger.Info(ctx, "batch committed", "namespace", ns, "documents", n)
//
// # Tracing
//
// InitTracing returns a no-op provider when tracing is disabled and an OTLP
// gRPC batching provider otherwise:
//
//	tp, err := InitTracing(ctx, TracingConfig{
//	    Enabled:     true,
//	    Provider:    "otlp",
//	    Endpoint:    "localhost:4317",
//	    ServiceName: "graphsync",
//	    SampleRate:  1.0,
//	})
//	defer ShutdownTracing(ctx, tp)
//
// # Metrics
//
// InitMetrics builds a meter provider (no-op, Prometheus or OTLP) and
// SyncMetrics creates the counters and the commit latency histogram the
// DocManager records:
//
//   - graphsync.documents.upserted / updated / removed / skipped
//   - graphsync.transactions.committed
//   - graphsync.constraints.created
//   - graphsync.commit.duration (ms)
package observability
