package docmanager

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/zero-day-ai/graphsync/internal/changefeed"
	"github.com/zero-day-ai/graphsync/internal/types"
)

// Span names.
const (
	SpanUpsert        = "graphsync.docmanager.upsert"
	SpanBulkUpsert    = "graphsync.docmanager.bulk_upsert"
	SpanUpdate        = "graphsync.docmanager.update"
	SpanRemove        = "graphsync.docmanager.remove"
	SpanHandleCommand = "graphsync.docmanager.handle_command"
	SpanSearch        = "graphsync.docmanager.search"
	SpanGetLastDoc    = "graphsync.docmanager.get_last_doc"
	SpanGet           = "graphsync.docmanager.get"
	SpanCommit        = "graphsync.docmanager.commit"
	SpanStop          = "graphsync.docmanager.stop"
)

// Manager is the operation surface of a DocManager.
type Manager interface {
	Upsert(ctx context.Context, doc any, namespace string, ts int64) error
	BulkUpsert(ctx context.Context, stream changefeed.DocumentStream, namespace string, ts int64) (*BulkResult, error)
	Update(ctx context.Context, id any, spec map[string]any, namespace string, ts int64) error
	Remove(ctx context.Context, id any, namespace string, ts int64) error
	HandleCommand(ctx context.Context, cmd map[string]any, namespace string, ts int64) error
	Search(ctx context.Context, start, end int64) ([]RootRecord, error)
	GetLastDoc(ctx context.Context) (*RootRecord, error)
	Get(ctx context.Context, id any, namespace string) (*RootRecord, error)
	Commit(ctx context.Context) error
	Stop(ctx context.Context) error
}

var (
	_ Manager = (*DocManager)(nil)
	_ Manager = (*TracedDocManager)(nil)
)

// TracedDocManager wraps a Manager with OpenTelemetry spans.
//
// Thread-safety: safe for concurrent access if the inner Manager is.
type TracedDocManager struct {
	inner  Manager
	tracer trace.Tracer
}

// NewTracedDocManager creates a traced manager.
//
// Example:
//
//	traced := NewTracedDocManager(mgr, otel.Tracer(observability.TracerName))
func NewTracedDocManager(inner Manager, tracer trace.Tracer) *TracedDocManager {
	return &TracedDocManager{inner: inner, tracer: tracer}
}

func (t *TracedDocManager) start(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

// endSpan records err on span and ends it.
func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		if code := types.CodeOf(err); code != "" {
			span.SetAttributes(attribute.String("graphsync.error.code", string(code)))
		}
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}

func namespaceAttrs(namespace string, ts int64) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String("graphsync.namespace", namespace),
		attribute.Int64("graphsync.ts", ts),
	}
}

// Upsert implements Manager.
func (t *TracedDocManager) Upsert(ctx context.Context, doc any, namespace string, ts int64) error {
	ctx, span := t.start(ctx, SpanUpsert, namespaceAttrs(namespace, ts)...)
	err := t.inner.Upsert(ctx, doc, namespace, ts)
	endSpan(span, err)
	return err
}

// BulkUpsert implements Manager.
func (t *TracedDocManager) BulkUpsert(ctx context.Context, stream changefeed.DocumentStream, namespace string, ts int64) (*BulkResult, error) {
	ctx, span := t.start(ctx, SpanBulkUpsert, namespaceAttrs(namespace, ts)...)
	result, err := t.inner.BulkUpsert(ctx, stream, namespace, ts)
	if result != nil {
		span.SetAttributes(
			attribute.String("graphsync.batch_id", result.BatchID),
			attribute.Int("graphsync.upserted", result.Upserted),
			attribute.Int("graphsync.skipped", len(result.Skipped)),
			attribute.Int("graphsync.transactions", result.Transactions),
		)
	}
	endSpan(span, err)
	return result, err
}

// Update implements Manager.
func (t *TracedDocManager) Update(ctx context.Context, id any, spec map[string]any, namespace string, ts int64) error {
	ctx, span := t.start(ctx, SpanUpdate, namespaceAttrs(namespace, ts)...)
	err := t.inner.Update(ctx, id, spec, namespace, ts)
	endSpan(span, err)
	return err
}

// Remove implements Manager.
func (t *TracedDocManager) Remove(ctx context.Context, id any, namespace string, ts int64) error {
	ctx, span := t.start(ctx, SpanRemove, namespaceAttrs(namespace, ts)...)
	err := t.inner.Remove(ctx, id, namespace, ts)
	endSpan(span, err)
	return err
}

// HandleCommand implements Manager.
func (t *TracedDocManager) HandleCommand(ctx context.Context, cmd map[string]any, namespace string, ts int64) error {
	ctx, span := t.start(ctx, SpanHandleCommand, namespaceAttrs(namespace, ts)...)
	span.SetAttributes(attribute.String("graphsync.command", commandName(cmd)))
	err := t.inner.HandleCommand(ctx, cmd, namespace, ts)
	endSpan(span, err)
	return err
}

// Search implements Manager.
func (t *TracedDocManager) Search(ctx context.Context, start, end int64) ([]RootRecord, error) {
	ctx, span := t.start(ctx, SpanSearch,
		attribute.Int64("graphsync.search.start", start),
		attribute.Int64("graphsync.search.end", end))
	records, err := t.inner.Search(ctx, start, end)
	span.SetAttributes(attribute.Int("graphsync.search.results", len(records)))
	endSpan(span, err)
	return records, err
}

// GetLastDoc implements Manager.
func (t *TracedDocManager) GetLastDoc(ctx context.Context) (*RootRecord, error) {
	ctx, span := t.start(ctx, SpanGetLastDoc)
	rec, err := t.inner.GetLastDoc(ctx)
	endSpan(span, err)
	return rec, err
}

// Get implements Manager.
func (t *TracedDocManager) Get(ctx context.Context, id any, namespace string) (*RootRecord, error) {
	ctx, span := t.start(ctx, SpanGet, attribute.String("graphsync.namespace", namespace))
	rec, err := t.inner.Get(ctx, id, namespace)
	endSpan(span, err)
	return rec, err
}

// Commit implements Manager.
func (t *TracedDocManager) Commit(ctx context.Context) error {
	ctx, span := t.start(ctx, SpanCommit)
	err := t.inner.Commit(ctx)
	endSpan(span, err)
	return err
}

// Stop implements Manager.
func (t *TracedDocManager) Stop(ctx context.Context) error {
	ctx, span := t.start(ctx, SpanStop)
	err := t.inner.Stop(ctx)
	endSpan(span, err)
	return err
}
