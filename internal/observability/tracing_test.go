package observability

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/zero-day-ai/graphsync/internal/types"
)

func TestInitTracing_Disabled(t *testing.T) {
	tp, err := InitTracing(context.Background(), TracingConfig{Enabled: false})
	require.NoError(t, err)
	require.NotNil(t, tp)

	_, span := tp.Tracer("test").Start(context.Background(), "op")
	span.End()
	assert.NoError(t, ShutdownTracing(context.Background(), tp))
}

func TestInitTracing_Noop(t *testing.T) {
	tp, err := InitTracing(context.Background(), TracingConfig{Enabled: true, Provider: "noop", SampleRate: 1})
	require.NoError(t, err)
	assert.NotNil(t, tp)
}

func TestInitTracing_InvalidConfig(t *testing.T) {
	tests := []struct {
		name string
		cfg  TracingConfig
	}{
		{"unknown provider", TracingConfig{Enabled: true, Provider: "jaeger", Endpoint: "x", ServiceName: "s", SampleRate: 1}},
		{"sample rate out of range", TracingConfig{Enabled: true, Provider: "otlp", Endpoint: "x", ServiceName: "s", SampleRate: 2}},
		{"missing endpoint", TracingConfig{Enabled: true, Provider: "otlp", ServiceName: "s", SampleRate: 1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := InitTracing(context.Background(), tt.cfg)
			require.Error(t, err)
			assert.Equal(t, ErrExporterConnection, types.CodeOf(err))
		})
	}
}

func TestInitTracing_WithExporter(t *testing.T) {
	ctx := context.Background()
	exporter := tracetest.NewInMemoryExporter()

	tp, err := InitTracing(ctx,
		TracingConfig{Enabled: true, Provider: "otlp", Endpoint: "unused:4317", ServiceName: "graphsync-test", SampleRate: 1},
		WithSpanExporter(exporter),
		WithSampler(sdktrace.AlwaysSample()),
	)
	require.NoError(t, err)

	_, span := tp.Tracer(TracerName).Start(ctx, "graphsync.upsert")
	span.End()
	require.NoError(t, tp.ForceFlush(ctx))

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	assert.Equal(t, "graphsync.upsert", spans[0].Name)
	assert.NoError(t, ShutdownTracing(ctx, tp))
}

func TestShutdownTracing_Nil(t *testing.T) {
	assert.NoError(t, ShutdownTracing(context.Background(), nil))
}
