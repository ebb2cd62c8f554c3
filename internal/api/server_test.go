package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zero-day-ai/graphsync/internal/checkpoint"
	"github.com/zero-day-ai/graphsync/internal/docmanager"
	"github.com/zero-day-ai/graphsync/internal/observability"
	"github.com/zero-day-ai/graphsync/internal/types"
)

type stubReader struct {
	docs      []docmanager.RootRecord
	last      *docmanager.RootRecord
	byID      map[string]*docmanager.RootRecord
	err       error
	gotStart  int64
	gotEnd    int64
	gotLookup string
}

func (r *stubReader) Search(_ context.Context, start, end int64) ([]docmanager.RootRecord, error) {
	r.gotStart, r.gotEnd = start, end
	return r.docs, r.err
}

func (r *stubReader) GetLastDoc(context.Context) (*docmanager.RootRecord, error) {
	return r.last, r.err
}

func (r *stubReader) Get(_ context.Context, id any, namespace string) (*docmanager.RootRecord, error) {
	r.gotLookup = namespace + "/" + id.(string)
	if r.err != nil {
		return nil, r.err
	}
	return r.byID[r.gotLookup], nil
}

func newTestServer(reader DocumentReader, opts ...Option) *Server {
	gin.SetMode(gin.TestMode)
	logger := observability.NewTracedLogger(slog.NewTextHandler(io.Discard, nil), "api")
	return NewServer(reader, append([]Option{WithLogger(logger)}, opts...)...)
}

func do(t *testing.T, s *Server, method, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	rr := httptest.NewRecorder()
	s.Handler().ServeHTTP(rr, req)
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &v))
	return v
}

func TestHealth(t *testing.T) {
	tests := []struct {
		name       string
		checks     map[string]types.HealthStatus
		wantCode   int
		wantStatus types.HealthState
	}{
		{"no checks", nil, http.StatusOK, types.HealthStateHealthy},
		{"all healthy", map[string]types.HealthStatus{"graph": types.Healthy("ok")}, http.StatusOK, types.HealthStateHealthy},
		{
			"degraded stays 200",
			map[string]types.HealthStatus{"graph": types.Healthy("ok"), "registry": types.Degraded("slow")},
			http.StatusOK, types.HealthStateDegraded,
		},
		{
			"unhealthy is 503",
			map[string]types.HealthStatus{"graph": types.Unhealthy("connection refused")},
			http.StatusServiceUnavailable, types.HealthStateUnhealthy,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var opts []Option
			for name, status := range tt.checks {
				status := status
				opts = append(opts, WithHealthCheck(name, func(context.Context) types.HealthStatus { return status }))
			}
			s := newTestServer(&stubReader{}, append(opts, WithVersion("1.2.3"))...)

			rr := do(t, s, http.MethodGet, "/health")
			assert.Equal(t, tt.wantCode, rr.Code)

			resp := decode[HealthResponse](t, rr)
			assert.Equal(t, tt.wantStatus, resp.Status)
			assert.Equal(t, "1.2.3", resp.Version)
			assert.Len(t, resp.Components, len(tt.checks))
		})
	}
}

func TestHealth_MethodNotAllowed(t *testing.T) {
	s := newTestServer(&stubReader{})
	rr := do(t, s, http.MethodPost, "/health")
	assert.Equal(t, http.StatusMethodNotAllowed, rr.Code)
}

func TestSearch(t *testing.T) {
	reader := &stubReader{docs: []docmanager.RootRecord{
		{Label: "Person", ID: "a", Timestamp: 5},
		{Label: "Person", ID: "b", Timestamp: 7},
	}}
	s := newTestServer(reader)

	rr := do(t, s, http.MethodGet, "/api/v1/documents?start=5&end=9")
	require.Equal(t, http.StatusOK, rr.Code)

	resp := decode[SearchResponse](t, rr)
	assert.Equal(t, 2, resp.Count)
	assert.Equal(t, "b", resp.Documents[1].ID)
	assert.Equal(t, int64(5), reader.gotStart)
	assert.Equal(t, int64(9), reader.gotEnd)
}

func TestSearch_DefaultRange(t *testing.T) {
	reader := &stubReader{}
	s := newTestServer(reader)

	rr := do(t, s, http.MethodGet, "/api/v1/documents")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, int64(0), reader.gotStart)
	assert.Equal(t, maxTimestamp, reader.gotEnd)

	resp := decode[SearchResponse](t, rr)
	assert.NotNil(t, resp.Documents, "an empty result is [] not null")
}

func TestSearch_BadParams(t *testing.T) {
	s := newTestServer(&stubReader{})
	for _, path := range []string{
		"/api/v1/documents?start=abc",
		"/api/v1/documents?end=1.5",
		"/api/v1/documents?start=10&end=2",
	} {
		rr := do(t, s, http.MethodGet, path)
		assert.Equal(t, http.StatusBadRequest, rr.Code, path)
	}
}

func TestSearch_StoreFailure(t *testing.T) {
	reader := &stubReader{err: types.WrapRetryableError(types.STORE_COMMUNICATION_FAILED, "query failed", errors.New("connection reset"))}
	s := newTestServer(reader)

	rr := do(t, s, http.MethodGet, "/api/v1/documents")
	assert.Equal(t, http.StatusBadGateway, rr.Code)
	resp := decode[ErrorResponse](t, rr)
	assert.Equal(t, types.STORE_COMMUNICATION_FAILED, resp.Code)
}

func TestLastDoc(t *testing.T) {
	s := newTestServer(&stubReader{})
	assert.Equal(t, http.StatusNotFound, do(t, s, http.MethodGet, "/api/v1/documents/last").Code)

	s = newTestServer(&stubReader{last: &docmanager.RootRecord{Label: "Order", ID: "o9", Timestamp: 99}})
	rr := do(t, s, http.MethodGet, "/api/v1/documents/last")
	require.Equal(t, http.StatusOK, rr.Code)
	doc := decode[docmanager.RootRecord](t, rr)
	assert.Equal(t, "o9", doc.ID)
	assert.Equal(t, int64(99), doc.Timestamp)
}

func TestGetDocument(t *testing.T) {
	reader := &stubReader{byID: map[string]*docmanager.RootRecord{
		"shop.Order/o1": {Label: "Order", ID: "o1", Properties: map[string]any{"total": 3.5}},
	}}
	s := newTestServer(reader)

	rr := do(t, s, http.MethodGet, "/api/v1/documents/shop.Order/o1")
	require.Equal(t, http.StatusOK, rr.Code)
	doc := decode[docmanager.RootRecord](t, rr)
	assert.Equal(t, 3.5, doc.Properties["total"])

	rr = do(t, s, http.MethodGet, "/api/v1/documents/shop.Order/missing")
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestGetDocument_BadNamespace(t *testing.T) {
	reader := &stubReader{err: types.NewError(types.MALFORMED_DOCUMENT, "namespace has no database separator")}
	s := newTestServer(reader)

	rr := do(t, s, http.MethodGet, "/api/v1/documents/orders/o1")
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestCheckpoints(t *testing.T) {
	s := newTestServer(&stubReader{})
	assert.Equal(t, http.StatusNotFound, do(t, s, http.MethodGet, "/api/v1/checkpoints").Code)

	store, err := checkpoint.Open(checkpoint.Options{InMemory: true})
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	require.NoError(t, store.Save(context.Background(), checkpoint.Checkpoint{
		Namespace: "shop.Order", Timestamp: 42, UpdatedAt: time.Now(),
	}))

	s = newTestServer(&stubReader{}, WithCheckpoints(store))
	rr := do(t, s, http.MethodGet, "/api/v1/checkpoints")
	require.Equal(t, http.StatusOK, rr.Code)

	var body struct {
		Checkpoints []checkpoint.Checkpoint `json:"checkpoints"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	require.Len(t, body.Checkpoints, 1)
	assert.Equal(t, "shop.Order", body.Checkpoints[0].Namespace)
	assert.Equal(t, int64(42), body.Checkpoints[0].Timestamp)
}

func TestMetricsRoute(t *testing.T) {
	registry := prometheus.NewRegistry()
	counter := prometheus.NewCounter(prometheus.CounterOpts{Name: "graphsync_test_total", Help: "test"})
	registry.MustRegister(counter)
	counter.Inc()

	s := newTestServer(&stubReader{}, WithMetricsHandler(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))
	rr := do(t, s, http.MethodGet, "/metrics")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "graphsync_test_total 1")

	s = newTestServer(&stubReader{})
	assert.Equal(t, http.StatusNotFound, do(t, s, http.MethodGet, "/metrics").Code)
}
