package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

// recordSpans installs a synchronous in-memory tracer provider for the test.
func recordSpans(t *testing.T) *tracetest.InMemoryExporter {
	t.Helper()
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter), sdktrace.WithSampler(sdktrace.AlwaysSample()))

	prevTP, prevProp := otel.GetTracerProvider(), otel.GetTextMapPropagator()
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.TraceContext{})
	t.Cleanup(func() {
		_ = tp.Shutdown(context.Background())
		otel.SetTracerProvider(prevTP)
		otel.SetTextMapPropagator(prevProp)
	})
	return exporter
}

func spanAttrs(s tracetest.SpanStub) map[attribute.Key]attribute.Value {
	out := make(map[attribute.Key]attribute.Value, len(s.Attributes))
	for _, kv := range s.Attributes {
		out[kv.Key] = kv.Value
	}
	return out
}

func onlySpan(t *testing.T, exporter *tracetest.InMemoryExporter) tracetest.SpanStub {
	t.Helper()
	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	return spans[0]
}

func TestTracingRecordsRequest(t *testing.T) {
	exporter := recordSpans(t)

	handler := Tracing(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	}))
	req := httptest.NewRequest(http.MethodGet, "/api/v1/lists", nil)
	req.Header.Set("User-Agent", "listsync-test")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	span := onlySpan(t, exporter)
	assert.Equal(t, "GET /api/v1/lists", span.Name, "unrouted requests keep the raw path")
	assert.Equal(t, codes.Ok, span.Status.Code)

	attrs := spanAttrs(span)
	assert.Equal(t, "GET", attrs["http.method"].AsString())
	assert.Equal(t, "/api/v1/lists", attrs["http.url"].AsString())
	assert.Equal(t, "http", attrs["http.scheme"].AsString())
	assert.Equal(t, "listsync-test", attrs["http.user_agent"].AsString())
	assert.Equal(t, int64(200), attrs["http.status_code"].AsInt64())
}

func TestTracingClientErrorsAreNotFailures(t *testing.T) {
	exporter := recordSpans(t)

	handler := Tracing(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/v1/lists/999", nil))

	span := onlySpan(t, exporter)
	assert.NotEqual(t, codes.Error, span.Status.Code)
	assert.Equal(t, int64(404), spanAttrs(span)["http.status_code"].AsInt64())
}

func TestTracingNamesSpanAfterRoute(t *testing.T) {
	exporter := recordSpans(t)

	mux := http.NewServeMux()
	mux.HandleFunc("PATCH /api/v1/items/{id}/toggle", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	Tracing(mux).ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPatch, "/api/v1/items/42/toggle", nil))

	span := onlySpan(t, exporter)
	assert.Equal(t, "PATCH /api/v1/items/{id}/toggle", span.Name)
	assert.Equal(t, codes.Error, span.Status.Code)
	assert.Equal(t, "/api/v1/items/{id}/toggle", spanAttrs(span)["http.route"].AsString())
}

func TestTracingContinuesIncomingTrace(t *testing.T) {
	exporter := recordSpans(t)

	const traceID = "4bf92f3577b34da6a3ce929d0e0e4736"
	req := httptest.NewRequest(http.MethodGet, "/api/v1/lists", nil)
	req.Header.Set("traceparent", "00-"+traceID+"-00f067aa0ba902b7-01")
	req.Header.Set("X-Forwarded-Proto", "https")
	Tracing(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {})).ServeHTTP(httptest.NewRecorder(), req)

	span := onlySpan(t, exporter)
	assert.Equal(t, traceID, span.SpanContext.TraceID().String())
	assert.Equal(t, "00f067aa0ba902b7", span.Parent.SpanID().String())
	assert.Equal(t, "https", spanAttrs(span)["http.scheme"].AsString())
}

func TestSpanStatusWriter(t *testing.T) {
	rec := httptest.NewRecorder()
	sw := &spanStatusWriter{ResponseWriter: rec, status: http.StatusOK}

	_, _ = sw.Write([]byte("ok"))
	assert.Equal(t, http.StatusOK, sw.status)

	sw = &spanStatusWriter{ResponseWriter: httptest.NewRecorder(), status: http.StatusOK}
	sw.WriteHeader(http.StatusCreated)
	assert.Equal(t, http.StatusCreated, sw.status)
	assert.Equal(t, http.ResponseWriter(sw.ResponseWriter), sw.Unwrap())
}
