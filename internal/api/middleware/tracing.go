package middleware

import (
	"bufio"
	"net"
	"net/http"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/Togather-Foundation/listsync/internal/api"

// Tracing starts a server span per request, continuing any W3C trace context
// the caller sent. The span is renamed to "METHOD /route/{param}" once the
// ServeMux has matched, so every list or item id shares one span name. Only
// 5xx responses mark the span as failed.
func Tracing(next http.Handler) http.Handler {
	tracer := otel.Tracer(tracerName)

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := otel.GetTextMapPropagator().Extract(r.Context(), propagation.HeaderCarrier(r.Header))
		ctx, span := tracer.Start(ctx, r.Method+" "+r.URL.Path,
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(requestAttributes(r)...),
		)
		defer span.End()

		if id := GetRequestID(ctx); id != "" {
			span.SetAttributes(attribute.String("request_id", id))
		}

		sw := &spanStatusWriter{ResponseWriter: w, status: http.StatusOK}
		traced := r.WithContext(ctx)
		next.ServeHTTP(sw, traced)

		// the mux sets Pattern on the request it receives; middleware between
		// here and the mux passes the same pointer through
		if route := strings.TrimPrefix(traced.Pattern, r.Method+" "); route != "" {
			span.SetName(r.Method + " " + route)
			span.SetAttributes(semconv.HTTPRoute(route))
		}
		span.SetAttributes(semconv.HTTPStatusCode(sw.status))
		if sw.status >= http.StatusInternalServerError {
			span.SetStatus(codes.Error, http.StatusText(sw.status))
			return
		}
		span.SetStatus(codes.Ok, "")
	})
}

func requestAttributes(r *http.Request) []attribute.KeyValue {
	scheme := "http"
	switch {
	case r.TLS != nil:
		scheme = "https"
	case r.Header.Get("X-Forwarded-Proto") != "":
		scheme = r.Header.Get("X-Forwarded-Proto")
	}
	return []attribute.KeyValue{
		semconv.HTTPMethod(r.Method),
		semconv.HTTPURL(r.URL.String()),
		semconv.HTTPScheme(scheme),
		semconv.NetHostName(r.Host),
		attribute.String("http.user_agent", r.UserAgent()),
	}
}

type spanStatusWriter struct {
	http.ResponseWriter
	status int
}

func (w *spanStatusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func (w *spanStatusWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	conn, buf, err := http.NewResponseController(w.ResponseWriter).Hijack()
	if err == nil {
		w.status = http.StatusSwitchingProtocols
	}
	return conn, buf, err
}

func (w *spanStatusWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}
