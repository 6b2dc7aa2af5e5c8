package middleware

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"github.com/freshmarket/grocery-backend/pkg/logger"
	"github.com/freshmarket/grocery-backend/pkg/metrics"
)

const tracerName = "freshmarket.http"

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (w *statusRecorder) WriteHeader(code int) {
	if w.status == 0 {
		w.status = code
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusRecorder) Write(b []byte) (int, error) {
	if w.status == 0 {
		w.status = http.StatusOK
	}
	return w.ResponseWriter.Write(b)
}

func (w *statusRecorder) code() int {
	if w.status == 0 {
		return http.StatusOK
	}
	return w.status
}

// Tracing extracts W3C trace context and opens a server span per request.
// The span is renamed to the chi route template once routing has finished.
func Tracing(logg *logger.Logger) func(http.Handler) http.Handler {
	prop := otel.GetTextMapPropagator()
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			parent := prop.Extract(r.Context(), propagation.HeaderCarrier(r.Header))
			ctx, span := otel.Tracer(tracerName).Start(parent, r.Method+" "+r.URL.Path,
				trace.WithSpanKind(trace.SpanKindServer),
				trace.WithAttributes(
					attribute.String("http.method", r.Method),
					attribute.String("http.target", r.URL.Path),
					attribute.String("http.user_agent", r.UserAgent()),
					attribute.String("http.request_id", RequestIDFromContext(r.Context())),
				),
			)
			defer span.End()

			if sc := span.SpanContext(); sc.IsValid() && logg != nil {
				ctx = logg.WithFields(ctx, map[string]any{
					"trace_id": sc.TraceID().String(),
					"span_id":  sc.SpanID().String(),
				})
			}

			rec := &statusRecorder{ResponseWriter: w}
			next.ServeHTTP(rec, r.WithContext(ctx))

			route := routeTemplate(r)
			span.SetName(r.Method + " " + route)
			span.SetAttributes(
				attribute.String("http.route", route),
				attribute.Int("http.status_code", rec.code()),
			)
			if rec.code() >= http.StatusInternalServerError {
				span.SetStatus(codes.Error, http.StatusText(rec.code()))
			}
		})
	}
}

// Metrics records request counts and latency labelled by route template.
func Metrics(m *metrics.HTTP) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if m == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w}
			next.ServeHTTP(rec, r)
			m.Observe(r.Method, routeTemplate(r), rec.code(), time.Since(start))
		})
	}
}

// routeTemplate keeps metric labels low-cardinality: unmatched paths collapse
// into a single "unmatched" label.
func routeTemplate(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if pattern := rctx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return "unmatched"
}
