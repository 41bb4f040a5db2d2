package middleware

import (
	"context"
	"net/http"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

type loggerKey struct{}

// WithTraceLogger stores a request-scoped logger carrying the active trace
// and span IDs in the request context, so handlers can correlate log lines
// with traces.
func WithTraceLogger(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if fields := traceFields(r.Context()); fields != nil {
				ctx := context.WithValue(r.Context(), loggerKey{}, logger.With(fields...))
				r = r.WithContext(ctx)
			}
			next.ServeHTTP(w, r)
		})
	}
}

// LoggerFromContext returns the request-scoped logger, or the fallback
// annotated with trace IDs when a span is active but no logger was stored.
func LoggerFromContext(ctx context.Context, fallback *zap.Logger) *zap.Logger {
	if logger, ok := ctx.Value(loggerKey{}).(*zap.Logger); ok {
		return logger
	}
	if fields := traceFields(ctx); fields != nil {
		return fallback.With(fields...)
	}
	return fallback
}

// LoggerFromRequest returns the request-scoped logger for an HTTP request.
func LoggerFromRequest(r *http.Request, fallback *zap.Logger) *zap.Logger {
	return LoggerFromContext(r.Context(), fallback)
}

func traceFields(ctx context.Context) []zap.Field {
	sc := trace.SpanFromContext(ctx).SpanContext()
	if !sc.IsValid() {
		return nil
	}
	return []zap.Field{
		zap.String("trace_id", sc.TraceID().String()),
		zap.String("span_id", sc.SpanID().String()),
	}
}
