// Package server implements the HTTP surface (§6): intent execution,
// plan-only, streaming, and health endpoints, plus the request middleware
// and response-writer wrapper the teacher's core package uses.
//
// Grounded on core.responseWriter/core.LoggingMiddleware (wrap
// http.ResponseWriter to capture status, log slow/error requests, only log
// everything in dev mode); adapted here into one pass that also stamps and
// guarantees the correlation-id/trace-id response headers §6 requires on
// every response, since the teacher has no equivalent of those ids.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// Logger is the minimal logging surface the server needs.
type Logger interface {
	Info(msg string, fields map[string]any)
	Warn(msg string, fields map[string]any)
	Error(msg string, fields map[string]any)
}

type noopLogger struct{}

func (noopLogger) Info(string, map[string]any)  {}
func (noopLogger) Warn(string, map[string]any)  {}
func (noopLogger) Error(string, map[string]any) {}

// responseWriter wraps http.ResponseWriter to capture the status code and
// byte count written, support Flush for SSE handlers, and guarantee the
// correlation-id/trace-id headers land on the wire even if the wrapped
// handler writes a body without ever touching headers itself (e.g. a bare
// json.NewEncoder(w).Encode in a handler that forgot to call WriteHeader).
type responseWriter struct {
	http.ResponseWriter
	correlationID string
	traceID       string
	statusCode    int
	bytesWritten  int64
	written       bool
}

// ensureHeaders stamps the correlation/trace headers once, the first time
// the response is about to commit. Safe to call more than once.
func (rw *responseWriter) ensureHeaders() {
	h := rw.ResponseWriter.Header()
	if h.Get("X-Correlation-Id") == "" {
		h.Set("X-Correlation-Id", rw.correlationID)
	}
	if h.Get("X-Trace-Id") == "" {
		h.Set("X-Trace-Id", rw.traceID)
	}
}

func (rw *responseWriter) WriteHeader(code int) {
	if !rw.written {
		rw.ensureHeaders()
		rw.statusCode = code
		rw.written = true
		rw.ResponseWriter.WriteHeader(code)
	}
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	if !rw.written {
		rw.ensureHeaders()
		rw.statusCode = http.StatusOK
		rw.written = true
	}
	n, err := rw.ResponseWriter.Write(b)
	rw.bytesWritten += int64(n)
	return n, err
}

func (rw *responseWriter) Flush() {
	if flusher, ok := rw.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

// contextKey namespaces values this package stores on a request context.
type contextKey string

const (
	correlationIDKey contextKey = "correlationId"
	traceIDKey       contextKey = "traceId"
)

func contextWithCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, correlationIDKey, id)
}

// correlationIDFromContext retrieves the correlation id RequestMiddleware
// stashed, or "" if none is present.
func correlationIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(correlationIDKey).(string)
	return id
}

func contextWithTraceID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, traceIDKey, id)
}

// traceIDFromContext retrieves the trace id RequestMiddleware stashed, or ""
// if none is present.
func traceIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(traceIDKey).(string)
	return id
}

// RequestMiddleware is the gateway's single request-scoped pass: it assigns
// every request a correlation id (from the X-Correlation-Id request header,
// or a freshly generated one, per I8) and a trace id (always freshly
// generated, an internal observability handle distinct from the
// caller-supplied correlation id), attaches both to the request context and
// to every response (§6 "response headers on every response"), and logs the
// request the way the teacher's LoggingMiddleware does: always in devMode,
// otherwise only errors (>=400) and slow requests (>1s).
func RequestMiddleware(logger Logger, devMode bool) func(http.Handler) http.Handler {
	if logger == nil {
		logger = noopLogger{}
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			correlationID := r.Header.Get("X-Correlation-Id")
			if correlationID == "" {
				correlationID = uuid.NewString()
			}
			traceID := uuid.NewString()

			wrapped := &responseWriter{
				ResponseWriter: w,
				correlationID:  correlationID,
				traceID:        traceID,
				statusCode:     http.StatusOK,
			}

			ctx := contextWithCorrelationID(r.Context(), correlationID)
			ctx = contextWithTraceID(ctx, traceID)

			start := time.Now()
			next.ServeHTTP(wrapped, r.WithContext(ctx))
			duration := time.Since(start)

			// Guarantee the headers are present even for a handler that
			// never wrote a body (e.g. a zero-length 204 response).
			wrapped.ensureHeaders()

			shouldLog := devMode || wrapped.statusCode >= 400 || duration > time.Second
			if !shouldLog {
				return
			}

			fields := map[string]any{
				"method":         r.Method,
				"path":           r.URL.Path,
				"status":         wrapped.statusCode,
				"duration_ms":    duration.Milliseconds(),
				"bytes":          wrapped.bytesWritten,
				"correlation_id": correlationID,
				"trace_id":       traceID,
			}
			switch {
			case wrapped.statusCode >= 500:
				logger.Error("http request error", fields)
			case wrapped.statusCode >= 400:
				logger.Warn("http request client error", fields)
			case duration > time.Second:
				logger.Warn("http request slow", fields)
			default:
				logger.Info("http request", fields)
			}
		})
	}
}
