// Package trace assigns every request an id and counts traffic for /metrics.
package trace

import (
	"context"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

type contextKey string

const (
	requestIDKey contextKey = "request_id"

	// HeaderRequestID is accepted from upstream proxies and echoed back.
	HeaderRequestID = "X-Request-ID"
)

// Metrics is a snapshot of the request counters.
type Metrics struct {
	TotalRequests int64
	InFlight      int64
	ServerErrors  int64
	// AverageResponseTime in microseconds over all completed requests.
	AverageResponseTime int64
}

type Middleware struct {
	total       atomic.Int64
	inFlight    atomic.Int64
	serverErrs  atomic.Int64
	durationSum atomic.Int64
}

func NewMiddleware() *Middleware {
	return &Middleware{}
}

// Middleware stores the request id in the context and the response headers.
// An upstream X-Request-ID is reused when it parses as a UUID.
func (m *Middleware) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		m.total.Add(1)
		m.inFlight.Add(1)
		defer m.inFlight.Add(-1)

		requestID := r.Header.Get(HeaderRequestID)
		if _, err := uuid.Parse(requestID); err != nil {
			requestID = uuid.NewString()
		}
		w.Header().Set(HeaderRequestID, requestID)

		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(rw, r.WithContext(WithRequestID(r.Context(), requestID)))

		if rw.statusCode >= 500 {
			m.serverErrs.Add(1)
		}
		m.durationSum.Add(time.Since(start).Microseconds())
	})
}

type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

// GetRequestID extracts the request ID from context
func GetRequestID(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey).(string); ok {
		return id
	}
	return ""
}

// RequestID reads the id of r; it plugs into log.Middleware.
func RequestID(r *http.Request) string {
	return GetRequestID(r.Context())
}

// GetMetrics returns current metrics
func (m *Middleware) GetMetrics() Metrics {
	out := Metrics{
		TotalRequests: m.total.Load(),
		InFlight:      m.inFlight.Load(),
		ServerErrors:  m.serverErrs.Load(),
	}
	if done := out.TotalRequests - out.InFlight; done > 0 {
		out.AverageResponseTime = m.durationSum.Load() / done
	}
	return out
}
