package server

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/example/go-bpetrain/internal/metrics"
)

// RequestIDHeader carries the request ID in both directions. A client-supplied
// value is kept; otherwise a random UUID is assigned.
const RequestIDHeader = "X-Request-Id"

type requestIDKey struct{}

func withRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

// RequestID returns the ID assigned to the request carried by ctx, or "".
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

var knownRoutes = map[string]bool{
	"/health": true,
	"/vocab":  true,
	"/encode": true,
	"/decode": true,
}

// statusRecorder captures the status code written by the wrapped handler.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// instrument tags each request with an ID and records request count and
// latency for every route except /metrics itself. Unknown paths share the
// "other" label.
func instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, id)
		r = r.WithContext(withRequestID(r.Context(), id))

		if r.URL.Path == "/metrics" {
			next.ServeHTTP(w, r)
			return
		}

		route := r.URL.Path
		if !knownRoutes[route] {
			route = "other"
		}

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		next.ServeHTTP(rec, r)
		metrics.RecordRequest(route, rec.status, time.Since(start))
	})
}
