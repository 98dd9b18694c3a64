package monitoring

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ticketOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ticket_operations_total",
			Help: "Total ticket lifecycle operations by outcome",
		},
		[]string{"operation", "status"},
	)

	eventsPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ticket_events_published_total",
			Help: "Lifecycle events published to the broker",
		},
		[]string{"kind"},
	)

	requestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request handling duration",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "status"},
	)
)

// Operation records the outcome of a service-level ticket operation.
func Operation(operation string, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	ticketOperations.WithLabelValues(operation, status).Inc()
}

// EventPublished counts a successfully published lifecycle event.
func EventPublished(kind string) {
	eventsPublished.WithLabelValues(kind).Inc()
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Middleware observes request durations labeled by method and status code.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		requestDuration.WithLabelValues(r.Method, strconv.Itoa(rec.status)).Observe(time.Since(start).Seconds())
	})
}
