package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	dto "github.com/prometheus/client_model/go"
)

var (
	// Registry holds the storefront Prometheus collectors.
	Registry = prometheus.NewRegistry()

	clientRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "storefront",
			Subsystem: "client",
			Name:      "requests_total",
			Help:      "Outbound API requests by outcome.",
		},
		[]string{"method", "path", "outcome"},
	)

	clientDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "storefront",
			Subsystem: "client",
			Name:      "request_duration_seconds",
			Help:      "Duration of outbound API requests.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 12), // 5ms to ~10s
		},
		[]string{"method", "path"},
	)

	clientRetries = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "storefront",
			Subsystem: "client",
			Name:      "retries_total",
			Help:      "Automatic retries of read requests.",
		},
		[]string{"path"},
	)

	sessionEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "storefront",
			Subsystem: "session",
			Name:      "events_total",
			Help:      "Session lifecycle events (login, logout, rotation, expiry).",
		},
		[]string{"event"},
	)

	cacheLookups = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "storefront",
			Subsystem: "cache",
			Name:      "lookups_total",
			Help:      "Client cache lookups by result.",
		},
		[]string{"cache", "result"},
	)

	backendRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "storefront",
			Subsystem: "backend",
			Name:      "requests_total",
			Help:      "Requests handled by the reference backend.",
		},
		[]string{"method", "path", "status"},
	)
)

// Session events
const (
	EventLogin        = "login"
	EventRegister     = "register"
	EventLogout       = "logout"
	EventRotation     = "rotation"
	EventUnauthorized = "unauthorized"
)

func init() {
	Registry.MustRegister(
		clientRequests,
		clientDuration,
		clientRetries,
		sessionEvents,
		cacheLookups,
		backendRequests,
	)
}

// Handler returns an HTTP handler exposing the registered metrics.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// RecordRequest records one outbound request. outcome is the status code,
// or "network" when no response was received.
func RecordRequest(method, path, outcome string, duration time.Duration) {
	path = CanonicalPath(path)
	clientRequests.WithLabelValues(method, path, outcome).Inc()
	clientDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

func RecordRetry(path string) {
	clientRetries.WithLabelValues(CanonicalPath(path)).Inc()
}

func RecordSessionEvent(event string) {
	sessionEvents.WithLabelValues(event).Inc()
}

func RecordCacheLookup(cache string, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	cacheLookups.WithLabelValues(cache, result).Inc()
}

// SessionEventCount returns the current count for a session event
func SessionEventCount(event string) float64 {
	return counterValue(sessionEvents.WithLabelValues(event))
}

// CacheLookupCount returns the current count for a cache and result
func CacheLookupCount(cache, result string) float64 {
	return counterValue(cacheLookups.WithLabelValues(cache, result))
}

// InstrumentHandler wraps the provided handler with request counting.
func InstrumentHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		backendRequests.WithLabelValues(strings.ToUpper(r.Method), CanonicalPath(r.URL.Path), strconv.Itoa(rec.status)).Inc()
	})
}

// CanonicalPath replaces numeric path segments with :id to keep label cardinality bounded.
func CanonicalPath(path string) string {
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}
	segments := strings.Split(path, "/")
	for i, seg := range segments {
		if seg == "" {
			continue
		}
		if _, err := strconv.Atoi(seg); err == nil {
			segments[i] = ":id"
		}
	}
	return strings.Join(segments, "/")
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func counterValue(c prometheus.Counter) float64 {
	m := &dto.Metric{}
	if err := c.Write(m); err != nil {
		return 0
	}
	return m.GetCounter().GetValue()
}
