package obs

import (
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	initOnce sync.Once

	httpInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "http_in_flight_requests",
		Help: "In-flight HTTP requests.",
	})

	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latencies in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)

	permissionChecks = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "plaza_permission_checks_total",
			Help: "Permission checks evaluated before mutations.",
		},
		[]string{"permission", "result"},
	)

	sessionCache = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "plaza_session_cache_total",
			Help: "Session cache lookups by outcome.",
		},
		[]string{"result"},
	)

	reportTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "plaza_report_transitions_total",
			Help: "Moderation actions applied to reports.",
		},
		[]string{"action", "result"},
	)

	ready = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "plaza_ready",
		Help: "1 when the last readiness probe succeeded.",
	})
)

// Init registers all collectors with the default registry. Safe to call more than once.
func Init() {
	initOnce.Do(func() {
		prometheus.MustRegister(
			httpInFlight, httpRequestsTotal, httpRequestDuration,
			permissionChecks, sessionCache, reportTransitions, ready,
		)
	})
}

// Handler serves the Prometheus exposition format.
func Handler() http.Handler {
	return promhttp.Handler()
}

// SetReady records the outcome of the latest readiness probe.
func SetReady(ok bool) {
	if ok {
		ready.Set(1)
		return
	}
	ready.Set(0)
}

// ObservePermissionCheck counts a single permission decision.
func ObservePermissionCheck(permission string, allowed bool) {
	result := "deny"
	if allowed {
		result = "allow"
	}
	permissionChecks.WithLabelValues(permission, result).Inc()
}

// ObserveCacheLookup counts a session cache outcome: hit, miss, expired or error.
func ObserveCacheLookup(result string) {
	sessionCache.WithLabelValues(result).Inc()
}

// ObserveTransition counts a moderation action outcome.
func ObserveTransition(action, result string) {
	reportTransitions.WithLabelValues(action, result).Inc()
}

// Instrument records in-flight, count and latency for every request.
func Instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := CanonicalPath(r.URL.Path)
		method := r.Method

		httpInFlight.Inc()
		defer httpInFlight.Dec()
		start := time.Now()

		sw := &statusWriter{ResponseWriter: w, code: http.StatusOK}
		next.ServeHTTP(sw, r)

		status := strconv.Itoa(sw.code)
		httpRequestDuration.WithLabelValues(method, path, status).Observe(time.Since(start).Seconds())
		httpRequestsTotal.WithLabelValues(method, path, status).Inc()
	})
}

// CanonicalPath collapses identifiers so metric label cardinality stays bounded.
func CanonicalPath(path string) string {
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}
	if path == "" {
		return "/"
	}
	parts := strings.Split(strings.Trim(path, "/"), "/")
	if len(parts) >= 3 && parts[0] == "v1" {
		switch parts[1] {
		case "reports", "bans", "users":
			parts[2] = ":id"
		}
	}
	return "/" + strings.Join(parts, "/")
}

type statusWriter struct {
	http.ResponseWriter
	code int
}

func (w *statusWriter) WriteHeader(code int) {
	w.code = code
	w.ResponseWriter.WriteHeader(code)
}
