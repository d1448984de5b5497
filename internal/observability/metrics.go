package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Upstream label values.
const (
	UpstreamCMS       = "cms"
	UpstreamTarget    = "target"
	UpstreamAnalytics = "analytics"
	UpstreamPostgres  = "postgres"
)

var (
	RequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "homepage_requests_total",
			Help: "Total homepage requests",
		}, []string{"code"},
	)
	Latency = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "homepage_request_duration_seconds",
		Help:    "Request latency seconds",
		Buckets: prometheus.DefBuckets,
	})
	InFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "homepage_in_flight",
		Help: "In-flight HTTP requests",
	})
	RequestErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "homepage_request_errors_total",
			Help: "Total errors by type",
		}, []string{"type"},
	)
	UpstreamRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "homepage_upstream_requests_total",
			Help: "Outbound calls by upstream and outcome",
		}, []string{"upstream", "outcome"},
	)
	UpstreamLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "homepage_upstream_duration_seconds",
		Help:    "Outbound call latency seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"upstream"})
	FallbackServed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "homepage_fallback_served_total",
			Help: "Sections served from the last-known-good store",
		}, []string{"collection"},
	)
	Personalized = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "homepage_personalization_total",
			Help: "Personalization decisions by result (skipped, offer, no_offer, failed)",
		}, []string{"result"},
	)
	CircuitBreakerState = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "homepage_circuit_breaker_state",
		Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
	}, []string{"name"})
)

func init() {
	prometheus.MustRegister(
		RequestsTotal, Latency, InFlight, RequestErrors,
		UpstreamRequests, UpstreamLatency, FallbackServed, Personalized, CircuitBreakerState,
	)
}

func MetricsHandler() http.Handler { return promhttp.Handler() }

type rec struct {
	http.ResponseWriter
	code int
}

func (r *rec) WriteHeader(code int) {
	r.code = code
	r.ResponseWriter.WriteHeader(code)
}

func Measure(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		InFlight.Inc()
		defer InFlight.Dec()

		rr := &rec{ResponseWriter: w, code: http.StatusOK}
		next.ServeHTTP(rr, r)

		Latency.Observe(time.Since(start).Seconds())
		RequestsTotal.WithLabelValues(strconv.Itoa(rr.code)).Inc()
	})
}
