package observability

import (
	"net/http"
	"strconv"
	"time"

	"society-live/errors"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups every collector of the broadcaster.
// Each instance registers on its own Registerer so tests can use a fresh registry.
type Metrics struct {
	SessionsActive prometheus.Gauge
	Rooms          prometheus.Gauge
	AuthFailures   prometheus.Counter
	Broadcasts     *prometheus.CounterVec
	Deliveries     *prometheus.CounterVec
	Votes          *prometheus.CounterVec
	Bookings       *prometheus.CounterVec
	Notifications  prometheus.Counter
	ProcessRSS     prometheus.Gauge
	ProcessCPU     prometheus.Gauge

	httpInFlight        prometheus.Gauge
	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		SessionsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "society_sessions_active",
			Help: "Connected client sessions.",
		}),
		Rooms: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "society_rooms",
			Help: "Rooms with at least one member.",
		}),
		AuthFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "society_auth_failures_total",
			Help: "Refused connection credentials.",
		}),
		Broadcasts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "society_broadcasts_total",
			Help: "Room broadcasts by event name.",
		}, []string{"event"}),
		Deliveries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "society_deliveries_total",
			Help: "Per-connection deliveries by result.",
		}, []string{"result"}),
		Votes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "society_votes_total",
			Help: "Vote attempts by result.",
		}, []string{"result"}),
		Bookings: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "society_bookings_total",
			Help: "Booking attempts by result.",
		}, []string{"result"}),
		Notifications: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "society_notifications_total",
			Help: "Notifications created.",
		}),
		ProcessRSS: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "society_process_rss_bytes",
			Help: "Resident memory of the broadcaster process.",
		}),
		ProcessCPU: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "society_process_cpu_percent",
			Help: "CPU usage of the broadcaster process.",
		}),
		httpInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "http_in_flight_requests",
			Help: "In-flight HTTP requests.",
		}),
		httpRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		}, []string{"method", "path", "status"}),
		httpRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latencies in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path", "status"}),
	}
	reg.MustRegister(
		m.SessionsActive, m.Rooms, m.AuthFailures,
		m.Broadcasts, m.Deliveries, m.Votes, m.Bookings, m.Notifications,
		m.ProcessRSS, m.ProcessCPU,
		m.httpInFlight, m.httpRequestsTotal, m.httpRequestDuration,
	)
	return m
}

// Result labels the outcome of a mutation: "ok" or the error kind.
func Result(err error) string {
	if err == nil {
		return "ok"
	}
	return errors.Kind(err)
}

func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// Instrument measures rate, latency and in-flight requests. The path label is
// the route pattern so ids don't explode cardinality.
func (m *Metrics) Instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m.httpInFlight.Inc()
		defer m.httpInFlight.Dec()
		start := time.Now()

		sw := &statusWriter{ResponseWriter: w, code: http.StatusOK}
		next.ServeHTTP(sw, r)

		path := r.Pattern
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			path = rctx.RoutePattern()
		}
		if path == "" {
			path = "unmatched"
		}
		status := strconv.Itoa(sw.code)
		m.httpRequestDuration.WithLabelValues(r.Method, path, status).Observe(time.Since(start).Seconds())
		m.httpRequestsTotal.WithLabelValues(r.Method, path, status).Inc()
	})
}

type statusWriter struct {
	http.ResponseWriter
	code int
}

func (w *statusWriter) WriteHeader(code int) {
	w.code = code
	w.ResponseWriter.WriteHeader(code)
}
