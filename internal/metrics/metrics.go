// Package metrics exposes Prometheus collectors for the HTTP layer and the
// game's domain events.
//
// Each Metrics value owns a private registry, so tests can build as many as
// they like without "duplicate metrics collector registration" panics.
package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "candle_clicker"

// Metrics groups every collector the server records into.
type Metrics struct {
	registry *prometheus.Registry

	httpInFlight prometheus.Gauge
	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec

	accountsRegistered prometheus.Counter
	logins             *prometheus.CounterVec
	progressSyncs      prometheus.Counter
	publications       prometheus.Counter
	messagesSent       prometheus.Counter
	messagesExpired    prometheus.Counter
	sweepRuns          *prometheus.CounterVec
}

// New creates a Metrics with its own registry, including the Go runtime and
// process collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),

		httpInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "inflight_requests",
			Help:      "Current number of in-flight HTTP requests.",
		}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
		}, []string{"method", "route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10), // 5ms to ~2.5s
		}, []string{"method", "route"}),

		accountsRegistered: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "accounts",
			Name:      "registered_total",
			Help:      "Accounts created.",
		}),
		logins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "accounts",
			Name:      "logins_total",
			Help:      "Login attempts by outcome.",
		}, []string{"success"}),
		progressSyncs: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "progress",
			Name:      "syncs_total",
			Help:      "Live progress pushes accepted.",
		}),
		publications: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "progress",
			Name:      "publications_total",
			Help:      "Progress snapshots published to a feed.",
		}),
		messagesSent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "messages",
			Name:      "sent_total",
			Help:      "Direct messages stored.",
		}),
		messagesExpired: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "messages",
			Name:      "expired_total",
			Help:      "Expired direct messages removed by the sweeper.",
		}),
		sweepRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "messages",
			Name:      "sweep_runs_total",
			Help:      "Expiry sweeps by outcome.",
		}, []string{"success"}),
	}

	m.registry.MustRegister(
		m.httpInFlight,
		m.httpRequests,
		m.httpDuration,
		m.accountsRegistered,
		m.logins,
		m.progressSyncs,
		m.publications,
		m.messagesSent,
		m.messagesExpired,
		m.sweepRuns,
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
		prometheus.NewGoCollector(),
	)

	return m
}

// Registry returns the registry backing m.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler returns an HTTP handler exposing the registered metrics.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// InstrumentHandler is chi middleware recording request count, latency and
// in-flight requests. Routes are labelled with their chi pattern
// ("/profile/{userId}") rather than the raw path, to keep cardinality bounded.
func (m *Metrics) InstrumentHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/metrics" {
			next.ServeHTTP(w, r)
			return
		}

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()

		m.httpInFlight.Inc()
		defer m.httpInFlight.Dec()

		next.ServeHTTP(rec, r)

		route := routePattern(r)
		method := strings.ToUpper(r.Method)

		m.httpRequests.WithLabelValues(method, route, strconv.Itoa(rec.status)).Inc()
		m.httpDuration.WithLabelValues(method, route).Observe(time.Since(start).Seconds())
	})
}

// AccountRegistered counts a successful registration.
func (m *Metrics) AccountRegistered() { m.accountsRegistered.Inc() }

// LoginAttempt counts a login by outcome.
func (m *Metrics) LoginAttempt(success bool) {
	m.logins.WithLabelValues(strconv.FormatBool(success)).Inc()
}

// ProgressSynced counts an accepted live progress push.
func (m *Metrics) ProgressSynced() { m.progressSyncs.Inc() }

// ProgressPublished counts an appended publication.
func (m *Metrics) ProgressPublished() { m.publications.Inc() }

// MessageSent counts a stored direct message.
func (m *Metrics) MessageSent() { m.messagesSent.Inc() }

// SweepCompleted records one expiry sweep and how many messages it removed.
func (m *Metrics) SweepCompleted(removed int64, err error) {
	m.sweepRuns.WithLabelValues(strconv.FormatBool(err == nil)).Inc()
	if removed > 0 {
		m.messagesExpired.Add(float64(removed))
	}
}

func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if p := rctx.RoutePattern(); p != "" {
			return p
		}
	}
	return "unmatched"
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}
