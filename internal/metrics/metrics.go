package metrics

import (
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "poster_formatter"

// Metrics holds every collector the service exports. It implements
// session.Recorder.
type Metrics struct {
	UploadsTotal      *prometheus.CounterVec
	DecodeFailures    prometheus.Counter
	ComposeDuration   *prometheus.HistogramVec
	CompositionsTotal *prometheus.CounterVec
	SupersededTotal   prometheus.Counter
	ActiveSessions    prometheus.GaugeFunc
	RequestDuration   *prometheus.HistogramVec
	RequestsTotal     *prometheus.CounterVec
	InFlightGauge     prometheus.Gauge
}

// New creates and registers the collectors on reg. activeSessions is polled on
// scrape.
func New(reg prometheus.Registerer, activeSessions func() int) *Metrics {
	m := &Metrics{
		UploadsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "uploads_total",
			Help:      "Images decoded successfully, by source format.",
		}, []string{"format"}),
		DecodeFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "decode_failures_total",
			Help:      "Uploads that could not be decoded.",
		}),
		ComposeDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "compose_duration_seconds",
			Help:      "Time to compose and encode one output image.",
			Buckets:   []float64{.05, .1, .25, .5, 1, 2.5, 5, 10},
		}, []string{"preset"}),
		CompositionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "compositions_total",
			Help:      "Output images composed, by preset.",
		}, []string{"preset"}),
		SupersededTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "superseded_results_total",
			Help:      "Decode or compose results dropped because newer input arrived.",
		}),
		RequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests in seconds.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route", "status_code"}),
		RequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests.",
		}, []string{"method", "route", "status_code"}),
		InFlightGauge: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "in_flight_requests",
			Help:      "Number of HTTP requests currently being processed.",
		}),
	}
	m.ActiveSessions = prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "active_sessions",
		Help:      "Browser sessions held in memory.",
	}, func() float64 {
		if activeSessions == nil {
			return 0
		}
		return float64(activeSessions())
	})

	reg.MustRegister(
		m.UploadsTotal, m.DecodeFailures, m.ComposeDuration, m.CompositionsTotal,
		m.SupersededTotal, m.ActiveSessions,
		m.RequestDuration, m.RequestsTotal, m.InFlightGauge,
	)
	return m
}

func (m *Metrics) UploadDecoded(format string) {
	m.UploadsTotal.WithLabelValues(format).Inc()
}

func (m *Metrics) DecodeFailed() {
	m.DecodeFailures.Inc()
}

func (m *Metrics) Composed(preset string, elapsed time.Duration) {
	m.CompositionsTotal.WithLabelValues(preset).Inc()
	m.ComposeDuration.WithLabelValues(preset).Observe(elapsed.Seconds())
}

func (m *Metrics) Superseded() {
	m.SupersededTotal.Inc()
}

// Middleware returns an Echo middleware that records HTTP metrics.
// It skips /metrics and /health/* endpoints.
func (m *Metrics) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			path := c.Path()
			if path == "/metrics" || strings.HasPrefix(path, "/health/") {
				return next(c)
			}

			m.InFlightGauge.Inc()
			defer m.InFlightGauge.Dec()

			timer := prometheus.NewTimer(prometheus.ObserverFunc(func(v float64) {
				status := strconv.Itoa(c.Response().Status)
				m.RequestDuration.WithLabelValues(c.Request().Method, path, status).Observe(v)
				m.RequestsTotal.WithLabelValues(c.Request().Method, path, status).Inc()
			}))

			// Let echo write the error response first so the recorded
			// status is the one the client sees. The error handler skips
			// committed responses, so returning err does not write twice.
			err := next(c)
			if err != nil {
				c.Error(err)
			}
			timer.ObserveDuration()
			return err
		}
	}
}
