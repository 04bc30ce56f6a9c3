package telemetry

import (
	"strconv"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the Prometheus collectors. Each Metrics has its own registry
// so tests can build as many as they like. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	registry *prometheus.Registry

	httpRequests      *prometheus.CounterVec
	httpDuration      *prometheus.HistogramVec
	httpActive        prometheus.Gauge
	appointmentStatus *prometheus.CounterVec
	invites           *prometheus.CounterVec
	noteVersions      prometheus.Counter
	cacheLookups      *prometheus.CounterVec
	publishFailures   *prometheus.CounterVec
}

func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		httpRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "route", "status_code"},
		),
		httpDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Duration of HTTP requests in seconds",
				Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
			},
			[]string{"method", "route"},
		),
		httpActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "http_active_requests",
			Help: "Number of in-flight HTTP requests",
		}),
		appointmentStatus: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "clinic_appointment_transitions_total",
				Help: "Appointment status transitions",
			},
			[]string{"from", "to"},
		),
		invites: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "clinic_invites_total",
				Help: "Invites by lifecycle event",
			},
			[]string{"event"},
		),
		noteVersions: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "clinic_note_versions_total",
			Help: "Clinical note versions written",
		}),
		cacheLookups: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "clinic_calendar_cache_lookups_total",
				Help: "Calendar cache lookups by result",
			},
			[]string{"result"},
		),
		publishFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "clinic_side_effect_failures_total",
				Help: "Best-effort side effects that failed (events, notifications, cache)",
			},
			[]string{"kind"},
		),
	}

	m.registry.MustRegister(
		m.httpRequests,
		m.httpDuration,
		m.httpActive,
		m.appointmentStatus,
		m.invites,
		m.noteVersions,
		m.cacheLookups,
		m.publishFailures,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Registry exposes the registry for extra collectors and tests.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// RegisterPool exports pgxpool statistics.
func (m *Metrics) RegisterPool(pool *pgxpool.Pool) {
	if m == nil || pool == nil {
		return
	}
	m.registry.MustRegister(
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "db_pool_acquired_connections",
			Help: "Connections currently acquired from the pool",
		}, func() float64 { return float64(pool.Stat().AcquiredConns()) }),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "db_pool_idle_connections",
			Help: "Idle connections in the pool",
		}, func() float64 { return float64(pool.Stat().IdleConns()) }),
	)
}

func (m *Metrics) AppointmentTransition(from, to string) {
	if m == nil {
		return
	}
	m.appointmentStatus.WithLabelValues(from, to).Inc()
}

// InviteEvent counts issued, redeemed and revoked invites.
func (m *Metrics) InviteEvent(event string) {
	if m == nil {
		return
	}
	m.invites.WithLabelValues(event).Inc()
}

func (m *Metrics) NoteVersionWritten() {
	if m == nil {
		return
	}
	m.noteVersions.Inc()
}

func (m *Metrics) CacheLookup(hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.cacheLookups.WithLabelValues(result).Inc()
}

// SideEffectFailed counts a best-effort step that failed after the primary
// write committed.
func (m *Metrics) SideEffectFailed(kind string) {
	if m == nil {
		return
	}
	m.publishFailures.WithLabelValues(kind).Inc()
}

// Middleware records request counts, latencies and in-flight requests,
// labelled by route pattern rather than raw path.
func (m *Metrics) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			m.httpActive.Inc()
			start := time.Now()

			err := next(c)

			m.httpActive.Dec()
			route := c.Path()
			if route == "" {
				route = "unmatched"
			}
			status := c.Response().Status
			if he, ok := err.(*echo.HTTPError); ok {
				status = he.Code
			}
			method := c.Request().Method
			m.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
			m.httpDuration.WithLabelValues(method, route).Observe(time.Since(start).Seconds())
			return err
		}
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() echo.HandlerFunc {
	return echo.WrapHandler(promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}))
}
