// Package metrics holds the Prometheus collectors exported on /metrics.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups the collectors of the session subsystem.
type Metrics struct {
	registry *prometheus.Registry

	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	LoginsTotal        *prometheus.CounterVec
	RefreshesTotal     *prometheus.CounterVec
	LogoutsTotal       prometheus.Counter
	TempPasswordsTotal *prometheus.CounterVec
	NotificationsTotal *prometheus.CounterVec
	CleanupRemoved     *prometheus.CounterVec
}

// New creates the collectors and registers them on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "portal_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "portal_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		LoginsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "portal_auth_logins_total",
				Help: "Login attempts by outcome",
			},
			[]string{"outcome"},
		),
		RefreshesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "portal_auth_refreshes_total",
				Help: "Refresh token rotations by outcome",
			},
			[]string{"outcome"},
		),
		LogoutsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "portal_auth_logouts_total",
				Help: "Logout calls",
			},
		),
		TempPasswordsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "portal_temp_passwords_total",
				Help: "Temporary password operations by operation and outcome",
			},
			[]string{"operation", "outcome"},
		),
		NotificationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "portal_remote_notifications_total",
				Help: "Kiosk notification relay operations by operation and outcome",
			},
			[]string{"operation", "outcome"},
		),
		CleanupRemoved: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "portal_cleanup_removed_total",
				Help: "Rows removed by housekeeping jobs",
			},
			[]string{"table"},
		),
	}
	m.registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.LoginsTotal,
		m.RefreshesTotal,
		m.LogoutsTotal,
		m.TempPasswordsTotal,
		m.NotificationsTotal,
		m.CleanupRemoved,
		prometheus.NewGoCollector(),
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
	)
	return m
}

// Registry exposes the underlying registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Middleware records request counts and latency.  The route template
// (c.Path()) is used as the label so path parameters such as login codes
// never reach the metric cardinality.
func (m *Metrics) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			if err != nil {
				c.Error(err)
			}
			path := c.Path()
			if path == "" {
				path = "unmatched"
			}
			method := c.Request().Method
			m.HTTPRequestsTotal.WithLabelValues(method, path, strconv.Itoa(c.Response().Status)).Inc()
			m.HTTPRequestDuration.WithLabelValues(method, path).Observe(time.Since(start).Seconds())
			return nil
		}
	}
}
