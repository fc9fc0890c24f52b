// Package telemetry exposes Prometheus collectors for the HTTP surface and
// for the full-table scans behind the admin views.
package telemetry

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hospital/hospital-backend/internal/platform/apperr"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"method", "route"},
	)

	httpRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "http_requests_in_flight",
			Help: "Number of HTTP requests currently being processed",
		},
	)

	recordsScanned = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "patient_records_scanned",
			Help:    "Number of patient records read by one metrics scan",
			Buckets: prometheus.ExponentialBuckets(10, 4, 8),
		},
		[]string{"view"},
	)

	scanDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "record_scan_duration_seconds",
			Help:    "Duration of a full record store scan in seconds",
			Buckets: []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		},
		[]string{"view"},
	)

	auditEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "audit_events_total",
			Help: "Total number of audit events handed to the recorder",
		},
		[]string{"outcome"},
	)
)

// Handler returns the Prometheus scrape handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveScan records one full read of the record store made for the named
// admin view.
func ObserveScan(view string, records int, d time.Duration) {
	recordsScanned.WithLabelValues(view).Observe(float64(records))
	scanDuration.WithLabelValues(view).Observe(d.Seconds())
}

// RecordAuditEvent counts an audit event by whether the recorder accepted it.
func RecordAuditEvent(err error) {
	outcome := "sent"
	if err != nil {
		outcome = "failed"
	}
	auditEvents.WithLabelValues(outcome).Inc()
}

// Middleware records request counts and latency. The route label is the
// registered route pattern so path parameters never widen cardinality.
func Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			httpRequestsInFlight.Inc()
			defer httpRequestsInFlight.Dec()

			err := next(c)

			route := c.Path()
			if route == "" {
				route = "unmatched"
			}
			method := c.Request().Method
			status := strconv.Itoa(statusOf(c, err))

			httpRequestsTotal.WithLabelValues(method, route, status).Inc()
			httpRequestDuration.WithLabelValues(method, route).Observe(time.Since(start).Seconds())
			return err
		}
	}
}

// statusOf predicts the status the error handler will write when the
// handler returned an error before committing a response.
func statusOf(c echo.Context, err error) int {
	if err == nil || c.Response().Committed {
		return c.Response().Status
	}
	if ae, ok := apperr.As(err); ok {
		return ae.HTTPStatus
	}
	var he *echo.HTTPError
	if errors.As(err, &he) {
		return he.Code
	}
	return http.StatusInternalServerError
}
