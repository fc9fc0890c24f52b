package telemetry

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/hospital/hospital-backend/internal/platform/apperr"
)

func newTestServer() *echo.Echo {
	e := echo.New()
	e.Use(Middleware())
	e.GET("/ok", func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	})
	e.GET("/forbidden", func(c echo.Context) error {
		return apperr.Forbidden("forbidden")
	})
	e.GET("/boom", func(c echo.Context) error {
		return errors.New("boom")
	})
	e.GET("/metrics", echo.WrapHandler(Handler()))
	return e
}

func TestMiddleware_CountsByRouteAndStatus(t *testing.T) {
	e := newTestServer()

	cases := []struct {
		path   string
		status string
	}{
		{"/ok", "200"},
		{"/forbidden", "403"},
		{"/boom", "500"},
	}
	for _, tc := range cases {
		before := testutil.ToFloat64(httpRequestsTotal.WithLabelValues(http.MethodGet, tc.path, tc.status))

		req := httptest.NewRequest(http.MethodGet, tc.path, nil)
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)

		after := testutil.ToFloat64(httpRequestsTotal.WithLabelValues(http.MethodGet, tc.path, tc.status))
		if after-before != 1 {
			t.Errorf("%s: expected counter for status %s to grow by 1, got %v", tc.path, tc.status, after-before)
		}
	}
}

func TestObserveScan(t *testing.T) {
	before := testutil.CollectAndCount(recordsScanned)
	ObserveScan("test_view", 42, 15*time.Millisecond)
	if got := testutil.CollectAndCount(recordsScanned); got != before+1 {
		t.Errorf("expected one new series, got %d (was %d)", got, before)
	}
}

func TestRecordAuditEvent(t *testing.T) {
	sent := testutil.ToFloat64(auditEvents.WithLabelValues("sent"))
	failed := testutil.ToFloat64(auditEvents.WithLabelValues("failed"))

	RecordAuditEvent(nil)
	RecordAuditEvent(errors.New("queue down"))

	if got := testutil.ToFloat64(auditEvents.WithLabelValues("sent")); got != sent+1 {
		t.Errorf("sent: expected %v, got %v", sent+1, got)
	}
	if got := testutil.ToFloat64(auditEvents.WithLabelValues("failed")); got != failed+1 {
		t.Errorf("failed: expected %v, got %v", failed+1, got)
	}
}

func TestHandler_Scrape(t *testing.T) {
	e := newTestServer()
	e.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/ok", nil))

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "http_requests_total") {
		t.Error("expected scrape output to contain http_requests_total")
	}
}
