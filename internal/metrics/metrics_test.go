package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMiddlewareCountsRequests(t *testing.T) {
	m := New(prometheus.NewRegistry())
	e := echo.New()
	e.Use(m.Middleware())
	e.GET("/categories/:id", func(c echo.Context) error {
		return c.NoContent(http.StatusNoContent)
	})

	for i := 0; i < 2; i++ {
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/categories/abc", nil))
		assert.Equal(t, http.StatusNoContent, rec.Code)
	}

	assert.Equal(t, float64(2), testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues("GET", "/categories/:id", "204")))
}

func TestRecorders(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.RecordCategoryOperation("update", errors.New("cycle"))
	m.RecordCategoryOperation("update", nil)
	m.RecordStockAdjustment("purchase")
	m.RecordStockRejection("NEGATIVE_STOCK")
	m.RecordStockRetry()
	m.SetLedgerDrift(3)
	m.RecordJobFailure("ledger-reconcile")

	assert.Equal(t, float64(1), testutil.ToFloat64(m.CategoryOperations.WithLabelValues("update", "error")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.StockAdjustments.WithLabelValues("purchase")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.StockRetries))
	assert.Equal(t, float64(3), testutil.ToFloat64(m.LedgerDriftProducts))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.JobFailures.WithLabelValues("ledger-reconcile")))
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.RecordStockAdjustment("purchase")
		m.SetLowStock(1)
		m.RecordJobFailure("low-stock-alerts")
	})
}
