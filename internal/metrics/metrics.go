package metrics

import (
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "orgstock"

// Metrics holds the service collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	CategoryOperations *prometheus.CounterVec
	StockAdjustments   *prometheus.CounterVec
	StockRejections    *prometheus.CounterVec
	StockRetries       prometheus.Counter

	LedgerDriftProducts prometheus.Gauge
	LowStockProducts    prometheus.Gauge
	JobFailures         *prometheus.CounterVec
}

// New registers every collector on reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		HTTPRequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		}, []string{"method", "path", "status"}),
		HTTPRequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "Duration of HTTP requests in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "path", "status"}),
		CategoryOperations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "category_operations_total",
			Help:      "Category mutations by operation and outcome",
		}, []string{"operation", "outcome"}),
		StockAdjustments: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stock_adjustments_total",
			Help:      "Committed stock adjustments by log type",
		}, []string{"type"}),
		StockRejections: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stock_adjustment_rejections_total",
			Help:      "Rejected stock adjustments by error kind",
		}, []string{"kind"}),
		StockRetries: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stock_adjustment_retries_total",
			Help:      "Stock adjustments retried after a concurrent write",
		}),
		LedgerDriftProducts: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "ledger_drift_products",
			Help:      "Products whose quantity disagrees with their ledger at the last reconciliation",
		}),
		LowStockProducts: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "low_stock_products",
			Help:      "Products at or below the low stock threshold at the last scan",
		}),
		JobFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "job_failures_total",
			Help:      "Background job runs that returned an error",
		}, []string{"job"}),
	}
}

// Middleware records request counts and latency per route.
func (m *Metrics) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if m == nil {
				return next(c)
			}
			start := time.Now()
			err := next(c)

			status := c.Response().Status
			if err != nil {
				if he, ok := err.(*echo.HTTPError); ok {
					status = he.Code
				}
			}
			labels := []string{c.Request().Method, c.Path(), strconv.Itoa(status)}
			m.HTTPRequestsTotal.WithLabelValues(labels...).Inc()
			m.HTTPRequestDuration.WithLabelValues(labels...).Observe(time.Since(start).Seconds())
			return err
		}
	}
}

func (m *Metrics) RecordCategoryOperation(operation string, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.CategoryOperations.WithLabelValues(operation, outcome).Inc()
}

func (m *Metrics) RecordStockAdjustment(logType string) {
	if m == nil {
		return
	}
	m.StockAdjustments.WithLabelValues(logType).Inc()
}

func (m *Metrics) RecordStockRejection(kind string) {
	if m == nil {
		return
	}
	m.StockRejections.WithLabelValues(kind).Inc()
}

func (m *Metrics) RecordStockRetry() {
	if m == nil {
		return
	}
	m.StockRetries.Inc()
}

func (m *Metrics) SetLedgerDrift(count int) {
	if m == nil {
		return
	}
	m.LedgerDriftProducts.Set(float64(count))
}

func (m *Metrics) SetLowStock(count int) {
	if m == nil {
		return
	}
	m.LowStockProducts.Set(float64(count))
}

func (m *Metrics) RecordJobFailure(job string) {
	if m == nil {
		return
	}
	m.JobFailures.WithLabelValues(job).Inc()
}
