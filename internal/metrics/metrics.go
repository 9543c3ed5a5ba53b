package metrics

import (
	"errors"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTP request metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "doka_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "doka_http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)

	// Ledger metrics
	LedgerMutations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "doka_ledger_mutations_total",
			Help: "Stock mutations applied to the in-memory catalog",
		},
		[]string{"op"},
	)

	LedgerPersistFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "doka_ledger_persist_failures_total",
			Help: "Stock writes the database rejected or never received",
		},
	)

	// Sales metrics
	SalesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "doka_sales_total",
			Help: "Number of completed sales",
		},
		[]string{"location"},
	)

	SalesRevenue = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "doka_sales_revenue_total",
			Help: "Revenue of completed sales in MKD",
		},
		[]string{"location"},
	)
)

// Middleware records request count and latency per route.
func Middleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()

		err := c.Next()

		status := c.Response().StatusCode()
		if err != nil {
			var fe *fiber.Error
			if errors.As(err, &fe) {
				status = fe.Code
			} else {
				status = fiber.StatusInternalServerError
			}
		}

		path := c.Path()
		if r := c.Route(); r != nil && r.Path != "" {
			path = r.Path
		}
		statusStr := strconv.Itoa(status)

		HTTPRequestsTotal.WithLabelValues(c.Method(), path, statusStr).Inc()
		HTTPRequestDuration.WithLabelValues(c.Method(), path, statusStr).Observe(time.Since(start).Seconds())

		return err
	}
}

// Handler exposes the default registry for scraping.
func Handler() fiber.Handler {
	return adaptor.HTTPHandler(promhttp.Handler())
}
