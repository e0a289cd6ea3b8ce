// Package metrics holds the prometheus collectors of the engine.
package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	BatchesStarted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "streetlab_batches_started_total",
		Help: "Production batches started, by drug.",
	}, []string{"drug"})

	BatchUnits = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "streetlab_batch_units_total",
		Help: "Units resolved by production collection, by outcome.",
	}, []string{"outcome"})

	DrugsUsed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "streetlab_drugs_used_total",
		Help: "Doses consumed, by drug.",
	}, []string{"drug"})

	DealsResolved = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "streetlab_deals_resolved_total",
		Help: "Deals that left pending, by final status.",
	}, []string{"status"})

	SweepRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "streetlab_sweep_runs_total",
		Help: "Background sweep runs, by result.",
	}, []string{"result"})

	SweepDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "streetlab_sweep_duration_seconds",
		Help:    "Duration of background sweep runs.",
		Buckets: prometheus.DefBuckets,
	})

	httpRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "streetlab_http_requests_total",
		Help: "HTTP requests, by route and status code.",
	}, []string{"method", "route", "code"})

	httpDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "streetlab_http_request_duration_seconds",
		Help:    "HTTP request latency, by route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route"})
)

// Middleware records request counts and latency per matched route.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		httpRequests.WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).Inc()
		httpDuration.WithLabelValues(c.Request.Method, route).Observe(time.Since(start).Seconds())
	}
}

// Handler serves the default registry
// GET /metrics
func Handler() gin.HandlerFunc {
	h := promhttp.Handler()
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}
