// Package metrics exposes the service's Prometheus metrics.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "testops"

// Collector holds the metric vectors on its own registry. A nil *Collector
// accepts every call and records nothing.
type Collector struct {
	registry *prometheus.Registry

	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	ResolutionWarnings  *prometheus.CounterVec
	RunUploads          *prometheus.CounterVec
	ReportsGenerated    *prometheus.CounterVec
}

// New creates a Collector with its own registry.
func New() *Collector {
	reg := prometheus.NewRegistry()
	c := &Collector{
		registry: reg,
		HTTPRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		}, []string{"method", "path", "status_code"}),
		HTTPRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "Duration of HTTP requests in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "path"}),
		ResolutionWarnings: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reference_resolution_warnings_total",
			Help:      "Tag and suite references dropped because the id does not exist",
		}, []string{"kind"}),
		RunUploads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "run_uploads_total",
			Help:      "Uploaded test runs by detected status",
		}, []string{"status"}),
		ReportsGenerated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reports_generated_total",
			Help:      "Allure report generations by result",
		}, []string{"result"}),
	}
	reg.MustRegister(
		c.HTTPRequestsTotal,
		c.HTTPRequestDuration,
		c.ResolutionWarnings,
		c.RunUploads,
		c.ReportsGenerated,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return c
}

// Registry returns the underlying registry.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the registry in the Prometheus text format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// ResolutionWarning counts one dropped reference of kind (tag or suite).
func (c *Collector) ResolutionWarning(kind string) {
	if c == nil {
		return
	}
	c.ResolutionWarnings.WithLabelValues(kind).Inc()
}

// RunUploaded counts one uploaded run.
func (c *Collector) RunUploaded(status string) {
	if c == nil {
		return
	}
	c.RunUploads.WithLabelValues(status).Inc()
}

// ReportGenerated counts one report generation, result is "ok" or "error".
func (c *Collector) ReportGenerated(result string) {
	if c == nil {
		return
	}
	c.ReportsGenerated.WithLabelValues(result).Inc()
}

// Middleware records request count and latency per route template.
func (c *Collector) Middleware() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		start := time.Now()
		ctx.Next()

		path := ctx.FullPath()
		if path == "" {
			path = "unmatched"
		}
		method := ctx.Request.Method
		c.HTTPRequestsTotal.WithLabelValues(method, path, strconv.Itoa(ctx.Writer.Status())).Inc()
		c.HTTPRequestDuration.WithLabelValues(method, path).Observe(time.Since(start).Seconds())
	}
}
