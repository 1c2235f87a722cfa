// Package metrics exposes Prometheus collectors for the HTTP API.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/iliyamo/stall-dashboard/internal/middleware"
	"github.com/iliyamo/stall-dashboard/internal/status"
)

// Collector holds the API's collectors on its own registry.
type Collector struct {
	registry         *prometheus.Registry
	requestsTotal    *prometheus.CounterVec
	requestDuration  *prometheus.HistogramVec
	requestsInFlight prometheus.Gauge
	results          *prometheus.CounterVec
}

// New registers the collectors, plus Go runtime and process collectors, on a
// fresh registry.
func New(namespace string) *Collector {
	reg := prometheus.NewRegistry()
	c := &Collector{
		registry: reg,
		requestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests.",
		}, []string{"method", "path", "status"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		}, []string{"method", "path"}),
		requestsInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "http_requests_in_flight",
			Help:      "HTTP requests currently being served.",
		}),
		results: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "results_total",
			Help:      "Result codes reported by handlers.",
		}, []string{"outcome", "code"}),
	}
	reg.MustRegister(
		c.requestsTotal, c.requestDuration, c.requestsInFlight, c.results,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return c
}

// Middleware records request count, latency, in-flight requests and the
// result outcome a handler reported.  Paths are route templates so IDs do
// not explode label cardinality.
func (c *Collector) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			start := time.Now()
			c.requestsInFlight.Inc()
			defer c.requestsInFlight.Dec()

			err := next(ctx)
			code := ctx.Response().Status
			if he, ok := err.(*echo.HTTPError); ok {
				code = he.Code
			}
			path := ctx.Path()
			if path == "" {
				path = "unmatched"
			}
			method := ctx.Request().Method
			c.requestsTotal.WithLabelValues(method, path, strconv.Itoa(code)).Inc()
			c.requestDuration.WithLabelValues(method, path).Observe(time.Since(start).Seconds())
			if o, ok := ctx.Get(middleware.KeyOutcome).(status.Outcome); ok {
				c.ObserveOutcome(o)
			}
			return err
		}
	}
}

// ObserveOutcome counts one reported result.  Outcomes outside the
// registry are ignored.
func (c *Collector) ObserveOutcome(o status.Outcome) {
	code, err := o.Code()
	if err != nil {
		return
	}
	c.results.WithLabelValues(o.String(), strconv.Itoa(code)).Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}

// Registry returns the underlying registry for tests and custom collectors.
func (c *Collector) Registry() *prometheus.Registry { return c.registry }
