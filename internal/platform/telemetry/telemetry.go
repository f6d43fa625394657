// Package telemetry owns the Prometheus registry: HTTP server metrics,
// database pool gauges and the collectors other packages contribute.
package telemetry

import (
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Config struct {
	ServiceName string
	Environment string
	Enabled     bool
}

func (c *Config) applyDefaults() {
	if c.ServiceName == "" {
		c.ServiceName = "vetclinic"
	}
	if c.Environment == "" {
		c.Environment = "development"
	}
}

var defaultDurationBuckets = []float64{
	0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10,
}

type Provider struct {
	cfg      Config
	registry *prometheus.Registry

	requests *prometheus.HistogramVec
	active   prometheus.Gauge
	respSize prometheus.Histogram
}

func NewProvider(cfg Config) *Provider {
	cfg.applyDefaults()
	constLabels := prometheus.Labels{"service": cfg.ServiceName, "env": cfg.Environment}

	p := &Provider{
		cfg:      cfg,
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:        "http_server_request_duration_seconds",
			Help:        "HTTP request latency by method, route and status.",
			Buckets:     defaultDurationBuckets,
			ConstLabels: constLabels,
		}, []string{"method", "route", "status"}),
		active: prometheus.NewGauge(prometheus.GaugeOpts{
			Name:        "http_server_active_requests",
			Help:        "Requests currently being served.",
			ConstLabels: constLabels,
		}),
		respSize: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:        "http_server_response_size_bytes",
			Help:        "Response body sizes.",
			Buckets:     prometheus.ExponentialBuckets(100, 10, 6),
			ConstLabels: constLabels,
		}),
	}
	p.registry.MustRegister(
		p.requests, p.active, p.respSize,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return p
}

func (p *Provider) Enabled() bool { return p.cfg.Enabled }

// Register adds collectors owned by other packages.
func (p *Provider) Register(cs ...prometheus.Collector) error {
	for _, c := range cs {
		if err := p.registry.Register(c); err != nil {
			if _, dup := err.(prometheus.AlreadyRegisteredError); dup {
				continue
			}
			return err
		}
	}
	return nil
}

// PoolStats is the slice of pgxpool.Stat the pool gauges need.
type PoolStats interface {
	AcquiredConns() int32
	IdleConns() int32
	TotalConns() int32
}

// RegisterPool exposes connection pool gauges read at scrape time.
func (p *Provider) RegisterPool(stat func() PoolStats) error {
	gauge := func(name, help string, read func(PoolStats) int32) prometheus.Collector {
		return prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: name,
			Help: help,
		}, func() float64 { return float64(read(stat())) })
	}
	return p.Register(
		gauge("db_pool_acquired_connections", "Connections in use.", PoolStats.AcquiredConns),
		gauge("db_pool_idle_connections", "Idle connections.", PoolStats.IdleConns),
		gauge("db_pool_total_connections", "Open connections.", PoolStats.TotalConns),
	)
}

// MetricsMiddleware records latency per route pattern, not per raw path.
func (p *Provider) MetricsMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if !p.cfg.Enabled {
				return next(c)
			}
			p.active.Inc()
			start := time.Now()

			err := next(c)

			p.active.Dec()
			route := c.Path()
			if route == "" {
				route = "unmatched"
			}
			status := c.Response().Status
			if he, ok := err.(*echo.HTTPError); ok && !c.Response().Committed {
				status = he.Code
			}
			p.requests.WithLabelValues(c.Request().Method, route, strconv.Itoa(status)).
				Observe(time.Since(start).Seconds())
			if size := c.Response().Size; size > 0 {
				p.respSize.Observe(float64(size))
			}
			return err
		}
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (p *Provider) Handler() echo.HandlerFunc {
	return echo.WrapHandler(promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{}))
}
