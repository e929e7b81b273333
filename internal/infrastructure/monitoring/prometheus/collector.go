// Package prometheus exposes application metrics through a private registry.
package prometheus

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/vanshwebstep/screeningstarnewnode-sub002/internal/config"
	"github.com/vanshwebstep/screeningstarnewnode-sub002/internal/infrastructure/monitoring/logging"
	"github.com/vanshwebstep/screeningstarnewnode-sub002/pkg/errors"
)

// MetricsCollector registers metric vectors and serves them.
type MetricsCollector interface {
	RegisterCounter(name, help string, labels ...string) CounterVec
	RegisterGauge(name, help string, labels ...string) GaugeVec
	RegisterHistogram(name, help string, buckets []float64, labels ...string) HistogramVec
	Handler() http.Handler
}

type CounterVec interface {
	WithLabelValues(lvs ...string) Counter
}

type Counter interface {
	Inc()
	Add(delta float64)
}

type GaugeVec interface {
	WithLabelValues(lvs ...string) Gauge
}

type Gauge interface {
	Set(value float64)
	Inc()
	Dec()
}

type HistogramVec interface {
	WithLabelValues(lvs ...string) Histogram
}

type Histogram interface {
	Observe(value float64)
}

// CollectorConfig names the metric family prefix and the runtime collectors.
type CollectorConfig struct {
	Namespace            string
	Subsystem            string
	EnableProcessMetrics bool
	EnableGoMetrics      bool
}

// CollectorConfigFrom maps the monitoring section onto a CollectorConfig.
func CollectorConfigFrom(cfg config.MonitoringConfig) CollectorConfig {
	return CollectorConfig{
		Namespace:            cfg.Namespace,
		EnableProcessMetrics: true,
		EnableGoMetrics:      true,
	}
}

type prometheusCollector struct {
	registry *prometheus.Registry
	cfg      CollectorConfig
	log      logging.Logger

	mu   sync.Mutex
	vecs map[string]prometheus.Collector
}

// NewMetricsCollector builds a collector over a private registry, so tests
// and multiple containers never collide on the global one.
func NewMetricsCollector(cfg CollectorConfig, log logging.Logger) (MetricsCollector, error) {
	if cfg.Namespace == "" {
		return nil, errors.InvalidParam("metrics namespace is required")
	}
	reg := prometheus.NewRegistry()
	if cfg.EnableProcessMetrics {
		reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{Namespace: cfg.Namespace}))
	}
	if cfg.EnableGoMetrics {
		reg.MustRegister(collectors.NewGoCollector())
	}
	return &prometheusCollector{registry: reg, cfg: cfg, log: log, vecs: make(map[string]prometheus.Collector)}, nil
}

func (c *prometheusCollector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{EnableOpenMetrics: true})
}

// registerVec registers vec once per fully qualified name. A repeated name
// returns the first vector; a repeated name of another kind returns false.
func registerVec[V prometheus.Collector](c *prometheusCollector, kind, name string, vec V) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero V
	fq := prometheus.BuildFQName(c.cfg.Namespace, c.cfg.Subsystem, name)
	if prev, ok := c.vecs[fq]; ok {
		v, same := prev.(V)
		if !same {
			c.log.Warn("metric already registered as another kind", logging.String("name", fq), logging.String("kind", kind))
		}
		return v, same
	}
	if err := c.registry.Register(vec); err != nil {
		c.log.Error("metric registration failed", logging.String("name", fq), logging.Err(err))
		return zero, false
	}
	c.vecs[fq] = vec
	return vec, true
}

func (c *prometheusCollector) RegisterCounter(name, help string, labels ...string) CounterVec {
	opts := prometheus.CounterOpts{Namespace: c.cfg.Namespace, Subsystem: c.cfg.Subsystem, Name: name, Help: help}
	if v, ok := registerVec(c, "counter", name, prometheus.NewCounterVec(opts, labels)); ok {
		return counterVec{v}
	}
	return noopCounterVec{}
}

func (c *prometheusCollector) RegisterGauge(name, help string, labels ...string) GaugeVec {
	opts := prometheus.GaugeOpts{Namespace: c.cfg.Namespace, Subsystem: c.cfg.Subsystem, Name: name, Help: help}
	if v, ok := registerVec(c, "gauge", name, prometheus.NewGaugeVec(opts, labels)); ok {
		return gaugeVec{v}
	}
	return noopGaugeVec{}
}

// RegisterHistogram uses prometheus.DefBuckets when buckets is nil.
func (c *prometheusCollector) RegisterHistogram(name, help string, buckets []float64, labels ...string) HistogramVec {
	if buckets == nil {
		buckets = prometheus.DefBuckets
	}
	opts := prometheus.HistogramOpts{Namespace: c.cfg.Namespace, Subsystem: c.cfg.Subsystem, Name: name, Help: help, Buckets: buckets}
	if v, ok := registerVec(c, "histogram", name, prometheus.NewHistogramVec(opts, labels)); ok {
		return histogramVec{v}
	}
	return noopHistogramVec{}
}

type counterVec struct{ *prometheus.CounterVec }

func (v counterVec) WithLabelValues(lvs ...string) Counter {
	return v.CounterVec.WithLabelValues(lvs...)
}

type gaugeVec struct{ *prometheus.GaugeVec }

func (v gaugeVec) WithLabelValues(lvs ...string) Gauge { return v.GaugeVec.WithLabelValues(lvs...) }

type histogramVec struct{ *prometheus.HistogramVec }

func (v histogramVec) WithLabelValues(lvs ...string) Histogram {
	return v.HistogramVec.WithLabelValues(lvs...)
}

type noopCounterVec struct{}

func (noopCounterVec) WithLabelValues(...string) Counter { return noop{} }

type noopGaugeVec struct{}

func (noopGaugeVec) WithLabelValues(...string) Gauge { return noop{} }

type noopHistogramVec struct{}

func (noopHistogramVec) WithLabelValues(...string) Histogram { return noop{} }

type noop struct{}

func (noop) Inc()            {}
func (noop) Dec()            {}
func (noop) Add(float64)     {}
func (noop) Set(float64)     {}
func (noop) Observe(float64) {}
