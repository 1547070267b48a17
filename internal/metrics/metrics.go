// Package metrics exposes the live per-target stats as Prometheus metrics.
// It is fed by the monitor's event bus.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"lagmon/internal/models"
)

const namespace = "lagmon"

// Collector keeps gauges and counters in sync with monitor events
type Collector struct {
	registry *prometheus.Registry

	latency      *prometheus.GaugeVec
	jitter       *prometheus.GaugeVec
	loss         *prometheus.GaugeVec
	active       *prometheus.GaugeVec
	updatesTotal *prometheus.CounterVec
	outagesTotal *prometheus.CounterVec
}

// New creates a Collector registered on its own registry, together with the
// Go runtime and process collectors
func New() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		latency: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "latency_ms",
			Help:      "Mean round-trip time of successful probes in the window (ms)",
		}, []string{"target"}),
		jitter: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "jitter_ms",
			Help:      "Mean absolute difference between consecutive successful probes (ms)",
		}, []string{"target"}),
		loss: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "loss_detected",
			Help:      "1 while the target is considered lossy",
		}, []string{"target"}),
		active: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "target_active",
			Help:      "1 when the target is scheduled for probing",
		}, []string{"target", "role"}),
		updatesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stats_updates_total",
			Help:      "Number of aggregated samples",
		}, []string{"target"}),
		outagesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "outages_total",
			Help:      "Number of times the target went down",
		}, []string{"target"}),
	}

	c.registry.MustRegister(
		c.latency,
		c.jitter,
		c.loss,
		c.active,
		c.updatesTotal,
		c.outagesTotal,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return c
}

// Registry returns the registry the collector's metrics live on
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the registry in the Prometheus exposition format
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// HandleEvent is an events.Handler
func (c *Collector) HandleEvent(e models.Event) error {
	switch e.Type {
	case models.EventTargetAdded, models.EventTargetUpdated:
		t := e.Target
		c.active.DeletePartialMatch(prometheus.Labels{"target": t.ID})
		c.active.WithLabelValues(t.ID, string(t.Role)).Set(boolGauge(t.Active))
		if !t.Active {
			c.clearStats(t.ID)
		}
	case models.EventTargetRemoved:
		id := e.Target.ID
		c.active.DeletePartialMatch(prometheus.Labels{"target": id})
		c.clearStats(id)
		c.updatesTotal.DeleteLabelValues(id)
		c.outagesTotal.DeleteLabelValues(id)
	case models.EventStatsUpdated:
		s := e.Stats
		c.latency.WithLabelValues(s.ID).Set(s.LatencyMillis)
		c.jitter.WithLabelValues(s.ID).Set(s.JitterMillis)
		c.loss.WithLabelValues(s.ID).Set(boolGauge(s.LossDetected))
		c.updatesTotal.WithLabelValues(s.ID).Inc()
	case models.EventTargetDown:
		c.outagesTotal.WithLabelValues(e.Target.ID).Inc()
	}
	return nil
}

func (c *Collector) clearStats(id string) {
	c.latency.DeleteLabelValues(id)
	c.jitter.DeleteLabelValues(id)
	c.loss.DeleteLabelValues(id)
}

func boolGauge(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
