// Package metrics exposes tracker activity as Prometheus metrics. A
// Collector doubles as a tracker.Observer, so wrapping a document with
// tracker.WithObserver(c) is all it takes to count its lifecycle events.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tonimelisma/statetracker/pkg/tracker"
	"github.com/tonimelisma/statetracker/pkg/value"
)

const namespace = "statetracker"

var _ tracker.Observer = (*Collector)(nil)

// Collector owns a private registry; nothing is registered globally.
type Collector struct {
	registry *prometheus.Registry

	created  prometheus.Counter
	recorded prometheus.Counter
	rebased  prometheus.Counter
	relinked prometheus.Counter
	backward prometheus.Counter

	reloads       *prometheus.CounterVec
	invalidated   prometheus.Counter
	lastReload    prometheus.Gauge
	changedPerRun prometheus.Histogram
}

// NewCollector registers every metric on a fresh registry.
func NewCollector() *Collector {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)

	return &Collector{
		registry: reg,
		created: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "tracker",
			Name:      "wrappers_created_total",
			Help:      "Tracking wrappers created, roots and children.",
		}),
		recorded: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "tracker",
			Name:      "reads_recorded_total",
			Help:      "Reads logged into a scope.",
		}),
		rebased: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "tracker",
			Name:      "rebases_total",
			Help:      "Cached child wrappers discarded because the live value was replaced.",
		}),
		relinked: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "tracker",
			Name:      "relinks_total",
			Help:      "Values replaced through Relink or BatchRelink.",
		}),
		backward: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "tracker",
			Name:      "backward_accesses_total",
			Help:      "Reads attributed to a scope of another tree.",
		}),
		reloads: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "watch",
			Name:      "reloads_total",
			Help:      "State file reloads by result.",
		}, []string{"result"}),
		invalidated: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "watch",
			Name:      "invalidated_paths_total",
			Help:      "Remarkable paths invalidated by a reload.",
		}),
		lastReload: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "watch",
			Name:      "last_reload_timestamp_seconds",
			Help:      "Unix time of the last successful reload.",
		}),
		changedPerRun: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "watch",
			Name:      "changed_paths",
			Help:      "Changed paths per reload.",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 8),
		}),
	}
}

// Created implements tracker.Observer.
func (c *Collector) Created(value.Path) { c.created.Inc() }

// Recorded implements tracker.Observer.
func (c *Collector) Recorded(value.Path) { c.recorded.Inc() }

// Rebased implements tracker.Observer.
func (c *Collector) Rebased(value.Path) { c.rebased.Inc() }

// Relinked implements tracker.Observer.
func (c *Collector) Relinked(value.Path) { c.relinked.Inc() }

// BackwardAccess implements tracker.Observer.
func (c *Collector) BackwardAccess(value.Path) { c.backward.Inc() }

// Reload outcomes.
const (
	ReloadApplied   = "applied"
	ReloadUnchanged = "unchanged"
	ReloadFailed    = "failed"
)

// ObserveReload records one watch reload. unixSeconds is only used for
// applied reloads.
func (c *Collector) ObserveReload(result string, changed, invalidated int, unixSeconds float64) {
	c.reloads.WithLabelValues(result).Inc()

	if result != ReloadApplied {
		return
	}

	c.changedPerRun.Observe(float64(changed))
	c.invalidated.Add(float64(invalidated))
	c.lastReload.Set(unixSeconds)
}

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry, mainly for tests.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}
