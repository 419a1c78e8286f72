// FILE: lixenwraith/classconfig/metrics.go
package classconfig

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the collectors updated by a Resolver. A nil *Metrics records nothing.
//   - classconfig_resolutions_total{result}: resolutions by outcome (ok, error)
//   - classconfig_resolve_duration_seconds: resolution latency
//   - classconfig_cache_events_total{layer,event}: memo/store hits, misses and errors
//   - classconfig_reloads_total{result}: watcher reloads by outcome
type Metrics struct {
	Resolutions *prometheus.CounterVec
	Latency     prometheus.Histogram
	CacheEvents *prometheus.CounterVec
	Reloads     *prometheus.CounterVec
}

// NewMetrics creates the collectors and registers them with reg.
// A nil reg leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		Resolutions: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "classconfig_resolutions_total", Help: "Class config resolutions by result"},
			[]string{"result"},
		),
		Latency: prometheus.NewHistogram(
			prometheus.HistogramOpts{Name: "classconfig_resolve_duration_seconds", Help: "Class config resolution latency", Buckets: prometheus.DefBuckets},
		),
		CacheEvents: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "classconfig_cache_events_total", Help: "Resolved config cache events by layer and event"},
			[]string{"layer", "event"},
		),
		Reloads: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "classconfig_reloads_total", Help: "Declaration reloads by result"},
			[]string{"result"},
		),
	}

	if reg != nil {
		for _, c := range []prometheus.Collector{m.Resolutions, m.Latency, m.CacheEvents, m.Reloads} {
			if err := reg.Register(c); err != nil {
				return nil, err
			}
		}
	}
	return m, nil
}

func (m *Metrics) observeResolve(err error, d time.Duration) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.Resolutions.WithLabelValues(result).Inc()
	m.Latency.Observe(d.Seconds())
}

func (m *Metrics) cacheEvent(layer, event string) {
	if m == nil {
		return
	}
	m.CacheEvents.WithLabelValues(layer, event).Inc()
}

func (m *Metrics) reload(err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.Reloads.WithLabelValues(result).Inc()
}
