package actionlog

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus collectors of a Log. A nil *Metrics records
// nothing.
type Metrics struct {
	added         prometheus.Counter
	duplicates    prometheus.Counter
	cleaned       prometheus.Counter
	cleanDuration prometheus.Histogram
}

// NewMetrics builds unregistered collectors. Register them with Collectors.
func NewMetrics(namespace string) *Metrics {
	return &Metrics{
		added: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "actionlog_added_total",
			Help:      "Actions accepted by the store.",
		}),
		duplicates: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "actionlog_duplicates_total",
			Help:      "Actions rejected because their id was already stored.",
		}),
		cleaned: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "actionlog_cleaned_total",
			Help:      "Entries removed by clean sweeps.",
		}),
		cleanDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "actionlog_clean_duration_seconds",
			Help:      "Duration of clean sweeps.",
			Buckets:   prometheus.DefBuckets,
		}),
	}
}

// Collectors returns every collector for registration.
func (m *Metrics) Collectors() []prometheus.Collector {
	if m == nil {
		return nil
	}
	return []prometheus.Collector{m.added, m.duplicates, m.cleaned, m.cleanDuration}
}

func (m *Metrics) observeAdd(accepted bool) {
	if m == nil {
		return
	}
	if accepted {
		m.added.Inc()
	} else {
		m.duplicates.Inc()
	}
}

func (m *Metrics) observeClean(removed int, seconds float64) {
	if m == nil {
		return
	}
	m.cleaned.Add(float64(removed))
	m.cleanDuration.Observe(seconds)
}
