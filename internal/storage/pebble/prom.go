package pebblestore

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// PromMetrics is a MetricsHook backed by Prometheus collectors.
type PromMetrics struct {
	writeSeconds  prometheus.Histogram
	readSeconds   prometheus.Histogram
	commitSeconds prometheus.Histogram
	bytes         *prometheus.CounterVec
	commitOps     prometheus.Counter
}

var _ MetricsHook = (*PromMetrics)(nil)

// NewPromMetrics builds the collectors and registers them with reg when reg is non-nil.
func NewPromMetrics(reg prometheus.Registerer, namespace string) (*PromMetrics, error) {
	m := &PromMetrics{
		writeSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: "storage", Name: "write_seconds",
			Help:    "Latency of single-key writes.",
			Buckets: prometheus.ExponentialBuckets(0.0001, 4, 8),
		}),
		readSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: "storage", Name: "read_seconds",
			Help:    "Latency of point reads.",
			Buckets: prometheus.ExponentialBuckets(0.00005, 4, 8),
		}),
		commitSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: "storage", Name: "batch_commit_seconds",
			Help:    "Latency of batch commits.",
			Buckets: prometheus.ExponentialBuckets(0.0001, 4, 8),
		}),
		bytes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "storage", Name: "bytes_total",
			Help: "Bytes moved through the storage layer.",
		}, []string{"op"}),
		commitOps: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "storage", Name: "batch_ops_total",
			Help: "Operations committed in batches.",
		}),
	}
	if reg != nil {
		for _, c := range m.Collectors() {
			if err := reg.Register(c); err != nil {
				return nil, err
			}
		}
	}
	return m, nil
}

// Collectors lists every collector owned by m.
func (m *PromMetrics) Collectors() []prometheus.Collector {
	return []prometheus.Collector{m.writeSeconds, m.readSeconds, m.commitSeconds, m.bytes, m.commitOps}
}

func (m *PromMetrics) ObserveWrite(elapsed time.Duration, bytes int) {
	m.writeSeconds.Observe(elapsed.Seconds())
	m.bytes.WithLabelValues("write").Add(float64(bytes))
}

func (m *PromMetrics) ObserveRead(elapsed time.Duration, bytes int) {
	m.readSeconds.Observe(elapsed.Seconds())
	m.bytes.WithLabelValues("read").Add(float64(bytes))
}

func (m *PromMetrics) ObserveBatchCommit(elapsed time.Duration, numOps int, bytes int) {
	m.commitSeconds.Observe(elapsed.Seconds())
	m.commitOps.Add(float64(numOps))
	m.bytes.WithLabelValues("commit").Add(float64(bytes))
}
