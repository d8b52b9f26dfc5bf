package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// ChangeMetrics tracks how catalog change notifications reach the broker.
type ChangeMetrics struct {
	brokerConnected  prometheus.Gauge
	brokerReconnects prometheus.Counter
	published        *prometheus.CounterVec
	publishDuration  *prometheus.HistogramVec
}

// NewChangeMetrics creates and registers the change publishing metrics.
func NewChangeMetrics(registry *prometheus.Registry) (*ChangeMetrics, error) {
	m := &ChangeMetrics{
		brokerConnected: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "catalog_change_broker_connected",
			Help: "1 while the change broker connection is up, 0 otherwise",
		}),
		brokerReconnects: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "catalog_change_broker_reconnects_total",
			Help: "Reconnection attempts after the change broker connection was lost",
		}),
		published: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "catalog_changes_published_total",
				Help: "Catalog changes handed to the broker by entity, action and outcome",
			},
			[]string{"entity", "action", "result"},
		),
		publishDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "catalog_change_publish_duration_seconds",
				Help:    "Time until the broker acknowledged a catalog change",
				Buckets: prometheus.ExponentialBuckets(BucketStart1ms, BucketFactor2, BucketCount10),
			},
			[]string{"entity"},
		),
	}
	if err := registry.Register(m); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *ChangeMetrics) getCollectors() []prometheus.Collector {
	return []prometheus.Collector{m.brokerConnected, m.brokerReconnects, m.published, m.publishDuration}
}

// Describe implements the Collector interface
func (m *ChangeMetrics) Describe(ch chan<- *prometheus.Desc) {
	for _, collector := range m.getCollectors() {
		collector.Describe(ch)
	}
}

// Collect implements the Collector interface
func (m *ChangeMetrics) Collect(ch chan<- prometheus.Metric) {
	for _, collector := range m.getCollectors() {
		collector.Collect(ch)
	}
}

// SetBrokerConnected records the broker connection state. Like every
// recording method it is a no-op on a nil receiver.
func (m *ChangeMetrics) SetBrokerConnected(connected bool) {
	if m == nil {
		return
	}
	if connected {
		m.brokerConnected.Set(1)
		return
	}
	m.brokerConnected.Set(0)
}

// RecordReconnect counts one reconnection attempt.
func (m *ChangeMetrics) RecordReconnect() {
	if m == nil {
		return
	}
	m.brokerReconnects.Inc()
}

// RecordPublish records the outcome of publishing one change. Failed
// publishes are counted but not timed.
func (m *ChangeMetrics) RecordPublish(entity, action string, err error, seconds float64) {
	if m == nil {
		return
	}
	if err != nil {
		m.published.WithLabelValues(entity, action, StatusError).Inc()
		return
	}
	m.published.WithLabelValues(entity, action, StatusSuccess).Inc()
	m.publishDuration.WithLabelValues(entity).Observe(seconds)
}
