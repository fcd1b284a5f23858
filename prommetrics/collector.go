// Package prommetrics exports the metrics of a vxi11.Registry to Prometheus.
//
//	reg := prometheus.NewRegistry()
//	if err := prommetrics.Register(reg, "lab", registry); err != nil {
//		return err
//	}
package prommetrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/arloliu/go-vxi11/vxi11"
)

// DefaultNamespace is the metric namespace used when none is given.
const DefaultNamespace = "vxi11"

// Collector is a prometheus.Collector reading a vxi11.Metrics on every scrape.
type Collector struct {
	metrics []prometheus.Collector
}

var _ prometheus.Collector = (*Collector)(nil)

// NewCollector creates a Collector for m. An empty namespace selects DefaultNamespace.
func NewCollector(namespace string, constLabels prometheus.Labels, m *vxi11.Metrics) *Collector {
	if namespace == "" {
		namespace = DefaultNamespace
	}

	counter := func(subsystem, name, help string, load func() uint64) prometheus.Collector {
		return prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace:   namespace,
			Subsystem:   subsystem,
			Name:        name,
			Help:        help,
			ConstLabels: constLabels,
		}, func() float64 { return float64(load()) })
	}
	gauge := func(subsystem, name, help string, load func() int64) prometheus.Collector {
		return prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace:   namespace,
			Subsystem:   subsystem,
			Name:        name,
			Help:        help,
			ConstLabels: constLabels,
		}, func() float64 { return float64(load()) })
	}

	return &Collector{metrics: []prometheus.Collector{
		counter("session", "created_total", "Transport sessions created.", m.SessionCreateCount.Load),
		counter("session", "destroyed_total", "Transport sessions destroyed.", m.SessionDestroyCount.Load),
		gauge("session", "active", "Live transport sessions.", m.ActiveSessionGauge.Load),

		counter("link", "opened_total", "Links opened for callers.", m.LinkOpenCount.Load),
		counter("link", "closed_total", "Links closed by callers.", m.LinkCloseCount.Load),
		gauge("link", "active", "Outstanding link handles.", m.ActiveLinkGauge.Load),
		counter("link", "reasserts_total", "Links re-created to become the current link.", m.LinkReassertCount.Load),

		counter("io", "fragments_sent_total", "Write fragments acknowledged by instruments.", m.FragmentSendCount.Load),
		counter("io", "fragments_received_total", "Read chunks received from instruments.", m.FragmentRecvCount.Load),
		counter("io", "bytes_sent_total", "Bytes accepted by instruments.", m.ByteSendCount.Load),
		counter("io", "bytes_received_total", "Bytes delivered to callers.", m.ByteRecvCount.Load),
		counter("io", "null_write_responses_total", "Writes dropped without reply.", m.NullWriteRespCount.Load),
		counter("io", "null_read_responses_total", "Reads dropped without reply.", m.NullReadRespCount.Load),
		counter("io", "device_errors_total", "Explicit device error codes received.", m.DeviceErrCount.Load),

		counter("query", "issued_total", "Queries issued.", m.QueryCount.Load),
		counter("query", "retries_total", "Query resends after a dropped read reply.", m.QueryRetryCount.Load),
	}}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	for _, m := range c.metrics {
		m.Describe(ch)
	}
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	for _, m := range c.metrics {
		m.Collect(ch)
	}
}

// Register registers a Collector for the metrics of r with reg.
func Register(reg prometheus.Registerer, namespace string, r *vxi11.Registry) error {
	return reg.Register(NewCollector(namespace, nil, r.GetMetrics()))
}
