// Package metric provides Prometheus metrics for WirePool.
package metric

import "github.com/prometheus/client_golang/prometheus"

// StatsSource supplies point-in-time broker statistics.
// The server wires the orchestrator, node directory and event bus in
// here so the collector never holds a reference to any of them.
type StatsSource interface {
	ActiveSessions() int
	OnlineNodes() int
	OccupiedSlots() int

	// NodeLoads returns the current load score per node ID.
	NodeLoads() map[string]int

	// EventSubscribers returns the number of live event subscriptions.
	EventSubscribers() int
}

// Collector exports broker state as gauges at scrape time.
type Collector struct {
	source StatsSource

	sessionsDesc    *prometheus.Desc
	nodesDesc       *prometheus.Desc
	occupiedDesc    *prometheus.Desc
	nodeLoadDesc    *prometheus.Desc
	subscribersDesc *prometheus.Desc
}

// NewCollector creates a collector over the given stats source.
func NewCollector(source StatsSource) *Collector {
	return &Collector{
		source: source,
		sessionsDesc: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "broker", "sessions"),
			"Sessions in a non-terminal state at scrape time",
			nil, nil,
		),
		nodesDesc: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "broker", "nodes_online"),
			"Nodes available for selection at scrape time",
			nil, nil,
		),
		occupiedDesc: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "broker", "slots_occupied"),
			"Occupied node slots at scrape time",
			nil, nil,
		),
		nodeLoadDesc: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "broker", "node_load"),
			"Per-node load score (0-100) at scrape time",
			[]string{"node_id"}, nil,
		),
		subscribersDesc: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "broker", "event_subscribers"),
			"Live event stream subscriptions at scrape time",
			nil, nil,
		),
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.sessionsDesc
	ch <- c.nodesDesc
	ch <- c.occupiedDesc
	ch <- c.nodeLoadDesc
	ch <- c.subscribersDesc
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	ch <- prometheus.MustNewConstMetric(c.sessionsDesc, prometheus.GaugeValue, float64(c.source.ActiveSessions()))
	ch <- prometheus.MustNewConstMetric(c.nodesDesc, prometheus.GaugeValue, float64(c.source.OnlineNodes()))
	ch <- prometheus.MustNewConstMetric(c.occupiedDesc, prometheus.GaugeValue, float64(c.source.OccupiedSlots()))
	ch <- prometheus.MustNewConstMetric(c.subscribersDesc, prometheus.GaugeValue, float64(c.source.EventSubscribers()))
	for nodeID, load := range c.source.NodeLoads() {
		ch <- prometheus.MustNewConstMetric(c.nodeLoadDesc, prometheus.GaugeValue, float64(load), nodeID)
	}
}
