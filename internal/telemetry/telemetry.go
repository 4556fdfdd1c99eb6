// Package telemetry exposes the watchdog registry as Prometheus
// collectors (SPEC_FULL §4.6), grounded on the teacher's
// worker/exporters/prometheus and master/exporters/prometheus style.
package telemetry

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/pathcl/osquery/internal/watchdog"
)

// Collector adapts a *watchdog.Registry snapshot into Prometheus
// metrics on each scrape, rather than pushing updates from the
// control loop — this keeps the registry's lock out of the
// Prometheus request path entirely (the loop never touches
// telemetry, only TakeSnapshot() does, and only under its own call).
type Collector struct {
	registry *watchdog.Registry

	restartCount   *prometheus.Desc
	sustainedLat   *prometheus.Desc
	footprint      *prometheus.Desc
	fatesBound     *prometheus.Desc
	extensionAlive *prometheus.Desc
}

// NewCollector wraps registry for scraping.
func NewCollector(registry *watchdog.Registry) *Collector {
	return &Collector{
		registry: registry,
		restartCount: prometheus.NewDesc(
			"osquery_watchdog_restart_count", "Cumulative worker restart count.", nil, nil),
		sustainedLat: prometheus.NewDesc(
			"osquery_watchdog_sustained_latency", "Consecutive sanity checks over the utilization limit.",
			[]string{"role", "path"}, nil),
		footprint: prometheus.NewDesc(
			"osquery_watchdog_initial_footprint_bytes", "Resident memory baseline recorded at the child's first sanity check.",
			[]string{"role", "path"}, nil),
		fatesBound: prometheus.NewDesc(
			"osquery_watchdog_fates_bound", "1 if a signal handler has requested shutdown.", nil, nil),
		extensionAlive: prometheus.NewDesc(
			"osquery_watchdog_extension_alive", "1 if the extension's child handle is currently valid.",
			[]string{"path"}, nil),
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.restartCount
	ch <- c.sustainedLat
	ch <- c.footprint
	ch <- c.fatesBound
	ch <- c.extensionAlive
}

// Collect implements prometheus.Collector, reading one Snapshot of
// the registry per scrape.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	snap := c.registry.TakeSnapshot(time.Now())

	ch <- prometheus.MustNewConstMetric(c.restartCount, prometheus.CounterValue, float64(snap.RestartCount))

	boundVal := 0.0
	if snap.FatesBound {
		boundVal = 1.0
	}
	ch <- prometheus.MustNewConstMetric(c.fatesBound, prometheus.GaugeValue, boundVal)

	ch <- prometheus.MustNewConstMetric(c.sustainedLat, prometheus.GaugeValue,
		float64(snap.WorkerState.SustainedLatency), "worker", "")
	ch <- prometheus.MustNewConstMetric(c.footprint, prometheus.GaugeValue,
		float64(snap.WorkerState.InitialFootprint), "worker", "")

	for path, state := range snap.ExtensionStates {
		ch <- prometheus.MustNewConstMetric(c.sustainedLat, prometheus.GaugeValue,
			float64(state.SustainedLatency), "extension", path)
		ch <- prometheus.MustNewConstMetric(c.footprint, prometheus.GaugeValue,
			float64(state.InitialFootprint), "extension", path)
	}
	for path, h := range snap.Extensions {
		alive := 0.0
		if h.Valid {
			alive = 1.0
		}
		ch <- prometheus.MustNewConstMetric(c.extensionAlive, prometheus.GaugeValue, alive, path)
	}
}
