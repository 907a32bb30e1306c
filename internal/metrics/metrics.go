// internal/metrics/metrics.go
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Collector holds the bundler's prometheus metrics.
// A nil *Collector is valid and records nothing.
type Collector struct {
	bundleCounter   *prometheus.CounterVec
	bundleAttempts  prometheus.Histogram
	bundleDuration  prometheus.Histogram
	tradeCounter    *prometheus.CounterVec
	transferCounter *prometheus.CounterVec
}

// NewCollector creates the metrics and registers them with reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		bundleCounter: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pump_bundler_bundles_total",
				Help: "Bundles by terminal status",
			},
			[]string{"status"},
		),
		bundleAttempts: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "pump_bundler_bundle_attempts",
			Help:    "Relay attempts per submitted bundle",
			Buckets: prometheus.LinearBuckets(1, 1, 5),
		}),
		bundleDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "pump_bundler_bundle_duration_seconds",
			Help:    "Time from first submit to terminal status",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 9),
		}),
		tradeCounter: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pump_bundler_trades_total",
				Help: "Single-wallet trades by side and result",
			},
			[]string{"side", "status"},
		),
		transferCounter: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pump_bundler_transfers_total",
				Help: "Funding and collect transfers by result",
			},
			[]string{"kind", "status"},
		),
	}

	reg.MustRegister(c.bundleCounter, c.bundleAttempts, c.bundleDuration, c.tradeCounter, c.transferCounter)
	return c
}

// RecordBundle records the terminal status of one Submit call.
func (c *Collector) RecordBundle(status string, attempts int, duration time.Duration) {
	if c == nil {
		return
	}
	c.bundleCounter.WithLabelValues(status).Inc()
	c.bundleAttempts.Observe(float64(attempts))
	c.bundleDuration.Observe(duration.Seconds())
}

// RecordTrade records a single-wallet buy or sell.
func (c *Collector) RecordTrade(side string, success bool) {
	if c == nil {
		return
	}
	c.tradeCounter.WithLabelValues(side, statusLabel(success)).Inc()
}

// RecordTransfer records a funding or collect transfer.
func (c *Collector) RecordTransfer(kind string, success bool) {
	if c == nil {
		return
	}
	c.transferCounter.WithLabelValues(kind, statusLabel(success)).Inc()
}

func statusLabel(success bool) string {
	if success {
		return "success"
	}
	return "failed"
}
