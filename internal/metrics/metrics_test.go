package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestCollectorRecords(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordBundle("landed", 2, time.Second)
	c.RecordBundle("expired", 3, time.Minute)
	c.RecordTrade("buy", true)
	c.RecordTrade("sell", false)
	c.RecordTransfer("fund", true)
	c.RecordTransfer("fund", true)

	assert.Equal(t, 1.0, testutil.ToFloat64(c.bundleCounter.WithLabelValues("landed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.bundleCounter.WithLabelValues("expired")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.tradeCounter.WithLabelValues("sell", "failed")))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.transferCounter.WithLabelValues("fund", "success")))

	count, err := testutil.GatherAndCount(reg, "pump_bundler_bundle_attempts")
	assert.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestNilCollector(t *testing.T) {
	var c *Collector
	assert.NotPanics(t, func() {
		c.RecordBundle("landed", 1, time.Second)
		c.RecordTrade("buy", true)
		c.RecordTransfer("collect", false)
	})
}
