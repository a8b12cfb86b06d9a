package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestCollector_RecordsByLabel(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector("creator", reg)

	c.ObserveTool("fetch_analytics", "success", 20*time.Millisecond)
	c.ObserveTool("fetch_analytics", "failure", time.Millisecond)
	c.ObserveTool("fetch_analytics", "success", time.Millisecond)
	c.ObserveQuota("FREE", "denied")

	assert.Equal(t, 2.0, testutil.ToFloat64(c.toolCallsTotal.WithLabelValues("fetch_analytics", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.toolCallsTotal.WithLabelValues("fetch_analytics", "failure")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.quotaDecisions.WithLabelValues("FREE", "denied")))
}

func TestCollector_NilIsNoop(t *testing.T) {
	var c *Collector
	assert.NotPanics(t, func() {
		c.ObserveRequest("analytics", "ok", time.Second)
		c.ObserveTool("x", "success", time.Second)
		c.ObserveQuota("FREE", "allowed")
		c.ObserveRefresh("success")
		c.ObserveGeneration("success", time.Second)
		c.ObserveMemoryDegraded("redis")
	})
}
