// Package metrics exposes the orchestration pipeline's Prometheus collectors.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Collector groups every metric the pipeline records. A nil *Collector is valid
// and records nothing.
type Collector struct {
	requestsTotal      *prometheus.CounterVec
	requestDuration    *prometheus.HistogramVec
	toolCallsTotal     *prometheus.CounterVec
	toolDuration       *prometheus.HistogramVec
	quotaDecisions     *prometheus.CounterVec
	credentialRefresh  *prometheus.CounterVec
	generationDuration *prometheus.HistogramVec
	memoryDegraded     *prometheus.CounterVec
}

func NewCollector(namespace string, reg prometheus.Registerer) *Collector {
	f := promauto.With(reg)
	return &Collector{
		requestsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_total",
			Help:      "Requests by intent and outcome code",
		}, []string{"intent", "outcome"}),
		requestDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "request_duration_seconds",
			Help:      "End-to-end request latency",
			Buckets:   prometheus.DefBuckets,
		}, []string{"intent"}),
		toolCallsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tool_calls_total",
			Help:      "Tool invocations by tool and outcome",
		}, []string{"tool", "outcome"}),
		toolDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "tool_duration_seconds",
			Help:      "Tool handler latency",
			Buckets:   []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10},
		}, []string{"tool"}),
		quotaDecisions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "quota_decisions_total",
			Help:      "Quota gate decisions by tier and result",
		}, []string{"tier", "result"}),
		credentialRefresh: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "credential_refresh_total",
			Help:      "Credential refresh attempts by result",
		}, []string{"result"}),
		generationDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "generation_duration_seconds",
			Help:      "Generation capability latency",
			Buckets:   []float64{.25, .5, 1, 2, 4, 8, 16, 32},
		}, []string{"outcome"}),
		memoryDegraded: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "memory_degraded_total",
			Help:      "Memory reads or writes absorbed after a store failure",
		}, []string{"store"}),
	}
}

func (c *Collector) ObserveRequest(intent, outcome string, d time.Duration) {
	if c == nil {
		return
	}
	c.requestsTotal.WithLabelValues(intent, outcome).Inc()
	c.requestDuration.WithLabelValues(intent).Observe(d.Seconds())
}

func (c *Collector) ObserveTool(tool, outcome string, d time.Duration) {
	if c == nil {
		return
	}
	c.toolCallsTotal.WithLabelValues(tool, outcome).Inc()
	c.toolDuration.WithLabelValues(tool).Observe(d.Seconds())
}

func (c *Collector) ObserveQuota(tier, result string) {
	if c == nil {
		return
	}
	c.quotaDecisions.WithLabelValues(tier, result).Inc()
}

func (c *Collector) ObserveRefresh(result string) {
	if c == nil {
		return
	}
	c.credentialRefresh.WithLabelValues(result).Inc()
}

func (c *Collector) ObserveGeneration(outcome string, d time.Duration) {
	if c == nil {
		return
	}
	c.generationDuration.WithLabelValues(outcome).Observe(d.Seconds())
}

func (c *Collector) ObserveMemoryDegraded(store string) {
	if c == nil {
		return
	}
	c.memoryDegraded.WithLabelValues(store).Inc()
}
