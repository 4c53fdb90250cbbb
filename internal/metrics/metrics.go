// Package metrics exposes Prometheus metrics about the OpenVPN tool
// invocations and the live panel sessions.
package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"openvpn-webui/internal/gateway"
)

const namespace = "openvpn_webui"

// Collector records gateway invocations. It implements gateway.Observer.
type Collector struct {
	registry *prometheus.Registry

	calls    *prometheus.CounterVec
	failures *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// New creates a collector on a private registry. workspaces, when non-nil,
// reports the number of live panel sessions.
func New(workspaces func() int) *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		calls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "gateway",
			Name:      "calls_total",
			Help:      "OpenVPN tool invocations by subcommand.",
		}, []string{"subcommand"}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "gateway",
			Name:      "failures_total",
			Help:      "Failed OpenVPN tool invocations by subcommand and exit code.",
		}, []string{"subcommand", "exit_code"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "gateway",
			Name:      "duration_seconds",
			Help:      "OpenVPN tool invocation latency.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"subcommand"}),
	}
	c.registry.MustRegister(
		c.calls,
		c.failures,
		c.duration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	if workspaces != nil {
		c.registry.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "workspaces",
			Help:      "Live panel sessions.",
		}, func() float64 { return float64(workspaces()) }))
	}
	return c
}

// ObserveInvocation implements gateway.Observer.
func (c *Collector) ObserveInvocation(inv gateway.Invocation) {
	c.calls.WithLabelValues(inv.Subcommand).Inc()
	c.duration.WithLabelValues(inv.Subcommand).Observe(inv.Duration.Seconds())
	if !inv.OK() {
		c.failures.WithLabelValues(inv.Subcommand, strconv.Itoa(inv.ExitCode)).Inc()
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// Registry returns the underlying registry.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}
