// Package metrics exposes the runtime's operational counters through
// prometheus/client_golang, the Domain Stack's observability dependency
// (SPEC_FULL.md §2). It defines its own counters and one gauge on a
// private registry so multiple Registry instances in one process (as the
// test suite constructs) don't collide on the default global registry;
// callers update the instruments themselves, nothing copies
// internal/scheduler.Metrics or internal/ghost.Channel counters into them.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Registry bundles the metric instruments one lisztd process exposes.
type Registry struct {
	reg *prometheus.Registry

	KernelLaunches   prometheus.Counter
	KernelFailures   prometheus.Counter
	SchedulerWaits   prometheus.Counter
	SchedulerPolls   prometheus.Counter
	GhostBytesSent   prometheus.Counter
	GhostBytesRecv   prometheus.Counter
	GhostChannelsUp  prometheus.Gauge
	DefragRowsMoved  prometheus.Counter
}

// New builds a Registry on its own private prometheus.Registry, so
// tests and multiple in-process nodes never hit the "duplicate metrics
// collector registration" panic the default global registry would raise.
func New() *Registry {
	reg := prometheus.NewRegistry()
	r := &Registry{
		reg: reg,
		KernelLaunches: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ebb_kernel_launches_total",
			Help: "Total number of kernel version launches completed.",
		}),
		KernelFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ebb_kernel_failures_total",
			Help: "Total number of kernel version launches that returned an error.",
		}),
		SchedulerWaits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ebb_scheduler_signal_waits_total",
			Help: "Total number of signal waits registered by the scheduler.",
		}),
		SchedulerPolls: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ebb_scheduler_poll_ticks_total",
			Help: "Total number of cooperative poll ticks spent waiting on launches.",
		}),
		GhostBytesSent: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ebb_ghost_bytes_sent_total",
			Help: "Total bytes sent across all ghost-exchange channels.",
		}),
		GhostBytesRecv: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ebb_ghost_bytes_recv_total",
			Help: "Total bytes received across all ghost-exchange channels.",
		}),
		GhostChannelsUp: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "ebb_ghost_channels_ready",
			Help: "Number of ghost-exchange channels currently in the Ready state.",
		}),
		DefragRowsMoved: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ebb_defrag_rows_moved_total",
			Help: "Total number of rows moved by elastic-relation defrag passes.",
		}),
	}
	reg.MustRegister(
		r.KernelLaunches, r.KernelFailures,
		r.SchedulerWaits, r.SchedulerPolls,
		r.GhostBytesSent, r.GhostBytesRecv, r.GhostChannelsUp,
		r.DefragRowsMoved,
	)
	return r
}

// Gatherer exposes the underlying registry for an HTTP /metrics handler.
func (r *Registry) Gatherer() prometheus.Gatherer { return r.reg }
