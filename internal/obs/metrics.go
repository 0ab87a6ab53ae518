// Package obs also exposes the Prometheus instrumentation shared by both
// services, adapted from cuemby-warren's pkg/metrics registration pattern.
package obs

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Agent-side metrics.
	AgentProcessesRunning = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "orchestrator_agent_processes_running",
		Help: "Number of child processes currently tracked by the agent.",
	})

	AgentCPUUsage = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "orchestrator_agent_cpu_usage_percent",
		Help: "Last sampled host CPU usage percentage.",
	})

	AgentMemoryUsage = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "orchestrator_agent_memory_usage_percent",
		Help: "Last sampled host memory usage percentage.",
	})

	AgentRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "orchestrator_agent_requests_total",
		Help: "Total Agent HTTP requests by route and status.",
	}, []string{"route", "status"})

	// Scheduler-side metrics.
	SchedulerNodesTotal = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "orchestrator_scheduler_nodes_total",
		Help: "Registered nodes by status.",
	}, []string{"status"})

	SchedulerWorkloadsTotal = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "orchestrator_scheduler_workloads_total",
		Help: "Tracked workloads by status.",
	}, []string{"status"})

	SchedulerProbesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "orchestrator_scheduler_probes_total",
		Help: "Health probes issued, by outcome.",
	}, []string{"outcome"})

	SchedulerRecoveriesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "orchestrator_scheduler_recoveries_total",
		Help: "Recovery placement attempts, by outcome.",
	}, []string{"outcome"})

	SchedulerProbeDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "orchestrator_scheduler_probe_duration_seconds",
		Help:    "Health probe round-trip duration.",
		Buckets: prometheus.DefBuckets,
	})

	SchedulerRPCDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "orchestrator_scheduler_rpc_duration_seconds",
		Help:    "Start/stop RPC duration to node agents.",
		Buckets: prometheus.DefBuckets,
	}, []string{"op"})
)

func init() {
	prometheus.MustRegister(
		AgentProcessesRunning,
		AgentCPUUsage,
		AgentMemoryUsage,
		AgentRequestsTotal,
		SchedulerNodesTotal,
		SchedulerWorkloadsTotal,
		SchedulerProbesTotal,
		SchedulerRecoveriesTotal,
		SchedulerProbeDuration,
		SchedulerRPCDuration,
	)
}

// MetricsHandler returns the Prometheus exposition HTTP handler.
func MetricsHandler() http.Handler {
	return promhttp.Handler()
}
