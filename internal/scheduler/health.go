package scheduler

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/procflow/control-plane/internal/obs"
)

// HealthMonitor runs the periodic probe loop and owns every Node's status
// transitions. It is the sole writer of Node.Status.
type HealthMonitor struct {
	sched  *Scheduler
	probe  *probeClient
	period time.Duration
}

// NewHealthMonitor returns a monitor using the Scheduler's configured period
// and per-probe timeout.
func NewHealthMonitor(s *Scheduler) *HealthMonitor {
	return &HealthMonitor{
		sched:  s,
		probe:  newProbeClient(s.cfg.HealthCheckTimeout),
		period: s.cfg.HealthCheckInterval,
	}
}

// Run ticks every period until ctx is cancelled. Errors from individual
// probes never propagate out of the loop: they are folded into the
// per-node state machine, which logs the transition into Offline.
func (h *HealthMonitor) Run(ctx context.Context) {
	ticker := time.NewTicker(h.period)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			h.tick(ctx)
		}
	}
}

// ForceProbe runs one probe round immediately, for the operator-triggered
// POST /health/check endpoint.
func (h *HealthMonitor) ForceProbe(ctx context.Context) {
	h.tick(ctx)
}

func (h *HealthMonitor) tick(ctx context.Context) {
	s := h.sched

	s.mu.Lock()
	keys := make([]NodeKey, 0, len(s.nodes))
	for _, n := range s.nodes {
		keys = append(keys, n.Key)
	}
	s.mu.Unlock()

	// Nodes are probed concurrently: there is no cross-node ordering
	// guarantee, only in-order processing of outcomes for a single node,
	// which holds trivially since each node gets exactly one probe per tick.
	var wg sync.WaitGroup
	for _, key := range keys {
		key := key
		wg.Add(1)
		go func() {
			defer wg.Done()
			probeCtx, cancel := context.WithTimeout(ctx, h.sched.cfg.HealthCheckTimeout)
			result, err := h.probe.Probe(probeCtx, key)
			cancel()
			h.apply(key, result, err)
		}()
	}
	wg.Wait()
}

// apply runs the node status transition table for one probe outcome, under
// the Scheduler lock, and raises failure/re-join events.
func (h *HealthMonitor) apply(key NodeKey, result probeResult, probeErr error) {
	s := h.sched

	s.mu.Lock()
	defer s.mu.Unlock()

	n, ok := s.nodes[key.String()]
	if !ok {
		return // node was never registered, or registry is being rebuilt
	}

	n.LastProbeAt = time.Now()
	ok2 := probeErr == nil
	if ok2 {
		n.LastProbeDuration = result.Duration
		obs.SchedulerProbeDuration.Observe(result.Duration.Seconds())
	}

	prevStatus := n.Status

	if ok2 {
		n.CPUPercent = result.CPUPercent
		n.MemoryPercent = result.MemoryPercent
		n.ConsecutiveFailures = 0
		n.Status = NodeOnline
		obs.SchedulerProbesTotal.WithLabelValues("success").Inc()
	} else {
		n.ConsecutiveFailures++
		if n.ConsecutiveFailures >= s.cfg.FailureThreshold {
			n.Status = NodeOffline
		} else if prevStatus != NodeOffline {
			n.Status = NodeDegraded
		}
		obs.SchedulerProbesTotal.WithLabelValues("failure").Inc()
	}

	if prevStatus != NodeOffline && n.Status == NodeOffline {
		h.onFailure(key)
	} else if prevStatus == NodeOffline && n.Status == NodeOnline {
		s.log.Info("node re-joined", zap.String("node", key.String()))
	}

	if n.Status == NodeOnline {
		h.confirmPendingResets(key)
	}

	h.updateNodeMetrics()
}

// onFailure moves every workload desired on this node into FailedSet: for
// every DesiredPlacement entry whose bound node is this node, the workload
// id is added to FailedSet for the recovery loop to pick up. Caller holds
// s.mu.
func (h *HealthMonitor) onFailure(key NodeKey) {
	s := h.sched
	s.log.Warn("node marked offline", zap.String("node", key.String()))

	for id, entry := range s.desired {
		if entry.Node != key {
			continue
		}
		s.failed[id] = true
		if w, ok := s.workload[id]; ok {
			w.Status = WorkloadRecovering
		}
	}
}

// confirmPendingResets zeroes retry_count for workloads whose recovery
// placement landed on this node and whose first post-placement probe just
// came back healthy. Caller holds s.mu.
func (h *HealthMonitor) confirmPendingResets(key NodeKey) {
	s := h.sched
	for id, pendingNode := range s.pendingReset {
		if pendingNode != key.String() {
			continue
		}
		if w, ok := s.workload[id]; ok {
			w.RetryCount = 0
		}
		delete(s.pendingReset, id)
	}
}

// updateNodeMetrics refreshes the node-count gauges. Caller holds s.mu.
func (h *HealthMonitor) updateNodeMetrics() {
	s := h.sched
	counts := map[NodeStatus]int{}
	for _, n := range s.nodes {
		counts[n.Status]++
	}
	for _, st := range []NodeStatus{NodeOnline, NodeDegraded, NodeOffline, NodeUnknown} {
		obs.SchedulerNodesTotal.WithLabelValues(string(st)).Set(float64(counts[st]))
	}
}
