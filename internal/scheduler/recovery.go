package scheduler

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/procflow/control-plane/internal/obs"
)

// RecoveryEngine re-places workloads whose bound node went offline.
type RecoveryEngine struct {
	sched  *Scheduler
	period time.Duration
}

// NewRecoveryEngine returns an engine using the Scheduler's configured period.
func NewRecoveryEngine(s *Scheduler) *RecoveryEngine {
	return &RecoveryEngine{sched: s, period: s.cfg.RecoveryPeriod}
}

// Run ticks every period until ctx is cancelled. A tick's failures never
// propagate out of the loop — they leave the workload in FailedSet for the
// next tick.
func (r *RecoveryEngine) Run(ctx context.Context) {
	ticker := time.NewTicker(r.period)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.tick(ctx)
		}
	}
}

func (r *RecoveryEngine) tick(ctx context.Context) {
	s := r.sched

	s.mu.Lock()
	ids := make([]string, 0, len(s.failed))
	for id := range s.failed {
		ids = append(ids, id)
	}
	s.mu.Unlock()

	for _, id := range ids {
		r.attempt(ctx, id)
	}
}

// attempt runs one recovery step for workload id: lookup, decide, RPC,
// update. The Scheduler lock is held across the whole sequence so a
// workload can never be started on two nodes concurrently; the RPC itself
// still carries its own bounded timeout so a wedged node cannot hang the
// lock forever.
func (r *RecoveryEngine) attempt(ctx context.Context, id string) {
	s := r.sched

	s.mu.Lock()
	defer s.mu.Unlock()

	w, ok := s.workload[id]
	if !ok || !s.failed[id] {
		return
	}

	if w.RetryCount >= s.cfg.MaxRetries {
		w.Status = WorkloadFailed
		delete(s.failed, id)
		s.log.Warn("workload exhausted retries, marking terminally failed", zap.String("workload", id))
		obs.SchedulerRecoveriesTotal.WithLabelValues("exhausted").Inc()
		return
	}

	entry := s.desired[id]
	var exclude *NodeKey
	if entry != nil {
		excl := entry.Node
		exclude = &excl
	}

	node, err := s.selectNode(exclude)
	if err != nil {
		w.RetryCount++
		s.log.Debug("recovery placement failed: no candidate", zap.String("workload", id))
		obs.SchedulerRecoveriesTotal.WithLabelValues("no_candidate").Inc()
		return
	}
	targetKey := node.Key
	scriptPath := w.ScriptPath
	if entry != nil {
		scriptPath = entry.ScriptPath
	}

	rpcCtx, cancel := context.WithTimeout(ctx, s.cfg.RPCTimeout)
	pid, rpcErr := s.startWorkloadRPC(rpcCtx, targetKey, scriptPath)
	cancel()

	if rpcErr != nil {
		w.RetryCount++
		s.log.Warn("recovery placement RPC failed", zap.String("workload", id), zap.Error(rpcErr))
		obs.SchedulerRecoveriesTotal.WithLabelValues("rpc_failed").Inc()
		return
	}

	s.desired[id] = &DesiredEntry{WorkloadID: id, Node: targetKey, PID: pid, ScriptPath: scriptPath}
	w.Node = &targetKey
	w.PID = &pid
	w.Status = WorkloadRunning
	delete(s.failed, id)
	s.pendingReset[id] = targetKey.String()

	s.log.Info("workload recovered", zap.String("workload", id), zap.String("node", targetKey.String()), zap.Int("pid", pid))
	obs.SchedulerRecoveriesTotal.WithLabelValues("success").Inc()
}
