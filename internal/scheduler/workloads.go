package scheduler

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/procflow/control-plane/internal/obs"
)

// ErrUnknownWorkload is returned by Stop when the id is not tracked.
var ErrUnknownWorkload = errors.New("unknown workload")

// ErrEmptyScriptPath is returned by Submit when script_path is empty.
var ErrEmptyScriptPath = errors.New("script_path must not be empty")

// Submit accepts a new workload and attempts immediate placement. If no
// candidate node exists, or the start RPC fails, the workload is left Pending
// in FailedSet for the recovery loop to retry — apart from an empty script
// path, submission always succeeds from the caller's point of view.
func (s *Scheduler) Submit(ctx context.Context, scriptPath string) (*Workload, error) {
	if scriptPath == "" {
		return nil, ErrEmptyScriptPath
	}

	now := time.Now()

	s.mu.Lock()
	id := s.nextWorkloadID(now)
	w := &Workload{
		ID:          id,
		ScriptPath:  scriptPath,
		SubmittedAt: now,
		Status:      WorkloadPending,
	}
	s.workload[id] = w

	node, err := s.selectNode(nil)
	if err != nil {
		s.failed[id] = true
	}
	s.mu.Unlock()

	if err != nil {
		s.log.Info("workload accepted, no candidate node yet", zap.String("workload", id))
		s.updateWorkloadMetrics()
		return w, nil
	}

	rpcCtx, cancel := context.WithTimeout(ctx, s.cfg.RPCTimeout)
	pid, rpcErr := s.startWorkloadRPC(rpcCtx, node.Key, scriptPath)
	cancel()

	s.mu.Lock()
	defer s.mu.Unlock()

	w, ok := s.workload[id]
	if !ok {
		return w, nil // defensive: nothing else can reach this id before Submit returns it
	}

	if rpcErr != nil {
		s.failed[id] = true
		s.log.Warn("initial placement RPC failed, leaving workload pending", zap.String("workload", id), zap.Error(rpcErr))
		s.updateWorkloadMetricsLocked()
		return w, nil
	}

	targetKey := node.Key
	s.desired[id] = &DesiredEntry{WorkloadID: id, Node: targetKey, PID: pid, ScriptPath: scriptPath}
	w.Node = &targetKey
	w.PID = &pid
	w.Status = WorkloadRunning

	s.log.Info("workload placed", zap.String("workload", id), zap.String("node", targetKey.String()), zap.Int("pid", pid))
	s.updateWorkloadMetricsLocked()
	return w, nil
}

// Stop removes the DesiredPlacement entry and issues a best-effort stop RPC.
// The lock is held across the whole lookup/decide/RPC/update sequence, same
// as the recovery engine, so a stop can never race a recovery attempt for
// the same workload into two bindings.
func (s *Scheduler) Stop(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	w, ok := s.workload[id]
	if !ok {
		return ErrUnknownWorkload
	}

	entry := s.desired[id]
	if entry != nil {
		rpcCtx, cancel := context.WithTimeout(ctx, s.cfg.RPCTimeout)
		if err := s.stopWorkloadRPC(rpcCtx, entry.Node, entry.PID); err != nil {
			s.log.Warn("best-effort stop RPC failed", zap.String("workload", id), zap.Error(err))
		}
		cancel()
	}

	delete(s.desired, id)
	delete(s.failed, id)
	delete(s.pendingReset, id)
	w.Status = WorkloadStopped
	w.Node = nil
	w.PID = nil

	s.log.Info("workload stopped", zap.String("workload", id))
	s.updateWorkloadMetricsLocked()
	return nil
}

// Workloads returns a snapshot of every tracked workload.
func (s *Scheduler) Workloads() []Workload {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Workload, 0, len(s.workload))
	for _, w := range s.workload {
		out = append(out, *w)
	}
	return out
}

// Workload returns a single workload by id.
func (s *Scheduler) Workload(id string) (Workload, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	w, ok := s.workload[id]
	if !ok {
		return Workload{}, false
	}
	return *w, true
}

func (s *Scheduler) updateWorkloadMetrics() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.updateWorkloadMetricsLocked()
}

func (s *Scheduler) updateWorkloadMetricsLocked() {
	counts := map[WorkloadStatus]int{}
	for _, w := range s.workload {
		counts[w.Status]++
	}
	for _, st := range []WorkloadStatus{WorkloadPending, WorkloadRunning, WorkloadStopped, WorkloadFailed, WorkloadRecovering} {
		obs.SchedulerWorkloadsTotal.WithLabelValues(string(st)).Set(float64(counts[st]))
	}
}
