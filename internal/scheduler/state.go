package scheduler

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
)

// stateFile is the on-disk layout for orchestrator_state.json.
type stateFile struct {
	Workloads []workloadRecord `json:"workloads"`
	Desired   []desiredRecord  `json:"desired"`
}

type workloadRecord struct {
	ID          string    `json:"id"`
	ScriptPath  string    `json:"script_path"`
	SubmittedAt time.Time `json:"submitted_at"`
	Status      string    `json:"status"`
	NodeHost    string    `json:"node_host,omitempty"`
	NodePort    int       `json:"node_port,omitempty"`
	PID         *int      `json:"pid,omitempty"`
	RetryCount  int       `json:"retry_count"`
}

type desiredRecord struct {
	WorkloadID string `json:"workload_id"`
	NodeHost   string `json:"node_host"`
	NodePort   int    `json:"node_port"`
	PID        int    `json:"pid"`
	ScriptPath string `json:"script_path"`
}

// StatePersister periodically serializes DesiredPlacement and the workload
// table to a single JSON file, atomically.
type StatePersister struct {
	sched  *Scheduler
	path   string
	period time.Duration
}

// NewStatePersister returns a persister using the Scheduler's configured
// path and save period.
func NewStatePersister(s *Scheduler) *StatePersister {
	return &StatePersister{sched: s, path: s.cfg.StateFilePath, period: s.cfg.StateSavePeriod}
}

// Run saves on each tick until ctx is cancelled, and once more on the way out
// so a graceful shutdown doesn't lose the last interval's changes.
func (p *StatePersister) Run(ctx context.Context) {
	ticker := time.NewTicker(p.period)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			if err := p.Save(); err != nil {
				p.sched.log.Error("final state save failed", zap.Error(err))
			}
			return
		case <-ticker.C:
			if err := p.Save(); err != nil {
				p.sched.log.Error("state save failed", zap.Error(err))
			}
		}
	}
}

// Save snapshots state under the lock, then writes to disk unlocked, so the
// filesystem syscall never blocks placement or recovery.
func (p *StatePersister) Save() error {
	s := p.sched

	s.mu.Lock()
	snap := snapshotState(s)
	s.mu.Unlock()

	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return err
	}

	return writeFileAtomic(p.path, data)
}

func snapshotState(s *Scheduler) stateFile {
	var snap stateFile
	for _, w := range s.workload {
		rec := workloadRecord{
			ID:          w.ID,
			ScriptPath:  w.ScriptPath,
			SubmittedAt: w.SubmittedAt,
			Status:      string(w.Status),
			RetryCount:  w.RetryCount,
		}
		if w.Node != nil {
			rec.NodeHost = w.Node.Host
			rec.NodePort = w.Node.Port
		}
		rec.PID = w.PID
		snap.Workloads = append(snap.Workloads, rec)
	}
	for _, d := range s.desired {
		snap.Desired = append(snap.Desired, desiredRecord{
			WorkloadID: d.WorkloadID,
			NodeHost:   d.Node.Host,
			NodePort:   d.Node.Port,
			PID:        d.PID,
			ScriptPath: d.ScriptPath,
		})
	}
	return snap
}

// writeFileAtomic writes to a temp file in the same directory and renames it
// over path, so a crash mid-write leaves the previous valid file intact.
func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".orchestrator_state-*.tmp")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return err
	}
	return os.Rename(tmpPath, path)
}

// Load reads path, if present, and seeds the Scheduler's workload table and
// DesiredPlacement from it. It does not re-issue start RPCs: loaded
// workloads are trusted to already be running until the next health probe
// proves otherwise.
func (s *Scheduler) Load(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	var snap stateFile
	if err := json.Unmarshal(data, &snap); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, rec := range snap.Workloads {
		w := &Workload{
			ID:          rec.ID,
			ScriptPath:  rec.ScriptPath,
			SubmittedAt: rec.SubmittedAt,
			Status:      WorkloadStatus(rec.Status),
			RetryCount:  rec.RetryCount,
			PID:         rec.PID,
		}
		if rec.NodeHost != "" {
			k := NodeKey{Host: rec.NodeHost, Port: rec.NodePort}
			w.Node = &k
		}
		s.workload[rec.ID] = w
	}

	for _, rec := range snap.Desired {
		s.desired[rec.WorkloadID] = &DesiredEntry{
			WorkloadID: rec.WorkloadID,
			Node:       NodeKey{Host: rec.NodeHost, Port: rec.NodePort},
			PID:        rec.PID,
			ScriptPath: rec.ScriptPath,
		}
	}

	s.log.Info("loaded scheduler state", zap.Int("workloads", len(snap.Workloads)), zap.Int("desired", len(snap.Desired)))
	return nil
}
