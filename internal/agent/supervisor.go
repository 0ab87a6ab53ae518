package agent

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"
)

// ErrEmptyScriptPath is returned by Start when script_path is empty.
var ErrEmptyScriptPath = errors.New("script_path must not be empty")

// ErrUnknownPID is returned by Stop when the PID is not in the process table.
var ErrUnknownPID = errors.New("unknown pid")

const stopGracePeriod = 500 * time.Millisecond

// child bundles the OS process handle with the table-visible record.
type child struct {
	record *ProcessRecord
	cmd    *exec.Cmd
	done   chan struct{} // closed once cmd.Wait() returns
}

// Supervisor owns the process table: spawn, stop, reap, and snapshot. All
// mutations hold a single mutex.
type Supervisor struct {
	mu       sync.Mutex
	children map[int]*child
	log      *zap.Logger
}

// NewSupervisor returns a Supervisor with an empty process table.
func NewSupervisor(log *zap.Logger) *Supervisor {
	return &Supervisor{
		children: make(map[int]*child),
		log:      log,
	}
}

// Start spawns script_path as a child process and returns its PID. The path
// is not canonicalized or checked for existence beforehand. A path the OS
// cannot execute makes cmd.Start fail: Start returns the spawn error and no
// record is created. A child that starts and then exits on its own stays in
// the table until the reaper purges it.
func (s *Supervisor) Start(scriptPath string) (int, error) {
	if scriptPath == "" {
		return 0, ErrEmptyScriptPath
	}

	cmd := exec.Command(scriptPath)
	if err := cmd.Start(); err != nil {
		return 0, fmt.Errorf("spawn failed: %w", err)
	}

	rec := &ProcessRecord{
		PID:       cmd.Process.Pid,
		Command:   scriptPath,
		StartTime: time.Now(),
		Status:    ProcessRunning,
	}
	c := &child{record: rec, cmd: cmd, done: make(chan struct{})}

	s.mu.Lock()
	s.children[rec.PID] = c
	s.mu.Unlock()

	go func() {
		_ = cmd.Wait()
		close(c.done)
	}()

	s.log.Info("spawned workload process", zap.Int("pid", rec.PID), zap.String("script", scriptPath))
	return rec.PID, nil
}

// Stop sends SIGTERM to pid, waits up to the grace period, then SIGKILL if
// the child is still alive. It does not wait for the reaper to confirm exit.
func (s *Supervisor) Stop(pid int) error {
	s.mu.Lock()
	c, ok := s.children[pid]
	s.mu.Unlock()
	if !ok {
		return ErrUnknownPID
	}

	_ = c.cmd.Process.Signal(syscall.SIGTERM)

	select {
	case <-c.done:
	case <-time.After(stopGracePeriod):
		_ = c.cmd.Process.Signal(syscall.SIGKILL)
	}

	s.mu.Lock()
	delete(s.children, pid)
	s.mu.Unlock()

	s.log.Info("stopped workload process", zap.Int("pid", pid))
	return nil
}

// Snapshot returns a copy of every record currently in the table.
func (s *Supervisor) Snapshot() []ProcessRecord {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]ProcessRecord, 0, len(s.children))
	for _, c := range s.children {
		out = append(out, *c.record)
	}
	return out
}

// Reap runs once every 5s and drops records whose PID no longer
// corresponds to a live process, probed with a zero signal.
func (s *Supervisor) Reap(ctx context.Context) {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.reapOnce()
		}
	}
}

func (s *Supervisor) reapOnce() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for pid, c := range s.children {
		if err := c.cmd.Process.Signal(syscall.Signal(0)); err != nil {
			delete(s.children, pid)
			s.log.Debug("reaped dead process record", zap.Int("pid", pid))
		}
	}
}
