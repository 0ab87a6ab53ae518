package scheduler

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatePersister_SaveAndLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")

	s := newTestScheduler()
	s.cfg.StateFilePath = path
	key := NodeKey{Host: "10.0.0.1", Port: 8080}
	pid := 99

	s.mu.Lock()
	s.workload["w1"] = &Workload{
		ID:          "w1",
		ScriptPath:  "/bin/true",
		SubmittedAt: time.Now().Truncate(time.Second),
		Status:      WorkloadRunning,
		Node:        &key,
		PID:         &pid,
		RetryCount:  1,
	}
	s.desired["w1"] = &DesiredEntry{WorkloadID: "w1", Node: key, PID: pid, ScriptPath: "/bin/true"}
	s.mu.Unlock()

	p := NewStatePersister(s)
	p.path = path
	require.NoError(t, p.Save())

	loaded := newTestScheduler()
	require.NoError(t, loaded.Load(path))

	w, ok := loaded.Workload("w1")
	require.True(t, ok)
	assert.Equal(t, WorkloadRunning, w.Status)
	assert.Equal(t, 1, w.RetryCount)
	require.NotNil(t, w.Node)
	assert.Equal(t, key, *w.Node)
	require.NotNil(t, w.PID)
	assert.Equal(t, pid, *w.PID)

	loaded.mu.Lock()
	entry, ok := loaded.desired["w1"]
	loaded.mu.Unlock()
	require.True(t, ok)
	assert.Equal(t, key, entry.Node)
	assert.Equal(t, pid, entry.PID)
}

func TestLoad_MissingFileIsNotAnError(t *testing.T) {
	s := newTestScheduler()
	err := s.Load(filepath.Join(t.TempDir(), "missing.json"))
	assert.NoError(t, err)
	assert.Empty(t, s.Workloads())
}

func TestLoad_DoesNotReissueRPCs(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	key := NodeKey{Host: "10.0.0.1", Port: 8080}
	pid := 1

	s := newTestScheduler()
	s.mu.Lock()
	s.workload["w1"] = &Workload{ID: "w1", Status: WorkloadRunning, Node: &key, PID: &pid}
	s.mu.Unlock()

	p := NewStatePersister(s)
	p.path = path
	require.NoError(t, p.Save())

	loaded := newTestScheduler()
	require.NoError(t, loaded.Load(path))

	loaded.mu.Lock()
	_, failed := loaded.failed["w1"]
	loaded.mu.Unlock()
	assert.False(t, failed)
}
