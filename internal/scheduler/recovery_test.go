package scheduler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func registerOnlineTestNode(t *testing.T, s *Scheduler, handler http.HandlerFunc) NodeKey {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	u, err := url.Parse(srv.URL)
	require.NoError(t, err)
	port, err := strconv.Atoi(u.Port())
	require.NoError(t, err)

	key := s.Register(u.Hostname(), port)
	setNodeStatus(s, key, NodeOnline, 10)
	return key
}

func TestRecoveryEngine_SuccessfulAttemptRebinds(t *testing.T) {
	s := newTestScheduler()
	deadKey := NodeKey{Host: "dead", Port: 1}
	newKey := registerOnlineTestNode(t, s, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]int{"pid": 555})
	})

	s.mu.Lock()
	s.workload["w1"] = &Workload{ID: "w1", ScriptPath: "/bin/true", Status: WorkloadRecovering, Node: &deadKey}
	s.desired["w1"] = &DesiredEntry{WorkloadID: "w1", Node: deadKey, PID: 1, ScriptPath: "/bin/true"}
	s.failed["w1"] = true
	s.mu.Unlock()

	r := NewRecoveryEngine(s)
	r.attempt(context.Background(), "w1")

	s.mu.Lock()
	w := s.workload["w1"]
	_, stillFailed := s.failed["w1"]
	s.mu.Unlock()

	assert.False(t, stillFailed)
	assert.Equal(t, WorkloadRunning, w.Status)
	require.NotNil(t, w.PID)
	assert.Equal(t, 555, *w.PID)
	require.NotNil(t, w.Node)
	assert.Equal(t, newKey, *w.Node)
}

func TestRecoveryEngine_NoCandidateIncrementsRetryCount(t *testing.T) {
	s := newTestScheduler()
	deadKey := NodeKey{Host: "dead", Port: 1}

	s.mu.Lock()
	s.workload["w1"] = &Workload{ID: "w1", ScriptPath: "/bin/true", Status: WorkloadRecovering, Node: &deadKey}
	s.desired["w1"] = &DesiredEntry{WorkloadID: "w1", Node: deadKey, PID: 1, ScriptPath: "/bin/true"}
	s.failed["w1"] = true
	s.mu.Unlock()

	r := NewRecoveryEngine(s)
	r.attempt(context.Background(), "w1")

	s.mu.Lock()
	w := s.workload["w1"]
	stillFailed := s.failed["w1"]
	s.mu.Unlock()

	assert.True(t, stillFailed)
	assert.Equal(t, 1, w.RetryCount)
}

func TestRecoveryEngine_RPCFailureIncrementsRetryCount(t *testing.T) {
	s := newTestScheduler()
	deadKey := NodeKey{Host: "dead", Port: 1}
	registerOnlineTestNode(t, s, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "boom"})
	})

	s.mu.Lock()
	s.workload["w1"] = &Workload{ID: "w1", ScriptPath: "/bin/true", Status: WorkloadRecovering, Node: &deadKey}
	s.desired["w1"] = &DesiredEntry{WorkloadID: "w1", Node: deadKey, PID: 1, ScriptPath: "/bin/true"}
	s.failed["w1"] = true
	s.mu.Unlock()

	r := NewRecoveryEngine(s)
	r.attempt(context.Background(), "w1")

	s.mu.Lock()
	w := s.workload["w1"]
	stillFailed := s.failed["w1"]
	s.mu.Unlock()

	assert.True(t, stillFailed)
	assert.Equal(t, 1, w.RetryCount)
}

func TestRecoveryEngine_ExhaustedRetriesMarksTerminallyFailed(t *testing.T) {
	s := newTestScheduler()
	deadKey := NodeKey{Host: "dead", Port: 1}

	s.mu.Lock()
	s.workload["w1"] = &Workload{ID: "w1", ScriptPath: "/bin/true", Status: WorkloadRecovering, Node: &deadKey, RetryCount: s.cfg.MaxRetries}
	s.desired["w1"] = &DesiredEntry{WorkloadID: "w1", Node: deadKey, PID: 1, ScriptPath: "/bin/true"}
	s.failed["w1"] = true
	s.mu.Unlock()

	r := NewRecoveryEngine(s)
	r.attempt(context.Background(), "w1")

	s.mu.Lock()
	w := s.workload["w1"]
	_, stillFailed := s.failed["w1"]
	s.mu.Unlock()

	assert.False(t, stillFailed)
	assert.Equal(t, WorkloadFailed, w.Status)
}

func TestRecoveryEngine_AttemptIgnoresUnfailedWorkload(t *testing.T) {
	s := newTestScheduler()
	s.mu.Lock()
	s.workload["w1"] = &Workload{ID: "w1", Status: WorkloadRunning}
	s.mu.Unlock()

	r := NewRecoveryEngine(s)
	r.attempt(context.Background(), "w1")

	s.mu.Lock()
	w := s.workload["w1"]
	s.mu.Unlock()
	assert.Equal(t, WorkloadRunning, w.Status)
}
