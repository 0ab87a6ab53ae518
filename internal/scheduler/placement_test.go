package scheduler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setNodeStatus(s *Scheduler, key NodeKey, status NodeStatus, cpu float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := s.nodes[key.String()]
	n.Status = status
	n.CPUPercent = cpu
}

func TestSelectNode_NoCandidates(t *testing.T) {
	s := newTestScheduler()
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.selectNode(nil)
	assert.ErrorIs(t, err, ErrNoCandidate)
}

func TestSelectNode_SkipsOfflineAndDegraded(t *testing.T) {
	s := newTestScheduler()
	offline := s.Register("offline", 1)
	degraded := s.Register("degraded", 2)
	online := s.Register("online", 3)

	setNodeStatus(s, offline, NodeOffline, 10)
	setNodeStatus(s, degraded, NodeDegraded, 10)
	setNodeStatus(s, online, NodeOnline, 10)

	s.mu.Lock()
	defer s.mu.Unlock()
	n, err := s.selectNode(nil)
	require.NoError(t, err)
	assert.Equal(t, online, n.Key)
}

func TestSelectNode_SkipsOverCeiling(t *testing.T) {
	s := newTestScheduler()
	busy := s.Register("busy", 1)
	idle := s.Register("idle", 2)

	setNodeStatus(s, busy, NodeOnline, 95)
	setNodeStatus(s, idle, NodeOnline, 10)

	s.mu.Lock()
	defer s.mu.Unlock()
	n, err := s.selectNode(nil)
	require.NoError(t, err)
	assert.Equal(t, idle, n.Key)
}

func TestSelectNode_LowestCPUWins(t *testing.T) {
	s := newTestScheduler()
	a := s.Register("a", 1)
	b := s.Register("b", 2)

	setNodeStatus(s, a, NodeOnline, 50)
	setNodeStatus(s, b, NodeOnline, 20)

	s.mu.Lock()
	defer s.mu.Unlock()
	n, err := s.selectNode(nil)
	require.NoError(t, err)
	assert.Equal(t, b, n.Key)
}

func TestSelectNode_ExcludeSkippedUnlessSoleCandidate(t *testing.T) {
	s := newTestScheduler()
	a := s.Register("a", 1)
	b := s.Register("b", 2)

	setNodeStatus(s, a, NodeOnline, 30)
	setNodeStatus(s, b, NodeOnline, 30)

	s.mu.Lock()
	n, err := s.selectNode(&a)
	s.mu.Unlock()
	require.NoError(t, err)
	assert.Equal(t, b, n.Key)
}

func TestSelectNode_ExcludeUsedWhenSoleCandidate(t *testing.T) {
	s := newTestScheduler()
	a := s.Register("a", 1)
	setNodeStatus(s, a, NodeOnline, 30)

	s.mu.Lock()
	n, err := s.selectNode(&a)
	s.mu.Unlock()
	require.NoError(t, err)
	assert.Equal(t, a, n.Key)
}
