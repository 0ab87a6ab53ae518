// Package scheduler implements the Scheduler: node registry, placement
// policy, health monitoring, recovery, and state persistence.
package scheduler

import (
	"fmt"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/procflow/control-plane/internal/config"
)

// Scheduler holds every piece of mutable state behind one lock:
// the node registry, the workload table, DesiredPlacement, and FailedSet.
type Scheduler struct {
	mu sync.Mutex

	nodes    map[string]*Node
	nextSeq  int
	workload map[string]*Workload
	desired  map[string]*DesiredEntry
	failed   map[string]bool

	// pendingReset marks workloads whose retry_count should drop to 0 once
	// their newly-assigned node's next health probe reports Online. The
	// reset happens on the next healthy tick, not instantly.
	pendingReset map[string]string // workload id -> node key awaiting confirmation

	cfg        *config.Scheduler
	log        *zap.Logger
	httpClient *http.Client

	workloadSeq int64
}

// New returns an empty Scheduler.
func New(cfg *config.Scheduler, log *zap.Logger) *Scheduler {
	return &Scheduler{
		nodes:        make(map[string]*Node),
		workload:     make(map[string]*Workload),
		desired:      make(map[string]*DesiredEntry),
		failed:       make(map[string]bool),
		pendingReset: make(map[string]string),
		cfg:          cfg,
		log:          log,
		httpClient:   &http.Client{Timeout: cfg.RPCTimeout},
	}
}

// Register adds a node to the registry, or resets its counters to Unknown if
// already present. Idempotent with respect to registry membership.
func (s *Scheduler) Register(host string, port int) NodeKey {
	key := NodeKey{Host: host, Port: port}

	s.mu.Lock()
	defer s.mu.Unlock()

	if n, ok := s.nodes[key.String()]; ok {
		n.Status = NodeUnknown
		n.ConsecutiveFailures = 0
		return key
	}

	s.nextSeq++
	s.nodes[key.String()] = &Node{
		Key:    key,
		Status: NodeUnknown,
		seq:    s.nextSeq,
	}
	s.log.Info("node registered", zap.String("node", key.String()))
	return key
}

// Nodes returns a snapshot of the registry, ordered by registration order.
func (s *Scheduler) Nodes() []Node {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nodesLocked()
}

func (s *Scheduler) nodesLocked() []Node {
	out := make([]Node, 0, len(s.nodes))
	for _, n := range s.nodes {
		out = append(out, *n)
	}
	sortNodesBySeq(out)
	return out
}

func sortNodesBySeq(nodes []Node) {
	for i := 1; i < len(nodes); i++ {
		for j := i; j > 0 && nodes[j-1].seq > nodes[j].seq; j-- {
			nodes[j-1], nodes[j] = nodes[j], nodes[j-1]
		}
	}
}

// nextWorkloadID follows workload_<unix_seconds>_<counter> pattern.
func (s *Scheduler) nextWorkloadID(now time.Time) string {
	s.workloadSeq++
	return fmt.Sprintf("workload_%d_%d", now.Unix(), s.workloadSeq)
}
