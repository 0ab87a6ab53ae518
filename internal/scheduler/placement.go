package scheduler

import "errors"

// ErrNoCandidate is returned when no node satisfies the placement policy.
var ErrNoCandidate = errors.New("no candidate node available")

// selectNode implements placement policy: status = Online,
// CPU% below the ceiling, lowest CPU% wins, ties broken by registration
// order. Degraded nodes are excluded from placement candidacy entirely,
// rather than treated as Online-equivalent.
//
// exclude, when non-nil, is skipped unless it is the only Online candidate,
// so recovery avoids re-placing onto the node that just failed unless it's
// the only option left.
//
// Caller must hold s.mu.
func (s *Scheduler) selectNode(exclude *NodeKey) (*Node, error) {
	candidates := s.nodesLocked()

	var best *Node
	var excluded *Node
	for i := range candidates {
		n := &candidates[i]
		if n.Status != NodeOnline {
			continue
		}
		if n.CPUPercent >= s.cfg.CPUPlacementCeiling {
			continue
		}
		if exclude != nil && n.Key == *exclude {
			excluded = n
			continue
		}
		if best == nil || n.CPUPercent < best.CPUPercent {
			best = n
		}
	}

	if best != nil {
		return best, nil
	}
	if excluded != nil {
		// excluded was the only Online, under-ceiling candidate.
		return excluded, nil
	}
	return nil, ErrNoCandidate
}
