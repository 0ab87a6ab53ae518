package agent

import (
	"math"
	"sync"

	"github.com/c9s/goprocinfo/linux"
)

// statPath and meminfoPath are vars, not consts, so tests can point them at
// fixture files instead of the real kernel pseudofiles.
var (
	statPath    = "/proc/stat"
	meminfoPath = "/proc/meminfo"
)

// Sampler computes host CPU%/mem% from the kernel pseudofiles
// It is instance state, not a package global, so multiple Agents can run in
// one process (tests included) without sharing a prior sample.
type Sampler struct {
	mu   sync.Mutex
	prev *linux.CPUStat
}

// NewSampler returns a Sampler with no prior CPU sample.
func NewSampler() *Sampler {
	return &Sampler{}
}

// CPUPercent returns the CPU busy percentage since the previous call, or 0 on
// the first call (no prior sample) or when the sampled delta is non-finite.
func (s *Sampler) CPUPercent() float64 {
	stat, err := linux.ReadStat(statPath)
	if err != nil {
		return 0
	}

	s.mu.Lock()
	prev := s.prev
	s.prev = &stat.CPUStatAll
	s.mu.Unlock()

	if prev == nil {
		return 0
	}

	cur := stat.CPUStatAll
	prevTotal := total(*prev)
	curTotal := total(cur)
	deltaTotal := float64(curTotal - prevTotal)
	if deltaTotal <= 0 {
		return 0
	}

	prevIdle := prev.Idle + prev.IOWait
	curIdle := cur.Idle + cur.IOWait
	deltaIdle := float64(curIdle - prevIdle)

	pct := 100 * (1 - deltaIdle/deltaTotal)
	if math.IsNaN(pct) || math.IsInf(pct, 0) || pct < 0 {
		return 0
	}
	return pct
}

func total(c linux.CPUStat) uint64 {
	return c.User + c.Nice + c.System + c.Idle + c.IOWait + c.IRQ + c.SoftIRQ + c.Steal
}

// MemoryStats returns (percent used, total kB, available kB). Percent is 0
// when total is 0 or the meminfo read fails.
func (s *Sampler) MemoryStats() (float64, uint64, uint64) {
	mem, err := linux.ReadMemInfo(meminfoPath)
	if err != nil {
		return 0, 0, 0
	}

	if mem.MemTotal == 0 {
		return 0, 0, mem.MemAvailable
	}

	pct := 100 * (1 - float64(mem.MemAvailable)/float64(mem.MemTotal))
	if math.IsNaN(pct) || math.IsInf(pct, 0) || pct < 0 {
		pct = 0
	}
	return pct, mem.MemTotal, mem.MemAvailable
}
