package agent

import "time"

// ProcessStatus is the lifecycle state of a spawned child.
type ProcessStatus string

const (
	ProcessRunning ProcessStatus = "running"
	ProcessExited  ProcessStatus = "exited"
)

// ProcessRecord tracks one child the Agent has spawned. PID is the table key.
type ProcessRecord struct {
	PID       int           `json:"pid"`
	Command   string        `json:"command"`
	StartTime time.Time     `json:"start_time"`
	Status    ProcessStatus `json:"status"`
}

// SystemMetrics is a snapshot of host-wide CPU/memory usage.
type SystemMetrics struct {
	CPUUsage         float64 `json:"cpu_usage"`
	MemoryUsage      float64 `json:"memory_usage"`
	TotalMemory      uint64  `json:"total_memory"`
	AvailableMemory  uint64  `json:"available_memory"`
	RunningProcesses int     `json:"running_processes"`
}
