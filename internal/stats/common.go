package stats

import (
	"context"
	"time"
)

const bytesInMiB = 1024 * 1024

// Source kinds accepted by NewSource.
const (
	SourceAuto     = "auto"
	SourceProcFS   = "procfs"
	SourceGopsutil = "gopsutil"
	SourceCGroup   = "cgroup"
)

// ResourceSource represents the platform counters of one process.
type ResourceSource interface {
	// Name identifies the source in logs
	Name() string

	// MemoryBytes returns the resident memory attributed to the process,
	// proportional set size where the platform reports it
	MemoryBytes(ctx context.Context) (uint64, error)

	// CPUTime returns the total CPU time the process has consumed. Only the
	// difference between two readings is meaningful.
	CPUTime(ctx context.Context) (time.Duration, error)
}

// CPUCounters is one reading of the two monotonic counters a CPU percentage
// is derived from.
type CPUCounters struct {
	ProcessTimeMs int64
	WallTimeMs    int64
}

// Metrics represents one resource sample of the process
type Metrics struct {
	MemoryMB   int
	CPUPercent float64
	Source     string
}
