package stats

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/shirou/gopsutil/v4/process"
)

// Gopsutil reads process counters through gopsutil and works on every
// platform it supports. Memory is the resident set size.
type Gopsutil struct {
	proc *process.Process
}

// NewGopsutilSource attaches to the process with the given pid.
func NewGopsutilSource(pid int) (*Gopsutil, error) {
	p, err := process.NewProcess(int32(pid))
	if err != nil {
		return nil, errors.Wrapf(err, "failed to attach to process %d", pid)
	}
	return &Gopsutil{proc: p}, nil
}

// Name implements ResourceSource.
func (s *Gopsutil) Name() string { return SourceGopsutil }

// MemoryBytes implements ResourceSource.
func (s *Gopsutil) MemoryBytes(ctx context.Context) (uint64, error) {
	info, err := s.proc.MemoryInfoWithContext(ctx)
	if err != nil {
		return 0, errors.Wrap(err, "read memory info")
	}
	return info.RSS, nil
}

// CPUTime implements ResourceSource.
func (s *Gopsutil) CPUTime(ctx context.Context) (time.Duration, error) {
	times, err := s.proc.TimesWithContext(ctx)
	if err != nil {
		return 0, errors.Wrap(err, "read cpu times")
	}
	return time.Duration((times.User + times.System) * float64(time.Second)), nil
}
