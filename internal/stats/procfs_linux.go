package stats

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/procfs"
)

// ProcFS reads process counters straight from /proc. Memory is the
// proportional set size from smaps_rollup.
type ProcFS struct {
	proc procfs.Proc
}

// NewProcFSSource opens /proc/<pid>.
func NewProcFSSource(pid int) (*ProcFS, error) {
	fs, err := procfs.NewDefaultFS()
	if err != nil {
		return nil, errors.Wrap(err, "failed to mount procfs")
	}
	p, err := fs.Proc(pid)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open process %d", pid)
	}
	return &ProcFS{proc: p}, nil
}

// Name implements ResourceSource.
func (s *ProcFS) Name() string { return SourceProcFS }

// MemoryBytes implements ResourceSource.
func (s *ProcFS) MemoryBytes(_ context.Context) (uint64, error) {
	rollup, err := s.proc.ProcSMapsRollup()
	if err != nil {
		return 0, errors.Wrap(err, "read smaps_rollup")
	}
	if rollup.Pss > 0 {
		return rollup.Pss, nil
	}
	// kernels without Pss in the rollup still report Rss
	return rollup.Rss, nil
}

// CPUTime implements ResourceSource.
func (s *ProcFS) CPUTime(_ context.Context) (time.Duration, error) {
	stat, err := s.proc.Stat()
	if err != nil {
		return 0, errors.Wrap(err, "read stat")
	}
	return time.Duration(stat.CPUTime() * float64(time.Second)), nil
}
