package stats

import (
	"context"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
)

// ProcessSampler polls a ResourceSource and derives memory in MB and CPU
// usage in percent since the previous sample. A failed measurement keeps the
// previous value, so callers always get something to display.
type ProcessSampler struct {
	mu sync.Mutex

	src    ResourceSource
	clk    clock.Clock
	origin time.Time

	lastMemoryMB int
	lastCPU      float64

	before    CPUCounters
	hasBefore bool
}

// NewProcessSampler creates a sampler over src. Wall time is measured on clk
// relative to the moment of construction.
func NewProcessSampler(src ResourceSource, clk clock.Clock) *ProcessSampler {
	if clk == nil {
		clk = clock.New()
	}
	return &ProcessSampler{
		src:    src,
		clk:    clk,
		origin: clk.Now(),
	}
}

// Source returns the name of the underlying counter source.
func (s *ProcessSampler) Source() string {
	return s.src.Name()
}

// Rebase captures fresh "before" CPU counters. The next SampleCPUPercent
// reports usage since this call. If the counters cannot be read the next
// sample becomes the baseline instead.
func (s *ProcessSampler) Rebase(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.lastCPU = 0
	counters, err := s.readCounters(ctx)
	if err != nil {
		s.hasBefore = false
		return err
	}
	s.before = counters
	s.hasBefore = true
	return nil
}

// SampleMemoryMB returns the process memory in megabytes. On failure it
// returns the previous value together with the error.
func (s *ProcessSampler) SampleMemoryMB(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, err := s.src.MemoryBytes(ctx)
	if err != nil {
		return s.lastMemoryMB, errors.Wrapf(err, "%s: sample memory", s.src.Name())
	}
	s.lastMemoryMB = int(b / bytesInMiB)
	return s.lastMemoryMB, nil
}

// SampleCPUPercent returns the CPU usage since the previous sample (or
// Rebase). Without a baseline it records one and reports 0. On failure it
// returns the previous value and keeps the old baseline.
func (s *ProcessSampler) SampleCPUPercent(ctx context.Context) (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	after, err := s.readCounters(ctx)
	if err != nil {
		return s.lastCPU, err
	}

	if !s.hasBefore {
		s.before = after
		s.hasBefore = true
		s.lastCPU = 0
		return 0, nil
	}

	s.lastCPU = CPUPercent(s.before, after)
	s.before = after
	return s.lastCPU, nil
}

// Sample takes memory and CPU readings in that order. Every field is filled,
// failed ones with their previous value, and the failures are combined.
func (s *ProcessSampler) Sample(ctx context.Context) (Metrics, error) {
	mem, memErr := s.SampleMemoryMB(ctx)
	cpu, cpuErr := s.SampleCPUPercent(ctx)
	return Metrics{
		MemoryMB:   mem,
		CPUPercent: cpu,
		Source:     s.src.Name(),
	}, multierr.Combine(memErr, cpuErr)
}

func (s *ProcessSampler) readCounters(ctx context.Context) (CPUCounters, error) {
	cpu, err := s.src.CPUTime(ctx)
	if err != nil {
		return CPUCounters{}, errors.Wrapf(err, "%s: sample cpu time", s.src.Name())
	}
	return CPUCounters{
		ProcessTimeMs: cpu.Milliseconds(),
		WallTimeMs:    s.clk.Since(s.origin).Milliseconds(),
	}, nil
}

// CPUPercent derives the CPU usage between two counter readings:
// 100 * processDelta / wallDelta clamped to [0, 100]. A non-positive wall
// delta yields 0.
func CPUPercent(before, after CPUCounters) float64 {
	wall := after.WallTimeMs - before.WallTimeMs
	if wall <= 0 {
		return 0
	}
	process := after.ProcessTimeMs - before.ProcessTimeMs
	if process <= 0 {
		return 0
	}

	pct := 100.0 * float64(process) / float64(wall)
	if pct > 100 {
		return 100
	}
	return pct
}
