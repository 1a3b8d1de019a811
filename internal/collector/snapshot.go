package collector

import (
	"sync/atomic"
	"time"
)

// Snapshot is the metrics record assembled once per tick. It is passed by
// value; observers never share memory with the collector.
type Snapshot struct {
	FPS                  int
	UsedMemoryMB         int
	CPUUsagePercent      float64
	LastRequestLatencyMs int64
	NetworkCallCount     int
	CollectedAt          time.Time
}

// Observer receives a snapshot after every tick. Calls are serialized and
// come from the collector's loop goroutine.
type Observer interface {
	OnSnapshot(Snapshot)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(Snapshot)

// OnSnapshot implements Observer.
func (f ObserverFunc) OnSnapshot(s Snapshot) { f(s) }

type observerRef struct {
	observer Observer
}

// observerSlot holds either no observer or exactly one. Swaps are atomic so
// a tick in flight delivers to whichever observer it loaded.
type observerSlot struct {
	p atomic.Pointer[observerRef]
}

func (s *observerSlot) set(o Observer) {
	if o == nil {
		s.p.Store(nil)
		return
	}
	s.p.Store(&observerRef{observer: o})
}

func (s *observerSlot) get() (Observer, bool) {
	ref := s.p.Load()
	if ref == nil {
		return nil, false
	}
	return ref.observer, true
}
