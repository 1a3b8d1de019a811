package collector

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Klaven/perfoverlay/internal/frames"
	"github.com/Klaven/perfoverlay/internal/netmon"
	"github.com/Klaven/perfoverlay/internal/stats"
)

const mib = 1024 * 1024

// scriptedSource is a stats.ResourceSource whose readings tests can change
// between ticks.
type scriptedSource struct {
	mu       sync.Mutex
	memory   uint64
	memErr   error
	cpu      time.Duration
	cpuErr   error
	panicCPU bool
}

func (s *scriptedSource) Name() string { return "scripted" }

func (s *scriptedSource) MemoryBytes(context.Context) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.memory, s.memErr
}

func (s *scriptedSource) CPUTime(context.Context) (time.Duration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.panicCPU {
		panic("cpu counter unavailable")
	}
	return s.cpu, s.cpuErr
}

func (s *scriptedSource) set(fn func(s *scriptedSource)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(s)
}

type fixture struct {
	mock      *clock.Mock
	source    *scriptedSource
	pump      *frames.Pump
	network   *netmon.Aggregator
	hook      *logtest.Hook
	collector *Collector
	snapshots chan Snapshot
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	mock := clock.NewMock()
	logger, hook := logtest.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)

	f := &fixture{
		mock:      mock,
		source:    &scriptedSource{memory: 120 * mib},
		pump:      frames.NewPump(),
		network:   netmon.NewAggregator(),
		hook:      hook,
		snapshots: make(chan Snapshot, 16),
	}
	sampler := stats.NewProcessSampler(f.source, mock)
	f.collector = New(DefaultConfig(), sampler, f.pump, f.network, mock, logger)
	f.collector.SetObserver(ObserverFunc(func(s Snapshot) { f.snapshots <- s }))
	t.Cleanup(f.collector.Stop)
	return f
}

func (f *fixture) next(t *testing.T) Snapshot {
	t.Helper()
	select {
	case s := <-f.snapshots:
		return s
	case <-time.After(2 * time.Second):
		t.Fatal("no snapshot delivered")
	}
	return Snapshot{}
}

func (f *fixture) none(t *testing.T) {
	t.Helper()
	select {
	case s := <-f.snapshots:
		t.Fatalf("unexpected snapshot %+v", s)
	case <-time.After(100 * time.Millisecond):
	}
}

func (f *fixture) warnings() []string {
	var out []string
	for _, e := range f.hook.AllEntries() {
		if e.Level == logrus.WarnLevel {
			if err, ok := e.Data[logrus.ErrorKey].(error); ok {
				out = append(out, err.Error())
			}
		}
	}
	return out
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "stopped", Stopped.String())
	assert.Equal(t, "running", Running.String())
	assert.Equal(t, "state(7)", State(7).String())
}

func TestSnapshotAfterOneSecond(t *testing.T) {
	f := newFixture(t)
	c := f.collector

	c.Start()
	require.Equal(t, Running, c.State())

	for i := int64(0); i < 5; i++ {
		f.pump.Frame(i * int64(20*time.Millisecond))
	}
	f.source.set(func(s *scriptedSource) { s.cpu = 200 * time.Millisecond })
	f.network.ReportCompletion(250)

	f.mock.Add(time.Second)
	snap := f.next(t)

	assert.Equal(t, 50, snap.FPS)
	assert.Equal(t, 120, snap.UsedMemoryMB)
	assert.InDelta(t, 20.0, snap.CPUUsagePercent, 1e-9)
	assert.Equal(t, int64(250), snap.LastRequestLatencyMs)
	assert.Equal(t, 1, snap.NetworkCallCount)
	assert.Equal(t, f.mock.Now(), snap.CollectedAt)
	assert.Equal(t, snap, c.Latest())
}

func TestNoFramesReportsZeroFPS(t *testing.T) {
	f := newFixture(t)
	f.collector.Start()

	f.mock.Add(time.Second)
	snap := f.next(t)
	assert.Equal(t, 0, snap.FPS)
	assert.Equal(t, 0, snap.NetworkCallCount)
	assert.Equal(t, int64(0), snap.LastRequestLatencyMs)
}

func TestStartIsIdempotent(t *testing.T) {
	f := newFixture(t)
	c := f.collector

	c.Start()
	c.Start()
	assert.Equal(t, 1, f.pump.Subscribers())

	f.mock.Add(time.Second)
	f.next(t)
	f.none(t)
}

func TestStopCancelsTickAndFrames(t *testing.T) {
	f := newFixture(t)
	c := f.collector

	assert.Equal(t, Stopped, c.State())
	select {
	case <-c.Done():
	default:
		t.Fatal("Done must be closed before the first Start")
	}

	c.Start()
	f.mock.Add(time.Second)
	f.next(t)

	c.Stop()
	c.Stop()
	assert.Equal(t, Stopped, c.State())
	assert.Equal(t, 0, f.pump.Subscribers())

	select {
	case <-c.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("loop did not exit")
	}

	f.mock.Add(5 * time.Second)
	f.none(t)
}

func TestStopDuringDeliveryLetsTickFinish(t *testing.T) {
	f := newFixture(t)
	c := f.collector

	entered := make(chan struct{}, 1)
	release := make(chan struct{})
	var calls int
	var mu sync.Mutex
	c.SetObserver(ObserverFunc(func(Snapshot) {
		mu.Lock()
		calls++
		mu.Unlock()
		select {
		case entered <- struct{}{}:
		default:
		}
		<-release
	}))

	c.Start()
	f.mock.Add(time.Second)
	<-entered

	c.Stop()
	close(release)
	<-c.Done()

	f.mock.Add(3 * time.Second)
	time.Sleep(50 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 1, calls)
}

func TestObserverMayStopCollector(t *testing.T) {
	f := newFixture(t)
	c := f.collector

	c.SetObserver(ObserverFunc(func(Snapshot) { c.Stop() }))
	c.Start()
	f.mock.Add(time.Second)

	select {
	case <-c.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("observer calling Stop must not deadlock")
	}
	assert.Equal(t, Stopped, c.State())
}

func TestRestartResetsFrameWindow(t *testing.T) {
	f := newFixture(t)
	c := f.collector

	c.Start()
	for i := int64(0); i < 5; i++ {
		f.pump.Frame(i * int64(20*time.Millisecond))
	}
	f.mock.Add(time.Second)
	assert.Equal(t, 50, f.next(t).FPS)

	c.Stop()
	<-c.Done()
	c.Start()

	f.mock.Add(time.Second)
	assert.Equal(t, 0, f.next(t).FPS)
}

func TestObserverSwap(t *testing.T) {
	f := newFixture(t)
	c := f.collector

	c.Start()
	f.mock.Add(time.Second)
	f.next(t)

	other := make(chan Snapshot, 4)
	c.SetObserver(ObserverFunc(func(s Snapshot) { other <- s }))
	f.mock.Add(time.Second)
	select {
	case <-other:
	case <-time.After(2 * time.Second):
		t.Fatal("replacement observer not called")
	}
	f.none(t)

	c.SetObserver(nil)
	f.mock.Add(time.Second)
	want := f.mock.Now()
	require.Eventually(t, func() bool {
		return c.Latest().CollectedAt.Equal(want)
	}, 2*time.Second, 5*time.Millisecond)
	assert.Empty(t, other)
}

func TestFailedReadingsKeepLastValues(t *testing.T) {
	f := newFixture(t)
	c := f.collector

	c.Start()
	f.source.set(func(s *scriptedSource) { s.cpu = 300 * time.Millisecond })
	f.mock.Add(time.Second)
	first := f.next(t)
	require.Equal(t, 120, first.UsedMemoryMB)
	require.InDelta(t, 30.0, first.CPUUsagePercent, 1e-9)

	f.source.set(func(s *scriptedSource) {
		s.memErr = errors.New("smaps unreadable")
		s.cpuErr = errors.New("stat unreadable")
	})
	f.network.ReportCompletion(75)
	f.mock.Add(time.Second)
	second := f.next(t)

	assert.Equal(t, 120, second.UsedMemoryMB)
	assert.InDelta(t, 30.0, second.CPUUsagePercent, 1e-9)
	assert.Equal(t, int64(75), second.LastRequestLatencyMs)

	warnings := f.warnings()
	require.NotEmpty(t, warnings)
	last := warnings[len(warnings)-1]
	assert.Contains(t, last, "smaps unreadable")
	assert.Contains(t, last, "stat unreadable")
}

func TestPanickingSamplerDoesNotAbortTick(t *testing.T) {
	f := newFixture(t)
	c := f.collector

	c.Start()
	f.source.set(func(s *scriptedSource) { s.cpu = 100 * time.Millisecond })
	f.mock.Add(time.Second)
	first := f.next(t)
	require.InDelta(t, 10.0, first.CPUUsagePercent, 1e-9)

	f.source.set(func(s *scriptedSource) {
		s.memory = 64 * mib
		s.panicCPU = true
	})
	f.mock.Add(time.Second)
	second := f.next(t)

	assert.Equal(t, 64, second.UsedMemoryMB)
	assert.InDelta(t, 10.0, second.CPUUsagePercent, 1e-9)

	found := false
	for _, w := range f.warnings() {
		if strings.Contains(w, "cpu sampler panicked") {
			found = true
		}
	}
	assert.True(t, found)
}

func TestPanickingObserverIsContained(t *testing.T) {
	f := newFixture(t)
	c := f.collector

	c.SetObserver(ObserverFunc(func(Snapshot) { panic("render failed") }))
	c.Start()
	f.mock.Add(time.Second)

	require.Eventually(t, func() bool {
		for _, e := range f.hook.AllEntries() {
			if e.Level == logrus.ErrorLevel && e.Message == "observer panicked" {
				return true
			}
		}
		return false
	}, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, Running, c.State())

	c.SetObserver(ObserverFunc(func(s Snapshot) { f.snapshots <- s }))
	f.mock.Add(time.Second)
	f.next(t)
}

func TestNetworkCountersSurviveStop(t *testing.T) {
	f := newFixture(t)
	c := f.collector

	f.network.ReportCompletion(10)
	c.Start()
	f.mock.Add(time.Second)
	assert.Equal(t, 1, f.next(t).NetworkCallCount)

	c.Stop()
	<-c.Done()
	f.network.ReportCompletion(20)
	c.Start()
	f.mock.Add(time.Second)

	snap := f.next(t)
	assert.Equal(t, 2, snap.NetworkCallCount)
	assert.Equal(t, int64(20), snap.LastRequestLatencyMs)
}
