// Package collector runs the sampling loop: it feeds frame timestamps into an
// FPS estimator, polls process memory and CPU on a fixed interval, reads the
// network aggregator, and hands the resulting Snapshot to one observer.
package collector

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"go.uber.org/multierr"

	"github.com/Klaven/perfoverlay/internal/frames"
	"github.com/Klaven/perfoverlay/internal/netmon"
)

// DefaultInterval is the tick period.
const DefaultInterval = time.Second

// State is the lifecycle state of a Collector.
type State int32

const (
	Stopped State = iota
	Running
)

func (s State) String() string {
	switch s {
	case Stopped:
		return "stopped"
	case Running:
		return "running"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// Config tunes a Collector.
type Config struct {
	Interval    time.Duration
	FrameWindow int
	FPSCeiling  int
}

// DefaultConfig returns the one-second cadence with a 30 frame window
// clamped at 60 FPS.
func DefaultConfig() Config {
	return Config{
		Interval:    DefaultInterval,
		FrameWindow: frames.DefaultWindow,
		FPSCeiling:  frames.DefaultCeiling,
	}
}

// ResourceSampler provides the memory and CPU fields of a snapshot. Failed
// samples return the previous value along with the error.
type ResourceSampler interface {
	Rebase(ctx context.Context) error
	SampleMemoryMB(ctx context.Context) (int, error)
	SampleCPUPercent(ctx context.Context) (float64, error)
}

// NetworkReader provides the network fields of a snapshot.
type NetworkReader interface {
	Read() netmon.Counters
}

// Collector orchestrates the samplers. The zero value is not usable; create
// one with New.
type Collector struct {
	cfg     Config
	sampler ResourceSampler
	frames  frames.Source
	network NetworkReader
	clk     clock.Clock
	log     logrus.FieldLogger

	observer  observerSlot
	deliverMu sync.Mutex
	latest    atomic.Pointer[Snapshot]

	mu    sync.Mutex
	state State
	run   *run
}

// run is one Start..Stop cycle. Its estimator is touched only by the loop
// goroutine.
type run struct {
	ctx       context.Context
	cancel    context.CancelFunc
	done      chan struct{}
	ticker    *clock.Ticker
	sub       frames.Subscription
	estimator *frames.Estimator
}

// New creates a stopped collector.
func New(cfg Config, sampler ResourceSampler, source frames.Source, network NetworkReader, clk clock.Clock, log logrus.FieldLogger) *Collector {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if clk == nil {
		clk = clock.New()
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Collector{
		cfg:     cfg,
		sampler: sampler,
		frames:  source,
		network: network,
		clk:     clk,
		log:     log.WithField("component", "collector"),
	}
}

// State returns the current lifecycle state.
func (c *Collector) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// SetObserver replaces the observer; nil removes it. The change applies from
// the next tick and is safe while running.
func (c *Collector) SetObserver(o Observer) {
	c.observer.set(o)
}

// Latest returns the snapshot of the most recent tick, or the zero Snapshot
// before the first one.
func (c *Collector) Latest() Snapshot {
	if s := c.latest.Load(); s != nil {
		return *s
	}
	return Snapshot{}
}

// Done returns a channel closed once the loop of the latest run has exited.
// Before the first Start the channel is already closed.
func (c *Collector) Done() <-chan struct{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.run == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return c.run.done
}

// Start captures the CPU baseline, subscribes to frame ticks and starts the
// periodic tick. It does nothing if the collector is already running.
func (c *Collector) Start() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == Running {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	if err := c.rebase(ctx); err != nil {
		c.log.WithError(err).Warn("could not capture cpu baseline, first tick will")
	}

	r := &run{
		ctx:       ctx,
		cancel:    cancel,
		done:      make(chan struct{}),
		ticker:    c.clk.Ticker(c.cfg.Interval),
		sub:       c.frames.Subscribe(),
		estimator: frames.NewEstimator(c.cfg.FrameWindow, c.cfg.FPSCeiling),
	}
	c.run = r
	c.state = Running

	go c.loop(r)
	c.log.WithField("interval", c.cfg.Interval).Debug("collector started")
}

// Stop cancels the tick and the frame subscription. A tick already in flight
// completes and may still deliver; nothing is delivered after it. Stop does
// not wait for the loop, so an observer may call it. The network counters
// are left untouched.
func (c *Collector) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == Stopped {
		return
	}

	c.run.cancel()
	c.run.ticker.Stop()
	c.run.sub.Unsubscribe()
	c.state = Stopped
	c.log.Debug("collector stopped")
}

func (c *Collector) rebase(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.Errorf("cpu baseline panicked: %v", r)
		}
	}()
	return c.sampler.Rebase(ctx)
}

func (c *Collector) loop(r *run) {
	defer func() {
		r.ticker.Stop()
		r.sub.Unsubscribe()
		r.estimator.Reset()
		close(r.done)
	}()

	for {
		select {
		case <-r.ctx.Done():
			return
		case ts := <-r.sub.C():
			if r.ctx.Err() != nil {
				return
			}
			r.estimator.OnFrame(ts)
		case <-r.ticker.C:
			if r.ctx.Err() != nil {
				return
			}
			c.tick(r)
		}
	}
}

// drainFrames consumes frames queued before the tick boundary.
func (r *run) drainFrames() {
	for {
		select {
		case ts := <-r.sub.C():
			r.estimator.OnFrame(ts)
		default:
			return
		}
	}
}

// tick samples memory, CPU, FPS and network in that order and delivers the
// snapshot. A failing field keeps its last known value.
func (c *Collector) tick(r *run) {
	ctx, cancel := context.WithTimeout(context.Background(), c.cfg.Interval)
	defer cancel()

	r.drainFrames()

	snap := c.Latest()
	err := multierr.Combine(
		guard("memory", func() (err error) {
			snap.UsedMemoryMB, err = c.sampler.SampleMemoryMB(ctx)
			return err
		}),
		guard("cpu", func() (err error) {
			snap.CPUUsagePercent, err = c.sampler.SampleCPUPercent(ctx)
			return err
		}),
	)
	snap.FPS = r.estimator.FPS()
	if perr := guard("network", func() error {
		n := c.network.Read()
		snap.LastRequestLatencyMs = n.LastLatencyMs
		snap.NetworkCallCount = n.TotalCalls
		return nil
	}); perr != nil {
		err = multierr.Append(err, perr)
	}
	snap.CollectedAt = c.clk.Now()

	if err != nil {
		c.log.WithError(err).Warn("sampling failed, keeping last known values")
	}

	c.latest.Store(&snap)
	c.deliver(snap)
}

func (c *Collector) deliver(snap Snapshot) {
	o, ok := c.observer.get()
	if !ok {
		return
	}

	c.deliverMu.Lock()
	defer c.deliverMu.Unlock()
	defer func() {
		if r := recover(); r != nil {
			c.log.WithField("panic", r).Error("observer panicked")
		}
	}()
	o.OnSnapshot(snap)
}

// guard runs fn and turns a panic into an error.
func guard(field string, fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.Errorf("%s sampler panicked: %v", field, r)
		}
	}()
	return fn()
}
