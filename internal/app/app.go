// Package app is the composition root: it builds exactly one collector and
// hands it to the display surface, the instrumented HTTP client and the
// probe workload.
package app

import (
	"context"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"go.uber.org/fx"
	"go.uber.org/multierr"

	"github.com/Klaven/perfoverlay/internal/collector"
	"github.com/Klaven/perfoverlay/internal/config"
	"github.com/Klaven/perfoverlay/internal/frames"
	"github.com/Klaven/perfoverlay/internal/logging"
	"github.com/Klaven/perfoverlay/internal/netmon"
	"github.com/Klaven/perfoverlay/internal/overlay"
	"github.com/Klaven/perfoverlay/internal/probe"
	"github.com/Klaven/perfoverlay/internal/stats"
)

const stopTimeout = 5 * time.Second

// Params are the inputs supplied from outside the graph.
type Params struct {
	Config *config.Config
	// Out is where the text surface prints. Nil means stdout.
	Out io.Writer
	// Clock drives every timer. Nil means the wall clock.
	Clock clock.Clock
}

// Module wires the whole overlay.
func Module(p Params) fx.Option {
	if p.Out == nil {
		p.Out = os.Stdout
	}
	if p.Clock == nil {
		p.Clock = clock.New()
	}
	return fx.Module("perfoverlay",
		fx.Supply(p.Config),
		fx.Provide(
			func() clock.Clock { return p.Clock },
			func() io.Writer { return p.Out },
			NewLogger,
			netmon.NewAggregator,
			NewEventLog,
			NewHTTPClient,
			frames.NewPump,
			NewFrameSource,
			NewSampler,
			NewCollector,
			NewSurface,
			NewProbe,
		),
		fx.Invoke(registerLifecycle),
	)
}

// NewLogger builds the process logger. While the terminal UI owns the
// screen, logs go to log.file or nowhere.
func NewLogger(lc fx.Lifecycle, cfg *config.Config) (log.FieldLogger, error) {
	var out io.Writer = os.Stderr
	switch {
	case cfg.Log.File != "":
		f, err := os.OpenFile(cfg.Log.File, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, errors.Wrapf(err, "open log file %s", cfg.Log.File)
		}
		lc.Append(fx.Hook{OnStop: func(context.Context) error { return f.Close() }})
		out = f
	case cfg.Surface.Kind == "tui":
		out = io.Discard
	}
	return logging.New(cfg.Log.Level, cfg.Log.Format, out)
}

func NewEventLog(cfg *config.Config) *netmon.EventLog {
	return netmon.NewEventLog(cfg.Overlay.LogCapacity)
}

// NewHTTPClient returns the client whose calls feed the network field and
// the event log.
func NewHTTPClient(cfg *config.Config, agg *netmon.Aggregator, events *netmon.EventLog) *http.Client {
	return netmon.NewClient(agg, events, cfg.Probe.Timeout)
}

// NewFrameSource picks the frame ticks: the terminal UI publishes its own
// draws, the text surface has no render loop and gets a synthetic refresh.
func NewFrameSource(cfg *config.Config, pump *frames.Pump, clk clock.Clock) frames.Source {
	if cfg.Surface.Kind == "tui" {
		return pump
	}
	return frames.NewVSync(clk, float64(cfg.Frames.RefreshRate))
}

func NewSampler(cfg *config.Config, clk clock.Clock, logger log.FieldLogger) (*stats.ProcessSampler, error) {
	src, err := stats.NewSource(cfg.Sampler.Source, os.Getpid())
	if err != nil {
		return nil, err
	}
	logger.WithField("source", src.Name()).Debug("resource source opened")
	return stats.NewProcessSampler(src, clk), nil
}

func NewCollector(cfg *config.Config, sampler *stats.ProcessSampler, source frames.Source, agg *netmon.Aggregator, clk clock.Clock, logger log.FieldLogger) *collector.Collector {
	return collector.New(CollectorConfig(cfg), sampler, source, agg, clk, logger)
}

// CollectorConfig extracts the collector settings.
func CollectorConfig(cfg *config.Config) collector.Config {
	return collector.Config{
		Interval:    cfg.Collector.Interval,
		FrameWindow: cfg.Frames.Window,
		FPSCeiling:  cfg.Frames.Ceiling,
	}
}

// Visibility extracts the overlay field toggles.
func Visibility(cfg *config.Config) overlay.Visibility {
	return overlay.Visibility{
		FPS:     cfg.Overlay.ShowFPS,
		Memory:  cfg.Overlay.ShowMemory,
		CPU:     cfg.Overlay.ShowCPU,
		Network: cfg.Overlay.ShowNetwork,
		Log:     cfg.Overlay.ShowLog,
	}
}

func NewProbe(cfg *config.Config, client *http.Client, clk clock.Clock, logger log.FieldLogger) *probe.Runner {
	return probe.NewRunner(probe.Config{
		URLs:        cfg.Probe.URLs,
		Interval:    cfg.Probe.Interval,
		Concurrency: cfg.Probe.Concurrency,
	}, client, clk, logger)
}

func registerLifecycle(lc fx.Lifecycle, c *collector.Collector, surface Surface, runner *probe.Runner, logger log.FieldLogger) {
	var (
		cancel context.CancelFunc
		done   = make(chan struct{})
	)
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			c.SetObserver(surface)
			c.Start()

			var ctx context.Context
			ctx, cancel = context.WithCancel(context.Background())
			go func() {
				defer close(done)
				if err := runner.Run(ctx); err != nil {
					logger.WithError(err).Error("probe workload stopped")
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			c.Stop()
			c.SetObserver(nil)
			cancel()

			select {
			case <-done:
			case <-ctx.Done():
				return errors.Wrap(ctx.Err(), "waiting for probe workload")
			}
			select {
			case <-c.Done():
				return nil
			case <-ctx.Done():
				return errors.Wrap(ctx.Err(), "waiting for collector")
			}
		},
	})
}

// Run starts the graph, shows the surface until ctx is done or the user
// quits, then stops everything.
func Run(ctx context.Context, p Params, opts ...fx.Option) error {
	var surface Surface
	a := fx.New(
		Module(p),
		fx.NopLogger,
		fx.Populate(&surface),
		fx.Options(opts...),
	)
	if err := a.Err(); err != nil {
		return errors.Wrap(err, "build application")
	}
	if err := a.Start(ctx); err != nil {
		return errors.Wrap(err, "start application")
	}

	runErr := surface.Run(ctx)

	stopCtx, cancel := context.WithTimeout(context.Background(), stopTimeout)
	defer cancel()
	return multierr.Combine(runErr, a.Stop(stopCtx))
}
