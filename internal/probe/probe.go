// Package probe issues periodic HTTP requests through the instrumented client
// so the network field and event log have live traffic to show.
package probe

import (
	"context"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/tidwall/limiter"
)

// Config describes the probe workload.
type Config struct {
	URLs        []string
	Interval    time.Duration
	Concurrency int
}

// RoundResult summarizes one round of requests.
type RoundResult struct {
	Total  int
	Failed int
}

// Runner fires one request per URL every interval, with at most Concurrency
// requests in flight.
type Runner struct {
	cfg    Config
	client *http.Client
	clk    clock.Clock
	log    log.FieldLogger
	l      *limiter.Limiter
}

// NewRunner creates a probe runner. The client should carry the
// instrumented transport.
func NewRunner(cfg Config, client *http.Client, clk clock.Clock, logger log.FieldLogger) *Runner {
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}
	if clk == nil {
		clk = clock.New()
	}
	if logger == nil {
		logger = log.StandardLogger()
	}
	return &Runner{
		cfg:    cfg,
		client: client,
		clk:    clk,
		log:    logger.WithField("component", "probe"),
		l:      limiter.New(cfg.Concurrency),
	}
}

// Run probes immediately and then on every interval until ctx is done.
func (r *Runner) Run(ctx context.Context) error {
	if len(r.cfg.URLs) == 0 {
		return nil
	}
	if r.cfg.Interval <= 0 {
		return errors.Errorf("probe interval must be positive, got %s", r.cfg.Interval)
	}

	ticker := r.clk.Ticker(r.cfg.Interval)
	defer ticker.Stop()

	for {
		res := r.Round(ctx)
		r.log.WithField("total", res.Total).WithField("failed", res.Failed).Debug("probe round finished")

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// Round requests every URL once and waits for all of them.
func (r *Runner) Round(ctx context.Context) RoundResult {
	var (
		wg  sync.WaitGroup
		mu  sync.Mutex
		res RoundResult
	)

	for _, url := range r.cfg.URLs {
		if ctx.Err() != nil {
			break
		}
		r.l.Begin()
		wg.Add(1)
		go func(url string) {
			defer wg.Done()
			defer r.l.End()

			err := r.get(ctx, url)
			mu.Lock()
			res.Total++
			if err != nil {
				res.Failed++
			}
			mu.Unlock()
			if err != nil && ctx.Err() == nil {
				r.log.WithError(err).Debug("probe failed")
			}
		}(url)
	}

	wg.Wait()
	return res
}

func (r *Runner) get(ctx context.Context, url string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return errors.Wrapf(err, "build request for %s", url)
	}
	resp, err := r.client.Do(req)
	if err != nil {
		return errors.Wrapf(err, "GET %s", url)
	}
	defer resp.Body.Close()

	_, _ = io.Copy(io.Discard, resp.Body)
	if resp.StatusCode >= http.StatusBadRequest {
		return errors.Errorf("GET %s: %s", url, resp.Status)
	}
	return nil
}
