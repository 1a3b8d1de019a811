// Package netmon measures outbound network calls: an http.RoundTripper times
// every request, an Aggregator keeps the latest latency and the call count,
// and an EventLog keeps a readable line per call for the overlay.
package netmon

import "sync/atomic"

// Counters is a consistent reading of the aggregator.
type Counters struct {
	LastLatencyMs int64
	TotalCalls    int
}

// Reporter receives one report per finished network call.
type Reporter interface {
	ReportCompletion(durationMs int64)
}

// Aggregator keeps the latency of the most recent call and the number of
// calls seen so far. No smoothing is applied, so a single slow request shows
// up as is.
//
// ReportCompletion may be called from any goroutine. Both fields are
// replaced together through a compare-and-swap, so readers never see a
// latency paired with the wrong count and concurrent reports are never lost.
type Aggregator struct {
	state atomic.Pointer[Counters]
}

// NewAggregator creates an aggregator with no calls recorded.
func NewAggregator() *Aggregator {
	a := &Aggregator{}
	a.state.Store(&Counters{})
	return a
}

// ReportCompletion records a finished call, successful or not. Negative
// durations are recorded as 0.
func (a *Aggregator) ReportCompletion(durationMs int64) {
	if durationMs < 0 {
		durationMs = 0
	}
	for {
		cur := a.state.Load()
		next := &Counters{
			LastLatencyMs: durationMs,
			TotalCalls:    cur.TotalCalls + 1,
		}
		if a.state.CompareAndSwap(cur, next) {
			return
		}
	}
}

// Read returns the current counters without blocking writers.
func (a *Aggregator) Read() Counters {
	return *a.state.Load()
}
