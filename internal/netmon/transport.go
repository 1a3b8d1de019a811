package netmon

import (
	"net/http"
	"time"

	"github.com/benbjohnson/clock"
)

// Transport is an http.RoundTripper that times every round trip and reports
// it exactly once, whether it returned a response or an error. The measured
// duration ends when the response headers arrive.
type Transport struct {
	// Base performs the actual request. Nil means http.DefaultTransport.
	Base http.RoundTripper
	// Reporter receives the duration of every call. Optional.
	Reporter Reporter
	// Sink receives a readable event per call. Optional.
	Sink EventSink
	// Clock measures durations. Nil means the wall clock.
	Clock clock.Clock
}

// NewTransport wraps base so that each call is reported to reporter and sink.
func NewTransport(base http.RoundTripper, reporter Reporter, sink EventSink) *Transport {
	return &Transport{
		Base:     base,
		Reporter: reporter,
		Sink:     sink,
	}
}

// NewClient returns an http.Client whose calls go through an instrumented
// transport.
func NewClient(reporter Reporter, sink EventSink, timeout time.Duration) *http.Client {
	return &http.Client{
		Transport: NewTransport(nil, reporter, sink),
		Timeout:   timeout,
	}
}

// RoundTrip implements http.RoundTripper.
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	clk := t.Clock
	if clk == nil {
		clk = clock.New()
	}
	base := t.Base
	if base == nil {
		base = http.DefaultTransport
	}

	start := clk.Now()
	resp, err := base.RoundTrip(req)
	took := clk.Since(start)

	if t.Reporter != nil {
		t.Reporter.ReportCompletion(took.Milliseconds())
	}
	if t.Sink != nil {
		ev := Event{
			Time:     start,
			Method:   req.Method,
			URL:      req.URL.String(),
			Duration: took,
			Err:      err,
		}
		if resp != nil {
			ev.StatusCode = resp.StatusCode
		}
		t.Sink.Publish(ev)
	}
	return resp, err
}
