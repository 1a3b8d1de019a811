package probe

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Klaven/perfoverlay/internal/netmon"
)

func TestRoundBoundsConcurrency(t *testing.T) {
	var inFlight, peak int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&inFlight, 1)
		for {
			p := atomic.LoadInt32(&peak)
			if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
				break
			}
		}
		time.Sleep(20 * time.Millisecond)
		atomic.AddInt32(&inFlight, -1)
		if r.URL.Path == "/bad" {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	agg := netmon.NewAggregator()
	events := netmon.NewEventLog(20)
	urls := []string{srv.URL + "/a", srv.URL + "/b", srv.URL + "/c", srv.URL + "/d", srv.URL + "/bad"}
	r := NewRunner(Config{URLs: urls, Interval: time.Second, Concurrency: 2}, netmon.NewClient(agg, events, 5*time.Second), nil, nil)

	res := r.Round(context.Background())
	assert.Equal(t, RoundResult{Total: 5, Failed: 1}, res)
	assert.LessOrEqual(t, atomic.LoadInt32(&peak), int32(2))
	assert.Equal(t, 5, agg.Read().TotalCalls)
	assert.Equal(t, 5, events.Len())
}

func TestRunRepeatsOnInterval(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
	}))
	defer srv.Close()

	mock := clock.NewMock()
	agg := netmon.NewAggregator()
	r := NewRunner(Config{URLs: []string{srv.URL}, Interval: 2 * time.Second, Concurrency: 1}, netmon.NewClient(agg, nil, 5*time.Second), mock, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()

	require.Eventually(t, func() bool { return atomic.LoadInt32(&hits) == 1 }, 2*time.Second, 5*time.Millisecond)
	mock.Add(2 * time.Second)
	require.Eventually(t, func() bool { return atomic.LoadInt32(&hits) == 2 }, 2*time.Second, 5*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("runner did not stop")
	}
	assert.Equal(t, 2, agg.Read().TotalCalls)
}

func TestRunWithoutURLsReturns(t *testing.T) {
	r := NewRunner(Config{}, http.DefaultClient, nil, nil)
	assert.NoError(t, r.Run(context.Background()))
}
