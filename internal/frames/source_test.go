package frames

import (
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func receive(t *testing.T, sub Subscription) int64 {
	t.Helper()
	select {
	case ts := <-sub.C():
		return ts
	case <-time.After(time.Second):
		t.Fatal("no frame delivered")
		return 0
	}
}

func TestVSyncDeliversAtRate(t *testing.T) {
	mock := clock.NewMock()
	v := NewVSync(mock, 50)
	require.Equal(t, 20*time.Millisecond, v.Period())

	sub := v.Subscribe()
	defer sub.Unsubscribe()

	// let the ticker goroutine register before advancing
	time.Sleep(10 * time.Millisecond)

	mock.Add(20 * time.Millisecond)
	first := receive(t, sub)
	mock.Add(20 * time.Millisecond)
	second := receive(t, sub)

	assert.Equal(t, int64(20*time.Millisecond), first)
	assert.Equal(t, int64(20*time.Millisecond), second-first)
}

func TestVSyncFeedsEstimator(t *testing.T) {
	mock := clock.NewMock()
	v := NewVSync(mock, 50)
	sub := v.Subscribe()
	defer sub.Unsubscribe()
	time.Sleep(10 * time.Millisecond)

	e := NewEstimator(DefaultWindow, DefaultCeiling)
	for i := 0; i < 6; i++ {
		mock.Add(v.Period())
		e.OnFrame(receive(t, sub))
	}
	assert.Equal(t, 50, e.FPS())
}

func TestVSyncUnsubscribeStopsDelivery(t *testing.T) {
	mock := clock.NewMock()
	v := NewVSync(mock, 60)
	sub := v.Subscribe()
	time.Sleep(10 * time.Millisecond)

	sub.Unsubscribe()
	sub.Unsubscribe()

	mock.Add(time.Second)
	select {
	case ts := <-sub.C():
		t.Fatalf("unexpected frame %d after unsubscribe", ts)
	case <-time.After(20 * time.Millisecond):
	}
}

func TestPumpFanOut(t *testing.T) {
	p := NewPump()
	a := p.Subscribe()
	b := p.Subscribe()
	require.Equal(t, 2, p.Subscribers())

	assert.Equal(t, 2, p.Frame(42))
	assert.Equal(t, int64(42), receive(t, a))
	assert.Equal(t, int64(42), receive(t, b))

	a.Unsubscribe()
	assert.Equal(t, 1, p.Subscribers())
	assert.Equal(t, 1, p.Frame(43))
	assert.Equal(t, int64(43), receive(t, b))
}

func TestPumpNeverBlocks(t *testing.T) {
	p := NewPump()
	sub := p.Subscribe()
	defer sub.Unsubscribe()

	for i := 0; i < subscriptionBuffer; i++ {
		require.Equal(t, 1, p.Frame(int64(i)))
	}
	assert.Equal(t, 0, p.Frame(999))
	assert.Len(t, sub.C(), subscriptionBuffer)
}
