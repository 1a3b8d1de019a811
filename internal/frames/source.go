package frames

import (
	"sync"
	"time"

	"github.com/benbjohnson/clock"
)

// subscriptionBuffer bounds how many frame timestamps may queue up for a slow
// consumer. Frames past the buffer are dropped, the way a display skips
// callbacks for a blocked UI thread.
const subscriptionBuffer = 128

// Source delivers display-refresh timestamps to subscribers.
type Source interface {
	// Subscribe starts delivering frame timestamps (monotonic nanoseconds)
	// on the returned subscription until Unsubscribe is called.
	Subscribe() Subscription
}

// Subscription is a live registration with a Source.
type Subscription interface {
	// C returns the channel frame timestamps arrive on.
	C() <-chan int64
	// Unsubscribe stops delivery. It is safe to call more than once.
	Unsubscribe()
}

type subscription struct {
	ch     chan int64
	done   chan struct{}
	once   sync.Once
	detach func()
}

func newSubscription(detach func()) *subscription {
	return &subscription{
		ch:     make(chan int64, subscriptionBuffer),
		done:   make(chan struct{}),
		detach: detach,
	}
}

func (s *subscription) C() <-chan int64 { return s.ch }

func (s *subscription) Unsubscribe() {
	s.once.Do(func() {
		close(s.done)
		if s.detach != nil {
			s.detach()
		}
	})
}

// offer hands a timestamp to the subscriber without blocking.
func (s *subscription) offer(ts int64) bool {
	select {
	case <-s.done:
		return false
	default:
	}
	select {
	case s.ch <- ts:
		return true
	default:
		return false
	}
}

// VSync is a synthetic display refresh: every subscriber gets a timestamp at
// a fixed rate from its own ticker. It stands in for hosts without a render
// loop of their own.
type VSync struct {
	clk    clock.Clock
	period time.Duration
	origin time.Time
}

// NewVSync creates a refresh source ticking rate times per second.
func NewVSync(clk clock.Clock, rate float64) *VSync {
	if clk == nil {
		clk = clock.New()
	}
	if rate <= 0 {
		rate = DefaultCeiling
	}
	return &VSync{
		clk:    clk,
		period: time.Duration(float64(time.Second) / rate),
		origin: clk.Now(),
	}
}

// Period returns the interval between two synthetic frames.
func (v *VSync) Period() time.Duration {
	return v.period
}

// Subscribe implements Source.
func (v *VSync) Subscribe() Subscription {
	sub := newSubscription(nil)
	ticker := v.clk.Ticker(v.period)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-sub.done:
				return
			case <-ticker.C:
				sub.offer(v.clk.Since(v.origin).Nanoseconds())
			}
		}
	}()
	return sub
}

// Pump is a Source driven by a host render loop: the host calls Frame after
// each redraw and every current subscriber receives the timestamp.
type Pump struct {
	mu   sync.Mutex
	subs map[*subscription]struct{}
}

// NewPump creates an empty pump.
func NewPump() *Pump {
	return &Pump{subs: make(map[*subscription]struct{})}
}

// Subscribe implements Source.
func (p *Pump) Subscribe() Subscription {
	var sub *subscription
	sub = newSubscription(func() {
		p.mu.Lock()
		delete(p.subs, sub)
		p.mu.Unlock()
	})

	p.mu.Lock()
	p.subs[sub] = struct{}{}
	p.mu.Unlock()
	return sub
}

// Frame publishes one frame timestamp. It never blocks the render loop and
// returns how many subscribers accepted the frame.
func (p *Pump) Frame(timestampNanos int64) int {
	p.mu.Lock()
	defer p.mu.Unlock()

	delivered := 0
	for sub := range p.subs {
		if sub.offer(timestampNanos) {
			delivered++
		}
	}
	return delivered
}

// Subscribers returns the number of live subscriptions.
func (p *Pump) Subscribers() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.subs)
}
