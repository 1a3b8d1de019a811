package netmon

import (
	"fmt"
	"sync"
	"time"
)

// DefaultLogCapacity is the number of events an EventLog keeps by default.
const DefaultLogCapacity = 50

// Event describes one intercepted call.
type Event struct {
	Time       time.Time
	Method     string
	URL        string
	StatusCode int
	Duration   time.Duration
	Err        error
}

// Failed reports whether the call ended without a response.
func (e Event) Failed() bool {
	return e.Err != nil
}

// String renders the event as a log line, e.g. "GET https://x/y → 200 (12ms)".
func (e Event) String() string {
	if e.Err != nil {
		return fmt.Sprintf("%s %s → ERROR %s", e.Method, e.URL, e.Err.Error())
	}
	return fmt.Sprintf("%s %s → %d (%dms)", e.Method, e.URL, e.StatusCode, e.Duration.Milliseconds())
}

// EventSink consumes network events. Publish must not block.
type EventSink interface {
	Publish(Event)
}

// EventLog keeps the most recent events in arrival order, evicting the
// oldest past its capacity. It is safe for concurrent use.
type EventLog struct {
	mu     sync.RWMutex
	events []Event
	head   int
	size   int
	total  uint64
}

// NewEventLog creates a log holding up to capacity events.
func NewEventLog(capacity int) *EventLog {
	if capacity <= 0 {
		capacity = DefaultLogCapacity
	}
	return &EventLog{events: make([]Event, capacity)}
}

// Publish implements EventSink.
func (l *EventLog) Publish(e Event) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.total++
	if l.size == len(l.events) {
		l.events[l.head] = e
		l.head = (l.head + 1) % len(l.events)
		return
	}
	l.events[(l.head+l.size)%len(l.events)] = e
	l.size++
}

// Events returns a copy of the retained events, oldest first.
func (l *EventLog) Events() []Event {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]Event, l.size)
	for i := 0; i < l.size; i++ {
		out[i] = l.events[(l.head+i)%len(l.events)]
	}
	return out
}

// Len returns the number of retained events.
func (l *EventLog) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.size
}

// Total returns how many events were ever published.
func (l *EventLog) Total() uint64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.total
}
