package frames

import "math"

const (
	// DefaultWindow is the number of frame intervals averaged, about half a
	// second of frames at 60Hz.
	DefaultWindow = 30
	// DefaultCeiling is the highest FPS value reported.
	DefaultCeiling = 60

	nanosPerSecond = 1e9
)

// Estimator turns a stream of monotonic frame timestamps into a smoothed
// frames-per-second value. It keeps the last N frame intervals in a FIFO
// window and reports the reciprocal of their mean.
//
// Estimator is not safe for concurrent use; it belongs to the goroutine that
// receives frame callbacks.
type Estimator struct {
	intervals []int64
	head      int
	size      int
	sum       int64

	last    int64
	hasLast bool

	ceiling int
}

// NewEstimator creates an estimator averaging up to window intervals and
// clamping its result to ceiling. Non-positive arguments fall back to the
// defaults.
func NewEstimator(window, ceiling int) *Estimator {
	if window <= 0 {
		window = DefaultWindow
	}
	if ceiling <= 0 {
		ceiling = DefaultCeiling
	}
	return &Estimator{
		intervals: make([]int64, window),
		ceiling:   ceiling,
	}
}

// OnFrame records a frame timestamp in nanoseconds. The first call only
// remembers the timestamp since no interval exists yet.
func (e *Estimator) OnFrame(timestampNanos int64) {
	if !e.hasLast {
		e.last = timestampNanos
		e.hasLast = true
		return
	}

	interval := timestampNanos - e.last
	e.last = timestampNanos
	if interval < 0 {
		return
	}

	if e.size == len(e.intervals) {
		e.sum -= e.intervals[e.head]
		e.intervals[e.head] = interval
		e.head = (e.head + 1) % len(e.intervals)
	} else {
		e.intervals[(e.head+e.size)%len(e.intervals)] = interval
		e.size++
	}
	e.sum += interval
}

// FPS returns the smoothed frame rate in [0, ceiling]. An empty window
// reports 0.
func (e *Estimator) FPS() int {
	if e.size == 0 {
		return 0
	}

	mean := float64(e.sum) / float64(e.size)
	if mean <= 0 {
		return e.ceiling
	}

	fps := int(math.Round(nanosPerSecond / mean))
	if fps > e.ceiling {
		return e.ceiling
	}
	return fps
}

// Len returns the number of intervals currently in the window.
func (e *Estimator) Len() int {
	return e.size
}

// Reset clears the window and forgets the last timestamp.
func (e *Estimator) Reset() {
	e.head = 0
	e.size = 0
	e.sum = 0
	e.last = 0
	e.hasLast = false
}
