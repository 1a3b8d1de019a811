package overlay

import (
	"fmt"
	"io"
	"sync"

	"github.com/Klaven/perfoverlay/internal/collector"
)

// TextSurface prints every snapshot to a writer. It is the surface used when
// no terminal UI is available, and by the sample command.
type TextSurface struct {
	mu       sync.Mutex
	out      io.Writer
	events   EventSource
	vis      Visibility
	logLines int
}

// NewTextSurface writes to out. Events may be nil.
func NewTextSurface(out io.Writer, events EventSource, vis Visibility) *TextSurface {
	return &TextSurface{
		out:      out,
		events:   events,
		vis:      vis,
		logLines: DefaultLogLines,
	}
}

// ToggleLog shows or hides the event log and returns the new state.
func (t *TextSurface) ToggleLog() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.vis.Log = !t.vis.Log
	return t.vis.Log
}

// OnSnapshot implements collector.Observer.
func (t *TextSurface) OnSnapshot(s collector.Snapshot) {
	t.mu.Lock()
	defer t.mu.Unlock()
	fmt.Fprintln(t.out, t.render(&s))
}

func (t *TextSurface) render(s *collector.Snapshot) string {
	if t.events == nil || !t.vis.Log {
		return Render(s, nil, t.vis, t.logLines)
	}
	return Render(s, t.events.Events(), t.vis, t.logLines)
}
