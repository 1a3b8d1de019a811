package overlay

import (
	"strings"

	"github.com/jedib0t/go-pretty/v6/list"
	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/Klaven/perfoverlay/internal/collector"
	"github.com/Klaven/perfoverlay/internal/netmon"
)

// DefaultLogLines is how many of the newest events the overlay shows.
const DefaultLogLines = 10

const emptyLog = "no network calls yet"

// EventSource exposes the retained network events, oldest first.
type EventSource interface {
	Events() []netmon.Event
}

// RenderFields draws the visible fields as a two column table.
func RenderFields(s *collector.Snapshot, v Visibility) string {
	t := table.NewWriter()
	t.SetStyle(table.StyleLight)
	for _, f := range Fields(s, v) {
		t.AppendRow(table.Row{f.Label, f.Value})
	}
	if t.Length() == 0 {
		return ""
	}
	return t.Render()
}

// RenderLog draws the last max events as a list, newest last.
func RenderLog(events []netmon.Event, max int) string {
	if len(events) == 0 {
		return emptyLog
	}
	if max > 0 && len(events) > max {
		events = events[len(events)-max:]
	}

	l := list.NewWriter()
	l.SetStyle(list.StyleConnectedLight)
	for _, e := range events {
		l.AppendItem(e.String())
	}
	return l.Render()
}

// Render draws the full overlay body: fields, then the log when visible.
func Render(s *collector.Snapshot, events []netmon.Event, v Visibility, logLines int) string {
	var b strings.Builder
	b.WriteString(RenderFields(s, v))
	if v.Log {
		if b.Len() > 0 {
			b.WriteString("\n")
		}
		b.WriteString(RenderLog(events, logLines))
	}
	return b.String()
}
