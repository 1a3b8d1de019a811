// Package overlay renders collector snapshots: the four metric fields, an
// optional network event log, and a draggable terminal panel.
package overlay

import (
	"fmt"
	"strconv"

	"github.com/Klaven/perfoverlay/internal/collector"
)

// Placeholder is shown for every field before the first snapshot arrives.
const Placeholder = "--"

// Visibility selects which parts of the overlay are rendered.
type Visibility struct {
	FPS     bool
	Memory  bool
	CPU     bool
	Network bool
	Log     bool
}

// DefaultVisibility shows all four fields and hides the event log.
func DefaultVisibility() Visibility {
	return Visibility{FPS: true, Memory: true, CPU: true, Network: true}
}

// Field is one labelled line of the overlay.
type Field struct {
	Label string
	Value string
}

func FormatFPS(fps int) string {
	return strconv.Itoa(fps)
}

func FormatMemory(mb int) string {
	return fmt.Sprintf("%d MB", mb)
}

func FormatCPU(pct float64) string {
	return fmt.Sprintf("%.1f %%", pct)
}

// FormatNetwork renders "{latency}ms (Total: {count})", or "None" when no
// call has completed yet.
func FormatNetwork(latencyMs int64, count int) string {
	if count <= 0 {
		return "None"
	}
	return fmt.Sprintf("%dms (Total: %d)", latencyMs, count)
}

// Fields lists the visible fields of s in display order. A nil snapshot
// yields placeholders.
func Fields(s *collector.Snapshot, v Visibility) []Field {
	var out []Field
	add := func(show bool, label string, value func() string) {
		if !show {
			return
		}
		if s == nil {
			out = append(out, Field{Label: label, Value: Placeholder})
			return
		}
		out = append(out, Field{Label: label, Value: value()})
	}

	add(v.FPS, "FPS", func() string { return FormatFPS(s.FPS) })
	add(v.Memory, "MEM", func() string { return FormatMemory(s.UsedMemoryMB) })
	add(v.CPU, "CPU", func() string { return FormatCPU(s.CPUUsagePercent) })
	add(v.Network, "NET", func() string { return FormatNetwork(s.LastRequestLatencyMs, s.NetworkCallCount) })
	return out
}
