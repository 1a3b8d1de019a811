package overlay

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"time"
	"unicode/utf8"

	"github.com/benbjohnson/clock"
	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
	"github.com/sirupsen/logrus"

	"github.com/Klaven/perfoverlay/internal/collector"
	"github.com/Klaven/perfoverlay/internal/frames"
	"github.com/Klaven/perfoverlay/internal/netmon"
)

const (
	hostPage    = "host"
	overlayPage = "overlay"

	hostHelp = "drag the panel with the mouse, [l] toggles the network log, [q] quits"
)

// TUIConfig places and sizes the terminal overlay.
type TUIConfig struct {
	Position    Position
	Visibility  Visibility
	LogLines    int
	RefreshRate int
}

// TUI is an always-on-top panel floating over a full screen host page. The
// panel can be dragged with the mouse. Each completed screen draw is
// published to the frame pump, so the FPS field measures the TUI's own
// render loop.
type TUI struct {
	cfg    TUIConfig
	events EventSource
	pump   *frames.Pump
	clk    clock.Clock
	origin time.Time
	log    logrus.FieldLogger

	app   *tview.Application
	pages *tview.Pages
	panel *tview.TextView
	drag  *Drag

	mu   sync.Mutex
	last *collector.Snapshot
	vis  Visibility

	dirty   atomic.Bool
	running atomic.Bool
	screenW atomic.Int32
	screenH atomic.Int32
}

// NewTUI builds the panel. Events and pump may be nil.
func NewTUI(cfg TUIConfig, events EventSource, pump *frames.Pump, clk clock.Clock, log logrus.FieldLogger) *TUI {
	if cfg.LogLines <= 0 {
		cfg.LogLines = DefaultLogLines
	}
	if cfg.RefreshRate <= 0 {
		cfg.RefreshRate = 60
	}
	if clk == nil {
		clk = clock.New()
	}
	if log == nil {
		log = logrus.StandardLogger()
	}

	t := &TUI{
		cfg:    cfg,
		events: events,
		pump:   pump,
		clk:    clk,
		origin: clk.Now(),
		log:    log.WithField("component", "tui"),
		vis:    cfg.Visibility,
	}

	host := tview.NewTextView().SetText(hostHelp)
	t.panel = tview.NewTextView().SetWrap(false)
	t.panel.SetBorder(true).SetTitle(" perfoverlay ")

	t.pages = tview.NewPages().
		AddPage(hostPage, host, true, true).
		AddPage(overlayPage, t.panel, false, true)

	t.drag = NewDrag(cfg.Position, t)

	t.app = tview.NewApplication().
		SetRoot(t.pages, true).
		EnableMouse(true).
		SetInputCapture(t.handleKey).
		SetMouseCapture(t.handleMouse).
		SetAfterDrawFunc(t.afterDraw)

	t.redraw()
	return t
}

// SetScreen replaces the terminal screen, e.g. with a simulation screen.
func (t *TUI) SetScreen(screen tcell.Screen) {
	t.app.SetScreen(screen)
}

// Run shows the overlay until ctx is cancelled, Stop is called or the user
// quits.
func (t *TUI) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	t.running.Store(true)
	defer t.running.Store(false)

	go func() {
		<-ctx.Done()
		t.app.Stop()
	}()
	go t.refresh(ctx)

	return t.app.Run()
}

// Stop closes the terminal UI.
func (t *TUI) Stop() {
	t.app.Stop()
}

// OnSnapshot implements collector.Observer. It only records the snapshot;
// the render loop picks it up on its next frame.
func (t *TUI) OnSnapshot(s collector.Snapshot) {
	t.mu.Lock()
	t.last = &s
	t.mu.Unlock()
	t.dirty.Store(true)
}

// ToggleLog shows or hides the network event log.
func (t *TUI) ToggleLog() bool {
	t.mu.Lock()
	t.vis.Log = !t.vis.Log
	on := t.vis.Log
	t.mu.Unlock()
	t.dirty.Store(true)
	return on
}

// MoveTo implements Positioner. The panel is kept inside the screen.
func (t *TUI) MoveTo(p Position) {
	_, _, w, h := t.panel.GetRect()
	p = t.clamp(p, w, h)
	t.panel.SetRect(p.X, p.Y, w, h)
}

// Position returns where the panel currently sits on screen.
func (t *TUI) Position() Position {
	x, y, _, _ := t.panel.GetRect()
	return Position{X: x, Y: y}
}

// refresh drives the render loop at the configured rate.
func (t *TUI) refresh(ctx context.Context) {
	ticker := t.clk.Ticker(time.Second / time.Duration(t.cfg.RefreshRate))
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !t.running.Load() {
				return
			}
			if t.dirty.Swap(false) {
				t.app.QueueUpdateDraw(t.redraw)
				continue
			}
			t.app.Draw()
		}
	}
}

// redraw renders the current state into the panel. UI goroutine only.
func (t *TUI) redraw() {
	t.mu.Lock()
	body := Render(t.last, t.eventsFor(t.vis), t.vis, t.cfg.LogLines)
	t.mu.Unlock()

	t.panel.SetText(body)
	w, h := panelSize(body)
	pos := t.clamp(t.drag.Position(), w, h)
	t.panel.SetRect(pos.X, pos.Y, w, h)
}

func (t *TUI) eventsFor(v Visibility) []netmon.Event {
	if !v.Log || t.events == nil {
		return nil
	}
	return t.events.Events()
}

func (t *TUI) afterDraw(screen tcell.Screen) {
	// re-clamp the panel once the real screen size is known
	w, h := screen.Size()
	if t.screenW.Swap(int32(w)) != int32(w) || t.screenH.Swap(int32(h)) != int32(h) {
		t.dirty.Store(true)
	}
	if t.pump != nil {
		t.pump.Frame(t.clk.Since(t.origin).Nanoseconds())
	}
}

func (t *TUI) handleKey(ev *tcell.EventKey) *tcell.EventKey {
	if ev.Key() != tcell.KeyRune {
		return ev
	}
	switch ev.Rune() {
	case 'l':
		t.log.WithField("visible", t.ToggleLog()).Debug("network log toggled")
		return nil
	case 'q':
		t.app.Stop()
		return nil
	}
	return ev
}

func (t *TUI) handleMouse(ev *tcell.EventMouse, action tview.MouseAction) (*tcell.EventMouse, tview.MouseAction) {
	if ev == nil {
		return ev, action
	}
	x, y := ev.Position()
	if !t.pointer(action, Position{X: x, Y: y}) {
		return ev, action
	}
	return nil, action
}

// pointer applies a mouse action to the drag and reports whether it was
// consumed.
func (t *TUI) pointer(action tview.MouseAction, at Position) bool {
	switch action {
	case tview.MouseLeftDown:
		if !t.panel.InRect(at.X, at.Y) {
			return false
		}
		t.drag.Place(t.Position())
		t.drag.Begin(at)
		return true
	case tview.MouseMove:
		_, moved := t.drag.Move(at)
		return moved
	case tview.MouseLeftUp:
		if !t.drag.Active() {
			return false
		}
		pos := t.drag.End()
		t.log.WithField("x", pos.X).WithField("y", pos.Y).Debug("overlay moved")
		return true
	}
	return false
}

func (t *TUI) clamp(p Position, w, h int) Position {
	_, _, sw, sh := t.pages.GetRect()
	if sw <= 0 || sh <= 0 {
		if p.X < 0 {
			p.X = 0
		}
		if p.Y < 0 {
			p.Y = 0
		}
		return p
	}
	p.X = clampInt(p.X, 0, sw-w)
	p.Y = clampInt(p.Y, 0, sh-h)
	return p
}

func clampInt(v, lo, hi int) int {
	if hi < lo {
		hi = lo
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// panelSize is the bordered size needed to show body without wrapping.
func panelSize(body string) (int, int) {
	lines := strings.Split(body, "\n")
	w := utf8.RuneCountInString(" perfoverlay ")
	for _, l := range lines {
		if n := utf8.RuneCountInString(l); n > w {
			w = n
		}
	}
	return w + 2, len(lines) + 2
}
