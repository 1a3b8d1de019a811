package overlay

// Position is a screen coordinate of the overlay's top left corner.
type Position struct {
	X, Y int
}

// Add returns p moved by d.
func (p Position) Add(d Position) Position {
	return Position{X: p.X + d.X, Y: p.Y + d.Y}
}

// Sub returns the offset from q to p.
func (p Position) Sub(q Position) Position {
	return Position{X: p.X - q.X, Y: p.Y - q.Y}
}

// Positioner is the window system that actually moves the overlay.
type Positioner interface {
	MoveTo(Position)
}

// Drag turns pointer down, move and up events into absolute overlay
// positions: initial + (pointer - pointerAtDown). It belongs to the UI
// goroutine and is not safe for concurrent use.
type Drag struct {
	target Positioner

	pos     Position
	initial Position
	down    Position
	active  bool
}

// NewDrag starts tracking an overlay placed at pos. Target may be nil.
func NewDrag(pos Position, target Positioner) *Drag {
	return &Drag{pos: pos, target: target}
}

// Position returns the current overlay position.
func (d *Drag) Position() Position {
	return d.pos
}

// Active reports whether a drag is in progress.
func (d *Drag) Active() bool {
	return d.active
}

// Begin records the pointer at the start of a drag.
func (d *Drag) Begin(pointer Position) {
	d.initial = d.pos
	d.down = pointer
	d.active = true
}

// Move repositions the overlay for the pointer's new location. It returns
// false when no drag is in progress.
func (d *Drag) Move(pointer Position) (Position, bool) {
	if !d.active {
		return d.pos, false
	}
	d.pos = d.initial.Add(pointer.Sub(d.down))
	if d.target != nil {
		d.target.MoveTo(d.pos)
	}
	return d.pos, true
}

// End finishes the drag and returns the final position.
func (d *Drag) End() Position {
	d.active = false
	return d.pos
}

// Place moves the tracked position without notifying the target, e.g. to
// resync after the host clamped the overlay. It is ignored mid-drag.
func (d *Drag) Place(p Position) {
	if !d.active {
		d.pos = p
	}
}
