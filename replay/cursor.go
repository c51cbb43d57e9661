// Package replay reconstructs a synthetic cursor overlay from a recorded
// event log. Given a playback timestamp and the size of the render surface it
// answers: where is the cursor, is a button held, and has a new click just
// happened.
package replay

import (
	"sort"

	"github.com/altic-dev/PixelMark/events"
	"github.com/altic-dev/PixelMark/geometry"
)

// Cursor is the reconstructed overlay state at one playback instant.
// X and Y are render-surface coordinates with y increasing downward.
type Cursor struct {
	X, Y    float64
	Holding bool
	// ClickSeq counts mouse_down events at or before the query time. It is
	// monotonic in playback time, so renderers can fire one-shot click
	// feedback exactly once per distinct press by watching it change.
	ClickSeq int
}

type posSample struct {
	t    float64
	x, y float64
}

type buttonSample struct {
	t    float64
	down bool
}

// Reconstructor derives cursor state from an immutable event log and the
// geometry the session was recorded with.
type Reconstructor struct {
	geom      geometry.Capture
	positions []posSample
	buttons   []buttonSample
}

// New indexes the log for timestamp lookups. The log must be ordered; logs
// loaded through events.Decode already are.
func New(log events.Log, geom geometry.Capture) *Reconstructor {
	r := &Reconstructor{geom: geom}
	for _, e := range log {
		switch d := e.Data.(type) {
		case events.CursorData:
			r.positions = append(r.positions, posSample{t: e.Timestamp, x: d.X, y: d.Y})
		case events.ClickData:
			r.positions = append(r.positions, posSample{t: e.Timestamp, x: d.X, y: d.Y})
			r.buttons = append(r.buttons, buttonSample{t: e.Timestamp, down: e.Kind == events.KindMouseDown})
		}
	}
	return r
}

// At computes the cursor state at playback time t for a render surface of the
// given size. The second return is false when the log holds no pointer
// samples at all.
func (r *Reconstructor) At(t float64, surfaceW, surfaceH float64) (Cursor, bool) {
	if len(r.positions) == 0 {
		return Cursor{}, false
	}

	x, y := r.positionAt(t)

	// Rescale from recording-pixel space to the render surface, then flip:
	// recorded y grows upward from the capture origin, surface y grows down.
	sx := surfaceW / float64(r.geom.PixelWidth)
	sy := surfaceH / float64(r.geom.PixelHeight)

	return Cursor{
		X:        x * sx,
		Y:        surfaceH - y*sy,
		Holding:  r.holdingAt(t),
		ClickSeq: r.clickSeqAt(t),
	}, true
}

// positionAt returns the recorded-pixel position at time t, interpolating
// linearly between the surrounding pointer samples.
func (r *Reconstructor) positionAt(t float64) (float64, float64) {
	// First sample strictly after t.
	next := sort.Search(len(r.positions), func(i int) bool {
		return r.positions[i].t > t
	})

	if next == 0 {
		// Query precedes all samples: pin to the first.
		p := r.positions[0]
		return p.x, p.y
	}

	prev := r.positions[next-1]
	if next == len(r.positions) {
		return prev.x, prev.y
	}

	after := r.positions[next]
	span := after.t - prev.t
	if span <= 0 {
		return after.x, after.y
	}
	frac := (t - prev.t) / span
	return prev.x + (after.x-prev.x)*frac, prev.y + (after.y-prev.y)*frac
}

// holdingAt reports whether a button is down at time t, derived from the
// transitions at or before t. A press applies at its own timestamp; a release
// applies strictly after, so the interval [down, up] samples as held at both
// ends.
func (r *Reconstructor) holdingAt(t float64) bool {
	holding := false
	for _, b := range r.buttons {
		if b.t > t {
			break
		}
		if b.down {
			holding = true
		} else if b.t < t {
			holding = false
		}
	}
	return holding
}

// clickSeqAt counts presses at or before t.
func (r *Reconstructor) clickSeqAt(t float64) int {
	n := 0
	for _, b := range r.buttons {
		if b.t > t {
			break
		}
		if b.down {
			n++
		}
	}
	return n
}
