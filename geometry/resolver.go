package geometry

import (
	"errors"
	"fmt"
)

// ErrGeometrySetup is returned when a capture target cannot be resolved to a
// usable pixel geometry.
var ErrGeometrySetup = errors.New("geometry setup failed")

// Capture is the resolved geometry of one recording session. It is computed
// once before the session starts and shared by value with the media writer
// and the event recorder; it is never recomputed mid-session.
type Capture struct {
	PixelWidth  int     `json:"pixel_width"`  // even
	PixelHeight int     `json:"pixel_height"` // even
	Scale       float64 `json:"scale"`
	Origin      Rect    `json:"origin"` // user space, logical points
}

// Resolve computes the capture geometry for a target given the connected
// displays. It is pure and deterministic: the same inputs always produce the
// same geometry.
func Resolve(target Target, displays []Display) (Capture, error) {
	switch target.Kind {
	case TargetDisplay:
		return resolveDisplay(target, displays)
	case TargetWindow:
		return resolveWindow(target, displays)
	default:
		return Capture{}, fmt.Errorf("%w: unknown target kind %q", ErrGeometrySetup, target.Kind)
	}
}

func resolveDisplay(target Target, displays []Display) (Capture, error) {
	d, ok := DisplayByID(target.DisplayID, displays)
	if !ok {
		return Capture{}, fmt.Errorf("%w: display %d not connected", ErrGeometrySetup, target.DisplayID)
	}

	w := evenAlign(d.Frame.Width * d.Scale)
	h := evenAlign(d.Frame.Height * d.Scale)
	if w <= 0 || h <= 0 {
		return Capture{}, fmt.Errorf("%w: display %d resolves to %dx%d px", ErrGeometrySetup, d.ID, w, h)
	}

	return Capture{
		PixelWidth:  w,
		PixelHeight: h,
		Scale:       d.Scale,
		Origin:      d.Frame,
	}, nil
}

func resolveWindow(target Target, displays []Display) (Capture, error) {
	primary, ok := PrimaryDisplay(displays)
	if !ok {
		return Capture{}, fmt.Errorf("%w: no displays connected", ErrGeometrySetup)
	}

	// The window server reports window frames top-left-origin; flip into user
	// space before any display math.
	frame := FlipRect(target.Frame, primary.Frame.Height)

	host, ok := DisplayContaining(frame.Center(), displays)
	if !ok {
		host = primary
	}

	w := evenAlign(frame.Width * host.Scale)
	h := evenAlign(frame.Height * host.Scale)
	if w <= 0 || h <= 0 {
		return Capture{}, fmt.Errorf("%w: window %d resolves to %dx%d px", ErrGeometrySetup, target.WindowID, w, h)
	}

	return Capture{
		PixelWidth:  w,
		PixelHeight: h,
		Scale:       host.Scale,
		Origin:      frame,
	}, nil
}

// evenAlign floors v to the nearest even integer. Encoders reject odd frame
// dimensions.
func evenAlign(v float64) int {
	n := int(v)
	return n &^ 1
}

// PixelsPerPoint is the factor converting origin-frame points into captured
// pixels, averaged across axes when rounding made them differ.
func (c Capture) PixelsPerPoint() float64 {
	if c.Origin.Width <= 0 || c.Origin.Height <= 0 {
		return 1
	}
	sx := float64(c.PixelWidth) / c.Origin.Width
	sy := float64(c.PixelHeight) / c.Origin.Height
	return (sx + sy) / 2
}

// ToPixels maps a user-space point into captured-pixel space relative to the
// capture origin frame.
func (c Capture) ToPixels(p Point) Point {
	ppp := c.PixelsPerPoint()
	return Point{
		X: (p.X - c.Origin.X) * ppp,
		Y: (p.Y - c.Origin.Y) * ppp,
	}
}
