// Package geometry resolves the pixel dimensions, scale factor, and origin
// rectangle used by a recording session, and converts between the coordinate
// spaces involved: the window server reports device coordinates (top-left
// origin), while capture origin frames live in user coordinates (bottom-left
// origin).
package geometry

// Point is a location in a 2D coordinate space.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Rect is an axis-aligned rectangle. Whether it is in device or user space
// depends on where it came from; conversion happens via FlipRect.
type Rect struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Center returns the midpoint of the rectangle.
func (r Rect) Center() Point {
	return Point{X: r.X + r.Width/2, Y: r.Y + r.Height/2}
}

// Contains reports whether p lies inside the rectangle. Points on the
// left/bottom edges are inside, points on the right/top edges are not, so
// adjacent display frames never both claim a point.
func (r Rect) Contains(p Point) bool {
	return p.X >= r.X && p.X < r.X+r.Width &&
		p.Y >= r.Y && p.Y < r.Y+r.Height
}

// Display describes one connected physical display.
type Display struct {
	ID    uint32  `json:"id"`
	Frame Rect    `json:"frame"` // user space, logical points
	Scale float64 `json:"scale"` // backing scale factor (pixels per point)
}

// TargetKind discriminates capture targets.
type TargetKind string

const (
	TargetDisplay TargetKind = "display"
	TargetWindow  TargetKind = "window"
)

// Target is the display or window selected as the video source. It is chosen
// before a session starts and is immutable for the session's lifetime.
// Window frames are stored as reported by the window server, in device
// (top-left origin) coordinates.
type Target struct {
	Kind TargetKind `json:"kind"`

	// Display target
	DisplayID uint32  `json:"display_id,omitempty"`
	Width     float64 `json:"width,omitempty"`  // logical points
	Height    float64 `json:"height,omitempty"` // logical points

	// Window target
	WindowID uint32 `json:"window_id,omitempty"`
	Frame    Rect   `json:"frame,omitempty"`
	AppName  string `json:"app_name,omitempty"`
	Title    string `json:"title,omitempty"`
}

// NewDisplayTarget selects a whole display as the capture source.
func NewDisplayTarget(d Display) Target {
	return Target{
		Kind:      TargetDisplay,
		DisplayID: d.ID,
		Width:     d.Frame.Width,
		Height:    d.Frame.Height,
	}
}

// NewWindowTarget selects a single window as the capture source. frame is the
// window's frame in device coordinates.
func NewWindowTarget(id uint32, frame Rect, appName, title string) Target {
	return Target{
		Kind:     TargetWindow,
		WindowID: id,
		Frame:    frame,
		AppName:  appName,
		Title:    title,
	}
}

// IsZero reports whether no target has been selected.
func (t Target) IsZero() bool {
	return t.Kind == ""
}
