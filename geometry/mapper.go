package geometry

// FlipPoint converts a point between device (top-left origin) and user
// (bottom-left origin) coordinates. referenceHeight is the logical height of
// the primary display, which anchors both spaces. The conversion is its own
// inverse.
func FlipPoint(p Point, referenceHeight float64) Point {
	return Point{X: p.X, Y: referenceHeight - p.Y}
}

// FlipRect converts a rectangle between device and user coordinates using the
// primary display's height as the flip reference. Like FlipPoint it is an
// involution.
func FlipRect(r Rect, referenceHeight float64) Rect {
	return Rect{
		X:      r.X,
		Y:      referenceHeight - r.Y - r.Height,
		Width:  r.Width,
		Height: r.Height,
	}
}

// PrimaryDisplay returns the display whose user-space frame sits at the
// origin. Falls back to the first display when none does.
func PrimaryDisplay(displays []Display) (Display, bool) {
	if len(displays) == 0 {
		return Display{}, false
	}
	for _, d := range displays {
		if d.Frame.X == 0 && d.Frame.Y == 0 {
			return d, true
		}
	}
	return displays[0], true
}

// DisplayContaining returns the display whose frame contains p. A window
// spanning monitors belongs to the display its center sits on, not to the
// primary display.
func DisplayContaining(p Point, displays []Display) (Display, bool) {
	for _, d := range displays {
		if d.Frame.Contains(p) {
			return d, true
		}
	}
	return Display{}, false
}

// DisplayByID looks up a display by its identifier.
func DisplayByID(id uint32, displays []Display) (Display, bool) {
	for _, d := range displays {
		if d.ID == id {
			return d, true
		}
	}
	return Display{}, false
}
