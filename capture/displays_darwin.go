//go:build darwin

package capture

import (
	"fmt"

	"github.com/altic-dev/PixelMark/geometry"
)

/*
#cgo LDFLAGS: -framework CoreGraphics
#include <CoreGraphics/CoreGraphics.h>
*/
import "C"

const maxDisplays = 16

// Displays enumerates active displays via CoreGraphics. Bounds come back in
// global top-left coordinates and are flipped into user space against the
// main display's height.
func Displays() ([]geometry.Display, error) {
	var ids [maxDisplays]C.CGDirectDisplayID
	var count C.uint32_t
	if err := C.CGGetActiveDisplayList(maxDisplays, &ids[0], &count); err != C.kCGErrorSuccess {
		return nil, fmt.Errorf("CGGetActiveDisplayList failed: %d", int(err))
	}
	if count == 0 {
		return nil, fmt.Errorf("no active displays")
	}

	mainBounds := C.CGDisplayBounds(C.CGMainDisplayID())
	refHeight := float64(mainBounds.size.height)

	displays := make([]geometry.Display, 0, int(count))
	for i := 0; i < int(count); i++ {
		id := ids[i]
		bounds := C.CGDisplayBounds(id)

		w := float64(bounds.size.width)
		h := float64(bounds.size.height)
		scale := 1.0
		if w > 0 {
			scale = float64(C.CGDisplayPixelsWide(id)) / w
		}

		displays = append(displays, geometry.Display{
			ID: uint32(id),
			Frame: geometry.Rect{
				X:      float64(bounds.origin.x),
				Y:      refHeight - (float64(bounds.origin.y) + h),
				Width:  w,
				Height: h,
			},
			Scale: scale,
		})
	}
	return displays, nil
}
