//go:build linux

package capture

import (
	"fmt"
	"os/exec"
	"regexp"
	"strconv"
	"strings"

	"github.com/altic-dev/PixelMark/geometry"
)

// xrandrMode matches "1920x1080+0+0" in a connected-output line.
var xrandrMode = regexp.MustCompile(`(\d+)x(\d+)\+(\d+)\+(\d+)`)

// Displays enumerates connected outputs via xrandr. Frames are returned in
// user space with the primary output's top edge as the reference height.
func Displays() ([]geometry.Display, error) {
	out, err := exec.Command("xrandr", "--query").Output()
	if err != nil {
		return nil, fmt.Errorf("xrandr: %w", err)
	}
	displays, err := parseXrandr(string(out))
	if err != nil {
		return nil, err
	}
	if len(displays) == 0 {
		return nil, fmt.Errorf("no connected displays in xrandr output")
	}
	return displays, nil
}

func parseXrandr(out string) ([]geometry.Display, error) {
	type output struct {
		w, h, x, y float64
		primary    bool
	}
	var outputs []output

	for _, line := range strings.Split(out, "\n") {
		if !strings.Contains(line, " connected") {
			continue
		}
		m := xrandrMode.FindStringSubmatch(line)
		if m == nil {
			// Connected but no active mode.
			continue
		}
		w, _ := strconv.ParseFloat(m[1], 64)
		h, _ := strconv.ParseFloat(m[2], 64)
		x, _ := strconv.ParseFloat(m[3], 64)
		y, _ := strconv.ParseFloat(m[4], 64)
		outputs = append(outputs, output{
			w: w, h: h, x: x, y: y,
			primary: strings.Contains(line, " primary "),
		})
	}
	if len(outputs) == 0 {
		return nil, nil
	}

	// X11 reports top-left origin layouts; flip into user space against the
	// primary output's height.
	refHeight := outputs[0].h
	for _, o := range outputs {
		if o.primary {
			refHeight = o.h
		}
	}

	displays := make([]geometry.Display, len(outputs))
	for i, o := range outputs {
		displays[i] = geometry.Display{
			ID: uint32(i),
			Frame: geometry.Rect{
				X:      o.x,
				Y:      refHeight - (o.y + o.h),
				Width:  o.w,
				Height: o.h,
			},
			// xrandr geometry is framebuffer pixels, so frames already are
			// pixel units and the point-to-pixel ratio is 1:1. HiDPI via
			// xrandr --scale resizes the framebuffer, not this ratio;
			// fractional Xft.dpi scaling is not detected.
			Scale: 1,
		}
	}
	return displays, nil
}
