package recorder

import (
	"unicode"

	hook "github.com/robotn/gohook"

	"github.com/altic-dev/PixelMark/events"
)

// Modifier mask bits as the hook layer reports them, left and right variants
// combined. Meta is the command key, alt the option key.
var modifierMasks = []struct {
	bits uint16
	name string
}{
	{0x0001 | 0x0010, "shift"},
	{0x0002 | 0x0020, "control"},
	{0x0004 | 0x0040, "command"},
	{0x0008 | 0x0080, "option"},
}

// Wheel direction codes from the hook layer.
const (
	wheelVertical   = 3
	wheelHorizontal = 4
)

// normalize maps a hook event into a RawEvent. Events the log does not track
// (key holds, hook lifecycle notices) report ok=false. The hook layer emits
// MouseDrag instead of MouseMove while a button is held, so both are motion.
func normalize(ev hook.Event) (RawEvent, bool) {
	switch ev.Kind {
	case hook.MouseMove, hook.MouseDrag:
		return RawEvent{
			Kind: RawMove,
			X:    float64(ev.X),
			Y:    float64(ev.Y),
		}, true

	case hook.MouseDown:
		return RawEvent{
			Kind:   RawDown,
			X:      float64(ev.X),
			Y:      float64(ev.Y),
			Button: mapButton(ev.Button),
		}, true

	case hook.MouseUp:
		return RawEvent{
			Kind:   RawUp,
			X:      float64(ev.X),
			Y:      float64(ev.Y),
			Button: mapButton(ev.Button),
		}, true

	case hook.MouseWheel:
		raw := RawEvent{Kind: RawScroll, X: float64(ev.X), Y: float64(ev.Y)}
		delta := float64(ev.Rotation) * float64(ev.Amount)
		if ev.Direction == wheelHorizontal {
			raw.DeltaX = delta
		} else {
			raw.DeltaY = delta
		}
		return raw, true

	case hook.KeyDown:
		raw := RawEvent{
			Kind:      RawKey,
			KeyCode:   ev.Keycode,
			Modifiers: mapModifiers(ev.Mask),
		}
		if unicode.IsGraphic(ev.Keychar) {
			raw.Characters = string(ev.Keychar)
		}
		return raw, true
	}

	return RawEvent{}, false
}

func mapButton(b uint16) events.Button {
	switch b {
	case 2:
		return events.ButtonRight
	case 3:
		return events.ButtonMiddle
	default:
		return events.ButtonLeft
	}
}

func mapModifiers(mask uint16) []string {
	var mods []string
	for _, m := range modifierMasks {
		if mask&m.bits != 0 {
			mods = append(mods, m.name)
		}
	}
	return mods
}
