// Package events defines the recorded input event log and its on-disk JSON
// shape. Each event carries a session-relative timestamp, an explicit type
// discriminant, and a payload variant determined by that discriminant.
package events

import (
	"encoding/json"
	"fmt"
)

// Kind discriminates event payloads. The string values are the on-disk tags;
// decoding never infers the variant from payload shape.
type Kind string

const (
	KindCursorMove Kind = "cursor_move"
	KindMouseDown  Kind = "mouse_down"
	KindMouseUp    Kind = "mouse_up"
	KindScroll     Kind = "scroll"
	KindKeyPress   Kind = "key_press"
)

// Button identifies which mouse button a click event carries.
type Button string

const (
	ButtonLeft   Button = "left"
	ButtonRight  Button = "right"
	ButtonMiddle Button = "middle"
)

// Payload is one arm of the event variant.
type Payload interface {
	kind() Kind
}

// CursorData is the payload of a cursor_move event. Coordinates are in
// captured-pixel space relative to the capture origin, y increasing upward.
type CursorData struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// ClickData is the payload of mouse_down and mouse_up events.
type ClickData struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Button Button  `json:"button"`
}

// ScrollData is the payload of a scroll event.
type ScrollData struct {
	DeltaX float64 `json:"delta_x"`
	DeltaY float64 `json:"delta_y"`
}

// KeyData is the payload of a key_press event. Characters is the best-effort
// printable mapping and may be empty for function or modifier keys.
type KeyData struct {
	KeyCode    uint16   `json:"key_code"`
	Characters string   `json:"characters,omitempty"`
	Modifiers  []string `json:"modifiers,omitempty"`
}

func (CursorData) kind() Kind { return KindCursorMove }
func (ScrollData) kind() Kind { return KindScroll }
func (KeyData) kind() Kind    { return KindKeyPress }

// ClickData serves both button transitions; the authoritative discriminant
// lives on the Event.
func (ClickData) kind() Kind { return KindMouseDown }

// Event is one recorded input event. Timestamp is in seconds relative to the
// session start instant (the presentation time of the first accepted media
// sample) and is never negative.
type Event struct {
	Timestamp float64
	Kind      Kind
	Data      Payload
}

// Cursor returns a cursor_move event.
func Cursor(ts float64, x, y float64) Event {
	return Event{Timestamp: ts, Kind: KindCursorMove, Data: CursorData{X: x, Y: y}}
}

// MouseDown returns a mouse_down event.
func MouseDown(ts float64, x, y float64, b Button) Event {
	return Event{Timestamp: ts, Kind: KindMouseDown, Data: ClickData{X: x, Y: y, Button: b}}
}

// MouseUp returns a mouse_up event.
func MouseUp(ts float64, x, y float64, b Button) Event {
	return Event{Timestamp: ts, Kind: KindMouseUp, Data: ClickData{X: x, Y: y, Button: b}}
}

// Scroll returns a scroll event.
func Scroll(ts float64, dx, dy float64) Event {
	return Event{Timestamp: ts, Kind: KindScroll, Data: ScrollData{DeltaX: dx, DeltaY: dy}}
}

// KeyPress returns a key_press event.
func KeyPress(ts float64, code uint16, characters string, modifiers []string) Event {
	return Event{Timestamp: ts, Kind: KindKeyPress, Data: KeyData{KeyCode: code, Characters: characters, Modifiers: modifiers}}
}

// envelope is the wire shape of an event.
type envelope struct {
	Timestamp float64         `json:"timestamp"`
	Type      Kind            `json:"type"`
	Data      json.RawMessage `json:"data"`
}

// MarshalJSON encodes the event with its explicit discriminant.
func (e Event) MarshalJSON() ([]byte, error) {
	data, err := json.Marshal(e.Data)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", e.Kind, err)
	}
	return json.Marshal(envelope{Timestamp: e.Timestamp, Type: e.Kind, Data: data})
}

// UnmarshalJSON decodes an event, selecting the payload variant from the
// type tag.
func (e *Event) UnmarshalJSON(b []byte) error {
	var env envelope
	if err := json.Unmarshal(b, &env); err != nil {
		return err
	}

	var payload Payload
	switch env.Type {
	case KindCursorMove:
		var d CursorData
		if err := json.Unmarshal(env.Data, &d); err != nil {
			return err
		}
		payload = d
	case KindMouseDown, KindMouseUp:
		var d ClickData
		if err := json.Unmarshal(env.Data, &d); err != nil {
			return err
		}
		payload = d
	case KindScroll:
		var d ScrollData
		if err := json.Unmarshal(env.Data, &d); err != nil {
			return err
		}
		payload = d
	case KindKeyPress:
		var d KeyData
		if err := json.Unmarshal(env.Data, &d); err != nil {
			return err
		}
		payload = d
	default:
		return fmt.Errorf("unknown event type %q", env.Type)
	}

	e.Timestamp = env.Timestamp
	e.Kind = env.Type
	e.Data = payload
	return nil
}
