// Package recorder listens to global pointer, scroll, and key input during a
// recording session and buffers it as a timestamped event log. Timestamps are
// relative to the session start instant shared with the media writer, so the
// log replays in sync with the captured video.
package recorder

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	hook "github.com/robotn/gohook"

	"github.com/altic-dev/PixelMark/events"
	"github.com/altic-dev/PixelMark/geometry"
)

// ErrAlreadyListening is returned when Start is called on a running recorder.
var ErrAlreadyListening = errors.New("recorder: already listening")

// Throttle interval for cursor motion. One sample per display refresh is
// enough for smooth replay; raw hooks fire far more often.
const moveThrottle = 16 * time.Millisecond

// Mode reports the capability the recorder could acquire.
type Mode int

const (
	// ModeGlobal captures input across all applications.
	ModeGlobal Mode = iota
	// ModeDegraded means the input-monitoring permission is missing; events
	// are captured best-effort and the caller should warn the user. Recording
	// itself is unaffected.
	ModeDegraded
)

func (m Mode) String() string {
	if m == ModeDegraded {
		return "degraded"
	}
	return "global"
}

// RawKind classifies a raw input sample before it is mapped into the log.
type RawKind int

const (
	RawMove RawKind = iota
	RawDown
	RawUp
	RawScroll
	RawKey
)

// RawEvent is one normalized sample from the input-monitoring layer.
// Positions are absolute screen coordinates in device (top-left origin)
// space, as window servers report them.
type RawEvent struct {
	Kind       RawKind
	X, Y       float64
	Button     events.Button
	DeltaX     float64
	DeltaY     float64
	KeyCode    uint16
	Characters string
	Modifiers  []string
}

// Recorder buffers input events for one session at a time. It is reusable:
// Stop returns the log and resets all session state.
type Recorder struct {
	mu      sync.Mutex
	running bool
	paused  bool

	start      time.Time
	geom       geometry.Capture
	flipHeight float64
	lastTS     float64
	lastMove   float64
	pausedAt   time.Time
	pausedFor  time.Duration
	log        events.Log

	done chan struct{}

	// Hook indirection, swapped in tests.
	startHook func() chan hook.Event
	endHook   func()
}

// New creates an idle recorder.
func New() *Recorder {
	return &Recorder{
		startHook: hook.Start,
		endHook:   hook.End,
	}
}

// Start resets the log and begins listening. start must be the wall-clock
// instant of the writer's first accepted sample; primaryHeight is the logical
// height of the primary display, used to flip raw positions into user space.
// The returned mode is ModeDegraded when global input monitoring is not
// permitted; capture continues regardless.
func (r *Recorder) Start(start time.Time, geom geometry.Capture, primaryHeight float64) (Mode, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.running {
		return ModeGlobal, ErrAlreadyListening
	}

	r.start = start
	r.geom = geom
	r.flipHeight = primaryHeight
	r.log = events.Log{}
	r.lastTS = 0
	r.lastMove = -1
	r.paused = false
	r.pausedFor = 0
	r.running = true
	r.done = make(chan struct{})

	mode := ModeGlobal
	if !inputMonitoringTrusted() {
		mode = ModeDegraded
		slog.Warn("input monitoring permission missing, recording events best-effort")
	}

	ch := r.startHook()
	go r.listen(ch)

	slog.Info("event recorder started", "mode", mode, "origin", geom.Origin)
	return mode, nil
}

// Pause stops appending new events. Samples arriving while paused are
// discarded, and the paused span is excluded from the timeline: the media
// writer drops paused frames too, so event timestamps would otherwise drift
// ahead of the encoded video by the length of every pause.
func (r *Recorder) Pause() {
	r.pauseAt(time.Now())
}

func (r *Recorder) pauseAt(now time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.paused {
		return
	}
	r.paused = true
	r.pausedAt = now
}

// Resume re-enables event appending.
func (r *Recorder) Resume() {
	r.resumeAt(time.Now())
}

func (r *Recorder) resumeAt(now time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.paused {
		return
	}
	r.paused = false
	r.pausedFor += now.Sub(r.pausedAt)
}

// Stop ends listening, returns the accumulated log, and resets the recorder
// for reuse. Calling Stop on an idle recorder returns nil.
func (r *Recorder) Stop() events.Log {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return nil
	}
	done := r.done
	r.mu.Unlock()

	r.endHook()
	<-done

	r.mu.Lock()
	defer r.mu.Unlock()
	log := r.log
	r.log = nil
	r.running = false
	r.paused = false

	slog.Info("event recorder stopped", "events", len(log))
	return log
}

// listen drains the hook channel until the hook layer closes it on End.
func (r *Recorder) listen(ch chan hook.Event) {
	defer close(r.done)
	for ev := range ch {
		raw, ok := normalize(ev)
		if !ok {
			continue
		}
		r.handle(raw, time.Now())
	}
}

// handle maps one raw sample into the log. It runs on the hook delivery
// goroutine and must stay cheap: the throttle is a timestamp comparison,
// never a sleep.
func (r *Recorder) handle(raw RawEvent, now time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.running || r.paused {
		return
	}

	ts := (now.Sub(r.start) - r.pausedFor).Seconds()
	if ts < 0 {
		// Input can arrive between capture start and the first media sample.
		ts = 0
	}
	if ts < r.lastTS {
		ts = r.lastTS
	}

	switch raw.Kind {
	case RawMove:
		if r.lastMove >= 0 && ts-r.lastMove < moveThrottle.Seconds() {
			return
		}
		p := r.mapPosition(raw.X, raw.Y)
		r.log = append(r.log, events.Cursor(ts, p.X, p.Y))
		r.lastMove = ts

	case RawDown:
		p := r.mapPosition(raw.X, raw.Y)
		r.log = append(r.log, events.MouseDown(ts, p.X, p.Y, raw.Button))

	case RawUp:
		p := r.mapPosition(raw.X, raw.Y)
		r.log = append(r.log, events.MouseUp(ts, p.X, p.Y, raw.Button))

	case RawScroll:
		if raw.DeltaX == 0 && raw.DeltaY == 0 {
			return
		}
		r.log = append(r.log, events.Scroll(ts, raw.DeltaX, raw.DeltaY))

	case RawKey:
		r.log = append(r.log, events.KeyPress(ts, raw.KeyCode, raw.Characters, raw.Modifiers))
	}

	r.lastTS = ts
}

// mapPosition converts an absolute device-space position into captured-pixel
// space relative to the session's origin frame.
func (r *Recorder) mapPosition(x, y float64) geometry.Point {
	user := geometry.FlipPoint(geometry.Point{X: x, Y: y}, r.flipHeight)
	return r.geom.ToPixels(user)
}
