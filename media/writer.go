package media

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// State is the media session lifecycle. Transitions: Idle→Writing on the
// first accepted sample, Writing→Finishing on Finish, then Completed or
// Failed once the flush is done.
type State int

const (
	StateIdle State = iota
	StateWriting
	StateFinishing
	StateCompleted
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateWriting:
		return "writing"
	case StateFinishing:
		return "finishing"
	case StateCompleted:
		return "completed"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// ErrNoMedia is the defined failure for a session finished before any sample
// was accepted.
var ErrNoMedia = errors.New("media: no samples were written")

// Result reports how a session ended.
type Result struct {
	State State
	Err   error
}

// Queue capacities. A full queue is the "not ready for more data" signal:
// the sample is dropped, never queued behind the encoder indefinitely.
const (
	videoQueueDepth = 8
	audioQueueDepth = 32
)

type sample struct {
	data []byte
	pts  time.Duration
}

// Writer wraps a Muxer session. Appends are safe from independent delivery
// goroutines; each track's readiness is independent and rechecked per sample.
type Writer struct {
	mu    sync.Mutex
	state State
	mux   Muxer
	video VideoConfig
	audio *AudioConfig

	zeroPTS   time.Duration
	startedAt time.Time     // wall clock at first accepted sample
	started   chan struct{} // closed when the session leaves Idle

	videoQ chan sample
	audioQ chan sample
	wg     sync.WaitGroup

	writeErr error // first muxer write failure, surfaced at Finish

	videoAccepted, videoDropped int
	audioAccepted, audioDropped int

	result *Result
}

// Open configures a writer for one video track and an optional audio track.
// The underlying muxer session does not begin until the first sample is
// accepted.
func Open(mux Muxer, video VideoConfig, audio *AudioConfig) (*Writer, error) {
	if mux == nil {
		return nil, errors.New("media: nil muxer")
	}
	if err := video.Validate(); err != nil {
		return nil, fmt.Errorf("media: %w", err)
	}
	return &Writer{
		mux:     mux,
		video:   video,
		audio:   audio,
		started: make(chan struct{}),
		videoQ:  make(chan sample, videoQueueDepth),
		audioQ:  make(chan sample, audioQueueDepth),
	}, nil
}

// AppendVideo offers a frame to the video track. The first accepted sample on
// either track fixes the session zero-time to its presentation timestamp.
// Samples offered while the track is not ready are dropped; appends outside
// the Writing state are ignored. Append never fails: encoder errors surface
// from Finish.
func (w *Writer) AppendVideo(frame []byte, pts time.Duration) {
	w.append(frame, pts, true)
}

// AppendAudio offers an audio chunk to the audio track, under the same
// contract as AppendVideo. Readiness is tracked per track.
func (w *Writer) AppendAudio(pcm []byte, pts time.Duration) {
	w.append(pcm, pts, false)
}

func (w *Writer) append(data []byte, pts time.Duration, isVideo bool) {
	w.mu.Lock()
	defer w.mu.Unlock()

	q := w.videoQ
	if !isVideo {
		if w.audio == nil {
			return
		}
		q = w.audioQ
	}

	if w.state == StateIdle {
		if !w.begin(pts) {
			return
		}
	}
	if w.state != StateWriting {
		return
	}

	// Readiness check: a full queue means the encoder is behind. Drop, do not
	// block the delivery goroutine.
	select {
	case q <- sample{data: data, pts: pts}:
		if isVideo {
			w.videoAccepted++
		} else {
			w.audioAccepted++
		}
	default:
		if isVideo {
			w.videoDropped++
		} else {
			w.audioDropped++
		}
	}
}

// begin starts the muxer session. Caller holds w.mu.
func (w *Writer) begin(pts time.Duration) bool {
	if err := w.mux.Start(w.video, w.audio); err != nil {
		w.state = StateFailed
		w.writeErr = fmt.Errorf("start muxer: %w", err)
		slog.Error("media writer failed to start", "error", err)
		return false
	}

	w.zeroPTS = pts
	w.startedAt = time.Now()
	w.state = StateWriting
	close(w.started)

	w.wg.Add(2)
	go w.drain(w.videoQ, w.mux.WriteVideo)
	go w.drain(w.audioQ, w.mux.WriteAudio)
	return true
}

// drain feeds one track's queue into the muxer. On a write failure the first
// error is kept and the rest of the queue is discarded so producers never
// stall.
func (w *Writer) drain(q chan sample, write func([]byte) error) {
	defer w.wg.Done()
	failed := false
	for s := range q {
		if failed {
			continue
		}
		if err := write(s.data); err != nil {
			failed = true
			w.mu.Lock()
			if w.writeErr == nil {
				w.writeErr = err
			}
			w.mu.Unlock()
			slog.Error("media track write failed", "error", err)
		}
	}
}

// Started is closed once the session has left Idle; at that point
// StartInstant is valid.
func (w *Writer) Started() <-chan struct{} {
	return w.started
}

// StartInstant returns the wall-clock instant and presentation timestamp of
// the first accepted sample. Event timestamps must be measured against this
// instant, not against the moment capture was requested.
func (w *Writer) StartInstant() (time.Time, time.Duration) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.startedAt, w.zeroPTS
}

// State reports the current session state.
func (w *Writer) State() State {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

// Dropped reports how many samples each track rejected while not ready.
func (w *Writer) Dropped() (video, audio int) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.videoDropped, w.audioDropped
}

// Finish marks both tracks finished, flushes the container, and reports the
// outcome. It is safe to call in any state, including before any sample was
// ever appended, and is idempotent.
func (w *Writer) Finish() Result {
	w.mu.Lock()
	if w.result != nil {
		res := *w.result
		w.mu.Unlock()
		return res
	}

	switch w.state {
	case StateIdle:
		// Nothing was ever accepted; the muxer never started.
		res := Result{State: StateFailed, Err: ErrNoMedia}
		w.state = StateFailed
		w.result = &res
		w.mu.Unlock()
		return res
	case StateFailed:
		res := Result{State: StateFailed, Err: w.writeErr}
		w.result = &res
		w.mu.Unlock()
		return res
	}

	w.state = StateFinishing
	close(w.videoQ)
	close(w.audioQ)
	w.mu.Unlock()

	// Let the queues drain before flushing the container.
	w.wg.Wait()

	finishErr := w.mux.Finish()

	w.mu.Lock()
	defer w.mu.Unlock()

	err := w.writeErr
	if err == nil {
		err = finishErr
	}

	res := Result{State: StateCompleted}
	if err != nil {
		res = Result{State: StateFailed, Err: err}
	}
	w.state = res.State
	w.result = &res

	slog.Info("media session finished",
		"state", res.State,
		"video_accepted", w.videoAccepted,
		"video_dropped", w.videoDropped,
		"audio_accepted", w.audioAccepted,
		"audio_dropped", w.audioDropped,
	)
	return res
}
