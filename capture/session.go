package capture

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/altic-dev/PixelMark/events"
	"github.com/altic-dev/PixelMark/geometry"
	"github.com/altic-dev/PixelMark/internal/types"
	"github.com/altic-dev/PixelMark/media"
	"github.com/altic-dev/PixelMark/recorder"
)

var (
	// ErrAlreadyRecording is returned when Start is called mid-session.
	ErrAlreadyRecording = errors.New("capture: recording already in progress")
	// ErrNotRecording is returned by Stop, Pause, and Resume with no session.
	ErrNotRecording = errors.New("capture: no recording in progress")
	// ErrNoTarget is returned when Start is called without a capture target.
	ErrNoTarget = errors.New("capture: no capture target selected")
)

// SessionConfig describes one recording.
type SessionConfig struct {
	Target   geometry.Target
	Displays []geometry.Display // enumerated when nil

	Dest        string // media output file
	FrameRate   int
	Codec       string
	BitrateKbps int

	IncludeSystemAudio bool
	FFmpegPath         string
}

// Result is everything one finished session produced.
type Result struct {
	Media    media.Result
	Events   events.Log
	Geometry geometry.Capture
}

// eventRecorder is what the session needs from the input recorder.
type eventRecorder interface {
	Start(start time.Time, geom geometry.Capture, primaryHeight float64) (recorder.Mode, error)
	Pause()
	Resume()
	Stop() events.Log
}

// Session runs one recording at a time: it resolves the capture geometry,
// streams frames and audio into the media writer, and records input events
// against the writer's start instant. A Session is reusable after Stop.
type Session struct {
	// OnInterrupt is called when the capture pipeline fails mid-recording,
	// after the media file has been finalized with everything written so far.
	OnInterrupt func(error, Result)

	mu       sync.Mutex
	running  bool
	finished bool
	paused   atomic.Bool

	// Factories, replaced in tests.
	newMuxer func(dest string) media.Muxer
	newVideo func(ScreenConfig) VideoSource
	newAudio func() (AudioSource, error)

	writer *media.Writer
	rec    eventRecorder
	video  VideoSource
	audio  AudioSource

	geom          geometry.Capture
	primaryHeight float64
	targetKind    geometry.TargetKind
	startedAt     time.Time

	forward  sync.WaitGroup
	arm      sync.WaitGroup
	quit     chan struct{}
	stopOnce *sync.Once
	last     Result
}

// NewSession creates an idle session service.
func NewSession() *Session {
	return &Session{
		newMuxer: func(dest string) media.Muxer { return media.NewFFmpegMuxer(dest) },
		newVideo: func(cfg ScreenConfig) VideoSource { return NewScreenSource(cfg) },
		newAudio: NewSystemAudioSource,
		rec:      recorder.New(),
	}
}

// Start resolves geometry, opens the media writer, and begins streaming. The
// event recorder starts only once the writer accepts its first sample, so
// event timestamps share the media zero-time.
func (s *Session) Start(ctx context.Context, cfg SessionConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return ErrAlreadyRecording
	}
	if cfg.Target.IsZero() {
		return ErrNoTarget
	}

	displays := cfg.Displays
	if displays == nil {
		var err error
		if displays, err = Displays(); err != nil {
			return fmt.Errorf("enumerate displays: %w", err)
		}
	}

	geom, err := geometry.Resolve(cfg.Target, displays)
	if err != nil {
		return err
	}
	primary, ok := geometry.PrimaryDisplay(displays)
	if !ok {
		return fmt.Errorf("%w: no displays", geometry.ErrGeometrySetup)
	}

	var audio AudioSource
	var audioCfg *media.AudioConfig
	if cfg.IncludeSystemAudio {
		if audio, err = s.newAudio(); err != nil {
			slog.Warn("system audio unavailable, recording video only", "error", err)
			audio = nil
		} else {
			audioCfg = &media.AudioConfig{SampleRate: audio.SampleRate(), Channels: audio.Channels()}
		}
	}

	writer, err := media.Open(s.newMuxer(cfg.Dest), media.VideoConfig{
		Width:       geom.PixelWidth,
		Height:      geom.PixelHeight,
		FrameRate:   cfg.FrameRate,
		Codec:       cfg.Codec,
		BitrateKbps: cfg.BitrateKbps,
	}, audioCfg)
	if err != nil {
		return err
	}

	video := s.newVideo(ScreenConfig{
		FFmpegPath:    cfg.FFmpegPath,
		Geometry:      geom,
		Target:        cfg.Target,
		PrimaryHeight: primary.Frame.Height,
		FrameRate:     cfg.FrameRate,
		DisplayIndex:  displayIndex(geom, displays),
	})
	if err := video.Start(ctx); err != nil {
		return fmt.Errorf("start screen capture: %w", err)
	}
	if audio != nil {
		if err := audio.Start(ctx); err != nil {
			slog.Warn("audio capture failed to start, continuing video only", "error", err)
			audio.Stop()
			audio = nil
		}
	}

	s.writer = writer
	s.video = video
	s.audio = audio
	s.geom = geom
	s.primaryHeight = primary.Frame.Height
	s.targetKind = cfg.Target.Kind
	s.startedAt = time.Now()
	s.running = true
	s.finished = false
	s.paused.Store(false)
	s.quit = make(chan struct{})
	s.stopOnce = new(sync.Once)

	s.forward.Add(1)
	go s.forwardVideo(video)
	if audio != nil {
		s.forward.Add(1)
		go s.forwardAudio(audio)
	}
	s.arm.Add(1)
	go s.armRecorder(writer)
	go s.watch(video, audio)

	slog.Info("recording started",
		"target", cfg.Target.Kind,
		"size", fmt.Sprintf("%dx%d", geom.PixelWidth, geom.PixelHeight),
		"fps", cfg.FrameRate,
		"audio", audio != nil,
	)
	return nil
}

// forwardVideo streams frames into the writer. Pause is authoritative here as
// well as in the recorder: paused samples never reach the writer.
func (s *Session) forwardVideo(src VideoSource) {
	defer s.forward.Done()
	for f := range src.Frames() {
		if s.paused.Load() {
			continue
		}
		s.writer.AppendVideo(f.Data, f.PTS)
	}
}

func (s *Session) forwardAudio(src AudioSource) {
	defer s.forward.Done()
	for c := range src.Chunks() {
		if s.paused.Load() {
			continue
		}
		s.writer.AppendAudio(c.Data, c.PTS)
	}
}

// armRecorder waits for the writer's first accepted sample and starts the
// event recorder at that instant. teardown waits for this goroutine before
// stopping the recorder, so a Stop racing the first sample cannot leave the
// recorder started with nothing to stop it.
func (s *Session) armRecorder(w *media.Writer) {
	defer s.arm.Done()
	select {
	case <-w.Started():
	case <-s.quit:
		return
	}
	instant, _ := w.StartInstant()
	if _, err := s.rec.Start(instant, s.geom, s.primaryHeight); err != nil {
		slog.Error("event recorder failed to start", "error", err)
	}
}

// watch tears the session down when a capture source fails, preserving what
// was already written.
func (s *Session) watch(video VideoSource, audio AudioSource) {
	var audioErrs <-chan error
	if audio != nil {
		audioErrs = audio.Errors()
	}

	var cause error
	select {
	case cause = <-video.Errors():
	case cause = <-audioErrs:
	case <-s.quit:
		return
	}

	slog.Error("capture interrupted", "error", cause)
	res := s.teardown()
	if s.OnInterrupt != nil {
		s.OnInterrupt(cause, res)
	}
}

// Pause suspends both media samples and input events. The session stays open.
func (s *Session) Pause() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return ErrNotRecording
	}
	s.paused.Store(true)
	s.rec.Pause()
	slog.Info("recording paused")
	return nil
}

// Resume re-enables the streams after Pause.
func (s *Session) Resume() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return ErrNotRecording
	}
	s.paused.Store(false)
	s.rec.Resume()
	slog.Info("recording resumed")
	return nil
}

// Paused reports whether the session is currently paused.
func (s *Session) Paused() bool { return s.paused.Load() }

// Status reports the current session state for status consumers.
func (s *Session) Status() types.SessionStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return types.SessionStatus{}
	}
	return types.SessionStatus{
		Recording: true,
		Paused:    s.paused.Load(),
		Target:    string(s.targetKind),
		Width:     s.geom.PixelWidth,
		Height:    s.geom.PixelHeight,
		Elapsed:   time.Since(s.startedAt).Seconds(),
	}
}

// Recording reports whether a session is in progress.
func (s *Session) Recording() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Stop ends the session and returns its result. If the session was already
// torn down by an interruption, the stored result is returned.
func (s *Session) Stop() (Result, error) {
	s.mu.Lock()
	if !s.running && !s.finished {
		s.mu.Unlock()
		return Result{}, ErrNotRecording
	}
	s.mu.Unlock()

	res := s.teardown()
	return res, nil
}

// teardown stops the sources, drains the forwarders, finalizes the media
// file, and collects the event log. Idempotent per session.
func (s *Session) teardown() Result {
	s.stopOnce.Do(func() {
		close(s.quit)
		s.video.Stop()
		if s.audio != nil {
			s.audio.Stop()
		}
		s.forward.Wait()
		s.arm.Wait()

		log := s.rec.Stop()
		mediaRes := s.writer.Finish()

		s.mu.Lock()
		s.running = false
		s.finished = true
		s.last = Result{Media: mediaRes, Events: log, Geometry: s.geom}
		s.mu.Unlock()

		slog.Info("recording stopped", "state", mediaRes.State, "events", len(log))
	})

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}

// displayIndex finds the list position of the display hosting the capture
// origin, which is what the platform grabbers address devices by.
func displayIndex(geom geometry.Capture, displays []geometry.Display) int {
	host, ok := geometry.DisplayContaining(geom.Origin.Center(), displays)
	if !ok {
		return 0
	}
	for i, d := range displays {
		if d.ID == host.ID {
			return i
		}
	}
	return 0
}
