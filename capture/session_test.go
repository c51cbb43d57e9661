package capture

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/altic-dev/PixelMark/events"
	"github.com/altic-dev/PixelMark/geometry"
	"github.com/altic-dev/PixelMark/media"
	"github.com/altic-dev/PixelMark/recorder"
)

type fakeVideo struct {
	mu      sync.Mutex
	frames  chan Frame
	errs    chan error
	stopped bool
}

func newFakeVideo() *fakeVideo {
	return &fakeVideo{frames: make(chan Frame, 16), errs: make(chan error, 1)}
}

func (f *fakeVideo) Start(context.Context) error { return nil }
func (f *fakeVideo) Frames() <-chan Frame        { return f.frames }
func (f *fakeVideo) Errors() <-chan error        { return f.errs }

func (f *fakeVideo) Stop() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.stopped {
		f.stopped = true
		close(f.frames)
	}
}

func (f *fakeVideo) emit(pts time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.stopped {
		f.frames <- Frame{Data: []byte{1}, PTS: pts}
	}
}

func (f *fakeVideo) fail(err error) { f.errs <- err }

func (f *fakeVideo) pending() int { return len(f.frames) }

type fakeAudio struct {
	mu      sync.Mutex
	chunks  chan AudioChunk
	errs    chan error
	stopped bool
}

func newFakeAudio() *fakeAudio {
	return &fakeAudio{chunks: make(chan AudioChunk, 16), errs: make(chan error, 1)}
}

func (f *fakeAudio) Start(context.Context) error { return nil }
func (f *fakeAudio) Chunks() <-chan AudioChunk   { return f.chunks }
func (f *fakeAudio) Errors() <-chan error        { return f.errs }
func (f *fakeAudio) SampleRate() int             { return 48000 }
func (f *fakeAudio) Channels() int               { return 2 }

func (f *fakeAudio) Stop() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.stopped {
		f.stopped = true
		close(f.chunks)
	}
}

type fakeRecorder struct {
	mu      sync.Mutex
	started bool
	startAt time.Time
	paused  bool
	log     events.Log
}

func (f *fakeRecorder) Start(start time.Time, _ geometry.Capture, _ float64) (recorder.Mode, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.started = true
	f.startAt = start
	return recorder.ModeGlobal, nil
}

func (f *fakeRecorder) Pause() {
	f.mu.Lock()
	f.paused = true
	f.mu.Unlock()
}

func (f *fakeRecorder) Resume() {
	f.mu.Lock()
	f.paused = false
	f.mu.Unlock()
}

func (f *fakeRecorder) Stop() events.Log {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.started = false
	return f.log
}

func (f *fakeRecorder) wasStarted() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.started
}

// nullMuxer accepts everything and counts writes.
type nullMuxer struct {
	mu     sync.Mutex
	video  int
	audio  int
	closed bool
}

func (m *nullMuxer) Start(media.VideoConfig, *media.AudioConfig) error { return nil }

func (m *nullMuxer) WriteVideo([]byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.video++
	return nil
}

func (m *nullMuxer) WriteAudio([]byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.audio++
	return nil
}

func (m *nullMuxer) Finish() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

func (m *nullMuxer) videoWrites() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.video
}

func testDisplays() []geometry.Display {
	return []geometry.Display{
		{ID: 1, Frame: geometry.Rect{X: 0, Y: 0, Width: 1920, Height: 1080}, Scale: 1},
	}
}

func testSessionConfig() SessionConfig {
	return SessionConfig{
		Target:      geometry.NewDisplayTarget(testDisplays()[0]),
		Displays:    testDisplays(),
		Dest:        "out.mp4",
		FrameRate:   30,
		Codec:       "h264",
		BitrateKbps: 4000,
	}
}

// newTestSession wires a session with in-memory sources, muxer, and recorder.
func newTestSession() (*Session, *fakeVideo, *fakeRecorder, *nullMuxer) {
	video := newFakeVideo()
	rec := &fakeRecorder{}
	mux := &nullMuxer{}

	s := NewSession()
	s.rec = rec
	s.newMuxer = func(string) media.Muxer { return mux }
	s.newVideo = func(ScreenConfig) VideoSource { return video }
	s.newAudio = func() (AudioSource, error) { return newFakeAudio(), nil }
	return s, video, rec, mux
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for !cond() {
		select {
		case <-deadline:
			t.Fatalf("timed out waiting for %s", what)
		case <-time.After(time.Millisecond):
		}
	}
}

func TestSessionLifecycle(t *testing.T) {
	s, video, rec, mux := newTestSession()

	if err := s.Start(context.Background(), testSessionConfig()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if !s.Recording() {
		t.Fatal("session not recording after Start")
	}

	video.emit(0)
	video.emit(33 * time.Millisecond)
	waitFor(t, "frames to reach the muxer", func() bool { return mux.videoWrites() == 2 })
	waitFor(t, "recorder to arm", rec.wasStarted)

	res, err := s.Stop()
	if err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if res.Media.State != media.StateCompleted {
		t.Fatalf("media result = %+v", res.Media)
	}
	if res.Geometry.PixelWidth != 1920 || res.Geometry.PixelHeight != 1080 {
		t.Fatalf("geometry = %+v", res.Geometry)
	}
	if s.Recording() {
		t.Fatal("still recording after Stop")
	}
}

func TestSessionGuards(t *testing.T) {
	s, video, _, _ := newTestSession()

	if _, err := s.Stop(); !errors.Is(err, ErrNotRecording) {
		t.Fatalf("Stop idle = %v", err)
	}
	if err := s.Pause(); !errors.Is(err, ErrNotRecording) {
		t.Fatalf("Pause idle = %v", err)
	}
	if err := s.Start(context.Background(), SessionConfig{}); !errors.Is(err, ErrNoTarget) {
		t.Fatalf("Start without target = %v", err)
	}

	if err := s.Start(context.Background(), testSessionConfig()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := s.Start(context.Background(), testSessionConfig()); !errors.Is(err, ErrAlreadyRecording) {
		t.Fatalf("second Start = %v", err)
	}
	video.emit(0)
	if _, err := s.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
}

func TestSessionUnknownDisplay(t *testing.T) {
	s, _, _, _ := newTestSession()
	cfg := testSessionConfig()
	cfg.Target = geometry.Target{Kind: geometry.TargetDisplay, DisplayID: 99}

	err := s.Start(context.Background(), cfg)
	if !errors.Is(err, geometry.ErrGeometrySetup) {
		t.Fatalf("err = %v, want geometry setup failure", err)
	}
}

func TestSessionPauseDropsFrames(t *testing.T) {
	s, video, rec, mux := newTestSession()
	if err := s.Start(context.Background(), testSessionConfig()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	video.emit(0)
	waitFor(t, "first frame", func() bool { return mux.videoWrites() == 1 })

	if err := s.Pause(); err != nil {
		t.Fatalf("Pause: %v", err)
	}
	if !rec.paused {
		t.Fatal("recorder not paused with session")
	}
	video.emit(33 * time.Millisecond)
	video.emit(66 * time.Millisecond)
	waitFor(t, "paused frames to be discarded", func() bool { return video.pending() == 0 })
	time.Sleep(50 * time.Millisecond)

	if err := s.Resume(); err != nil {
		t.Fatalf("Resume: %v", err)
	}
	video.emit(100 * time.Millisecond)
	waitFor(t, "post-resume frame", func() bool { return mux.videoWrites() == 2 })

	if _, err := s.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if n := mux.videoWrites(); n != 2 {
		t.Fatalf("muxer saw %d frames, want paused ones dropped", n)
	}
}

func TestSessionInterruption(t *testing.T) {
	s, video, _, _ := newTestSession()

	interrupted := make(chan Result, 1)
	s.OnInterrupt = func(err error, res Result) {
		if err == nil {
			t.Error("interrupt without cause")
		}
		interrupted <- res
	}

	if err := s.Start(context.Background(), testSessionConfig()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	video.emit(0)
	video.fail(errors.New("grabber died"))

	select {
	case res := <-interrupted:
		if res.Media.State != media.StateCompleted {
			t.Fatalf("interrupted media result = %+v, want completed with partial data", res.Media)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("interrupt observer never called")
	}

	// Stop after an interruption returns the stored result.
	res, err := s.Stop()
	if err != nil {
		t.Fatalf("Stop after interrupt: %v", err)
	}
	if res.Media.State != media.StateCompleted {
		t.Fatalf("stored result = %+v", res.Media)
	}
}

func TestSessionNoFramesFails(t *testing.T) {
	s, _, _, _ := newTestSession()
	if err := s.Start(context.Background(), testSessionConfig()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	res, err := s.Stop()
	if err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if res.Media.State != media.StateFailed || !errors.Is(res.Media.Err, media.ErrNoMedia) {
		t.Fatalf("result = %+v, want ErrNoMedia failure", res.Media)
	}
}

func TestRecorderNeverOutlivesSession(t *testing.T) {
	// Stop racing the first accepted sample must not leave the recorder
	// listening after teardown, or the next session cannot start it.
	for i := 0; i < 50; i++ {
		s, video, rec, _ := newTestSession()
		if err := s.Start(context.Background(), testSessionConfig()); err != nil {
			t.Fatalf("Start: %v", err)
		}
		video.emit(0)
		if _, err := s.Stop(); err != nil {
			t.Fatalf("Stop: %v", err)
		}
		if rec.wasStarted() {
			t.Fatalf("iteration %d: recorder still listening after Stop", i)
		}
	}
}

func TestSessionReuse(t *testing.T) {
	s, video, _, mux := newTestSession()

	if err := s.Start(context.Background(), testSessionConfig()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	video.emit(0)
	waitFor(t, "frame", func() bool { return mux.videoWrites() == 1 })
	if _, err := s.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}

	// Fresh fakes for the second run.
	video2 := newFakeVideo()
	mux2 := &nullMuxer{}
	s.newVideo = func(ScreenConfig) VideoSource { return video2 }
	s.newMuxer = func(string) media.Muxer { return mux2 }

	if err := s.Start(context.Background(), testSessionConfig()); err != nil {
		t.Fatalf("second Start: %v", err)
	}
	video2.emit(0)
	waitFor(t, "second session frame", func() bool { return mux2.videoWrites() == 1 })
	res, err := s.Stop()
	if err != nil {
		t.Fatalf("second Stop: %v", err)
	}
	if res.Media.State != media.StateCompleted {
		t.Fatalf("second result = %+v", res.Media)
	}
}
