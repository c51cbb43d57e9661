package media

import (
	"errors"
	"sync"
	"testing"
	"time"
)

// fakeMuxer records calls and can inject failures or stalls.
type fakeMuxer struct {
	mu          sync.Mutex
	started     bool
	finished    bool
	video       [][]byte
	audio       [][]byte
	startErr    error
	writeErr    error
	finishErr   error
	writeGate   chan struct{} // when set, WriteVideo blocks until closed
	sawAudioCfg *AudioConfig
}

func (f *fakeMuxer) Start(video VideoConfig, audio *AudioConfig) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.startErr != nil {
		return f.startErr
	}
	f.started = true
	f.sawAudioCfg = audio
	return nil
}

func (f *fakeMuxer) WriteVideo(frame []byte) error {
	if f.writeGate != nil {
		<-f.writeGate
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.writeErr != nil {
		return f.writeErr
	}
	f.video = append(f.video, frame)
	return nil
}

func (f *fakeMuxer) WriteAudio(pcm []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.audio = append(f.audio, pcm)
	return nil
}

func (f *fakeMuxer) Finish() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.finished = true
	return f.finishErr
}

func (f *fakeMuxer) videoCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.video)
}

func testVideoConfig() VideoConfig {
	return VideoConfig{Width: 1280, Height: 720, FrameRate: 30, Codec: "h264", BitrateKbps: 4000}
}

func TestOpenRejectsBadConfig(t *testing.T) {
	tests := []struct {
		name string
		cfg  VideoConfig
	}{
		{"odd_width", VideoConfig{Width: 1281, Height: 720, FrameRate: 30, Codec: "h264"}},
		{"zero_height", VideoConfig{Width: 1280, Height: 0, FrameRate: 30, Codec: "h264"}},
		{"no_fps", VideoConfig{Width: 1280, Height: 720, Codec: "h264"}},
		{"bad_codec", VideoConfig{Width: 1280, Height: 720, FrameRate: 30, Codec: "av1"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Open(&fakeMuxer{}, tt.cfg, nil); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestOpenDoesNotStartSession(t *testing.T) {
	mux := &fakeMuxer{}
	w, err := Open(mux, testVideoConfig(), nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if mux.started {
		t.Fatal("muxer must not start before the first sample")
	}
	if w.State() != StateIdle {
		t.Fatalf("state = %v, want idle", w.State())
	}
}

func TestFirstSampleFixesZeroTime(t *testing.T) {
	mux := &fakeMuxer{}
	w, _ := Open(mux, testVideoConfig(), nil)

	pts := 250 * time.Millisecond
	w.AppendVideo([]byte{1}, pts)

	if w.State() != StateWriting {
		t.Fatalf("state = %v, want writing", w.State())
	}
	select {
	case <-w.Started():
	default:
		t.Fatal("Started must be closed after the first accepted sample")
	}
	instant, zero := w.StartInstant()
	if zero != pts {
		t.Fatalf("zero pts = %v, want %v", zero, pts)
	}
	if instant.IsZero() {
		t.Fatal("start instant not recorded")
	}
}

func TestFinishBeforeAnySample(t *testing.T) {
	mux := &fakeMuxer{}
	w, _ := Open(mux, testVideoConfig(), nil)

	res := w.Finish()
	if res.State != StateFailed || !errors.Is(res.Err, ErrNoMedia) {
		t.Fatalf("result = %+v, want failed with ErrNoMedia", res)
	}
	if mux.started || mux.finished {
		t.Fatal("muxer must not be touched when nothing was written")
	}

	// Idempotent.
	if again := w.Finish(); !errors.Is(again.Err, ErrNoMedia) {
		t.Fatalf("second Finish = %+v", again)
	}
}

func TestAppendAfterFinishIgnored(t *testing.T) {
	mux := &fakeMuxer{}
	w, _ := Open(mux, testVideoConfig(), nil)

	w.AppendVideo([]byte{1}, 0)
	res := w.Finish()
	if res.State != StateCompleted {
		t.Fatalf("result = %+v, want completed", res)
	}

	w.AppendVideo([]byte{2}, time.Second) // must not panic or write
	if n := mux.videoCount(); n != 1 {
		t.Fatalf("video writes = %d, want 1", n)
	}
}

func TestBackpressureDropsWhenNotReady(t *testing.T) {
	gate := make(chan struct{})
	mux := &fakeMuxer{writeGate: gate}
	w, _ := Open(mux, testVideoConfig(), nil)

	// One sample in flight inside the blocked WriteVideo, queue holds the
	// next videoQueueDepth. Everything beyond that must be dropped.
	total := videoQueueDepth + 20
	for i := 0; i < total; i++ {
		w.AppendVideo([]byte{byte(i)}, time.Duration(i)*time.Millisecond)
	}

	dropped, _ := w.Dropped()
	if dropped == 0 {
		t.Fatal("expected drops while the encoder is stalled")
	}
	if dropped >= total {
		t.Fatalf("dropped %d of %d, expected some accepted", dropped, total)
	}

	close(gate)
	if res := w.Finish(); res.State != StateCompleted {
		t.Fatalf("result = %+v, want completed", res)
	}
}

func TestAudioIgnoredWithoutTrack(t *testing.T) {
	mux := &fakeMuxer{}
	w, _ := Open(mux, testVideoConfig(), nil)

	w.AppendAudio([]byte{1, 2}, 0)
	w.AppendVideo([]byte{1}, 0)
	res := w.Finish()
	if res.State != StateCompleted {
		t.Fatalf("result = %+v", res)
	}
	if len(mux.audio) != 0 {
		t.Fatal("audio written despite no audio track configured")
	}
}

func TestAudioFirstSampleStartsSession(t *testing.T) {
	mux := &fakeMuxer{}
	w, _ := Open(mux, testVideoConfig(), &AudioConfig{SampleRate: 48000, Channels: 2})

	w.AppendAudio([]byte{1, 2, 3, 4}, 100*time.Millisecond)
	if w.State() != StateWriting {
		t.Fatalf("state = %v, want writing after first audio sample", w.State())
	}
	_, zero := w.StartInstant()
	if zero != 100*time.Millisecond {
		t.Fatalf("zero pts = %v", zero)
	}
	if mux.sawAudioCfg == nil {
		t.Fatal("audio config not passed to muxer")
	}
	if res := w.Finish(); res.State != StateCompleted {
		t.Fatalf("result = %+v", res)
	}
}

func TestMuxerStartFailure(t *testing.T) {
	mux := &fakeMuxer{startErr: errors.New("encoder unavailable")}
	w, _ := Open(mux, testVideoConfig(), nil)

	w.AppendVideo([]byte{1}, 0) // must not panic
	if w.State() != StateFailed {
		t.Fatalf("state = %v, want failed", w.State())
	}
	res := w.Finish()
	if res.State != StateFailed || res.Err == nil {
		t.Fatalf("result = %+v, want failure with reason", res)
	}
}

func TestWriteFailureSurfacesAtFinish(t *testing.T) {
	mux := &fakeMuxer{writeErr: errors.New("disk full")}
	w, _ := Open(mux, testVideoConfig(), nil)

	w.AppendVideo([]byte{1}, 0)
	res := w.Finish()
	if res.State != StateFailed || res.Err == nil {
		t.Fatalf("result = %+v, want failed with write error", res)
	}
	if !mux.finished {
		t.Fatal("container must still be flushed after a write failure")
	}
}
