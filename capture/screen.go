package capture

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/altic-dev/PixelMark/geometry"
)

const frameQueueDepth = 4

// ScreenConfig describes what the screen source grabs.
type ScreenConfig struct {
	FFmpegPath    string // defaults to "ffmpeg" on PATH
	Geometry      geometry.Capture
	Target        geometry.Target
	PrimaryHeight float64 // logical height of the primary display
	FrameRate     int
	DisplayIndex  int // platform capture device index of the host display
}

// ScreenSource grabs the screen through an ffmpeg subprocess and streams raw
// BGRA frames from its stdout.
type ScreenSource struct {
	cfg ScreenConfig

	mu      sync.Mutex
	cmd     *exec.Cmd
	stopped bool

	frames chan Frame
	errs   chan error
}

// NewScreenSource creates a source for the given capture geometry.
func NewScreenSource(cfg ScreenConfig) *ScreenSource {
	if cfg.FFmpegPath == "" {
		cfg.FFmpegPath = "ffmpeg"
	}
	return &ScreenSource{
		cfg:    cfg,
		frames: make(chan Frame, frameQueueDepth),
		errs:   make(chan error, 1),
	}
}

// Start launches the grabber and begins streaming frames.
func (s *ScreenSource) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cmd != nil {
		return errors.New("screen source already started")
	}

	args := buildCaptureArgs(runtime.GOOS, s.cfg)
	cmd := exec.CommandContext(ctx, s.cfg.FFmpegPath, args...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("screen source stdout: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start screen grabber: %w", err)
	}
	s.cmd = cmd

	slog.Debug("screen grabber started", "args", strings.Join(args, " "))
	go s.read(stdout)
	return nil
}

// read slices the raw stream into frames. PTS is derived from the frame index
// at the configured rate, matching how the grabber paces its output.
func (s *ScreenSource) read(r io.Reader) {
	defer close(s.frames)

	frameSize := s.cfg.Geometry.PixelWidth * s.cfg.Geometry.PixelHeight * 4
	interval := time.Second / time.Duration(s.cfg.FrameRate)

	for n := 0; ; n++ {
		buf := make([]byte, frameSize)
		if _, err := io.ReadFull(r, buf); err != nil {
			s.mu.Lock()
			stopped := s.stopped
			s.mu.Unlock()
			if !stopped {
				s.errs <- fmt.Errorf("screen grabber stream ended: %w", err)
			}
			return
		}

		frame := Frame{Data: buf, PTS: time.Duration(n) * interval}
		select {
		case s.frames <- frame:
		default:
			// Consumer is behind; the media writer applies its own drop policy,
			// so losing a grab-side frame here is equivalent.
		}
	}
}

// Frames returns the frame stream. It is closed when delivery ends.
func (s *ScreenSource) Frames() <-chan Frame { return s.frames }

// Errors reports a grabber failure. Buffered so the reader never blocks.
func (s *ScreenSource) Errors() <-chan error { return s.errs }

// Stop terminates the grabber. The frame channel closes once the stream
// drains.
func (s *ScreenSource) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cmd == nil || s.stopped {
		return
	}
	s.stopped = true
	s.cmd.Process.Signal(os.Interrupt)
	go s.cmd.Wait()
}

// buildCaptureArgs assembles the grabber command line for one platform. Kept
// pure so the per-platform argument layout is testable anywhere.
func buildCaptureArgs(goos string, cfg ScreenConfig) []string {
	g := cfg.Geometry

	// Device-space pixel offset of the capture origin. The grabbers address
	// the screen top-left; the origin frame is user space.
	offX := int(g.Origin.X * g.Scale)
	offY := int((cfg.PrimaryHeight - (g.Origin.Y + g.Origin.Height)) * g.Scale)

	var args []string
	switch goos {
	case "darwin":
		// avfoundation numbers cameras before screens, so a bare index would
		// hit the built-in camera on most machines. Screens are always named
		// "Capture screen N" in display order, so address by name.
		args = []string{
			"-f", "avfoundation",
			"-capture_cursor", "1",
			"-framerate", fmt.Sprintf("%d", cfg.FrameRate),
			"-i", fmt.Sprintf("Capture screen %d:none", cfg.DisplayIndex),
		}
		var filters []string
		if cfg.Target.Kind == geometry.TargetWindow {
			filters = append(filters, fmt.Sprintf("crop=%d:%d:%d:%d", g.PixelWidth, g.PixelHeight, offX, offY))
		}
		filters = append(filters, fmt.Sprintf("scale=%d:%d", g.PixelWidth, g.PixelHeight))
		args = append(args, "-vf", strings.Join(filters, ","))

	case "windows":
		args = []string{
			"-f", "gdigrab",
			"-framerate", fmt.Sprintf("%d", cfg.FrameRate),
			"-offset_x", fmt.Sprintf("%d", offX),
			"-offset_y", fmt.Sprintf("%d", offY),
			"-video_size", fmt.Sprintf("%dx%d", g.PixelWidth, g.PixelHeight),
			"-i", "desktop",
		}

	default: // x11
		display := os.Getenv("DISPLAY")
		if display == "" {
			display = ":0"
		}
		args = []string{
			"-f", "x11grab",
			"-framerate", fmt.Sprintf("%d", cfg.FrameRate),
			"-video_size", fmt.Sprintf("%dx%d", g.PixelWidth, g.PixelHeight),
			"-i", fmt.Sprintf("%s+%d,%d", display, offX, offY),
		}
	}

	return append(args,
		"-loglevel", "error",
		"-f", "rawvideo",
		"-pix_fmt", "bgra",
		"pipe:1",
	)
}
