package media

import (
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"runtime"
	"strings"
	"time"
)

// finishTimeout bounds how long Finish waits for the encoder to finalize the
// container after its inputs close. Generous because a truncated wait is the
// one thing that corrupts the file.
const finishTimeout = 15 * time.Second

// FFmpegMuxer encodes raw BGRA frames (stdin) and optional s16le PCM (fd 3)
// into a container file via an ffmpeg subprocess.
type FFmpegMuxer struct {
	Path string // ffmpeg binary; defaults to "ffmpeg" on PATH
	Dest string

	cmd       *exec.Cmd
	videoIn   io.WriteCloser
	audioIn   *os.File
	audioRead *os.File
	stderr    bytes.Buffer
}

// NewFFmpegMuxer creates a muxer writing to dest. The container format
// follows the destination extension.
func NewFFmpegMuxer(dest string) *FFmpegMuxer {
	return &FFmpegMuxer{Path: "ffmpeg", Dest: dest}
}

// Start launches the encoder process with the session's track layout.
func (m *FFmpegMuxer) Start(video VideoConfig, audio *AudioConfig) error {
	if m.cmd != nil {
		return fmt.Errorf("ffmpeg muxer already started")
	}

	args := []string{
		"-y", "-loglevel", "error",
		"-f", "rawvideo",
		"-pixel_format", "bgra",
		"-video_size", fmt.Sprintf("%dx%d", video.Width, video.Height),
		"-framerate", fmt.Sprintf("%d", video.FrameRate),
		"-i", "pipe:0",
	}
	if audio != nil {
		args = append(args,
			"-f", "s16le",
			"-ar", fmt.Sprintf("%d", audio.SampleRate),
			"-ac", fmt.Sprintf("%d", audio.Channels),
			"-i", "pipe:3",
		)
	}

	args = append(args,
		"-c:v", encoderFor(video.Codec),
		"-b:v", fmt.Sprintf("%dk", video.BitrateKbps),
		"-maxrate", fmt.Sprintf("%dk", video.BitrateKbps*2),
		"-bufsize", fmt.Sprintf("%dk", video.BitrateKbps*3),
		"-g", fmt.Sprintf("%d", video.FrameRate*2),
		"-pix_fmt", "yuv420p",
	)
	if audio != nil {
		args = append(args, "-c:a", "aac", "-b:a", "128k")
	}
	args = append(args, m.Dest)

	cmd := exec.Command(m.Path, args...)
	cmd.Stderr = &m.stderr

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("ffmpeg stdin: %w", err)
	}

	if audio != nil {
		r, w, err := os.Pipe()
		if err != nil {
			stdin.Close()
			return fmt.Errorf("ffmpeg audio pipe: %w", err)
		}
		cmd.ExtraFiles = []*os.File{r} // becomes fd 3 in the child
		m.audioIn = w
		m.audioRead = r
	}

	if err := cmd.Start(); err != nil {
		stdin.Close()
		m.closeAudio()
		return fmt.Errorf("start ffmpeg: %w", err)
	}
	// Parent keeps only the write end.
	if m.audioRead != nil {
		m.audioRead.Close()
		m.audioRead = nil
	}

	m.cmd = cmd
	m.videoIn = stdin
	slog.Debug("ffmpeg muxer started", "dest", m.Dest, "args", strings.Join(args, " "))
	return nil
}

// WriteVideo feeds one raw BGRA frame to the encoder.
func (m *FFmpegMuxer) WriteVideo(frame []byte) error {
	if m.videoIn == nil {
		return fmt.Errorf("ffmpeg muxer not started")
	}
	if _, err := m.videoIn.Write(frame); err != nil {
		return fmt.Errorf("write video frame: %w", err)
	}
	return nil
}

// WriteAudio feeds interleaved s16le PCM to the encoder.
func (m *FFmpegMuxer) WriteAudio(pcm []byte) error {
	if m.audioIn == nil {
		return fmt.Errorf("ffmpeg muxer has no audio track")
	}
	if _, err := m.audioIn.Write(pcm); err != nil {
		return fmt.Errorf("write audio: %w", err)
	}
	return nil
}

// Finish closes both inputs so ffmpeg drains and finalizes the container,
// then waits for it to exit.
func (m *FFmpegMuxer) Finish() error {
	if m.cmd == nil {
		return fmt.Errorf("ffmpeg muxer never started")
	}

	m.videoIn.Close()
	m.closeAudio()

	done := make(chan error, 1)
	go func() { done <- m.cmd.Wait() }()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("ffmpeg exited: %w (%s)", err, stderrTail(&m.stderr))
		}
		return nil
	case <-time.After(finishTimeout):
		m.cmd.Process.Kill()
		<-done
		return fmt.Errorf("ffmpeg did not finalize within %s", finishTimeout)
	}
}

func (m *FFmpegMuxer) closeAudio() {
	if m.audioIn != nil {
		m.audioIn.Close()
		m.audioIn = nil
	}
	if m.audioRead != nil {
		m.audioRead.Close()
		m.audioRead = nil
	}
}

// encoderFor picks a hardware encoder where the platform has an obvious one,
// falling back to the software encoders.
func encoderFor(codec string) string {
	if runtime.GOOS == "darwin" {
		if codec == "h265" {
			return "hevc_videotoolbox"
		}
		return "h264_videotoolbox"
	}
	if codec == "h265" {
		return "libx265"
	}
	return "libx264"
}

func stderrTail(buf *bytes.Buffer) string {
	s := strings.TrimSpace(buf.String())
	if len(s) > 400 {
		s = "…" + s[len(s)-400:]
	}
	if s == "" {
		return "no encoder output"
	}
	return s
}
