// Package media turns raw frame and audio buffers into a finished container
// file. The Writer owns the session state machine and the backpressure
// contract; the Muxer interface hides the actual encoder so the writer logic
// is testable without one.
package media

import "fmt"

// VideoConfig describes the single video track of a session.
type VideoConfig struct {
	Width       int
	Height      int
	FrameRate   int
	Codec       string // "h264" or "h265"
	BitrateKbps int
}

// Validate rejects configurations the encoder would refuse anyway.
func (c VideoConfig) Validate() error {
	if c.Width <= 0 || c.Height <= 0 {
		return fmt.Errorf("invalid frame size %dx%d", c.Width, c.Height)
	}
	if c.Width%2 != 0 || c.Height%2 != 0 {
		return fmt.Errorf("frame size %dx%d not even-aligned", c.Width, c.Height)
	}
	if c.FrameRate <= 0 {
		return fmt.Errorf("invalid frame rate %d", c.FrameRate)
	}
	switch c.Codec {
	case "h264", "h265":
	default:
		return fmt.Errorf("unsupported codec %q", c.Codec)
	}
	return nil
}

// AudioConfig describes the optional audio track. PCM samples are interleaved
// signed 16-bit little-endian.
type AudioConfig struct {
	SampleRate int
	Channels   int
}

// Muxer is an encoder/muxer session. Start is called lazily by the Writer
// when the first sample is accepted; Finish flushes and closes the container.
// Writes for the two tracks may arrive on different goroutines but never
// concurrently for the same track.
type Muxer interface {
	Start(video VideoConfig, audio *AudioConfig) error
	WriteVideo(frame []byte) error
	WriteAudio(pcm []byte) error
	Finish() error
}
