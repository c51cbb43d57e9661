// Package capture produces raw video frames and audio chunks from the screen
// and system audio, and owns the recording session that ties capture, media
// writing, and event recording together.
package capture

import (
	"context"
	"time"
)

// Frame is one raw BGRA frame with its presentation timestamp.
type Frame struct {
	Data []byte
	PTS  time.Duration
}

// AudioChunk is a block of interleaved s16le PCM with the presentation
// timestamp of its first sample.
type AudioChunk struct {
	Data []byte
	PTS  time.Duration
}

// VideoSource delivers frames until Stop is called or the source fails.
// Frames is closed when delivery ends; a failure is reported on Errors first.
type VideoSource interface {
	Start(ctx context.Context) error
	Frames() <-chan Frame
	Errors() <-chan error
	Stop()
}

// AudioSource delivers PCM chunks under the same contract as VideoSource.
// SampleRate and Channels describe the fixed stream format.
type AudioSource interface {
	Start(ctx context.Context) error
	Chunks() <-chan AudioChunk
	Errors() <-chan error
	Stop()
	SampleRate() int
	Channels() int
}
