//go:build linux

package capture

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jfreymuth/pulse"
	"github.com/jfreymuth/pulse/proto"
)

const (
	audioSampleRate = 48000
	audioChannels   = 2
	chunkQueueDepth = 32
)

// PulseSource records the default sink monitor through PulseAudio, yielding
// interleaved s16le PCM chunks.
type PulseSource struct {
	client *pulse.Client
	stream *pulse.RecordStream

	mu      sync.Mutex
	stopped bool

	chunks chan AudioChunk
	errs   chan error

	bytesDelivered int64
}

// NewSystemAudioSource connects to the PulseAudio server. Recording does not
// begin until Start.
func NewSystemAudioSource() (AudioSource, error) {
	client, err := pulse.NewClient(pulse.ClientApplicationName("pixelmark"))
	if err != nil {
		return nil, fmt.Errorf("pulse connect: %w", err)
	}
	return &PulseSource{
		client: client,
		chunks: make(chan AudioChunk, chunkQueueDepth),
		errs:   make(chan error, 1),
	}, nil
}

// SampleRate reports the fixed capture format.
func (p *PulseSource) SampleRate() int { return audioSampleRate }

// Channels reports the fixed capture format.
func (p *PulseSource) Channels() int { return audioChannels }

// Write receives raw PCM from the PulseAudio client goroutine. PTS is derived
// from the running byte count, which is exact for a fixed-rate stream. The
// mutex is held across the send so Stop cannot close the channel between the
// stopped check and the send.
func (p *PulseSource) Write(data []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.stopped {
		return len(data), nil
	}
	pts := time.Duration(p.bytesDelivered) * time.Second / (audioSampleRate * audioChannels * 2)
	p.bytesDelivered += int64(len(data))

	chunk := AudioChunk{Data: append([]byte(nil), data...), PTS: pts}
	select {
	case p.chunks <- chunk:
	default:
		// Consumer behind; the writer's drop policy applies downstream anyway.
	}
	return len(data), nil
}

// Format reports the PCM sample format to the PulseAudio client.
func (p *PulseSource) Format() byte { return proto.FormatInt16LE }

// Start begins recording the default sink monitor.
func (p *PulseSource) Start(ctx context.Context) error {
	sink, err := p.client.DefaultSink()
	if err != nil {
		return fmt.Errorf("pulse default sink: %w", err)
	}

	stream, err := p.client.NewRecord(
		p,
		pulse.RecordMonitor(sink),
		pulse.RecordStereo,
		pulse.RecordSampleRate(audioSampleRate),
	)
	if err != nil {
		return fmt.Errorf("pulse record stream: %w", err)
	}

	p.stream = stream
	stream.Start()
	return nil
}

// Chunks returns the PCM stream. It is closed by Stop.
func (p *PulseSource) Chunks() <-chan AudioChunk { return p.chunks }

// Errors reports a capture failure.
func (p *PulseSource) Errors() <-chan error { return p.errs }

// Stop ends recording and closes the chunk stream. The close happens under
// the same mutex Write sends under, so a delivery in flight can never hit a
// closed channel.
func (p *PulseSource) Stop() {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return
	}
	p.stopped = true
	close(p.chunks)
	p.mu.Unlock()

	if p.stream != nil {
		p.stream.Stop()
	}
	if p.client != nil {
		p.client.Close()
	}
}
