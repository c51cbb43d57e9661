//go:build !linux

package capture

import "errors"

// ErrAudioUnsupported is returned where no system audio backend exists.
var ErrAudioUnsupported = errors.New("system audio capture not supported on this platform")

// NewSystemAudioSource reports that system audio is unavailable. Callers
// record video-only in that case.
func NewSystemAudioSource() (AudioSource, error) {
	return nil, ErrAudioUnsupported
}
