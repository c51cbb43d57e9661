//go:build !linux && !darwin

package capture

import (
	"errors"

	"github.com/altic-dev/PixelMark/geometry"
)

// Displays is not implemented on this platform.
func Displays() ([]geometry.Display, error) {
	return nil, errors.New("display enumeration not supported on this platform")
}
