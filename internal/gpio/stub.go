//go:build !linux

package gpio

import (
	"errors"
	"time"

	"github.com/sweeney/bike-computer/internal/logic"
	"github.com/sweeney/bike-computer/internal/pulse"
)

var processStart = time.Now()

// Monotonic returns the time since process start.
func Monotonic() time.Duration {
	return time.Since(processStart)
}

// RealReader is not available on non-Linux platforms.
type RealReader struct{}

// NewRealReader returns an error on non-Linux platforms.
func NewRealReader(chipName string, offsets [logic.NumButtons]int) (*RealReader, error) {
	return nil, errors.New("gpio: not supported on this platform (requires Linux)")
}

// Read is not implemented on non-Linux platforms.
func (r *RealReader) Read() (Levels, error) {
	return Levels{}, errors.New("gpio: not supported")
}

// Close is not implemented on non-Linux platforms.
func (r *RealReader) Close() error {
	return nil
}

// PulseSensor is not available on non-Linux platforms.
type PulseSensor struct{}

// NewPulseSensor returns an error on non-Linux platforms.
func NewPulseSensor(chipName string, offset int, capture *pulse.Capture) (*PulseSensor, error) {
	return nil, errors.New("gpio: not supported on this platform (requires Linux)")
}

// Close is not implemented on non-Linux platforms.
func (s *PulseSensor) Close() error {
	return nil
}
