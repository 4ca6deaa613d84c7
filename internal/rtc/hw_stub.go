//go:build !linux

package rtc

import (
	"errors"
	"time"
)

// DefaultDevice is the first hardware real-time clock.
const DefaultDevice = "/dev/rtc0"

// HardwareClock is not available on non-Linux platforms.
type HardwareClock struct{}

// OpenHardwareClock returns an error on non-Linux platforms.
func OpenHardwareClock(path string) (*HardwareClock, error) {
	return nil, errors.New("rtc: not supported on this platform (requires Linux)")
}

// Now returns FallbackTime.
func (c *HardwareClock) Now() time.Time {
	return FallbackTime
}

// Set is not implemented on non-Linux platforms.
func (c *HardwareClock) Set(t time.Time) error {
	return errors.New("rtc: not supported")
}

// Close is not implemented on non-Linux platforms.
func (c *HardwareClock) Close() error {
	return nil
}
