//go:build linux

package rtc

import (
	"fmt"
	"os"
	"time"

	"golang.org/x/sys/unix"
)

// DefaultDevice is the first hardware real-time clock.
const DefaultDevice = "/dev/rtc0"

// HardwareClock reads and sets a battery-backed RTC through the kernel
// rtc character device.
type HardwareClock struct {
	f *os.File
}

// OpenHardwareClock opens the RTC device at path.
func OpenHardwareClock(path string) (*HardwareClock, error) {
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return nil, fmt.Errorf("open rtc: %w", err)
	}
	return &HardwareClock{f: f}, nil
}

// Now returns the RTC time, or FallbackTime if it cannot be read or has
// lost its time.
func (c *HardwareClock) Now() time.Time {
	rt, err := unix.IoctlGetRTCTime(int(c.f.Fd()))
	if err != nil {
		return FallbackTime
	}
	t := time.Date(int(rt.Year)+1900, time.Month(rt.Mon+1), int(rt.Mday),
		int(rt.Hour), int(rt.Min), int(rt.Sec), 0, time.UTC)
	if !Valid(t) {
		return FallbackTime
	}
	return t
}

// Set writes t to the RTC.
func (c *HardwareClock) Set(t time.Time) error {
	if !Valid(t) {
		return fmt.Errorf("set rtc: %v out of range", t)
	}
	t = t.UTC()
	rt := &unix.RTCTime{
		Sec:  int32(t.Second()),
		Min:  int32(t.Minute()),
		Hour: int32(t.Hour()),
		Mday: int32(t.Day()),
		Mon:  int32(t.Month()) - 1,
		Year: int32(t.Year()) - 1900,
		Wday: int32(t.Weekday()),
		Yday: int32(t.YearDay()) - 1,
	}
	if err := unix.IoctlSetRTCTime(int(c.f.Fd()), rt); err != nil {
		return fmt.Errorf("set rtc: %w", err)
	}
	return nil
}

// Close releases the device.
func (c *HardwareClock) Close() error {
	return c.f.Close()
}
