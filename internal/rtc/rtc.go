// Package rtc provides the calendar clock used to timestamp trips.
// The engine treats its value as an opaque timestamp; all timing
// decisions use the monotonic clock instead.
package rtc

import (
	"fmt"
	"sync"
	"time"
)

// FallbackTime is what the clock is set to after a factory reset or when
// the hardware clock has lost its time.
var FallbackTime = time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)

// Clock gets and sets the calendar date-time.
type Clock interface {
	Now() time.Time
	Set(t time.Time) error
}

// Valid reports whether t can be stored in a packed trip timestamp.
func Valid(t time.Time) bool {
	y := t.Year()
	return y >= 2000 && y < 2064
}

// SystemClock is a settable clock derived from the host's wall clock.
// Setting it stores an offset rather than changing the system time.
type SystemClock struct {
	mu     sync.Mutex
	offset time.Duration
	now    func() time.Time
}

// NewSystemClock creates a clock that follows the system time.
func NewSystemClock() *SystemClock {
	return &SystemClock{now: time.Now}
}

// Now returns the adjusted wall-clock time in UTC.
func (c *SystemClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now().Add(c.offset).UTC().Truncate(time.Second)
}

// Set adjusts the clock so that Now returns t.
func (c *SystemClock) Set(t time.Time) error {
	if !Valid(t) {
		return fmt.Errorf("set clock: %v out of range", t)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.offset = t.Sub(c.now())
	return nil
}

// FakeClock is a test double with a fixed, settable time.
type FakeClock struct {
	mu sync.Mutex
	t  time.Time

	// SetError, if set, is returned by Set.
	SetError error

	// Sets counts successful calls to Set.
	Sets int
}

// NewFakeClock creates a fake clock reading t.
func NewFakeClock(t time.Time) *FakeClock {
	return &FakeClock{t: t}
}

// Now returns the current fake time.
func (c *FakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

// Set changes the fake time.
func (c *FakeClock) Set(t time.Time) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.SetError != nil {
		return c.SetError
	}
	c.t = t
	c.Sets++
	return nil
}

// Advance moves the fake time forward by d.
func (c *FakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}
