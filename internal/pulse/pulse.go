// Package pulse holds the wheel-sensor edge state shared between the edge
// handler and the main loop.
//
// The edge handler (a gpiocdev event callback on real hardware) is the only
// writer. The main loop reads through Take or Peek, which copy the whole
// state inside the same critical section so a reader never sees a count
// from one edge paired with the timestamp of another.
package pulse

import (
	"sync"
	"time"
)

// DebounceInterval is the minimum spacing between accepted edges.
// Anything closer is treated as contact bounce and dropped.
const DebounceInterval = 10 * time.Millisecond

// Sample is a consistent snapshot of the capture state.
type Sample struct {
	// Count is the number of accepted edges since power-on. It wraps at 2^32.
	Count uint32
	// Last is the monotonic timestamp of the most recent accepted edge.
	Last time.Duration
	// Interval is the spacing between the two most recent accepted edges.
	// Zero until a second edge has been accepted.
	Interval time.Duration
}

// Capture timestamps sensor edges and publishes the pulse count.
type Capture struct {
	mu       sync.Mutex
	count    uint32
	last     time.Duration
	interval time.Duration
	seen     bool
	fresh    bool
	rejected uint32
}

// NewCapture returns an empty Capture.
func NewCapture() *Capture {
	return &Capture{}
}

// Edge records a sensor edge observed at the monotonic timestamp ts.
// It is O(1) and never blocks beyond the short critical section.
func (c *Capture) Edge(ts time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.seen {
		d := ts - c.last
		if d < DebounceInterval {
			c.rejected++
			return
		}
		c.interval = d
	}

	c.seen = true
	c.last = ts
	c.count++
	c.fresh = true
}

// Take returns the current sample and whether a new pulse arrived since the
// previous Take. The new-pulse flag is cleared in the same critical section.
func (c *Capture) Take() (Sample, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	fresh := c.fresh
	c.fresh = false
	return Sample{Count: c.count, Last: c.last, Interval: c.interval}, fresh
}

// Peek returns the current sample without touching the new-pulse flag.
func (c *Capture) Peek() Sample {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Sample{Count: c.count, Last: c.last, Interval: c.interval}
}

// Rejected returns how many edges were dropped as bounce.
func (c *Capture) Rejected() uint32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.rejected
}
