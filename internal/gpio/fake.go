package gpio

import (
	"errors"
	"time"

	"github.com/sweeney/bike-computer/internal/pulse"
)

// FakeReader is a test double that returns scripted button levels.
type FakeReader struct {
	// Samples contains scripted levels to return.
	// Each call to Read() consumes the next sample.
	Samples []Levels

	// index tracks current position in Samples
	index int

	// Closed tracks if Close was called
	Closed bool

	// ReadError, if set, will be returned by Read()
	ReadError error
}

// NewFakeReader creates a FakeReader with the given samples.
func NewFakeReader(samples []Levels) *FakeReader {
	return &FakeReader{Samples: samples}
}

// Read returns the next scripted sample.
// If samples are exhausted, returns the last sample repeatedly.
func (f *FakeReader) Read() (Levels, error) {
	if f.ReadError != nil {
		return Levels{}, f.ReadError
	}

	if len(f.Samples) == 0 {
		return Levels{}, errors.New("no samples configured")
	}

	sample := f.Samples[f.index]
	if f.index < len(f.Samples)-1 {
		f.index++
	}

	return sample, nil
}

// Close marks the reader as closed.
func (f *FakeReader) Close() error {
	f.Closed = true
	return nil
}

// Reset resets the reader to the beginning of samples.
func (f *FakeReader) Reset() {
	f.index = 0
	f.Closed = false
}

// FakeWheel replays scripted wheel edges into a capture.
type FakeWheel struct {
	capture *pulse.Capture
	// Edges are monotonic edge timestamps in ascending order.
	Edges []time.Duration
	next  int
}

// NewFakeWheel creates a wheel that feeds capture.
func NewFakeWheel(capture *pulse.Capture, edges []time.Duration) *FakeWheel {
	return &FakeWheel{capture: capture, Edges: edges}
}

// Advance delivers every scripted edge at or before now and returns how
// many were delivered.
func (w *FakeWheel) Advance(now time.Duration) int {
	n := 0
	for w.next < len(w.Edges) && w.Edges[w.next] <= now {
		w.capture.Edge(w.Edges[w.next])
		w.next++
		n++
	}
	return n
}

// Steady returns n edge timestamps starting at start and spaced interval
// apart.
func Steady(start, interval time.Duration, n int) []time.Duration {
	edges := make([]time.Duration, n)
	for i := range edges {
		edges[i] = start + time.Duration(i)*interval
	}
	return edges
}
