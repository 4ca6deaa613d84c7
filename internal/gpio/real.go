//go:build linux

package gpio

import (
	"fmt"
	"time"

	"github.com/warthog618/go-gpiocdev"
	"golang.org/x/sys/unix"

	"github.com/sweeney/bike-computer/internal/logic"
	"github.com/sweeney/bike-computer/internal/pulse"
)

const consumer = "bike-computer"

// Monotonic returns CLOCK_MONOTONIC, the time base of kernel edge event
// timestamps.
func Monotonic() time.Duration {
	var ts unix.Timespec
	if err := unix.ClockGettime(unix.CLOCK_MONOTONIC, &ts); err != nil {
		panic(fmt.Sprintf("clock_gettime: %v", err))
	}
	return time.Duration(ts.Nano())
}

// RealReader reads the buttons from actual hardware using the Linux GPIO
// character device.
type RealReader struct {
	chip  *gpiocdev.Chip
	lines *gpiocdev.Lines
	raw   []int
}

// NewRealReader requests the button lines on chip.
func NewRealReader(chipName string, offsets [logic.NumButtons]int) (*RealReader, error) {
	chip, err := gpiocdev.NewChip(chipName, gpiocdev.WithConsumer(consumer))
	if err != nil {
		return nil, fmt.Errorf("open gpio chip: %w", err)
	}

	// Buttons short to ground; the pull-up holds released lines high.
	lines, err := chip.RequestLines(offsets[:], gpiocdev.AsInput, gpiocdev.WithPullUp)
	if err != nil {
		chip.Close()
		return nil, fmt.Errorf("request button lines %v: %w", offsets, err)
	}

	return &RealReader{
		chip:  chip,
		lines: lines,
		raw:   make([]int, len(offsets)),
	}, nil
}

// Read returns the logical button levels.
// Inverts raw GPIO: raw 0 = pressed.
func (r *RealReader) Read() (Levels, error) {
	var levels Levels
	if err := r.lines.Values(r.raw); err != nil {
		return levels, fmt.Errorf("read button lines: %w", err)
	}
	for i, v := range r.raw {
		levels[i] = v == 0
	}
	return levels, nil
}

// Close releases GPIO resources.
func (r *RealReader) Close() error {
	var errs []error

	if r.lines != nil {
		if err := r.lines.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close button lines: %w", err))
		}
	}
	if r.chip != nil {
		if err := r.chip.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close chip: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}

// PulseSensor delivers wheel sensor edges to a pulse.Capture. The kernel
// timestamps each rising edge; the handler runs on the gpiocdev event
// goroutine.
type PulseSensor struct {
	line *gpiocdev.Line
}

// NewPulseSensor requests the wheel sensor line and starts feeding edges
// into capture.
func NewPulseSensor(chipName string, offset int, capture *pulse.Capture) (*PulseSensor, error) {
	line, err := gpiocdev.RequestLine(chipName, offset,
		gpiocdev.WithConsumer(consumer),
		gpiocdev.WithPullUp,
		gpiocdev.WithRisingEdge,
		gpiocdev.WithEventHandler(func(evt gpiocdev.LineEvent) {
			capture.Edge(evt.Timestamp)
		}))
	if err != nil {
		return nil, fmt.Errorf("request wheel line %d: %w", offset, err)
	}
	return &PulseSensor{line: line}, nil
}

// Close stops edge delivery and releases the line. The line is returned
// to a plain input first so no edge detection is left configured.
func (s *PulseSensor) Close() error {
	var errs []error
	if err := s.line.Reconfigure(gpiocdev.AsInput); err != nil {
		errs = append(errs, fmt.Errorf("reconfigure wheel line: %w", err))
	}
	if err := s.line.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close wheel line: %w", err))
	}
	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}
