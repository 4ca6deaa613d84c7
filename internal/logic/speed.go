package logic

import (
	"math"
	"time"

	"github.com/sweeney/bike-computer/internal/pulse"
)

const (
	// MinPulseInterval is the shortest interval that produces a speed
	// sample. Shorter intervals still count towards distance.
	MinPulseInterval = 5 * time.Millisecond

	// StopTimeout is how long without a pulse before speed decays to zero.
	StopTimeout = 3 * time.Second

	// RollingSize is the number of instantaneous samples averaged.
	RollingSize = 5

	// DefaultWheelDiameter is the wheel diameter in inches used when no
	// valid calibration is stored.
	DefaultWheelDiameter = 26.0

	// MinWheelDiameter and MaxWheelDiameter bound a plausible calibration.
	MinWheelDiameter = 12.0
	MaxWheelDiameter = 32.0
)

// Circumference returns the wheel circumference in millimetres for a
// diameter in inches.
func Circumference(diameterIn float64) float64 {
	return diameterIn * 25.4 * math.Pi
}

// ClampWheelDiameter forces a calibration into the plausible range.
// NaN maps to the default.
func ClampWheelDiameter(d float64) float64 {
	switch {
	case math.IsNaN(d):
		return DefaultWheelDiameter
	case d < MinWheelDiameter:
		return MinWheelDiameter
	case d > MaxWheelDiameter:
		return MaxWheelDiameter
	}
	return d
}

// Reading is the speed engine output for one loop tick.
type Reading struct {
	// Instant is the instantaneous speed in km/h.
	Instant float64
	// Cadence is wheel revolutions per minute.
	Cadence float64
	// Average is the rolling mean of recent instantaneous speeds.
	Average float64
	// Pulses is the number of new pulses registered this tick.
	Pulses uint32
	// Stopped is true on the tick where speed was forced to zero.
	Stopped bool
}

// SpeedEngine derives speed and cadence from pulse samples.
type SpeedEngine struct {
	circumferenceMM float64

	instant float64
	cadence float64

	buf     [RollingSize]float64
	idx     int
	wrapped bool

	lastCount uint32
	lastPulse time.Duration
	seen      bool
}

// NewSpeedEngine creates an engine for a wheel of the given circumference
// in millimetres.
func NewSpeedEngine(circumferenceMM float64) *SpeedEngine {
	return &SpeedEngine{circumferenceMM: circumferenceMM}
}

// SetCircumference updates the wheel calibration.
func (e *SpeedEngine) SetCircumference(mm float64) {
	e.circumferenceMM = mm
}

// Update processes one tick. fresh reports whether the capture raised its
// new-pulse flag since the previous tick; s is the snapshot taken together
// with clearing that flag.
func (e *SpeedEngine) Update(now time.Duration, s pulse.Sample, fresh bool) Reading {
	var r Reading

	if fresh {
		r.Pulses = s.Count - e.lastCount
		e.lastCount = s.Count
		e.lastPulse = s.Last
		e.seen = true

		// The first pulse after power-on has no interval; it only counts
		// for distance.
		if s.Interval >= MinPulseInterval {
			micros := float64(s.Interval.Microseconds())
			e.instant = e.circumferenceMM * 3600 / micros
			e.cadence = 60_000_000 / micros
			e.push(e.instant)
		}
	} else if e.seen && now-e.lastPulse >= StopTimeout && (e.instant != 0 || e.cadence != 0) {
		e.instant = 0
		e.cadence = 0
		e.clear()
		r.Stopped = true
	}

	r.Instant = e.instant
	r.Cadence = e.cadence
	r.Average = e.Average()
	return r
}

func (e *SpeedEngine) push(v float64) {
	e.buf[e.idx] = v
	e.idx++
	if e.idx == RollingSize {
		e.idx = 0
		e.wrapped = true
	}
}

func (e *SpeedEngine) clear() {
	e.buf = [RollingSize]float64{}
	e.idx = 0
	e.wrapped = false
}

// Average returns the mean of the populated ring slots.
func (e *SpeedEngine) Average() float64 {
	n := e.idx
	if e.wrapped {
		n = RollingSize
	}
	if n == 0 {
		return 0
	}
	var sum float64
	for i := 0; i < n; i++ {
		sum += e.buf[i]
	}
	return sum / float64(n)
}

// Instant returns the current instantaneous speed in km/h.
func (e *SpeedEngine) Instant() float64 {
	return e.instant
}
