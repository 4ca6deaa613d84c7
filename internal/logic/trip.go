package logic

import (
	"math"
	"time"
)

const (
	// NoiseFloor is the speed in km/h at or below which the bike is
	// considered stationary.
	NoiseFloor = 0.1

	// MinSpeedUnset marks a trip minimum that has not seen a qualifying
	// sample yet.
	MinSpeedUnset = 999.0

	// MaxTrips is the capacity of the stored trip log.
	MaxTrips = 10
)

// Trip is one recording session.
type Trip struct {
	AvgSpeed   float64 // km/h
	MaxSpeed   float64 // km/h
	MinSpeed   float64 // km/h, MinSpeedUnset until the first qualifying sample
	DistanceKm float64
	Duration   time.Duration
	// Start is the calendar time the trip began.
	Start time.Time
	// StartRef is the monotonic time the trip began.
	StartRef time.Duration
}

// Empty reports whether t looks like a never-used slot.
func (t Trip) Empty() bool {
	return t.DistanceKm == 0 && t.Duration == 0 && t.Start.IsZero()
}

// Odometer is the lifetime ride total.
type Odometer struct {
	KM       float64
	RideTime time.Duration
}

// Accumulator converts speed engine output into distance, trip statistics
// and active ride time.
type Accumulator struct {
	circumferenceMM float64

	odo   Odometer
	trip  Trip
	open  bool
	dirty bool

	rideRef    time.Duration
	rideRefSet bool
}

// NewAccumulator creates an accumulator starting from a persisted odometer.
func NewAccumulator(circumferenceMM float64, odo Odometer) *Accumulator {
	return &Accumulator{circumferenceMM: circumferenceMM, odo: odo}
}

// SetCircumference updates the wheel calibration.
func (a *Accumulator) SetCircumference(mm float64) {
	a.circumferenceMM = mm
}

// Update applies one tick of speed engine output.
func (a *Accumulator) Update(now time.Duration, r Reading) {
	if r.Pulses > 0 {
		d := a.circumferenceMM * float64(r.Pulses) / 1e6
		a.odo.KM += d
		a.dirty = true

		if a.open {
			a.trip.DistanceKm += d
			if r.Instant > a.trip.MaxSpeed {
				a.trip.MaxSpeed = r.Instant
			}
			if r.Instant > NoiseFloor && (a.trip.MinSpeed == MinSpeedUnset || r.Instant < a.trip.MinSpeed) {
				a.trip.MinSpeed = r.Instant
			}
		}
	}

	if r.Instant > NoiseFloor {
		if a.rideRefSet {
			a.odo.RideTime += now - a.rideRef
			a.dirty = true
		}
		a.rideRef = now
		a.rideRefSet = true
	} else {
		a.rideRefSet = false
	}

	if a.open {
		a.trip.Duration = now - a.trip.StartRef
	}
}

// StartTrip opens a new trip with zeroed statistics.
func (a *Accumulator) StartTrip(now time.Duration, start time.Time) {
	a.trip = Trip{
		MinSpeed: MinSpeedUnset,
		Start:    start,
		StartRef: now,
	}
	a.open = true
}

// StopTrip closes the active trip and returns it finalized.
// It returns false if no trip was open.
func (a *Accumulator) StopTrip(now time.Duration) (Trip, bool) {
	if !a.open {
		return Trip{}, false
	}
	a.open = false
	a.trip.Duration = now - a.trip.StartRef
	return Finalize(a.trip), true
}

// Finalize computes the average speed and normalizes an unset minimum.
// Durations are truncated to whole seconds, the stored resolution.
func Finalize(t Trip) Trip {
	t.Duration = t.Duration.Truncate(time.Second)
	if hours := t.Duration.Hours(); hours > 0 {
		t.AvgSpeed = t.DistanceKm / hours
	} else {
		t.AvgSpeed = 0
	}
	if t.MinSpeed == MinSpeedUnset || math.IsNaN(t.MinSpeed) {
		t.MinSpeed = 0
	}
	return t
}

// Trip returns the active trip and whether one is open.
func (a *Accumulator) Trip() (Trip, bool) {
	return a.trip, a.open
}

// Odometer returns the lifetime totals.
func (a *Accumulator) Odometer() Odometer {
	return a.odo
}

// Dirty reports whether the odometer changed since the last MarkSaved.
func (a *Accumulator) Dirty() bool {
	return a.dirty
}

// MarkSaved records that the current odometer has been persisted.
func (a *Accumulator) MarkSaved() {
	a.dirty = false
}

// Reset clears everything, including the odometer.
func (a *Accumulator) Reset() {
	*a = Accumulator{circumferenceMM: a.circumferenceMM}
}
