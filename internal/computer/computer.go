// Package computer owns the bike computer's application state and runs
// one engine step per main loop tick: pulse capture, speed, distance and
// trip accounting, the mode state machine and persistence.
package computer

import (
	"errors"
	"fmt"
	"io"
	"log"
	"time"

	"github.com/sweeney/bike-computer/internal/export"
	"github.com/sweeney/bike-computer/internal/logic"
	"github.com/sweeney/bike-computer/internal/pulse"
	"github.com/sweeney/bike-computer/internal/rtc"
	"github.com/sweeney/bike-computer/internal/status"
	"github.com/sweeney/bike-computer/internal/storage"
)

// Config holds settings that are not persisted on the device.
type Config struct {
	// StandbyTimeout is the idle time before standby; zero disables it.
	StandbyTimeout time.Duration
}

// Computer is the single application-state aggregate. It is not safe for
// concurrent use; only the pulse capture is shared with the edge handler.
type Computer struct {
	capture  *pulse.Capture
	engine   *logic.SpeedEngine
	acc      *logic.Accumulator
	machine  *logic.Machine
	autosave *logic.Autosaver
	store    *storage.Store
	clock    rtc.Clock

	wheel     float64
	trips     [logic.MaxTrips]logic.Trip
	tripIndex int

	reading     logic.Reading
	counts      logic.EventCounts
	initialized bool
}

// New loads persisted state from store and creates a computer at
// monotonic time now.
func New(now time.Duration, capture *pulse.Capture, store *storage.Store, clock rtc.Clock, cfg Config) (*Computer, error) {
	st, initialized, err := store.Load()
	if err != nil {
		return nil, fmt.Errorf("load storage: %w", err)
	}

	circ := logic.Circumference(st.WheelDiameter)
	return &Computer{
		capture:     capture,
		engine:      logic.NewSpeedEngine(circ),
		acc:         logic.NewAccumulator(circ, st.Odometer),
		machine:     logic.NewMachine(now, cfg.StandbyTimeout),
		autosave:    logic.NewAutosaver(now),
		store:       store,
		clock:       clock,
		wheel:       st.WheelDiameter,
		trips:       st.Trips,
		tripIndex:   st.TripIndex,
		initialized: initialized,
	}, nil
}

// Initialized reports whether storage was found blank or stale at startup
// and had to be written with defaults.
func (c *Computer) Initialized() bool {
	return c.initialized
}

// Step runs one loop tick at monotonic time now with the button presses
// detected since the previous tick. It returns the events raised, in
// order. A storage error does not stop the step; it is returned after
// all state has been updated and the failed save is retried later.
func (c *Computer) Step(now time.Duration, presses []logic.Button) ([]logic.Event, error) {
	s, fresh := c.capture.Take()
	c.reading = c.engine.Update(now, s, fresh)
	c.acc.Update(now, c.reading)

	events := c.machine.Process(logic.MachineInput{
		Now:     now,
		Presses: presses,
		Pulse:   fresh,
		PulseAt: s.Last,
	})

	var errs []error
	for i := range events {
		e := &events[i]
		e.Timestamp = c.clock.Now()

		switch e.Type {
		case logic.EventTripStart:
			c.acc.StartTrip(now, e.Timestamp)
		case logic.EventTripStop:
			trip, err := c.stopTrip(now)
			if err != nil {
				errs = append(errs, err)
			}
			e.Trip = &trip
		}
		c.counts.Add(*e)
	}

	moving := c.reading.Instant > logic.NoiseFloor
	if c.autosave.Due(now, moving, c.acc.Dirty()) {
		if err := c.saveOdometer(now); err != nil {
			errs = append(errs, err)
		}
	}

	return events, errors.Join(errs...)
}

// stopTrip finalizes the open trip into the current log slot and advances
// the cursor.
func (c *Computer) stopTrip(now time.Duration) (logic.Trip, error) {
	trip, ok := c.acc.StopTrip(now)
	if !ok {
		return logic.Trip{}, nil
	}

	slot := c.tripIndex
	next := (slot + 1) % logic.MaxTrips
	c.trips[slot] = trip
	c.tripIndex = next

	if err := c.store.SaveTrip(slot, trip, next); err != nil {
		return trip, err
	}
	return trip, c.saveOdometer(now)
}

func (c *Computer) saveOdometer(now time.Duration) error {
	if err := c.store.SaveOdometer(c.acc.Odometer()); err != nil {
		return err
	}
	c.acc.MarkSaved()
	c.autosave.Saved(now)
	return nil
}

// SetWheelDiameter changes the wheel calibration. The value is clamped to
// the plausible range and saved; the applied value is returned.
func (c *Computer) SetWheelDiameter(d float64) (float64, error) {
	d = logic.ClampWheelDiameter(d)
	if d == c.wheel {
		return d, nil
	}
	c.wheel = d
	circ := logic.Circumference(d)
	c.engine.SetCircumference(circ)
	c.acc.SetCircumference(circ)
	return d, c.store.SaveSettings(d)
}

// FactoryReset erases the odometer, the trip log and the calibration, and
// sets the clock to its fallback value.
func (c *Computer) FactoryReset(now time.Duration) error {
	st, err := c.store.FactoryReset()
	if err != nil {
		return fmt.Errorf("factory reset: %w", err)
	}

	circ := logic.Circumference(st.WheelDiameter)
	c.wheel = st.WheelDiameter
	c.trips = st.Trips
	c.tripIndex = st.TripIndex
	c.engine.SetCircumference(circ)
	c.acc.Reset()
	c.acc.SetCircumference(circ)
	c.machine.Reset(now)
	c.autosave = logic.NewAutosaver(now)

	if err := c.clock.Set(rtc.FallbackTime); err != nil {
		return fmt.Errorf("reset clock: %w", err)
	}
	log.Printf("computer: factory reset complete")
	return nil
}

// Shutdown saves the odometer if it changed. An open trip is not stored.
func (c *Computer) Shutdown(now time.Duration) error {
	if !c.acc.Dirty() {
		return nil
	}
	return c.saveOdometer(now)
}

// Export writes the stored trip log in the export format.
func (c *Computer) Export(w io.Writer) error {
	return export.Write(w, c.trips[:])
}

// Trips returns a copy of the stored trip log.
func (c *Computer) Trips() []logic.Trip {
	out := make([]logic.Trip, len(c.trips))
	copy(out, c.trips[:])
	return out
}

// Counts returns the ride events raised since startup.
func (c *Computer) Counts() logic.EventCounts {
	return c.counts
}

// Ride returns the current state for display.
func (c *Computer) Ride() status.Ride {
	overlay, pending := c.machine.Overlay()
	trip, open := c.acc.Trip()
	sample := c.capture.Peek()

	r := status.Ride{
		Mode:          c.machine.Mode(),
		Overlay:       overlay,
		Pending:       pending,
		Standby:       c.machine.Standby(),
		Speed:         c.reading,
		Trip:          trip,
		TripRunning:   open,
		Odometer:      c.acc.Odometer(),
		WheelDiameter: c.wheel,
		Pulses:        sample.Count,
		Rejected:      c.capture.Rejected(),
		TripLog:       c.trips,
		TripIndex:     c.tripIndex,
	}
	if sec, ok := c.machine.Security(); ok {
		r.Locked = true
		r.Alarm = sec.Alarm
		r.AttemptsLeft = sec.AttemptsLeft
	}
	return r
}
