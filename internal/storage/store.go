// Package storage persists calibration, the odometer and the trip log in
// a small non-volatile memory with a fixed binary layout.
//
// Writes are narrow (settings, odometer, or one trip plus the cursor) and
// skip bytes that already hold the desired value. The magic marker is the
// last thing written on initialization and the first thing invalidated on
// factory reset, so an interrupted initialization is detected on the next
// boot.
package storage

import (
	"errors"
	"fmt"
	"log"
	"math"
	"time"

	"github.com/sweeney/bike-computer/internal/logic"
)

// ErrShortDevice is returned when a device cannot hold the layout.
var ErrShortDevice = errors.New("storage device too small")

// ErrBadSlot is returned for a trip slot outside the log.
var ErrBadSlot = errors.New("trip slot out of range")

// State is everything held in storage.
type State struct {
	WheelDiameter float64 // inches
	Odometer      logic.Odometer
	TripIndex     int
	Trips         [logic.MaxTrips]logic.Trip
}

// DefaultState is the content of a freshly initialized device.
func DefaultState() State {
	return State{WheelDiameter: logic.DefaultWheelDiameter}
}

// Store reads and writes State on a Device.
type Store struct {
	dev Device

	// bytes actually written to the device
	written int
}

// New creates a store on dev.
func New(dev Device) (*Store, error) {
	if dev.Size() < Size {
		return nil, fmt.Errorf("device has %d bytes, need %d: %w", dev.Size(), Size, ErrShortDevice)
	}
	return &Store{dev: dev}, nil
}

// Load reads the stored state. If the marker is missing or stale the
// device is initialized with defaults and initialized is true.
// Corrupted values are replaced with safe defaults.
func (s *Store) Load() (st State, initialized bool, err error) {
	buf := make([]byte, Size)
	if _, err := s.dev.ReadAt(buf, 0); err != nil {
		return State{}, false, fmt.Errorf("read storage: %w", err)
	}

	if le.Uint16(buf[offMagic:]) != Magic {
		log.Printf("storage: marker mismatch, writing defaults")
		st = DefaultState()
		if err := s.writeAll(st); err != nil {
			return State{}, false, err
		}
		return st, true, nil
	}

	var badSettings, badOdometer, badIndex bool
	var badTrips []int

	st.WheelDiameter = getFloat(buf[offWheel:])
	if !validWheel(st.WheelDiameter) {
		log.Printf("storage: invalid wheel diameter %v, using default", st.WheelDiameter)
		st.WheelDiameter = logic.DefaultWheelDiameter
		badSettings = true
	}

	st.Odometer.KM = getFloat(buf[offOdometer:])
	if !validOdometer(st.Odometer.KM) {
		log.Printf("storage: invalid odometer %v, resetting", st.Odometer.KM)
		st.Odometer.KM = 0
		badOdometer = true
	}
	st.Odometer.RideTime = time.Duration(le.Uint32(buf[offRideTime:])) * time.Millisecond

	st.TripIndex = int(buf[offTripIndex])
	if st.TripIndex >= logic.MaxTrips {
		log.Printf("storage: invalid trip index %d, resetting", st.TripIndex)
		st.TripIndex = 0
		badIndex = true
	}

	for i := range st.Trips {
		off := tripOffset(i)
		t, ok := sanitizeTrip(decodeTrip(buf[off : off+TripRecordSize]))
		st.Trips[i] = t
		if !ok {
			badTrips = append(badTrips, i)
		}
	}

	// Repaired values go back to the device so the next boot loads them
	// cleanly. A failed write is retried by the next save of that field.
	if badSettings {
		if err := s.SaveSettings(st.WheelDiameter); err != nil {
			log.Printf("storage: rewrite settings: %v", err)
		}
	}
	if badOdometer {
		if err := s.SaveOdometer(st.Odometer); err != nil {
			log.Printf("storage: rewrite odometer: %v", err)
		}
	}
	for _, i := range badTrips {
		if err := s.update(tripOffset(i), encodeTrip(st.Trips[i])); err != nil {
			log.Printf("storage: rewrite trip %d: %v", i, err)
		}
	}
	if badIndex {
		if err := s.update(offTripIndex, []byte{byte(st.TripIndex)}); err != nil {
			log.Printf("storage: rewrite trip index: %v", err)
		}
	}

	return st, false, nil
}

func validWheel(d float64) bool {
	return !math.IsNaN(d) && d >= logic.MinWheelDiameter && d <= logic.MaxWheelDiameter
}

func validOdometer(km float64) bool {
	return !math.IsNaN(km) && km >= 0 && km <= MaxOdometerKM
}

// sanitizeTrip zeroes implausible statistics. ok is false if anything
// was replaced.
func sanitizeTrip(t logic.Trip) (_ logic.Trip, ok bool) {
	ok = true
	for _, f := range []*float64{&t.AvgSpeed, &t.MaxSpeed, &t.MinSpeed, &t.DistanceKm} {
		if math.IsNaN(*f) || math.IsInf(*f, 0) || *f < 0 {
			*f = 0
			ok = false
		}
	}
	if t.MinSpeed == logic.MinSpeedUnset {
		t.MinSpeed = 0
		ok = false
	}
	return t, ok
}

// writeAll writes st to every field, marker last.
func (s *Store) writeAll(st State) error {
	if err := s.SaveSettings(st.WheelDiameter); err != nil {
		return err
	}
	if err := s.SaveOdometer(st.Odometer); err != nil {
		return err
	}
	for i, t := range st.Trips {
		if err := s.update(tripOffset(i), encodeTrip(t)); err != nil {
			return fmt.Errorf("write trip %d: %w", i, err)
		}
	}
	if err := s.update(offTripIndex, []byte{byte(st.TripIndex)}); err != nil {
		return fmt.Errorf("write trip index: %w", err)
	}
	return s.writeMagic(Magic)
}

func (s *Store) writeMagic(v uint16) error {
	b := make([]byte, 2)
	le.PutUint16(b, v)
	if err := s.update(offMagic, b); err != nil {
		return fmt.Errorf("write marker: %w", err)
	}
	return nil
}

// SaveSettings writes the wheel calibration.
func (s *Store) SaveSettings(wheelDiameter float64) error {
	b := make([]byte, 4)
	putFloat(b, wheelDiameter)
	if err := s.update(offWheel, b); err != nil {
		return fmt.Errorf("save settings: %w", err)
	}
	return nil
}

// SaveOdometer writes the odometer and total ride time.
func (s *Store) SaveOdometer(odo logic.Odometer) error {
	b := make([]byte, offTripIndex-offOdometer)
	putFloat(b[0:], odo.KM)
	le.PutUint32(b[4:], uint32(odo.RideTime/time.Millisecond))
	if err := s.update(offOdometer, b); err != nil {
		return fmt.Errorf("save odometer: %w", err)
	}
	return nil
}

// SaveTrip writes t into slot and then moves the trip cursor to next.
func (s *Store) SaveTrip(slot int, t logic.Trip, next int) error {
	if slot < 0 || slot >= logic.MaxTrips || next < 0 || next >= logic.MaxTrips {
		return fmt.Errorf("save trip %d (next %d): %w", slot, next, ErrBadSlot)
	}
	if err := s.update(tripOffset(slot), encodeTrip(t)); err != nil {
		return fmt.Errorf("save trip %d: %w", slot, err)
	}
	if err := s.update(offTripIndex, []byte{byte(next)}); err != nil {
		return fmt.Errorf("save trip index: %w", err)
	}
	return nil
}

// FactoryReset invalidates the marker, then rewrites every field with
// defaults and writes the marker again.
func (s *Store) FactoryReset() (State, error) {
	if err := s.writeMagic(^Magic); err != nil {
		return State{}, err
	}
	st := DefaultState()
	if err := s.writeAll(st); err != nil {
		return State{}, err
	}
	return st, nil
}

// BytesWritten returns how many bytes this store has written.
func (s *Store) BytesWritten() int {
	return s.written
}

// update writes data at off, skipping bytes that already match. Each run
// of differing bytes is written with one WriteAt.
func (s *Store) update(off int64, data []byte) error {
	cur := make([]byte, len(data))
	if _, err := s.dev.ReadAt(cur, off); err != nil {
		return fmt.Errorf("read at %d: %w", off, err)
	}

	for i := 0; i < len(data); {
		if cur[i] == data[i] {
			i++
			continue
		}
		j := i
		for j < len(data) && cur[j] != data[j] {
			j++
		}
		if _, err := s.dev.WriteAt(data[i:j], off+int64(i)); err != nil {
			return fmt.Errorf("write at %d: %w", off+int64(i), err)
		}
		s.written += j - i
		i = j
	}
	return nil
}
