package computer

import (
	"bytes"
	"errors"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/sweeney/bike-computer/internal/export"
	"github.com/sweeney/bike-computer/internal/logic"
	"github.com/sweeney/bike-computer/internal/pulse"
	"github.com/sweeney/bike-computer/internal/rtc"
	"github.com/sweeney/bike-computer/internal/storage"
)

const tickInterval = 100 * time.Millisecond

var rideStart = time.Date(2026, 6, 14, 7, 45, 0, 0, time.UTC)

// rig drives a Computer the way the main loop does.
type rig struct {
	t       *testing.T
	c       *Computer
	capture *pulse.Capture
	dev     *storage.MemDevice
	clock   *rtc.FakeClock
	now     time.Duration
	events  []logic.Event
}

func newRig(t *testing.T, dev *storage.MemDevice) *rig {
	t.Helper()
	if dev == nil {
		dev = storage.NewMemDevice(storage.Size)
	}
	store, err := storage.New(dev)
	if err != nil {
		t.Fatal(err)
	}
	r := &rig{
		t:       t,
		capture: pulse.NewCapture(),
		dev:     dev,
		clock:   rtc.NewFakeClock(rideStart),
		now:     time.Second,
	}
	r.c, err = New(r.now, r.capture, store, r.clock, Config{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return r
}

func (r *rig) step(presses ...logic.Button) []logic.Event {
	r.t.Helper()
	events, err := r.c.Step(r.now, presses)
	if err != nil {
		r.t.Fatalf("Step at %v: %v", r.now, err)
	}
	r.events = append(r.events, events...)
	return events
}

// press registers each button on its own tick.
func (r *rig) press(buttons ...logic.Button) []logic.Event {
	r.t.Helper()
	var out []logic.Event
	for _, b := range buttons {
		r.now += tickInterval
		out = append(out, r.step(b)...)
	}
	return out
}

// pedal produces n wheel pulses spaced interval apart, stepping once per
// pulse.
func (r *rig) pedal(n int, interval time.Duration) {
	r.t.Helper()
	for i := 0; i < n; i++ {
		r.now += interval
		r.capture.Edge(r.now)
		r.step()
	}
}

// idle steps without input for d.
func (r *rig) idle(d time.Duration) {
	r.t.Helper()
	end := r.now + d
	for r.now < end {
		r.now += tickInterval
		r.step()
	}
}

func (r *rig) startTrip() {
	r.t.Helper()
	r.press(logic.ButtonMode, logic.ButtonConfirm, logic.ButtonConfirm)
	if !r.c.Ride().TripRunning {
		r.t.Fatal("trip did not start")
	}
}

func (r *rig) stopTrip() logic.Trip {
	r.t.Helper()
	events := r.press(logic.ButtonConfirm, logic.ButtonConfirm)
	for _, e := range events {
		if e.Type == logic.EventTripStop {
			return *e.Trip
		}
	}
	r.t.Fatalf("no TRIP_STOP event in %v", events)
	return logic.Trip{}
}

func (r *rig) reload() storage.State {
	r.t.Helper()
	store, err := storage.New(r.dev)
	if err != nil {
		r.t.Fatal(err)
	}
	st, _, err := store.Load()
	if err != nil {
		r.t.Fatal(err)
	}
	return st
}

func wheelKM(pulses int) float64 {
	return logic.Circumference(logic.DefaultWheelDiameter) * float64(pulses) / 1e6
}

func approx(a, b, tol float64) bool {
	return math.Abs(a-b) <= tol
}

func TestFreshStorage(t *testing.T) {
	r := newRig(t, nil)
	if !r.c.Initialized() {
		t.Error("blank device should be initialized")
	}

	ride := r.c.Ride()
	if ride.WheelDiameter != 26.0 {
		t.Errorf("wheel: got %v, want 26", ride.WheelDiameter)
	}
	if ride.Odometer.KM != 0 {
		t.Errorf("odometer: got %v", ride.Odometer.KM)
	}
	for i, trip := range ride.TripLog {
		if !trip.Empty() {
			t.Errorf("slot %d not empty: %+v", i, trip)
		}
	}
	if ride.Mode != logic.ModeNormal {
		t.Errorf("mode: got %v", ride.Mode)
	}

	var buf bytes.Buffer
	if err := r.c.Export(&buf); err != nil {
		t.Fatal(err)
	}
	if want := export.StartLine + "\n" + export.Header + "\n" + export.EndLine + "\n"; buf.String() != want {
		t.Errorf("export of empty log:\n%s", buf.String())
	}
}

func TestOdometerAcrossTripCycles(t *testing.T) {
	r := newRig(t, nil)

	total := 0
	for cycle := 0; cycle < 3; cycle++ {
		r.pedal(15, 250*time.Millisecond)
		r.startTrip()
		r.pedal(40, 200*time.Millisecond)
		r.idle(4 * time.Second)
		trip := r.stopTrip()
		total += 55

		if !approx(trip.DistanceKm, wheelKM(40), 1e-9) {
			t.Errorf("cycle %d: trip distance %v, want %v", cycle, trip.DistanceKm, wheelKM(40))
		}
	}

	if got := r.c.Ride().Odometer.KM; !approx(got, wheelKM(total), 1e-9) {
		t.Errorf("odometer: got %v, want %v", got, wheelKM(total))
	}

	st := r.reload()
	if !approx(st.Odometer.KM, wheelKM(total), 1e-4) {
		t.Errorf("stored odometer: got %v, want %v", st.Odometer.KM, wheelKM(total))
	}
	if st.TripIndex != 3 {
		t.Errorf("trip index: got %d, want 3", st.TripIndex)
	}
}

func TestTripStopPersists(t *testing.T) {
	r := newRig(t, nil)

	r.startTrip()
	r.pedal(50, 200*time.Millisecond)
	r.clock.Advance(10 * time.Minute)
	trip := r.stopTrip()

	if trip.MinSpeed == logic.MinSpeedUnset || trip.MinSpeed <= 0 {
		t.Errorf("min speed not set: %v", trip.MinSpeed)
	}
	if trip.MaxSpeed < trip.MinSpeed {
		t.Errorf("max %v below min %v", trip.MaxSpeed, trip.MinSpeed)
	}
	if !trip.Start.Equal(rideStart) {
		t.Errorf("start: got %v, want %v", trip.Start, rideStart)
	}
	if trip.Duration%time.Second != 0 || trip.Duration < 10*time.Second {
		t.Errorf("duration: got %v", trip.Duration)
	}

	st := r.reload()
	if st.TripIndex != 1 {
		t.Errorf("trip index: got %d, want 1", st.TripIndex)
	}
	got := st.Trips[0]
	if got.Duration != trip.Duration || !got.Start.Equal(trip.Start) {
		t.Errorf("stored trip: %+v, want %+v", got, trip)
	}
	if float32(got.DistanceKm) != float32(trip.DistanceKm) || float32(got.AvgSpeed) != float32(trip.AvgSpeed) {
		t.Errorf("stored values differ: %+v vs %+v", got, trip)
	}
}

func TestTripWithoutMovement(t *testing.T) {
	r := newRig(t, nil)
	r.startTrip()
	r.idle(2 * time.Second)
	trip := r.stopTrip()

	if trip.MinSpeed != 0 || trip.AvgSpeed != 0 || trip.DistanceKm != 0 {
		t.Errorf("idle trip: %+v", trip)
	}
}

func TestTripLogWraps(t *testing.T) {
	r := newRig(t, nil)

	for i := 0; i <= logic.MaxTrips; i++ {
		r.startTrip()
		r.pedal(i+2, 200*time.Millisecond)
		r.stopTrip()
	}

	ride := r.c.Ride()
	if ride.TripIndex != 1 {
		t.Errorf("trip index: got %d, want 1", ride.TripIndex)
	}
	// Slot 0 now holds the eleventh trip
	if !approx(ride.TripLog[0].DistanceKm, wheelKM(logic.MaxTrips+2), 1e-9) {
		t.Errorf("slot 0 distance: got %v", ride.TripLog[0].DistanceKm)
	}
	if st := r.reload(); st.TripIndex != 1 {
		t.Errorf("stored trip index: got %d", st.TripIndex)
	}
}

func TestAutosaveWhenStopped(t *testing.T) {
	r := newRig(t, nil)

	r.pedal(20, 100*time.Millisecond)
	if st := r.reload(); st.Odometer.KM != 0 {
		t.Fatalf("odometer saved while moving before the interval: %v", st.Odometer.KM)
	}

	// Coast to a stop, then wait out the stationary delay
	r.idle(logic.StopTimeout + logic.StationarySaveDelay + time.Second)

	st := r.reload()
	if !approx(st.Odometer.KM, wheelKM(20), 1e-4) {
		t.Errorf("stored odometer: got %v, want %v", st.Odometer.KM, wheelKM(20))
	}
	if st.Odometer.RideTime <= 0 {
		t.Error("ride time not saved")
	}

	// Nothing changed, nothing written
	written := r.c.store.BytesWritten()
	r.idle(time.Minute)
	if r.c.store.BytesWritten() != written {
		t.Error("autosave wrote unchanged data")
	}
}

func TestAutosaveWhileMoving(t *testing.T) {
	r := newRig(t, nil)

	r.pedal(100, 250*time.Millisecond) // 25 s
	if st := r.reload(); st.Odometer.KM != 0 {
		t.Fatal("saved too early")
	}
	r.pedal(30, 250*time.Millisecond) // past 30 s
	if st := r.reload(); st.Odometer.KM == 0 {
		t.Error("no save after the moving interval")
	}
}

func TestStorageErrorsAreRetried(t *testing.T) {
	r := newRig(t, nil)
	r.pedal(10, 100*time.Millisecond)

	r.dev.WriteError = errors.New("i2c nack")
	var failed bool
	for i := 0; i < 100; i++ {
		r.now += tickInterval
		if _, err := r.c.Step(r.now, nil); err != nil {
			failed = true
		}
	}
	if !failed {
		t.Fatal("expected a failed autosave")
	}

	r.dev.WriteError = nil
	r.idle(time.Second)
	if st := r.reload(); !approx(st.Odometer.KM, wheelKM(10), 1e-4) {
		t.Errorf("odometer not saved after recovery: %v", st.Odometer.KM)
	}
}

func TestSetWheelDiameter(t *testing.T) {
	r := newRig(t, nil)

	got, err := r.c.SetWheelDiameter(40)
	if err != nil {
		t.Fatal(err)
	}
	if got != logic.MaxWheelDiameter {
		t.Errorf("clamped: got %v, want %v", got, logic.MaxWheelDiameter)
	}
	if st := r.reload(); st.WheelDiameter != logic.MaxWheelDiameter {
		t.Errorf("stored wheel: got %v", st.WheelDiameter)
	}

	if _, err := r.c.SetWheelDiameter(28); err != nil {
		t.Fatal(err)
	}
	r.pedal(10, 200*time.Millisecond)
	want := logic.Circumference(28) * 10 / 1e6
	if got := r.c.Ride().Odometer.KM; !approx(got, want, 1e-9) {
		t.Errorf("odometer with new wheel: got %v, want %v", got, want)
	}
}

func TestFactoryReset(t *testing.T) {
	r := newRig(t, nil)
	r.c.SetWheelDiameter(29)
	r.startTrip()
	r.pedal(30, 200*time.Millisecond)
	r.stopTrip()

	if err := r.c.FactoryReset(r.now); err != nil {
		t.Fatal(err)
	}
	if got := r.clock.Now(); !got.Equal(rtc.FallbackTime) {
		t.Errorf("clock: got %v, want fallback", got)
	}

	ride := r.c.Ride()
	if ride.Odometer.KM != 0 || ride.WheelDiameter != logic.DefaultWheelDiameter || ride.TripIndex != 0 {
		t.Errorf("after reset: odometer %v wheel %v index %d", ride.Odometer.KM, ride.WheelDiameter, ride.TripIndex)
	}
	st := r.reload()
	if st.Odometer.KM != 0 || !st.Trips[0].Empty() {
		t.Errorf("storage not reset: %+v", st)
	}
}

func TestExportEvent(t *testing.T) {
	r := newRig(t, nil)
	events := r.press(logic.ButtonConfirm)
	if len(events) != 1 || events[0].Type != logic.EventExport {
		t.Fatalf("events: %+v", events)
	}
	if !events[0].Timestamp.Equal(rideStart) {
		t.Errorf("timestamp: got %v", events[0].Timestamp)
	}
	if r.c.Counts().Exports != 1 {
		t.Errorf("export count: %d", r.c.Counts().Exports)
	}
}

func TestLockAlarmOnMovement(t *testing.T) {
	r := newRig(t, nil)
	r.press(logic.ButtonMode, logic.ButtonMode, logic.ButtonConfirm)
	r.press(logic.ButtonUp, logic.ButtonUp, logic.ButtonDown, logic.ButtonDown)

	ride := r.c.Ride()
	if !ride.Locked || ride.Mode != logic.ModeLock {
		t.Fatalf("not locked: %+v", ride)
	}

	r.pedal(3, 500*time.Millisecond) // within grace
	if r.c.Ride().Alarm {
		t.Fatal("alarm within grace period")
	}
	r.pedal(2, 600*time.Millisecond)
	if !r.c.Ride().Alarm {
		t.Error("movement after grace should raise the alarm")
	}

	r.press(logic.ButtonUp, logic.ButtonUp, logic.ButtonDown, logic.ButtonDown)
	ride = r.c.Ride()
	if ride.Locked || ride.Mode != logic.ModeNormal {
		t.Errorf("correct PIN should unlock: %+v", ride.Mode)
	}
	if r.c.Counts().Alarms != 1 {
		t.Errorf("alarm count: %d", r.c.Counts().Alarms)
	}
}

func TestShutdownSavesOdometer(t *testing.T) {
	r := newRig(t, nil)
	r.pedal(5, 200*time.Millisecond)
	if err := r.c.Shutdown(r.now); err != nil {
		t.Fatal(err)
	}
	if st := r.reload(); !approx(st.Odometer.KM, wheelKM(5), 1e-4) {
		t.Errorf("odometer after shutdown: %v", st.Odometer.KM)
	}
}

func TestRideReportsTripLog(t *testing.T) {
	r := newRig(t, nil)
	r.startTrip()
	r.pedal(10, 200*time.Millisecond)
	r.stopTrip()

	var buf bytes.Buffer
	if err := r.c.Export(&buf); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "\n0,") {
		t.Errorf("export missing slot 0:\n%s", buf.String())
	}
	if got := len(r.c.Trips()); got != logic.MaxTrips {
		t.Errorf("Trips: got %d slots", got)
	}
}
