package logic

import (
	"math"
	"testing"
	"time"

	"github.com/sweeney/bike-computer/internal/pulse"
)

const tolerance = 1e-9

func approxEqual(a, b float64) bool {
	return math.Abs(a-b) <= tolerance*math.Max(1, math.Abs(b))
}

// feed drives engine with n pulses spaced interval apart, starting after
// start, one pulse per tick. It returns the last reading and the time of
// the last pulse.
func feed(e *SpeedEngine, c *pulse.Capture, start, interval time.Duration, n int) (Reading, time.Duration) {
	var r Reading
	ts := start
	for i := 0; i < n; i++ {
		ts += interval
		c.Edge(ts)
		s, fresh := c.Take()
		r = e.Update(ts, s, fresh)
	}
	return r, ts
}

func TestCircumference(t *testing.T) {
	got := Circumference(26)
	want := 26 * 25.4 * math.Pi
	if !approxEqual(got, want) {
		t.Errorf("Circumference(26) = %v, want %v", got, want)
	}
}

func TestClampWheelDiameter(t *testing.T) {
	tests := []struct {
		in, want float64
	}{
		{26, 26},
		{28.5, 28.5},
		{5, MinWheelDiameter},
		{100, MaxWheelDiameter},
		{math.NaN(), DefaultWheelDiameter},
	}
	for _, tt := range tests {
		if got := ClampWheelDiameter(tt.in); got != tt.want {
			t.Errorf("ClampWheelDiameter(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestFirstPulseOnlyCountsDistance(t *testing.T) {
	e := NewSpeedEngine(Circumference(26))
	c := pulse.NewCapture()

	c.Edge(time.Second)
	s, fresh := c.Take()
	r := e.Update(time.Second, s, fresh)

	if r.Pulses != 1 {
		t.Errorf("pulses: got %d, want 1", r.Pulses)
	}
	if r.Instant != 0 || r.Cadence != 0 {
		t.Errorf("expected no speed on first pulse, got speed=%v cadence=%v", r.Instant, r.Cadence)
	}
	if r.Average != 0 {
		t.Errorf("expected empty rolling average, got %v", r.Average)
	}
}

func TestSpeedFormula(t *testing.T) {
	circ := Circumference(26)
	intervals := []time.Duration{
		5 * time.Millisecond,
		37 * time.Millisecond,
		250 * time.Millisecond,
		999 * time.Millisecond,
		2900 * time.Millisecond,
	}

	for _, iv := range intervals {
		t.Run(iv.String(), func(t *testing.T) {
			e := NewSpeedEngine(circ)
			e.Update(time.Second, pulse.Sample{Count: 1, Last: time.Second}, true)

			s := pulse.Sample{Count: 2, Last: time.Second + iv, Interval: iv}
			r := e.Update(time.Second+iv, s, true)

			micros := float64(iv.Microseconds())
			if want := circ * 3600 / micros; !approxEqual(r.Instant, want) {
				t.Errorf("speed: got %v, want %v", r.Instant, want)
			}
			if want := 60_000_000 / micros; !approxEqual(r.Cadence, want) {
				t.Errorf("cadence: got %v, want %v", r.Cadence, want)
			}
		})
	}
}

func TestIntervalBelowMinimumSkipsSpeed(t *testing.T) {
	e := NewSpeedEngine(Circumference(26))
	e.Update(time.Second, pulse.Sample{Count: 1, Last: time.Second}, true)

	r := e.Update(time.Second, pulse.Sample{Count: 2, Last: time.Second + 4*time.Millisecond, Interval: 4 * time.Millisecond}, true)
	if r.Instant != 0 {
		t.Errorf("expected no speed sample for 4ms interval, got %v", r.Instant)
	}
	if r.Pulses != 1 {
		t.Errorf("pulse must still count for distance, got %d", r.Pulses)
	}
}

func TestRollingAverageBeforeWrap(t *testing.T) {
	e := NewSpeedEngine(1000) // 1 m wheel keeps the numbers readable
	e.Update(0, pulse.Sample{Count: 1, Last: 0}, true)

	// 1000 mm per 360 ms = 10 km/h, per 180 ms = 20 km/h
	e.Update(0, pulse.Sample{Count: 2, Last: 360 * time.Millisecond, Interval: 360 * time.Millisecond}, true)
	r := e.Update(0, pulse.Sample{Count: 3, Last: 540 * time.Millisecond, Interval: 180 * time.Millisecond}, true)

	if !approxEqual(r.Average, 15) {
		t.Errorf("average of two samples: got %v, want 15", r.Average)
	}
}

func TestRollingAverageAfterWrap(t *testing.T) {
	e := NewSpeedEngine(1000)
	e.Update(0, pulse.Sample{Count: 1}, true)

	// Feed RollingSize+3 samples with distinct intervals.
	var speeds []float64
	var r Reading
	last := time.Duration(0)
	for i := 0; i < RollingSize+3; i++ {
		iv := time.Duration(100+20*i) * time.Millisecond
		last += iv
		r = e.Update(last, pulse.Sample{Count: uint32(i + 2), Last: last, Interval: iv}, true)
		speeds = append(speeds, 1000*3600/float64(iv.Microseconds()))
	}

	var sum float64
	for _, v := range speeds[len(speeds)-RollingSize:] {
		sum += v
	}
	if want := sum / RollingSize; !approxEqual(r.Average, want) {
		t.Errorf("average after wrap: got %v, want %v", r.Average, want)
	}
}

func TestCoastToStop(t *testing.T) {
	e := NewSpeedEngine(Circumference(26))
	c := pulse.NewCapture()
	_, last := feed(e, c, 0, 300*time.Millisecond, 5)

	if e.Instant() == 0 {
		t.Fatal("setup: expected non-zero speed while pedalling")
	}

	// Just under the timeout: speed holds.
	s, fresh := c.Take()
	r := e.Update(last+StopTimeout-time.Millisecond, s, fresh)
	if r.Instant == 0 || r.Stopped {
		t.Fatalf("speed decayed early: %+v", r)
	}

	r = e.Update(last+StopTimeout, s, false)
	if !r.Stopped {
		t.Error("expected Stopped at timeout")
	}
	if r.Instant != 0 || r.Cadence != 0 || r.Average != 0 {
		t.Errorf("expected zeroed reading, got %+v", r)
	}

	// Only reported once.
	r = e.Update(last+StopTimeout+time.Second, s, false)
	if r.Stopped {
		t.Error("Stopped should only be reported on the transition tick")
	}
}

func TestMultiplePulsesBetweenTicks(t *testing.T) {
	e := NewSpeedEngine(Circumference(26))
	c := pulse.NewCapture()

	c.Edge(100 * time.Millisecond)
	c.Edge(300 * time.Millisecond)
	c.Edge(500 * time.Millisecond)
	s, fresh := c.Take()
	r := e.Update(500*time.Millisecond, s, fresh)

	if r.Pulses != 3 {
		t.Errorf("pulses: got %d, want 3", r.Pulses)
	}
	if want := Circumference(26) * 3600 / 200_000; !approxEqual(r.Instant, want) {
		t.Errorf("speed: got %v, want %v", r.Instant, want)
	}
}
