// Package status provides a thread-safe view of the ride state for the
// web server, the live feed and MQTT system events.
package status

import (
	"sync"
	"time"

	"github.com/sweeney/bike-computer/internal/logic"
)

// Config contains daemon configuration for display.
type Config struct {
	TickMs      int64
	DebounceMs  int64
	HeartbeatMs int64
	StandbyMs   int64
	Broker      string
	HTTPAddr    string
	Storage     string
	Console     string
}

// Ride is the state of the bike computer at one loop tick.
type Ride struct {
	Mode    logic.Mode
	Overlay logic.Overlay
	// Pending is the highlighted mode while the selection overlay is open.
	Pending logic.Mode
	Standby bool

	Speed         logic.Reading
	Trip          logic.Trip
	TripRunning   bool
	Odometer      logic.Odometer
	WheelDiameter float64

	Locked       bool
	Alarm        bool
	AttemptsLeft int

	Pulses   uint32
	Rejected uint32

	// TripLog is the stored trip log; TripIndex is the next slot to write.
	TripLog   [logic.MaxTrips]logic.Trip
	TripIndex int
}

// Snapshot is a point-in-time view of daemon state.
// It is a value type, safe to use after the lock is released.
type Snapshot struct {
	Ride          Ride
	Ready         bool
	Counts        logic.EventCounts
	StartTime     time.Time
	Now           time.Time
	MQTTConnected bool
	Config        Config

	// Seq increases on every Update.
	Seq uint64
}

// Uptime returns the duration since the daemon started.
func (s Snapshot) Uptime() time.Duration {
	return s.Now.Sub(s.StartTime)
}

// Tracker holds mutable daemon state behind an RWMutex.
type Tracker struct {
	mu   sync.RWMutex
	snap Snapshot
}

// NewTracker creates a Tracker with the given start time and config.
func NewTracker(startTime time.Time, cfg Config) *Tracker {
	return &Tracker{
		snap: Snapshot{
			StartTime: startTime,
			Config:    cfg,
		},
	}
}

// Update sets the ride state, button readiness and event counts.
// Called from runLoop on every tick.
func (t *Tracker) Update(ride Ride, ready bool, counts logic.EventCounts) {
	t.mu.Lock()
	t.snap.Ride = ride
	t.snap.Ready = ready
	t.snap.Counts = counts
	t.snap.Seq++
	t.mu.Unlock()
}

// SetMQTTConnected sets the MQTT connection status.
func (t *Tracker) SetMQTTConnected(connected bool) {
	t.mu.Lock()
	t.snap.MQTTConnected = connected
	t.mu.Unlock()
}

// Snapshot returns a point-in-time copy of the daemon state.
// The Now field is set to the current time at the moment of the call.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	s := t.snap
	t.mu.RUnlock()
	s.Now = time.Now()
	return s
}
