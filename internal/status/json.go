package status

import (
	"encoding/json"
	"time"

	"github.com/sweeney/bike-computer/internal/logic"
)

// StatusJSON is the top-level JSON envelope for status output.
type StatusJSON struct {
	Status StatusInner `json:"status"`
}

// StatusInner contains the status details.
type StatusInner struct {
	Event         string     `json:"event,omitempty"`
	Reason        string     `json:"reason,omitempty"`
	Ready         bool       `json:"ready"`
	UptimeSeconds int64      `json:"uptime_seconds"`
	StartTime     string     `json:"start_time"`
	Timestamp     string     `json:"timestamp"`
	Ride          RideJSON   `json:"ride"`
	MQTT          MQTTStatus `json:"mqtt"`
	Counts        CountsJSON `json:"event_counts"`
	Config        ConfigJSON `json:"config"`
}

// RideJSON is the JSON representation of the ride state.
type RideJSON struct {
	Mode          string    `json:"mode"`
	Overlay       string    `json:"overlay,omitempty"`
	Pending       string    `json:"pending,omitempty"`
	Standby       bool      `json:"standby"`
	SpeedKmh      float64   `json:"speed_kmh"`
	AvgSpeedKmh   float64   `json:"avg_speed_kmh"`
	CadenceRPM    float64   `json:"cadence_rpm"`
	OdometerKm    float64   `json:"odometer_km"`
	RideSeconds   int64     `json:"ride_seconds"`
	WheelDiameter float64   `json:"wheel_diameter_in"`
	Pulses        uint32    `json:"pulses"`
	Rejected      uint32    `json:"rejected_edges"`
	Lock          *LockJSON `json:"lock,omitempty"`
	Trip          *TripJSON `json:"trip,omitempty"`
}

// LockJSON reports an engaged lock.
type LockJSON struct {
	Alarm        bool `json:"alarm"`
	AttemptsLeft int  `json:"attempts_left"`
}

// TripJSON is the JSON representation of a trip.
type TripJSON struct {
	AvgSpeedKmh float64 `json:"avg_speed_kmh"`
	MaxSpeedKmh float64 `json:"max_speed_kmh"`
	MinSpeedKmh float64 `json:"min_speed_kmh"`
	DistanceKm  float64 `json:"distance_km"`
	Seconds     int64   `json:"duration_seconds"`
	Start       string  `json:"start,omitempty"`
}

// MQTTStatus reports MQTT connection state.
type MQTTStatus struct {
	Connected bool   `json:"connected"`
	Broker    string `json:"broker"`
}

// CountsJSON is the JSON representation of event counts.
type CountsJSON struct {
	TripsStarted int `json:"trips_started"`
	TripsStopped int `json:"trips_stopped"`
	LocksArmed   int `json:"locks_armed"`
	WrongPINs    int `json:"wrong_pins"`
	Alarms       int `json:"alarms"`
	Exports      int `json:"exports"`
}

// ConfigJSON is the JSON representation of daemon config.
type ConfigJSON struct {
	TickMs      int64  `json:"tick_ms"`
	DebounceMs  int64  `json:"debounce_ms"`
	HeartbeatMs int64  `json:"heartbeat_ms"`
	StandbyMs   int64  `json:"standby_ms"`
	Broker      string `json:"broker"`
	HTTPAddr    string `json:"http_addr"`
	Storage     string `json:"storage"`
	Console     string `json:"console,omitempty"`
}

// FormatTrip converts a trip for JSON output. The minimum is reported as
// zero while no qualifying sample has been seen.
func FormatTrip(t logic.Trip) TripJSON {
	lowest := t.MinSpeed
	if lowest == logic.MinSpeedUnset {
		lowest = 0
	}
	out := TripJSON{
		AvgSpeedKmh: t.AvgSpeed,
		MaxSpeedKmh: t.MaxSpeed,
		MinSpeedKmh: lowest,
		DistanceKm:  t.DistanceKm,
		Seconds:     int64(t.Duration / time.Second),
	}
	if !t.Start.IsZero() {
		out.Start = t.Start.UTC().Format(time.RFC3339)
	}
	return out
}

func buildRide(r Ride) RideJSON {
	mode := string(r.Mode)
	if mode == "" {
		mode = "UNKNOWN"
	}
	out := RideJSON{
		Mode:          mode,
		Overlay:       string(r.Overlay),
		Standby:       r.Standby,
		SpeedKmh:      r.Speed.Instant,
		AvgSpeedKmh:   r.Speed.Average,
		CadenceRPM:    r.Speed.Cadence,
		OdometerKm:    r.Odometer.KM,
		RideSeconds:   int64(r.Odometer.RideTime / time.Second),
		WheelDiameter: r.WheelDiameter,
		Pulses:        r.Pulses,
		Rejected:      r.Rejected,
	}
	if r.Overlay == logic.OverlaySelect {
		out.Pending = string(r.Pending)
	}
	if r.Locked {
		out.Lock = &LockJSON{Alarm: r.Alarm, AttemptsLeft: r.AttemptsLeft}
	}
	if r.TripRunning {
		trip := FormatTrip(r.Trip)
		out.Trip = &trip
	}
	return out
}

func buildInner(snap Snapshot) StatusInner {
	return StatusInner{
		Ready:         snap.Ready,
		UptimeSeconds: int64(snap.Uptime().Truncate(time.Second).Seconds()),
		StartTime:     snap.StartTime.UTC().Format(time.RFC3339),
		Timestamp:     snap.Now.UTC().Format(time.RFC3339),
		Ride:          buildRide(snap.Ride),
		MQTT:          MQTTStatus{Connected: snap.MQTTConnected, Broker: snap.Config.Broker},
		Counts: CountsJSON{
			TripsStarted: snap.Counts.TripsStarted,
			TripsStopped: snap.Counts.TripsStopped,
			LocksArmed:   snap.Counts.LocksArmed,
			WrongPINs:    snap.Counts.WrongPINs,
			Alarms:       snap.Counts.Alarms,
			Exports:      snap.Counts.Exports,
		},
		Config: ConfigJSON{
			TickMs:      snap.Config.TickMs,
			DebounceMs:  snap.Config.DebounceMs,
			HeartbeatMs: snap.Config.HeartbeatMs,
			StandbyMs:   snap.Config.StandbyMs,
			Broker:      snap.Config.Broker,
			HTTPAddr:    snap.Config.HTTPAddr,
			Storage:     snap.Config.Storage,
			Console:     snap.Config.Console,
		},
	}
}

// FormatJSON returns the JSON status for the web endpoint (no event/reason).
func FormatJSON(snap Snapshot) []byte {
	data, _ := json.MarshalIndent(StatusJSON{Status: buildInner(snap)}, "", "  ")
	return data
}

// FormatStatusEvent returns the JSON status for an MQTT system event.
func FormatStatusEvent(snap Snapshot, event, reason string) []byte {
	inner := buildInner(snap)
	inner.Event = event
	inner.Reason = reason

	data, _ := json.Marshal(StatusJSON{Status: inner})
	return data
}
