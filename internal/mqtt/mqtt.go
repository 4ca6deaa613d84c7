// Package mqtt publishes ride events to the display bus, a broker running
// on the device itself that the display and buzzer processes subscribe to.
package mqtt

import (
	"encoding/json"
	"time"

	"github.com/sweeney/bike-computer/internal/logic"
)

// Topic is the MQTT topic for ride events.
const Topic = "bike/computer/events"

// TopicSystem is the MQTT topic for system lifecycle events.
const TopicSystem = "bike/computer/system"

// Publisher publishes events to MQTT.
type Publisher interface {
	// Publish sends a ride event to the broker.
	// Returns error if publishing fails (should not crash the process).
	Publish(event logic.Event) error

	// PublishSystem sends a system lifecycle event to the broker.
	PublishSystem(event SystemEvent) error

	// Close disconnects from the broker.
	Close() error
}

// ConnectionStatus reports whether the MQTT connection is active.
type ConnectionStatus interface {
	IsConnected() bool
}

// SystemEvent represents a system lifecycle event (e.g., startup, shutdown, heartbeat).
type SystemEvent struct {
	Timestamp  time.Time
	Event      string // e.g., "STARTUP", "SHUTDOWN", "HEARTBEAT"
	Reason     string // e.g., "SIGTERM", "SIGINT" (shutdown only)
	RawPayload []byte // Pre-formatted JSON payload; if set, FormatSystemPayload returns it directly
	Retained   bool   // Whether the message should be retained by the broker
}

// Payload represents the MQTT message payload structure.
type Payload struct {
	Ride RidePayload `json:"ride"`
}

// RidePayload contains the ride event details.
type RidePayload struct {
	Timestamp    string       `json:"timestamp"`
	Event        string       `json:"event"`
	Mode         string       `json:"mode"`
	AttemptsLeft *int         `json:"attempts_left,omitempty"`
	Message      string       `json:"message,omitempty"`
	Trip         *TripPayload `json:"trip,omitempty"`
}

// TripPayload is a finished trip.
type TripPayload struct {
	AvgSpeedKmh float64 `json:"avg_speed_kmh"`
	MaxSpeedKmh float64 `json:"max_speed_kmh"`
	MinSpeedKmh float64 `json:"min_speed_kmh"`
	DistanceKm  float64 `json:"distance_km"`
	Seconds     int64   `json:"duration_seconds"`
	Start       string  `json:"start,omitempty"`
}

// FormatPayload creates the JSON payload for a ride event. Lock events
// carry the remaining PIN attempts; TRIP_STOP carries the finished trip.
func FormatPayload(event logic.Event) ([]byte, error) {
	p := RidePayload{
		Timestamp: event.Timestamp.UTC().Format(time.RFC3339),
		Event:     string(event.Type),
		Mode:      string(event.Mode),
		Message:   event.Message,
	}

	switch event.Type {
	case logic.EventLockArmed, logic.EventWrongPIN, logic.EventAlarm:
		attempts := event.AttemptsLeft
		p.AttemptsLeft = &attempts
	}

	if t := event.Trip; t != nil {
		p.Trip = &TripPayload{
			AvgSpeedKmh: t.AvgSpeed,
			MaxSpeedKmh: t.MaxSpeed,
			MinSpeedKmh: t.MinSpeed,
			DistanceKm:  t.DistanceKm,
			Seconds:     int64(t.Duration / time.Second),
		}
		if !t.Start.IsZero() {
			p.Trip.Start = t.Start.UTC().Format(time.RFC3339)
		}
	}

	return json.Marshal(Payload{Ride: p})
}

// SystemPayload represents the MQTT message payload for system events.
// Used for simple events (LWT, RECONNECTED) that don't carry a full status snapshot.
type SystemPayload struct {
	System SystemPayloadInner `json:"system"`
}

// SystemPayloadInner contains the system event details.
type SystemPayloadInner struct {
	Timestamp string `json:"timestamp"`
	Event     string `json:"event"`
	Reason    string `json:"reason,omitempty"`
}

// FormatSystemPayload creates the JSON payload for a system event.
// If event.RawPayload is set, it is returned directly (used for full status snapshots).
func FormatSystemPayload(event SystemEvent) ([]byte, error) {
	if event.RawPayload != nil {
		return event.RawPayload, nil
	}

	payload := SystemPayload{
		System: SystemPayloadInner{
			Timestamp: event.Timestamp.UTC().Format(time.RFC3339),
			Event:     event.Event,
			Reason:    event.Reason,
		},
	}
	return json.Marshal(payload)
}
