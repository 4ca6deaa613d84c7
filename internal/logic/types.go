// Package logic contains the pure ride engine: speed derivation, trip and
// odometer accumulation, the mode/lock state machine and the autosave policy.
// This package has NO external dependencies (no GPIO, MQTT, storage or
// time.Sleep). Time is always injected as a monotonic time.Duration.
package logic

import "time"

// Button is one of the four logical inputs. The same four values are the
// PIN alphabet.
type Button int

const (
	ButtonUp Button = iota
	ButtonDown
	ButtonMode
	ButtonConfirm
)

// NumButtons is the number of logical inputs.
const NumButtons = 4

func (b Button) String() string {
	switch b {
	case ButtonUp:
		return "UP"
	case ButtonDown:
		return "DOWN"
	case ButtonMode:
		return "MODE"
	case ButtonConfirm:
		return "CONFIRM"
	}
	return "UNKNOWN"
}

// State is the debounced level of a button.
type State string

const (
	StatePressed  State = "PRESSED"
	StateReleased State = "RELEASED"
)

// Mode is the top-level operating mode.
type Mode string

const (
	ModeNormal Mode = "NORMAL"
	ModeTrip   Mode = "TRIP"
	ModeLock   Mode = "LOCK"
)

// Overlay is a transient screen layered over the current mode.
type Overlay string

const (
	OverlayNone         Overlay = ""
	OverlaySelect       Overlay = "SELECT"
	OverlayConfirmStart Overlay = "CONFIRM_START"
	OverlayConfirmStop  Overlay = "CONFIRM_STOP"
	OverlayPINSetup     Overlay = "PIN_SETUP"
)

// EventType identifies something the engine did that collaborators
// (display, buzzer, publisher, storage) react to.
type EventType string

const (
	EventTripStart   EventType = "TRIP_START"
	EventTripStop    EventType = "TRIP_STOP"
	EventLockArmed   EventType = "LOCK_ARMED"
	EventUnlocked    EventType = "UNLOCKED"
	EventWrongPIN    EventType = "WRONG_PIN"
	EventPINRejected EventType = "PIN_REJECTED"
	EventAlarm       EventType = "ALARM"
	EventExport      EventType = "EXPORT"
	EventStandby     EventType = "STANDBY"
	EventWake        EventType = "WAKE"
)

// Event is a state-machine output. Timestamp is filled in by the caller
// from the calendar clock; the engine itself only knows monotonic time.
type Event struct {
	Timestamp    time.Time
	Type         EventType
	Mode         Mode
	AttemptsLeft int
	// Trip is set on TRIP_STOP to the finalized trip.
	Trip *Trip
	// Message is the fixed user-facing text for PIN outcomes.
	Message string
}

// ButtonInput is a single sample of raw button levels.
type ButtonInput struct {
	Levels [NumButtons]bool // true = pressed
	Time   time.Duration
}

// ChannelState tracks debounce state for a single button.
type ChannelState struct {
	// Current stable (debounced) state
	Stable State
	// Pending state during debounce
	Pending State
	// Time when pending state was first observed
	PendingSince time.Duration
	// Whether we have established a baseline
	Baselined bool
}

// EventCounts tracks the number of ride events since startup.
type EventCounts struct {
	TripsStarted int
	TripsStopped int
	LocksArmed   int
	WrongPINs    int
	Alarms       int
	Exports      int
}

// Add counts e.
func (c *EventCounts) Add(e Event) {
	switch e.Type {
	case EventTripStart:
		c.TripsStarted++
	case EventTripStop:
		c.TripsStopped++
	case EventLockArmed:
		c.LocksArmed++
	case EventWrongPIN:
		c.WrongPINs++
	case EventAlarm:
		c.Alarms++
	case EventExport:
		c.Exports++
	}
}
