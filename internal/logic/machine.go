package logic

import "time"

const (
	// PINLength is the number of symbols in a lock PIN.
	PINLength = 4

	// PINAttempts is how many wrong symbols are tolerated before the alarm.
	PINAttempts = 3

	// ArmGrace is how long after arming movement is ignored.
	ArmGrace = 2 * time.Second

	// DefaultStandbyTimeout is the idle time before the display sleeps.
	DefaultStandbyTimeout = 5 * time.Minute
)

// Fixed user-facing messages for lock outcomes.
const (
	MsgUnlocked      = "UNLOCKED"
	MsgWrongPIN      = "WRONG PIN"
	MsgAlarm         = "ALARM"
	MsgAlarmWrongPIN = "ALARM ACTIVE - WRONG PIN"
)

// Security is the state of an engaged lock. It exists only while in LOCK.
type Security struct {
	PIN          [PINLength]Button
	Index        int
	AttemptsLeft int
	Armed        bool
	Alarm        bool
	ArmedAt      time.Duration
}

// MachineInput is everything the state machine sees in one loop tick.
type MachineInput struct {
	Now     time.Duration
	Presses []Button
	// Pulse is true if a new wheel pulse was registered this tick.
	Pulse bool
	// PulseAt is the monotonic timestamp of the latest pulse.
	PulseAt time.Duration
}

// Machine is the NORMAL / TRIP / LOCK mode controller.
// Only presses cause transitions, apart from the time-based ones: the
// motion alarm after the arming grace period, and standby.
type Machine struct {
	mode        Mode
	overlay     Overlay
	pending     Mode
	tripRunning bool

	sec      *Security
	setup    [PINLength]Button
	setupLen int

	standbyTimeout time.Duration
	lastActivity   time.Duration
	standby        bool
}

// NewMachine creates a machine in NORMAL mode. A standbyTimeout of zero
// disables standby.
func NewMachine(now, standbyTimeout time.Duration) *Machine {
	return &Machine{
		mode:           ModeNormal,
		standbyTimeout: standbyTimeout,
		lastActivity:   now,
	}
}

// Process handles one tick and returns the resulting events in order.
func (m *Machine) Process(in MachineInput) []Event {
	var events []Event
	presses := in.Presses
	active := len(presses) > 0 || in.Pulse

	if m.standby {
		if !active {
			return nil
		}
		m.standby = false
		events = append(events, Event{Type: EventWake, Mode: m.mode})
		// The waking press only turns the display back on
		if len(presses) > 0 {
			presses = presses[1:]
		}
	}
	if active {
		m.lastActivity = in.Now
	}

	for _, b := range presses {
		events = append(events, m.press(in.Now, b)...)
	}

	if m.mode == ModeLock && m.sec != nil && m.sec.Armed && !m.sec.Alarm &&
		in.Pulse && in.PulseAt > m.sec.ArmedAt+ArmGrace {
		m.sec.Alarm = true
		events = append(events, Event{Type: EventAlarm, Mode: m.mode, AttemptsLeft: m.sec.AttemptsLeft, Message: MsgAlarm})
	}

	if m.canSleep() && in.Now-m.lastActivity >= m.standbyTimeout {
		m.standby = true
		events = append(events, Event{Type: EventStandby, Mode: m.mode})
	}

	return events
}

func (m *Machine) canSleep() bool {
	return m.standbyTimeout > 0 && !m.standby && m.mode == ModeNormal &&
		m.overlay == OverlayNone && !m.tripRunning
}

func (m *Machine) press(now time.Duration, b Button) []Event {
	switch m.overlay {
	case OverlaySelect:
		switch b {
		case ButtonMode:
			m.pending = nextMode(m.pending)
		case ButtonConfirm:
			return m.applySelection()
		}
		return nil

	case OverlayConfirmStart:
		switch b {
		case ButtonConfirm:
			m.overlay = OverlayNone
			m.mode = ModeTrip
			m.tripRunning = true
			return []Event{{Type: EventTripStart, Mode: m.mode}}
		case ButtonMode:
			m.overlay = OverlayNone
		}
		return nil

	case OverlayConfirmStop:
		switch b {
		case ButtonConfirm:
			m.overlay = OverlayNone
			m.mode = ModeNormal
			m.tripRunning = false
			return []Event{{Type: EventTripStop, Mode: m.mode}}
		case ButtonMode:
			m.overlay = OverlayNone
		}
		return nil

	case OverlayPINSetup:
		m.setup[m.setupLen] = b
		m.setupLen++
		if m.setupLen < PINLength {
			return nil
		}
		m.sec = &Security{
			PIN:          m.setup,
			AttemptsLeft: PINAttempts,
			Armed:        true,
			ArmedAt:      now,
		}
		m.setupLen = 0
		m.overlay = OverlayNone
		m.mode = ModeLock
		return []Event{{Type: EventLockArmed, Mode: m.mode, AttemptsLeft: PINAttempts}}
	}

	switch m.mode {
	case ModeNormal:
		switch b {
		case ButtonMode:
			m.openSelect()
		case ButtonConfirm:
			return []Event{{Type: EventExport, Mode: m.mode}}
		}
	case ModeTrip:
		switch b {
		case ButtonMode:
			m.openSelect()
		case ButtonConfirm:
			m.overlay = OverlayConfirmStop
		}
	case ModeLock:
		return m.enterPIN(b)
	}
	return nil
}

func (m *Machine) openSelect() {
	m.overlay = OverlaySelect
	m.pending = nextMode(m.mode)
}

func (m *Machine) applySelection() []Event {
	m.overlay = OverlayNone
	switch m.pending {
	case ModeNormal:
		m.mode = ModeNormal
	case ModeTrip:
		if m.tripRunning {
			m.mode = ModeTrip
			return nil
		}
		m.overlay = OverlayConfirmStart
	case ModeLock:
		m.overlay = OverlayPINSetup
		m.setupLen = 0
	}
	return nil
}

func (m *Machine) enterPIN(b Button) []Event {
	s := m.sec
	if s == nil {
		return nil
	}

	if b == s.PIN[s.Index] {
		s.Index++
		if s.Index < PINLength {
			return nil
		}
		m.sec = nil
		m.mode = ModeNormal
		return []Event{{Type: EventUnlocked, Mode: m.mode, Message: MsgUnlocked}}
	}

	s.Index = 0
	if s.Alarm {
		return []Event{{Type: EventPINRejected, Mode: m.mode, Message: MsgAlarmWrongPIN}}
	}

	s.AttemptsLeft--
	events := []Event{{Type: EventWrongPIN, Mode: m.mode, AttemptsLeft: s.AttemptsLeft, Message: MsgWrongPIN}}
	if s.AttemptsLeft <= 0 {
		s.AttemptsLeft = 0
		s.Alarm = true
		events = append(events, Event{Type: EventAlarm, Mode: m.mode, Message: MsgAlarm})
	}
	return events
}

func nextMode(mode Mode) Mode {
	switch mode {
	case ModeNormal:
		return ModeTrip
	case ModeTrip:
		return ModeLock
	}
	return ModeNormal
}

// Mode returns the current mode.
func (m *Machine) Mode() Mode {
	return m.mode
}

// Overlay returns the active overlay and, for the selection overlay, the
// pending mode.
func (m *Machine) Overlay() (Overlay, Mode) {
	return m.overlay, m.pending
}

// TripRunning reports whether a trip is being recorded.
func (m *Machine) TripRunning() bool {
	return m.tripRunning
}

// Security returns a copy of the lock state, if the lock is engaged.
func (m *Machine) Security() (Security, bool) {
	if m.sec == nil {
		return Security{}, false
	}
	return *m.sec, true
}

// Standby reports whether the display is asleep.
func (m *Machine) Standby() bool {
	return m.standby
}

// Reset returns the machine to a fresh NORMAL state.
func (m *Machine) Reset(now time.Duration) {
	*m = Machine{mode: ModeNormal, standbyTimeout: m.standbyTimeout, lastActivity: now}
}
