package logic

import "time"

const (
	// StationarySaveDelay is how long the bike must be still before
	// changed totals are written.
	StationarySaveDelay = 5 * time.Second

	// MovingSaveInterval is the minimum spacing of saves while moving.
	MovingSaveInterval = 30 * time.Second
)

// Autosaver decides when the odometer and ride time should be written.
// Saving at natural stops is preferred; while riding, writes are spaced
// out to limit wear on the storage cells.
type Autosaver struct {
	lastSave     time.Duration
	stoppedSince time.Duration
	stopped      bool
}

// NewAutosaver creates a policy whose save clock starts at now.
func NewAutosaver(now time.Duration) *Autosaver {
	return &Autosaver{lastSave: now, stoppedSince: now, stopped: true}
}

// Due reports whether a save should happen this tick. moving is whether
// the instantaneous speed is above the noise floor; dirty is whether the
// totals changed since the last save.
func (a *Autosaver) Due(now time.Duration, moving, dirty bool) bool {
	if moving {
		a.stopped = false
		return dirty && now-a.lastSave >= MovingSaveInterval
	}

	if !a.stopped {
		a.stopped = true
		a.stoppedSince = now
	}
	return dirty && now-a.stoppedSince >= StationarySaveDelay
}

// Saved records a successful save at now.
func (a *Autosaver) Saved(now time.Duration) {
	a.lastSave = now
}
