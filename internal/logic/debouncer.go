package logic

import "time"

// Debouncer turns raw button levels into discrete press events.
// A press is reported once, when a button's debounced state goes from
// released to pressed. Nothing is reported until every button has held a
// stable level for the debounce duration, so a button held at power-on
// does not produce a press.
type Debouncer struct {
	debounceDuration time.Duration
	ch               [NumButtons]ChannelState
	baselined        bool
}

// NewDebouncer creates a button debouncer with the given debounce duration.
func NewDebouncer(debounceDuration time.Duration) *Debouncer {
	return &Debouncer{debounceDuration: debounceDuration}
}

// Process takes a new sample of raw levels and returns the buttons that
// became pressed, in button order.
func (d *Debouncer) Process(input ButtonInput) []Button {
	var presses []Button
	for i := range d.ch {
		if d.processChannel(&d.ch[i], boolToState(input.Levels[i]), input.Time) {
			presses = append(presses, Button(i))
		}
	}

	if !d.baselined {
		for i := range d.ch {
			if !d.ch[i].Baselined {
				return nil
			}
		}
		d.baselined = true
		return nil // No events until baseline established
	}

	return presses
}

// processChannel handles debounce logic for a single button.
// Returns true if the button's stable state just became pressed.
func (d *Debouncer) processChannel(ch *ChannelState, newState State, now time.Duration) bool {
	// First time seeing this channel
	if !ch.Baselined {
		if ch.Pending == "" || ch.Pending != newState {
			ch.Pending = newState
			ch.PendingSince = now
			return false
		}

		if now-ch.PendingSince >= d.debounceDuration {
			ch.Stable = newState
			ch.Baselined = true
			ch.Pending = ""
		}
		return false
	}

	if newState == ch.Stable {
		// Bounce back to the stable level, drop the pending change
		ch.Pending = ""
		return false
	}

	if ch.Pending != newState {
		ch.Pending = newState
		ch.PendingSince = now
		return false
	}

	if now-ch.PendingSince >= d.debounceDuration {
		ch.Stable = newState
		ch.Pending = ""
		return newState == StatePressed
	}

	return false
}

func boolToState(b bool) State {
	if b {
		return StatePressed
	}
	return StateReleased
}

// IsBaselined returns whether every button has a stable baseline.
func (d *Debouncer) IsBaselined() bool {
	return d.baselined
}

// CurrentState returns the debounced state of b.
func (d *Debouncer) CurrentState(b Button) State {
	return d.ch[b].Stable
}
