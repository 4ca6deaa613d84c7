package logic

import "time"

// HeartbeatData contains information for a heartbeat event.
type HeartbeatData struct {
	Uptime time.Duration
	Counts EventCounts
}

// Heartbeat schedules periodic liveness reports.
type Heartbeat struct {
	startTime     time.Duration
	lastHeartbeat time.Duration
}

// NewHeartbeat creates a schedule whose uptime is measured from startTime.
func NewHeartbeat(startTime time.Duration) *Heartbeat {
	return &Heartbeat{startTime: startTime, lastHeartbeat: startTime}
}

// Check returns heartbeat data if the interval has elapsed since the last
// heartbeat (or startup). Returns nil if the interval has not elapsed, or
// if interval is <= 0 (disabled).
func (h *Heartbeat) Check(now, interval time.Duration, counts EventCounts) *HeartbeatData {
	if interval <= 0 {
		return nil
	}

	if now-h.lastHeartbeat < interval {
		return nil
	}

	h.lastHeartbeat = now
	return &HeartbeatData{
		Uptime: now - h.startTime,
		Counts: counts,
	}
}
