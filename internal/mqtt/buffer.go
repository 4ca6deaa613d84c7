package mqtt

import (
	"log"
	"time"
)

// DefaultBufferSize is how many messages are held while the broker is
// unreachable.
const DefaultBufferSize = 64

// MaxBufferAge is the age beyond which a buffered message is not worth
// replaying; a display showing a minutes-old alarm is worse than none.
const MaxBufferAge = 10 * time.Minute

// bufferedMsg stores a serialized MQTT message for replay after reconnection.
type bufferedMsg struct {
	topic    string
	payload  []byte
	qos      byte
	retained bool
	queued   time.Time
}

// ringBuffer is a fixed-capacity FIFO that stores messages while disconnected.
// Not safe for concurrent use; the caller must synchronize.
type ringBuffer struct {
	buf     []bufferedMsg
	head    int // next write position
	count   int
	dropped int // messages overwritten since last drain
}

func newRingBuffer(capacity int) *ringBuffer {
	return &ringBuffer{buf: make([]bufferedMsg, capacity)}
}

func (r *ringBuffer) push(msg bufferedMsg) {
	if r.count == len(r.buf) {
		if r.dropped == 0 {
			log.Printf("mqtt: buffer full (%d messages), dropping oldest", len(r.buf))
		}
		r.dropped++
	} else {
		r.count++
	}
	// When full, head already points at the oldest message
	r.buf[r.head] = msg
	r.head = (r.head + 1) % len(r.buf)
}

// drain removes and returns buffered messages oldest first, skipping any
// queued before now-maxAge. A maxAge of zero keeps everything.
func (r *ringBuffer) drain(now time.Time, maxAge time.Duration) []bufferedMsg {
	if r.count == 0 {
		return nil
	}

	result := make([]bufferedMsg, 0, r.count)
	start := (r.head - r.count + len(r.buf)) % len(r.buf)
	stale := 0
	for i := 0; i < r.count; i++ {
		msg := r.buf[(start+i)%len(r.buf)]
		if maxAge > 0 && now.Sub(msg.queued) > maxAge {
			stale++
			continue
		}
		result = append(result, msg)
	}
	if stale > 0 || r.dropped > 0 {
		log.Printf("mqtt: replaying %d buffered messages (%d stale, %d dropped)", len(result), stale, r.dropped)
	}

	r.count = 0
	r.head = 0
	r.dropped = 0
	return result
}

func (r *ringBuffer) len() int {
	return r.count
}
