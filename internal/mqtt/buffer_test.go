package mqtt

import (
	"testing"
	"time"
)

var queuedAt = time.Date(2026, 6, 14, 8, 0, 0, 0, time.UTC)

func TestRingBufferEmptyDrain(t *testing.T) {
	rb := newRingBuffer(10)
	got := rb.drain(queuedAt, 0)
	if got != nil {
		t.Errorf("expected nil from empty drain, got %d items", len(got))
	}
}

func TestRingBufferPushAndDrain(t *testing.T) {
	rb := newRingBuffer(10)
	for i := 0; i < 5; i++ {
		rb.push(bufferedMsg{topic: "t", payload: []byte{byte(i)}, queued: queuedAt})
	}

	got := rb.drain(queuedAt, 0)
	if len(got) != 5 {
		t.Fatalf("expected 5 items, got %d", len(got))
	}
	for i := 0; i < 5; i++ {
		if got[i].payload[0] != byte(i) {
			t.Errorf("item %d: expected payload %d, got %d", i, i, got[i].payload[0])
		}
	}

	// Second drain should be empty
	if got2 := rb.drain(queuedAt, 0); got2 != nil {
		t.Errorf("expected nil from second drain, got %d items", len(got2))
	}
}

func TestRingBufferOverflow(t *testing.T) {
	size := 5
	rb := newRingBuffer(size)

	// Push size+3 items (0..7), buffer should keep the most recent 5 (3..7)
	for i := 0; i < size+3; i++ {
		rb.push(bufferedMsg{topic: "t", payload: []byte{byte(i)}})
	}
	if rb.dropped != 3 {
		t.Errorf("dropped: got %d, want 3", rb.dropped)
	}

	got := rb.drain(queuedAt, 0)
	if len(got) != size {
		t.Fatalf("expected %d items, got %d", size, len(got))
	}
	for i := 0; i < size; i++ {
		want := byte(i + 3) // oldest 3 were dropped
		if got[i].payload[0] != want {
			t.Errorf("item %d: expected payload %d, got %d", i, want, got[i].payload[0])
		}
	}
	if rb.dropped != 0 {
		t.Error("drain should reset the dropped count")
	}
}

func TestRingBufferSkipsStale(t *testing.T) {
	rb := newRingBuffer(10)
	rb.push(bufferedMsg{topic: "old", queued: queuedAt})
	rb.push(bufferedMsg{topic: "edge", queued: queuedAt.Add(5 * time.Minute)})
	rb.push(bufferedMsg{topic: "new", queued: queuedAt.Add(14 * time.Minute)})

	got := rb.drain(queuedAt.Add(15*time.Minute), MaxBufferAge)
	if len(got) != 2 || got[0].topic != "edge" || got[1].topic != "new" {
		t.Errorf("drained: %+v", got)
	}
	if rb.len() != 0 {
		t.Errorf("stale messages must be removed too, len %d", rb.len())
	}
}

func TestRingBufferMultipleCycles(t *testing.T) {
	rb := newRingBuffer(5)

	for i := 0; i < 3; i++ {
		rb.push(bufferedMsg{topic: "t", payload: []byte{byte(i)}})
	}
	if got := rb.drain(queuedAt, 0); len(got) != 3 {
		t.Fatalf("cycle 1: expected 3 items, got %d", len(got))
	}

	for i := 10; i < 14; i++ {
		rb.push(bufferedMsg{topic: "t", payload: []byte{byte(i)}})
	}
	got := rb.drain(queuedAt, 0)
	if len(got) != 4 {
		t.Fatalf("cycle 2: expected 4 items, got %d", len(got))
	}
	for i, msg := range got {
		want := byte(10 + i)
		if msg.payload[0] != want {
			t.Errorf("cycle 2 item %d: expected %d, got %d", i, want, msg.payload[0])
		}
	}
}

func TestRingBufferPreservesFields(t *testing.T) {
	rb := newRingBuffer(10)
	rb.push(bufferedMsg{
		topic:    TopicSystem,
		payload:  []byte(`{"test":true}`),
		qos:      1,
		retained: true,
		queued:   queuedAt,
	})

	got := rb.drain(queuedAt, MaxBufferAge)
	if len(got) != 1 {
		t.Fatalf("expected 1 item, got %d", len(got))
	}
	if got[0].topic != TopicSystem {
		t.Errorf("topic: got %s, want %s", got[0].topic, TopicSystem)
	}
	if string(got[0].payload) != `{"test":true}` {
		t.Errorf("payload: got %s", got[0].payload)
	}
	if got[0].qos != 1 {
		t.Errorf("qos: got %d, want 1", got[0].qos)
	}
	if !got[0].retained {
		t.Error("retained: got false, want true")
	}
}
