package mqtt

import "log"

// inboundMsg stores a received MQTT message until the controller drains it.
type inboundMsg struct {
	topic   string
	payload []byte
}

// ringBuffer is a fixed-capacity FIFO holding inbound messages between
// CheckPending calls. Not safe for concurrent use; the caller must synchronize.
type ringBuffer struct {
	buf      []inboundMsg
	capacity int
	head     int // next write position
	count    int
	overflow bool // true if any message was dropped since last drain
}

func newRingBuffer(capacity int) *ringBuffer {
	return &ringBuffer{
		buf:      make([]inboundMsg, capacity),
		capacity: capacity,
	}
}

func (r *ringBuffer) push(msg inboundMsg) {
	if r.count == r.capacity {
		if !r.overflow {
			log.Printf("mqtt: inbound buffer full (%d messages), dropping oldest", r.capacity)
			r.overflow = true
		}
		// Overwrite oldest: head is already pointing at it
		r.buf[r.head] = msg
		r.head = (r.head + 1) % r.capacity
		// count stays at capacity
		return
	}
	r.buf[r.head] = msg
	r.head = (r.head + 1) % r.capacity
	r.count++
}

func (r *ringBuffer) drainAll() []inboundMsg {
	if r.count == 0 {
		return nil
	}

	result := make([]inboundMsg, r.count)
	// Oldest item is at (head - count) mod capacity
	start := (r.head - r.count + r.capacity) % r.capacity
	for i := 0; i < r.count; i++ {
		result[i] = r.buf[(start+i)%r.capacity]
	}

	r.count = 0
	r.head = 0
	r.overflow = false
	return result
}

func (r *ringBuffer) len() int {
	return r.count
}
