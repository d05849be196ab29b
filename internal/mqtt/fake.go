package mqtt

// Published records a single outbound message for test assertions.
type Published struct {
	Topic   string
	Payload []byte
}

// FakeBus is a test double implementing Bus. Inbound messages are queued
// with Deliver and handed to handlers on the next CheckPending, matching
// the real bus's dispatch model.
type FakeBus struct {
	// Connected controls IsConnected and the post-Connect state.
	Connected bool

	// ConnectOK controls whether Connect succeeds.
	ConnectOK bool

	// ConnectCalls counts Connect invocations.
	ConnectCalls int

	// Publishes contains all published messages in order.
	Publishes []Published

	// PublishError, if set, is returned by Publish.
	PublishError error

	// Subscriptions maps topic to registered handler.
	Subscriptions map[string]Handler

	// SubscribeCalls counts Subscribe invocations.
	SubscribeCalls int

	// DropOnCheck, if true, makes the next CheckPending report a lost
	// connection (and sets Connected false).
	DropOnCheck bool

	// Closed tracks if Close was called.
	Closed bool

	queue []inboundMsg
}

// NewFakeBus creates a FakeBus.
func NewFakeBus() *FakeBus {
	return &FakeBus{Subscriptions: make(map[string]Handler)}
}

// Connect applies the scripted outcome.
func (f *FakeBus) Connect() bool {
	f.ConnectCalls++
	if f.ConnectOK {
		f.Connected = true
	}
	return f.ConnectOK
}

// IsConnected returns the scripted state.
func (f *FakeBus) IsConnected() bool {
	return f.Connected
}

// Publish records the message.
func (f *FakeBus) Publish(topic string, payload []byte) error {
	if f.PublishError != nil {
		return f.PublishError
	}
	p := make([]byte, len(payload))
	copy(p, payload)
	f.Publishes = append(f.Publishes, Published{Topic: topic, Payload: p})
	return nil
}

// Subscribe records the handler.
func (f *FakeBus) Subscribe(topic string, handler Handler) error {
	f.SubscribeCalls++
	f.Subscriptions[topic] = handler
	return nil
}

// Deliver queues an inbound message for the next CheckPending.
func (f *FakeBus) Deliver(topic string, payload []byte) {
	f.queue = append(f.queue, inboundMsg{topic: topic, payload: payload})
}

// CheckPending dispatches queued messages, then reports connectivity.
func (f *FakeBus) CheckPending() bool {
	msgs := f.queue
	f.queue = nil
	for _, msg := range msgs {
		if h, ok := f.Subscriptions[msg.topic]; ok && h != nil {
			h(msg.topic, msg.payload)
		}
	}
	if f.DropOnCheck {
		f.DropOnCheck = false
		f.Connected = false
		return false
	}
	return f.Connected
}

// Close marks the bus as closed.
func (f *FakeBus) Close() error {
	f.Closed = true
	return nil
}

// PublishedTo returns the payloads published to the given topic.
func (f *FakeBus) PublishedTo(topic string) [][]byte {
	var out [][]byte
	for _, p := range f.Publishes {
		if p.Topic == topic {
			out = append(out, p.Payload)
		}
	}
	return out
}

// Reset clears recorded state.
func (f *FakeBus) Reset() {
	f.Connected = false
	f.ConnectOK = false
	f.ConnectCalls = 0
	f.Publishes = nil
	f.PublishError = nil
	f.Subscriptions = make(map[string]Handler)
	f.SubscribeCalls = 0
	f.DropOnCheck = false
	f.Closed = false
	f.queue = nil
}
