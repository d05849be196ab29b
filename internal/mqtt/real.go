package mqtt

import (
	"fmt"
	"log"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
)

// RealBus talks to an actual MQTT broker via paho. Inbound messages are
// buffered and only dispatched from CheckPending, so handlers always run
// on the controller goroutine.
type RealBus struct {
	broker   string
	clientID string
	username string
	password string

	client paho.Client

	mu       sync.Mutex
	handlers map[string]Handler
	inbound  *ringBuffer
	lost     bool
}

// inboundCapacity bounds how many messages can pile up between two
// CheckPending calls. The controller drains every loop iteration, so
// hitting this implies something is badly stuck.
const inboundCapacity = 64

// NewRealBus creates a bus for the given broker. Connect must be called
// before publishing.
func NewRealBus(broker, clientID, username, password string) *RealBus {
	return &RealBus{
		broker:   broker,
		clientID: clientID,
		username: username,
		password: password,
		handlers: make(map[string]Handler),
		inbound:  newRingBuffer(inboundCapacity),
	}
}

// Connect establishes the broker connection and re-subscribes every
// registered topic. Reconnection is driven by the controller, not by
// paho's auto-reconnect, so connectivity stays observable.
func (b *RealBus) Connect() bool {
	opts := paho.NewClientOptions().
		AddBroker(b.broker).
		SetClientID(b.clientID).
		SetAutoReconnect(false).
		SetKeepAlive(60 * time.Second).
		SetConnectionLostHandler(b.onConnectionLost)
	if b.username != "" {
		opts.SetUsername(b.username).SetPassword(b.password)
	}

	client := paho.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(10 * time.Second) {
		log.Printf("mqtt: connect to %s timed out", b.broker)
		return false
	}
	if err := token.Error(); err != nil {
		log.Printf("mqtt: connect to %s failed: %v", b.broker, err)
		return false
	}

	b.mu.Lock()
	b.client = client
	b.lost = false
	topics := make([]string, 0, len(b.handlers))
	for topic := range b.handlers {
		topics = append(topics, topic)
	}
	b.mu.Unlock()

	for _, topic := range topics {
		if err := b.subscribeAtBroker(client, topic); err != nil {
			log.Printf("mqtt: re-subscribe %s failed: %v", topic, err)
			client.Disconnect(250)
			return false
		}
		log.Printf("mqtt: re-subscribed to %s", topic)
	}

	return true
}

// IsConnected reports whether the broker connection is live.
func (b *RealBus) IsConnected() bool {
	b.mu.Lock()
	client, lost := b.client, b.lost
	b.mu.Unlock()
	return client != nil && !lost && client.IsConnected()
}

// Publish sends a payload at QoS 0, not retained.
func (b *RealBus) Publish(topic string, payload []byte) error {
	b.mu.Lock()
	client := b.client
	b.mu.Unlock()
	if client == nil || !client.IsConnected() {
		return fmt.Errorf("not connected to broker")
	}

	token := client.Publish(topic, 0, false, payload)
	if !token.WaitTimeout(5 * time.Second) {
		return fmt.Errorf("publish to %s timed out", topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish to %s: %w", topic, err)
	}
	return nil
}

// Subscribe registers a handler and, if connected, subscribes at the broker.
func (b *RealBus) Subscribe(topic string, handler Handler) error {
	b.mu.Lock()
	b.handlers[topic] = handler
	client := b.client
	b.mu.Unlock()

	if client == nil || !client.IsConnected() {
		// Registration only; Connect subscribes later.
		return nil
	}
	return b.subscribeAtBroker(client, topic)
}

func (b *RealBus) subscribeAtBroker(client paho.Client, topic string) error {
	token := client.Subscribe(topic, 1, b.onMessage)
	if !token.WaitTimeout(5 * time.Second) {
		return fmt.Errorf("subscribe to %s timed out", topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("subscribe to %s: %w", topic, err)
	}
	return nil
}

// onMessage runs on a paho goroutine; it only buffers.
func (b *RealBus) onMessage(_ paho.Client, msg paho.Message) {
	payload := make([]byte, len(msg.Payload()))
	copy(payload, msg.Payload())

	b.mu.Lock()
	b.inbound.push(inboundMsg{topic: msg.Topic(), payload: payload})
	b.mu.Unlock()
}

func (b *RealBus) onConnectionLost(_ paho.Client, err error) {
	log.Printf("mqtt: connection lost: %v", err)
	b.mu.Lock()
	b.lost = true
	b.mu.Unlock()
}

// CheckPending dispatches buffered messages to their handlers on the
// caller's goroutine. Returns false if the connection has dropped.
func (b *RealBus) CheckPending() bool {
	b.mu.Lock()
	msgs := b.inbound.drainAll()
	handlers := make(map[string]Handler, len(b.handlers))
	for topic, h := range b.handlers {
		handlers[topic] = h
	}
	b.mu.Unlock()

	for _, msg := range msgs {
		if h, ok := handlers[msg.topic]; ok && h != nil {
			h(msg.topic, msg.payload)
		}
	}

	return b.IsConnected()
}

// Close disconnects from the broker.
func (b *RealBus) Close() error {
	b.mu.Lock()
	client := b.client
	b.client = nil
	b.mu.Unlock()
	if client != nil {
		client.Disconnect(1000)
	}
	return nil
}
