// Package mqtt provides the message-bus capability with abstraction for testing.
package mqtt

import (
	"encoding/json"
	"time"
)

// Default topics. Names are configuration; the payload contracts are fixed.
const (
	// TopicConfig receives inbound JSON configuration documents.
	TopicConfig = "pyntercom/config"

	// TopicConfigRequest is published once per successful (re)connection
	// to ask the outside world to re-send current configuration.
	TopicConfigRequest = "pyntercom/config/request"

	// TopicUnlock receives the unlock sentinel.
	TopicUnlock = "pyntercom/intercom/unlock"

	// TopicCallDetected carries outbound call notifications.
	TopicCallDetected = "pyntercom/intercom/call_detected"

	// TopicUpdate receives the update-mode sentinel.
	TopicUpdate = "pyntercom/ota"

	// TopicSystem carries system lifecycle events.
	TopicSystem = "pyntercom/system"
)

// Sentinel payloads.
const (
	MessageCallDetected  = "call_detected"
	MessageUnlock        = "open"
	MessageStartUpdate   = "start_ota"
	MessageConfigRequest = "request"
)

// Handler processes one inbound message. Handlers are invoked from
// CheckPending on the caller's goroutine, never from the network layer.
type Handler func(topic string, payload []byte)

// Bus is the publish/subscribe transport used for remote control and
// notification.
type Bus interface {
	// Connect establishes the broker connection. Returns false on failure;
	// the caller retries on a later iteration.
	Connect() bool

	// IsConnected reports whether the broker connection is live.
	IsConnected() bool

	// Publish sends a payload to a topic.
	Publish(topic string, payload []byte) error

	// Subscribe registers a handler for a topic. The registration survives
	// reconnects: Connect re-subscribes every registered topic.
	Subscribe(topic string, handler Handler) error

	// CheckPending dispatches any buffered inbound messages to their
	// handlers. Returns false if the connection has dropped.
	CheckPending() bool

	// Close disconnects from the broker.
	Close() error
}

// SystemEvent represents a system lifecycle event (startup, shutdown, heartbeat).
type SystemEvent struct {
	Timestamp  time.Time
	Event      string // e.g. "STARTUP", "SHUTDOWN", "HEARTBEAT"
	Reason     string // e.g. "SIGTERM", "restart threshold" (shutdown only)
	RawPayload []byte // pre-formatted JSON payload; if set, FormatSystemPayload returns it directly
	Retained   bool
}

// SystemPayload represents the MQTT message payload for system events.
type SystemPayload struct {
	System SystemPayloadInner `json:"system"`
}

// SystemPayloadInner contains the system event details.
type SystemPayloadInner struct {
	Timestamp string `json:"timestamp"`
	Event     string `json:"event"`
	Reason    string `json:"reason,omitempty"`
}

// FormatSystemPayload creates the JSON payload for a system event.
// If event.RawPayload is set, it is returned directly (used for full status snapshots).
func FormatSystemPayload(event SystemEvent) ([]byte, error) {
	if event.RawPayload != nil {
		return event.RawPayload, nil
	}

	payload := SystemPayload{
		System: SystemPayloadInner{
			Timestamp: event.Timestamp.UTC().Format(time.RFC3339),
			Event:     event.Event,
			Reason:    event.Reason,
		},
	}
	return json.Marshal(payload)
}
