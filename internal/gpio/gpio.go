// Package gpio provides intercom pin actuation with hardware abstraction.
// The real implementation uses the Linux GPIO character device.
// The fake implementation allows testing without hardware.
package gpio

// Actuator reads the call-detector input and drives the two relays.
type Actuator interface {
	// DetectCall returns whether the intercom call signal is present.
	// The raw pin is active-low: raw 0 = call detected.
	DetectCall() (bool, error)

	// OpenConversation energizes the conversation relay (audio path open).
	OpenConversation() error

	// CloseConversation de-energizes the conversation relay.
	CloseConversation() error

	// Unlock energizes the door relay.
	Unlock() error

	// Lock de-energizes the door relay.
	Lock() error

	// Close releases GPIO resources.
	Close() error
}

// Pin definitions (BCM numbering)
const (
	PinCallDetector      = 4  // call-detector input, active-low with pull-up
	PinConversationRelay = 12 // conversation relay output
	PinDoorRelay         = 13 // door relay output
)
