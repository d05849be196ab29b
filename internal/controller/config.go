package controller

import "time"

// Config holds the controller's runtime configuration. AutoUnlock and
// RestartAfter are remotely mutable via the config topic; the timing
// fields are fixed at startup.
type Config struct {
	// AutoUnlock triggers the unlock sequence on every qualifying call edge.
	AutoUnlock bool

	// RestartAfter is the uptime ceiling before a scheduled restart.
	RestartAfter time.Duration

	// CallDebounce is the minimum interval between two fired call notifications.
	CallDebounce time.Duration

	// ConversationOpenDelay is the pause between opening the conversation
	// relay and engaging the door relay.
	ConversationOpenDelay time.Duration

	// DoorUnlockDuration is how long the door stays unlocked for entry.
	DoorUnlockDuration time.Duration
}

// Defaults matching the deployed intercom hardware.
const (
	DefaultRestartAfter          = 48 * time.Hour
	DefaultCallDebounce          = 10 * time.Second
	DefaultConversationOpenDelay = 1 * time.Second
	DefaultDoorUnlockDuration    = 5 * time.Second
)

// Sanity bounds for remotely-supplied restartAfterSeconds. Values outside
// this range are rejected so a typo cannot schedule a restart every second
// or disable restarts for months.
const (
	MinRestartAfterSeconds = 60
	MaxRestartAfterSeconds = 30 * 24 * 60 * 60
)

// DefaultConfig returns the controller configuration used at boot, before
// any remote config message arrives.
func DefaultConfig() Config {
	return Config{
		AutoUnlock:            false,
		RestartAfter:          DefaultRestartAfter,
		CallDebounce:          DefaultCallDebounce,
		ConversationOpenDelay: DefaultConversationOpenDelay,
		DoorUnlockDuration:    DefaultDoorUnlockDuration,
	}
}

// Topics names the bus topics the controller uses. The names are
// configuration; the payload contracts are fixed.
type Topics struct {
	Config        string // inbound JSON config document
	ConfigRequest string // outbound, published once per bus (re)connect
	Unlock        string // inbound unlock sentinel
	CallDetected  string // outbound call notification
	Update        string // inbound update-mode sentinel
	System        string // outbound lifecycle events
}
