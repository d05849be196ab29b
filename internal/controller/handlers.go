package controller

import (
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/sweeney/intercom-controller/internal/mqtt"
)

// ProcessCallDetection reads the call signal and fires on a rising edge
// outside the debounce window. The debounce timestamp is advanced before
// any side effect, so a slow publish can never open an overlapping window,
// and it advances even when the bus is down (the notification is dropped,
// the window is not).
func (c *Controller) ProcessCallDetection() {
	current, err := c.actuator.DetectCall()
	if err != nil {
		log.Printf("gpio: call detect failed: %v", err)
		return
	}

	rising := current && !c.prevCall
	c.prevCall = current
	if !rising {
		return
	}

	now := c.now()
	if !c.lastCall.IsZero() && now.Sub(c.lastCall) <= c.cfg.CallDebounce {
		log.Printf("controller: call edge inside debounce window, ignored")
		return
	}
	c.lastCall = now

	log.Printf("controller: call detected")
	if c.tracker != nil {
		c.tracker.CallDetected(now)
	}

	if c.bus.IsConnected() {
		if err := c.bus.Publish(c.topics.CallDetected, []byte(mqtt.MessageCallDetected)); err != nil {
			log.Printf("mqtt: call notification publish failed: %v", err)
		}
	} else {
		log.Printf("mqtt: bus down, call notification dropped")
	}

	if c.cfg.AutoUnlock {
		c.ExecuteUnlockSequence()
	}
}

// ExecuteUnlockSequence runs the timed actuation sequence: open conversation,
// wait, unlock, wait, close conversation, lock. It never returns an error to
// the caller; a failure partway triggers a best-effort cleanup where close
// and lock are attempted independently, so a stuck relay cannot leave the
// door energized or kill the main loop.
func (c *Controller) ExecuteUnlockSequence() {
	log.Printf("controller: executing unlock sequence")
	if c.tracker != nil {
		c.tracker.UnlockExecuted()
	}

	if err := c.runUnlockSteps(); err != nil {
		log.Printf("gpio: unlock sequence failed: %v, cleaning up", err)
		if cerr := c.actuator.CloseConversation(); cerr != nil {
			log.Printf("gpio: cleanup close conversation failed: %v", cerr)
		}
		if lerr := c.actuator.Lock(); lerr != nil {
			log.Printf("gpio: cleanup lock failed: %v", lerr)
		}
		return
	}

	log.Printf("controller: unlock sequence complete")
}

func (c *Controller) runUnlockSteps() error {
	if err := c.actuator.OpenConversation(); err != nil {
		return fmt.Errorf("open conversation: %w", err)
	}
	c.sleep(c.cfg.ConversationOpenDelay)

	if err := c.actuator.Unlock(); err != nil {
		return fmt.Errorf("unlock: %w", err)
	}
	c.sleep(c.cfg.DoorUnlockDuration)

	if err := c.actuator.CloseConversation(); err != nil {
		return fmt.Errorf("close conversation: %w", err)
	}
	if err := c.actuator.Lock(); err != nil {
		return fmt.Errorf("lock: %w", err)
	}
	return nil
}

// configDocument mirrors the remotely mutable config keys. Fields are raw
// so each can be validated and applied independently.
type configDocument struct {
	AutoUnlock          json.RawMessage `json:"autoUnlock"`
	RestartAfterSeconds json.RawMessage `json:"restartAfterSeconds"`
}

// HandleConfigMessage applies a remote configuration document. Unknown keys
// are ignored. Each recognized field is validated and applied independently:
// a malformed field leaves the previous value untouched while other valid
// fields in the same message still apply. Parse failures are logged, never
// raised.
func (c *Controller) HandleConfigMessage(payload []byte) {
	var doc configDocument
	if err := json.Unmarshal(payload, &doc); err != nil {
		log.Printf("controller: config message rejected: %v", err)
		return
	}

	if doc.AutoUnlock != nil {
		var v bool
		if err := json.Unmarshal(doc.AutoUnlock, &v); err != nil {
			log.Printf("controller: config autoUnlock rejected: %v", err)
		} else {
			c.cfg.AutoUnlock = v
			log.Printf("controller: autoUnlock = %v", v)
			if c.tracker != nil {
				c.tracker.SetAutoUnlock(v)
			}
		}
	}

	if doc.RestartAfterSeconds != nil {
		var v int64
		if err := json.Unmarshal(doc.RestartAfterSeconds, &v); err != nil {
			log.Printf("controller: config restartAfterSeconds rejected: %v", err)
		} else if v < MinRestartAfterSeconds || v > MaxRestartAfterSeconds {
			log.Printf("controller: config restartAfterSeconds %d outside [%d, %d], rejected",
				v, MinRestartAfterSeconds, MaxRestartAfterSeconds)
		} else {
			c.cfg.RestartAfter = time.Duration(v) * time.Second
			log.Printf("controller: restartAfterSeconds = %d", v)
			if c.tracker != nil {
				c.tracker.SetRestartAfter(v)
			}
		}
	}
}

// HandleUnlockMessage triggers the unlock sequence iff the payload equals
// the unlock sentinel exactly. Anything else is logged and ignored.
func (c *Controller) HandleUnlockMessage(payload []byte) {
	if string(payload) != mqtt.MessageUnlock {
		log.Printf("controller: unlock message %q ignored", payload)
		return
	}
	log.Printf("controller: remote unlock requested")
	c.ExecuteUnlockSequence()
}

// handleUpdateMessage stops the controller and signals the host process to
// enter update-listener mode.
func (c *Controller) handleUpdateMessage(payload []byte) {
	if string(payload) != mqtt.MessageStartUpdate {
		log.Printf("controller: update message %q ignored", payload)
		return
	}
	log.Printf("controller: update mode requested, stopping")
	c.onUpdate()
	c.Stop()
}
