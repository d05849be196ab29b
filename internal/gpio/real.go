//go:build linux

package gpio

import (
	"fmt"

	"github.com/warthog618/go-gpiocdev"
)

// RealActuator drives actual hardware using the Linux GPIO character device.
type RealActuator struct {
	chip    *gpiocdev.Chip
	callPin *gpiocdev.Line
	convPin *gpiocdev.Line
	doorPin *gpiocdev.Line
}

// NewRealActuator opens the GPIO chip and requests the three intercom lines.
// Relay outputs start de-energized so a process restart never leaves the door open.
func NewRealActuator(pinCall, pinConv, pinDoor int) (*RealActuator, error) {
	chip, err := gpiocdev.NewChip("gpiochip0")
	if err != nil {
		return nil, fmt.Errorf("open gpio chip: %w", err)
	}

	// The call detector is wired active-low against the intercom's ring
	// voltage, so request with pull-up to keep the idle level high.
	callLine, err := chip.RequestLine(pinCall, gpiocdev.AsInput, gpiocdev.WithPullUp)
	if err != nil {
		chip.Close()
		return nil, fmt.Errorf("request call-detector pin %d: %w", pinCall, err)
	}

	convLine, err := chip.RequestLine(pinConv, gpiocdev.AsOutput(0))
	if err != nil {
		callLine.Close()
		chip.Close()
		return nil, fmt.Errorf("request conversation relay pin %d: %w", pinConv, err)
	}

	doorLine, err := chip.RequestLine(pinDoor, gpiocdev.AsOutput(0))
	if err != nil {
		convLine.Close()
		callLine.Close()
		chip.Close()
		return nil, fmt.Errorf("request door relay pin %d: %w", pinDoor, err)
	}

	return &RealActuator{
		chip:    chip,
		callPin: callLine,
		convPin: convLine,
		doorPin: doorLine,
	}, nil
}

// DetectCall returns whether the call signal is present.
// Inverts the raw value: raw 0 (grounded) = call detected.
func (a *RealActuator) DetectCall() (bool, error) {
	raw, err := a.callPin.Value()
	if err != nil {
		return false, fmt.Errorf("read call-detector pin: %w", err)
	}
	return raw == 0, nil
}

// OpenConversation energizes the conversation relay.
func (a *RealActuator) OpenConversation() error {
	if err := a.convPin.SetValue(1); err != nil {
		return fmt.Errorf("set conversation relay: %w", err)
	}
	return nil
}

// CloseConversation de-energizes the conversation relay.
func (a *RealActuator) CloseConversation() error {
	if err := a.convPin.SetValue(0); err != nil {
		return fmt.Errorf("clear conversation relay: %w", err)
	}
	return nil
}

// Unlock energizes the door relay.
func (a *RealActuator) Unlock() error {
	if err := a.doorPin.SetValue(1); err != nil {
		return fmt.Errorf("set door relay: %w", err)
	}
	return nil
}

// Lock de-energizes the door relay.
func (a *RealActuator) Lock() error {
	if err := a.doorPin.SetValue(0); err != nil {
		return fmt.Errorf("clear door relay: %w", err)
	}
	return nil
}

// Close de-energizes both relays and releases GPIO resources.
// Relays are forced low before closing so the door cannot be left
// unlocked across a restart.
func (a *RealActuator) Close() error {
	var errs []error

	if a.convPin != nil {
		if err := a.convPin.SetValue(0); err != nil {
			errs = append(errs, fmt.Errorf("clear conversation relay: %w", err))
		}
		if err := a.convPin.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close conversation pin: %w", err))
		}
	}
	if a.doorPin != nil {
		if err := a.doorPin.SetValue(0); err != nil {
			errs = append(errs, fmt.Errorf("clear door relay: %w", err))
		}
		if err := a.doorPin.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close door pin: %w", err))
		}
	}
	if a.callPin != nil {
		if err := a.callPin.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close call-detector pin: %w", err))
		}
	}
	if a.chip != nil {
		if err := a.chip.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close chip: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}
