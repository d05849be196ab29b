//go:build !linux

package gpio

import "errors"

// RealActuator is not available on non-Linux platforms.
type RealActuator struct{}

// NewRealActuator returns an error on non-Linux platforms.
func NewRealActuator(pinCall, pinConv, pinDoor int) (*RealActuator, error) {
	return nil, errors.New("gpio: not supported on this platform (requires Linux)")
}

// DetectCall is not implemented on non-Linux platforms.
func (a *RealActuator) DetectCall() (bool, error) {
	return false, errors.New("gpio: not supported")
}

// OpenConversation is not implemented on non-Linux platforms.
func (a *RealActuator) OpenConversation() error { return errors.New("gpio: not supported") }

// CloseConversation is not implemented on non-Linux platforms.
func (a *RealActuator) CloseConversation() error { return errors.New("gpio: not supported") }

// Unlock is not implemented on non-Linux platforms.
func (a *RealActuator) Unlock() error { return errors.New("gpio: not supported") }

// Lock is not implemented on non-Linux platforms.
func (a *RealActuator) Lock() error { return errors.New("gpio: not supported") }

// Close is not implemented on non-Linux platforms.
func (a *RealActuator) Close() error { return nil }
