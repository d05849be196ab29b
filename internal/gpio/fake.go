package gpio

import "errors"

// FakeActuator is a test double that returns scripted call-detector values
// and records relay operations.
type FakeActuator struct {
	// Samples contains scripted call-signal values to return.
	// Each call to DetectCall() consumes the next sample.
	// When exhausted, the last sample is returned repeatedly.
	Samples []bool

	// index tracks current position in Samples
	index int

	// Ops records relay operations in order ("open", "close", "unlock", "lock").
	Ops []string

	// Closed tracks if Close was called
	Closed bool

	// DetectError, if set, will be returned by DetectCall()
	DetectError error

	// FailOps maps an operation name to an error to return for it.
	FailOps map[string]error
}

// NewFakeActuator creates a FakeActuator with the given call-signal samples.
func NewFakeActuator(samples []bool) *FakeActuator {
	return &FakeActuator{Samples: samples}
}

// DetectCall returns the next scripted sample.
func (f *FakeActuator) DetectCall() (bool, error) {
	if f.DetectError != nil {
		return false, f.DetectError
	}

	if len(f.Samples) == 0 {
		return false, errors.New("no samples configured")
	}

	sample := f.Samples[f.index]
	if f.index < len(f.Samples)-1 {
		f.index++
	}

	return sample, nil
}

func (f *FakeActuator) do(op string) error {
	if err, ok := f.FailOps[op]; ok && err != nil {
		f.Ops = append(f.Ops, op+"!")
		return err
	}
	f.Ops = append(f.Ops, op)
	return nil
}

// OpenConversation records the operation.
func (f *FakeActuator) OpenConversation() error { return f.do("open") }

// CloseConversation records the operation.
func (f *FakeActuator) CloseConversation() error { return f.do("close") }

// Unlock records the operation.
func (f *FakeActuator) Unlock() error { return f.do("unlock") }

// Lock records the operation.
func (f *FakeActuator) Lock() error { return f.do("lock") }

// Close marks the actuator as closed.
func (f *FakeActuator) Close() error {
	f.Closed = true
	return nil
}

// Reset resets samples and recorded operations.
func (f *FakeActuator) Reset() {
	f.index = 0
	f.Ops = nil
	f.Closed = false
	f.DetectError = nil
	f.FailOps = nil
}
