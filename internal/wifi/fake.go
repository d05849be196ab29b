package wifi

// FakeLink is a test double with scripted connectivity.
type FakeLink struct {
	// Connected controls the return value of IsConnected.
	Connected bool

	// ConnectOK controls whether Connect succeeds.
	ConnectOK bool

	// ConnectCalls counts Connect invocations.
	ConnectCalls int

	// LastSSID records the SSID passed to the most recent Connect call.
	LastSSID string
}

// NewFakeLink creates a FakeLink.
func NewFakeLink() *FakeLink {
	return &FakeLink{}
}

// Connect records the attempt and applies the scripted outcome.
func (f *FakeLink) Connect(ssid, password string) bool {
	f.ConnectCalls++
	f.LastSSID = ssid
	if f.ConnectOK {
		f.Connected = true
	}
	return f.ConnectOK
}

// IsConnected returns the scripted state.
func (f *FakeLink) IsConnected() bool {
	return f.Connected
}
