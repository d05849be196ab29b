//go:build !linux

package wifi

import "time"

// RealLink is not available on non-Linux platforms.
type RealLink struct {
	Interface      string
	ConnectTimeout time.Duration
}

// NewRealLink returns a stub on non-Linux platforms.
func NewRealLink(iface string) *RealLink {
	return &RealLink{Interface: iface}
}

// Connect always fails on non-Linux platforms.
func (l *RealLink) Connect(ssid, password string) bool { return false }

// IsConnected always reports false on non-Linux platforms.
func (l *RealLink) IsConnected() bool { return false }
