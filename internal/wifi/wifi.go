// Package wifi provides the wireless link capability with hardware abstraction.
// The real implementation drives NetworkManager via nmcli and reads interface
// state from sysfs. The fake implementation allows testing without a radio.
package wifi

// Link manages the wireless network connection underneath the message bus.
type Link interface {
	// Connect joins the given network. Returns false on failure rather
	// than an error; the caller simply retries on the next iteration.
	Connect(ssid, password string) bool

	// IsConnected reports whether the link is currently up.
	IsConnected() bool
}
