//go:build linux

package wifi

import (
	"log"
	"os"
	"os/exec"
	"strings"
	"time"
)

// RealLink manages the wireless interface through NetworkManager (nmcli)
// and reports link state from the kernel's sysfs operstate file.
type RealLink struct {
	// Interface is the wireless interface name, e.g. "wlan0".
	Interface string

	// ConnectTimeout bounds a single nmcli connect attempt.
	ConnectTimeout time.Duration
}

// NewRealLink creates a link manager for the given wireless interface.
func NewRealLink(iface string) *RealLink {
	return &RealLink{
		Interface:      iface,
		ConnectTimeout: 15 * time.Second,
	}
}

// Connect joins the given SSID via nmcli. Returns false on any failure.
func (l *RealLink) Connect(ssid, password string) bool {
	log.Printf("wifi: connecting to %q on %s", ssid, l.Interface)

	args := []string{"dev", "wifi", "connect", ssid, "ifname", l.Interface}
	if password != "" {
		args = append(args, "password", password)
	}

	cmd := exec.Command("nmcli", args...)
	done := make(chan error, 1)
	if err := cmd.Start(); err != nil {
		log.Printf("wifi: nmcli start failed: %v", err)
		return false
	}
	go func() { done <- cmd.Wait() }()

	select {
	case err := <-done:
		if err != nil {
			log.Printf("wifi: connect to %q failed: %v", ssid, err)
			return false
		}
	case <-time.After(l.ConnectTimeout):
		cmd.Process.Kill()
		log.Printf("wifi: connect to %q timed out after %v", ssid, l.ConnectTimeout)
		return false
	}

	if !l.IsConnected() {
		log.Printf("wifi: nmcli reported success but %s is not up", l.Interface)
		return false
	}

	log.Printf("wifi: connected to %q", ssid)
	return true
}

// IsConnected reports whether the interface operstate is "up".
func (l *RealLink) IsConnected() bool {
	data, err := os.ReadFile("/sys/class/net/" + l.Interface + "/operstate")
	if err != nil {
		return false
	}
	return strings.TrimSpace(string(data)) == "up"
}
