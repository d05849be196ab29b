// Package status provides a thread-safe status tracker for the intercom daemon.
// It feeds the system lifecycle events published over MQTT.
package status

import (
	"sync"
	"time"
)

// Config contains daemon configuration for display.
type Config struct {
	PollMs       int64
	DebounceSec  int64
	Broker       string
	UpdatePort   int
	SSID         string
	RestartAfter int64 // seconds
}

// Counts tracks event totals since startup.
type Counts struct {
	CallsDetected int
	Unlocks       int
	Reconnects    int
}

// Snapshot is a point-in-time view of daemon state.
// It is a value type, safe to use after the lock is released.
type Snapshot struct {
	LinkConnected bool
	BusConnected  bool
	AutoUnlock    bool
	Counts        Counts
	LastCall      time.Time
	StartTime     time.Time
	Now           time.Time
	Config        Config
}

// Uptime returns the duration since the daemon started.
func (s Snapshot) Uptime() time.Duration {
	return s.Now.Sub(s.StartTime)
}

// Tracker holds mutable daemon state behind an RWMutex.
type Tracker struct {
	mu   sync.RWMutex
	snap Snapshot
}

// NewTracker creates a Tracker with the given start time and config.
func NewTracker(startTime time.Time, cfg Config) *Tracker {
	return &Tracker{
		snap: Snapshot{
			StartTime: startTime,
			Config:    cfg,
		},
	}
}

// SetConnectivity sets link and bus connection state.
func (t *Tracker) SetConnectivity(link, bus bool) {
	t.mu.Lock()
	t.snap.LinkConnected = link
	t.snap.BusConnected = bus
	t.mu.Unlock()
}

// SetAutoUnlock records the current auto-unlock setting.
func (t *Tracker) SetAutoUnlock(on bool) {
	t.mu.Lock()
	t.snap.AutoUnlock = on
	t.mu.Unlock()
}

// SetRestartAfter records the current restart ceiling in seconds.
func (t *Tracker) SetRestartAfter(seconds int64) {
	t.mu.Lock()
	t.snap.Config.RestartAfter = seconds
	t.mu.Unlock()
}

// CallDetected increments the call counter and records the call time.
func (t *Tracker) CallDetected(at time.Time) {
	t.mu.Lock()
	t.snap.Counts.CallsDetected++
	t.snap.LastCall = at
	t.mu.Unlock()
}

// UnlockExecuted increments the unlock counter.
func (t *Tracker) UnlockExecuted() {
	t.mu.Lock()
	t.snap.Counts.Unlocks++
	t.mu.Unlock()
}

// ReconnectAttempted increments the reconnect counter.
func (t *Tracker) ReconnectAttempted() {
	t.mu.Lock()
	t.snap.Counts.Reconnects++
	t.mu.Unlock()
}

// Snapshot returns a point-in-time copy of the daemon state.
// The Now field is set to the current time at the moment of the call.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	s := t.snap
	t.mu.RUnlock()
	s.Now = time.Now()
	return s
}
