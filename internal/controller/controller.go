// Package controller implements the intercom's connection-management and
// call/unlock state machine. It owns the main loop: ensure connectivity,
// poll for a call edge, drain pending bus messages, sleep.
package controller

import (
	"log"
	"sync/atomic"
	"time"

	"github.com/sweeney/intercom-controller/internal/gpio"
	"github.com/sweeney/intercom-controller/internal/mqtt"
	"github.com/sweeney/intercom-controller/internal/status"
	"github.com/sweeney/intercom-controller/internal/wifi"
)

// Watchdog is fed once per loop iteration when present.
type Watchdog interface {
	Feed()
}

// Resetter performs a hardware reset. When absent, Restart degrades to a
// graceful Stop.
type Resetter interface {
	Reset()
}

// Options configures a Controller. Link, Bus and Actuator are required;
// everything else is optional.
type Options struct {
	Link     wifi.Link
	Bus      mqtt.Bus
	Actuator gpio.Actuator

	// SSID and Password are handed to Link.Connect on link loss.
	SSID     string
	Password string

	Topics Topics
	Config Config

	// Tracker receives state updates for system event payloads. Optional.
	Tracker *status.Tracker

	// Watchdog and Resetter are optional hardware capabilities.
	Watchdog Watchdog
	Resetter Resetter

	// OnUpdateRequested is called when the update sentinel arrives on the
	// update topic. The controller stops itself afterwards. When nil, the
	// update topic is not subscribed.
	OnUpdateRequested func()

	// PollInterval is the per-iteration sleep in the serving loop.
	// Defaults to 100ms.
	PollInterval time.Duration

	// ReconnectPause is the sleep after a failed link/bus reconnect
	// attempt, to avoid busy-spinning. Defaults to 2s.
	ReconnectPause time.Duration

	// HeartbeatInterval is how often a HEARTBEAT system event is
	// published. 0 disables heartbeats.
	HeartbeatInterval time.Duration

	// Now and Sleep are injectable for tests. Default to time.Now and
	// time.Sleep.
	Now   func() time.Time
	Sleep func(time.Duration)
}

// Controller runs the intercom state machine. Not safe for concurrent use:
// the design is single-threaded by construction, bus handlers run on the
// controller's own goroutine via CheckPending.
type Controller struct {
	link     wifi.Link
	bus      mqtt.Bus
	actuator gpio.Actuator

	ssid     string
	password string

	topics Topics
	cfg    Config

	tracker  *status.Tracker
	watchdog Watchdog
	resetter Resetter
	onUpdate func()

	pollInterval      time.Duration
	reconnectPause    time.Duration
	heartbeatInterval time.Duration

	now   func() time.Time
	sleep func(time.Duration)

	running       atomic.Bool
	startupSent   bool
	startTime     time.Time
	lastHeartbeat time.Time

	// call edge tracking
	prevCall bool
	lastCall time.Time
}

// New creates a Controller from the given options.
func New(opts Options) *Controller {
	c := &Controller{
		link:              opts.Link,
		bus:               opts.Bus,
		actuator:          opts.Actuator,
		ssid:              opts.SSID,
		password:          opts.Password,
		topics:            opts.Topics,
		cfg:               opts.Config,
		tracker:           opts.Tracker,
		watchdog:          opts.Watchdog,
		resetter:          opts.Resetter,
		onUpdate:          opts.OnUpdateRequested,
		pollInterval:      opts.PollInterval,
		reconnectPause:    opts.ReconnectPause,
		heartbeatInterval: opts.HeartbeatInterval,
		now:               opts.Now,
		sleep:             opts.Sleep,
	}
	if c.pollInterval <= 0 {
		c.pollInterval = 100 * time.Millisecond
	}
	if c.reconnectPause <= 0 {
		c.reconnectPause = 2 * time.Second
	}
	if c.now == nil {
		c.now = time.Now
	}
	if c.sleep == nil {
		c.sleep = time.Sleep
	}

	c.registerHandlers()
	return c
}

// registerHandlers installs the control-topic handlers on the bus. The bus
// re-subscribes registered topics at the broker on every (re)connect.
func (c *Controller) registerHandlers() {
	c.bus.Subscribe(c.topics.Config, func(_ string, payload []byte) {
		c.HandleConfigMessage(payload)
	})
	c.bus.Subscribe(c.topics.Unlock, func(_ string, payload []byte) {
		c.HandleUnlockMessage(payload)
	})
	if c.onUpdate != nil {
		c.bus.Subscribe(c.topics.Update, func(_ string, payload []byte) {
			c.handleUpdateMessage(payload)
		})
	}
}

// Config returns the current configuration.
func (c *Controller) Config() Config {
	return c.cfg
}

// Run drives the state machine until stopped or restarted. Blocking.
// Nothing inside the loop body terminates the process: connectivity and
// actuation failures are logged and retried on a later iteration.
func (c *Controller) Run() {
	c.startTime = c.now()
	c.lastHeartbeat = c.startTime
	c.running.Store(true)

	log.Printf("controller: started (debounce=%v autoUnlock=%v restartAfter=%v)",
		c.cfg.CallDebounce, c.cfg.AutoUnlock, c.cfg.RestartAfter)

	for c.running.Load() {
		if c.watchdog != nil {
			c.watchdog.Feed()
		}

		if !c.EnsureLinkConnected() {
			c.updateConnectivity()
			c.sleep(c.reconnectPause)
			continue
		}
		if !c.EnsureBusConnected() {
			c.updateConnectivity()
			c.sleep(c.reconnectPause)
			continue
		}
		c.updateConnectivity()

		c.ProcessCallDetection()

		if !c.bus.CheckPending() {
			log.Printf("controller: bus connection dropped, will reconnect")
		}

		c.checkHeartbeat()

		if c.ShouldRestart() {
			log.Printf("controller: uptime %v reached restart ceiling %v",
				c.now().Sub(c.startTime), c.cfg.RestartAfter)
			c.PublishSystemEvent("SHUTDOWN", "restart threshold")
			c.Restart()
			continue
		}

		c.sleep(c.pollInterval)
	}

	log.Printf("controller: stopped")
}

// Stop requests a graceful stop. Idempotent and cooperative: the flag is
// observed at the top of the next loop iteration, an in-flight unlock
// sequence still completes. Safe to call from a signal handler goroutine.
func (c *Controller) Stop() {
	c.running.Store(false)
}

// EnsureLinkConnected returns current link connectivity, attempting one
// reconnect if the link is down. Never raises; the caller retries later.
func (c *Controller) EnsureLinkConnected() bool {
	if c.link.IsConnected() {
		return true
	}
	log.Printf("wifi: link down, reconnecting to %q", c.ssid)
	if c.tracker != nil {
		c.tracker.ReconnectAttempted()
	}
	return c.link.Connect(c.ssid, c.password)
}

// EnsureBusConnected returns current bus connectivity, attempting one
// reconnect if disconnected. On reconnect success the bus has re-subscribed
// every control topic, and a configuration request is published so external
// config state is requested rather than assumed. When already connected
// this performs no side effects.
func (c *Controller) EnsureBusConnected() bool {
	if c.bus.IsConnected() {
		return true
	}
	log.Printf("mqtt: bus down, reconnecting")
	if c.tracker != nil {
		c.tracker.ReconnectAttempted()
	}
	if !c.bus.Connect() {
		return false
	}
	if err := c.bus.Publish(c.topics.ConfigRequest, []byte(mqtt.MessageConfigRequest)); err != nil {
		log.Printf("mqtt: config request publish failed: %v", err)
	}
	if !c.startupSent {
		c.startupSent = true
		c.PublishSystemEvent("STARTUP", "")
	}
	return true
}

// ShouldRestart reports whether uptime has reached the restart ceiling.
// Always false before Run sets the start time.
func (c *Controller) ShouldRestart() bool {
	if c.startTime.IsZero() {
		return false
	}
	return c.now().Sub(c.startTime) >= c.cfg.RestartAfter
}

// Restart invokes the hardware reset capability when available, otherwise
// degrades to a graceful Stop.
func (c *Controller) Restart() {
	if c.resetter != nil {
		log.Printf("controller: hardware reset")
		c.resetter.Reset()
		return
	}
	log.Printf("controller: no reset capability, stopping instead")
	c.Stop()
}

// PublishSystemEvent publishes a lifecycle event with a full status
// snapshot on the system topic. Failures are logged, never fatal.
func (c *Controller) PublishSystemEvent(event, reason string) {
	var payload []byte
	if c.tracker != nil {
		payload = status.FormatStatusEvent(c.tracker.Snapshot(), event, reason)
	} else {
		var err error
		payload, err = mqtt.FormatSystemPayload(mqtt.SystemEvent{
			Timestamp: c.now(),
			Event:     event,
			Reason:    reason,
		})
		if err != nil {
			log.Printf("mqtt: format system event: %v", err)
			return
		}
	}
	if err := c.bus.Publish(c.topics.System, payload); err != nil {
		log.Printf("mqtt: system event %s publish failed: %v", event, err)
	}
}

func (c *Controller) updateConnectivity() {
	if c.tracker == nil {
		return
	}
	c.tracker.SetConnectivity(c.link.IsConnected(), c.bus.IsConnected())
	c.tracker.SetAutoUnlock(c.cfg.AutoUnlock)
}

func (c *Controller) checkHeartbeat() {
	if c.heartbeatInterval <= 0 {
		return
	}
	now := c.now()
	if now.Sub(c.lastHeartbeat) < c.heartbeatInterval {
		return
	}
	c.lastHeartbeat = now
	c.PublishSystemEvent("HEARTBEAT", "")
}
