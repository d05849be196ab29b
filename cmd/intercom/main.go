// Command intercom runs the door-intercom controller: it watches the call
// detector, relays notifications over MQTT, executes remote unlock commands,
// and can hand the process over to the remote update listener.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"os/exec"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/sweeney/intercom-controller/internal/controller"
	"github.com/sweeney/intercom-controller/internal/gpio"
	"github.com/sweeney/intercom-controller/internal/mqtt"
	"github.com/sweeney/intercom-controller/internal/status"
	"github.com/sweeney/intercom-controller/internal/updater"
	"github.com/sweeney/intercom-controller/internal/wifi"
)

// Secrets come from the environment, not flags, so they never show up in ps.
const (
	envWifiPassword = "INTERCOM_WIFI_PASSWORD"
	envMQTTPassword = "INTERCOM_MQTT_PASSWORD"
	envUpdateToken  = "INTERCOM_UPDATE_TOKEN"
)

func main() {
	broker := flag.String("broker", "tcp://192.168.1.200:1883", "MQTT broker address")
	clientID := flag.String("client-id", "intercom", "MQTT client ID")
	mqttUser := flag.String("mqtt-user", "", "MQTT username (password via "+envMQTTPassword+")")
	topicPrefix := flag.String("topic-prefix", "pyntercom", "MQTT topic prefix")
	ssid := flag.String("ssid", "", "WiFi SSID (password via "+envWifiPassword+")")
	iface := flag.String("iface", "wlan0", "Wireless interface name")
	poll := flag.Duration("poll", 100*time.Millisecond, "Main loop polling interval")
	debounce := flag.Duration("debounce", controller.DefaultCallDebounce, "Call debounce window")
	convDelay := flag.Duration("conversation-delay", controller.DefaultConversationOpenDelay, "Delay between opening conversation and unlocking")
	unlockDuration := flag.Duration("unlock-duration", controller.DefaultDoorUnlockDuration, "How long the door stays unlocked")
	restartAfter := flag.Duration("restart-after", controller.DefaultRestartAfter, "Uptime ceiling before a scheduled restart")
	heartbeat := flag.Duration("heartbeat", 15*time.Minute, "Heartbeat interval (0 to disable)")
	autoUnlock := flag.Bool("auto-unlock", false, "Unlock automatically on every call")
	pinCall := flag.Int("pin-call", gpio.PinCallDetector, "BCM pin number for the call detector")
	pinConv := flag.Int("pin-conv", gpio.PinConversationRelay, "BCM pin number for the conversation relay")
	pinDoor := flag.Int("pin-door", gpio.PinDoorRelay, "BCM pin number for the door relay")
	updatePort := flag.Int("update-port", 8266, "Update listener TCP port")
	updateDir := flag.String("update-dir", ".", "Base directory for uploaded files")
	updateTimeout := flag.Duration("update-timeout", 5*time.Minute, "Update listener idle timeout")
	allowReboot := flag.Bool("allow-reboot", false, "Reboot the host for scheduled restarts (requires systemctl)")

	flag.Parse()

	if err := run(runConfig{
		broker:         *broker,
		clientID:       *clientID,
		mqttUser:       *mqttUser,
		topicPrefix:    *topicPrefix,
		ssid:           *ssid,
		iface:          *iface,
		poll:           *poll,
		debounce:       *debounce,
		convDelay:      *convDelay,
		unlockDuration: *unlockDuration,
		restartAfter:   *restartAfter,
		heartbeat:      *heartbeat,
		autoUnlock:     *autoUnlock,
		pinCall:        *pinCall,
		pinConv:        *pinConv,
		pinDoor:        *pinDoor,
		updatePort:     *updatePort,
		updateDir:      *updateDir,
		updateTimeout:  *updateTimeout,
		allowReboot:    *allowReboot,
	}); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}

type runConfig struct {
	broker         string
	clientID       string
	mqttUser       string
	topicPrefix    string
	ssid           string
	iface          string
	poll           time.Duration
	debounce       time.Duration
	convDelay      time.Duration
	unlockDuration time.Duration
	restartAfter   time.Duration
	heartbeat      time.Duration
	autoUnlock     bool
	pinCall        int
	pinConv        int
	pinDoor        int
	updatePort     int
	updateDir      string
	updateTimeout  time.Duration
	allowReboot    bool
}

func run(rc runConfig) error {
	actuator, err := gpio.NewRealActuator(rc.pinCall, rc.pinConv, rc.pinDoor)
	if err != nil {
		return fmt.Errorf("init gpio: %w", err)
	}
	defer actuator.Close()

	link := wifi.NewRealLink(rc.iface)
	bus := mqtt.NewRealBus(rc.broker, rc.clientID, rc.mqttUser, os.Getenv(envMQTTPassword))
	defer bus.Close()

	tracker := status.NewTracker(time.Now(), status.Config{
		PollMs:       rc.poll.Milliseconds(),
		DebounceSec:  int64(rc.debounce.Seconds()),
		Broker:       rc.broker,
		UpdatePort:   rc.updatePort,
		SSID:         rc.ssid,
		RestartAfter: int64(rc.restartAfter.Seconds()),
	})

	var resetter controller.Resetter
	if rc.allowReboot {
		resetter = rebootResetter{}
	}

	cfg := controller.DefaultConfig()
	cfg.AutoUnlock = rc.autoUnlock
	cfg.RestartAfter = rc.restartAfter
	cfg.CallDebounce = rc.debounce
	cfg.ConversationOpenDelay = rc.convDelay
	cfg.DoorUnlockDuration = rc.unlockDuration

	updateRequested := make(chan struct{}, 1)
	ctrl := controller.New(controller.Options{
		Link:     link,
		Bus:      bus,
		Actuator: actuator,
		SSID:     rc.ssid,
		Password: os.Getenv(envWifiPassword),
		Topics:   topicsWithPrefix(rc.topicPrefix),
		Config:   cfg,
		Tracker:  tracker,
		Resetter: resetter,
		OnUpdateRequested: func() {
			select {
			case updateRequested <- struct{}{}:
			default:
			}
		},
		PollInterval:      rc.poll,
		HeartbeatInterval: rc.heartbeat,
	})

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		s := <-sigCh
		log.Printf("received %v, shutting down", s)
		ctrl.Stop()
	}()

	log.Printf("started: broker=%s ssid=%q poll=%v debounce=%v", rc.broker, rc.ssid, rc.poll, rc.debounce)

	ctrl.Run()

	select {
	case <-updateRequested:
	default:
		ctrl.PublishSystemEvent("SHUTDOWN", "stop requested")
		return nil
	}

	// Update-listener mode: takes over the process, then restarts.
	token := os.Getenv(envUpdateToken)
	if token == "" {
		log.Printf("updater: %s not set, refusing to start update listener", envUpdateToken)
		return nil
	}
	srv := &updater.Server{
		Token:       token,
		Dir:         rc.updateDir,
		IdleTimeout: rc.updateTimeout,
	}
	if err := srv.ListenAndServe(fmt.Sprintf(":%d", rc.updatePort)); err != nil {
		log.Printf("updater: %v", err)
	}

	log.Printf("update session complete, restarting in 3s")
	time.Sleep(3 * time.Second)
	if resetter != nil {
		resetter.Reset()
	}
	// Without a hardware reset capability we exit and let the service
	// supervisor restart the process on the freshly uploaded files.
	return nil
}

// topicsWithPrefix rewrites the default topic names under the given prefix.
func topicsWithPrefix(prefix string) controller.Topics {
	sub := func(topic string) string {
		return prefix + strings.TrimPrefix(topic, "pyntercom")
	}
	return controller.Topics{
		Config:        sub(mqtt.TopicConfig),
		ConfigRequest: sub(mqtt.TopicConfigRequest),
		Unlock:        sub(mqtt.TopicUnlock),
		CallDetected:  sub(mqtt.TopicCallDetected),
		Update:        sub(mqtt.TopicUpdate),
		System:        sub(mqtt.TopicSystem),
	}
}

// rebootResetter restarts the host via systemd. Stands in for the
// microcontroller's hardware reset on a Linux board.
type rebootResetter struct{}

func (rebootResetter) Reset() {
	log.Printf("rebooting host")
	if err := exec.Command("systemctl", "reboot").Run(); err != nil {
		log.Printf("reboot failed: %v", err)
	}
}
