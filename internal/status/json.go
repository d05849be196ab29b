package status

import (
	"encoding/json"
	"time"
)

// StatusJSON is the top-level JSON envelope for status output.
type StatusJSON struct {
	Status StatusInner `json:"status"`
}

// StatusInner contains the status details.
type StatusInner struct {
	Event         string     `json:"event,omitempty"`
	Reason        string     `json:"reason,omitempty"`
	Link          bool       `json:"link_connected"`
	AutoUnlock    bool       `json:"auto_unlock"`
	UptimeSeconds int64      `json:"uptime_seconds"`
	StartTime     string     `json:"start_time"`
	Timestamp     string     `json:"timestamp"`
	LastCall      string     `json:"last_call,omitempty"`
	MQTT          MQTTStatus `json:"mqtt"`
	Counts        CountsJSON `json:"event_counts"`
	Config        ConfigJSON `json:"config"`
}

// MQTTStatus reports MQTT connection state.
type MQTTStatus struct {
	Connected bool   `json:"connected"`
	Broker    string `json:"broker"`
}

// CountsJSON is the JSON representation of event counts.
type CountsJSON struct {
	CallsDetected int `json:"calls_detected"`
	Unlocks       int `json:"unlocks"`
	Reconnects    int `json:"reconnects"`
}

// ConfigJSON is the JSON representation of daemon config.
type ConfigJSON struct {
	PollMs       int64  `json:"poll_ms"`
	DebounceSec  int64  `json:"debounce_sec"`
	Broker       string `json:"broker"`
	UpdatePort   int    `json:"update_port"`
	SSID         string `json:"ssid,omitempty"`
	RestartAfter int64  `json:"restart_after_sec"`
}

func buildInner(snap Snapshot) StatusInner {
	inner := StatusInner{
		Link:          snap.LinkConnected,
		AutoUnlock:    snap.AutoUnlock,
		UptimeSeconds: int64(snap.Uptime().Truncate(time.Second).Seconds()),
		StartTime:     snap.StartTime.UTC().Format(time.RFC3339),
		Timestamp:     snap.Now.UTC().Format(time.RFC3339),
		MQTT:          MQTTStatus{Connected: snap.BusConnected, Broker: snap.Config.Broker},
		Counts: CountsJSON{
			CallsDetected: snap.Counts.CallsDetected,
			Unlocks:       snap.Counts.Unlocks,
			Reconnects:    snap.Counts.Reconnects,
		},
		Config: ConfigJSON{
			PollMs:       snap.Config.PollMs,
			DebounceSec:  snap.Config.DebounceSec,
			Broker:       snap.Config.Broker,
			UpdatePort:   snap.Config.UpdatePort,
			SSID:         snap.Config.SSID,
			RestartAfter: snap.Config.RestartAfter,
		},
	}
	if !snap.LastCall.IsZero() {
		inner.LastCall = snap.LastCall.UTC().Format(time.RFC3339)
	}
	return inner
}

// FormatStatusEvent returns the JSON status for an MQTT system event.
func FormatStatusEvent(snap Snapshot, event, reason string) []byte {
	inner := buildInner(snap)
	inner.Event = event
	inner.Reason = reason

	data, _ := json.Marshal(StatusJSON{Status: inner})
	return data
}
