package mqtt

import (
	"encoding/json"
	"testing"
	"time"
)

func TestFormatSystemPayload(t *testing.T) {
	event := SystemEvent{
		Timestamp: time.Date(2026, 3, 15, 10, 30, 0, 0, time.UTC),
		Event:     "SHUTDOWN",
		Reason:    "SIGTERM",
	}

	data, err := FormatSystemPayload(event)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var parsed SystemPayload
	if err := json.Unmarshal(data, &parsed); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if parsed.System.Event != "SHUTDOWN" {
		t.Errorf("event: got %q", parsed.System.Event)
	}
	if parsed.System.Reason != "SIGTERM" {
		t.Errorf("reason: got %q", parsed.System.Reason)
	}
	if parsed.System.Timestamp != "2026-03-15T10:30:00Z" {
		t.Errorf("timestamp: got %q", parsed.System.Timestamp)
	}
}

func TestFormatSystemPayloadOmitsEmptyReason(t *testing.T) {
	data, err := FormatSystemPayload(SystemEvent{
		Timestamp: time.Now(),
		Event:     "HEARTBEAT",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var raw map[string]map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if _, present := raw["system"]["reason"]; present {
		t.Error("empty reason should be omitted")
	}
}

func TestFormatSystemPayloadRawPassthrough(t *testing.T) {
	raw := []byte(`{"status":{"event":"STARTUP"}}`)
	data, err := FormatSystemPayload(SystemEvent{RawPayload: raw})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(data) != string(raw) {
		t.Errorf("raw payload must pass through unchanged, got %s", data)
	}
}

func TestFakeBusDispatchOrder(t *testing.T) {
	bus := NewFakeBus()
	bus.Connected = true

	var got []string
	bus.Subscribe("a", func(_ string, payload []byte) {
		got = append(got, "a:"+string(payload))
	})
	bus.Subscribe("b", func(_ string, payload []byte) {
		got = append(got, "b:"+string(payload))
	})

	bus.Deliver("a", []byte("1"))
	bus.Deliver("b", []byte("2"))
	bus.Deliver("a", []byte("3"))

	if !bus.CheckPending() {
		t.Fatal("expected CheckPending to report connected")
	}

	want := []string{"a:1", "b:2", "a:3"}
	if len(got) != len(want) {
		t.Fatalf("expected %d dispatches, got %d: %v", len(want), len(got), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("dispatch %d: expected %q, got %q", i, want[i], got[i])
		}
	}

	// Drained: nothing to dispatch on the second pass.
	got = nil
	bus.CheckPending()
	if len(got) != 0 {
		t.Errorf("second CheckPending must dispatch nothing, got %v", got)
	}
}

func TestFakeBusUnsubscribedTopicDropped(t *testing.T) {
	bus := NewFakeBus()
	bus.Connected = true

	called := false
	bus.Subscribe("known", func(string, []byte) { called = true })
	bus.Deliver("unknown", []byte("x"))

	bus.CheckPending()
	if called {
		t.Error("message on an unsubscribed topic must not invoke other handlers")
	}
}

func TestFakeBusDropOnCheck(t *testing.T) {
	bus := NewFakeBus()
	bus.Connected = true
	bus.DropOnCheck = true

	if bus.CheckPending() {
		t.Error("expected CheckPending to report the drop")
	}
	if bus.IsConnected() {
		t.Error("connection should be down after the drop")
	}
}
