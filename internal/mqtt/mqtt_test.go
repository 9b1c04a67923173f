package mqtt

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/thermolearn/home-agent/internal/presence"
)

func TestFormatPayload(t *testing.T) {
	event := presence.Event{
		Timestamp:      time.Date(2026, 3, 1, 9, 5, 30, 0, time.UTC),
		Type:           presence.EventOut,
		DistanceMeters: 137.4,
		AtHome:         false,
	}

	payload, err := FormatPayload(event)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var parsed Payload
	if err := json.Unmarshal(payload, &parsed); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}

	if parsed.Presence.Timestamp != "2026-03-01T09:05:30Z" {
		t.Errorf("unexpected timestamp: %s", parsed.Presence.Timestamp)
	}
	if parsed.Presence.Event != "OUT" {
		t.Errorf("unexpected event: %s", parsed.Presence.Event)
	}
	if parsed.Presence.DistanceMeters != 137.4 {
		t.Errorf("unexpected distance: %v", parsed.Presence.DistanceMeters)
	}
	if parsed.Presence.AtHome {
		t.Error("expected at_home false")
	}
}

func TestFormatPayloadInEvent(t *testing.T) {
	event := presence.Event{
		Timestamp:      time.Date(2026, 3, 1, 18, 0, 0, 0, time.UTC),
		Type:           presence.EventIn,
		DistanceMeters: 12.0,
		AtHome:         true,
	}

	payload, err := FormatPayload(event)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var parsed Payload
	if err := json.Unmarshal(payload, &parsed); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if parsed.Presence.Event != "IN" {
		t.Errorf("unexpected event: %s", parsed.Presence.Event)
	}
	if !parsed.Presence.AtHome {
		t.Error("expected at_home true")
	}
}

func TestFormatSystemPayload(t *testing.T) {
	event := SystemEvent{
		Timestamp: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
		Event:     "SHUTDOWN",
		Reason:    "SIGTERM",
	}

	payload, err := FormatSystemPayload(event)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var parsed SystemPayload
	if err := json.Unmarshal(payload, &parsed); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}

	if parsed.System.Event != "SHUTDOWN" {
		t.Errorf("unexpected event: %s", parsed.System.Event)
	}
	if parsed.System.Reason != "SIGTERM" {
		t.Errorf("unexpected reason: %s", parsed.System.Reason)
	}
	if parsed.System.Timestamp != "2026-03-01T09:00:00Z" {
		t.Errorf("unexpected timestamp: %s", parsed.System.Timestamp)
	}
}

func TestFormatSystemPayloadOmitsEmptyReason(t *testing.T) {
	event := SystemEvent{
		Timestamp: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
		Event:     "HEARTBEAT",
	}

	payload, err := FormatSystemPayload(event)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var raw map[string]map[string]any
	if err := json.Unmarshal(payload, &raw); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if _, present := raw["system"]["reason"]; present {
		t.Error("empty reason should be omitted")
	}
}

func TestFormatSystemPayloadRawPassthrough(t *testing.T) {
	raw := []byte(`{"system":{"event":"STARTUP","custom":true}}`)
	event := SystemEvent{RawPayload: raw}

	payload, err := FormatSystemPayload(event)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(payload) != string(raw) {
		t.Errorf("raw payload should pass through unchanged, got %s", payload)
	}
}

func TestFakePublisherRecordsEvents(t *testing.T) {
	fake := NewFakePublisher()

	event := presence.Event{
		Timestamp:      time.Now(),
		Type:           presence.EventOut,
		DistanceMeters: 50,
	}
	if err := fake.Publish(event); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(fake.Events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(fake.Events))
	}
	if fake.Events[0].Type != presence.EventOut {
		t.Errorf("unexpected event type: %s", fake.Events[0].Type)
	}
	if len(fake.Payloads) != 1 {
		t.Errorf("expected 1 payload, got %d", len(fake.Payloads))
	}
}

func TestFakePublisherError(t *testing.T) {
	fake := NewFakePublisher()
	fake.PublishError = errors.New("broker down")

	if err := fake.Publish(presence.Event{}); err == nil {
		t.Error("expected error")
	}
	if len(fake.Events) != 0 {
		t.Error("failed publish should not record the event")
	}
}
