package status

import (
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/thermolearn/home-agent/internal/pairing"
	"github.com/thermolearn/home-agent/internal/presence"
)

func TestNewTracker(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	cfg := Config{SampleMs: 10000, PollMs: 5000, Broker: "tcp://localhost:1883", HTTPAddr: ":8090"}
	tr := NewTracker(start, cfg)

	snap := tr.Snapshot()
	if !snap.StartTime.Equal(start) {
		t.Errorf("StartTime: got %v, want %v", snap.StartTime, start)
	}
	if snap.Config.SampleMs != 10000 {
		t.Errorf("Config.SampleMs: got %d, want 10000", snap.Config.SampleMs)
	}
	if !snap.AtHome {
		t.Error("expected AtHome=true initially")
	}
	if snap.LoggedIn {
		t.Error("expected LoggedIn=false initially")
	}
	if snap.PairingState != pairing.StateIdle {
		t.Errorf("expected IDLE pairing state, got %s", snap.PairingState)
	}
	if snap.MQTTConnected {
		t.Error("expected MQTTConnected=false initially")
	}
}

func TestUpdatePresence(t *testing.T) {
	tr := NewTracker(time.Now(), Config{})

	tr.UpdatePresence(false, 312.7, true, presence.EventCounts{In: 2, Out: 3})

	snap := tr.Snapshot()
	if snap.AtHome {
		t.Error("expected AtHome=false")
	}
	if snap.Distance != 312.7 || !snap.HaveDistance {
		t.Errorf("Distance: got %v haveDistance=%v", snap.Distance, snap.HaveDistance)
	}
	if snap.Counts.In != 2 || snap.Counts.Out != 3 {
		t.Errorf("Counts: got %+v", snap.Counts)
	}
}

func TestSetSessionAndPairing(t *testing.T) {
	tr := NewTracker(time.Now(), Config{})

	tr.SetSession(true, "Ada")
	tr.SetPairing(pairing.StateConfirming, "thermo-42")
	tr.SetHomeSet(true)

	snap := tr.Snapshot()
	if !snap.LoggedIn || snap.FirstName != "Ada" {
		t.Errorf("session: %+v", snap)
	}
	if snap.PairingState != pairing.StateConfirming || snap.ThermostatID != "thermo-42" {
		t.Errorf("pairing: %s %s", snap.PairingState, snap.ThermostatID)
	}
	if !snap.HomeSet {
		t.Error("expected HomeSet=true")
	}
}

func TestSetMQTTConnected(t *testing.T) {
	tr := NewTracker(time.Now(), Config{})

	tr.SetMQTTConnected(true)
	if !tr.Snapshot().MQTTConnected {
		t.Error("expected MQTTConnected=true")
	}

	tr.SetMQTTConnected(false)
	if tr.Snapshot().MQTTConnected {
		t.Error("expected MQTTConnected=false")
	}
}

func TestSnapshotUptime(t *testing.T) {
	start := time.Now().Add(-90 * time.Second)
	tr := NewTracker(start, Config{})

	up := tr.Snapshot().Uptime()
	if up < 89*time.Second || up > 95*time.Second {
		t.Errorf("unexpected uptime %v", up)
	}
}

func TestConcurrentAccess(t *testing.T) {
	tr := NewTracker(time.Now(), Config{})

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				tr.UpdatePresence(n%2 == 0, float64(j), true, presence.EventCounts{In: j})
			}
		}(i)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				_ = tr.Snapshot()
			}
		}()
	}
	wg.Wait()
}

func TestFormatJSON(t *testing.T) {
	start := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	cfg := Config{SampleMs: 10000, TelemetryMs: 120000, PollMs: 5000, PairTimeoutMs: 30000, Broker: "tcp://broker:1883", HTTPAddr: ":8090", APIBase: "http://api"}
	tr := NewTracker(start, cfg)
	tr.SetSession(true, "Ada")
	tr.UpdatePresence(false, 47.25, true, presence.EventCounts{In: 1, Out: 2})

	var parsed StatusJSON
	if err := json.Unmarshal(FormatJSON(tr.Snapshot()), &parsed); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}

	inner := parsed.Status
	if !inner.LoggedIn || inner.FirstName != "Ada" {
		t.Errorf("session fields: %+v", inner)
	}
	if inner.AtHome {
		t.Error("expected at_home false")
	}
	if inner.DistanceM == nil || *inner.DistanceM != 47.25 {
		t.Errorf("distance: %v", inner.DistanceM)
	}
	if inner.Counts.In != 1 || inner.Counts.Out != 2 {
		t.Errorf("counts: %+v", inner.Counts)
	}
	if inner.Config.PollMs != 5000 {
		t.Errorf("config poll_ms: %d", inner.Config.PollMs)
	}
	if inner.Event != "" {
		t.Errorf("web JSON should not carry an event, got %q", inner.Event)
	}
}

func TestFormatJSONOmitsDistanceBeforeFirstSample(t *testing.T) {
	tr := NewTracker(time.Now(), Config{})

	var raw map[string]map[string]any
	if err := json.Unmarshal(FormatJSON(tr.Snapshot()), &raw); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if _, present := raw["status"]["distance_m"]; present {
		t.Error("distance_m should be omitted before the first sample")
	}
}

func TestFormatStatusEvent(t *testing.T) {
	tr := NewTracker(time.Now(), Config{})

	var parsed StatusJSON
	if err := json.Unmarshal(FormatStatusEvent(tr.Snapshot(), "SHUTDOWN", "SIGTERM"), &parsed); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if parsed.Status.Event != "SHUTDOWN" || parsed.Status.Reason != "SIGTERM" {
		t.Errorf("event fields: %+v", parsed.Status)
	}
}
