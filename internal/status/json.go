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
	LoggedIn      bool       `json:"logged_in"`
	FirstName     string     `json:"first_name,omitempty"`
	AtHome        bool       `json:"at_home"`
	DistanceM     *float64   `json:"distance_m,omitempty"`
	HomeSet       bool       `json:"home_set"`
	Pairing       PairJSON   `json:"pairing"`
	UptimeSeconds int64      `json:"uptime_seconds"`
	StartTime     string     `json:"start_time"`
	Timestamp     string     `json:"timestamp"`
	MQTT          MQTTStatus `json:"mqtt"`
	Counts        CountsJSON `json:"event_counts"`
	Config        ConfigJSON `json:"config"`
}

// PairJSON reports pairing state.
type PairJSON struct {
	State        string `json:"state"`
	ThermostatID string `json:"thermostat_id,omitempty"`
}

// MQTTStatus reports MQTT connection state.
type MQTTStatus struct {
	Connected bool   `json:"connected"`
	Broker    string `json:"broker"`
}

// CountsJSON is the JSON representation of presence event counts.
type CountsJSON struct {
	In  int `json:"in"`
	Out int `json:"out"`
}

// ConfigJSON is the JSON representation of daemon config.
type ConfigJSON struct {
	SampleMs      int64  `json:"sample_ms"`
	TelemetryMs   int64  `json:"telemetry_ms"`
	PollMs        int64  `json:"poll_ms"`
	PairTimeoutMs int64  `json:"pair_timeout_ms"`
	Broker        string `json:"broker"`
	HTTPAddr      string `json:"http_addr"`
	APIBase       string `json:"api_base"`
}

func buildInner(snap Snapshot) StatusInner {
	inner := StatusInner{
		LoggedIn:      snap.LoggedIn,
		FirstName:     snap.FirstName,
		AtHome:        snap.AtHome,
		HomeSet:       snap.HomeSet,
		Pairing:       PairJSON{State: string(snap.PairingState), ThermostatID: snap.ThermostatID},
		UptimeSeconds: int64(snap.Uptime().Truncate(time.Second).Seconds()),
		StartTime:     snap.StartTime.UTC().Format(time.RFC3339),
		Timestamp:     snap.Now.UTC().Format(time.RFC3339),
		MQTT:          MQTTStatus{Connected: snap.MQTTConnected, Broker: snap.Config.Broker},
		Counts: CountsJSON{
			In:  snap.Counts.In,
			Out: snap.Counts.Out,
		},
		Config: ConfigJSON{
			SampleMs:      snap.Config.SampleMs,
			TelemetryMs:   snap.Config.TelemetryMs,
			PollMs:        snap.Config.PollMs,
			PairTimeoutMs: snap.Config.PairTimeoutMs,
			Broker:        snap.Config.Broker,
			HTTPAddr:      snap.Config.HTTPAddr,
			APIBase:       snap.Config.APIBase,
		},
	}
	if snap.HaveDistance {
		d := snap.Distance
		inner.DistanceM = &d
	}
	return inner
}

// FormatJSON returns the JSON status for the web endpoint (no event/reason).
func FormatJSON(snap Snapshot) []byte {
	inner := buildInner(snap)
	data, _ := json.MarshalIndent(StatusJSON{Status: inner}, "", "  ")
	return data
}

// FormatStatusEvent returns the JSON status for an MQTT system event.
func FormatStatusEvent(snap Snapshot, event, reason string) []byte {
	inner := buildInner(snap)
	inner.Event = event
	inner.Reason = reason

	data, _ := json.Marshal(StatusJSON{Status: inner})
	return data
}
