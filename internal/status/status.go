// Package status provides a thread-safe status tracker for the home-agent
// daemon. It is read by HTTP handlers and the MQTT lifecycle events.
package status

import (
	"sync"
	"time"

	"github.com/thermolearn/home-agent/internal/pairing"
	"github.com/thermolearn/home-agent/internal/presence"
)

// Config contains daemon configuration for display.
type Config struct {
	SampleMs      int64
	TelemetryMs   int64
	PollMs        int64
	PairTimeoutMs int64
	Broker        string
	HTTPAddr      string
	APIBase       string
}

// Snapshot is a point-in-time view of daemon state.
// It is a value type — safe to use after the lock is released.
type Snapshot struct {
	LoggedIn      bool
	FirstName     string
	AtHome        bool
	Distance      float64
	HaveDistance  bool
	HomeSet       bool
	Counts        presence.EventCounts
	PairingState  pairing.State
	ThermostatID  string
	StartTime     time.Time
	Now           time.Time
	MQTTConnected bool
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
			StartTime:    startTime,
			Config:       cfg,
			AtHome:       true,
			PairingState: pairing.StateIdle,
		},
	}
}

// SetSession sets the login identity shown on the status page.
func (t *Tracker) SetSession(loggedIn bool, firstName string) {
	t.mu.Lock()
	t.snap.LoggedIn = loggedIn
	t.snap.FirstName = firstName
	t.mu.Unlock()
}

// UpdatePresence sets the presence view.
// Called from the presence loop on every sample.
func (t *Tracker) UpdatePresence(atHome bool, distance float64, haveDistance bool, counts presence.EventCounts) {
	t.mu.Lock()
	t.snap.AtHome = atHome
	t.snap.Distance = distance
	t.snap.HaveDistance = haveDistance
	t.snap.Counts = counts
	t.mu.Unlock()
}

// SetHomeSet records whether a home location is committed.
func (t *Tracker) SetHomeSet(set bool) {
	t.mu.Lock()
	t.snap.HomeSet = set
	t.mu.Unlock()
}

// SetPairing sets the pairing view.
func (t *Tracker) SetPairing(state pairing.State, thermostatID string) {
	t.mu.Lock()
	t.snap.PairingState = state
	t.snap.ThermostatID = thermostatID
	t.mu.Unlock()
}

// SetMQTTConnected sets the MQTT connection status.
func (t *Tracker) SetMQTTConnected(connected bool) {
	t.mu.Lock()
	t.snap.MQTTConnected = connected
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
