package api

import (
	"context"
	"sync"
	"time"
)

// LogEntry records a SaveLog call.
type LogEntry struct {
	UserID    int64
	EventType string
	Timestamp time.Time
}

// DistanceEntry records an UpdateDistanceFromHome call.
type DistanceEntry struct {
	UserID int64
	Meters int
}

// HomeEntry records an UpdateHomeLocation call.
type HomeEntry struct {
	UserID   int64
	Lat, Lon float64
}

// FakeCloud is an in-memory backend double. Scripted fingerprint
// responses are consumed in order; the last one repeats once the script
// runs out.
type FakeCloud struct {
	mu sync.Mutex

	// Auth configures the Authenticate response.
	Auth AuthResult
	// AuthError, if set, makes Authenticate fail.
	AuthError error

	// Fingerprints scripts ThermostatFingerprint responses.
	Fingerprints []string
	// FingerprintError, if set, makes every fingerprint poll fail.
	FingerprintError error
	fingerprintIdx   int

	// Ready configures IsReadyToPair.
	Ready bool
	// PairError, if set, makes PairThermostat fail.
	PairError error
	// LogError, if set, makes SaveLog fail.
	LogError error
	// DistanceError, if set, makes UpdateDistanceFromHome fail.
	DistanceError error

	PairCalls   []string
	UnpairCalls []string
	Logs        []LogEntry
	Distances   []DistanceEntry
	Homes       []HomeEntry
}

// NewFakeCloud creates a FakeCloud with a reasonable auth identity.
func NewFakeCloud() *FakeCloud {
	return &FakeCloud{
		Auth: AuthResult{Token: "fake-token", UserID: 7, FirstName: "Ada"},
	}
}

func (f *FakeCloud) Authenticate(_ context.Context, _, _ string) (AuthResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.AuthError != nil {
		return AuthResult{}, f.AuthError
	}
	return f.Auth, nil
}

func (f *FakeCloud) ThermostatFingerprint(_ context.Context, _ string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.FingerprintError != nil {
		return "", f.FingerprintError
	}
	if len(f.Fingerprints) == 0 {
		return "", nil
	}
	idx := f.fingerprintIdx
	if idx >= len(f.Fingerprints) {
		idx = len(f.Fingerprints) - 1
	}
	f.fingerprintIdx++
	return f.Fingerprints[idx], nil
}

func (f *FakeCloud) IsReadyToPair(_ context.Context, _ int64, _ string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Ready, nil
}

func (f *FakeCloud) PairThermostat(_ context.Context, _ int64, thermostatID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.PairError != nil {
		return f.PairError
	}
	f.PairCalls = append(f.PairCalls, thermostatID)
	return nil
}

func (f *FakeCloud) UnpairThermostat(_ context.Context, _ int64, thermostatID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.UnpairCalls = append(f.UnpairCalls, thermostatID)
	return nil
}

func (f *FakeCloud) SaveLog(_ context.Context, userID int64, eventType string, ts time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.LogError != nil {
		return f.LogError
	}
	f.Logs = append(f.Logs, LogEntry{UserID: userID, EventType: eventType, Timestamp: ts})
	return nil
}

func (f *FakeCloud) UpdateDistanceFromHome(_ context.Context, userID int64, meters int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.DistanceError != nil {
		return f.DistanceError
	}
	f.Distances = append(f.Distances, DistanceEntry{UserID: userID, Meters: meters})
	return nil
}

func (f *FakeCloud) UpdateHomeLocation(_ context.Context, userID int64, lat, lon float64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Homes = append(f.Homes, HomeEntry{UserID: userID, Lat: lat, Lon: lon})
	return nil
}

// SetFingerprints replaces the fingerprint script and rewinds it.
func (f *FakeCloud) SetFingerprints(fps ...string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Fingerprints = fps
	f.fingerprintIdx = 0
}

// PairCallsSnapshot returns a copy of recorded pair requests.
func (f *FakeCloud) PairCallsSnapshot() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.PairCalls))
	copy(out, f.PairCalls)
	return out
}

// LogSnapshot returns a copy of recorded SaveLog calls.
func (f *FakeCloud) LogSnapshot() []LogEntry {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]LogEntry, len(f.Logs))
	copy(out, f.Logs)
	return out
}

// DistanceSnapshot returns a copy of recorded distance updates.
func (f *FakeCloud) DistanceSnapshot() []DistanceEntry {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]DistanceEntry, len(f.Distances))
	copy(out, f.Distances)
	return out
}
