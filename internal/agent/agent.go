// Package agent wires the session store, cloud API, presence monitor and
// pairing controller into one daemon-facing facade.
package agent

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/thermolearn/home-agent/internal/api"
	"github.com/thermolearn/home-agent/internal/geo"
	"github.com/thermolearn/home-agent/internal/location"
	"github.com/thermolearn/home-agent/internal/mqtt"
	"github.com/thermolearn/home-agent/internal/observability"
	"github.com/thermolearn/home-agent/internal/pairing"
	"github.com/thermolearn/home-agent/internal/presence"
	"github.com/thermolearn/home-agent/internal/provision"
	"github.com/thermolearn/home-agent/internal/session"
	"github.com/thermolearn/home-agent/internal/status"
)

// ErrNotLoggedIn is returned by operations that need an authenticated
// session.
var ErrNotLoggedIn = errors.New("not logged in")

// Cloud is the backend surface the agent depends on. *api.Client and
// *api.FakeCloud both satisfy it.
type Cloud interface {
	Authenticate(ctx context.Context, email, password string) (api.AuthResult, error)
	ThermostatFingerprint(ctx context.Context, thermostatID string) (string, error)
	IsReadyToPair(ctx context.Context, userID int64, thermostatID string) (bool, error)
	PairThermostat(ctx context.Context, userID int64, thermostatID string) error
	UnpairThermostat(ctx context.Context, userID int64, thermostatID string) error
	SaveLog(ctx context.Context, userID int64, eventType string, ts time.Time) error
	UpdateDistanceFromHome(ctx context.Context, userID int64, meters int) error
	UpdateHomeLocation(ctx context.Context, userID int64, lat, lon float64) error
}

// Options tunes the agent's loops.
type Options struct {
	// SampleInterval is the location sampling cadence. Default 10s.
	SampleInterval time.Duration

	// TelemetryInterval is the distance push cadence. Default 2m.
	TelemetryInterval time.Duration

	// PollInterval is the pairing confirmation cadence. Default 5s.
	PollInterval time.Duration

	// ConfirmTimeout is the pairing confirmation window. Default 30s.
	ConfirmTimeout time.Duration

	// Now injects a time source for tests.
	Now func() time.Time
}

func (o *Options) fill() {
	if o.SampleInterval <= 0 {
		o.SampleInterval = 10 * time.Second
	}
	if o.TelemetryInterval <= 0 {
		o.TelemetryInterval = 2 * time.Minute
	}
	if o.PollInterval <= 0 {
		o.PollInterval = pairing.DefaultPollInterval
	}
	if o.ConfirmTimeout <= 0 {
		o.ConfirmTimeout = pairing.DefaultConfirmTimeout
	}
	if o.Now == nil {
		o.Now = time.Now
	}
}

// Agent owns the two control flows and their shared state.
type Agent struct {
	store     *session.Store
	cloud     Cloud
	publisher mqtt.Publisher
	tracker   *status.Tracker
	source    location.Source
	pairCtl   *pairing.Controller

	opts Options
	now  func() time.Time

	mu       sync.Mutex
	detector *presence.Detector
	userID   int64
	loggedIn bool
	staged   *geo.Point

	loopCancel context.CancelFunc
	loopDone   chan struct{}
}

// New builds an Agent and restores any persisted session. A previously
// logged-in user is resumed, including the presence loop's home location
// and last known at-home flag.
func New(ctx context.Context, store *session.Store, cloud Cloud, publisher mqtt.Publisher, tracker *status.Tracker, source location.Source, provisioner provision.Sender, opts Options) (*Agent, error) {
	opts.fill()

	a := &Agent{
		store:     store,
		cloud:     cloud,
		publisher: publisher,
		tracker:   tracker,
		source:    source,
		opts:      opts,
		now:       opts.Now,
		detector:  presence.NewDetector(presence.HomeRadiusMeters, opts.Now()),
	}

	a.pairCtl = pairing.NewController(provisioner, cloudAdapter{a}, opts.ConfirmTimeout,
		pairing.WithPollInterval(opts.PollInterval),
		pairing.WithClock(opts.Now),
		pairing.WithOnPaired(a.onPaired),
		pairing.WithOnFailed(a.onPairingFailed))

	if err := a.restore(ctx); err != nil {
		return nil, err
	}
	return a, nil
}

// restore loads the persisted session into the detector and tracker and
// resumes the presence loop for a logged-in user.
func (a *Agent) restore(ctx context.Context) error {
	token, err := a.store.Token(ctx)
	if err != nil {
		return fmt.Errorf("restore session: %w", err)
	}

	home, homeSet, err := a.store.HomeLocation(ctx)
	if err != nil {
		return fmt.Errorf("restore home: %w", err)
	}
	atHome, err := a.store.AtHome(ctx)
	if err != nil {
		return fmt.Errorf("restore presence: %w", err)
	}

	a.mu.Lock()
	if homeSet {
		a.detector.SetHome(home)
	}
	a.detector.SeedAtHome(atHome)
	a.mu.Unlock()

	a.tracker.SetHomeSet(homeSet)
	a.tracker.UpdatePresence(atHome, 0, false, presence.EventCounts{})

	if token == "" {
		return nil
	}

	userID, ok, err := a.store.UserID(ctx)
	if err != nil {
		return fmt.Errorf("restore user: %w", err)
	}
	if !ok {
		// Token without identity is useless. Drop it.
		log.Printf("agent: stored token has no user id, clearing session")
		return a.store.Clear(ctx)
	}
	firstName, err := a.store.FirstName(ctx)
	if err != nil {
		return fmt.Errorf("restore user: %w", err)
	}

	a.mu.Lock()
	a.userID = userID
	a.loggedIn = true
	a.mu.Unlock()

	a.tracker.SetSession(true, firstName)
	a.startPresenceLoop()
	log.Printf("agent: resumed session for user %d", userID)
	return nil
}

// Login authenticates with the backend, persists the session and starts
// the presence loop.
func (a *Agent) Login(ctx context.Context, email, password string) error {
	result, err := a.cloud.Authenticate(ctx, email, password)
	if err != nil {
		return fmt.Errorf("login: %w", err)
	}

	if err := a.store.SetToken(ctx, result.Token); err != nil {
		return err
	}
	if err := a.store.SetUserID(ctx, result.UserID); err != nil {
		return err
	}
	if err := a.store.SetFirstName(ctx, result.FirstName); err != nil {
		return err
	}

	a.mu.Lock()
	a.userID = result.UserID
	alreadyRunning := a.loggedIn
	a.loggedIn = true
	a.mu.Unlock()

	a.tracker.SetSession(true, result.FirstName)
	if !alreadyRunning {
		a.startPresenceLoop()
	}
	log.Printf("agent: logged in as %s (user %d)", result.FirstName, result.UserID)
	return nil
}

// Logout stops the presence loop, cancels any pairing attempt and wipes
// the session. The loop is stopped before the token is deleted so no
// authenticated request can race past the logout.
func (a *Agent) Logout(ctx context.Context) error {
	a.stopPresenceLoop()
	a.pairCtl.Cancel()

	a.mu.Lock()
	a.userID = 0
	a.loggedIn = false
	a.staged = nil
	a.mu.Unlock()

	if err := a.store.Clear(ctx); err != nil {
		return err
	}

	a.tracker.SetSession(false, "")
	a.tracker.SetPairing(pairing.StateIdle, "")
	log.Printf("agent: logged out")
	return nil
}

// LoggedIn reports whether a session is active.
func (a *Agent) LoggedIn() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.loggedIn
}

func (a *Agent) currentUser() (int64, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.userID, a.loggedIn
}

// startPresenceLoop spawns the sampling loop. Caller must ensure it is
// not already running.
func (a *Agent) startPresenceLoop() {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	a.mu.Lock()
	a.loopCancel = cancel
	a.loopDone = done
	a.mu.Unlock()

	go func() {
		defer close(done)
		sample := time.NewTicker(a.opts.SampleInterval)
		defer sample.Stop()
		telemetry := time.NewTicker(a.opts.TelemetryInterval)
		defer telemetry.Stop()
		a.presenceLoop(ctx, sample.C, telemetry.C)
	}()
}

// stopPresenceLoop cancels the loop and waits for it to drain.
func (a *Agent) stopPresenceLoop() {
	a.mu.Lock()
	cancel := a.loopCancel
	done := a.loopDone
	a.loopCancel = nil
	a.loopDone = nil
	a.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}
}

// presenceLoop is the main sampling loop. Exposed to tests via injected
// tick channels.
func (a *Agent) presenceLoop(ctx context.Context, sample, telemetry <-chan time.Time) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-sample:
			a.onSample(ctx)
		case <-telemetry:
			a.onTelemetry(ctx)
		}
	}
}

// onSample takes one position fix and runs it through the detector.
func (a *Agent) onSample(ctx context.Context) {
	now := a.now()

	fix, err := a.source.Current(ctx)
	if err != nil {
		log.Printf("agent: location fix failed: %v", err)
		return
	}

	a.mu.Lock()
	event := a.detector.Process(presence.Sample{Point: fix, Time: now})
	atHome := a.detector.AtHome()
	distance, haveDistance := a.detector.DistanceToHome()
	counts := a.detector.EventCountsSnapshot()
	a.mu.Unlock()

	a.tracker.UpdatePresence(atHome, distance, haveDistance, counts)
	if haveDistance {
		observability.RecordDistance(distance)
	}

	if event == nil {
		return
	}
	a.handlePresenceEvent(ctx, *event)
}

// handlePresenceEvent persists and broadcasts one IN/OUT transition.
func (a *Agent) handlePresenceEvent(ctx context.Context, event presence.Event) {
	log.Printf("agent: presence %s (%.0fm from home)", event.Type, event.DistanceMeters)
	observability.RecordPresenceEvent(string(event.Type))

	if err := a.store.SetAtHome(ctx, event.AtHome); err != nil {
		log.Printf("agent: persist presence flag: %v", err)
	}
	if err := a.store.AppendPresenceEvent(ctx, event); err != nil {
		log.Printf("agent: persist presence event: %v", err)
	}

	if userID, ok := a.currentUser(); ok {
		if err := a.cloud.SaveLog(ctx, userID, string(event.Type), event.Timestamp); err != nil {
			log.Printf("agent: remote event log failed: %v", err)
		}
	}

	if err := a.publisher.Publish(event); err != nil {
		log.Printf("agent: mqtt publish failed: %v", err)
	}
}

// onTelemetry pushes the distance reading if one is due. Failures are
// logged and skipped; the next interval tries again.
func (a *Agent) onTelemetry(ctx context.Context) {
	now := a.now()

	a.mu.Lock()
	data := a.detector.CheckTelemetry(now, a.opts.TelemetryInterval)
	a.mu.Unlock()
	if data == nil {
		return
	}

	userID, ok := a.currentUser()
	if !ok {
		return
	}
	if err := a.cloud.UpdateDistanceFromHome(ctx, userID, data.DistanceMeters); err != nil {
		log.Printf("agent: distance telemetry failed: %v", err)
		observability.RecordTelemetryFailure()
	}
}

// StageHomeLocation captures the current position as a staging candidate.
// The detector keeps using the committed home until ConfirmHomeLocation.
func (a *Agent) StageHomeLocation(ctx context.Context) (geo.Point, error) {
	if !a.LoggedIn() {
		return geo.Point{}, ErrNotLoggedIn
	}

	fix, err := a.source.Current(ctx)
	if err != nil {
		return geo.Point{}, fmt.Errorf("stage home: %w", err)
	}

	a.mu.Lock()
	a.staged = &fix
	a.mu.Unlock()

	log.Printf("agent: staged home candidate (%.5f, %.5f)", fix.Latitude, fix.Longitude)
	return fix, nil
}

// ConfirmHomeLocation commits the staged candidate: backend first, then
// the local store and the live detector.
func (a *Agent) ConfirmHomeLocation(ctx context.Context) error {
	userID, ok := a.currentUser()
	if !ok {
		return ErrNotLoggedIn
	}

	a.mu.Lock()
	staged := a.staged
	a.mu.Unlock()
	if staged == nil {
		return errors.New("no staged home location")
	}

	if err := a.cloud.UpdateHomeLocation(ctx, userID, staged.Latitude, staged.Longitude); err != nil {
		return fmt.Errorf("confirm home: %w", err)
	}
	if err := a.store.SetHomeLocation(ctx, *staged); err != nil {
		return err
	}

	a.mu.Lock()
	a.detector.SetHome(*staged)
	a.staged = nil
	a.mu.Unlock()

	a.tracker.SetHomeSet(true)
	log.Printf("agent: home location committed (%.5f, %.5f)", staged.Latitude, staged.Longitude)
	return nil
}

// Home returns the committed home location and whether one is set.
func (a *Agent) Home(ctx context.Context) (geo.Point, bool, error) {
	return a.store.HomeLocation(ctx)
}

// StagedHome returns the staging candidate, if any.
func (a *Agent) StagedHome() (geo.Point, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.staged == nil {
		return geo.Point{}, false
	}
	return *a.staged, true
}

// StartPairing checks pairing eligibility with the backend and kicks off
// the credential hand-off plus confirmation poll.
func (a *Agent) StartPairing(ctx context.Context, thermostatID, ssid, password string) error {
	userID, ok := a.currentUser()
	if !ok {
		return ErrNotLoggedIn
	}
	if thermostatID == "" {
		return errors.New("thermostat id required")
	}

	ready, err := a.cloud.IsReadyToPair(ctx, userID, thermostatID)
	if err != nil {
		return fmt.Errorf("pairing eligibility check: %w", err)
	}
	if !ready {
		return fmt.Errorf("thermostat %s is not ready to pair", thermostatID)
	}

	if err := a.store.SetStagedThermostatID(ctx, thermostatID); err != nil {
		return err
	}

	if err := a.pairCtl.Start(ctx, thermostatID, ssid, password); err != nil {
		observability.RecordPairingOutcome("send_failed")
		a.tracker.SetPairing(a.pairCtl.Status().State, thermostatID)
		return err
	}

	a.tracker.SetPairing(pairing.StateConfirming, thermostatID)
	return nil
}

// onPaired runs from the pairing controller once the backend confirms.
func (a *Agent) onPaired(thermostatID string) {
	ctx := context.Background()

	if err := a.store.SetThermostatID(ctx, thermostatID); err != nil {
		log.Printf("agent: persist thermostat id: %v", err)
	}
	a.tracker.SetPairing(pairing.StatePaired, thermostatID)
	observability.RecordPairingOutcome("paired")

	if err := a.publisher.PublishSystem(mqtt.SystemEvent{
		Timestamp: a.now(),
		Event:     "PAIRED",
		Reason:    thermostatID,
	}); err != nil {
		log.Printf("agent: mqtt pair event failed: %v", err)
	}
}

// onPairingFailed runs from the pairing controller when an attempt ends
// on its own, so the tracker and metrics reflect the failure without
// anyone polling the status endpoint.
func (a *Agent) onPairingFailed(thermostatID string, reason pairing.FailureReason) {
	log.Printf("agent: pairing failed for thermostat %s: %s", thermostatID, reason)
	if reason == pairing.FailureTimeout {
		observability.RecordPairingOutcome("timeout")
	}
	a.tracker.SetPairing(pairing.StateFailed, thermostatID)
}

// CancelPairing aborts an in-flight attempt.
func (a *Agent) CancelPairing(ctx context.Context) error {
	a.pairCtl.Cancel()
	observability.RecordPairingOutcome("cancelled")
	a.tracker.SetPairing(pairing.StateIdle, "")
	return a.store.ClearStagedThermostatID(ctx)
}

// PairingStatus reports the live pairing state.
func (a *Agent) PairingStatus() pairing.Status {
	return a.pairCtl.Status()
}

// Unpair removes the thermostat association, backend first.
func (a *Agent) Unpair(ctx context.Context) error {
	userID, ok := a.currentUser()
	if !ok {
		return ErrNotLoggedIn
	}
	thermostatID, err := a.store.ThermostatID(ctx)
	if err != nil {
		return err
	}
	if thermostatID == "" {
		return errors.New("no thermostat paired")
	}

	if err := a.cloud.UnpairThermostat(ctx, userID, thermostatID); err != nil {
		return fmt.Errorf("unpair: %w", err)
	}
	if err := a.store.ClearThermostatID(ctx); err != nil {
		return err
	}
	a.tracker.SetPairing(pairing.StateIdle, "")
	log.Printf("agent: unpaired thermostat %s", thermostatID)
	return nil
}

// RecentEvents returns the latest persisted presence transitions.
func (a *Agent) RecentEvents(ctx context.Context, limit int) ([]presence.Event, error) {
	return a.store.RecentPresenceEvents(ctx, limit)
}

// Close stops the loops. The store, publisher and location source are
// owned by the caller.
func (a *Agent) Close() {
	a.stopPresenceLoop()
	a.pairCtl.Cancel()
}

// cloudAdapter narrows the agent's Cloud to the pairing controller's
// view, binding the session's user id to the pair-request.
type cloudAdapter struct {
	a *Agent
}

func (c cloudAdapter) ThermostatFingerprint(ctx context.Context, thermostatID string) (string, error) {
	observability.RecordPairingPoll()
	return c.a.cloud.ThermostatFingerprint(ctx, thermostatID)
}

func (c cloudAdapter) PairThermostat(ctx context.Context, thermostatID string) error {
	userID, ok := c.a.currentUser()
	if !ok {
		return ErrNotLoggedIn
	}
	return c.a.cloud.PairThermostat(ctx, userID, thermostatID)
}
