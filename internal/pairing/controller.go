package pairing

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/thermolearn/home-agent/internal/provision"
)

// Cloud is the slice of the backend API the controller needs.
type Cloud interface {
	// ThermostatFingerprint returns the fingerprint the device currently
	// reports to the cloud, or an error if the request fails.
	ThermostatFingerprint(ctx context.Context, thermostatID string) (string, error)

	// PairThermostat associates the thermostat with the session's user.
	PairThermostat(ctx context.Context, thermostatID string) error
}

// Controller wraps the machine with real timer plumbing: the credential
// hand-off, the 5-second confirmation poll, and explicit cancellation.
type Controller struct {
	mu      sync.Mutex
	machine *Machine

	provisioner  provision.Sender
	cloud        Cloud
	pollInterval time.Duration
	now          func() time.Time

	// onPaired runs after a successful pair-request, outside the lock.
	onPaired func(thermostatID string)

	// onFailed runs when the confirmation deadline expires, outside the
	// lock.
	onFailed func(thermostatID string, reason FailureReason)

	cancel context.CancelFunc
	done   chan struct{}
}

// Option configures a Controller.
type Option func(*Controller)

// WithPollInterval overrides the confirmation poll cadence.
func WithPollInterval(d time.Duration) Option {
	return func(c *Controller) { c.pollInterval = d }
}

// WithClock injects a time source for tests.
func WithClock(now func() time.Time) Option {
	return func(c *Controller) { c.now = now }
}

// WithOnPaired registers a callback invoked once pairing succeeds.
func WithOnPaired(fn func(thermostatID string)) Option {
	return func(c *Controller) { c.onPaired = fn }
}

// WithOnFailed registers a callback invoked when an attempt fails on its
// own, without the caller asking.
func WithOnFailed(fn func(thermostatID string, reason FailureReason)) Option {
	return func(c *Controller) { c.onFailed = fn }
}

// NewController creates a pairing controller.
func NewController(provisioner provision.Sender, cloud Cloud, confirmTimeout time.Duration, opts ...Option) *Controller {
	c := &Controller{
		machine:      NewMachine(confirmTimeout),
		provisioner:  provisioner,
		cloud:        cloud,
		pollInterval: DefaultPollInterval,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Start begins a pairing attempt: generates a fresh fingerprint, hands
// the credentials to the device, and arms the confirmation poll loop.
// ctx covers only the synchronous hand-off; the poll loop has the
// controller's own lifetime and ends on a terminal outcome or Cancel.
//
// A hand-off failure is terminal for the attempt and returned to the
// caller; the local request is never retried automatically.
func (c *Controller) Start(ctx context.Context, thermostatID, ssid, password string) error {
	if ssid == "" || password == "" {
		return errors.New("ssid and password required")
	}

	c.mu.Lock()
	if c.machine.State() == StateConfirming {
		c.mu.Unlock()
		return errors.New("pairing already in progress")
	}

	fingerprint, err := c.machine.Begin(thermostatID)
	if err != nil {
		c.mu.Unlock()
		return err
	}
	c.mu.Unlock()

	creds := provision.Credentials{SSID: ssid, Password: password, Fingerprint: fingerprint}
	if err := c.provisioner.SendCredentials(ctx, creds); err != nil {
		c.mu.Lock()
		c.machine.SendFailed()
		c.mu.Unlock()
		return err
	}

	c.mu.Lock()
	c.machine.CredentialsSent(c.now())
	c.machine.StartConfirming()

	// Detached from ctx: a web request ends the moment its handler
	// returns, and the loop must keep polling until the deadline.
	loopCtx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	done := make(chan struct{})
	c.done = done
	c.mu.Unlock()

	go func() {
		defer close(done)
		ticker := time.NewTicker(c.pollInterval)
		defer ticker.Stop()
		c.run(loopCtx, ticker.C)
	}()

	return nil
}

// run executes the confirmation poll until a terminal outcome or
// cancellation. Exposed to tests via an injected tick channel.
func (c *Controller) run(ctx context.Context, tick <-chan time.Time) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-tick:
			if c.pollOnce(ctx) {
				return
			}
		}
	}
}

// pollOnce performs a single confirmation poll. It returns true when the
// loop should stop (paired, timed out, or cancelled underneath).
func (c *Controller) pollOnce(ctx context.Context) bool {
	c.mu.Lock()
	if c.machine.State() != StateConfirming {
		c.mu.Unlock()
		return true
	}
	thermostatID := c.machine.ThermostatID()
	c.mu.Unlock()

	reported, err := c.cloud.ThermostatFingerprint(ctx, thermostatID)
	if err != nil {
		log.Printf("pairing: fingerprint poll failed (treated as no match): %v", err)
	}

	c.mu.Lock()
	outcome := c.machine.OnPoll(reported, err, c.now())
	c.mu.Unlock()

	switch outcome {
	case PollTimedOut:
		log.Printf("pairing: confirmation timed out for thermostat %s", thermostatID)
		if c.onFailed != nil {
			c.onFailed(thermostatID, FailureTimeout)
		}
		return true
	case PollContinue:
		return false
	}

	// Fingerprint matched: issue the pair-request.
	if err := c.cloud.PairThermostat(ctx, thermostatID); err != nil {
		log.Printf("pairing: pair request failed, re-arming poll: %v", err)
		c.mu.Lock()
		c.machine.PairFailed()
		c.mu.Unlock()
		return false
	}

	c.mu.Lock()
	c.machine.PairSucceeded()
	c.mu.Unlock()

	log.Printf("pairing: thermostat %s paired", thermostatID)
	if c.onPaired != nil {
		c.onPaired(thermostatID)
	}
	return true
}

// Cancel tears down the poll loop immediately and resets the session.
// Safe to call at any time, including when no attempt is active.
func (c *Controller) Cancel() {
	c.mu.Lock()
	cancel := c.cancel
	done := c.done
	c.cancel = nil
	c.done = nil
	c.machine.Cancel()
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}
}

// Status returns a snapshot of the pairing session.
func (c *Controller) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.machine.Status()
}
