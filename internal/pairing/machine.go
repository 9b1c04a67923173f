package pairing

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Machine is the pairing state machine. It is pure: transitions are
// driven by explicit inputs carrying their own timestamps, so the
// timeout logic is unit-testable without real timers.
//
// States: Idle -> CredentialsSent -> Confirming -> {Paired | Failed}.
type Machine struct {
	state          State
	reason         FailureReason
	thermostatID   string
	fingerprint    string
	sentAt         time.Time
	confirmTimeout time.Duration
	pollAttempts   int
	pairFailed     bool

	// newFingerprint is injectable for tests; defaults to UUIDv4.
	newFingerprint func() string
}

// NewMachine creates an idle machine with the given confirmation timeout.
func NewMachine(confirmTimeout time.Duration) *Machine {
	if confirmTimeout <= 0 {
		confirmTimeout = DefaultConfirmTimeout
	}
	return &Machine{
		state:          StateIdle,
		confirmTimeout: confirmTimeout,
		newFingerprint: uuid.NewString,
	}
}

// Begin starts a fresh attempt for the given thermostat and returns the
// fingerprint nonce generated for it. Any previous session state is
// discarded; every attempt gets a distinct fingerprint.
func (m *Machine) Begin(thermostatID string) (string, error) {
	if thermostatID == "" {
		return "", errors.New("thermostat id required")
	}
	m.state = StateIdle
	m.reason = FailureNone
	m.thermostatID = thermostatID
	m.fingerprint = m.newFingerprint()
	m.sentAt = time.Time{}
	m.pollAttempts = 0
	m.pairFailed = false
	return m.fingerprint, nil
}

// CredentialsSent records a successful hand-off to the device at the
// given time. The confirmation deadline is measured from sentAt.
func (m *Machine) CredentialsSent(sentAt time.Time) {
	m.state = StateCredentialsSent
	m.sentAt = sentAt
}

// StartConfirming arms the confirmation poll.
func (m *Machine) StartConfirming() {
	if m.state == StateCredentialsSent {
		m.state = StateConfirming
	}
}

// SendFailed marks the local hand-off as failed. The device-local request
// is not retried; the user restarts the whole flow.
func (m *Machine) SendFailed() {
	m.state = StateFailed
	m.reason = FailureSendFailed
}

// OnPoll feeds one confirmation-poll result into the machine.
//
// A poll error is transient: it counts as "no match this round" and the
// loop keeps going until the deadline. A first-time match is checked
// before the deadline, so a reply that arrives on the last tick still
// wins. Once a pair-request has failed, the deadline binds matches too:
// the retry path cannot outlive the confirmation window.
func (m *Machine) OnPoll(reported string, pollErr error, now time.Time) PollOutcome {
	if m.state != StateConfirming {
		return PollContinue
	}
	m.pollAttempts++

	matched := pollErr == nil && reported != "" && reported == m.fingerprint
	if matched && !m.pairFailed {
		return PollMatched
	}

	if now.Sub(m.sentAt) >= m.confirmTimeout {
		m.state = StateFailed
		m.reason = FailureTimeout
		return PollTimedOut
	}

	if matched {
		return PollMatched
	}
	return PollContinue
}

// PairSucceeded records a successful pair-request after a match.
func (m *Machine) PairSucceeded() {
	m.state = StatePaired
	m.reason = FailureNone
}

// PairFailed records a failed pair-request after a match. The machine
// stays in Confirming so the poll loop re-arms and retries the pair call
// on a later match. From here on the original deadline is enforced even
// when the device keeps matching.
func (m *Machine) PairFailed() {
	m.pairFailed = true
}

// Cancel resets the machine to idle, discarding the session.
func (m *Machine) Cancel() {
	m.state = StateIdle
	m.reason = FailureNone
	m.thermostatID = ""
	m.fingerprint = ""
	m.sentAt = time.Time{}
	m.pollAttempts = 0
	m.pairFailed = false
}

// State returns the current state.
func (m *Machine) State() State { return m.state }

// Fingerprint returns the nonce for the current attempt.
func (m *Machine) Fingerprint() string { return m.fingerprint }

// ThermostatID returns the device the current attempt targets.
func (m *Machine) ThermostatID() string { return m.thermostatID }

// Status returns a point-in-time view of the session.
func (m *Machine) Status() Status {
	return Status{
		State:        m.state,
		Reason:       m.reason,
		ThermostatID: m.thermostatID,
		Fingerprint:  m.fingerprint,
		PollAttempts: m.pollAttempts,
		SentAt:       m.sentAt,
	}
}
