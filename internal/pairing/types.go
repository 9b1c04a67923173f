// Package pairing drives a new thermostat from unconfigured to paired.
//
// The credential hand-off goes to the device's local provisioning endpoint
// while the phone (here: the agent host) is joined to the device's
// temporary access point. Confirmation happens through the cloud backend:
// the device reports a fingerprint once online, and the machine compares
// it to the nonce it generated for the attempt.
package pairing

import "time"

// State is the pairing session state.
type State string

const (
	StateIdle            State = "IDLE"
	StateCredentialsSent State = "CREDENTIALS_SENT"
	StateConfirming      State = "CONFIRMING"
	StatePaired          State = "PAIRED"
	StateFailed          State = "FAILED"
)

// FailureReason explains how a session reached StateFailed.
type FailureReason string

const (
	FailureNone       FailureReason = ""
	FailureSendFailed FailureReason = "SEND_FAILED"
	FailureTimeout    FailureReason = "TIMEOUT"
)

// Default timing for the confirmation poll loop. Both are configurable,
// but the bounded-attempts-then-hard-failure semantics always hold.
const (
	DefaultPollInterval   = 5 * time.Second
	DefaultConfirmTimeout = 30 * time.Second
)

// PollOutcome is the machine's verdict on a single confirmation poll.
type PollOutcome int

const (
	// PollContinue means no match yet and the deadline has not passed.
	PollContinue PollOutcome = iota
	// PollMatched means the reported fingerprint matches this attempt.
	PollMatched
	// PollTimedOut means the deadline passed without a match.
	PollTimedOut
)

// Status is a point-in-time view of a pairing session for UI consumers.
type Status struct {
	State        State
	Reason       FailureReason
	ThermostatID string
	Fingerprint  string
	PollAttempts int
	SentAt       time.Time
}
