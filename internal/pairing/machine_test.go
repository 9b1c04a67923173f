package pairing

import (
	"errors"
	"testing"
	"time"
)

func confirmingMachine(t *testing.T, sentAt time.Time) *Machine {
	t.Helper()
	m := NewMachine(DefaultConfirmTimeout)
	if _, err := m.Begin("thermo-42"); err != nil {
		t.Fatalf("Begin: %v", err)
	}
	m.CredentialsSent(sentAt)
	m.StartConfirming()
	return m
}

func TestBeginGeneratesDistinctFingerprints(t *testing.T) {
	m := NewMachine(DefaultConfirmTimeout)

	first, err := m.Begin("thermo-42")
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}
	second, err := m.Begin("thermo-42")
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}

	if first == "" || second == "" {
		t.Fatal("fingerprints must be non-empty")
	}
	if first == second {
		t.Errorf("consecutive attempts produced the same fingerprint: %s", first)
	}
}

func TestBeginRequiresThermostatID(t *testing.T) {
	m := NewMachine(DefaultConfirmTimeout)
	if _, err := m.Begin(""); err == nil {
		t.Fatal("expected error for empty thermostat id")
	}
}

func TestStateProgression(t *testing.T) {
	m := NewMachine(DefaultConfirmTimeout)
	if m.State() != StateIdle {
		t.Errorf("new machine: expected IDLE, got %s", m.State())
	}

	m.Begin("thermo-42")
	sentAt := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	m.CredentialsSent(sentAt)
	if m.State() != StateCredentialsSent {
		t.Errorf("expected CREDENTIALS_SENT, got %s", m.State())
	}

	m.StartConfirming()
	if m.State() != StateConfirming {
		t.Errorf("expected CONFIRMING, got %s", m.State())
	}
}

func TestSendFailedIsTerminal(t *testing.T) {
	m := NewMachine(DefaultConfirmTimeout)
	m.Begin("thermo-42")
	m.SendFailed()

	if m.State() != StateFailed {
		t.Errorf("expected FAILED, got %s", m.State())
	}
	if m.Status().Reason != FailureSendFailed {
		t.Errorf("expected SEND_FAILED reason, got %s", m.Status().Reason)
	}
}

func TestPollMatch(t *testing.T) {
	sentAt := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	m := confirmingMachine(t, sentAt)

	outcome := m.OnPoll(m.Fingerprint(), nil, sentAt.Add(5*time.Second))
	if outcome != PollMatched {
		t.Fatalf("expected PollMatched, got %v", outcome)
	}
	// Matching does not terminate by itself; the pair-request result does.
	if m.State() != StateConfirming {
		t.Errorf("expected CONFIRMING after match, got %s", m.State())
	}

	m.PairSucceeded()
	if m.State() != StatePaired {
		t.Errorf("expected PAIRED, got %s", m.State())
	}
}

func TestPollNoMatchBeforeDeadline(t *testing.T) {
	sentAt := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	m := confirmingMachine(t, sentAt)

	for i := 1; i <= 5; i++ {
		outcome := m.OnPoll("someone-elses-fingerprint", nil, sentAt.Add(time.Duration(i*5)*time.Second))
		if i*5 < 30 {
			if outcome != PollContinue {
				t.Fatalf("poll %d: expected PollContinue, got %v", i, outcome)
			}
		}
	}
	if m.State() != StateConfirming {
		t.Errorf("expected CONFIRMING, got %s", m.State())
	}
}

func TestPollTimeout(t *testing.T) {
	sentAt := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	m := confirmingMachine(t, sentAt)

	outcome := m.OnPoll("", nil, sentAt.Add(30*time.Second))
	if outcome != PollTimedOut {
		t.Fatalf("expected PollTimedOut at deadline, got %v", outcome)
	}
	if m.State() != StateFailed {
		t.Errorf("expected FAILED, got %s", m.State())
	}
	if m.Status().Reason != FailureTimeout {
		t.Errorf("expected TIMEOUT reason, got %s", m.Status().Reason)
	}

	// A late poll after failure is a no-op.
	if outcome := m.OnPoll(m.Fingerprint(), nil, sentAt.Add(35*time.Second)); outcome != PollContinue {
		t.Errorf("poll after failure should be inert, got %v", outcome)
	}
}

func TestPollMatchOnDeadlineTickWins(t *testing.T) {
	sentAt := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	m := confirmingMachine(t, sentAt)

	// Match and deadline on the same tick: the match is checked first.
	outcome := m.OnPoll(m.Fingerprint(), nil, sentAt.Add(30*time.Second))
	if outcome != PollMatched {
		t.Fatalf("expected match to win on deadline tick, got %v", outcome)
	}
}

func TestPollErrorIsTransient(t *testing.T) {
	sentAt := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	m := confirmingMachine(t, sentAt)

	outcome := m.OnPoll("", errors.New("connection refused"), sentAt.Add(5*time.Second))
	if outcome != PollContinue {
		t.Fatalf("expected transient error to continue, got %v", outcome)
	}
	if m.State() != StateConfirming {
		t.Errorf("expected CONFIRMING after transient error, got %s", m.State())
	}
}

func TestPollErrorWithMatchingBodyIgnored(t *testing.T) {
	sentAt := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	m := confirmingMachine(t, sentAt)

	// An errored poll never matches, even if a body leaked through.
	outcome := m.OnPoll(m.Fingerprint(), errors.New("status 500"), sentAt.Add(5*time.Second))
	if outcome != PollContinue {
		t.Fatalf("expected PollContinue for errored poll, got %v", outcome)
	}
}

func TestPairFailedReArmsPolling(t *testing.T) {
	sentAt := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	m := confirmingMachine(t, sentAt)

	if outcome := m.OnPoll(m.Fingerprint(), nil, sentAt.Add(5*time.Second)); outcome != PollMatched {
		t.Fatalf("expected match, got %v", outcome)
	}
	m.PairFailed()
	if m.State() != StateConfirming {
		t.Fatalf("expected CONFIRMING after pair failure, got %s", m.State())
	}

	// A later match retries the pair call path.
	if outcome := m.OnPoll(m.Fingerprint(), nil, sentAt.Add(10*time.Second)); outcome != PollMatched {
		t.Fatalf("expected re-match, got %v", outcome)
	}
	m.PairSucceeded()
	if m.State() != StatePaired {
		t.Errorf("expected PAIRED, got %s", m.State())
	}
}

func TestPairFailedStillBoundedByDeadline(t *testing.T) {
	sentAt := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	m := confirmingMachine(t, sentAt)

	m.OnPoll(m.Fingerprint(), nil, sentAt.Add(25*time.Second))
	m.PairFailed()

	// Next poll is past the deadline and the device stopped matching.
	outcome := m.OnPoll("", nil, sentAt.Add(31*time.Second))
	if outcome != PollTimedOut {
		t.Fatalf("expected timeout after re-arm, got %v", outcome)
	}
}

func TestPairFailedPersistentMatchTimesOut(t *testing.T) {
	sentAt := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	m := confirmingMachine(t, sentAt)

	// The device keeps matching and the backend keeps rejecting the
	// pair-request. The deadline must still end the attempt.
	var sawTimeout bool
	for i := 1; i <= 100; i++ {
		now := sentAt.Add(time.Duration(i) * 5 * time.Second)
		outcome := m.OnPoll(m.Fingerprint(), nil, now)
		if outcome == PollTimedOut {
			sawTimeout = true
			break
		}
		if outcome == PollMatched {
			m.PairFailed()
		}
	}

	if !sawTimeout {
		t.Fatal("persistent match with failing pair-requests never timed out")
	}
	if m.State() != StateFailed {
		t.Errorf("expected FAILED, got %s", m.State())
	}
	if m.Status().Reason != FailureTimeout {
		t.Errorf("expected TIMEOUT reason, got %s", m.Status().Reason)
	}
	// Matches inside the window retried the pair call; only the deadline
	// terminated the loop.
	if got := m.Status().PollAttempts; got < 2 || got > 7 {
		t.Errorf("unexpected poll attempts before timeout: %d", got)
	}
}

func TestCancelResets(t *testing.T) {
	sentAt := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	m := confirmingMachine(t, sentAt)

	m.Cancel()
	if m.State() != StateIdle {
		t.Errorf("expected IDLE after cancel, got %s", m.State())
	}
	if m.Fingerprint() != "" {
		t.Error("fingerprint should be cleared on cancel")
	}
	if m.Status().PollAttempts != 0 {
		t.Error("poll attempts should be cleared on cancel")
	}
}

func TestPollAttemptsCounted(t *testing.T) {
	sentAt := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	m := confirmingMachine(t, sentAt)

	m.OnPoll("", nil, sentAt.Add(5*time.Second))
	m.OnPoll("", nil, sentAt.Add(10*time.Second))
	m.OnPoll("", nil, sentAt.Add(15*time.Second))

	if got := m.Status().PollAttempts; got != 3 {
		t.Errorf("expected 3 poll attempts, got %d", got)
	}
}
