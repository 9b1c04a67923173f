package provision

import "context"

// FakeSender records credential hand-offs for test assertions.
type FakeSender struct {
	// Sent contains every hand-off in order.
	Sent []Credentials

	// SendError, if set, will be returned by SendCredentials.
	SendError error
}

// NewFakeSender creates a FakeSender for testing.
func NewFakeSender() *FakeSender {
	return &FakeSender{}
}

// SendCredentials records the hand-off.
func (f *FakeSender) SendCredentials(_ context.Context, creds Credentials) error {
	if f.SendError != nil {
		return f.SendError
	}
	f.Sent = append(f.Sent, creds)
	return nil
}
