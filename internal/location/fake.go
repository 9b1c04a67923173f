package location

import (
	"context"
	"errors"
	"sync"

	"github.com/thermolearn/home-agent/internal/geo"
)

// FakeSource replays scripted position fixes for testing. Once the
// script runs out the last fix repeats.
type FakeSource struct {
	mu sync.Mutex

	// Fixes is the scripted sequence of positions.
	Fixes []geo.Point

	// ReadError, if set, will be returned by Current.
	ReadError error

	// Closed is true after Close has been called.
	Closed bool

	idx int
}

// NewFakeSource creates a FakeSource replaying the given fixes.
func NewFakeSource(fixes ...geo.Point) *FakeSource {
	return &FakeSource{Fixes: fixes}
}

func (f *FakeSource) Current(_ context.Context) (geo.Point, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.ReadError != nil {
		return geo.Point{}, f.ReadError
	}
	if len(f.Fixes) == 0 {
		return geo.Point{}, errors.New("no fixes scripted")
	}
	idx := f.idx
	if idx >= len(f.Fixes) {
		idx = len(f.Fixes) - 1
	}
	f.idx++
	return f.Fixes[idx], nil
}

// Close marks the source closed.
func (f *FakeSource) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Closed = true
	return nil
}

// SetFixes replaces the script and rewinds it.
func (f *FakeSource) SetFixes(fixes ...geo.Point) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Fixes = fixes
	f.idx = 0
}
