// Package location abstracts where the agent gets position fixes from.
package location

import (
	"context"

	"github.com/thermolearn/home-agent/internal/geo"
)

// Source provides position fixes for the presence loop.
type Source interface {
	// Current returns the latest position fix.
	Current(ctx context.Context) (geo.Point, error)

	// Close releases any resources held by the source.
	Close() error
}

// StaticSource always reports the same position. Useful for agents
// running on a fixed device such as a wall panel.
type StaticSource struct {
	point geo.Point
}

// NewStaticSource creates a source pinned to the given position.
func NewStaticSource(p geo.Point) *StaticSource {
	return &StaticSource{point: p}
}

func (s *StaticSource) Current(_ context.Context) (geo.Point, error) {
	return s.point, nil
}

func (s *StaticSource) Close() error { return nil }
