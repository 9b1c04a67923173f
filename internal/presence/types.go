// Package presence contains pure business logic for home presence tracking.
// This package has NO external dependencies (no location hardware, HTTP, or
// time.Sleep). Time is always injectable via time.Time parameters.
package presence

import (
	"time"

	"github.com/thermolearn/home-agent/internal/geo"
)

// HomeRadiusMeters is the threshold separating "at home" from "away".
const HomeRadiusMeters = 25.0

// EventType represents a presence transition event.
type EventType string

const (
	EventIn  EventType = "IN"
	EventOut EventType = "OUT"
)

// Event represents a single boundary crossing to be reported.
type Event struct {
	Timestamp      time.Time
	Type           EventType
	DistanceMeters float64
	AtHome         bool
}

// Sample is a single location reading.
type Sample struct {
	Point geo.Point
	Time  time.Time
}

// EventCounts tracks the number of each event type since startup.
type EventCounts struct {
	In  int
	Out int
}

// TelemetryData carries the periodic distance-to-home report.
type TelemetryData struct {
	Timestamp      time.Time
	DistanceMeters int
}
