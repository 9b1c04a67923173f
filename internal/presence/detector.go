package presence

import (
	"time"

	"github.com/thermolearn/home-agent/internal/geo"
)

// Detector tracks the debounced at-home flag and detects boundary crossings.
//
// The flag only flips when the distance to home crosses the radius relative
// to its current value, so a sequence of samples on one side of the boundary
// produces at most one event regardless of sampling frequency.
type Detector struct {
	radius        float64
	home          *geo.Point
	atHome        bool
	lastDistance  float64
	haveDistance  bool
	eventCounts   EventCounts
	lastTelemetry time.Time
}

// NewDetector creates a detector with the given radius in meters.
// The at-home flag starts true: the user is assumed home until a sample
// proves otherwise. startTime anchors the telemetry interval.
func NewDetector(radius float64, startTime time.Time) *Detector {
	return &Detector{
		radius:        radius,
		atHome:        true,
		lastTelemetry: startTime,
	}
}

// SetHome commits a home location. Staged candidates live with the caller;
// only a confirmed location reaches the detector.
func (d *Detector) SetHome(p geo.Point) {
	d.home = &p
}

// Home returns the committed home location, if any.
func (d *Detector) Home() (geo.Point, bool) {
	if d.home == nil {
		return geo.Point{}, false
	}
	return *d.home, true
}

// SeedAtHome restores a persisted at-home flag, e.g. across restarts.
// It does not emit an event.
func (d *Detector) SeedAtHome(atHome bool) {
	d.atHome = atHome
}

// Process takes a location sample and returns an event if the sample
// crossed the home radius, nil otherwise. Without a committed home
// location no distance exists and no event can fire.
func (d *Detector) Process(s Sample) *Event {
	if d.home == nil {
		return nil
	}

	distance := geo.DistanceMeters(s.Point, *d.home)
	d.lastDistance = distance
	d.haveDistance = true

	switch {
	case distance > d.radius && d.atHome:
		d.atHome = false
		d.eventCounts.Out++
		return &Event{Timestamp: s.Time, Type: EventOut, DistanceMeters: distance, AtHome: false}
	case distance <= d.radius && !d.atHome:
		d.atHome = true
		d.eventCounts.In++
		return &Event{Timestamp: s.Time, Type: EventIn, DistanceMeters: distance, AtHome: true}
	}
	return nil
}

// AtHome returns the current debounced presence flag.
func (d *Detector) AtHome() bool {
	return d.atHome
}

// DistanceToHome returns the distance computed from the most recent sample.
// The second return value is false until both a home location and a sample
// exist.
func (d *Detector) DistanceToHome() (float64, bool) {
	return d.lastDistance, d.haveDistance
}

// EventCountsSnapshot returns the event counts since startup.
func (d *Detector) EventCountsSnapshot() EventCounts {
	return d.eventCounts
}

// CheckTelemetry returns distance telemetry if the interval has elapsed
// since the last report (or startup). Returns nil if no distance is known
// yet, if the interval has not elapsed, or if interval is <= 0 (disabled).
func (d *Detector) CheckTelemetry(now time.Time, interval time.Duration) *TelemetryData {
	if interval <= 0 {
		return nil
	}

	if !d.haveDistance {
		return nil
	}

	if now.Sub(d.lastTelemetry) < interval {
		return nil
	}

	d.lastTelemetry = now
	return &TelemetryData{
		Timestamp:      now,
		DistanceMeters: int(d.lastDistance),
	}
}
