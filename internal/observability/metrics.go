package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	presenceEventsCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "home_agent",
		Subsystem: "presence",
		Name:      "events_total",
		Help:      "Presence transitions detected, by direction.",
	}, []string{"direction"})
	distanceGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "home_agent",
		Subsystem: "presence",
		Name:      "distance_from_home_meters",
		Help:      "Most recent measured distance from the committed home location.",
	})
	telemetryFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "home_agent",
		Subsystem: "presence",
		Name:      "telemetry_failures_total",
		Help:      "Distance telemetry pushes that failed and were skipped.",
	})
	pairingPollsCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "home_agent",
		Subsystem: "pairing",
		Name:      "confirmation_polls_total",
		Help:      "Fingerprint confirmation polls issued against the backend.",
	})
	pairingOutcomes = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "home_agent",
		Subsystem: "pairing",
		Name:      "outcomes_total",
		Help:      "Terminal pairing outcomes, by result.",
	}, []string{"result"})
)

func init() {
	prometheus.MustRegister(
		presenceEventsCounter,
		distanceGauge,
		telemetryFailures,
		pairingPollsCounter,
		pairingOutcomes,
	)
}

// RecordPresenceEvent counts an IN or OUT transition.
func RecordPresenceEvent(direction string) {
	presenceEventsCounter.WithLabelValues(direction).Inc()
}

// RecordDistance updates the distance gauge.
func RecordDistance(meters float64) {
	distanceGauge.Set(meters)
}

// RecordTelemetryFailure counts a failed distance push.
func RecordTelemetryFailure() {
	telemetryFailures.Inc()
}

// RecordPairingPoll counts one confirmation poll.
func RecordPairingPoll() {
	pairingPollsCounter.Inc()
}

// RecordPairingOutcome counts a terminal pairing result
// ("paired", "timeout", "send_failed", "cancelled").
func RecordPairingOutcome(result string) {
	pairingOutcomes.WithLabelValues(result).Inc()
}
