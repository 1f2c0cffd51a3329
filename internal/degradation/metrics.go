package degradation

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// fallbackBehaviorExecuted tracks when a stage fallback is taken
	fallbackBehaviorExecuted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tailor_fallback_behavior_total",
			Help: "Total number of stage fallbacks executed by stage and behavior",
		},
		[]string{"stage", "behavior"},
	)

	// degradedResponses tracks responses returned with at least one stage failure
	degradedResponses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tailor_degraded_responses_total",
			Help: "Total number of responses returned in a degraded state",
		},
		[]string{"level"},
	)

	// currentDegradationLevel tracks the dependency health level
	currentDegradationLevel = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "tailor_degradation_level",
			Help: "Current dependency degradation level (0=none, 1=minor, 2=moderate, 3=severe)",
		},
	)

	// dependencyHealthStatus tracks individual dependency health
	dependencyHealthStatus = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "tailor_dependency_health",
			Help: "Dependency health status (1=healthy, 0=unhealthy)",
		},
		[]string{"dependency"},
	)
)

// RecordFallbackBehavior records a fallback taken by stage
func RecordFallbackBehavior(stage Stage, behavior FallbackBehavior) {
	fallbackBehaviorExecuted.WithLabelValues(string(stage), string(behavior)).Inc()
}

// RecordDegradedResponse records a response finished at level
func RecordDegradedResponse(level Level) {
	degradedResponses.WithLabelValues(level.String()).Inc()
}

// RecordDependencyHealth updates dependency health metrics
func RecordDependencyHealth(dependency string, healthy bool) {
	value := 0.0
	if healthy {
		value = 1.0
	}
	dependencyHealthStatus.WithLabelValues(dependency).Set(value)
}
