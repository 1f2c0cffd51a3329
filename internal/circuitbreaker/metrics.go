package circuitbreaker

import (
	"context"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	breakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "tailor_circuit_breaker_state",
			Help: "Breaker state per dependency (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name", "service"},
	)

	breakerRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tailor_circuit_breaker_requests_total",
			Help: "Calls made through a breaker by state and result",
		},
		[]string{"name", "service", "state", "result"},
	)

	breakerFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tailor_circuit_breaker_failures_total",
			Help: "Failed or rejected calls through a breaker",
		},
		[]string{"name", "service"},
	)

	breakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tailor_circuit_breaker_state_changes_total",
			Help: "Breaker state transitions",
		},
		[]string{"name", "service", "from_state", "to_state"},
	)

	breakerOpenSince = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "tailor_circuit_breaker_open_since_seconds",
			Help: "Unix time the breaker last opened, 0 while not open",
		},
		[]string{"name", "service"},
	)
)

type breakerKey struct {
	name    string
	service string
}

// MetricsCollector exports the state of every registered breaker
type MetricsCollector struct {
	mu       sync.RWMutex
	breakers map[breakerKey]*CircuitBreaker
}

func NewMetricsCollector() *MetricsCollector {
	return &MetricsCollector{breakers: make(map[breakerKey]*CircuitBreaker)}
}

// GlobalMetricsCollector is shared by the HTTP, Redis and database wrappers
var GlobalMetricsCollector = NewMetricsCollector()

// RegisterCircuitBreaker tracks cb under name and service and chains a state-change hook
// that records transitions. Call it before cb serves traffic.
func (mc *MetricsCollector) RegisterCircuitBreaker(name, service string, cb *CircuitBreaker) {
	mc.mu.Lock()
	mc.breakers[breakerKey{name: name, service: service}] = cb
	mc.mu.Unlock()

	cb.mu.Lock()
	defer cb.mu.Unlock()
	prev := cb.config.OnStateChange
	cb.config.OnStateChange = func(cbName string, from, to State) {
		if prev != nil {
			prev(cbName, from, to)
		}
		breakerTransitions.WithLabelValues(name, service, from.String(), to.String()).Inc()
		breakerState.WithLabelValues(name, service).Set(float64(to))
		switch {
		case to == StateOpen:
			breakerOpenSince.WithLabelValues(name, service).SetToCurrentTime()
		case from == StateOpen:
			breakerOpenSince.WithLabelValues(name, service).Set(0)
		}
	}
	breakerState.WithLabelValues(name, service).Set(float64(cb.state))
}

// RecordRequest counts one call outcome
func (mc *MetricsCollector) RecordRequest(name, service string, state State, success bool) {
	result := "success"
	if !success {
		result = "failure"
		breakerFailures.WithLabelValues(name, service).Inc()
	}
	breakerRequests.WithLabelValues(name, service, state.String(), result).Inc()
}

// UpdateMetrics refreshes the state gauges; an open breaker whose timeout passed shows up
// as half-open here even before the next call
func (mc *MetricsCollector) UpdateMetrics() {
	mc.mu.RLock()
	defer mc.mu.RUnlock()
	for key, cb := range mc.breakers {
		breakerState.WithLabelValues(key.name, key.service).Set(float64(cb.State()))
	}
}

// StartMetricsCollection refreshes the state gauges every interval until ctx is done
func StartMetricsCollection(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				GlobalMetricsCollector.UpdateMetrics()
			}
		}
	}()
}
