package degradation

import (
	"context"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Breaker is anything guarded by a circuit breaker
type Breaker interface {
	IsCircuitBreakerOpen() bool
}

// DependencyHealth represents the health status of a dependency
type DependencyHealth struct {
	Name          string    `json:"name"`
	IsHealthy     bool      `json:"healthy"`
	LastCheckTime time.Time `json:"last_check_time"`
}

// SystemHealth aggregates dependency health information
type SystemHealth struct {
	Dependencies []DependencyHealth `json:"dependencies"`
	Overall      Level              `json:"overall"`
	Timestamp    time.Time          `json:"timestamp"`
}

// Monitor watches registered dependencies through their breakers and exports health metrics
type Monitor struct {
	mu       sync.RWMutex
	deps     map[string]Breaker
	interval time.Duration
	logger   *zap.Logger
	now      func() time.Time
	stopCh   chan struct{}
	started  bool
}

// NewMonitor creates a monitor; interval <= 0 uses 30s
func NewMonitor(interval time.Duration, logger *zap.Logger) *Monitor {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Monitor{deps: make(map[string]Breaker), interval: interval, logger: logger, now: time.Now}
}

// Register adds a dependency; a nil breaker is ignored
func (m *Monitor) Register(name string, b Breaker) {
	if b == nil {
		return
	}
	m.mu.Lock()
	m.deps[name] = b
	m.mu.Unlock()
}

// Check reads every breaker. One unhealthy dependency is minor, two moderate, more severe.
func (m *Monitor) Check() SystemHealth {
	m.mu.RLock()
	names := make([]string, 0, len(m.deps))
	for name := range m.deps {
		names = append(names, name)
	}
	sort.Strings(names)
	now := m.now()
	health := SystemHealth{Dependencies: make([]DependencyHealth, 0, len(names)), Timestamp: now}
	failed := 0
	for _, name := range names {
		ok := !m.deps[name].IsCircuitBreakerOpen()
		if !ok {
			failed++
		}
		health.Dependencies = append(health.Dependencies, DependencyHealth{Name: name, IsHealthy: ok, LastCheckTime: now})
	}
	m.mu.RUnlock()

	switch {
	case failed == 0:
		health.Overall = LevelNone
	case failed == 1:
		health.Overall = LevelMinor
	case failed == 2:
		health.Overall = LevelModerate
	default:
		health.Overall = LevelSevere
	}
	return health
}

func (m *Monitor) updateHealthMetrics() {
	health := m.Check()
	for _, d := range health.Dependencies {
		RecordDependencyHealth(d.Name, d.IsHealthy)
	}
	currentDegradationLevel.Set(float64(health.Overall))
	if health.Overall != LevelNone {
		m.logger.Warn("Dependencies degraded", zap.Stringer("level", health.Overall))
	}
}

// Start begins periodic health checks until Stop or ctx is done
func (m *Monitor) Start(ctx context.Context) {
	m.mu.Lock()
	if m.started {
		m.mu.Unlock()
		return
	}
	m.started = true
	m.stopCh = make(chan struct{})
	stop := m.stopCh
	m.mu.Unlock()

	m.updateHealthMetrics()
	go func() {
		ticker := time.NewTicker(m.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-stop:
				return
			case <-ticker.C:
				m.updateHealthMetrics()
			}
		}
	}()
	m.logger.Info("Dependency health monitor started", zap.Duration("interval", m.interval))
}

// Stop ends periodic checks
func (m *Monitor) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.started {
		return
	}
	close(m.stopCh)
	m.started = false
}
