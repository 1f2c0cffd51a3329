package circuitbreaker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestBreaker(t *testing.T, cfg Config) (*CircuitBreaker, *fakeClock) {
	t.Helper()
	clock := &fakeClock{t: time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)}
	cb := NewCircuitBreaker("test", cfg, zaptest.NewLogger(t))
	cb.now = clock.now
	cb.resetWindow(clock.now())
	return cb, clock
}

var errBackend = errors.New("backend unavailable")

func fail() error    { return errBackend }
func succeed() error { return nil }

func TestBreakerLifecycle(t *testing.T) {
	cfg := Config{FailureThreshold: 3, SuccessThreshold: 2, MaxRequests: 5, Timeout: 10 * time.Second}
	var transitions []string
	cfg.OnStateChange = func(_ string, from, to State) {
		transitions = append(transitions, from.String()+">"+to.String())
	}
	cb, clock := newTestBreaker(t, cfg)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		require.NoError(t, cb.Execute(ctx, succeed))
	}
	assert.Equal(t, StateClosed, cb.State())

	for i := 0; i < 3; i++ {
		assert.ErrorIs(t, cb.Execute(ctx, fail), errBackend)
	}
	assert.Equal(t, StateOpen, cb.State())
	assert.ErrorIs(t, cb.Execute(ctx, succeed), ErrCircuitBreakerOpen)

	clock.advance(11 * time.Second)
	assert.Equal(t, StateHalfOpen, cb.State())

	require.NoError(t, cb.Execute(ctx, succeed))
	assert.Equal(t, StateHalfOpen, cb.State())
	require.NoError(t, cb.Execute(ctx, succeed))
	assert.Equal(t, StateClosed, cb.State())

	assert.Equal(t, []string{"closed>open", "open>half-open", "half-open>closed"}, transitions)
}

func TestBreakerHalfOpenFailureReopens(t *testing.T) {
	cb, clock := newTestBreaker(t, Config{FailureThreshold: 1, SuccessThreshold: 2, MaxRequests: 1, Timeout: time.Second})
	ctx := context.Background()

	_ = cb.Execute(ctx, fail)
	clock.advance(2 * time.Second)
	require.Equal(t, StateHalfOpen, cb.State())

	_ = cb.Execute(ctx, fail)
	assert.Equal(t, StateOpen, cb.State())
}

func TestBreakerHalfOpenTrialLimit(t *testing.T) {
	cb, clock := newTestBreaker(t, Config{FailureThreshold: 1, SuccessThreshold: 5, MaxRequests: 2, Timeout: time.Second})
	ctx := context.Background()

	_ = cb.Execute(ctx, fail)
	clock.advance(2 * time.Second)

	require.NoError(t, cb.Execute(ctx, succeed))
	require.NoError(t, cb.Execute(ctx, succeed))
	assert.ErrorIs(t, cb.Execute(ctx, succeed), ErrTooManyRequests)
}

func TestBreakerIntervalClearsCounts(t *testing.T) {
	cb, clock := newTestBreaker(t, Config{FailureThreshold: 3, SuccessThreshold: 1, MaxRequests: 1, Timeout: time.Second, Interval: time.Minute})
	ctx := context.Background()

	_ = cb.Execute(ctx, fail)
	_ = cb.Execute(ctx, fail)
	assert.Equal(t, uint32(2), cb.Counts().ConsecutiveFailures)

	clock.advance(2 * time.Minute)
	_ = cb.Execute(ctx, fail)
	assert.Equal(t, StateClosed, cb.State())
	assert.Equal(t, uint32(1), cb.Counts().ConsecutiveFailures)
}

func TestBreakerSuccessResetsConsecutiveFailures(t *testing.T) {
	cb, _ := newTestBreaker(t, Config{FailureThreshold: 2, SuccessThreshold: 1, MaxRequests: 1, Timeout: time.Second})
	ctx := context.Background()

	_ = cb.Execute(ctx, fail)
	_ = cb.Execute(ctx, succeed)
	_ = cb.Execute(ctx, fail)
	assert.Equal(t, StateClosed, cb.State())
	assert.Equal(t, uint32(2), cb.Counts().TotalFailures)
}

func TestBreakerPanicCountsAsFailure(t *testing.T) {
	cb, _ := newTestBreaker(t, Config{FailureThreshold: 1, SuccessThreshold: 1, MaxRequests: 1, Timeout: time.Second})

	assert.Panics(t, func() {
		_ = cb.Execute(context.Background(), func() error { panic("boom") })
	})
	assert.Equal(t, StateOpen, cb.State())
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "closed", StateClosed.String())
	assert.Equal(t, "half-open", StateHalfOpen.String())
	assert.Equal(t, "open", StateOpen.String())
	assert.Equal(t, "unknown", State(7).String())
}

func TestConfigForProfiles(t *testing.T) {
	assert.Equal(t, uint32(3), ConfigFor(ProfileHTTP).FailureThreshold)
	assert.Equal(t, uint32(5), ConfigFor(ProfileDatabase).FailureThreshold)
	assert.Equal(t, DefaultConfig().FailureThreshold, ConfigFor(Profile("unknown")).FailureThreshold)

	t.Setenv("TAILOR_CB_REDIS_FAILURE_THRESHOLD", "9")
	t.Setenv("TAILOR_CB_REDIS_TIMEOUT", "45s")
	t.Setenv("TAILOR_CB_REDIS_MAX_REQUESTS", "not-a-number")
	cfg := ConfigFor(ProfileRedis)
	assert.Equal(t, uint32(9), cfg.FailureThreshold)
	assert.Equal(t, 45*time.Second, cfg.Timeout)
	assert.Equal(t, uint32(5), cfg.MaxRequests)
}

func TestMetricsCollectorChainsStateHook(t *testing.T) {
	called := 0
	cfg := Config{FailureThreshold: 1, SuccessThreshold: 1, MaxRequests: 1, Timeout: time.Second}
	cfg.OnStateChange = func(string, State, State) { called++ }
	cb, _ := newTestBreaker(t, cfg)

	mc := NewMetricsCollector()
	mc.RegisterCircuitBreaker("test", "metrics-test", cb)
	_ = cb.Execute(context.Background(), fail)

	assert.Equal(t, 1, called)
	assert.NotPanics(t, mc.UpdateMetrics)
}
