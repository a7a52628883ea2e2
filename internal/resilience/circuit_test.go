package resilience

import (
	"context"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// brokenUpstream simulates the retrieval service failing every call.
func brokenUpstream(calls *int) func(context.Context) ([]string, error) {
	return func(_ context.Context) ([]string, error) {
		*calls++
		return nil, eris.New("retrieval: unexpected status 502: bad gateway")
	}
}

func failTimes(cb *CircuitBreaker, n int) {
	calls := 0
	for i := 0; i < n; i++ {
		_, _ = ExecuteVal(context.Background(), cb, brokenUpstream(&calls))
	}
}

func TestBreakerPassesValueThrough(t *testing.T) {
	cb := NewCircuitBreaker(DefaultCircuitBreakerConfig())

	passages, err := ExecuteVal(context.Background(), cb, func(_ context.Context) ([]string, error) {
		return []string{"deed excerpt"}, nil
	})

	require.NoError(t, err)
	assert.Equal(t, []string{"deed excerpt"}, passages)
	assert.Equal(t, CircuitClosed, cb.State())
}

func TestBreakerOpensAfterConsecutiveFailures(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{FailureThreshold: 3, ResetTimeout: time.Minute})

	failTimes(cb, 3)
	assert.Equal(t, CircuitOpen, cb.State())

	calls := 0
	_, err := ExecuteVal(context.Background(), cb, brokenUpstream(&calls))
	require.ErrorIs(t, err, ErrCircuitOpen)
	assert.Zero(t, calls, "an open breaker must not reach the upstream")
}

func TestBreakerSuccessResetsFailureCount(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{FailureThreshold: 3, ResetTimeout: time.Minute})

	failTimes(cb, 2)
	_, err := ExecuteVal(context.Background(), cb, func(_ context.Context) (string, error) {
		return "ok", nil
	})
	require.NoError(t, err)

	failTimes(cb, 2)
	assert.Equal(t, CircuitClosed, cb.State(), "the streak restarts after a success")
}

func TestBreakerHalfOpenAfterResetTimeout(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{FailureThreshold: 1, ResetTimeout: 30 * time.Second})

	base := time.Now()
	cb.now = func() time.Time { return base }
	failTimes(cb, 1)
	assert.Equal(t, CircuitOpen, cb.State())

	cb.now = func() time.Time { return base.Add(31 * time.Second) }
	assert.Equal(t, CircuitHalfOpen, cb.State())
}

func TestBreakerProbeSuccessCloses(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{FailureThreshold: 1, ResetTimeout: 30 * time.Second})

	base := time.Now()
	cb.now = func() time.Time { return base }
	failTimes(cb, 1)

	cb.now = func() time.Time { return base.Add(31 * time.Second) }
	_, err := ExecuteVal(context.Background(), cb, func(_ context.Context) (string, error) {
		return "recovered", nil
	})
	require.NoError(t, err)
	assert.Equal(t, CircuitClosed, cb.State())

	// The recovered upstream keeps serving.
	got, err := ExecuteVal(context.Background(), cb, func(_ context.Context) (string, error) {
		return "still serving", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "still serving", got)
}

func TestBreakerProbeFailureReopens(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{FailureThreshold: 1, ResetTimeout: 30 * time.Second})

	base := time.Now()
	cb.now = func() time.Time { return base }
	failTimes(cb, 1)

	// Probe fails at t+31s; the breaker reopens from that failure.
	cb.now = func() time.Time { return base.Add(31 * time.Second) }
	calls := 0
	_, err := ExecuteVal(context.Background(), cb, brokenUpstream(&calls))
	require.Error(t, err)
	assert.Equal(t, 1, calls)

	// Still inside the new reset window: rejected without a call.
	cb.now = func() time.Time { return base.Add(40 * time.Second) }
	_, err = ExecuteVal(context.Background(), cb, brokenUpstream(&calls))
	require.ErrorIs(t, err, ErrCircuitOpen)
	assert.Equal(t, 1, calls)
}

func TestBreakerMultipleProbesRequired(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{
		FailureThreshold:  1,
		ResetTimeout:      30 * time.Second,
		HalfOpenMaxProbes: 2,
	})

	base := time.Now()
	cb.now = func() time.Time { return base }
	failTimes(cb, 1)
	cb.now = func() time.Time { return base.Add(31 * time.Second) }

	ok := func(_ context.Context) (string, error) { return "ok", nil }

	_, err := ExecuteVal(context.Background(), cb, ok)
	require.NoError(t, err)
	assert.Equal(t, CircuitHalfOpen, cb.State(), "one probe is not enough")

	_, err = ExecuteVal(context.Background(), cb, ok)
	require.NoError(t, err)
	assert.Equal(t, CircuitClosed, cb.State())
}

func TestNewCircuitBreakerFillsZeroFields(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{})
	def := DefaultCircuitBreakerConfig()

	assert.Equal(t, def.FailureThreshold, cb.cfg.FailureThreshold)
	assert.Equal(t, def.ResetTimeout, cb.cfg.ResetTimeout)
	assert.Equal(t, def.HalfOpenMaxProbes, cb.cfg.HalfOpenMaxProbes)
}

func TestCircuitStateString(t *testing.T) {
	assert.Equal(t, "closed", CircuitClosed.String())
	assert.Equal(t, "open", CircuitOpen.String())
	assert.Equal(t, "half-open", CircuitHalfOpen.String())
	assert.Equal(t, "unknown", CircuitState(42).String())
}

func TestFromCircuitConfig(t *testing.T) {
	cfg := FromCircuitConfig(7, 60)
	assert.Equal(t, 7, cfg.FailureThreshold)
	assert.Equal(t, time.Minute, cfg.ResetTimeout)

	def := DefaultCircuitBreakerConfig()
	cfg = FromCircuitConfig(0, 0)
	assert.Equal(t, def.FailureThreshold, cfg.FailureThreshold)
	assert.Equal(t, def.ResetTimeout, cfg.ResetTimeout)
}
