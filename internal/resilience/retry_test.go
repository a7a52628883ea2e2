package resilience

import (
	"context"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// quickRetry keeps test backoffs in the microsecond range.
func quickRetry(attempts int) RetryConfig {
	return RetryConfig{
		MaxAttempts:    attempts,
		InitialBackoff: time.Microsecond,
		MaxBackoff:     time.Millisecond,
		Multiplier:     2.0,
	}
}

func retrievalOutage() error {
	return NewTransientError(eris.New("retrieval: unexpected status 503: index rebuilding"), 503)
}

func TestDoValFirstAttemptSucceeds(t *testing.T) {
	calls := 0
	passages, err := DoVal(context.Background(), quickRetry(3), func(_ context.Context) ([]string, error) {
		calls++
		return []string{"lien registered in 2023"}, nil
	})

	require.NoError(t, err)
	assert.Equal(t, []string{"lien registered in 2023"}, passages)
	assert.Equal(t, 1, calls)
}

func TestDoValRetriesTransientOutage(t *testing.T) {
	calls := 0
	passages, err := DoVal(context.Background(), quickRetry(3), func(_ context.Context) ([]string, error) {
		calls++
		if calls < 3 {
			return nil, retrievalOutage()
		}
		return []string{"recovered passage"}, nil
	})

	require.NoError(t, err)
	assert.Equal(t, []string{"recovered passage"}, passages)
	assert.Equal(t, 3, calls)
}

func TestDoValExhaustsAttempts(t *testing.T) {
	calls := 0
	_, err := DoVal(context.Background(), quickRetry(3), func(_ context.Context) ([]string, error) {
		calls++
		return nil, retrievalOutage()
	})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "503")
	assert.Equal(t, 3, calls)
}

func TestDoValPermanentErrorNotRetried(t *testing.T) {
	calls := 0
	_, err := DoVal(context.Background(), quickRetry(3), func(_ context.Context) (string, error) {
		calls++
		return "", eris.New("llmsvc: create message: invalid api key")
	})

	require.Error(t, err)
	assert.Equal(t, 1, calls, "an auth failure must not be retried")
}

func TestDoValStopsWhenContextEnds(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	calls := 0
	_, err := DoVal(ctx, quickRetry(5), func(_ context.Context) (string, error) {
		calls++
		cancel()
		return "", retrievalOutage()
	})

	require.Error(t, err)
	assert.Equal(t, 1, calls, "no retry once the query timeout has fired")
}

func TestDelayGrowsAndCaps(t *testing.T) {
	cfg := RetryConfig{
		InitialBackoff: 100 * time.Millisecond,
		MaxBackoff:     300 * time.Millisecond,
		Multiplier:     2.0,
	}.normalized()

	assert.Equal(t, 100*time.Millisecond, cfg.delay(1))
	assert.Equal(t, 200*time.Millisecond, cfg.delay(2))
	assert.Equal(t, 300*time.Millisecond, cfg.delay(3), "capped at MaxBackoff")
	assert.Equal(t, 300*time.Millisecond, cfg.delay(8))
}

func TestDelayJitterStaysWithinFraction(t *testing.T) {
	cfg := RetryConfig{
		InitialBackoff: 100 * time.Millisecond,
		MaxBackoff:     time.Second,
		Multiplier:     1.0,
		JitterFraction: 0.5,
	}.normalized()

	for i := 0; i < 100; i++ {
		d := cfg.delay(1)
		assert.GreaterOrEqual(t, d, 50*time.Millisecond)
		assert.LessOrEqual(t, d, 150*time.Millisecond)
	}
}

func TestNormalizedFillsZeroFields(t *testing.T) {
	cfg := RetryConfig{}.normalized()
	def := DefaultRetryConfig()

	assert.Equal(t, def.MaxAttempts, cfg.MaxAttempts)
	assert.Equal(t, def.InitialBackoff, cfg.InitialBackoff)
	assert.Equal(t, def.MaxBackoff, cfg.MaxBackoff)
	assert.Equal(t, def.Multiplier, cfg.Multiplier)
}

func TestFromRetryConfig(t *testing.T) {
	cfg := FromRetryConfig(5, 250, 4000, 3.0, 0.1)

	assert.Equal(t, 5, cfg.MaxAttempts)
	assert.Equal(t, 250*time.Millisecond, cfg.InitialBackoff)
	assert.Equal(t, 4*time.Second, cfg.MaxBackoff)
	assert.Equal(t, 3.0, cfg.Multiplier)
	assert.Equal(t, 0.1, cfg.JitterFraction)
}

func TestFromRetryConfigIgnoresNonPositiveValues(t *testing.T) {
	def := DefaultRetryConfig()
	cfg := FromRetryConfig(0, -1, 0, 0, 0.0)

	assert.Equal(t, def.MaxAttempts, cfg.MaxAttempts)
	assert.Equal(t, def.InitialBackoff, cfg.InitialBackoff)
	assert.Equal(t, def.MaxBackoff, cfg.MaxBackoff)
	assert.Equal(t, def.Multiplier, cfg.Multiplier)
	assert.Equal(t, 0.0, cfg.JitterFraction)
}
