package resilience

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastRetry(attempts int) RetryConfig {
	return RetryConfig{
		MaxAttempts:    attempts,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     5 * time.Millisecond,
		Multiplier:     2.0,
	}
}

func TestDo_SuccessOnFirstAttempt(t *testing.T) {
	var calls int
	err := Do(context.Background(), DefaultRetryConfig(), func(_ context.Context) error {
		calls++
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestDoVal_SuccessAfterRetry(t *testing.T) {
	var calls, retries int
	cfg := fastRetry(3)
	cfg.OnRetry = func(int, error) { retries++ }

	val, err := DoVal(context.Background(), cfg, func(_ context.Context) (string, error) {
		calls++
		if calls < 3 {
			return "", &StatusError{StatusCode: 503}
		}
		return "ok", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "ok", val)
	assert.Equal(t, 3, calls)
	assert.Equal(t, 2, retries)
}

func TestDo_ExhaustsRetries(t *testing.T) {
	var calls int
	err := Do(context.Background(), fastRetry(3), func(_ context.Context) error {
		calls++
		return &StatusError{StatusCode: 502}
	})
	require.Error(t, err)
	assert.Equal(t, 3, calls)
}

func TestDo_PermanentErrorNotRetried(t *testing.T) {
	var calls int
	err := Do(context.Background(), fastRetry(5), func(_ context.Context) error {
		calls++
		return &StatusError{StatusCode: 404, Message: "Property not found"}
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
	assert.Contains(t, err.Error(), "Property not found")
}

func TestDo_ContextCancelStopsRetries(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var calls int
	cfg := fastRetry(10)
	cfg.InitialBackoff = time.Hour
	cfg.MaxBackoff = time.Hour

	done := make(chan error, 1)
	go func() {
		done <- Do(ctx, cfg, func(_ context.Context) error {
			calls++
			return &StatusError{StatusCode: 503}
		})
	}()
	time.Sleep(10 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.Error(t, err)
		assert.Equal(t, 1, calls)
	case <-time.After(time.Second):
		t.Fatal("retry loop did not stop on cancel")
	}
}

func TestBackoff_Capped(t *testing.T) {
	cfg := withDefaults(RetryConfig{InitialBackoff: time.Second, MaxBackoff: 3 * time.Second})
	assert.Equal(t, time.Second, backoff(0, cfg))
	assert.Equal(t, 2*time.Second, backoff(1, cfg))
	assert.Equal(t, 3*time.Second, backoff(5, cfg))
}

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"503", &StatusError{StatusCode: 503}, true},
		{"429 wrapped", fmt.Errorf("bounds: %w", &StatusError{StatusCode: 429}), true},
		{"500", &StatusError{StatusCode: 500}, false},
		{"404", &StatusError{StatusCode: 404}, false},
		{"deadline", context.DeadlineExceeded, false},
		{"canceled", context.Canceled, false},
		{"plain", errors.New("boom"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsTransient(tt.err))
		})
	}
}

func TestStatusError_Message(t *testing.T) {
	assert.Equal(t, "http status 500", (&StatusError{StatusCode: 500}).Error())
	assert.Equal(t, "http status 400: Invalid property data",
		(&StatusError{StatusCode: 400, Message: "Invalid property data"}).Error())
}

func testBreaker(threshold int) (*Breaker, *time.Time) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	b := NewBreaker("test", threshold, time.Minute)
	b.now = func() time.Time { return now }
	return b, &now
}

func fail(ctx context.Context) (int, error)    { return 0, &StatusError{StatusCode: 503} }
func succeed(ctx context.Context) (int, error) { return 1, nil }

func TestBreaker_OpensAfterThreshold(t *testing.T) {
	b, _ := testBreaker(3)
	ctx := context.Background()

	for range 3 {
		_, err := Execute(ctx, b, fail)
		require.Error(t, err)
	}
	assert.Equal(t, BreakerOpen, b.State())

	_, err := Execute(ctx, b, func(context.Context) (int, error) {
		t.Error("should not be called while open")
		return 0, nil
	})
	assert.ErrorIs(t, err, ErrBreakerOpen)
}

func TestBreaker_HalfOpenProbe(t *testing.T) {
	b, now := testBreaker(1)
	ctx := context.Background()

	_, _ = Execute(ctx, b, fail)
	require.Equal(t, BreakerOpen, b.State())

	*now = now.Add(time.Minute)
	assert.Equal(t, BreakerHalfOpen, b.State())

	// A failed trial request reopens.
	_, _ = Execute(ctx, b, fail)
	assert.Equal(t, BreakerOpen, b.State())

	*now = now.Add(time.Minute)
	v, err := Execute(ctx, b, succeed)
	require.NoError(t, err)
	assert.Equal(t, 1, v)
	assert.Equal(t, BreakerClosed, b.State())
}

func TestBreaker_ClientErrorsDoNotTrip(t *testing.T) {
	b, _ := testBreaker(2)
	ctx := context.Background()
	for range 5 {
		_, _ = Execute(ctx, b, func(context.Context) (int, error) {
			return 0, &StatusError{StatusCode: 404}
		})
	}
	assert.Equal(t, BreakerClosed, b.State())
}

func TestBreaker_TimeoutsTrip(t *testing.T) {
	b, _ := testBreaker(2)
	ctx := context.Background()
	for range 2 {
		_, _ = Execute(ctx, b, func(context.Context) (int, error) {
			return 0, fmt.Errorf("bounds: %w", context.DeadlineExceeded)
		})
	}
	assert.Equal(t, BreakerOpen, b.State())
}

func TestBreakerState_String(t *testing.T) {
	assert.Equal(t, "closed", BreakerClosed.String())
	assert.Equal(t, "open", BreakerOpen.String())
	assert.Equal(t, "half-open", BreakerHalfOpen.String())
	assert.Equal(t, "unknown", BreakerState(9).String())
}
