package adapter

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func noSleep(context.Context, time.Duration) error { return nil }

func TestBackoff(t *testing.T) {
	r := Retry{BaseDelay: 2 * time.Second, MaxDelay: 10 * time.Second}
	assert.Equal(t, 2*time.Second, r.Backoff(1))
	assert.Equal(t, 4*time.Second, r.Backoff(2))
	assert.Equal(t, 8*time.Second, r.Backoff(3))
	assert.Equal(t, 10*time.Second, r.Backoff(4))
	assert.Equal(t, 10*time.Second, r.Backoff(30))

	uncapped := Retry{BaseDelay: time.Millisecond}
	assert.Equal(t, 8*time.Millisecond, uncapped.Backoff(4))
}

func TestRetryTransientUsesEveryAttempt(t *testing.T) {
	var slept []time.Duration
	r := Retry{MaxAttempts: 3, BaseDelay: 2 * time.Second, MaxDelay: 10 * time.Second,
		Sleep: func(_ context.Context, d time.Duration) error {
			slept = append(slept, d)
			return nil
		}}

	calls := 0
	err := r.Do(context.Background(), func(context.Context, int) error {
		calls++
		return &TransientError{Err: errors.New("503")}
	})
	assert.True(t, IsTransient(err))
	assert.Equal(t, 3, calls)
	assert.Equal(t, []time.Duration{2 * time.Second, 4 * time.Second}, slept)
}

func TestRetryPermanentStopsImmediately(t *testing.T) {
	r := Retry{MaxAttempts: 5, Sleep: noSleep}
	calls := 0
	err := r.Do(context.Background(), func(context.Context, int) error {
		calls++
		return &PermanentError{StatusCode: 400, Err: errors.New("bad request")}
	})
	var pe *PermanentError
	assert.ErrorAs(t, err, &pe)
	assert.Equal(t, 400, pe.StatusCode)
	assert.Equal(t, 1, calls)
}

func TestRetryRecovers(t *testing.T) {
	r := Retry{MaxAttempts: 3, Sleep: noSleep}
	var seen []int
	err := r.Do(context.Background(), func(_ context.Context, attempt int) error {
		seen = append(seen, attempt)
		if attempt < 2 {
			return &TransientError{Err: errors.New("refused")}
		}
		return nil
	})
	assert.NoError(t, err)
	assert.Equal(t, []int{1, 2}, seen)
}

func TestRetrySleepHonoursContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	r := Retry{MaxAttempts: 3, BaseDelay: time.Hour}
	calls := 0
	err := r.Do(ctx, func(context.Context, int) error {
		calls++
		return &TransientError{Err: errors.New("503")}
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}

func TestMapStatus(t *testing.T) {
	assert.EqualValues(t, "SUCCESS", MapStatus("00"))
	assert.EqualValues(t, "SUCCESS", MapStatus("success"))
	assert.EqualValues(t, "TIMEOUT", MapStatus("TIMEOUT"))
	assert.EqualValues(t, "FAILED", MapStatus("51"))
	assert.EqualValues(t, "FAILED", MapStatus(""))
}
