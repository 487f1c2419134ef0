package services

import (
	"context"
	"fmt"
	"testing"
	"time"

	"pitstop/internal/apperrors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRetryService() *RetryService {
	return NewRetryServiceWithPolicy(3, time.Millisecond)
}

func TestRetryDoSucceedsFirstAttempt(t *testing.T) {
	calls := 0

	err := testRetryService().Do(context.Background(), "noop", func(ctx context.Context) error {
		calls++
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestRetryDoRetriesTransientFailures(t *testing.T) {
	calls := 0

	err := testRetryService().Do(context.Background(), "flaky", func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return fmt.Errorf("connection reset")
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestRetryDoExhaustsAttempts(t *testing.T) {
	calls := 0
	transient := fmt.Errorf("connection reset")

	err := testRetryService().Do(context.Background(), "down", func(ctx context.Context) error {
		calls++
		return transient
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, transient)
	assert.Equal(t, 3, calls)
}

func TestRetryDoPermanentErrorsSurfaceImmediately(t *testing.T) {
	permanents := []error{
		apperrors.ErrValidation,
		apperrors.ErrNotFound,
		apperrors.ErrConflict,
		apperrors.ErrInvalidTransition,
	}

	for _, permanent := range permanents {
		calls := 0
		err := testRetryService().Do(context.Background(), "guarded", func(ctx context.Context) error {
			calls++
			return fmt.Errorf("refused: %w", permanent)
		})

		assert.ErrorIs(t, err, permanent)
		assert.Equal(t, 1, calls, "%v should not be retried", permanent)
	}
}

func TestRetryDoStopsOnCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	calls := 0
	err := NewRetryServiceWithPolicy(3, time.Minute).Do(ctx, "slow", func(ctx context.Context) error {
		calls++
		cancel()
		return fmt.Errorf("connection reset")
	})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}
