package services

import (
	"context"
	"time"

	"pitstop/internal/apperrors"
	"pitstop/internal/logger"
)

const (
	RetryDefaultAttempts = 3
	RetryDefaultDelay    = 500 * time.Millisecond
)

// RetryService wraps network-bound operations with a linear backoff policy.
// Validation, not-found and conflict classes are surfaced immediately; only
// opaque store and transport failures are retried.
type RetryService struct {
	attempts  int
	baseDelay time.Duration
	log       logger.Logger
}

func NewRetryService() *RetryService {
	return &RetryService{
		attempts:  RetryDefaultAttempts,
		baseDelay: RetryDefaultDelay,
		log:       logger.New("RetryService"),
	}
}

func NewRetryServiceWithPolicy(attempts int, baseDelay time.Duration) *RetryService {
	if attempts < 1 {
		attempts = 1
	}
	return &RetryService{
		attempts:  attempts,
		baseDelay: baseDelay,
		log:       logger.New("RetryService"),
	}
}

// Do runs fn up to the configured attempt count with linearly increasing
// delay between attempts (base, 2*base, ...).
func (s *RetryService) Do(ctx context.Context, operation string, fn func(context.Context) error) error {
	log := s.log.Function("Do")

	var err error
	for attempt := 1; attempt <= s.attempts; attempt++ {
		err = fn(ctx)
		if err == nil {
			return nil
		}

		if apperrors.IsPermanent(err) {
			return err
		}

		if attempt == s.attempts {
			break
		}

		delay := time.Duration(attempt) * s.baseDelay
		log.Warn(
			"operation failed, retrying",
			"operation", operation,
			"attempt", attempt,
			"delay", delay.String(),
			"error", err,
		)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}

	return log.Err("operation failed after retries", err, "operation", operation, "attempts", s.attempts)
}
