package worker

import (
	"context"
	"fmt"
	"time"

	"dormdesk/internal/domain"

	"github.com/rs/zerolog"
)

const sweepLockName = "checkout-sweep"

// ExpiredCompleter completes approved checkout requests whose end date has passed.
type ExpiredCompleter interface {
	CompleteExpired(ctx context.Context) (int, error)
}

// CheckoutSweeper periodically completes expired checkout requests. When a
// locker is set, only the replica holding the lock runs a given sweep.
type CheckoutSweeper struct {
	checkouts   ExpiredCompleter
	locker      domain.Locker
	interval    time.Duration
	retryPolicy RetryPolicy
	onCompleted func(n int)
	logger      *zerolog.Logger
}

// NewCheckoutSweeper builds a sweeper with sane defaults.
func NewCheckoutSweeper(checkouts ExpiredCompleter, locker domain.Locker, interval time.Duration, retry RetryPolicy, logger *zerolog.Logger) *CheckoutSweeper {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}

	return &CheckoutSweeper{
		checkouts:   checkouts,
		locker:      locker,
		interval:    interval,
		retryPolicy: retry.withDefaults(),
		logger:      logger,
	}
}

// OnCompleted registers a callback receiving the number of requests each sweep completed.
func (s *CheckoutSweeper) OnCompleted(fn func(n int)) {
	s.onCompleted = fn
}

// Start runs a sweep immediately and then on every tick until ctx is done.
func (s *CheckoutSweeper) Start(ctx context.Context) {
	s.logger.Info().Dur("interval", s.interval).Msg("checkout sweeper started")
	defer s.logger.Info().Msg("checkout sweeper stopped")

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		if _, err := s.RunOnce(ctx); err != nil && ctx.Err() == nil {
			s.logger.Error().Err(err).Msg("checkout sweep failed")
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// RunOnce performs a single sweep, retrying failures with backoff.
func (s *CheckoutSweeper) RunOnce(ctx context.Context) (int, error) {
	if s.locker != nil {
		ok, err := s.locker.TryLock(ctx, sweepLockName, s.interval/2)
		if err != nil {
			s.logger.Warn().Err(err).Msg("sweep lock unavailable, running unlocked")
		} else if !ok {
			s.logger.Debug().Msg("sweep held by another instance")
			return 0, nil
		}
	}

	var lastErr error
	for attempt := 1; attempt <= s.retryPolicy.MaxRetries; attempt++ {
		n, err := s.checkouts.CompleteExpired(ctx)
		if err == nil {
			if n > 0 {
				s.logger.Info().Int("completed", n).Msg("expired checkout requests completed")
			}
			if s.onCompleted != nil {
				s.onCompleted(n)
			}
			return n, nil
		}
		lastErr = err
		if attempt == s.retryPolicy.MaxRetries {
			break
		}

		s.logger.Warn().Err(err).Int("attempt", attempt).Dur("retry_in", s.retryPolicy.NextDelay(attempt)).Msg("checkout sweep attempt failed")
		if err := s.retryPolicy.Wait(ctx, attempt); err != nil {
			return 0, err
		}
	}
	return 0, fmt.Errorf("checkout sweep: %w", lastErr)
}
