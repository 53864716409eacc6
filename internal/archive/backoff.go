package archive

import (
	"context"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/sirupsen/logrus"
)

// BackoffFetcher retries an operation under exponential backoff whenever the
// archive signals rate limiting. Any other failure propagates immediately.
type BackoffFetcher struct {
	initial time.Duration
	max     time.Duration
	clock   clockwork.Clock
	logger  *logrus.Entry
}

// NewBackoffFetcher creates a new backoff fetcher
func NewBackoffFetcher(initial, max time.Duration, clock clockwork.Clock, logger *logrus.Logger) *BackoffFetcher {
	return &BackoffFetcher{
		initial: initial,
		max:     max,
		clock:   clock,
		logger:  logger.WithField("component", "backoff"),
	}
}

// Do invokes op until it succeeds or fails with a non-rate-limit error. The
// sleep starts at the initial value, doubles after every rate-limited
// attempt and is capped at the maximum. There is no retry ceiling: under
// sustained rate limiting the loop degrades to polling at the cap interval.
// The sleep state is local to each call, so every task starts fresh.
func (b *BackoffFetcher) Do(ctx context.Context, op func() error) error {
	sleep := b.initial

	for {
		err := op()
		if err == nil {
			return nil
		}
		if !IsRateLimit(err) {
			return err
		}

		b.logger.WithFields(logrus.Fields{
			"sleep": sleep.String(),
		}).Warn("Rate limited by archive, backing off")

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-b.clock.After(sleep):
		}

		sleep *= 2
		if sleep > b.max {
			sleep = b.max
		}
	}
}
