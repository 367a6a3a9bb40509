package service

import (
	"context"
	"log/slog"
	"time"

	"discuit_search/internal/domain"
)

// RestartingFeed keeps a live feed subscribed. When the wrapped feed stops
// with an error it is logged and the subscription is retried with exponential
// backoff, so a broken broker connection never ends ingestion.
type RestartingFeed struct {
	feed           Feed
	initialBackoff time.Duration
	maxBackoff     time.Duration
	logger         *slog.Logger
}

func NewRestartingFeed(feed Feed, initialBackoff, maxBackoff time.Duration, logger *slog.Logger) *RestartingFeed {
	if initialBackoff <= 0 {
		initialBackoff = time.Second
	}
	if maxBackoff < initialBackoff {
		maxBackoff = initialBackoff
	}
	return &RestartingFeed{
		feed:           feed,
		initialBackoff: initialBackoff,
		maxBackoff:     maxBackoff,
		logger:         logger.With("job", "feed"),
	}
}

// Subscribe returns only once ctx is done.
func (f *RestartingFeed) Subscribe(ctx context.Context, out chan<- domain.Post) error {
	attempt := 0
	for {
		started := time.Now()
		err := f.feed.Subscribe(ctx, out)
		if ctx.Err() != nil {
			return ctx.Err()
		}

		// A subscription that stayed up for a while starts the backoff over.
		if time.Since(started) >= f.maxBackoff {
			attempt = 0
		}
		attempt++
		backoff := f.calculateBackoff(attempt)
		f.logger.Error("live feed stopped, resubscribing",
			"attempt", attempt,
			"backoff", backoff,
			"error", err,
		)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
	}
}

func (f *RestartingFeed) calculateBackoff(attempt int) time.Duration {
	backoff := f.initialBackoff
	for i := 1; i < attempt && backoff < f.maxBackoff; i++ {
		backoff *= 2
	}
	return min(backoff, f.maxBackoff)
}
