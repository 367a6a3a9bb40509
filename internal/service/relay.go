package service

import (
	"context"
	"errors"
	"log/slog"

	"discuit_search/internal/domain"
)

// Relayer republishes posts from a feed to the message broker so that
// indexers can consume them with the amqp feed.
type Relayer struct {
	feed      Feed
	publisher Publisher
	logger    *slog.Logger
	capacity  int
}

func NewRelayer(feed Feed, publisher Publisher, logger *slog.Logger, capacity int) *Relayer {
	if capacity <= 0 {
		capacity = 256
	}
	return &Relayer{
		feed:      feed,
		publisher: publisher,
		logger:    logger.With("job", "relay"),
		capacity:  capacity,
	}
}

// Run relays until ctx is done or the feed stops. Publish failures are
// logged and skipped.
func (r *Relayer) Run(ctx context.Context) error {
	posts := make(chan domain.Post, r.capacity)
	feedErr := make(chan error, 1)
	go func() {
		defer close(posts)
		feedErr <- r.feed.Subscribe(ctx, posts)
	}()

	var relayed int
	for post := range posts {
		if err := r.publisher.Publish(ctx, &post); err != nil {
			r.logger.Error("failed to publish post", "id", post.ID, "error", err)
			continue
		}
		relayed++
		r.logger.Info("relayed post", "id", post.ID, "public_id", post.PublicID, "total", relayed)
	}

	err := <-feedErr
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
