package discuit

import (
	"context"
	"log/slog"
	"slices"
	"time"

	"discuit_search/internal/domain"
)

// Lister is implemented by Client.
type Lister interface {
	ListPosts(ctx context.Context, next string, limit int) ([]domain.Post, string, error)
}

// Watcher polls the newest page of posts and emits every post it has not
// seen in the previous poll. The first successful poll only records what is
// already there.
type Watcher struct {
	lister   Lister
	interval time.Duration
	limit    int
	logger   *slog.Logger

	seen   map[string]struct{}
	primed bool
}

func NewWatcher(lister Lister, interval time.Duration, limit int, logger *slog.Logger) *Watcher {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	return &Watcher{
		lister:   lister,
		interval: interval,
		limit:    limit,
		logger:   logger.With("feed", "poll"),
	}
}

// Subscribe polls until ctx is done, sending new posts oldest first. Poll
// failures are logged and retried on the next tick.
func (w *Watcher) Subscribe(ctx context.Context, out chan<- domain.Post) error {
	w.logger.Info("watching for new posts", "interval", w.interval)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		if err := w.poll(ctx, out); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			w.logger.Warn("poll failed", "error", err)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (w *Watcher) poll(ctx context.Context, out chan<- domain.Post) error {
	posts, _, err := w.lister.ListPosts(ctx, "", w.limit)
	if err != nil {
		return err
	}

	current := make(map[string]struct{}, len(posts))
	var fresh []domain.Post
	for _, p := range posts {
		current[p.ID] = struct{}{}
		if _, ok := w.seen[p.ID]; !ok {
			fresh = append(fresh, p)
		}
	}
	// Only the last page is remembered. A post that falls out of it and comes
	// back is emitted again and dropped by the store's dedup.
	w.seen = current

	if !w.primed {
		w.primed = true
		w.logger.Info("primed watcher", "known", len(current))
		return nil
	}

	slices.Reverse(fresh)
	for _, p := range fresh {
		select {
		case out <- p:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if len(fresh) > 0 {
		w.logger.Debug("emitted new posts", "count", len(fresh))
	}
	return nil
}
