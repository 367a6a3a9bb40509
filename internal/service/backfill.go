package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"discuit_search/internal/config"
	"discuit_search/internal/domain"
	"discuit_search/internal/source/discuit"
)

const backfillJob = "backfill"

// Backfiller copies historical posts from the Discuit API into the store.
type Backfiller struct {
	source    Source
	store     PostStore
	syncState SyncStateStore
	txManager TransactionManager
	metrics   Metrics
	logger    *slog.Logger
	maxPosts  int
	pageSize  int
}

func NewBackfiller(
	source Source,
	store PostStore,
	syncState SyncStateStore,
	txManager TransactionManager,
	metrics Metrics,
	logger *slog.Logger,
	cfg config.BackfillConfig,
	pageSize int,
) *Backfiller {
	if pageSize <= 0 {
		pageSize = 50
	}
	return &Backfiller{
		source:    source,
		store:     store,
		syncState: syncState,
		txManager: txManager,
		metrics:   metricsOrNop(metrics),
		logger:    logger.With("job", backfillJob),
		maxPosts:  cfg.MaxPosts,
		pageSize:  pageSize,
	}
}

// Run pages through the source starting from the saved cursor until
// maxPosts posts were fetched or the source runs out. Each page and the
// cursor after it are saved in one transaction. When the source becomes
// unavailable the run stops early and reports a partial result without an
// error.
func (b *Backfiller) Run(ctx context.Context) (*domain.BackfillStats, error) {
	start := time.Now()

	state, err := b.syncState.Get(ctx, backfillJob)
	if err != nil {
		return nil, fmt.Errorf("get sync state: %w", err)
	}

	stats := &domain.BackfillStats{Cursor: state.Cursor}
	b.logger.Info("starting backfill", "max_posts", b.maxPosts, "cursor", state.Cursor)

	for b.maxPosts <= 0 || stats.Fetched < b.maxPosts {
		limit := b.pageSize
		if b.maxPosts > 0 {
			limit = min(limit, b.maxPosts-stats.Fetched)
		}

		posts, next, err := b.source.ListPosts(ctx, stats.Cursor, limit)
		if err != nil {
			if errors.Is(err, discuit.ErrUnavailable) {
				stats.Partial = true
				b.logger.Warn("source unavailable, stopping early",
					"fetched", stats.Fetched,
					"error", err,
				)
				break
			}
			stats.Duration = time.Since(start)
			return stats, fmt.Errorf("list posts: %w", err)
		}
		if len(posts) == 0 {
			break
		}

		inserted, err := b.savePage(ctx, state, posts, next)
		if err != nil {
			stats.Duration = time.Since(start)
			return stats, err
		}

		stats.Pages++
		stats.Fetched += len(posts)
		stats.Inserted += inserted
		stats.Cursor = next
		b.metrics.RecordBackfill(inserted)

		b.logger.Info("saved page",
			"page", stats.Pages,
			"posts", len(posts),
			"inserted", inserted,
			"fetched", stats.Fetched,
		)

		if next == "" {
			break
		}
	}

	stats.Duration = time.Since(start)
	b.logger.Info("backfill completed",
		"pages", stats.Pages,
		"fetched", stats.Fetched,
		"inserted", stats.Inserted,
		"partial", stats.Partial,
		"duration", stats.Duration,
	)

	return stats, nil
}

func (b *Backfiller) savePage(ctx context.Context, state *domain.SyncState, posts []domain.Post, next string) (int, error) {
	var inserted int
	err := b.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		saved, err := b.store.InsertIgnore(txCtx, posts)
		if err != nil {
			return fmt.Errorf("insert posts: %w", err)
		}
		inserted = len(saved)

		updated := *state
		updated.Cursor = next
		updated.LastSyncedAt = time.Now()
		updated.TotalSynced += int64(inserted)
		if err := b.syncState.Update(txCtx, &updated); err != nil {
			return fmt.Errorf("update sync state: %w", err)
		}
		*state = updated
		return nil
	})
	return inserted, err
}
