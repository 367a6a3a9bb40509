package service

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"discuit_search/internal/config"
	"discuit_search/internal/domain"
	"discuit_search/internal/redact"
)

// Ingester buffers posts arriving from a live feed and flushes them to the
// store and then the index, either once the buffer holds batchSize posts or
// after batchTimeout without reaching it.
type Ingester struct {
	store       PostStore
	index       SearchIndex
	redactor    *redact.Redactor
	metrics     Metrics
	logger      *slog.Logger
	batchSize   int
	window      time.Duration
	taskTimeout time.Duration

	// Owned by the Run goroutine.
	buffer []domain.Post
}

func NewIngester(
	store PostStore,
	index SearchIndex,
	redactor *redact.Redactor,
	metrics Metrics,
	logger *slog.Logger,
	cfg config.IngestConfig,
	taskTimeout time.Duration,
) *Ingester {
	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = 10
	}
	window := cfg.BatchTimeout
	if window <= 0 {
		window = 5 * time.Second
	}
	return &Ingester{
		store:       store,
		index:       index,
		redactor:    redactor,
		metrics:     metricsOrNop(metrics),
		logger:      logger.With("job", "ingest"),
		batchSize:   batchSize,
		window:      window,
		taskTimeout: taskTimeout,
	}
}

// Run consumes events until ctx is done or events is closed, then flushes
// whatever is still buffered. A failed flush is logged and the loop goes on.
func (i *Ingester) Run(ctx context.Context, events <-chan domain.Post) error {
	var (
		timer  *time.Timer
		timerC <-chan time.Time
	)
	arm := func() {
		timer = time.NewTimer(i.window)
		timerC = timer.C
	}
	disarm := func() {
		if timer != nil {
			timer.Stop()
		}
		timer, timerC = nil, nil
	}
	defer disarm()

	i.logger.Info("ingester started", "batch_size", i.batchSize, "batch_timeout", i.window)

	for {
		select {
		case <-ctx.Done():
			disarm()
			i.shutdown(ctx, events)
			return ctx.Err()

		case post, ok := <-events:
			if !ok {
				disarm()
				i.shutdown(ctx, nil)
				return nil
			}
			i.accept(post)
			if len(i.buffer) >= i.batchSize {
				disarm()
				i.flush(ctx)
			} else if timer == nil {
				arm()
			}

		case <-timerC:
			timer, timerC = nil, nil
			i.flush(ctx)
			if len(i.buffer) > 0 {
				arm()
			}
		}
	}
}

func (i *Ingester) accept(post domain.Post) {
	i.buffer = append(i.buffer, post)
	i.metrics.RecordEvent()
	i.logger.Info("received post",
		"id", post.ID,
		"public_id", post.PublicID,
		"buffered", len(i.buffer),
	)
}

// flush drains up to batchSize posts from the front of the buffer. The posts
// leave the buffer whatever the outcome.
func (i *Ingester) flush(ctx context.Context) {
	n := min(len(i.buffer), i.batchSize)
	if n == 0 {
		return
	}
	batch := slices.Clone(i.buffer[:n])
	i.buffer = slices.Delete(i.buffer, 0, n)

	stats, err := i.write(ctx, batch)
	i.metrics.RecordFlush(stats, err)
	if err != nil {
		i.logger.Error("flush failed",
			"drained", stats.Drained,
			"inserted", stats.Inserted,
			"error", err,
		)
		return
	}
	i.logger.Info("flushed posts",
		"drained", stats.Drained,
		"inserted", stats.Inserted,
		"duplicates", stats.Drained-stats.Inserted,
		"indexed", stats.Indexed,
	)
}

func (i *Ingester) write(ctx context.Context, batch []domain.Post) (domain.FlushStats, error) {
	stats := domain.FlushStats{Drained: len(batch)}

	inserted, err := i.store.InsertIgnore(ctx, batch)
	if err != nil {
		return stats, fmt.Errorf("insert posts: %w", err)
	}
	stats.Inserted = len(inserted)
	if len(inserted) == 0 {
		return stats, nil
	}

	task, err := i.index.AddDocuments(ctx, i.redactor.Posts(inserted))
	if err != nil {
		return stats, fmt.Errorf("add documents: %w", err)
	}
	if err := i.index.WaitForTask(ctx, task.UID, i.taskTimeout); err != nil {
		return stats, fmt.Errorf("wait for task %d: %w", task.UID, err)
	}
	stats.Indexed = len(inserted)
	return stats, nil
}

// shutdown takes whatever is already queued in events without blocking and
// flushes the buffer on a context detached from the cancelled one.
func (i *Ingester) shutdown(ctx context.Context, events <-chan domain.Post) {
	if events != nil {
	drain:
		for {
			select {
			case post, ok := <-events:
				if !ok {
					break drain
				}
				i.accept(post)
			default:
				break drain
			}
		}
	}
	if len(i.buffer) == 0 {
		return
	}

	timeout := i.taskTimeout
	if timeout <= 0 {
		timeout = time.Minute
	}
	flushCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
	defer cancel()

	i.logger.Info("flushing before shutdown", "buffered", len(i.buffer))
	for len(i.buffer) > 0 {
		i.flush(flushCtx)
	}
}
