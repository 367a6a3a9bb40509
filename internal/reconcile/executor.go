package reconcile

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"discuit_search/internal/domain"
)

// Action names an executor run in progress logs and metrics.
type Action struct {
	Operation string
	Present   string
	Past      string
}

var (
	ActionAdd    = Action{Operation: "add", Present: "adding", Past: "added"}
	ActionUpdate = Action{Operation: "update", Present: "updating", Past: "updated"}
	ActionDelete = Action{Operation: "delete", Present: "deleting", Past: "deleted"}
)

// BatchRecorder receives the outcome of every applied batch.
type BatchRecorder interface {
	RecordBatch(operation string, items int, err error)
}

// Executor applies an operation set to the index in fixed-size batches with
// a bounded number of workers.
type Executor struct {
	batchSize   int
	concurrency int
	logger      *slog.Logger
	recorder    BatchRecorder
}

// NewExecutor creates an Executor. Non-positive sizes fall back to 2500 items
// per batch and 4 workers. recorder may be nil.
func NewExecutor(batchSize, concurrency int, logger *slog.Logger, recorder BatchRecorder) *Executor {
	if batchSize <= 0 {
		batchSize = 2500
	}
	if concurrency <= 0 {
		concurrency = 4
	}
	return &Executor{
		batchSize:   batchSize,
		concurrency: concurrency,
		logger:      logger,
		recorder:    recorder,
	}
}

type workItem[T any] struct {
	num   int
	items []T
}

// Apply runs fn once per batch of items. A failing batch is logged and
// counted; it neither stops the other workers nor gets retried. Workers stop
// claiming new batches once ctx is done.
func Apply[T any](ctx context.Context, e *Executor, items []T, action Action, fn func(ctx context.Context, batch []T) error) domain.BatchStats {
	batches := Chunk(items, e.batchSize)
	stats := domain.BatchStats{Total: len(items), Batches: len(batches)}
	if len(batches) == 0 {
		return stats
	}

	work := make(chan workItem[T], len(batches))
	for i, b := range batches {
		work <- workItem[T]{num: i + 1, items: b}
	}
	close(work)

	start := time.Now()
	var (
		mu        sync.Mutex
		processed int
		wg        sync.WaitGroup
	)

	for range min(e.concurrency, len(batches)) {
		wg.Add(1)
		go func() {
			defer wg.Done()

			for w := range work {
				if ctx.Err() != nil {
					return
				}

				err := fn(ctx, w.items)
				if e.recorder != nil {
					e.recorder.RecordBatch(action.Operation, len(w.items), err)
				}

				mu.Lock()
				processed += len(w.items)
				if err != nil {
					stats.FailedBatches++
				} else {
					stats.Applied += len(w.items)
				}
				done := processed
				mu.Unlock()

				if err != nil {
					e.logger.Error("batch failed",
						"action", action.Operation,
						"batch", w.num,
						"batches", len(batches),
						"size", len(w.items),
						"error", err,
					)
					continue
				}
				e.logger.Info(action.Present+" posts",
					"batch", w.num,
					"batches", len(batches),
					"processed", done,
					"total", len(items),
				)
			}
		}()
	}
	wg.Wait()

	e.logger.Info(action.Past+" posts",
		"total", len(items),
		"applied", stats.Applied,
		"failed_batches", stats.FailedBatches,
		"duration", time.Since(start),
	)

	return stats
}
