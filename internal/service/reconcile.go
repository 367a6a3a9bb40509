package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"discuit_search/internal/config"
	"discuit_search/internal/domain"
	"discuit_search/internal/reconcile"
	"discuit_search/internal/redact"
	"discuit_search/internal/search"
)

const reconcileJob = "reconcile"

var ErrReconcileRunning = errors.New("reconciliation already running")

// Reconciler brings the search index in line with the post store.
type Reconciler struct {
	store     PostStore
	index     SearchIndex
	syncState SyncStateStore
	redactor  *redact.Redactor
	executor  *reconcile.Executor
	metrics   Metrics
	logger    *slog.Logger
	config    config.SyncConfig
	running   atomic.Bool
}

func NewReconciler(
	store PostStore,
	index SearchIndex,
	syncState SyncStateStore,
	redactor *redact.Redactor,
	metrics Metrics,
	logger *slog.Logger,
	cfg config.SyncConfig,
) *Reconciler {
	metrics = metricsOrNop(metrics)
	logger = logger.With("job", reconcileJob)
	return &Reconciler{
		store:     store,
		index:     index,
		syncState: syncState,
		redactor:  redactor,
		executor:  reconcile.NewExecutor(cfg.BatchSize, cfg.Concurrency, logger, metrics),
		metrics:   metrics,
		logger:    logger,
		config:    cfg,
	}
}

// Running reports whether a pass is in progress.
func (r *Reconciler) Running() bool {
	return r.running.Load()
}

// EnsureSettings declares the index settings and waits until they apply.
func (r *Reconciler) EnsureSettings(ctx context.Context) error {
	task, err := r.index.UpdateSettings(ctx, search.PostSettings())
	if err != nil {
		return fmt.Errorf("update settings: %w", err)
	}
	if err := r.index.WaitForTask(ctx, task.UID, r.config.TaskTimeout); err != nil {
		return fmt.Errorf("wait for settings task %d: %w", task.UID, err)
	}
	r.logger.Info("index settings applied", "task", task.UID)
	return nil
}

// Run performs one reconciliation pass. Failed batches are logged and
// counted in the returned stats; only failing to read either side aborts the
// pass. A concurrent call returns ErrReconcileRunning.
func (r *Reconciler) Run(ctx context.Context) (*domain.ReconcileStats, error) {
	if !r.running.CompareAndSwap(false, true) {
		return nil, ErrReconcileRunning
	}
	defer r.running.Store(false)

	start := time.Now()
	stats := &domain.ReconcileStats{RunID: uuid.NewString()}
	logger := r.logger.With("run_id", stats.RunID)
	logger.Info("starting reconciliation")

	posts, err := r.store.ReadAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("read store: %w", err)
	}
	stats.StoreCount = len(posts)
	logger.Info("found posts in store", "count", len(posts))

	snap, err := reconcile.FetchAll(ctx, r.index, domain.ComparisonFields(), r.config.PageSize, logger)
	if err != nil {
		return nil, fmt.Errorf("read index: %w", err)
	}
	stats.IndexCount = len(snap.Posts)
	stats.SnapshotSize = snap.Bytes
	logger.Info("found posts in index", "count", len(snap.Posts))

	// The index only ever holds redacted copies, so compare against those.
	plan := reconcile.Diff(r.redactor.Posts(posts), snap.Posts)
	logger.Info("computed reconciliation plan",
		"to_add", len(plan.ToAdd),
		"to_update", len(plan.ToUpdate),
		"to_delete", len(plan.ToDelete),
	)

	if plan.Empty() {
		logger.Info("index is up to date")
	} else {
		stats.Added = reconcile.Apply(ctx, r.executor, plan.ToAdd, reconcile.ActionAdd, r.addBatch)
		stats.Updated = reconcile.Apply(ctx, r.executor, plan.ToUpdate, reconcile.ActionUpdate, r.addBatch)
		stats.Deleted = reconcile.Apply(ctx, r.executor, plan.ToDelete, reconcile.ActionDelete, r.deleteBatch)
	}

	stats.Duration = time.Since(start)
	r.metrics.ObserveReconcile(stats.Duration)

	if err := r.updateSyncState(ctx, stats); err != nil {
		logger.Error("failed to update sync state", "error", err)
	}

	logger.Info("reconciliation completed",
		"added", stats.Added.Applied,
		"updated", stats.Updated.Applied,
		"deleted", stats.Deleted.Applied,
		"failed_batches", stats.Added.FailedBatches+stats.Updated.FailedBatches+stats.Deleted.FailedBatches,
		"duration", stats.Duration,
	)

	return stats, nil
}

func (r *Reconciler) addBatch(ctx context.Context, posts []domain.Post) error {
	task, err := r.index.AddDocuments(ctx, posts)
	if err != nil {
		return fmt.Errorf("add documents: %w", err)
	}
	return r.index.WaitForTask(ctx, task.UID, r.config.TaskTimeout)
}

func (r *Reconciler) deleteBatch(ctx context.Context, ids []string) error {
	task, err := r.index.DeleteDocuments(ctx, ids)
	if err != nil {
		return fmt.Errorf("delete documents: %w", err)
	}
	return r.index.WaitForTask(ctx, task.UID, r.config.TaskTimeout)
}

func (r *Reconciler) updateSyncState(ctx context.Context, stats *domain.ReconcileStats) error {
	state, err := r.syncState.Get(ctx, reconcileJob)
	if err != nil {
		return err
	}

	state.LastSyncedAt = time.Now()
	state.TotalSynced += int64(stats.Added.Applied + stats.Updated.Applied + stats.Deleted.Applied)

	return r.syncState.Update(ctx, state)
}
