package service

//go:generate mockgen -source=interfaces.go -destination=mocks/mocks.go -package=mocks

import (
	"context"
	"time"

	"discuit_search/internal/domain"
	"discuit_search/internal/search"
)

type PostStore interface {
	ReadAll(ctx context.Context) ([]domain.Post, error)
	InsertIgnore(ctx context.Context, posts []domain.Post) ([]domain.Post, error)
}

type SyncStateStore interface {
	Get(ctx context.Context, name string) (*domain.SyncState, error)
	Update(ctx context.Context, state *domain.SyncState) error
}

type TransactionManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

type SearchIndex interface {
	UpdateSettings(ctx context.Context, settings search.Settings) (domain.Task, error)
	AddDocuments(ctx context.Context, posts []domain.Post) (domain.Task, error)
	DeleteDocuments(ctx context.Context, ids []string) (domain.Task, error)
	GetDocuments(ctx context.Context, fields []string, limit, offset int) (*domain.DocumentPage, error)
	WaitForTask(ctx context.Context, uid int64, timeout time.Duration) error
}

// Source lists posts newest first. An empty next cursor means there are no
// more pages.
type Source interface {
	ListPosts(ctx context.Context, next string, limit int) ([]domain.Post, string, error)
}

// Feed pushes new posts into out until ctx is done.
type Feed interface {
	Subscribe(ctx context.Context, out chan<- domain.Post) error
}

type Publisher interface {
	Publish(ctx context.Context, post *domain.Post) error
	Close() error
}

type Metrics interface {
	RecordBatch(operation string, items int, err error)
	RecordEvent()
	RecordFlush(stats domain.FlushStats, err error)
	ObserveReconcile(d time.Duration)
	RecordBackfill(inserted int)
}

type nopMetrics struct{}

func (nopMetrics) RecordBatch(string, int, error)       {}
func (nopMetrics) RecordEvent()                         {}
func (nopMetrics) RecordFlush(domain.FlushStats, error) {}
func (nopMetrics) ObserveReconcile(time.Duration)       {}
func (nopMetrics) RecordBackfill(int)                   {}

func metricsOrNop(m Metrics) Metrics {
	if m == nil {
		return nopMetrics{}
	}
	return m
}
