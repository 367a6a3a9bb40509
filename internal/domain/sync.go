package domain

import "time"

// Plan is the outcome of diffing the store against the index.
type Plan struct {
	ToAdd    []Post
	ToUpdate []Post
	ToDelete []string
}

// Empty reports whether the index is already up to date.
func (p Plan) Empty() bool {
	return len(p.ToAdd) == 0 && len(p.ToUpdate) == 0 && len(p.ToDelete) == 0
}

// ReconcileStats holds statistics about one reconciliation pass.
type ReconcileStats struct {
	RunID        string        `json:"runId"`
	StoreCount   int           `json:"storeCount"`
	IndexCount   int           `json:"indexCount"`
	Added        BatchStats    `json:"added"`
	Updated      BatchStats    `json:"updated"`
	Deleted      BatchStats    `json:"deleted"`
	SnapshotSize int64         `json:"snapshotBytes"`
	Duration     time.Duration `json:"duration"`
}

// BatchStats summarises one executor run.
type BatchStats struct {
	Total         int `json:"total"`
	Batches       int `json:"batches"`
	Applied       int `json:"applied"`
	FailedBatches int `json:"failedBatches"`
}

// FlushStats describes the outcome of one ingestion flush.
type FlushStats struct {
	Drained  int
	Inserted int
	Indexed  int
}

// BackfillStats holds statistics about one backfill run.
type BackfillStats struct {
	Pages    int
	Fetched  int
	Inserted int
	Partial  bool
	Cursor   string
	Duration time.Duration
}

// SyncState is the persisted progress of a named job.
type SyncState struct {
	Name         string    `db:"name"`
	Cursor       string    `db:"next_cursor"`
	LastSyncedAt time.Time `db:"last_synced_at"`
	TotalSynced  int64     `db:"total_synced"`
}
