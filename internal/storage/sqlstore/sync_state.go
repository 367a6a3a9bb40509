package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"discuit_search/internal/domain"
)

type SyncStateStore struct {
	db *sqlx.DB
}

func NewSyncStateStore(db *sqlx.DB) *SyncStateStore {
	return &SyncStateStore{db: db}
}

func (s *SyncStateStore) Get(ctx context.Context, name string) (*domain.SyncState, error) {
	var state domain.SyncState
	query := s.db.Rebind(`
		SELECT name, next_cursor, last_synced_at, total_synced
		FROM sync_state
		WHERE name = ?`)

	err := sqlx.GetContext(ctx, GetExecutor(ctx, s.db), &state, query, name)
	if errors.Is(err, sql.ErrNoRows) {
		// Return empty state for jobs that never ran
		return &domain.SyncState{Name: name}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get sync state %s: %w", name, err)
	}
	return &state, nil
}

func (s *SyncStateStore) Update(ctx context.Context, state *domain.SyncState) error {
	query := s.db.Rebind(`
		INSERT INTO sync_state (name, next_cursor, last_synced_at, total_synced)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (name) DO UPDATE SET
			next_cursor = EXCLUDED.next_cursor,
			last_synced_at = EXCLUDED.last_synced_at,
			total_synced = EXCLUDED.total_synced`)

	_, err := GetExecutor(ctx, s.db).ExecContext(ctx, query,
		state.Name,
		state.Cursor,
		state.LastSyncedAt.UTC(),
		state.TotalSynced,
	)
	return err
}
