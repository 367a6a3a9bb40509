package sqlstore

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/suite"

	"discuit_search/internal/domain"
	"discuit_search/testdata/utils"
)

// SQLiteStoreSuite runs the stores against a throwaway SQLite file.
type SQLiteStoreSuite struct {
	suite.Suite
	ctx  context.Context
	path string
	db   *sqlx.DB
}

func (s *SQLiteStoreSuite) SetupTest() {
	s.ctx = context.Background()
	s.path = filepath.Join(s.T().TempDir(), "posts.db")

	s.Require().NoError(Migrate("sqlite://" + s.path))

	db, err := Open(s.ctx, DriverSQLite, s.path)
	s.Require().NoError(err)
	s.db = db
}

func (s *SQLiteStoreSuite) TearDownTest() {
	if s.db != nil {
		s.db.Close()
	}
}

func (s *SQLiteStoreSuite) countPosts() int {
	var n int
	s.Require().NoError(s.db.GetContext(s.ctx, &n, "SELECT COUNT(*) FROM posts"))
	return n
}

func TestSQLiteStoreSuite(t *testing.T) {
	suite.Run(t, new(SQLiteStoreSuite))
}

func fullPost(id string) domain.Post {
	return domain.Post{
		ID:                   id,
		Type:                 domain.PostTypeImage,
		PublicID:             "pub-" + id,
		UserID:               "u1",
		Username:             "alice",
		UserGhostID:          utils.Ptr("ghost-1"),
		UserGroup:            "normal",
		IsPinned:             true,
		CommunityID:          "c1",
		CommunityName:        "golang",
		CommunityProPic:      domain.Opaque(`{"id":"pp","url":"/pp.jpg"}`),
		CommunityBannerImage: nil,
		Title:                "Gophers",
		Body:                 utils.Ptr("a body"),
		Image:                domain.Opaque(`{"id":"img","width":640}`),
		Images:               domain.Opaque(`[{"id":"img"}]`),
		Locked:               true,
		LockedBy:             utils.Ptr("mod"),
		Upvotes:              12,
		Downvotes:            3,
		Hotness:              98765.25,
		CreatedAt:            "2024-05-01T08:00:00Z",
		EditedAt:             utils.Ptr("2024-05-01T09:00:00Z"),
		LastActivityAt:       "2024-05-02T08:00:00Z",
		NoComments:           4,
		Comments:             domain.Opaque(`[{"id":"c1","body":"hi"}]`),
		CommentsNext:         utils.Ptr("c1"),
	}
}

func (s *SQLiteStoreSuite) TestInsertIgnore_RoundTripsEveryField() {
	store := NewPostStore(s.db)
	in := []domain.Post{fullPost("a"), fullPost("b")}

	inserted, err := store.InsertIgnore(s.ctx, in)
	s.Require().NoError(err)
	s.Len(inserted, 2)

	out, err := store.ReadAll(s.ctx)
	s.Require().NoError(err)
	s.Require().Len(out, 2)

	byID := map[string]domain.Post{}
	for _, p := range out {
		byID[p.ID] = p
	}
	for _, p := range in {
		got := byID[p.ID]
		s.True(domain.Equal(&p, &got), "fields differ: %v", domain.DiffFields(&p, &got))
	}
}

func (s *SQLiteStoreSuite) TestInsertIgnore_SkipsExistingPublicID() {
	store := NewPostStore(s.db)

	_, err := store.InsertIgnore(s.ctx, []domain.Post{fullPost("a")})
	s.Require().NoError(err)

	dup := fullPost("a")
	dup.Title = "changed"
	inserted, err := store.InsertIgnore(s.ctx, []domain.Post{dup, fullPost("b")})
	s.Require().NoError(err)

	s.Require().Len(inserted, 1)
	s.Equal("b", inserted[0].ID)

	out, err := store.ReadAll(s.ctx)
	s.Require().NoError(err)
	s.Len(out, 2)
	for _, p := range out {
		s.Equal("Gophers", p.Title, "existing row must not be modified")
	}
}

func (s *SQLiteStoreSuite) TestInsertIgnore_DuplicateWithinBatch() {
	store := NewPostStore(s.db)

	inserted, err := store.InsertIgnore(s.ctx, []domain.Post{fullPost("a"), fullPost("a")})

	s.Require().NoError(err)
	s.Len(inserted, 1)
	s.Equal(1, s.countPosts())
}

func (s *SQLiteStoreSuite) TestInsertIgnore_Empty() {
	inserted, err := NewPostStore(s.db).InsertIgnore(s.ctx, nil)
	s.NoError(err)
	s.Empty(inserted)
}

func (s *SQLiteStoreSuite) TestTransaction_RollbackOnError() {
	tm := NewTransactionManager(s.db)
	store := NewPostStore(s.db)
	boom := errors.New("boom")

	err := tm.WithTransaction(s.ctx, func(ctx context.Context) error {
		if _, err := store.InsertIgnore(ctx, []domain.Post{fullPost("a")}); err != nil {
			return err
		}
		return boom
	})

	s.ErrorIs(err, boom)
	s.Zero(s.countPosts())
}

func (s *SQLiteStoreSuite) TestTransaction_SyncStateJoinsTransaction() {
	tm := NewTransactionManager(s.db)
	posts := NewPostStore(s.db)
	states := NewSyncStateStore(s.db)
	boom := errors.New("boom")

	err := tm.WithTransaction(s.ctx, func(ctx context.Context) error {
		if _, err := posts.InsertIgnore(ctx, []domain.Post{fullPost("a")}); err != nil {
			return err
		}
		if err := states.Update(ctx, &domain.SyncState{Name: "backfill", Cursor: "next"}); err != nil {
			return err
		}
		return boom
	})

	s.ErrorIs(err, boom)
	state, err := states.Get(s.ctx, "backfill")
	s.Require().NoError(err)
	s.Empty(state.Cursor)
}

func (s *SQLiteStoreSuite) TestSyncState_GetMissingReturnsEmpty() {
	state, err := NewSyncStateStore(s.db).Get(s.ctx, "backfill")

	s.NoError(err)
	s.Equal("backfill", state.Name)
	s.Empty(state.Cursor)
	s.True(state.LastSyncedAt.IsZero())
}

func (s *SQLiteStoreSuite) TestSyncState_Upsert() {
	store := NewSyncStateStore(s.db)
	now := time.Now().UTC().Truncate(time.Second)

	s.Require().NoError(store.Update(s.ctx, &domain.SyncState{
		Name: "backfill", Cursor: "abc", LastSyncedAt: now, TotalSynced: 10,
	}))
	s.Require().NoError(store.Update(s.ctx, &domain.SyncState{
		Name: "backfill", Cursor: "def", LastSyncedAt: now.Add(time.Minute), TotalSynced: 25,
	}))

	state, err := store.Get(s.ctx, "backfill")
	s.Require().NoError(err)
	s.Equal("def", state.Cursor)
	s.Equal(int64(25), state.TotalSynced)
	s.True(now.Add(time.Minute).Equal(state.LastSyncedAt))
}

func (s *SQLiteStoreSuite) TestMigrate_Idempotent() {
	s.NoError(Migrate("sqlite://" + s.path))

	var count int
	s.NoError(s.db.GetContext(s.ctx, &count, "SELECT COUNT(*) FROM posts"))
	s.Equal(0, count)
}
