package sqlstore

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"discuit_search/internal/domain"
)

// postColumns must match the db tags of domain.Post.
var postColumns = []string{
	"id", "type", "public_id", "user_id", "username", "user_ghost_id", "user_group",
	"user_deleted", "is_pinned", "is_pinned_site", "community_id", "community_name",
	"community_pro_pic", "community_banner_image", "title", "body", "image", "images",
	"link", "locked", "locked_by", "locked_by_group", "locked_at", "upvotes", "downvotes",
	"hotness", "created_at", "edited_at", "last_activity_at", "deleted", "deleted_at",
	"deleted_by", "deleted_as", "deleted_content", "deleted_content_as", "no_comments",
	"comments", "comments_next",
}

var (
	selectPostsQuery = "SELECT " + strings.Join(postColumns, ", ") + " FROM posts"
	insertPostQuery  = "INSERT INTO posts (" + strings.Join(postColumns, ", ") + ") VALUES (:" +
		strings.Join(postColumns, ", :") + ") ON CONFLICT DO NOTHING"
)

type PostStore struct {
	db        *sqlx.DB
	txManager *TransactionManager
}

func NewPostStore(db *sqlx.DB) *PostStore {
	return &PostStore{db: db, txManager: NewTransactionManager(db)}
}

// ReadAll returns every stored post.
func (s *PostStore) ReadAll(ctx context.Context) ([]domain.Post, error) {
	var posts []domain.Post
	if err := sqlx.SelectContext(ctx, GetExecutor(ctx, s.db), &posts, selectPostsQuery); err != nil {
		return nil, fmt.Errorf("select posts: %w", err)
	}
	return posts, nil
}

// InsertIgnore stores posts in one transaction, skipping any post whose
// public id (or id) is already present. It returns the posts actually
// inserted, in input order.
func (s *PostStore) InsertIgnore(ctx context.Context, posts []domain.Post) ([]domain.Post, error) {
	if len(posts) == 0 {
		return nil, nil
	}

	var inserted []domain.Post
	err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		inserted = inserted[:0]
		ex := GetExecutor(txCtx, s.db)
		for i := range posts {
			res, err := sqlx.NamedExecContext(txCtx, ex, insertPostQuery, &posts[i])
			if err != nil {
				return fmt.Errorf("insert post %s: %w", posts[i].PublicID, err)
			}
			n, err := res.RowsAffected()
			if err != nil {
				return fmt.Errorf("rows affected: %w", err)
			}
			if n == 1 {
				inserted = append(inserted, posts[i])
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return inserted, nil
}
