package domain

import (
	"bytes"
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// PostType is the closed set of Discuit post kinds.
type PostType string

const (
	PostTypeText  PostType = "text"
	PostTypeImage PostType = "image"
	PostTypeLink  PostType = "link"
)

// Post is the unit of synchronization between the store and the search index.
// JSON names follow the Discuit API and are used verbatim as index attributes.
type Post struct {
	ID                   string   `json:"id" db:"id"`
	Type                 PostType `json:"type" db:"type"`
	PublicID             string   `json:"publicId" db:"public_id"`
	UserID               string   `json:"userId" db:"user_id"`
	Username             string   `json:"username" db:"username"`
	UserGhostID          *string  `json:"userGhostId" db:"user_ghost_id"`
	UserGroup            string   `json:"userGroup" db:"user_group"`
	UserDeleted          bool     `json:"userDeleted" db:"user_deleted"`
	IsPinned             bool     `json:"isPinned" db:"is_pinned"`
	IsPinnedSite         bool     `json:"isPinnedSite" db:"is_pinned_site"`
	CommunityID          string   `json:"communityId" db:"community_id"`
	CommunityName        string   `json:"communityName" db:"community_name"`
	CommunityProPic      Opaque   `json:"communityProPic" db:"community_pro_pic"`
	CommunityBannerImage Opaque   `json:"communityBannerImage" db:"community_banner_image"`
	Title                string   `json:"title" db:"title"`
	Body                 *string  `json:"body" db:"body"`
	Image                Opaque   `json:"image" db:"image"`
	Images               Opaque   `json:"images" db:"images"`
	Link                 Opaque   `json:"link" db:"link"`
	Locked               bool     `json:"locked" db:"locked"`
	LockedBy             *string  `json:"lockedBy" db:"locked_by"`
	LockedByGroup        *string  `json:"lockedByGroup" db:"locked_by_group"`
	LockedAt             *string  `json:"lockedAt" db:"locked_at"`
	Upvotes              int64    `json:"upvotes" db:"upvotes"`
	Downvotes            int64    `json:"downvotes" db:"downvotes"`
	Hotness              float64  `json:"hotness" db:"hotness"`
	CreatedAt            string   `json:"createdAt" db:"created_at"`
	EditedAt             *string  `json:"editedAt" db:"edited_at"`
	LastActivityAt       string   `json:"lastActivityAt" db:"last_activity_at"`
	Deleted              bool     `json:"deleted" db:"deleted"`
	DeletedAt            *string  `json:"deletedAt" db:"deleted_at"`
	DeletedBy            *string  `json:"deletedBy" db:"deleted_by"`
	DeletedAs            *string  `json:"deletedAs" db:"deleted_as"`
	DeletedContent       bool     `json:"deletedContent" db:"deleted_content"`
	DeletedContentAs     *string  `json:"deletedContentAs" db:"deleted_content_as"`
	NoComments           int64    `json:"noComments" db:"no_comments"`
	Comments             Opaque   `json:"comments" db:"comments"`
	CommentsNext         *string  `json:"commentsNext" db:"comments_next"`
}

// Opaque carries a JSON value the indexer never interprets. It is stored as
// TEXT in the database and embedded as-is into index documents.
type Opaque json.RawMessage

func (o Opaque) MarshalJSON() ([]byte, error) {
	if len(o) == 0 {
		return []byte("null"), nil
	}
	return o, nil
}

func (o *Opaque) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*o = nil
		return nil
	}
	*o = append((*o)[0:0], data...)
	return nil
}

// Value stores the raw JSON text, or NULL when empty.
func (o Opaque) Value() (driver.Value, error) {
	if len(o) == 0 {
		return nil, nil
	}
	return string(o), nil
}

func (o *Opaque) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*o = nil
	case []byte:
		if len(v) == 0 {
			*o = nil
			return nil
		}
		*o = append((*o)[0:0], v...)
	case string:
		if v == "" {
			*o = nil
			return nil
		}
		*o = Opaque(v)
	default:
		return fmt.Errorf("opaque: unsupported scan type %T", src)
	}
	return nil
}

// Equal compares two opaque values semantically: key order and whitespace
// are ignored, so a document that went through the index compares equal to
// the one in the store.
func (o Opaque) Equal(other Opaque) bool {
	if len(o) == 0 || len(other) == 0 {
		return len(o) == len(other)
	}
	if bytes.Equal(o, other) {
		return true
	}
	a, errA := canonical(o)
	b, errB := canonical(other)
	if errA != nil || errB != nil {
		return false
	}
	return bytes.Equal(a, b)
}

func canonical(raw []byte) ([]byte, error) {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, err
	}
	return json.Marshal(v)
}
