package discuit

import "discuit_search/internal/domain"

// PostsResponse is the body of GET /posts.
type PostsResponse struct {
	Posts []domain.Post `json:"posts"`
	// Next is null on the last page.
	Next *string `json:"next"`
}
