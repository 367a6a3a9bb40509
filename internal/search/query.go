package search

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/meilisearch/meilisearch-go"

	"discuit_search/internal/domain"
)

type SearchRequest struct {
	Query                 string   `json:"q"`
	Filter                string   `json:"filter,omitempty"`
	Sort                  []string `json:"sort,omitempty"`
	Limit                 int      `json:"limit,omitempty"`
	Offset                int      `json:"offset,omitempty"`
	Facets                []string `json:"facets,omitempty"`
	AttributesToHighlight []string `json:"attributesToHighlight,omitempty"`
	HighlightPreTag       string   `json:"highlightPreTag,omitempty"`
	HighlightPostTag      string   `json:"highlightPostTag,omitempty"`
}

// Hit is a matching document plus its highlighted copy.
type Hit struct {
	domain.Post
	Formatted *domain.Post `json:"_formatted,omitempty"`
}

type SearchResponse struct {
	Hits               []Hit                       `json:"hits"`
	Query              string                      `json:"query"`
	Limit              int                         `json:"limit"`
	Offset             int                         `json:"offset"`
	EstimatedTotalHits int64                       `json:"estimatedTotalHits"`
	ProcessingTimeMs   int64                       `json:"processingTimeMs"`
	FacetDistribution  map[string]map[string]int64 `json:"facetDistribution,omitempty"`
}

// Search runs a query and decodes the raw response so hits keep the post
// shape.
func (c *Client) Search(ctx context.Context, req SearchRequest) (*SearchResponse, error) {
	sreq := &meilisearch.SearchRequest{
		Sort:                  req.Sort,
		Limit:                 int64(req.Limit),
		Offset:                int64(req.Offset),
		Facets:                req.Facets,
		AttributesToHighlight: req.AttributesToHighlight,
		HighlightPreTag:       req.HighlightPreTag,
		HighlightPostTag:      req.HighlightPostTag,
	}
	if req.Filter != "" {
		sreq.Filter = req.Filter
	}

	raw, err := c.index.SearchRawWithContext(ctx, req.Query, sreq)
	if err != nil {
		return nil, wrapError(err)
	}

	var resp SearchResponse
	if err := json.Unmarshal(*raw, &resp); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}
	return &resp, nil
}
