package handler

import (
	"net/http"
	"slices"
	"strconv"
	"strings"

	"discuit_search/internal/search"
)

const (
	defaultLimit = 20
	maxLimit     = 100

	highlightPreTag  = "<span class='highlight'>"
	highlightPostTag = "</span>"
)

var sortable = []string{"createdAt", "upvotes", "downvotes", "hotness"}

// Search forwards a query to the index. Results are redacted again so that
// names added to the redaction lists disappear before the next
// reconciliation rewrites the documents.
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	limit := defaultLimit
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = min(n, maxLimit)
	}

	offset := 0
	if v := q.Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "invalid offset")
			return
		}
		offset = n
	}

	var sort []string
	if v := q.Get("sort"); v != "" {
		if !validSort(v) {
			writeError(w, http.StatusBadRequest, "invalid sort")
			return
		}
		sort = []string{v}
	}

	filter := search.NewFilter().
		Eq("communityName", q.Get("community")).
		Eq("username", q.Get("username")).
		Eq("type", q.Get("type"))

	resp, err := h.searcher.Search(r.Context(), search.SearchRequest{
		Query:                 q.Get("q"),
		Filter:                filter.String(),
		Sort:                  sort,
		Limit:                 limit,
		Offset:                offset,
		Facets:                search.Facets,
		AttributesToHighlight: []string{"title", "body"},
		HighlightPreTag:       highlightPreTag,
		HighlightPostTag:      highlightPostTag,
	})
	if err != nil {
		h.logger.Error("search failed", "error", err)
		writeError(w, http.StatusBadGateway, "search failed")
		return
	}

	h.redactResponse(resp)
	writeJSON(w, http.StatusOK, resp)
}

// validSort accepts "<attribute>:asc" or "<attribute>:desc" for a sortable
// attribute.
func validSort(v string) bool {
	attr, dir, ok := strings.Cut(v, ":")
	return ok && slices.Contains(sortable, attr) && (dir == "asc" || dir == "desc")
}

func (h *Handler) redactResponse(resp *search.SearchResponse) {
	if h.redactor == nil || h.redactor.Empty() {
		return
	}
	for i := range resp.Hits {
		hit := &resp.Hits[i]
		hit.Post = h.redactor.Post(hit.Post)
		if hit.Formatted != nil {
			formatted := h.redactor.Post(*hit.Formatted)
			hit.Formatted = &formatted
		}
	}
	resp.FacetDistribution = h.redactFacets(resp.FacetDistribution)
}

func (h *Handler) redactFacets(facets map[string]map[string]int64) map[string]map[string]int64 {
	rename := map[string]func(string) string{
		"communityName": h.redactor.Community,
		"username":      h.redactor.Username,
	}
	for facet, fn := range rename {
		values, ok := facets[facet]
		if !ok {
			continue
		}
		merged := make(map[string]int64, len(values))
		for value, count := range values {
			merged[fn(value)] += count
		}
		facets[facet] = merged
	}
	return facets
}
