package search

import "github.com/meilisearch/meilisearch-go"

// Settings is the subset of Meilisearch index settings the service manages.
type Settings struct {
	FilterableAttributes []string  `json:"filterableAttributes,omitempty"`
	SortableAttributes   []string  `json:"sortableAttributes,omitempty"`
	SearchableAttributes []string  `json:"searchableAttributes,omitempty"`
	Faceting             *Faceting `json:"faceting,omitempty"`
	FacetSearch          *bool     `json:"facetSearch,omitempty"`
}

type Faceting struct {
	MaxValuesPerFacet int               `json:"maxValuesPerFacet"`
	SortFacetValuesBy map[string]string `json:"sortFacetValuesBy,omitempty"`
}

// Facets are the attributes search results are faceted on.
var Facets = []string{"communityName", "username", "type"}

// PostSettings is declared once at startup.
func PostSettings() Settings {
	facetSearch := true
	return Settings{
		FilterableAttributes: Facets,
		SortableAttributes:   []string{"createdAt", "upvotes", "downvotes", "hotness"},
		SearchableAttributes: []string{"title", "body", "communityName", "username"},
		Faceting: &Faceting{
			MaxValuesPerFacet: 100,
			SortFacetValuesBy: map[string]string{"communityName": "count"},
		},
		FacetSearch: &facetSearch,
	}
}

func (s Settings) toSDK() *meilisearch.Settings {
	out := &meilisearch.Settings{
		FilterableAttributes: s.FilterableAttributes,
		SortableAttributes:   s.SortableAttributes,
		SearchableAttributes: s.SearchableAttributes,
	}
	if s.Faceting != nil {
		sortBy := make(map[string]meilisearch.SortFacetType, len(s.Faceting.SortFacetValuesBy))
		for attr, order := range s.Faceting.SortFacetValuesBy {
			sortBy[attr] = meilisearch.SortFacetType(order)
		}
		out.Faceting = &meilisearch.Faceting{
			MaxValuesPerFacet: int64(s.Faceting.MaxValuesPerFacet),
			SortFacetValuesBy: sortBy,
		}
	}
	if s.FacetSearch != nil {
		out.FacetSearch = *s.FacetSearch
	}
	return out
}
