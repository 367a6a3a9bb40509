// Package reconcile computes and applies the difference between the store
// and the search index.
package reconcile

import "discuit_search/internal/domain"

// Diff compares the store's posts with the index snapshot. Posts missing from
// the index are added, posts whose tracked fields differ are updated as a
// whole, and index documents missing from the store are deleted.
//
// The snapshot is assumed to be consistent. Writes to the index while it was
// being paged can make a pass miss or repeat work; the next pass fixes it.
func Diff(store, index []domain.Post) domain.Plan {
	indexByID := make(map[string]*domain.Post, len(index))
	for i := range index {
		indexByID[index[i].ID] = &index[i]
	}
	storeIDs := make(map[string]struct{}, len(store))

	var plan domain.Plan
	for i := range store {
		p := &store[i]
		storeIDs[p.ID] = struct{}{}

		existing, ok := indexByID[p.ID]
		switch {
		case !ok:
			plan.ToAdd = append(plan.ToAdd, *p)
		case !domain.Equal(p, existing):
			plan.ToUpdate = append(plan.ToUpdate, *p)
		}
	}

	for i := range index {
		if _, ok := storeIDs[index[i].ID]; !ok {
			plan.ToDelete = append(plan.ToDelete, index[i].ID)
		}
	}

	return plan
}
