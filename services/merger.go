package services

import "playstore-etl/models"

// MergeReviews combines a prior review set with a new batch keyed by review id.
// Incoming records replace existing ones with the same id in full; incoming
// records without an id are skipped. Existing records without an id cannot be
// addressed and are not carried over.
//
// The result holds exactly one record per id, in first-seen key order: existing
// ids first, then ids new in incoming.
func MergeReviews(existing, incoming []*models.Review) []*models.Review {
	merged := make(map[string]*models.Review, len(existing)+len(incoming))
	order := make([]string, 0, len(existing)+len(incoming))

	put := func(r *models.Review) {
		if r == nil || r.ReviewID == "" {
			return
		}
		if _, ok := merged[r.ReviewID]; !ok {
			order = append(order, r.ReviewID)
		}
		merged[r.ReviewID] = r
	}

	for _, r := range existing {
		put(r)
	}
	for _, r := range incoming {
		put(r)
	}

	out := make([]*models.Review, 0, len(order))
	for _, id := range order {
		out = append(out, merged[id])
	}
	return out
}
