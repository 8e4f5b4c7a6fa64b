// Package activity stores the operator activity log: one entry per recorded
// domain event.
package activity

import "time"

// QueryOptions controls filtering for activity queries.
type QueryOptions struct {
	JigID    int64      // 0 matches every entry
	Category string     // empty matches every category
	Since    *time.Time // inclusive
	Until    *time.Time // inclusive
	Limit    int        // max results (default: 100, max: 500)
}

// DefaultQueryOptions returns QueryOptions covering the last 30 days.
func DefaultQueryOptions() QueryOptions {
	since := time.Now().AddDate(0, 0, -30)
	return QueryOptions{Since: &since, Limit: 100}
}

func (o QueryOptions) limit() int {
	if o.Limit <= 0 || o.Limit > 500 {
		return 100
	}
	return o.Limit
}

func (o QueryOptions) match(e Entry) bool {
	if o.JigID != 0 && e.JigID != o.JigID {
		return false
	}
	if o.Category != "" && e.Category != o.Category {
		return false
	}
	if o.Since != nil && e.OccurredAt.Before(*o.Since) {
		return false
	}
	if o.Until != nil && e.OccurredAt.After(*o.Until) {
		return false
	}
	return true
}
