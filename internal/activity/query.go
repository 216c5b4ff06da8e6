// Package activity stores the history of statement events per building,
// statement and draft.
package activity

import "time"

// QueryOptions controls filtering and pagination for entity activity queries.
type QueryOptions struct {
	Since      *time.Time
	Until      *time.Time
	EventTypes []string // filter to specific event types
	Limit      int      // max results (default: 100, max: 500)
	Cursor     string   // occurred_at of the last entry of the previous page
}

// DefaultQueryOptions returns QueryOptions with the default limit.
func DefaultQueryOptions() QueryOptions {
	return QueryOptions{Limit: 100}
}

func (o QueryOptions) limit() int {
	if o.Limit <= 0 || o.Limit > 500 {
		return 100
	}
	return o.Limit
}
