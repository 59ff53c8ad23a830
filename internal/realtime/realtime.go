// Package realtime models the backend's table change feed as
// "invalidate-and-refetch on notification". Changes carry no payload beyond
// the affected row; consumers always refetch.
package realtime

import (
	"context"
	"time"
)

// Tables the service reacts to.
const (
	TableProfiles = "profiles"
	TableBans     = "bans"
	TableReports  = "reports"
)

// Change describes a row change on a named table.
type Change struct {
	Table  string    `json:"table"`
	Op     string    `json:"op"`
	RowID  string    `json:"row_id,omitempty"`
	UserID string    `json:"user_id,omitempty"`
	At     time.Time `json:"at"`
}

// Publisher emits changes.
type Publisher interface {
	Publish(ctx context.Context, c Change) error
}

// Feed is a subscribable change feed. The returned channel is closed when
// ctx ends.
type Feed interface {
	Publisher
	Subscribe(ctx context.Context, table string) (<-chan Change, error)
}
