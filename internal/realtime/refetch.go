package realtime

import (
	"context"
	"sync"

	"plaza.social/internal/obs"
)

// RefetchFunc reloads whatever view depends on the changed table.
type RefetchFunc func(ctx context.Context, c Change) error

// Watch subscribes to table and runs fn for every change until ctx ends.
// Refetches are not sequenced: two rapid changes may run concurrently and the
// last one to complete wins. Watch returns after in-flight refetches finish.
func Watch(ctx context.Context, feed Feed, table string, fn RefetchFunc) error {
	changes, err := feed.Subscribe(ctx, table)
	if err != nil {
		return err
	}
	var wg sync.WaitGroup
	defer wg.Wait()
	for c := range changes {
		wg.Add(1)
		go func(c Change) {
			defer wg.Done()
			if err := fn(ctx, c); err != nil {
				obs.Logger().Warn().Err(err).
					Str("table", c.Table).
					Str("row_id", c.RowID).
					Msg("refetch after change failed")
			}
		}(c)
	}
	return ctx.Err()
}
