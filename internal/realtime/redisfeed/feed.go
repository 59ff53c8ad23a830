// Package redisfeed carries realtime changes across instances over Redis
// pub/sub. Each table maps to one channel with JSON payloads.
package redisfeed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"plaza.social/internal/obs"
	"plaza.social/internal/realtime"
)

const channelPrefix = "plaza:changes:"

// Feed implements realtime.Feed.
type Feed struct {
	client redis.UniversalClient
	prefix string
}

func New(client redis.UniversalClient) *Feed {
	return &Feed{client: client, prefix: channelPrefix}
}

// Channel returns the pub/sub channel used for table.
func (f *Feed) Channel(table string) string {
	return f.prefix + table
}

func (f *Feed) Publish(ctx context.Context, c realtime.Change) error {
	if strings.TrimSpace(c.Table) == "" {
		return errors.New("redisfeed: table is required")
	}
	if c.At.IsZero() {
		c.At = time.Now().UTC()
	}
	payload, err := json.Marshal(c)
	if err != nil {
		return err
	}
	if err := f.client.Publish(ctx, f.Channel(c.Table), payload).Err(); err != nil {
		return fmt.Errorf("redisfeed: publish: %w", err)
	}
	return nil
}

func (f *Feed) Subscribe(ctx context.Context, table string) (<-chan realtime.Change, error) {
	table = strings.TrimSpace(table)
	if table == "" {
		return nil, errors.New("redisfeed: table is required")
	}
	ps := f.client.Subscribe(ctx, f.Channel(table))
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, fmt.Errorf("redisfeed: subscribe: %w", err)
	}

	out := make(chan realtime.Change, 16)
	go func() {
		defer ps.Close()
		forward(ctx, ps.Channel(), out)
	}()
	return out, nil
}

// forward decodes messages onto out until ctx ends or msgs closes, then
// closes out. Malformed payloads are skipped.
func forward(ctx context.Context, msgs <-chan *redis.Message, out chan<- realtime.Change) {
	defer close(out)
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-msgs:
			if !ok {
				return
			}
			var c realtime.Change
			if err := json.Unmarshal([]byte(msg.Payload), &c); err != nil {
				obs.Logger().Warn().Err(err).Str("channel", msg.Channel).Msg("malformed change payload")
				continue
			}
			select {
			case out <- c:
			default:
				// Drop when subscriber is slow to avoid blocking.
			}
		}
	}
}
