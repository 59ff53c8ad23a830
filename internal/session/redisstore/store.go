// Package redisstore persists session state in Redis so several API
// instances share one cache. Entries carry a native expiry equal to the TTL.
package redisstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"plaza.social/internal/session"
)

const defaultPrefix = "plaza:session:"

// Store implements session.Persister on Redis.
type Store struct {
	client redis.Cmdable
	prefix string
	ttl    time.Duration
}

// New wraps a Redis client. ttl bounds the key lifetime; the cache still
// checks freshness itself.
func New(client redis.Cmdable, ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = session.DefaultTTL
	}
	return &Store{client: client, prefix: defaultPrefix, ttl: ttl}
}

func (s *Store) key(userID string) string {
	return s.prefix + userID
}

func (s *Store) Load(ctx context.Context, userID string) (session.State, bool, error) {
	raw, err := s.client.Get(ctx, s.key(userID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return session.State{}, false, nil
	}
	if err != nil {
		return session.State{}, false, fmt.Errorf("redisstore: load: %w", err)
	}
	st, err := session.DecodeState(raw)
	if err != nil {
		return session.State{}, false, err
	}
	return st, true, nil
}

func (s *Store) Save(ctx context.Context, userID string, st session.State) error {
	raw, err := session.EncodeState(st)
	if err != nil {
		return err
	}
	if err := s.client.Set(ctx, s.key(userID), raw, s.ttl).Err(); err != nil {
		return fmt.Errorf("redisstore: save: %w", err)
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, userID string) error {
	if err := s.client.Del(ctx, s.key(userID)).Err(); err != nil {
		return fmt.Errorf("redisstore: delete: %w", err)
	}
	return nil
}
