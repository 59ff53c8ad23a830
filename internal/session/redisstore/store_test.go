package redisstore

import (
	"context"
	"errors"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	"plaza.social/internal/auth"
	"plaza.social/internal/ids"
	"plaza.social/internal/session"
)

// fakeRedis implements the subset of redis.Cmdable the store uses.
type fakeRedis struct {
	redis.Cmdable

	mu      sync.Mutex
	values  map[string]string
	ttls    map[string]time.Duration
	failGet error
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{values: map[string]string{}, ttls: map[string]time.Duration{}}
}

func (f *fakeRedis) Get(_ context.Context, key string) *redis.StringCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failGet != nil {
		return redis.NewStringResult("", f.failGet)
	}
	v, ok := f.values[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (f *fakeRedis) Set(_ context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	switch v := value.(type) {
	case []byte:
		f.values[key] = string(v)
	case string:
		f.values[key] = v
	default:
		return redis.NewStatusResult("", errors.New("unsupported value type"))
	}
	f.ttls[key] = expiration
	return redis.NewStatusResult("OK", nil)
}

func (f *fakeRedis) Del(_ context.Context, keys ...string) *redis.IntCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for _, k := range keys {
		if _, ok := f.values[k]; ok {
			n++
		}
		delete(f.values, k)
		delete(f.ttls, k)
	}
	return redis.NewIntResult(n, nil)
}

func TestStoreOnFakeClient(t *testing.T) {
	ctx := context.Background()
	fake := newFakeRedis()
	s := New(fake, 5*time.Minute)
	st := session.State{
		Identity:  &auth.Identity{ID: "u1", Role: auth.RoleVerifiedUser},
		Role:      auth.RoleVerifiedUser,
		Timestamp: time.Now().UTC(),
	}

	if _, ok, err := s.Load(ctx, "u1"); err != nil || ok {
		t.Fatalf("expected miss, got ok=%v err=%v", ok, err)
	}
	if err := s.Save(ctx, "u1", st); err != nil {
		t.Fatalf("save: %v", err)
	}
	if ttl := fake.ttls["plaza:session:u1"]; ttl != 5*time.Minute {
		t.Fatalf("expected key expiry of 5m, got %v", ttl)
	}
	got, ok, err := s.Load(ctx, "u1")
	if err != nil || !ok {
		t.Fatalf("load: ok=%v err=%v", ok, err)
	}
	if got.Role != auth.RoleVerifiedUser || !got.Permissions.Has(auth.PermVerifyBadge) {
		t.Fatalf("unexpected state %+v", got)
	}
	if err := s.Delete(ctx, "u1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, ok, _ := s.Load(ctx, "u1"); ok {
		t.Fatalf("expected miss after delete")
	}
}

func TestStoreSurfacesErrors(t *testing.T) {
	ctx := context.Background()
	fake := newFakeRedis()
	s := New(fake, time.Minute)

	fake.values["plaza:session:u1"] = "{not json"
	if _, ok, err := s.Load(ctx, "u1"); err == nil || ok {
		t.Fatalf("expected decode error, got ok=%v err=%v", ok, err)
	}

	fake.failGet = errors.New("connection refused")
	_, _, err := s.Load(ctx, "u1")
	if err == nil || !strings.Contains(err.Error(), "redisstore: load") {
		t.Fatalf("expected wrapped load error, got %v", err)
	}
}

func testClient(t *testing.T) *redis.Client {
	t.Helper()
	addr := os.Getenv("PLAZA_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("PLAZA_TEST_REDIS_ADDR not set")
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skipf("redis unavailable: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestRoundTrip(t *testing.T) {
	client := testClient(t)
	s := New(client, time.Minute)
	s.prefix = "plaza:test:" + ids.New() + ":"
	ctx := context.Background()
	st := session.State{
		Identity:  &auth.Identity{ID: "u1", Role: auth.RoleBrandUser},
		Role:      auth.RoleBrandUser,
		Timestamp: time.Now().UTC(),
	}

	if _, ok, err := s.Load(ctx, "u1"); err != nil || ok {
		t.Fatalf("expected miss, got ok=%v err=%v", ok, err)
	}
	if err := s.Save(ctx, "u1", st); err != nil {
		t.Fatalf("save: %v", err)
	}
	ttl, err := client.TTL(ctx, s.key("u1")).Result()
	if err != nil || ttl <= 0 || ttl > time.Minute {
		t.Fatalf("expected native expiry, got %v err=%v", ttl, err)
	}
	got, ok, err := s.Load(ctx, "u1")
	if err != nil || !ok || !got.Permissions.Has(auth.PermWritePromotions) {
		t.Fatalf("load: ok=%v err=%v state=%+v", ok, err, got)
	}
	if err := s.Delete(ctx, "u1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, ok, _ := s.Load(ctx, "u1"); ok {
		t.Fatalf("expected miss after delete")
	}
}

func TestNewDefaultsTTL(t *testing.T) {
	s := New(redis.NewClient(&redis.Options{Addr: "127.0.0.1:0"}), 0)
	if s.ttl != session.DefaultTTL {
		t.Fatalf("expected default ttl, got %v", s.ttl)
	}
	if s.key("abc") != "plaza:session:abc" {
		t.Fatalf("unexpected key %q", s.key("abc"))
	}
}
