package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"plaza.social/internal/auth"
	"plaza.social/internal/obs"
)

// DefaultTTL bounds how long cached auth state is trusted.
const DefaultTTL = 10 * time.Minute

type config struct {
	ttl       time.Duration
	now       func() time.Time
	persister Persister
}

// Option customises a Cache or Manager.
type Option func(*config)

// WithTTL overrides DefaultTTL. Non-positive values are ignored.
func WithTTL(ttl time.Duration) Option {
	return func(c *config) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

// WithClock overrides the time source used for timestamps and freshness.
func WithClock(now func() time.Time) Option {
	return func(c *config) {
		if now != nil {
			c.now = now
		}
	}
}

// WithPersister attaches a durable store.
func WithPersister(p Persister) Option {
	return func(c *config) {
		c.persister = p
	}
}

func newConfig(opts []Option) config {
	cfg := config{
		ttl: DefaultTTL,
		now: func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

// Cache holds the auth state of one session. Get is lock-free; refreshes are
// serialised and publish a new State atomically.
type Cache struct {
	src Sources
	cfg config

	mu      sync.Mutex
	state   atomic.Pointer[State]
	current string

	// evicted caches were dropped by Manager.InvalidateUser. They never serve
	// cached state and never persist.
	evicted atomic.Bool
}

// New creates a cache in the loading state.
func New(src Sources, opts ...Option) *Cache {
	return newCache(src, newConfig(opts))
}

func newCache(src Sources, cfg config) *Cache {
	c := &Cache{src: src, cfg: cfg}
	c.state.Store(loadingState())
	return c
}

// Get returns the current state. A loading state must be read as "deny".
func (c *Cache) Get() State {
	return *c.state.Load()
}

// Access returns the evaluator snapshot of the current state.
func (c *Cache) Access() auth.Access {
	return c.Get().Access()
}

// Refresh resolves the current identity and, unless force is set or the
// cached entry is stale or belongs to someone else, serves it from memory or
// the persister. Otherwise it performs a full fetch. Any failure leaves the
// cache in an error state and removes the persisted entry.
func (c *Cache) Refresh(ctx context.Context, force bool) (State, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	id, err := c.src.Identity.CurrentIdentity(ctx)
	if err != nil {
		err = fmt.Errorf("%w: %w", ErrIdentityUnavailable, err)
		c.dropPersisted(ctx, c.current)
		return c.fail(err), err
	}
	if id == nil || strings.TrimSpace(id.ID) == "" {
		c.clear(ctx)
		return State{}, nil
	}
	if c.current != "" && c.current != id.ID {
		c.dropPersisted(ctx, c.current)
	}
	c.current = id.ID

	now := c.cfg.now()
	evicted := c.evicted.Load()
	if !force && !evicted {
		if cur := c.state.Load(); cur.BelongsTo(id.ID) && cur.FreshAt(now, c.cfg.ttl) {
			obs.ObserveCacheLookup("hit")
			return *cur, nil
		}
		if st, ok := c.loadPersisted(ctx, id.ID, now); ok {
			obs.ObserveCacheLookup("hit")
			c.state.Store(&st)
			return st, nil
		}
	}

	st, err := c.fetch(ctx, *id, now)
	if err != nil {
		obs.ObserveCacheLookup("error")
		c.dropPersisted(ctx, id.ID)
		return c.fail(err), err
	}
	obs.ObserveCacheLookup("miss")
	c.state.Store(&st)
	if c.cfg.persister != nil && !evicted {
		if err := c.cfg.persister.Save(ctx, id.ID, st); err != nil {
			obs.Logger().Warn().Err(err).Str("user_id", id.ID).Msg("persist session state")
		}
	}
	return st, nil
}

// evict discards the in-memory state once any refresh in progress has
// finished. The evicted flag must already be set.
func (c *Cache) evict() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state.Store(loadingState())
}

// Invalidate drops the cached state and its persisted copy (sign-out).
func (c *Cache) Invalidate(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.clear(ctx)
}

func (c *Cache) clear(ctx context.Context) error {
	var err error
	if c.cfg.persister != nil && c.current != "" {
		err = c.cfg.persister.Delete(ctx, c.current)
	}
	c.current = ""
	c.state.Store(&State{})
	return err
}

func (c *Cache) fail(err error) State {
	st := &State{Err: err, Timestamp: c.cfg.now()}
	c.state.Store(st)
	return *st
}

func (c *Cache) dropPersisted(ctx context.Context, userID string) {
	if c.cfg.persister == nil || userID == "" {
		return
	}
	if err := c.cfg.persister.Delete(ctx, userID); err != nil {
		obs.Logger().Warn().Err(err).Str("user_id", userID).Msg("drop persisted session state")
	}
}

func (c *Cache) loadPersisted(ctx context.Context, userID string, now time.Time) (State, bool) {
	if c.cfg.persister == nil {
		return State{}, false
	}
	st, ok, err := c.cfg.persister.Load(ctx, userID)
	if err != nil {
		obs.Logger().Warn().Err(err).Str("user_id", userID).Msg("load persisted session state")
		c.dropPersisted(ctx, userID)
		return State{}, false
	}
	if !ok || !st.BelongsTo(userID) {
		return State{}, false
	}
	if !st.FreshAt(now, c.cfg.ttl) {
		obs.ObserveCacheLookup("expired")
		c.dropPersisted(ctx, userID)
		return State{}, false
	}
	if st.ActiveBan != nil && !st.ActiveBan.ActiveAt(now) {
		st.ActiveBan = nil
		st.Banned = st.Role == auth.RoleBannedUser
	}
	return st, true
}

func (c *Cache) fetch(ctx context.Context, id auth.Identity, now time.Time) (State, error) {
	profile, err := c.src.Profiles.GetProfile(ctx, id.ID)
	if errors.Is(err, auth.ErrNotFound) {
		profile, err = c.src.Profiles.CreateProfile(ctx, auth.Profile{
			UserID:    id.ID,
			Email:     id.Email,
			Username:  DefaultUsername(id.Email),
			Role:      auth.RoleNormalUser,
			CreatedAt: now,
			UpdatedAt: now,
		})
		if errors.Is(err, auth.ErrConflict) {
			profile, err = c.src.Profiles.GetProfile(ctx, id.ID)
		}
	}
	if err != nil {
		return State{}, fmt.Errorf("%w: %w", ErrProfileUnavailable, err)
	}

	bans, err := c.src.Bans.ActiveBans(ctx, id.ID, now)
	if err != nil {
		return State{}, fmt.Errorf("%w: %w", ErrProfileUnavailable, err)
	}
	var active *auth.Ban
	for i := range bans {
		if !bans[i].ActiveAt(now) {
			continue
		}
		if active == nil || bans[i].ExpiresAt.After(active.ExpiresAt) {
			b := bans[i]
			active = &b
		}
	}

	id.Role = profile.Role
	return State{
		Identity:    &id,
		Profile:     &profile,
		Role:        profile.Role,
		Permissions: auth.PermissionsFor(profile.Role),
		Banned:      profile.Role == auth.RoleBannedUser || active != nil,
		ActiveBan:   active,
		Timestamp:   now,
	}, nil
}
