package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"plaza.social/internal/auth"
)

type fakeIdentity struct {
	id  *auth.Identity
	err error
}

func (f *fakeIdentity) CurrentIdentity(context.Context) (*auth.Identity, error) {
	return f.id, f.err
}

type fakeProfiles struct {
	mu       sync.Mutex
	rows     map[string]auth.Profile
	gets     int
	creates  int
	getErr   error
	createFn func(auth.Profile) (auth.Profile, error)
}

func newFakeProfiles(rows ...auth.Profile) *fakeProfiles {
	f := &fakeProfiles{rows: make(map[string]auth.Profile)}
	for _, r := range rows {
		f.rows[r.UserID] = r
	}
	return f
}

func (f *fakeProfiles) GetProfile(_ context.Context, userID string) (auth.Profile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gets++
	if f.getErr != nil {
		return auth.Profile{}, f.getErr
	}
	p, ok := f.rows[userID]
	if !ok {
		return auth.Profile{}, auth.ErrNotFound
	}
	return p, nil
}

func (f *fakeProfiles) CreateProfile(_ context.Context, p auth.Profile) (auth.Profile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.creates++
	if f.createFn != nil {
		return f.createFn(p)
	}
	f.rows[p.UserID] = p
	return p, nil
}

func (f *fakeProfiles) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.gets
}

type fakeBans struct {
	bans []auth.Ban
	err  error
}

func (f *fakeBans) ActiveBans(_ context.Context, userID string, now time.Time) ([]auth.Ban, error) {
	if f.err != nil {
		return nil, f.err
	}
	var out []auth.Ban
	for _, b := range f.bans {
		if b.UserID == userID && b.ExpiresAt.After(now) {
			out = append(out, b)
		}
	}
	return out, nil
}

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func newClock() *clock {
	return &clock{now: time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func fixture(role auth.Role) (*fakeIdentity, *fakeProfiles, *fakeBans) {
	id := &fakeIdentity{id: &auth.Identity{ID: "u1", Email: "ana@example.com"}}
	profiles := newFakeProfiles(auth.Profile{UserID: "u1", Username: "ana", Email: "ana@example.com", Role: role})
	return id, profiles, &fakeBans{}
}

func TestGetStartsLoading(t *testing.T) {
	id, profiles, bans := fixture(auth.RoleAdmin)
	c := New(Sources{Identity: id, Profiles: profiles, Bans: bans})
	st := c.Get()
	if !st.Loading {
		t.Fatalf("expected loading state before first refresh")
	}
	if c.Access().Check(auth.PermReadPosts) {
		t.Fatalf("loading state must deny")
	}
}

func TestRefreshTTLBoundary(t *testing.T) {
	clk := newClock()
	id, profiles, bans := fixture(auth.RoleNormalUser)
	c := New(Sources{Identity: id, Profiles: profiles, Bans: bans}, WithClock(clk.Now), WithTTL(10*time.Minute))
	ctx := context.Background()

	if _, err := c.Refresh(ctx, false); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if profiles.calls() != 1 {
		t.Fatalf("expected one fetch, got %d", profiles.calls())
	}

	clk.Advance(10*time.Minute - time.Millisecond)
	if _, err := c.Refresh(ctx, false); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if profiles.calls() != 1 {
		t.Fatalf("read inside TTL must be served from cache, got %d fetches", profiles.calls())
	}

	clk.Advance(2 * time.Millisecond)
	if _, err := c.Refresh(ctx, false); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if profiles.calls() != 2 {
		t.Fatalf("read past TTL must refetch, got %d fetches", profiles.calls())
	}
}

func TestForceRefreshAlwaysFetches(t *testing.T) {
	id, profiles, bans := fixture(auth.RoleNormalUser)
	c := New(Sources{Identity: id, Profiles: profiles, Bans: bans})
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		if _, err := c.Refresh(ctx, true); err != nil {
			t.Fatalf("refresh: %v", err)
		}
	}
	if profiles.calls() != 3 {
		t.Fatalf("expected 3 fetches, got %d", profiles.calls())
	}
}

func TestRefreshResolvesRoleAndPermissions(t *testing.T) {
	id, profiles, bans := fixture(auth.RoleAdmin)
	c := New(Sources{Identity: id, Profiles: profiles, Bans: bans})
	st, err := c.Refresh(context.Background(), false)
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if st.Role != auth.RoleAdmin || st.Banned || st.Loading {
		t.Fatalf("unexpected state %+v", st)
	}
	a := c.Access()
	if !a.Check(auth.PermManageUsers) {
		t.Fatalf("admin must manage users")
	}
	if a.Identity.Role != auth.RoleAdmin {
		t.Fatalf("identity role should come from profile, got %v", a.Identity.Role)
	}
}

func TestRefreshActiveBanDeniesWrites(t *testing.T) {
	clk := newClock()
	id, profiles, bans := fixture(auth.RoleAdmin)
	bans.bans = []auth.Ban{
		{ID: "b-old", UserID: "u1", ExpiresAt: clk.Now().Add(-time.Hour)},
		{ID: "b-short", UserID: "u1", ExpiresAt: clk.Now().Add(time.Hour)},
		{ID: "b-long", UserID: "u1", ExpiresAt: clk.Now().Add(48 * time.Hour)},
	}
	c := New(Sources{Identity: id, Profiles: profiles, Bans: bans}, WithClock(clk.Now))
	st, err := c.Refresh(context.Background(), false)
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if !st.Banned || st.ActiveBan == nil || st.ActiveBan.ID != "b-long" {
		t.Fatalf("expected latest active ban, got %+v", st.ActiveBan)
	}
	if c.Access().Check(auth.PermWritePosts) {
		t.Fatalf("banned admin must not write posts")
	}
}

func TestRefreshBannedRoleHasNoPermissions(t *testing.T) {
	id, profiles, bans := fixture(auth.RoleBannedUser)
	c := New(Sources{Identity: id, Profiles: profiles, Bans: bans})
	st, err := c.Refresh(context.Background(), false)
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if !st.Banned || st.Permissions.Len() != 0 {
		t.Fatalf("banned_user must be banned with no permissions: %+v", st)
	}
}

func TestRefreshWithoutIdentityClears(t *testing.T) {
	id, profiles, bans := fixture(auth.RoleNormalUser)
	persister := NewMemoryPersister()
	c := New(Sources{Identity: id, Profiles: profiles, Bans: bans}, WithPersister(persister))
	ctx := context.Background()
	if _, err := c.Refresh(ctx, false); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if persister.Len() != 1 {
		t.Fatalf("expected persisted entry")
	}

	id.id = nil
	st, err := c.Refresh(ctx, false)
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if st.Identity != nil || st.Loading || st.Err != nil {
		t.Fatalf("expected cleared state, got %+v", st)
	}
	if persister.Len() != 0 {
		t.Fatalf("sign-out must clear the persisted entry")
	}
}

func TestRefreshIdentityErrorFailsClosed(t *testing.T) {
	id, profiles, bans := fixture(auth.RoleAdmin)
	persister := NewMemoryPersister()
	c := New(Sources{Identity: id, Profiles: profiles, Bans: bans}, WithPersister(persister))
	ctx := context.Background()
	if _, err := c.Refresh(ctx, false); err != nil {
		t.Fatalf("refresh: %v", err)
	}

	id.err = errors.New("auth service down")
	_, err := c.Refresh(ctx, true)
	if !errors.Is(err, ErrIdentityUnavailable) {
		t.Fatalf("expected ErrIdentityUnavailable, got %v", err)
	}
	if c.Access().Check(auth.PermReadPosts) {
		t.Fatalf("errored state must deny")
	}
	if persister.Len() != 0 {
		t.Fatalf("failure must clear the persisted entry")
	}
}

func TestRefreshProfileErrorFailsClosed(t *testing.T) {
	id, profiles, bans := fixture(auth.RoleAdmin)
	persister := NewMemoryPersister()
	c := New(Sources{Identity: id, Profiles: profiles, Bans: bans}, WithPersister(persister))
	ctx := context.Background()
	if _, err := c.Refresh(ctx, false); err != nil {
		t.Fatalf("refresh: %v", err)
	}

	profiles.getErr = errors.New("connection reset")
	_, err := c.Refresh(ctx, true)
	if !errors.Is(err, ErrProfileUnavailable) {
		t.Fatalf("expected ErrProfileUnavailable, got %v", err)
	}
	if err := c.Access().Require(auth.PermReadPosts); !errors.Is(err, auth.ErrUnauthenticated) {
		t.Fatalf("expected denial, got %v", err)
	}
	if persister.Len() != 0 {
		t.Fatalf("failure must clear the persisted entry")
	}

	bans.err = errors.New("bans timeout")
	profiles.getErr = nil
	if _, err := c.Refresh(ctx, true); !errors.Is(err, ErrProfileUnavailable) {
		t.Fatalf("ban lookup failure must fail closed, got %v", err)
	}
}

func TestRefreshCreatesMissingProfile(t *testing.T) {
	id := &fakeIdentity{id: &auth.Identity{ID: "u9", Email: "Jane.Doe+news@Example.com"}}
	profiles := newFakeProfiles()
	c := New(Sources{Identity: id, Profiles: profiles, Bans: &fakeBans{}})
	st, err := c.Refresh(context.Background(), false)
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if profiles.creates != 1 {
		t.Fatalf("expected profile bootstrap")
	}
	if st.Profile.Username != "jane_doe_news" || st.Role != auth.RoleNormalUser {
		t.Fatalf("unexpected bootstrapped profile %+v", st.Profile)
	}
}

func TestRefreshCreateRaceRereads(t *testing.T) {
	id := &fakeIdentity{id: &auth.Identity{ID: "u9", Email: "x@example.com"}}
	profiles := newFakeProfiles()
	profiles.createFn = func(p auth.Profile) (auth.Profile, error) {
		p.Username = "winner"
		profiles.rows[p.UserID] = p
		return auth.Profile{}, auth.ErrConflict
	}
	c := New(Sources{Identity: id, Profiles: profiles, Bans: &fakeBans{}})
	st, err := c.Refresh(context.Background(), false)
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if st.Profile.Username != "winner" {
		t.Fatalf("expected concurrently created profile, got %+v", st.Profile)
	}
}

func TestPersistedStateSurvivesReload(t *testing.T) {
	clk := newClock()
	id, profiles, bans := fixture(auth.RoleVerifiedUser)
	persister := NewMemoryPersister()
	src := Sources{Identity: id, Profiles: profiles, Bans: bans}
	ctx := context.Background()

	first := New(src, WithClock(clk.Now), WithPersister(persister))
	if _, err := first.Refresh(ctx, false); err != nil {
		t.Fatalf("refresh: %v", err)
	}

	clk.Advance(5 * time.Minute)
	second := New(src, WithClock(clk.Now), WithPersister(persister))
	st, err := second.Refresh(ctx, false)
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if profiles.calls() != 1 {
		t.Fatalf("reload within TTL must skip the fetch, got %d", profiles.calls())
	}
	if !st.Permissions.Has(auth.PermVerifyBadge) {
		t.Fatalf("restored state lost permissions")
	}

	clk.Advance(6 * time.Minute)
	third := New(src, WithClock(clk.Now), WithPersister(persister))
	if _, err := third.Refresh(ctx, false); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if profiles.calls() != 2 {
		t.Fatalf("expired persisted state must refetch, got %d", profiles.calls())
	}
}

func TestCacheIgnoresOtherIdentity(t *testing.T) {
	id, profiles, bans := fixture(auth.RoleNormalUser)
	profiles.rows["u2"] = auth.Profile{UserID: "u2", Role: auth.RoleAdmin}
	c := New(Sources{Identity: id, Profiles: profiles, Bans: bans})
	ctx := context.Background()
	if _, err := c.Refresh(ctx, false); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	id.id = &auth.Identity{ID: "u2"}
	st, err := c.Refresh(ctx, false)
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if st.Role != auth.RoleAdmin || profiles.calls() != 2 {
		t.Fatalf("identity switch must trigger a full fetch")
	}
}

func TestInvalidate(t *testing.T) {
	id, profiles, bans := fixture(auth.RoleAdmin)
	persister := NewMemoryPersister()
	c := New(Sources{Identity: id, Profiles: profiles, Bans: bans}, WithPersister(persister))
	ctx := context.Background()
	if _, err := c.Refresh(ctx, false); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if err := c.Invalidate(ctx); err != nil {
		t.Fatalf("invalidate: %v", err)
	}
	if c.Access().Check(auth.PermReadPosts) {
		t.Fatalf("invalidated cache must deny")
	}
	if persister.Len() != 0 {
		t.Fatalf("invalidate must delete the persisted entry")
	}
}

func TestDefaultUsername(t *testing.T) {
	cases := map[string]string{
		"Ana@example.com":                        "ana",
		"first.last@x.io":                        "first_last",
		"@example.com":                           "user",
		"":                                       "user",
		"no-at-sign":                             "no_at_sign",
		"abcdefghijklmnopqrstuvwxyz0123456789@x": "abcdefghijklmnopqrstuvwxyz012345",
	}
	for in, want := range cases {
		if got := DefaultUsername(in); got != want {
			t.Fatalf("DefaultUsername(%q) = %q, want %q", in, got, want)
		}
	}
}
