package sqlitestore

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"plaza.social/internal/auth"
	"plaza.social/internal/session"
)

func openTest(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), filepath.Join(t.TempDir(), "cache.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestSaveLoadDelete(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()
	ts := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)
	st := session.State{
		Identity:  &auth.Identity{ID: "u1", Email: "u1@example.com", Role: auth.RoleAdmin},
		Role:      auth.RoleAdmin,
		Timestamp: ts,
	}

	if _, ok, err := s.Load(ctx, "u1"); err != nil || ok {
		t.Fatalf("expected miss, got ok=%v err=%v", ok, err)
	}
	if err := s.Save(ctx, "u1", st); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := s.Save(ctx, "u1", st); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	got, ok, err := s.Load(ctx, "u1")
	if err != nil || !ok {
		t.Fatalf("load: ok=%v err=%v", ok, err)
	}
	if got.Role != auth.RoleAdmin || !got.Timestamp.Equal(ts) {
		t.Fatalf("unexpected state %+v", got)
	}
	if !got.Permissions.Has(auth.PermManageUsers) {
		t.Fatalf("permissions must be derived from role on load")
	}

	if err := s.Delete(ctx, "u1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, ok, _ := s.Load(ctx, "u1"); ok {
		t.Fatalf("expected miss after delete")
	}
}

func TestCacheUsesSQLite(t *testing.T) {
	s := openTest(t)
	ctx := auth.ContextWithIdentity(context.Background(), auth.Identity{ID: "u7", Email: "seven@example.com"})
	profiles := &profileStub{}
	src := session.Sources{Identity: auth.RequestIdentity{}, Profiles: profiles, Bans: noBans{}}

	if _, err := session.New(src, session.WithPersister(s)).Refresh(ctx, false); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if _, err := session.New(src, session.WithPersister(s)).Refresh(ctx, false); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if profiles.gets != 1 {
		t.Fatalf("second process should reuse the SQLite entry, got %d fetches", profiles.gets)
	}

	n, err := s.Prune(context.Background(), time.Now().Add(time.Hour))
	if err != nil || n != 1 {
		t.Fatalf("prune: n=%d err=%v", n, err)
	}
}

type profileStub struct{ gets int }

func (p *profileStub) GetProfile(_ context.Context, userID string) (auth.Profile, error) {
	p.gets++
	return auth.Profile{UserID: userID, Role: auth.RoleNormalUser}, nil
}

func (p *profileStub) CreateProfile(_ context.Context, pr auth.Profile) (auth.Profile, error) {
	return pr, nil
}

type noBans struct{}

func (noBans) ActiveBans(context.Context, string, time.Time) ([]auth.Ban, error) { return nil, nil }
