package auth

import (
	"errors"
	"testing"
	"time"
)

func accessFor(role Role) Access {
	return Access{
		Identity:    &Identity{ID: "u1", Email: "u1@example.com", Role: role},
		Permissions: PermissionsFor(role),
	}
}

func TestCheckByRole(t *testing.T) {
	if accessFor(RoleNormalUser).Check(PermManageUsers) {
		t.Fatalf("normal_user must not manage users")
	}
	if !accessFor(RoleAdmin).Check(PermManageUsers) {
		t.Fatalf("admin must manage users")
	}
}

func TestCheckDeniesBanned(t *testing.T) {
	a := accessFor(RoleAdmin)
	a.Banned = true
	a.ActiveBan = &Ban{UserID: "u1", ExpiresAt: time.Now().Add(time.Hour)}
	if a.Check(PermWritePosts) || a.HasAny(PermReadPosts) || a.HasAll() {
		t.Fatalf("banned identity must be denied everything")
	}
	if err := a.Require(PermWritePosts); !errors.Is(err, ErrBanned) || !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrBanned, got %v", err)
	}
}

func TestCheckDeniesWhileLoadingOrErrored(t *testing.T) {
	loading := accessFor(RoleSuperAdmin)
	loading.Loading = true
	if loading.Check(PermReadPosts) {
		t.Fatalf("loading state must deny")
	}
	if err := loading.Require(PermReadPosts); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden while loading, got %v", err)
	}

	failed := accessFor(RoleSuperAdmin)
	failed.Err = errors.New("profile fetch failed")
	if failed.HasAny(PermReadPosts, PermWritePosts) {
		t.Fatalf("errored state must deny")
	}
	if err := failed.Require(PermReadPosts); !errors.Is(err, ErrUnauthenticated) {
		t.Fatalf("expected ErrUnauthenticated, got %v", err)
	}
}

func TestAnonymousDenied(t *testing.T) {
	a := Anonymous()
	if a.Check(PermReadPosts) || a.Role() != RoleUnknown || a.UserID() != "" {
		t.Fatalf("anonymous access must deny")
	}
	if err := a.Require(PermReadPosts); !errors.Is(err, ErrUnauthenticated) {
		t.Fatalf("expected ErrUnauthenticated, got %v", err)
	}
}

func TestHasAnyHasAllEmpty(t *testing.T) {
	a := accessFor(RoleNormalUser)
	if a.HasAny() {
		t.Fatalf("HasAny() with no arguments must be false")
	}
	if !a.HasAll() {
		t.Fatalf("HasAll() with no arguments must be true")
	}
	if !a.HasAny(PermManageUsers, PermWritePosts) {
		t.Fatalf("HasAny should match write:posts")
	}
	if a.HasAll(PermManageUsers, PermWritePosts) {
		t.Fatalf("HasAll must require every permission")
	}
}

func TestRequireNamesMissingPermission(t *testing.T) {
	err := accessFor(RoleNormalUser).Require(PermWritePosts, PermWriteReports)
	if !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
	if err.Error() != "forbidden: write:reports required" {
		t.Fatalf("unexpected message %q", err.Error())
	}
	if err := accessFor(RoleAdmin).Require(PermWriteReports); err != nil {
		t.Fatalf("admin should pass: %v", err)
	}
}

func TestBanActiveAt(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	b := Ban{ExpiresAt: now.Add(time.Minute)}
	if !b.ActiveAt(now) {
		t.Fatalf("future expiry must be active")
	}
	if b.ActiveAt(now.Add(time.Minute)) {
		t.Fatalf("ban must lapse at expires_at")
	}
}
