package auth

import (
	"encoding/json"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestPermissionsForHierarchy(t *testing.T) {
	normal := PermissionsFor(RoleNormalUser)
	if normal.Len() != 7 {
		t.Fatalf("normal_user: expected 7 permissions, got %d", normal.Len())
	}
	if normal.Has(PermManageUsers) || normal.Has(PermVerifyBadge) {
		t.Fatalf("normal_user must not hold elevated permissions")
	}
	if !PermissionsFor(RoleVerifiedUser).Has(PermVerifyBadge) {
		t.Fatalf("verified_user must hold verify:badge")
	}
	if !PermissionsFor(RoleBrandUser).Has(PermWritePromotions) {
		t.Fatalf("brand_user must hold write:promotions")
	}
	admin := PermissionsFor(RoleAdmin)
	for _, p := range []Permission{PermReadReports, PermWriteReports, PermManageBans, PermManageUsers, PermReadDashboard} {
		if !admin.Has(p) {
			t.Fatalf("admin missing %s", p)
		}
	}
	if admin.Has(PermManageAdmins) {
		t.Fatalf("admin must not hold manage:admins")
	}
	if !PermissionsFor(RoleSuperAdmin).Has(PermManageAdmins) {
		t.Fatalf("super_admin must hold manage:admins")
	}
}

func TestPermissionsMonotonic(t *testing.T) {
	chain := []Role{RoleNormalUser, RoleVerifiedUser, RoleBrandUser, RoleAdmin, RoleSuperAdmin}
	for i := 1; i < len(chain); i++ {
		lower, upper := PermissionsFor(chain[i-1]), PermissionsFor(chain[i])
		for _, p := range lower.Sorted() {
			if !upper.Has(p) {
				t.Fatalf("%v lost %s held by %v", chain[i], p, chain[i-1])
			}
		}
	}
}

func TestBannedAndUnknownHaveNothing(t *testing.T) {
	for _, r := range []Role{RoleBannedUser, RoleUnknown, Role(99)} {
		if n := PermissionsFor(r).Len(); n != 0 {
			t.Fatalf("role %d: expected empty set, got %d", r, n)
		}
	}
}

func TestPermissionTableIsNotShared(t *testing.T) {
	a := rolePermissions(RoleAdmin)
	a[0] = "tampered"
	if PermissionsFor(RoleNormalUser).Has("tampered") || rolePermissions(RoleNormalUser)[0] == "tampered" {
		t.Fatalf("permission slices must not alias")
	}
}

func TestPermissionSetJSON(t *testing.T) {
	set := NewPermissionSet(PermWritePosts, PermReadPosts, PermReadPosts)
	data, err := json.Marshal(set)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(data) != `["read:posts","write:posts"]` {
		t.Fatalf("unexpected json %s", data)
	}
	var back PermissionSet
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if diff := cmp.Diff(set.Sorted(), back.Sorted()); diff != "" {
		t.Fatalf("permission set mismatch (-want +got):\n%s", diff)
	}
}
