package auth

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestParseRole(t *testing.T) {
	cases := map[string]Role{
		"normal_user":    RoleNormalUser,
		" Verified_User": RoleVerifiedUser,
		"brand_user":     RoleBrandUser,
		"banned_user":    RoleBannedUser,
		"admin":          RoleAdmin,
		"super_admin":    RoleSuperAdmin,
		"user":           RoleNormalUser,
		"banned":         RoleBannedUser,
		"moderator":      RoleUnknown,
		"unknown":        RoleUnknown,
		"":               RoleUnknown,
	}
	for in, want := range cases {
		if got := ParseRole(in); got != want {
			t.Fatalf("ParseRole(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestRoleStringRoundTrip(t *testing.T) {
	for _, r := range AllRoles() {
		if !r.Valid() {
			t.Fatalf("role %v should be valid", r)
		}
		if got := ParseRole(r.String()); got != r {
			t.Fatalf("round trip %v -> %q -> %v", r, r.String(), got)
		}
	}
	if Role(200).String() != "unknown" {
		t.Fatalf("out of range role should render as unknown")
	}
	if RoleUnknown.Valid() || Role(200).Valid() {
		t.Fatalf("unknown roles must not be valid")
	}
}

func TestRoleRank(t *testing.T) {
	if !RoleSuperAdmin.AtLeast(RoleAdmin) || RoleAdmin.AtLeast(RoleSuperAdmin) {
		t.Fatalf("super_admin must outrank admin")
	}
	if RoleBannedUser.AtLeast(RoleNormalUser) {
		t.Fatalf("banned_user must rank below normal_user")
	}
}

func TestRoleJSON(t *testing.T) {
	var out struct {
		Role Role `json:"role"`
	}
	if err := json.Unmarshal([]byte(`{"role":"admin"}`), &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if out.Role != RoleAdmin {
		t.Fatalf("expected admin, got %v", out.Role)
	}
	err := json.Unmarshal([]byte(`{"role":"root"}`), &out)
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
	data, err := json.Marshal(struct {
		Role Role `json:"role"`
	}{RoleBrandUser})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(data) != `{"role":"brand_user"}` {
		t.Fatalf("unexpected json %s", data)
	}
}
