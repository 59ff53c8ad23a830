package auth

import (
	"fmt"
	"strings"
)

// Role is a named bucket of trust. The set is closed: values outside the
// declared constants behave as RoleUnknown and carry no permissions.
type Role uint8

const (
	RoleUnknown Role = iota
	RoleNormalUser
	RoleVerifiedUser
	RoleBrandUser
	RoleBannedUser
	RoleAdmin
	RoleSuperAdmin

	roleCount
)

var roleNames = [roleCount]string{
	RoleUnknown:      "unknown",
	RoleNormalUser:   "normal_user",
	RoleVerifiedUser: "verified_user",
	RoleBrandUser:    "brand_user",
	RoleBannedUser:   "banned_user",
	RoleAdmin:        "admin",
	RoleSuperAdmin:   "super_admin",
}

// Aliases used by the simplified admin surface.
var roleAliases = map[string]Role{
	"user":   RoleNormalUser,
	"banned": RoleBannedUser,
}

// AllRoles lists every assignable role in ascending order of trust.
func AllRoles() []Role {
	return []Role{RoleBannedUser, RoleNormalUser, RoleVerifiedUser, RoleBrandUser, RoleAdmin, RoleSuperAdmin}
}

func (r Role) String() string {
	if r >= roleCount {
		return roleNames[RoleUnknown]
	}
	return roleNames[r]
}

// Valid reports whether r is one of the declared, assignable roles.
func (r Role) Valid() bool {
	return r > RoleUnknown && r < roleCount
}

// Rank orders roles for hierarchy checks. Banned and unknown rank lowest.
func (r Role) Rank() int {
	switch r {
	case RoleNormalUser:
		return 10
	case RoleVerifiedUser:
		return 20
	case RoleBrandUser:
		return 30
	case RoleAdmin:
		return 40
	case RoleSuperAdmin:
		return 50
	default:
		return 0
	}
}

// AtLeast reports whether r is ranked at or above target.
func (r Role) AtLeast(target Role) bool {
	return r.Rank() >= target.Rank()
}

// ParseRole converts a role name (or alias) into a Role. Unrecognised names
// yield RoleUnknown.
func ParseRole(s string) Role {
	s = strings.TrimSpace(strings.ToLower(s))
	if r, ok := roleAliases[s]; ok {
		return r
	}
	for i, name := range roleNames {
		if Role(i) != RoleUnknown && name == s {
			return Role(i)
		}
	}
	return RoleUnknown
}

func (r Role) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

func (r *Role) UnmarshalText(text []byte) error {
	parsed := ParseRole(string(text))
	if !parsed.Valid() {
		return fmt.Errorf("%w: unknown role %q", ErrInvalidInput, string(text))
	}
	*r = parsed
	return nil
}
