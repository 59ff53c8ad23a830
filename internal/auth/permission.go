package auth

import (
	"encoding/json"
	"sort"
)

// Permission is an atomic allowed-action tag checked before a mutation is attempted.
type Permission string

const (
	PermReadPosts       Permission = "read:posts"
	PermWritePosts      Permission = "write:posts"
	PermReadEvents      Permission = "read:events"
	PermWriteEvents     Permission = "write:events"
	PermWriteComments   Permission = "write:comments"
	PermWriteLikes      Permission = "write:likes"
	PermCreateReports   Permission = "create:reports"
	PermVerifyBadge     Permission = "verify:badge"
	PermWritePromotions Permission = "write:promotions"
	PermReadReports     Permission = "read:reports"
	PermWriteReports    Permission = "write:reports"
	PermManageBans      Permission = "manage:bans"
	PermManageUsers     Permission = "manage:users"
	PermReadDashboard   Permission = "read:dashboard"
	PermManageAdmins    Permission = "manage:admins"
)

// PermissionSet is an immutable set of permissions.
type PermissionSet struct {
	m map[Permission]struct{}
}

// NewPermissionSet builds a set from the given permissions, ignoring duplicates.
func NewPermissionSet(perms ...Permission) PermissionSet {
	m := make(map[Permission]struct{}, len(perms))
	for _, p := range perms {
		if p == "" {
			continue
		}
		m[p] = struct{}{}
	}
	return PermissionSet{m: m}
}

func (s PermissionSet) Has(p Permission) bool {
	_, ok := s.m[p]
	return ok
}

func (s PermissionSet) Len() int { return len(s.m) }

// Sorted returns the permissions in lexical order.
func (s PermissionSet) Sorted() []Permission {
	out := make([]Permission, 0, len(s.m))
	for p := range s.m {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (s PermissionSet) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Sorted())
}

func (s *PermissionSet) UnmarshalJSON(data []byte) error {
	var list []Permission
	if err := json.Unmarshal(data, &list); err != nil {
		return err
	}
	*s = NewPermissionSet(list...)
	return nil
}

// permissionTable is filled once at init from rolePermissions and never mutated.
var permissionTable = func() [roleCount]PermissionSet {
	var table [roleCount]PermissionSet
	for r := Role(0); r < roleCount; r++ {
		table[r] = NewPermissionSet(rolePermissions(r)...)
	}
	return table
}()

// rolePermissions returns a fresh slice on every call; each role extends the one below it.
func rolePermissions(r Role) []Permission {
	switch r {
	case RoleNormalUser:
		return []Permission{
			PermReadPosts, PermWritePosts, PermReadEvents, PermWriteEvents,
			PermWriteComments, PermWriteLikes, PermCreateReports,
		}
	case RoleVerifiedUser:
		return append(rolePermissions(RoleNormalUser), PermVerifyBadge)
	case RoleBrandUser:
		return append(rolePermissions(RoleVerifiedUser), PermWritePromotions)
	case RoleAdmin:
		return append(rolePermissions(RoleBrandUser),
			PermReadReports, PermWriteReports, PermManageBans, PermManageUsers, PermReadDashboard)
	case RoleSuperAdmin:
		return append(rolePermissions(RoleAdmin), PermManageAdmins)
	case RoleBannedUser, RoleUnknown:
		return nil
	default:
		return nil
	}
}

// PermissionsFor returns the fixed permission set of a role. Undefined roles
// map to the empty set.
func PermissionsFor(r Role) PermissionSet {
	if r >= roleCount {
		return permissionTable[RoleUnknown]
	}
	return permissionTable[r]
}
