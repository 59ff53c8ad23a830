package auth

import (
	"fmt"

	"plaza.social/internal/obs"
)

// Access is a read-only snapshot of what an identity may do. It is derived
// from cached session state and is advisory: row-level security on the
// backend remains the authoritative check.
//
// All checks deny while the state is loading, errored or banned.
type Access struct {
	Identity    *Identity
	Permissions PermissionSet
	Banned      bool
	ActiveBan   *Ban
	Loading     bool
	Err         error
}

// Anonymous is the access of a request without a resolved identity.
func Anonymous() Access {
	return Access{}
}

func (a Access) usable() bool {
	return !a.Loading && a.Err == nil && !a.Banned && a.Identity != nil
}

// Role returns the resolved role, or RoleUnknown without an identity.
func (a Access) Role() Role {
	if a.Identity == nil {
		return RoleUnknown
	}
	return a.Identity.Role
}

// UserID returns the identity id or "".
func (a Access) UserID() string {
	if a.Identity == nil {
		return ""
	}
	return a.Identity.ID
}

// Check reports whether p is granted.
func (a Access) Check(p Permission) bool {
	return a.usable() && a.Permissions.Has(p)
}

// HasAny reports whether at least one of ps is granted.
func (a Access) HasAny(ps ...Permission) bool {
	if !a.usable() {
		return false
	}
	for _, p := range ps {
		if a.Permissions.Has(p) {
			return true
		}
	}
	return false
}

// HasAll reports whether every one of ps is granted.
func (a Access) HasAll(ps ...Permission) bool {
	if !a.usable() {
		return false
	}
	for _, p := range ps {
		if !a.Permissions.Has(p) {
			return false
		}
	}
	return true
}

// Require returns nil when every permission is granted, otherwise an error
// matching ErrUnauthenticated or ErrForbidden. Callers must invoke it before
// issuing any mutating request.
func (a Access) Require(ps ...Permission) error {
	err := a.require(ps)
	for _, p := range ps {
		obs.ObservePermissionCheck(string(p), err == nil)
	}
	return err
}

func (a Access) require(ps []Permission) error {
	switch {
	case a.Loading:
		return fmt.Errorf("%w: permissions not loaded", ErrForbidden)
	case a.Err != nil:
		return fmt.Errorf("%w: session unavailable: %v", ErrUnauthenticated, a.Err)
	case a.Identity == nil:
		return ErrUnauthenticated
	case a.Banned:
		return ErrBanned
	}
	for _, p := range ps {
		if !a.Permissions.Has(p) {
			return fmt.Errorf("%w: %s required", ErrForbidden, p)
		}
	}
	return nil
}
