package session

import "errors"

var (
	// ErrIdentityUnavailable wraps failures of the identity source.
	ErrIdentityUnavailable = errors.New("identity unavailable")
	// ErrProfileUnavailable wraps failures loading the profile or bans.
	ErrProfileUnavailable = errors.New("profile unavailable")
)
