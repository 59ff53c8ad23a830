package session

import (
	"context"
	"time"

	"plaza.social/internal/auth"
)

// IdentitySource answers "who is the current actor". A nil identity with a
// nil error means there is no session.
type IdentitySource interface {
	CurrentIdentity(ctx context.Context) (*auth.Identity, error)
}

// ProfileStore reads and bootstraps profile rows. GetProfile returns
// auth.ErrNotFound when the row does not exist.
type ProfileStore interface {
	GetProfile(ctx context.Context, userID string) (auth.Profile, error)
	CreateProfile(ctx context.Context, p auth.Profile) (auth.Profile, error)
}

// BanStore lists bans whose expiry lies after now.
type BanStore interface {
	ActiveBans(ctx context.Context, userID string, now time.Time) ([]auth.Ban, error)
}

// Sources groups the source-of-truth lookups a Cache needs. All are required.
type Sources struct {
	Identity IdentitySource
	Profiles ProfileStore
	Bans     BanStore
}
