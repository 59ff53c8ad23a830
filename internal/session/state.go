package session

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"plaza.social/internal/auth"
)

// State is the cached auth state for one identity. It is replaced as a whole,
// never mutated in place.
type State struct {
	Identity    *auth.Identity     `json:"identity,omitempty"`
	Profile     *auth.Profile      `json:"profile,omitempty"`
	Role        auth.Role          `json:"role"`
	Permissions auth.PermissionSet `json:"permissions"`
	Banned      bool               `json:"banned"`
	ActiveBan   *auth.Ban          `json:"active_ban,omitempty"`
	Loading     bool               `json:"-"`
	Err         error              `json:"-"`
	Timestamp   time.Time          `json:"timestamp"`
}

func loadingState() *State {
	return &State{Loading: true}
}

// FreshAt reports whether the state may still be served at now.
func (s State) FreshAt(now time.Time, ttl time.Duration) bool {
	if s.Timestamp.IsZero() || s.Loading || s.Err != nil {
		return false
	}
	return now.Sub(s.Timestamp) <= ttl
}

// BelongsTo reports whether the state was built for userID.
func (s State) BelongsTo(userID string) bool {
	return s.Identity != nil && s.Identity.ID == userID
}

// Access converts the state into an evaluator snapshot.
func (s State) Access() auth.Access {
	a := auth.Access{
		Permissions: s.Permissions,
		Banned:      s.Banned,
		ActiveBan:   s.ActiveBan,
		Loading:     s.Loading,
		Err:         s.Err,
	}
	if s.Identity != nil {
		id := *s.Identity
		id.Role = s.Role
		a.Identity = &id
	}
	return a
}

// EncodeState serialises a state for a Persister.
func EncodeState(s State) ([]byte, error) {
	return json.Marshal(s)
}

// DecodeState restores a persisted state. Permissions are recomputed from the
// role so the in-process table stays authoritative.
func DecodeState(data []byte) (State, error) {
	var s State
	if err := json.Unmarshal(data, &s); err != nil {
		return State{}, fmt.Errorf("decode session state: %w", err)
	}
	if s.Identity == nil || s.Timestamp.IsZero() {
		return State{}, fmt.Errorf("decode session state: incomplete record")
	}
	s.Permissions = auth.PermissionsFor(s.Role)
	s.Banned = s.Role == auth.RoleBannedUser || s.ActiveBan != nil
	return s, nil
}

const maxUsernameLen = 32

// DefaultUsername derives a username from the local part of an email address.
func DefaultUsername(email string) string {
	local := strings.TrimSpace(email)
	if i := strings.IndexByte(local, '@'); i >= 0 {
		local = local[:i]
	}
	local = strings.ToLower(local)
	var b strings.Builder
	for _, r := range local {
		if b.Len() >= maxUsernameLen {
			break
		}
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	if b.Len() == 0 {
		return "user"
	}
	return b.String()
}
