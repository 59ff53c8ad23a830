package auth

import "time"

// Identity is the current actor as seen by the hosted authentication service.
// Role is resolved from the profile row, not from the token.
type Identity struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Role  Role   `json:"role"`
}

// Profile is the application-side user row.
type Profile struct {
	UserID    string    `json:"user_id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	Role      Role      `json:"role"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Ban blocks a user until ExpiresAt. Expired rows are kept as history.
type Ban struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	AdminID   string    `json:"admin_id"`
	Reason    string    `json:"reason"`
	ExpiresAt time.Time `json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
}

// ActiveAt reports whether the ban is in force at now.
func (b Ban) ActiveAt(now time.Time) bool {
	return b.ExpiresAt.After(now)
}
