package admin

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"plaza.social/internal/audit"
	"plaza.social/internal/auth"
	"plaza.social/internal/moderation"
	"plaza.social/internal/obs"
	"plaza.social/internal/realtime"
)

const maxReasonLen = 500

// RoleAssignment records a privileged role change.
type RoleAssignment struct {
	UserID       string    `json:"user_id"`
	Role         auth.Role `json:"role"`
	PreviousRole auth.Role `json:"previous_role"`
	Reason       string    `json:"reason"`
	AssignedBy   string    `json:"assigned_by"`
	AssignedAt   time.Time `json:"assigned_at"`
}

// RoleStore reads profiles and writes role changes. SetRole must update the
// profile and append the assignment record atomically.
type RoleStore interface {
	GetProfile(ctx context.Context, userID string) (auth.Profile, error)
	SetRole(ctx context.Context, a RoleAssignment) (auth.Profile, error)
}

// Counter answers the dashboard's aggregate queries.
type Counter interface {
	CountReports(ctx context.Context, status moderation.ReportStatus) (int, error)
	CountActiveBans(ctx context.Context, now time.Time) (int, error)
	CountUsersByRole(ctx context.Context, role auth.Role) (int, error)
}

// Store is the persistence the admin service needs.
type Store interface {
	RoleStore
	Counter
}

// Invalidator drops cached session state of a user.
type Invalidator interface {
	InvalidateUser(ctx context.Context, userID string) error
}

// Service performs privileged administration.
type Service struct {
	store       Store
	invalidator Invalidator
	publisher   realtime.Publisher
	now         func() time.Time
}

// Option customises Service.
type Option func(*Service)

func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithPublisher announces role changes on the profiles feed.
func WithPublisher(p realtime.Publisher) Option {
	return func(s *Service) {
		s.publisher = p
	}
}

func NewService(store Store, invalidator Invalidator, opts ...Option) *Service {
	s := &Service{
		store:       store,
		invalidator: invalidator,
		now:         func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SetRole assigns role to targetUserID. The actor needs manage:users;
// granting super_admin, or changing the role of a super admin, additionally
// needs manage:admins, which only super admins hold. The target's cached
// session is invalidated afterwards; an already-open session may keep the old
// permissions until its next refresh.
func (s *Service) SetRole(ctx context.Context, actor auth.Access, targetUserID string, role auth.Role, reason string) (RoleAssignment, error) {
	if err := actor.Require(auth.PermManageUsers); err != nil {
		return RoleAssignment{}, err
	}
	targetUserID = strings.TrimSpace(targetUserID)
	reason = strings.TrimSpace(reason)
	if targetUserID == "" {
		return RoleAssignment{}, fmt.Errorf("%w: user id is required", auth.ErrInvalidInput)
	}
	if !role.Valid() {
		return RoleAssignment{}, fmt.Errorf("%w: role %q cannot be assigned", auth.ErrInvalidInput, role)
	}
	if n := utf8.RuneCountInString(reason); n == 0 || n > maxReasonLen {
		return RoleAssignment{}, fmt.Errorf("%w: reason must be 1..%d characters", auth.ErrInvalidInput, maxReasonLen)
	}
	if targetUserID == actor.UserID() {
		return RoleAssignment{}, fmt.Errorf("%w: cannot change your own role", auth.ErrForbidden)
	}
	if role.AtLeast(auth.RoleSuperAdmin) {
		if err := actor.Require(auth.PermManageAdmins); err != nil {
			return RoleAssignment{}, err
		}
	}

	current, err := s.store.GetProfile(ctx, targetUserID)
	if err != nil {
		return RoleAssignment{}, err
	}
	if current.Role.AtLeast(auth.RoleSuperAdmin) {
		if err := actor.Require(auth.PermManageAdmins); err != nil {
			return RoleAssignment{}, err
		}
	}

	assignment := RoleAssignment{
		UserID:       targetUserID,
		Role:         role,
		PreviousRole: current.Role,
		Reason:       reason,
		AssignedBy:   actor.UserID(),
		AssignedAt:   s.now(),
	}
	if _, err := s.store.SetRole(ctx, assignment); err != nil {
		return RoleAssignment{}, err
	}

	_ = audit.LogEvent(ctx, "role.assigned", map[string]any{
		"target_user_id": targetUserID,
		"role":           role.String(),
		"previous_role":  current.Role.String(),
		"reason":         reason,
	})
	if s.invalidator != nil {
		if err := s.invalidator.InvalidateUser(ctx, targetUserID); err != nil {
			obs.Logger().Warn().Err(err).Str("user_id", targetUserID).Msg("invalidate session after role change")
		}
	}
	if s.publisher != nil {
		change := realtime.Change{Table: realtime.TableProfiles, Op: "update", RowID: targetUserID, UserID: targetUserID, At: assignment.AssignedAt}
		if err := s.publisher.Publish(ctx, change); err != nil {
			obs.Logger().Warn().Err(err).Str("user_id", targetUserID).Msg("publish role change")
		}
	}
	return assignment, nil
}
