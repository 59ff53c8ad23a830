package moderation

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"plaza.social/internal/audit"
	"plaza.social/internal/auth"
	"plaza.social/internal/ids"
	"plaza.social/internal/obs"
	"plaza.social/internal/realtime"
)

const maxBanReasonLen = 1000

// BanRequest is the input of BanService.Ban. A zero Duration uses the
// configured default.
type BanRequest struct {
	UserID   string        `json:"user_id"`
	Reason   string        `json:"reason"`
	Duration time.Duration `json:"-"`
}

// BanService creates, lifts and lists bans.
type BanService struct {
	bans     BanStore
	profiles ProfileReader
	opts     options
}

func NewBanService(bans BanStore, profiles ProfileReader, opts ...Option) *BanService {
	return &BanService{bans: bans, profiles: profiles, opts: newOptions(opts)}
}

// Ban blocks req.UserID until now+duration. Only a super admin may ban a
// super admin, and nobody may ban themselves.
func (s *BanService) Ban(ctx context.Context, actor auth.Access, req BanRequest) (auth.Ban, error) {
	if err := actor.Require(auth.PermManageBans); err != nil {
		return auth.Ban{}, err
	}
	req.UserID = strings.TrimSpace(req.UserID)
	req.Reason = strings.TrimSpace(req.Reason)
	if req.UserID == "" {
		return auth.Ban{}, fmt.Errorf("%w: user id is required", auth.ErrInvalidInput)
	}
	if req.UserID == actor.UserID() {
		return auth.Ban{}, fmt.Errorf("%w: cannot ban yourself", auth.ErrInvalidInput)
	}
	if n := utf8.RuneCountInString(req.Reason); n == 0 || n > maxBanReasonLen {
		return auth.Ban{}, fmt.Errorf("%w: reason must be 1..%d characters", auth.ErrInvalidInput, maxBanReasonLen)
	}
	if req.Duration < 0 || req.Duration > MaxBanDuration {
		return auth.Ban{}, fmt.Errorf("%w: duration must be between 0 and %s", auth.ErrInvalidInput, MaxBanDuration)
	}
	if req.Duration == 0 {
		req.Duration = s.opts.banDuration
	}

	target, err := s.profiles.GetProfile(ctx, req.UserID)
	if err != nil {
		return auth.Ban{}, err
	}
	if !actor.Role().AtLeast(target.Role) {
		return auth.Ban{}, fmt.Errorf("%w: cannot ban a user ranked above you", auth.ErrForbidden)
	}

	now := s.opts.now()
	ban, err := s.bans.CreateBan(ctx, auth.Ban{
		ID:        ids.NewAt(now),
		UserID:    req.UserID,
		AdminID:   actor.UserID(),
		Reason:    req.Reason,
		ExpiresAt: now.Add(req.Duration),
		CreatedAt: now,
	})
	if err != nil {
		return auth.Ban{}, err
	}
	_ = audit.LogEvent(ctx, "ban.created", map[string]any{
		"ban_id":     ban.ID,
		"user_id":    ban.UserID,
		"expires_at": ban.ExpiresAt,
	})
	s.publish(ctx, realtime.Change{Table: realtime.TableBans, Op: "insert", RowID: ban.ID, UserID: ban.UserID, At: now})
	return ban, nil
}

// Lift deletes a ban before it expires.
func (s *BanService) Lift(ctx context.Context, actor auth.Access, banID string) (auth.Ban, error) {
	if err := actor.Require(auth.PermManageBans); err != nil {
		return auth.Ban{}, err
	}
	banID = strings.TrimSpace(banID)
	if err := checkID("ban", banID); err != nil {
		return auth.Ban{}, err
	}
	ban, err := s.bans.DeleteBan(ctx, banID)
	if err != nil {
		return auth.Ban{}, err
	}
	_ = audit.LogEvent(ctx, "ban.lifted", map[string]any{"ban_id": ban.ID, "user_id": ban.UserID})
	s.publish(ctx, realtime.Change{Table: realtime.TableBans, Op: "delete", RowID: ban.ID, UserID: ban.UserID, At: s.opts.now()})
	return ban, nil
}

// ListForUser returns every ban of userID, including expired ones.
func (s *BanService) ListForUser(ctx context.Context, actor auth.Access, userID string) ([]auth.Ban, error) {
	if err := actor.Require(auth.PermManageBans); err != nil {
		return nil, err
	}
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, fmt.Errorf("%w: user id is required", auth.ErrInvalidInput)
	}
	return s.bans.ListBans(ctx, userID)
}

func (s *BanService) publish(ctx context.Context, c realtime.Change) {
	if s.opts.publisher == nil {
		return
	}
	if err := s.opts.publisher.Publish(ctx, c); err != nil {
		obs.Logger().Warn().Err(err).Str("table", c.Table).Str("row_id", c.RowID).Msg("publish change")
	}
}
