package admin

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"plaza.social/internal/auth"
	"plaza.social/internal/moderation"
)

// DashboardStats is the joined result of the dashboard counts.
type DashboardStats struct {
	PendingReports       int       `json:"pending_reports"`
	InvestigatingReports int       `json:"investigating_reports"`
	ActiveBans           int       `json:"active_bans"`
	Admins               int       `json:"admins"`
	SuperAdmins          int       `json:"super_admins"`
	GeneratedAt          time.Time `json:"generated_at"`
}

// Dashboard issues the independent counts concurrently and returns once all
// of them completed. The first failure cancels the rest.
func (s *Service) Dashboard(ctx context.Context, actor auth.Access) (DashboardStats, error) {
	if err := actor.Require(auth.PermReadDashboard); err != nil {
		return DashboardStats{}, err
	}
	now := s.now()
	var stats DashboardStats
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		stats.PendingReports, err = s.store.CountReports(gctx, moderation.StatusPending)
		return err
	})
	g.Go(func() (err error) {
		stats.InvestigatingReports, err = s.store.CountReports(gctx, moderation.StatusInvestigating)
		return err
	})
	g.Go(func() (err error) {
		stats.ActiveBans, err = s.store.CountActiveBans(gctx, now)
		return err
	})
	g.Go(func() (err error) {
		stats.Admins, err = s.store.CountUsersByRole(gctx, auth.RoleAdmin)
		return err
	})
	g.Go(func() (err error) {
		stats.SuperAdmins, err = s.store.CountUsersByRole(gctx, auth.RoleSuperAdmin)
		return err
	})
	if err := g.Wait(); err != nil {
		return DashboardStats{}, err
	}
	stats.GeneratedAt = now
	return stats, nil
}
