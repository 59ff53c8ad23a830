// Package memory is an in-process implementation of every persistence port.
// It backs service tests and local development without Postgres.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"plaza.social/internal/admin"
	"plaza.social/internal/auth"
	"plaza.social/internal/moderation"
	"plaza.social/internal/session"
)

var (
	_ session.ProfileStore    = (*Store)(nil)
	_ session.BanStore        = (*Store)(nil)
	_ moderation.Store        = (*Store)(nil)
	_ moderation.BanStore     = (*Store)(nil)
	_ moderation.ContentStore = (*Store)(nil)
	_ admin.Store             = (*Store)(nil)
)

type Store struct {
	mu          sync.RWMutex
	profiles    map[string]auth.Profile
	bans        map[string]auth.Ban
	reports     map[string]moderation.Report
	actions     []moderation.Action
	warnings    []moderation.Warning
	assignments []admin.RoleAssignment
	content     map[moderation.ContentRef]bool
	deleteErr   error
}

func New() *Store {
	return &Store{
		profiles: make(map[string]auth.Profile),
		bans:     make(map[string]auth.Ban),
		reports:  make(map[string]moderation.Report),
		content:  make(map[moderation.ContentRef]bool),
	}
}

// FailDeletes makes DeleteContent return err until called with nil.
func (s *Store) FailDeletes(err error) {
	s.mu.Lock()
	s.deleteErr = err
	s.mu.Unlock()
}

// PutContent registers a piece of content so it can be deleted.
func (s *Store) PutContent(ref moderation.ContentRef) {
	s.mu.Lock()
	s.content[ref] = true
	s.mu.Unlock()
}

// HasContent reports whether ref still exists.
func (s *Store) HasContent(ref moderation.ContentRef) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.content[ref]
}

// Assignments returns the role assignment log.
func (s *Store) Assignments() []admin.RoleAssignment {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]admin.RoleAssignment(nil), s.assignments...)
}

// --- profiles ---

func (s *Store) GetProfile(_ context.Context, userID string) (auth.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.profiles[userID]
	if !ok {
		return auth.Profile{}, auth.ErrNotFound
	}
	return p, nil
}

func (s *Store) CreateProfile(_ context.Context, p auth.Profile) (auth.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.profiles[p.UserID]; ok {
		return auth.Profile{}, auth.ErrConflict
	}
	for _, other := range s.profiles {
		if other.Username == p.Username {
			p.Username = p.Username + "_" + shortID(p.UserID)
			break
		}
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	if p.UpdatedAt.IsZero() {
		p.UpdatedAt = p.CreatedAt
	}
	s.profiles[p.UserID] = p
	return p, nil
}

func (s *Store) SetRole(_ context.Context, a admin.RoleAssignment) (auth.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.profiles[a.UserID]
	if !ok {
		return auth.Profile{}, auth.ErrNotFound
	}
	p.Role = a.Role
	p.UpdatedAt = a.AssignedAt
	s.profiles[a.UserID] = p
	s.assignments = append(s.assignments, a)
	return p, nil
}

func (s *Store) CountUsersByRole(_ context.Context, role auth.Role) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, p := range s.profiles {
		if p.Role == role {
			n++
		}
	}
	return n, nil
}

// --- bans ---

func (s *Store) ActiveBans(_ context.Context, userID string, now time.Time) ([]auth.Ban, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []auth.Ban
	for _, b := range s.bans {
		if b.UserID == userID && b.ActiveAt(now) {
			out = append(out, b)
		}
	}
	sortBans(out)
	return out, nil
}

func (s *Store) CreateBan(_ context.Context, b auth.Ban) (auth.Ban, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.profiles[b.UserID]; !ok {
		return auth.Ban{}, auth.ErrNotFound
	}
	if _, ok := s.bans[b.ID]; ok {
		return auth.Ban{}, auth.ErrConflict
	}
	s.bans[b.ID] = b
	return b, nil
}

func (s *Store) DeleteBan(_ context.Context, id string) (auth.Ban, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.bans[id]
	if !ok {
		return auth.Ban{}, auth.ErrNotFound
	}
	delete(s.bans, id)
	return b, nil
}

func (s *Store) ListBans(_ context.Context, userID string) ([]auth.Ban, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []auth.Ban
	for _, b := range s.bans {
		if b.UserID == userID {
			out = append(out, b)
		}
	}
	sortBans(out)
	return out, nil
}

func (s *Store) CountActiveBans(_ context.Context, now time.Time) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	users := make(map[string]struct{})
	for _, b := range s.bans {
		if b.ActiveAt(now) {
			users[b.UserID] = struct{}{}
		}
	}
	return len(users), nil
}

// --- content ---

func (s *Store) DeleteContent(_ context.Context, ref moderation.ContentRef) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.deleteErr != nil {
		return s.deleteErr
	}
	if !s.content[ref] {
		return auth.ErrNotFound
	}
	delete(s.content, ref)
	return nil
}

// --- reports ---

func (s *Store) CreateReport(_ context.Context, r moderation.Report) (moderation.Report, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.reports[r.ID]; ok {
		return moderation.Report{}, auth.ErrConflict
	}
	s.reports[r.ID] = r
	return r, nil
}

func (s *Store) GetReport(_ context.Context, id string) (moderation.Report, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.reports[id]
	if !ok {
		return moderation.Report{}, auth.ErrNotFound
	}
	return r, nil
}

func (s *Store) ListReports(_ context.Context, f moderation.Filter) ([]moderation.Report, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []moderation.Report
	for _, r := range s.reports {
		if f.Status != "" && r.Status != f.Status {
			continue
		}
		if f.ReportedUserID != "" && r.ReportedUserID != f.ReportedUserID {
			continue
		}
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (s *Store) Transition(_ context.Context, u moderation.StatusUpdate, a moderation.Action) (moderation.Report, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.reports[u.ReportID]
	if !ok {
		return moderation.Report{}, auth.ErrNotFound
	}
	if r.Status != u.From {
		if r.Status.Terminal() {
			return moderation.Report{}, moderation.ErrReportClosed
		}
		return moderation.Report{}, auth.ErrConflict
	}
	r.Status = u.To
	r.Resolution = u.Resolution
	if u.AdminNote != "" {
		r.AdminNote = u.AdminNote
	}
	r.UpdatedAt = u.UpdatedAt
	if u.ResolvedAt != nil {
		at := *u.ResolvedAt
		r.ResolvedAt = &at
		r.ResolvedBy = u.ResolvedBy
	}
	s.reports[r.ID] = r
	s.actions = append(s.actions, a)
	if u.Warning != nil {
		s.warnings = append(s.warnings, *u.Warning)
	}
	return r, nil
}

func (s *Store) ListWarnings(_ context.Context, userID string) ([]moderation.Warning, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []moderation.Warning
	for _, w := range s.warnings {
		if w.UserID == userID {
			out = append(out, w)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (s *Store) ListActions(_ context.Context, reportID string) ([]moderation.Action, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []moderation.Action
	for _, a := range s.actions {
		if a.ReportID == reportID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (s *Store) CountReports(_ context.Context, status moderation.ReportStatus) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, r := range s.reports {
		if r.Status == status {
			n++
		}
	}
	return n, nil
}

func sortBans(bans []auth.Ban) {
	sort.Slice(bans, func(i, j int) bool { return bans[i].CreatedAt.After(bans[j].CreatedAt) })
}

func shortID(id string) string {
	if len(id) > 6 {
		return id[len(id)-6:]
	}
	return id
}
