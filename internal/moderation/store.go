package moderation

import (
	"context"
	"time"

	"plaza.social/internal/auth"
)

// Filter narrows ListReports.
type Filter struct {
	Status         ReportStatus
	ReportedUserID string
	Limit          int
}

// StatusUpdate is a conditional status write: it applies only while the
// report is still in From.
type StatusUpdate struct {
	ReportID   string
	From       ReportStatus
	To         ReportStatus
	Resolution Resolution
	AdminNote  string
	ResolvedBy string
	ResolvedAt *time.Time
	UpdatedAt  time.Time
	// Warning, when set, is stored in the same transaction as the status.
	Warning    *Warning
}

// Store persists reports and their action log. Transition must apply the
// status update and append the action atomically, returning ErrReportClosed
// or auth.ErrConflict when the report is no longer in update.From.
type Store interface {
	CreateReport(ctx context.Context, r Report) (Report, error)
	GetReport(ctx context.Context, id string) (Report, error)
	ListReports(ctx context.Context, f Filter) ([]Report, error)
	Transition(ctx context.Context, update StatusUpdate, action Action) (Report, error)
	ListActions(ctx context.Context, reportID string) ([]Action, error)
	ListWarnings(ctx context.Context, userID string) ([]Warning, error)
}

// ContentStore deletes reported content.
type ContentStore interface {
	DeleteContent(ctx context.Context, ref ContentRef) error
}

// BanStore persists bans.
type BanStore interface {
	CreateBan(ctx context.Context, b auth.Ban) (auth.Ban, error)
	DeleteBan(ctx context.Context, id string) (auth.Ban, error)
	ListBans(ctx context.Context, userID string) ([]auth.Ban, error)
}

// ProfileReader resolves the role of a ban target.
type ProfileReader interface {
	GetProfile(ctx context.Context, userID string) (auth.Profile, error)
}

// Banner creates bans on behalf of the workflow.
type Banner interface {
	Ban(ctx context.Context, actor auth.Access, req BanRequest) (auth.Ban, error)
}
