package moderation

import (
	"fmt"
	"strings"
	"time"

	"plaza.social/internal/auth"
)

// ReportStatus is the lifecycle state of a report.
type ReportStatus string

const (
	StatusPending       ReportStatus = "pending"
	StatusInvestigating ReportStatus = "investigating"
	StatusResolved      ReportStatus = "resolved"
	StatusRejected      ReportStatus = "rejected"
)

// ParseReportStatus accepts the canonical names plus "approved", which is
// the simplified workflow's name for a resolved report.
func ParseReportStatus(s string) (ReportStatus, error) {
	switch ReportStatus(strings.ToLower(strings.TrimSpace(s))) {
	case StatusPending:
		return StatusPending, nil
	case StatusInvestigating:
		return StatusInvestigating, nil
	case StatusResolved, "approved":
		return StatusResolved, nil
	case StatusRejected:
		return StatusRejected, nil
	default:
		return "", fmt.Errorf("%w: unknown report status %q", auth.ErrInvalidInput, s)
	}
}

// Terminal reports whether no further action is accepted.
func (s ReportStatus) Terminal() bool {
	return s == StatusResolved || s == StatusRejected
}

// ActionType names a moderator action on a report.
type ActionType string

const (
	ActionInvestigate   ActionType = "investigate"
	ActionApprove       ActionType = "approve"
	ActionDeleteContent ActionType = "delete_content"
	ActionWarn          ActionType = "warn"
	ActionBan           ActionType = "ban"
	ActionReject        ActionType = "reject"
)

func ParseActionType(s string) (ActionType, error) {
	a := ActionType(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := transitions[a]; !ok {
		return "", fmt.Errorf("%w: unknown action %q", auth.ErrInvalidInput, s)
	}
	return a, nil
}

// Resolution records how a resolved report was closed.
type Resolution string

const (
	ResolutionNone           Resolution = ""
	ResolutionContentRemoved Resolution = "content_removed"
	ResolutionUserBanned     Resolution = "user_banned"
	ResolutionUserWarned     Resolution = "user_warned"
)

// ContentKind is the type of reported content.
type ContentKind string

const (
	ContentPost    ContentKind = "post"
	ContentEvent   ContentKind = "event"
	ContentComment ContentKind = "comment"
)

func (k ContentKind) Valid() bool {
	switch k {
	case ContentPost, ContentEvent, ContentComment:
		return true
	}
	return false
}

// ContentRef points at a piece of reported content.
type ContentRef struct {
	Kind ContentKind `json:"kind"`
	ID   string      `json:"id"`
}

type Report struct {
	ID             string       `json:"id"`
	ReporterID     string       `json:"reporter_id"`
	Content        ContentRef   `json:"content"`
	ReportedUserID string       `json:"reported_user_id,omitempty"`
	Reason         string       `json:"reason"`
	Status         ReportStatus `json:"status"`
	Resolution     Resolution   `json:"resolution,omitempty"`
	AdminNote      string       `json:"admin_note,omitempty"`
	CreatedAt      time.Time    `json:"created_at"`
	UpdatedAt      time.Time    `json:"updated_at"`
	ResolvedAt     *time.Time   `json:"resolved_at,omitempty"`
	ResolvedBy     string       `json:"resolved_by,omitempty"`
}

// Action is an append-only audit record of a moderator action.
type Action struct {
	ID        string     `json:"id"`
	ReportID  string     `json:"report_id"`
	Type      ActionType `json:"action_type"`
	AdminID   string     `json:"admin_id"`
	Note      string     `json:"note,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

// Warning is shown to a user after a warn action on a report about them.
type Warning struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	ReportID  string    `json:"report_id"`
	AdminID   string    `json:"admin_id"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
}

type transition struct {
	from       []ReportStatus
	to         ReportStatus
	resolution Resolution
}

var transitions = map[ActionType]transition{
	ActionInvestigate:   {from: []ReportStatus{StatusPending}, to: StatusInvestigating},
	ActionApprove:       {from: []ReportStatus{StatusPending, StatusInvestigating}, to: StatusResolved, resolution: ResolutionContentRemoved},
	ActionDeleteContent: {from: []ReportStatus{StatusInvestigating}, to: StatusResolved, resolution: ResolutionContentRemoved},
	ActionWarn:          {from: []ReportStatus{StatusInvestigating}, to: StatusResolved, resolution: ResolutionUserWarned},
	ActionBan:           {from: []ReportStatus{StatusInvestigating}, to: StatusResolved, resolution: ResolutionUserBanned},
	ActionReject:        {from: []ReportStatus{StatusPending, StatusInvestigating}, to: StatusRejected},
}

// NextStatus returns the status and resolution produced by applying a to a
// report in status from.
func NextStatus(from ReportStatus, a ActionType) (ReportStatus, Resolution, error) {
	if from.Terminal() {
		return "", ResolutionNone, ErrReportClosed
	}
	t, ok := transitions[a]
	if !ok {
		return "", ResolutionNone, fmt.Errorf("%w: unknown action %q", auth.ErrInvalidInput, a)
	}
	for _, s := range t.from {
		if s == from {
			return t.to, t.resolution, nil
		}
	}
	return "", ResolutionNone, fmt.Errorf("%w: %s not allowed from %s", ErrInvalidTransition, a, from)
}

// AllowedActions lists the actions accepted from status, in a stable order.
func AllowedActions(status ReportStatus) []ActionType {
	order := []ActionType{ActionInvestigate, ActionApprove, ActionDeleteContent, ActionWarn, ActionBan, ActionReject}
	var out []ActionType
	for _, a := range order {
		if _, _, err := NextStatus(status, a); err == nil {
			out = append(out, a)
		}
	}
	return out
}
