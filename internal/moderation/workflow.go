package moderation

import (
	"context"
	"errors"
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

const (
	maxReasonLen = 500
	maxNoteLen   = 2000
	defaultLimit = 50
	maxListLimit = 200
)

// Workflow drives the report lifecycle.
type Workflow struct {
	store   Store
	content ContentStore
	banner  Banner
	opts    options
}

func NewWorkflow(store Store, content ContentStore, banner Banner, opts ...Option) *Workflow {
	return &Workflow{store: store, content: content, banner: banner, opts: newOptions(opts)}
}

// NewReport is the input of CreateReport.
type NewReport struct {
	Content        ContentRef `json:"content"`
	ReportedUserID string     `json:"reported_user_id"`
	Reason         string     `json:"reason"`
}

// Command is a moderator action request.
type Command struct {
	Action      ActionType
	Note        string
	BanDuration time.Duration
}

// Result is the outcome of an applied action.
type Result struct {
	Report  Report    `json:"report"`
	Action  Action    `json:"action"`
	Ban     *auth.Ban `json:"ban,omitempty"`
	Warning *Warning  `json:"warning,omitempty"`
}

// CreateReport files a report against a piece of content.
func (w *Workflow) CreateReport(ctx context.Context, actor auth.Access, in NewReport) (Report, error) {
	if err := actor.Require(auth.PermCreateReports); err != nil {
		return Report{}, err
	}
	in.Content.ID = strings.TrimSpace(in.Content.ID)
	in.ReportedUserID = strings.TrimSpace(in.ReportedUserID)
	in.Reason = strings.TrimSpace(in.Reason)
	if !in.Content.Kind.Valid() {
		return Report{}, fmt.Errorf("%w: unknown content kind %q", auth.ErrInvalidInput, in.Content.Kind)
	}
	if in.Content.ID == "" {
		return Report{}, fmt.Errorf("%w: content id is required", auth.ErrInvalidInput)
	}
	if n := utf8.RuneCountInString(in.Reason); n == 0 || n > maxReasonLen {
		return Report{}, fmt.Errorf("%w: reason must be 1..%d characters", auth.ErrInvalidInput, maxReasonLen)
	}
	if in.ReportedUserID != "" && in.ReportedUserID == actor.UserID() {
		return Report{}, fmt.Errorf("%w: cannot report your own content", auth.ErrInvalidInput)
	}

	now := w.opts.now()
	r, err := w.store.CreateReport(ctx, Report{
		ID:             ids.NewAt(now),
		ReporterID:     actor.UserID(),
		Content:        in.Content,
		ReportedUserID: in.ReportedUserID,
		Reason:         in.Reason,
		Status:         StatusPending,
		CreatedAt:      now,
		UpdatedAt:      now,
	})
	if err != nil {
		return Report{}, err
	}
	w.publish(ctx, realtime.Change{Table: realtime.TableReports, Op: "insert", RowID: r.ID, UserID: r.ReportedUserID, At: now})
	return r, nil
}

// ListReports returns reports newest first.
func (w *Workflow) ListReports(ctx context.Context, actor auth.Access, f Filter) ([]Report, error) {
	if err := actor.Require(auth.PermReadReports); err != nil {
		return nil, err
	}
	if f.Limit <= 0 {
		f.Limit = defaultLimit
	}
	if f.Limit > maxListLimit {
		f.Limit = maxListLimit
	}
	return w.store.ListReports(ctx, f)
}

func (w *Workflow) GetReport(ctx context.Context, actor auth.Access, id string) (Report, error) {
	if err := actor.Require(auth.PermReadReports); err != nil {
		return Report{}, err
	}
	id = strings.TrimSpace(id)
	if err := checkID("report", id); err != nil {
		return Report{}, err
	}
	return w.store.GetReport(ctx, id)
}

// ListActions returns the action log of a report, oldest first.
func (w *Workflow) ListActions(ctx context.Context, actor auth.Access, reportID string) ([]Action, error) {
	if err := actor.Require(auth.PermReadReports); err != nil {
		return nil, err
	}
	reportID = strings.TrimSpace(reportID)
	if err := checkID("report", reportID); err != nil {
		return nil, err
	}
	if _, err := w.store.GetReport(ctx, reportID); err != nil {
		return nil, err
	}
	return w.store.ListActions(ctx, reportID)
}

// checkID rejects ids that were not minted by ids.New, so malformed path
// segments never reach the store.
func checkID(kind, id string) error {
	if id == "" {
		return fmt.Errorf("%w: %s id is required", auth.ErrInvalidInput, kind)
	}
	if !ids.Valid(id) {
		return fmt.Errorf("%w: %s %q", auth.ErrNotFound, kind, id)
	}
	return nil
}

// Apply runs a moderator action. Permission is checked before any store
// call. Side effects (content deletion, ban creation) run before the status
// write; if they fail the report keeps its prior status.
func (w *Workflow) Apply(ctx context.Context, actor auth.Access, reportID string, cmd Command) (Result, error) {
	res, err := w.apply(ctx, actor, reportID, cmd)
	obs.ObserveTransition(string(cmd.Action), transitionResult(err))
	return res, err
}

func (w *Workflow) apply(ctx context.Context, actor auth.Access, reportID string, cmd Command) (Result, error) {
	if err := actor.Require(auth.PermWriteReports); err != nil {
		return Result{}, err
	}
	if _, ok := transitions[cmd.Action]; !ok {
		return Result{}, fmt.Errorf("%w: unknown action %q", auth.ErrInvalidInput, cmd.Action)
	}
	cmd.Note = strings.TrimSpace(cmd.Note)
	if utf8.RuneCountInString(cmd.Note) > maxNoteLen {
		return Result{}, fmt.Errorf("%w: note exceeds %d characters", auth.ErrInvalidInput, maxNoteLen)
	}
	reportID = strings.TrimSpace(reportID)
	if err := checkID("report", reportID); err != nil {
		return Result{}, err
	}

	report, err := w.store.GetReport(ctx, reportID)
	if err != nil {
		return Result{}, err
	}
	to, resolution, err := NextStatus(report.Status, cmd.Action)
	if err != nil {
		return Result{}, err
	}

	now := w.opts.now()
	var (
		ban     *auth.Ban
		warning *Warning
	)
	switch cmd.Action {
	case ActionWarn:
		if report.ReportedUserID == "" {
			return Result{}, fmt.Errorf("%w: report has no reported user", auth.ErrInvalidInput)
		}
		msg := cmd.Note
		if msg == "" {
			msg = fmt.Sprintf("your %s was reported: %s", report.Content.Kind, report.Reason)
		}
		warning = &Warning{
			ID:        ids.NewAt(now),
			UserID:    report.ReportedUserID,
			ReportID:  report.ID,
			AdminID:   actor.UserID(),
			Message:   msg,
			CreatedAt: now,
		}
	case ActionApprove, ActionDeleteContent:
		if err := w.content.DeleteContent(ctx, report.Content); err != nil {
			return Result{}, fmt.Errorf("delete reported %s %s: %w", report.Content.Kind, report.Content.ID, err)
		}
	case ActionBan:
		if report.ReportedUserID == "" {
			return Result{}, fmt.Errorf("%w: report has no reported user", auth.ErrInvalidInput)
		}
		reason := cmd.Note
		if reason == "" {
			reason = report.Reason
		}
		b, err := w.banner.Ban(ctx, actor, BanRequest{
			UserID:   report.ReportedUserID,
			Reason:   fmt.Sprintf("report %s: %s", report.ID, reason),
			Duration: cmd.BanDuration,
		})
		if err != nil {
			return Result{}, fmt.Errorf("ban reported user: %w", err)
		}
		ban = &b
	}

	update := StatusUpdate{
		ReportID:   report.ID,
		From:       report.Status,
		To:         to,
		Resolution: resolution,
		AdminNote:  cmd.Note,
		UpdatedAt:  now,
		Warning:    warning,
	}
	if to.Terminal() {
		update.ResolvedAt = &now
		update.ResolvedBy = actor.UserID()
	}
	action := Action{
		ID:        ids.NewAt(now),
		ReportID:  report.ID,
		Type:      cmd.Action,
		AdminID:   actor.UserID(),
		Note:      cmd.Note,
		CreatedAt: now,
	}
	updated, err := w.store.Transition(ctx, update, action)
	if err != nil {
		return Result{}, err
	}

	_ = audit.LogEvent(ctx, "report.transition", map[string]any{
		"report_id": report.ID,
		"action":    string(cmd.Action),
		"from":      string(report.Status),
		"to":        string(to),
		"admin_id":  actor.UserID(),
	})
	w.publish(ctx, realtime.Change{Table: realtime.TableReports, Op: "update", RowID: report.ID, UserID: report.ReportedUserID, At: now})
	return Result{Report: updated, Action: action, Ban: ban, Warning: warning}, nil
}

// ListWarnings returns the warnings issued to userID, newest first. Users may
// read their own; anyone else needs read:reports.
func (w *Workflow) ListWarnings(ctx context.Context, actor auth.Access, userID string) ([]Warning, error) {
	userID = strings.TrimSpace(userID)
	if actor.UserID() == "" {
		return nil, auth.ErrUnauthenticated
	}
	if userID == "" {
		return nil, fmt.Errorf("%w: user id is required", auth.ErrInvalidInput)
	}
	if userID != actor.UserID() {
		if err := actor.Require(auth.PermReadReports); err != nil {
			return nil, err
		}
	}
	return w.store.ListWarnings(ctx, userID)
}

func (w *Workflow) publish(ctx context.Context, c realtime.Change) {
	if w.opts.publisher == nil {
		return
	}
	if err := w.opts.publisher.Publish(ctx, c); err != nil {
		obs.Logger().Warn().Err(err).Str("table", c.Table).Str("row_id", c.RowID).Msg("publish change")
	}
}

func transitionResult(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, auth.ErrForbidden), errors.Is(err, auth.ErrUnauthenticated):
		return "denied"
	case errors.Is(err, ErrReportClosed), errors.Is(err, ErrInvalidTransition), errors.Is(err, auth.ErrConflict):
		return "rejected"
	default:
		return "error"
	}
}
