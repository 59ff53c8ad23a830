package pg

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"plaza.social/internal/auth"
	"plaza.social/internal/moderation"
)

const reportColumns = `id, reporter_id, content_kind, content_id, coalesce(reported_user_id, ''), reason,
	status, resolution, admin_note, created_at, updated_at, resolved_at, coalesce(resolved_by, '')`

func scanReport(row rowScanner) (moderation.Report, error) {
	var (
		r          moderation.Report
		kind       string
		status     string
		resolution string
		resolvedAt sql.NullTime
	)
	if err := row.Scan(&r.ID, &r.ReporterID, &kind, &r.Content.ID, &r.ReportedUserID, &r.Reason,
		&status, &resolution, &r.AdminNote, &r.CreatedAt, &r.UpdatedAt, &resolvedAt, &r.ResolvedBy); err != nil {
		return moderation.Report{}, err
	}
	r.Content.Kind = moderation.ContentKind(kind)
	r.Status = moderation.ReportStatus(status)
	r.Resolution = moderation.Resolution(resolution)
	if resolvedAt.Valid {
		t := resolvedAt.Time
		r.ResolvedAt = &t
	}
	return r, nil
}

func (s *Store) CreateReport(ctx context.Context, r moderation.Report) (moderation.Report, error) {
	if s.db == nil {
		return moderation.Report{}, errNoDB
	}
	created, err := scanReport(s.db.QueryRowContext(ctx, `
		insert into reports (id, reporter_id, content_kind, content_id, reported_user_id, reason, status, created_at, updated_at)
		values ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		returning `+reportColumns,
		r.ID, r.ReporterID, string(r.Content.Kind), r.Content.ID, nullIfEmpty(r.ReportedUserID),
		r.Reason, string(r.Status), r.CreatedAt, r.UpdatedAt))
	if err != nil {
		return moderation.Report{}, classify(err)
	}
	return created, nil
}

func (s *Store) GetReport(ctx context.Context, id string) (moderation.Report, error) {
	if s.db == nil {
		return moderation.Report{}, errNoDB
	}
	r, err := scanReport(s.db.QueryRowContext(ctx, `
		select `+reportColumns+`
		from reports
		where id = $1
	`, id))
	if err != nil {
		return moderation.Report{}, classify(err)
	}
	return r, nil
}

func (s *Store) ListReports(ctx context.Context, f moderation.Filter) ([]moderation.Report, error) {
	if s.db == nil {
		return nil, errNoDB
	}
	var (
		where []string
		args  []any
	)
	if f.Status != "" {
		args = append(args, string(f.Status))
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}
	if f.ReportedUserID != "" {
		args = append(args, f.ReportedUserID)
		where = append(where, fmt.Sprintf("reported_user_id = $%d", len(args)))
	}
	query := `select ` + reportColumns + ` from reports`
	if len(where) > 0 {
		query += ` where ` + strings.Join(where, " and ")
	}
	args = append(args, f.Limit)
	query += fmt.Sprintf(` order by id desc limit $%d`, len(args))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []moderation.Report
	for rows.Next() {
		r, err := scanReport(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// Transition updates the status only while it still equals u.From and
// appends the action in the same transaction.
func (s *Store) Transition(ctx context.Context, u moderation.StatusUpdate, a moderation.Action) (moderation.Report, error) {
	if s.db == nil {
		return moderation.Report{}, errNoDB
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return moderation.Report{}, err
	}
	defer func() { _ = tx.Rollback() }()

	r, err := scanReport(tx.QueryRowContext(ctx, `
		update reports
		set status = $3, resolution = $4, admin_note = coalesce($5, admin_note),
		    updated_at = $6, resolved_at = $7, resolved_by = $8
		where id = $1 and status = $2
		returning `+reportColumns,
		u.ReportID, string(u.From), string(u.To), string(u.Resolution), nullIfEmpty(u.AdminNote),
		u.UpdatedAt, nullTime(u.ResolvedAt), nullIfEmpty(u.ResolvedBy)))
	if errors.Is(err, sql.ErrNoRows) {
		return moderation.Report{}, s.transitionConflict(ctx, tx, u.ReportID)
	}
	if err != nil {
		return moderation.Report{}, classify(err)
	}

	if _, err := tx.ExecContext(ctx, `
		insert into report_actions (id, report_id, action_type, admin_id, note, created_at)
		values ($1, $2, $3, $4, $5, $6)
	`, a.ID, a.ReportID, string(a.Type), a.AdminID, a.Note, a.CreatedAt); err != nil {
		return moderation.Report{}, classify(err)
	}
	if wn := u.Warning; wn != nil {
		if _, err := tx.ExecContext(ctx, `
			insert into warnings (id, user_id, report_id, admin_id, message, created_at)
			values ($1, $2, $3, $4, $5, $6)
		`, wn.ID, wn.UserID, wn.ReportID, wn.AdminID, wn.Message, wn.CreatedAt); err != nil {
			return moderation.Report{}, classify(err)
		}
	}
	if err := tx.Commit(); err != nil {
		return moderation.Report{}, err
	}
	return r, nil
}

func (s *Store) transitionConflict(ctx context.Context, tx *sql.Tx, id string) error {
	var status string
	err := tx.QueryRowContext(ctx, `select status from reports where id = $1`, id).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		return auth.ErrNotFound
	}
	if err != nil {
		return err
	}
	if moderation.ReportStatus(status).Terminal() {
		return moderation.ErrReportClosed
	}
	return fmt.Errorf("%w: report %s is now %s", auth.ErrConflict, id, status)
}

func (s *Store) ListActions(ctx context.Context, reportID string) ([]moderation.Action, error) {
	if s.db == nil {
		return nil, errNoDB
	}
	rows, err := s.db.QueryContext(ctx, `
		select id, report_id, action_type, admin_id, note, created_at
		from report_actions
		where report_id = $1
		order by id asc
	`, reportID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []moderation.Action
	for rows.Next() {
		var (
			a   moderation.Action
			typ string
		)
		if err := rows.Scan(&a.ID, &a.ReportID, &typ, &a.AdminID, &a.Note, &a.CreatedAt); err != nil {
			return nil, err
		}
		a.Type = moderation.ActionType(typ)
		result = append(result, a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (s *Store) CountReports(ctx context.Context, status moderation.ReportStatus) (int, error) {
	if s.db == nil {
		return 0, errNoDB
	}
	var n int
	err := s.db.QueryRowContext(ctx, `select count(*) from reports where status = $1`, string(status)).Scan(&n)
	return n, err
}

func (s *Store) ListWarnings(ctx context.Context, userID string) ([]moderation.Warning, error) {
	if s.db == nil {
		return nil, errNoDB
	}
	rows, err := s.db.QueryContext(ctx, `
		select id, user_id, report_id, admin_id, message, created_at
		from warnings
		where user_id = $1
		order by id desc
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []moderation.Warning
	for rows.Next() {
		var w moderation.Warning
		if err := rows.Scan(&w.ID, &w.UserID, &w.ReportID, &w.AdminID, &w.Message, &w.CreatedAt); err != nil {
			return nil, err
		}
		result = append(result, w)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}
