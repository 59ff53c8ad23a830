package pg

import (
	"context"
	"time"

	"plaza.social/internal/auth"
)

const banColumns = `id, user_id, admin_id, reason, expires_at, created_at`

func scanBan(row rowScanner) (auth.Ban, error) {
	var b auth.Ban
	err := row.Scan(&b.ID, &b.UserID, &b.AdminID, &b.Reason, &b.ExpiresAt, &b.CreatedAt)
	return b, err
}

func (s *Store) ActiveBans(ctx context.Context, userID string, now time.Time) ([]auth.Ban, error) {
	return s.queryBans(ctx, `
		select `+banColumns+`
		from bans
		where user_id = $1 and expires_at > $2
		order by expires_at desc
	`, userID, now)
}

func (s *Store) ListBans(ctx context.Context, userID string) ([]auth.Ban, error) {
	return s.queryBans(ctx, `
		select `+banColumns+`
		from bans
		where user_id = $1
		order by created_at desc
	`, userID)
}

func (s *Store) queryBans(ctx context.Context, query string, args ...any) ([]auth.Ban, error) {
	if s.db == nil {
		return nil, errNoDB
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []auth.Ban
	for rows.Next() {
		b, err := scanBan(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, b)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (s *Store) CreateBan(ctx context.Context, b auth.Ban) (auth.Ban, error) {
	if s.db == nil {
		return auth.Ban{}, errNoDB
	}
	created, err := scanBan(s.db.QueryRowContext(ctx, `
		insert into bans (id, user_id, admin_id, reason, expires_at, created_at)
		values ($1, $2, $3, $4, $5, $6)
		returning `+banColumns, b.ID, b.UserID, b.AdminID, b.Reason, b.ExpiresAt, b.CreatedAt))
	if err != nil {
		return auth.Ban{}, classify(err)
	}
	return created, nil
}

func (s *Store) DeleteBan(ctx context.Context, id string) (auth.Ban, error) {
	if s.db == nil {
		return auth.Ban{}, errNoDB
	}
	b, err := scanBan(s.db.QueryRowContext(ctx, `
		delete from bans where id = $1
		returning `+banColumns, id))
	if err != nil {
		return auth.Ban{}, classify(err)
	}
	return b, nil
}

func (s *Store) CountActiveBans(ctx context.Context, now time.Time) (int, error) {
	if s.db == nil {
		return 0, errNoDB
	}
	var n int
	err := s.db.QueryRowContext(ctx, `select count(distinct user_id) from bans where expires_at > $1`, now).Scan(&n)
	return n, err
}
