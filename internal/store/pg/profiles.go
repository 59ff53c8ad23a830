package pg

import (
	"context"

	"plaza.social/internal/admin"
	"plaza.social/internal/auth"
)

const profileColumns = `user_id, username, email, role, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProfile(row rowScanner) (auth.Profile, error) {
	var (
		p    auth.Profile
		role string
	)
	if err := row.Scan(&p.UserID, &p.Username, &p.Email, &role, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return auth.Profile{}, err
	}
	// Unrecognised roles stay RoleUnknown and carry no permissions.
	p.Role = auth.ParseRole(role)
	return p, nil
}

func (s *Store) GetProfile(ctx context.Context, userID string) (auth.Profile, error) {
	if s.db == nil {
		return auth.Profile{}, errNoDB
	}
	p, err := scanProfile(s.db.QueryRowContext(ctx, `
		select `+profileColumns+`
		from profiles
		where user_id = $1
	`, userID))
	if err != nil {
		return auth.Profile{}, classify(err)
	}
	return p, nil
}

func (s *Store) CreateProfile(ctx context.Context, p auth.Profile) (auth.Profile, error) {
	if s.db == nil {
		return auth.Profile{}, errNoDB
	}
	// A taken username gets the user id suffix rather than failing the bootstrap.
	created, err := scanProfile(s.db.QueryRowContext(ctx, `
		insert into profiles (user_id, username, email, role)
		values ($1,
		        case when exists (select 1 from profiles where username = $2) then $2 || '_' || right($1, 6) else $2 end,
		        $3, $4)
		returning `+profileColumns, p.UserID, p.Username, p.Email, p.Role.String()))
	if err != nil {
		return auth.Profile{}, classify(err)
	}
	return created, nil
}

func (s *Store) SetRole(ctx context.Context, a admin.RoleAssignment) (auth.Profile, error) {
	if s.db == nil {
		return auth.Profile{}, errNoDB
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return auth.Profile{}, err
	}
	defer func() { _ = tx.Rollback() }()

	p, err := scanProfile(tx.QueryRowContext(ctx, `
		update profiles set role = $2, updated_at = $3
		where user_id = $1
		returning `+profileColumns, a.UserID, a.Role.String(), a.AssignedAt))
	if err != nil {
		return auth.Profile{}, classify(err)
	}
	if _, err := tx.ExecContext(ctx, `
		insert into role_assignments (user_id, role, previous_role, reason, assigned_by, assigned_at)
		values ($1, $2, $3, $4, $5, $6)
	`, a.UserID, a.Role.String(), a.PreviousRole.String(), a.Reason, a.AssignedBy, a.AssignedAt); err != nil {
		return auth.Profile{}, classify(err)
	}
	if err := tx.Commit(); err != nil {
		return auth.Profile{}, err
	}
	return p, nil
}

func (s *Store) CountUsersByRole(ctx context.Context, role auth.Role) (int, error) {
	if s.db == nil {
		return 0, errNoDB
	}
	var n int
	err := s.db.QueryRowContext(ctx, `select count(*) from profiles where role = $1`, role.String()).Scan(&n)
	return n, err
}
