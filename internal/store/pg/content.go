package pg

import (
	"context"
	"fmt"

	"plaza.social/internal/auth"
	"plaza.social/internal/moderation"
)

var contentTables = map[moderation.ContentKind]string{
	moderation.ContentPost:    "posts",
	moderation.ContentEvent:   "events",
	moderation.ContentComment: "comments",
}

// DeleteContent removes the referenced row. A missing row is reported as
// auth.ErrNotFound so the report stays in its prior state.
func (s *Store) DeleteContent(ctx context.Context, ref moderation.ContentRef) error {
	if s.db == nil {
		return errNoDB
	}
	table, ok := contentTables[ref.Kind]
	if !ok {
		return fmt.Errorf("%w: unknown content kind %q", auth.ErrInvalidInput, ref.Kind)
	}
	res, err := s.db.ExecContext(ctx, fmt.Sprintf(`delete from %s where id = $1`, table), ref.ID)
	if err != nil {
		return classify(err)
	}
	aff, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if aff == 0 {
		return auth.ErrNotFound
	}
	return nil
}
