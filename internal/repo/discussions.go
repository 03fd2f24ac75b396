package repo

import (
	"context"
	"database/sql"

	"courtline/internal/domain"
)

const discussionCols = `id,author_id,title,content,category,visibility,region,division,created_at,updated_at`

func scanDiscussionRow(scan func(dest ...any) error) (domain.Discussion, error) {
	var d domain.Discussion
	err := scan(&d.ID, &d.AuthorID, &d.Title, &d.Content, &d.Category, &d.Visibility,
		&d.Region, &d.Division, &d.CreatedAt, &d.UpdatedAt)
	if err == sql.ErrNoRows {
		return d, ErrNotFound
	}
	return d, err
}

func (r Repo) InsertDiscussion(ctx context.Context, d domain.Discussion) error {
	_, err := r.DB.ExecContext(ctx, `INSERT INTO discussions(`+discussionCols+`) VALUES (?,?,?,?,?,?,?,?,?,?)`,
		d.ID, d.AuthorID, d.Title, d.Content, d.Category, d.Visibility, d.Region, d.Division, d.CreatedAt, d.UpdatedAt)
	return err
}

func (r Repo) GetDiscussion(ctx context.Context, id string) (domain.Discussion, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+discussionCols+` FROM discussions WHERE id=?`, id)
	return scanDiscussionRow(row.Scan)
}

// ListDiscussions returns threads visible to a member of the given
// region and division. Global threads always match.
func (r Repo) ListDiscussions(ctx context.Context, region, division string, limit, offset int) ([]domain.Discussion, error) {
	query := `SELECT ` + discussionCols + ` FROM discussions
WHERE visibility='all'
   OR (visibility='region' AND region=?)
   OR (visibility='division' AND division=?)
ORDER BY created_at DESC, id DESC`
	args := []any{region, division}
	query, args = paginate(query, args, limit, offset)
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Discussion
	for rows.Next() {
		d, err := scanDiscussionRow(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, d)
	}
	return res, rows.Err()
}

func (r Repo) DeleteDiscussion(ctx context.Context, id string) error {
	if _, err := r.DB.ExecContext(ctx, `DELETE FROM discussion_replies WHERE discussion_id=?`, id); err != nil {
		return err
	}
	res, err := r.DB.ExecContext(ctx, `DELETE FROM discussions WHERE id=?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) InsertReply(ctx context.Context, rep domain.Reply) error {
	_, err := r.DB.ExecContext(ctx, `INSERT INTO discussion_replies(id,discussion_id,author_id,content,created_at) VALUES (?,?,?,?,?)`,
		rep.ID, rep.DiscussionID, rep.AuthorID, rep.Content, rep.CreatedAt)
	return err
}

func (r Repo) ListReplies(ctx context.Context, discussionID string) ([]domain.Reply, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT id,discussion_id,author_id,content,created_at FROM discussion_replies WHERE discussion_id=? ORDER BY created_at ASC, id ASC`, discussionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Reply
	for rows.Next() {
		var rep domain.Reply
		if err := rows.Scan(&rep.ID, &rep.DiscussionID, &rep.AuthorID, &rep.Content, &rep.CreatedAt); err != nil {
			return nil, err
		}
		res = append(res, rep)
	}
	return res, rows.Err()
}
