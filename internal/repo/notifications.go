package repo

import (
	"context"
	"database/sql"

	"courtline/internal/domain"
)

const notificationCols = `id,user_id,application_id,title,message,notification_type,read,read_at,created_at`

func scanNotificationRow(scan func(dest ...any) error) (domain.Notification, error) {
	var n domain.Notification
	var appID, readAt sql.NullString
	var read int
	err := scan(&n.ID, &n.UserID, &appID, &n.Title, &n.Message, &n.Type, &read, &readAt, &n.CreatedAt)
	if err == sql.ErrNoRows {
		return n, ErrNotFound
	}
	if err != nil {
		return n, err
	}
	n.Read = read != 0
	if appID.Valid {
		n.ApplicationID = &appID.String
	}
	if readAt.Valid {
		n.ReadAt = &readAt.String
	}
	return n, nil
}

func (r Repo) InsertNotification(ctx context.Context, n domain.Notification) error {
	_, err := r.DB.ExecContext(ctx, `INSERT INTO notifications(`+notificationCols+`) VALUES (?,?,?,?,?,?,?,?,?)`,
		n.ID, n.UserID, nullableStringPtr(n.ApplicationID), n.Title, n.Message, n.Type,
		boolInt(n.Read), nullableStringPtr(n.ReadAt), n.CreatedAt)
	return err
}

func (r Repo) InsertNotificationTx(ctx context.Context, tx *sql.Tx, n domain.Notification) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO notifications(`+notificationCols+`) VALUES (?,?,?,?,?,?,?,?,?)`,
		n.ID, n.UserID, nullableStringPtr(n.ApplicationID), n.Title, n.Message, n.Type,
		boolInt(n.Read), nullableStringPtr(n.ReadAt), n.CreatedAt)
	return err
}

func (r Repo) ListNotifications(ctx context.Context, userID string, unreadOnly bool, limit, offset int) ([]domain.Notification, error) {
	clauses := []string{"user_id=?"}
	args := []any{userID}
	if unreadOnly {
		clauses = append(clauses, "read=0")
	}
	query := `SELECT ` + notificationCols + ` FROM notifications` + whereClause(clauses) + ` ORDER BY created_at DESC, id DESC`
	query, args = paginate(query, args, limit, offset)
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Notification
	for rows.Next() {
		n, err := scanNotificationRow(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, n)
	}
	return res, rows.Err()
}

func (r Repo) CountUnreadNotifications(ctx context.Context, userID string) (int, error) {
	var n int
	err := r.DB.QueryRowContext(ctx, `SELECT count(*) FROM notifications WHERE user_id=? AND read=0`, userID).Scan(&n)
	return n, err
}

// MarkNotificationRead only touches rows owned by userID.
func (r Repo) MarkNotificationRead(ctx context.Context, id, userID, readAt string) error {
	res, err := r.DB.ExecContext(ctx, `UPDATE notifications SET read=1, read_at=? WHERE id=? AND user_id=? AND read=0`, readAt, id, userID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) DeleteNotification(ctx context.Context, id, userID string) error {
	res, err := r.DB.ExecContext(ctx, `DELETE FROM notifications WHERE id=? AND user_id=?`, id, userID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) MarkAllNotificationsRead(ctx context.Context, userID, readAt string) (int64, error) {
	res, err := r.DB.ExecContext(ctx, `UPDATE notifications SET read=1, read_at=? WHERE user_id=? AND read=0`, readAt, userID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
