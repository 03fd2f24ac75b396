package repo

import (
	"context"
	"database/sql"

	"courtline/internal/domain"
)

const sessionCols = `id,user_id,token_hash,created_at,last_activity`

func scanSessionRow(scan func(dest ...any) error) (domain.Session, error) {
	var s domain.Session
	err := scan(&s.ID, &s.UserID, &s.TokenHash, &s.CreatedAt, &s.LastActivity)
	if err == sql.ErrNoRows {
		return s, ErrNotFound
	}
	return s, err
}

func (r Repo) InsertSession(ctx context.Context, s domain.Session) error {
	_, err := r.DB.ExecContext(ctx, `INSERT INTO sessions(`+sessionCols+`) VALUES (?,?,?,?,?)`,
		s.ID, s.UserID, s.TokenHash, s.CreatedAt, s.LastActivity)
	return err
}

func (r Repo) GetSessionByTokenHash(ctx context.Context, tokenHash string) (domain.Session, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+sessionCols+` FROM sessions WHERE token_hash=?`, tokenHash)
	return scanSessionRow(row.Scan)
}

// TouchSession advances last_activity. A stale read back is fine; the
// monitor only needs the value to move forward.
func (r Repo) TouchSession(ctx context.Context, id, lastActivity string) error {
	_, err := r.DB.ExecContext(ctx, `UPDATE sessions SET last_activity=? WHERE id=?`, lastActivity, id)
	return err
}

func (r Repo) DeleteSession(ctx context.Context, id string) error {
	res, err := r.DB.ExecContext(ctx, `DELETE FROM sessions WHERE id=?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) DeleteSessionsForUser(ctx context.Context, userID string) error {
	_, err := r.DB.ExecContext(ctx, `DELETE FROM sessions WHERE user_id=?`, userID)
	return err
}

// IdleSessions returns sessions whose last_activity is at or before
// the cutoff timestamp.
func (r Repo) IdleSessions(ctx context.Context, cutoff string) ([]domain.Session, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT `+sessionCols+` FROM sessions WHERE last_activity <= ?`, cutoff)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Session
	for rows.Next() {
		s, err := scanSessionRow(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, s)
	}
	return res, rows.Err()
}

func (r Repo) CountSessions(ctx context.Context) (int, error) {
	var n int
	err := r.DB.QueryRowContext(ctx, `SELECT count(*) FROM sessions`).Scan(&n)
	return n, err
}

func (r Repo) UpsertLoginMarker(ctx context.Context, m domain.LoginMarker) error {
	_, err := r.DB.ExecContext(ctx, `INSERT INTO login_markers(user_id,return_path,logout_reason,created_at) VALUES (?,?,?,?)
ON CONFLICT(user_id) DO UPDATE SET return_path=excluded.return_path, logout_reason=excluded.logout_reason, created_at=excluded.created_at`,
		m.UserID, m.ReturnPath, m.LogoutReason, m.CreatedAt)
	return err
}

// ConsumeLoginMarker reads and deletes the marker for a user. ErrNotFound
// means there is nothing to resume.
func (r Repo) ConsumeLoginMarker(ctx context.Context, userID string) (domain.LoginMarker, error) {
	var m domain.LoginMarker
	err := r.DB.QueryRowContext(ctx, `SELECT user_id,return_path,logout_reason,created_at FROM login_markers WHERE user_id=?`, userID).
		Scan(&m.UserID, &m.ReturnPath, &m.LogoutReason, &m.CreatedAt)
	if err == sql.ErrNoRows {
		return m, ErrNotFound
	}
	if err != nil {
		return m, err
	}
	_, err = r.DB.ExecContext(ctx, `DELETE FROM login_markers WHERE user_id=?`, userID)
	return m, err
}
