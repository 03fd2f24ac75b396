package repo

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"courtline/internal/domain"
)

type Repo struct {
	DB *sql.DB
}

var ErrNotFound = errors.New("not found")

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}

func nullableStringPtr(v *string) any {
	if v == nil {
		return nil
	}
	if *v == "" {
		return nil
	}
	return *v
}

func boolInt(v bool) int {
	if v {
		return 1
	}
	return 0
}

func whereClause(clauses []string) string {
	if len(clauses) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(clauses, " AND ")
}

func paginate(query string, args []any, limit, offset int) (string, []any) {
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
		if offset > 0 {
			query += " OFFSET ?"
			args = append(args, offset)
		}
	}
	return query, args
}

const userCols = `id,email,username,password_hash,full_name,phone,role,region,division,local_church,gender,is_active,created_at,updated_at`

func scanUser(row *sql.Row) (domain.User, error) {
	var u domain.User
	var active int
	err := row.Scan(&u.ID, &u.Email, &u.Username, &u.PasswordHash, &u.FullName, &u.Phone, &u.Role,
		&u.Region, &u.Division, &u.LocalChurch, &u.Gender, &active, &u.CreatedAt, &u.UpdatedAt)
	if err == sql.ErrNoRows {
		return u, ErrNotFound
	}
	u.IsActive = active != 0
	return u, err
}

func (r Repo) InsertUser(ctx context.Context, u domain.User) error {
	_, err := r.DB.ExecContext(ctx, `INSERT INTO users(`+userCols+`) VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		u.ID, u.Email, u.Username, u.PasswordHash, u.FullName, u.Phone, u.Role,
		u.Region, u.Division, u.LocalChurch, u.Gender, boolInt(u.IsActive), u.CreatedAt, u.UpdatedAt)
	return err
}

func (r Repo) GetUser(ctx context.Context, id string) (domain.User, error) {
	return scanUser(r.DB.QueryRowContext(ctx, `SELECT `+userCols+` FROM users WHERE id=?`, id))
}

func (r Repo) GetUserByEmail(ctx context.Context, email string) (domain.User, error) {
	return scanUser(r.DB.QueryRowContext(ctx, `SELECT `+userCols+` FROM users WHERE email=?`, email))
}

func (r Repo) GetUserByUsername(ctx context.Context, username string) (domain.User, error) {
	return scanUser(r.DB.QueryRowContext(ctx, `SELECT `+userCols+` FROM users WHERE username=?`, username))
}

type UserFilters struct {
	Role   string
	Region string
	Active *bool
	Limit  int
	Offset int
}

func (r Repo) ListUsers(ctx context.Context, f UserFilters) ([]domain.User, error) {
	query := `SELECT ` + userCols + ` FROM users`
	var clauses []string
	var args []any
	if f.Role != "" {
		clauses = append(clauses, "role=?")
		args = append(args, f.Role)
	}
	if f.Region != "" {
		clauses = append(clauses, "region=?")
		args = append(args, f.Region)
	}
	if f.Active != nil {
		clauses = append(clauses, "is_active=?")
		args = append(args, boolInt(*f.Active))
	}
	query += whereClause(clauses) + ` ORDER BY created_at DESC, id DESC`
	query, args = paginate(query, args, f.Limit, f.Offset)
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.User
	for rows.Next() {
		var u domain.User
		var active int
		if err := rows.Scan(&u.ID, &u.Email, &u.Username, &u.PasswordHash, &u.FullName, &u.Phone, &u.Role,
			&u.Region, &u.Division, &u.LocalChurch, &u.Gender, &active, &u.CreatedAt, &u.UpdatedAt); err != nil {
			return nil, err
		}
		u.IsActive = active != 0
		res = append(res, u)
	}
	return res, rows.Err()
}

func (r Repo) SetUserActive(ctx context.Context, id string, active bool, updatedAt string) error {
	res, err := r.DB.ExecContext(ctx, `UPDATE users SET is_active=?, updated_at=? WHERE id=?`, boolInt(active), updatedAt, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) UpdateUserRole(ctx context.Context, id, role, updatedAt string) error {
	res, err := r.DB.ExecContext(ctx, `UPDATE users SET role=?, updated_at=? WHERE id=?`, role, updatedAt, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) UpdateUserProfile(ctx context.Context, u domain.User) error {
	res, err := r.DB.ExecContext(ctx, `UPDATE users SET full_name=?, phone=?, region=?, division=?, local_church=?, updated_at=? WHERE id=?`,
		u.FullName, u.Phone, u.Region, u.Division, u.LocalChurch, u.UpdatedAt, u.ID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) UpdateUserPassword(ctx context.Context, id, passwordHash, updatedAt string) error {
	res, err := r.DB.ExecContext(ctx, `UPDATE users SET password_hash=?, updated_at=? WHERE id=?`, passwordHash, updatedAt, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) CountUsersByRole(ctx context.Context) (map[string]int, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT role, count(*) FROM users GROUP BY role`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := map[string]int{}
	for rows.Next() {
		var role string
		var count int
		if err := rows.Scan(&role, &count); err != nil {
			return nil, err
		}
		res[role] = count
	}
	return res, rows.Err()
}
