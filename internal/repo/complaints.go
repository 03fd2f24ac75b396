package repo

import (
	"context"
	"database/sql"

	"courtline/internal/domain"
)

const complaintCols = `id,author_id,subject,description,category,status,resolution,handled_by_id,created_at,updated_at`

func scanComplaintRow(scan func(dest ...any) error) (domain.Complaint, error) {
	var c domain.Complaint
	var handledBy sql.NullString
	err := scan(&c.ID, &c.AuthorID, &c.Subject, &c.Description, &c.Category, &c.Status,
		&c.Resolution, &handledBy, &c.CreatedAt, &c.UpdatedAt)
	if err == sql.ErrNoRows {
		return c, ErrNotFound
	}
	if err != nil {
		return c, err
	}
	if handledBy.Valid {
		c.HandledByID = &handledBy.String
	}
	return c, nil
}

func (r Repo) InsertComplaint(ctx context.Context, c domain.Complaint) error {
	_, err := r.DB.ExecContext(ctx, `INSERT INTO complaints(`+complaintCols+`) VALUES (?,?,?,?,?,?,?,?,?,?)`,
		c.ID, c.AuthorID, c.Subject, c.Description, c.Category, c.Status,
		c.Resolution, nullableStringPtr(c.HandledByID), c.CreatedAt, c.UpdatedAt)
	return err
}

func (r Repo) GetComplaint(ctx context.Context, id string) (domain.Complaint, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+complaintCols+` FROM complaints WHERE id=?`, id)
	return scanComplaintRow(row.Scan)
}

type ComplaintFilters struct {
	AuthorID string
	Status   string
	Limit    int
	Offset   int
}

func (r Repo) ListComplaints(ctx context.Context, f ComplaintFilters) ([]domain.Complaint, error) {
	var clauses []string
	var args []any
	if f.AuthorID != "" {
		clauses = append(clauses, "author_id=?")
		args = append(args, f.AuthorID)
	}
	if f.Status != "" {
		clauses = append(clauses, "status=?")
		args = append(args, f.Status)
	}
	query := `SELECT ` + complaintCols + ` FROM complaints` + whereClause(clauses) + ` ORDER BY created_at DESC, id DESC`
	query, args = paginate(query, args, f.Limit, f.Offset)
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Complaint
	for rows.Next() {
		c, err := scanComplaintRow(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, c)
	}
	return res, rows.Err()
}

func (r Repo) UpdateComplaintStatus(ctx context.Context, id, status, resolution, handledBy, updatedAt string) error {
	res, err := r.DB.ExecContext(ctx, `UPDATE complaints SET status=?, resolution=?, handled_by_id=?, updated_at=? WHERE id=?`,
		status, resolution, nullable(handledBy), updatedAt, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
