package repo

import (
	"context"
	"database/sql"

	"courtline/internal/domain"
)

const checkInCols = `id,application_id,scheduled_date,completed_date,status,meeting_format,couple_feedback,counselor_notes,issues_raised,action_items,conducted_by_id,created_at,updated_at`

func scanCheckInRow(scan func(dest ...any) error) (domain.CheckIn, error) {
	var c domain.CheckIn
	var completed, conductedBy sql.NullString
	err := scan(&c.ID, &c.ApplicationID, &c.ScheduledDate, &completed, &c.Status, &c.MeetingFormat,
		&c.CoupleFeedback, &c.CounselorNotes, &c.IssuesRaised, &c.ActionItems,
		&conductedBy, &c.CreatedAt, &c.UpdatedAt)
	if err == sql.ErrNoRows {
		return c, ErrNotFound
	}
	if err != nil {
		return c, err
	}
	if completed.Valid {
		c.CompletedDate = &completed.String
	}
	if conductedBy.Valid {
		c.ConductedByID = &conductedBy.String
	}
	return c, nil
}

func (r Repo) InsertCheckInTx(ctx context.Context, tx *sql.Tx, c domain.CheckIn) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO check_ins(`+checkInCols+`) VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		c.ID, c.ApplicationID, c.ScheduledDate, nullableStringPtr(c.CompletedDate), c.Status, c.MeetingFormat,
		c.CoupleFeedback, c.CounselorNotes, c.IssuesRaised, c.ActionItems,
		nullableStringPtr(c.ConductedByID), c.CreatedAt, c.UpdatedAt)
	return err
}

func (r Repo) GetCheckIn(ctx context.Context, id string) (domain.CheckIn, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+checkInCols+` FROM check_ins WHERE id=?`, id)
	return scanCheckInRow(row.Scan)
}

func (r Repo) ListCheckIns(ctx context.Context, applicationID string) ([]domain.CheckIn, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT `+checkInCols+` FROM check_ins WHERE application_id=? ORDER BY scheduled_date ASC, id ASC`, applicationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.CheckIn
	for rows.Next() {
		c, err := scanCheckInRow(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, c)
	}
	return res, rows.Err()
}

func (r Repo) CountCheckIns(ctx context.Context, applicationID, status string) (int, error) {
	clauses := []string{"application_id=?"}
	args := []any{applicationID}
	if status != "" {
		clauses = append(clauses, "status=?")
		args = append(args, status)
	}
	var n int
	err := r.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM check_ins`+whereClause(clauses), args...).Scan(&n)
	return n, err
}

func (r Repo) UpdateCheckIn(ctx context.Context, c domain.CheckIn) error {
	res, err := r.DB.ExecContext(ctx, `UPDATE check_ins SET scheduled_date=?, completed_date=?, status=?, meeting_format=?, couple_feedback=?, counselor_notes=?, issues_raised=?, action_items=?, conducted_by_id=?, updated_at=? WHERE id=?`,
		c.ScheduledDate, nullableStringPtr(c.CompletedDate), c.Status, c.MeetingFormat,
		c.CoupleFeedback, c.CounselorNotes, c.IssuesRaised, c.ActionItems,
		nullableStringPtr(c.ConductedByID), c.UpdatedAt, c.ID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// UpcomingCheckIn pairs a scheduled check-in with the application it
// belongs to, for the dashboard list.
type UpcomingCheckIn struct {
	domain.CheckIn
	ApplicationNumber string `json:"application_number"`
	ApplicantName     string `json:"applicant_name"`
}

// UpcomingCheckInFilters narrow the dashboard query. Zero values mean
// no constraint.
type UpcomingCheckInFilters struct {
	From            string
	Until           string
	ApplicantID     string
	ApplicantRegion string
}

func (r Repo) ListUpcomingCheckIns(ctx context.Context, f UpcomingCheckInFilters) ([]UpcomingCheckIn, error) {
	clauses := []string{"c.status='scheduled'"}
	var args []any
	if f.From != "" {
		clauses = append(clauses, "c.scheduled_date >= ?")
		args = append(args, f.From)
	}
	if f.Until != "" {
		clauses = append(clauses, "c.scheduled_date <= ?")
		args = append(args, f.Until)
	}
	if f.ApplicantID != "" {
		clauses = append(clauses, "(a.applicant_id = ? OR a.partner_id = ?)")
		args = append(args, f.ApplicantID, f.ApplicantID)
	}
	if f.ApplicantRegion != "" {
		clauses = append(clauses, "u.region = ?")
		args = append(args, f.ApplicantRegion)
	}
	query := `SELECT c.id,c.application_id,c.scheduled_date,c.completed_date,c.status,c.meeting_format,c.couple_feedback,c.counselor_notes,c.issues_raised,c.action_items,c.conducted_by_id,c.created_at,c.updated_at,a.application_number,u.full_name
	FROM check_ins c
	JOIN applications a ON a.id = c.application_id
	JOIN users u ON u.id = a.applicant_id` +
		whereClause(clauses) + ` ORDER BY c.scheduled_date ASC, c.id ASC`
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []UpcomingCheckIn
	for rows.Next() {
		var u UpcomingCheckIn
		var completed, conductedBy sql.NullString
		if err := rows.Scan(&u.ID, &u.ApplicationID, &u.ScheduledDate, &completed, &u.Status, &u.MeetingFormat,
			&u.CoupleFeedback, &u.CounselorNotes, &u.IssuesRaised, &u.ActionItems,
			&conductedBy, &u.CreatedAt, &u.UpdatedAt, &u.ApplicationNumber, &u.ApplicantName); err != nil {
			return nil, err
		}
		if completed.Valid {
			u.CompletedDate = &completed.String
		}
		if conductedBy.Valid {
			u.ConductedByID = &conductedBy.String
		}
		res = append(res, u)
	}
	return res, rows.Err()
}
