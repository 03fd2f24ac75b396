package repo

import (
	"context"
	"database/sql"

	"courtline/internal/domain"
)

const meetingCols = `id,application_id,title,description,scheduled_date,duration_minutes,location,meeting_type,meeting_format,status,attendees,notes,outcome,organized_by_id,created_at,updated_at`

func scanMeetingRow(scan func(dest ...any) error) (domain.Meeting, error) {
	var m domain.Meeting
	var organizedBy sql.NullString
	err := scan(&m.ID, &m.ApplicationID, &m.Title, &m.Description, &m.ScheduledDate, &m.DurationMinutes,
		&m.Location, &m.MeetingType, &m.MeetingFormat, &m.Status, &m.Attendees, &m.Notes, &m.Outcome,
		&organizedBy, &m.CreatedAt, &m.UpdatedAt)
	if err == sql.ErrNoRows {
		return m, ErrNotFound
	}
	if err != nil {
		return m, err
	}
	if organizedBy.Valid {
		m.OrganizedByID = &organizedBy.String
	}
	return m, nil
}

func (r Repo) InsertMeeting(ctx context.Context, m domain.Meeting) error {
	_, err := r.DB.ExecContext(ctx, `INSERT INTO meetings(`+meetingCols+`) VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		m.ID, m.ApplicationID, m.Title, m.Description, m.ScheduledDate, m.DurationMinutes,
		m.Location, m.MeetingType, m.MeetingFormat, m.Status, m.Attendees, m.Notes, m.Outcome,
		nullableStringPtr(m.OrganizedByID), m.CreatedAt, m.UpdatedAt)
	return err
}

func (r Repo) GetMeeting(ctx context.Context, id string) (domain.Meeting, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+meetingCols+` FROM meetings WHERE id=?`, id)
	return scanMeetingRow(row.Scan)
}

type MeetingFilters struct {
	ApplicationID string
	Status        string
	Limit         int
	Offset        int
}

func (r Repo) ListMeetings(ctx context.Context, f MeetingFilters) ([]domain.Meeting, error) {
	var clauses []string
	var args []any
	if f.ApplicationID != "" {
		clauses = append(clauses, "application_id=?")
		args = append(args, f.ApplicationID)
	}
	if f.Status != "" {
		clauses = append(clauses, "status=?")
		args = append(args, f.Status)
	}
	query := `SELECT ` + meetingCols + ` FROM meetings` + whereClause(clauses) + ` ORDER BY scheduled_date ASC, id ASC`
	query, args = paginate(query, args, f.Limit, f.Offset)
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Meeting
	for rows.Next() {
		m, err := scanMeetingRow(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, m)
	}
	return res, rows.Err()
}

func (r Repo) UpdateMeeting(ctx context.Context, m domain.Meeting) error {
	res, err := r.DB.ExecContext(ctx, `UPDATE meetings SET title=?, description=?, scheduled_date=?, duration_minutes=?, location=?, meeting_type=?, meeting_format=?, status=?, attendees=?, notes=?, outcome=?, updated_at=? WHERE id=?`,
		m.Title, m.Description, m.ScheduledDate, m.DurationMinutes, m.Location, m.MeetingType, m.MeetingFormat,
		m.Status, m.Attendees, m.Notes, m.Outcome, m.UpdatedAt, m.ID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) DeleteMeeting(ctx context.Context, id string) error {
	res, err := r.DB.ExecContext(ctx, `DELETE FROM meetings WHERE id=?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
