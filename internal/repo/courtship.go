package repo

import (
	"context"
	"database/sql"

	"courtline/internal/domain"
)

const weekCols = `application_id,week,status,couple_notes,counselor_notes,started_at,completed_at,last_updated_by`

func scanWeekRow(scan func(dest ...any) error) (domain.CourtshipWeek, error) {
	var w domain.CourtshipWeek
	var startedAt, completedAt, updatedBy sql.NullString
	err := scan(&w.ApplicationID, &w.Week, &w.Status, &w.CoupleNotes, &w.CounselorNotes, &startedAt, &completedAt, &updatedBy)
	if err == sql.ErrNoRows {
		return w, ErrNotFound
	}
	if err != nil {
		return w, err
	}
	if startedAt.Valid {
		w.StartedAt = &startedAt.String
	}
	if completedAt.Valid {
		w.CompletedAt = &completedAt.String
	}
	if updatedBy.Valid {
		w.LastUpdatedBy = &updatedBy.String
	}
	return w, nil
}

func (r Repo) InsertCourtshipWeekTx(ctx context.Context, tx *sql.Tx, w domain.CourtshipWeek) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO courtship_weeks(`+weekCols+`) VALUES (?,?,?,?,?,?,?,?)`,
		w.ApplicationID, w.Week, w.Status, w.CoupleNotes, w.CounselorNotes,
		nullableStringPtr(w.StartedAt), nullableStringPtr(w.CompletedAt), nullableStringPtr(w.LastUpdatedBy))
	return err
}

func (r Repo) CountCourtshipWeeksTx(ctx context.Context, tx *sql.Tx, applicationID string) (int, error) {
	var n int
	err := tx.QueryRowContext(ctx, `SELECT count(*) FROM courtship_weeks WHERE application_id=?`, applicationID).Scan(&n)
	return n, err
}

func (r Repo) ListCourtshipWeeks(ctx context.Context, applicationID string) ([]domain.CourtshipWeek, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT `+weekCols+` FROM courtship_weeks WHERE application_id=? ORDER BY week ASC`, applicationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.CourtshipWeek
	for rows.Next() {
		w, err := scanWeekRow(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, w)
	}
	return res, rows.Err()
}

func (r Repo) GetCourtshipWeekTx(ctx context.Context, tx *sql.Tx, applicationID string, week int) (domain.CourtshipWeek, error) {
	row := tx.QueryRowContext(ctx, `SELECT `+weekCols+` FROM courtship_weeks WHERE application_id=? AND week=?`, applicationID, week)
	return scanWeekRow(row.Scan)
}

// ActiveCourtshipWeekTx returns the lowest-numbered week that is not
// completed. ErrNotFound means the whole curriculum is done.
func (r Repo) ActiveCourtshipWeekTx(ctx context.Context, tx *sql.Tx, applicationID string) (domain.CourtshipWeek, error) {
	row := tx.QueryRowContext(ctx, `SELECT `+weekCols+` FROM courtship_weeks WHERE application_id=? AND status != ? ORDER BY week ASC LIMIT 1`,
		applicationID, domain.WeekCompleted)
	return scanWeekRow(row.Scan)
}

// LatestCompletionTx returns the most recent completed_at across all
// weeks of an application, empty when none are completed.
func (r Repo) LatestCompletionTx(ctx context.Context, tx *sql.Tx, applicationID string) (string, error) {
	var latest sql.NullString
	err := tx.QueryRowContext(ctx, `SELECT MAX(completed_at) FROM courtship_weeks WHERE application_id=? AND status=?`,
		applicationID, domain.WeekCompleted).Scan(&latest)
	if err != nil {
		return "", err
	}
	if !latest.Valid {
		return "", nil
	}
	return latest.String, nil
}

func (r Repo) UpdateCourtshipWeekTx(ctx context.Context, tx *sql.Tx, w domain.CourtshipWeek) error {
	res, err := tx.ExecContext(ctx, `UPDATE courtship_weeks SET status=?, couple_notes=?, counselor_notes=?, started_at=?, completed_at=?, last_updated_by=? WHERE application_id=? AND week=?`,
		w.Status, w.CoupleNotes, w.CounselorNotes,
		nullableStringPtr(w.StartedAt), nullableStringPtr(w.CompletedAt), nullableStringPtr(w.LastUpdatedBy),
		w.ApplicationID, w.Week)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) CountCompletedWeeks(ctx context.Context, applicationID string) (int, error) {
	var n int
	err := r.DB.QueryRowContext(ctx, `SELECT count(*) FROM courtship_weeks WHERE application_id=? AND status=?`,
		applicationID, domain.WeekCompleted).Scan(&n)
	return n, err
}
