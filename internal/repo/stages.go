package repo

import (
	"context"
	"database/sql"

	"courtline/internal/domain"
)

const stageCols = `id,application_id,stage_name,stage_order,status,actioned_by_id,notes,started_at,completed_at`

func scanStageRow(scan func(dest ...any) error) (domain.StageRecord, error) {
	var s domain.StageRecord
	var actionedBy, completedAt sql.NullString
	err := scan(&s.ID, &s.ApplicationID, &s.StageName, &s.StageOrder, &s.Status, &actionedBy, &s.Notes, &s.StartedAt, &completedAt)
	if err == sql.ErrNoRows {
		return s, ErrNotFound
	}
	if err != nil {
		return s, err
	}
	if actionedBy.Valid {
		s.ActionedByID = &actionedBy.String
	}
	if completedAt.Valid {
		s.CompletedAt = &completedAt.String
	}
	return s, nil
}

func (r Repo) InsertStageRecordTx(ctx context.Context, tx *sql.Tx, s domain.StageRecord) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO stage_history(`+stageCols+`) VALUES (?,?,?,?,?,?,?,?,?)`,
		s.ID, s.ApplicationID, s.StageName, s.StageOrder, s.Status, nullableStringPtr(s.ActionedByID),
		s.Notes, s.StartedAt, nullableStringPtr(s.CompletedAt))
	return err
}

// CurrentStageRecordTx returns the open history row, the one with no
// completed_at, for an application.
func (r Repo) CurrentStageRecordTx(ctx context.Context, tx *sql.Tx, applicationID string) (domain.StageRecord, error) {
	row := tx.QueryRowContext(ctx, `SELECT `+stageCols+` FROM stage_history WHERE application_id=? AND completed_at IS NULL ORDER BY stage_order DESC LIMIT 1`, applicationID)
	return scanStageRow(row.Scan)
}

func (r Repo) CloseStageRecordTx(ctx context.Context, tx *sql.Tx, id, status, actionedBy, notes, completedAt string) error {
	res, err := tx.ExecContext(ctx, `UPDATE stage_history SET status=?, actioned_by_id=?, notes=?, completed_at=? WHERE id=? AND completed_at IS NULL`,
		status, nullable(actionedBy), notes, completedAt, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) UpdateStageRecordNotesTx(ctx context.Context, tx *sql.Tx, id, notes, actionedBy string) error {
	res, err := tx.ExecContext(ctx, `UPDATE stage_history SET notes=?, actioned_by_id=? WHERE id=? AND completed_at IS NULL`,
		notes, nullable(actionedBy), id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) ListStageHistory(ctx context.Context, applicationID string) ([]domain.StageRecord, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT `+stageCols+` FROM stage_history WHERE application_id=? ORDER BY stage_order ASC, started_at ASC`, applicationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.StageRecord
	for rows.Next() {
		s, err := scanStageRow(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, s)
	}
	return res, rows.Err()
}
