package repo

import (
	"context"
	"database/sql"

	"courtline/internal/domain"
)

const medicalCols = `id,application_id,person_type,hiv_test,hepatitis_test,sickle_cell_test,test_date,hospital_name,hospital_location,results_received,results_received_at,compatibility_status,notes,created_at,updated_at`

func scanMedicalRow(scan func(dest ...any) error) (domain.MedicalTest, error) {
	var t domain.MedicalTest
	var receivedAt sql.NullString
	var received int
	err := scan(&t.ID, &t.ApplicationID, &t.PersonType, &t.HIVTest, &t.HepatitisTest, &t.SickleCellTest,
		&t.TestDate, &t.HospitalName, &t.HospitalLocation, &received, &receivedAt,
		&t.CompatibilityStatus, &t.Notes, &t.CreatedAt, &t.UpdatedAt)
	if err == sql.ErrNoRows {
		return t, ErrNotFound
	}
	if err != nil {
		return t, err
	}
	t.ResultsReceived = received != 0
	if receivedAt.Valid {
		t.ResultsReceivedAt = &receivedAt.String
	}
	return t, nil
}

func (r Repo) InsertMedicalTest(ctx context.Context, t domain.MedicalTest) error {
	_, err := r.DB.ExecContext(ctx, `INSERT INTO medical_tests(`+medicalCols+`) VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		t.ID, t.ApplicationID, t.PersonType, t.HIVTest, t.HepatitisTest, t.SickleCellTest,
		t.TestDate, t.HospitalName, t.HospitalLocation, boolInt(t.ResultsReceived), nullableStringPtr(t.ResultsReceivedAt),
		t.CompatibilityStatus, t.Notes, t.CreatedAt, t.UpdatedAt)
	return err
}

func (r Repo) GetMedicalTest(ctx context.Context, id string) (domain.MedicalTest, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+medicalCols+` FROM medical_tests WHERE id=?`, id)
	return scanMedicalRow(row.Scan)
}

func (r Repo) ListMedicalTests(ctx context.Context, applicationID string) ([]domain.MedicalTest, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT `+medicalCols+` FROM medical_tests WHERE application_id=? ORDER BY created_at ASC, id ASC`, applicationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.MedicalTest
	for rows.Next() {
		t, err := scanMedicalRow(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, t)
	}
	return res, rows.Err()
}

func (r Repo) UpdateMedicalTest(ctx context.Context, t domain.MedicalTest) error {
	res, err := r.DB.ExecContext(ctx, `UPDATE medical_tests SET hiv_test=?, hepatitis_test=?, sickle_cell_test=?, test_date=?, hospital_name=?, hospital_location=?, results_received=?, results_received_at=?, compatibility_status=?, notes=?, updated_at=? WHERE id=?`,
		t.HIVTest, t.HepatitisTest, t.SickleCellTest, t.TestDate, t.HospitalName, t.HospitalLocation,
		boolInt(t.ResultsReceived), nullableStringPtr(t.ResultsReceivedAt), t.CompatibilityStatus, t.Notes, t.UpdatedAt, t.ID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
