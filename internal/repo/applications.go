package repo

import (
	"context"
	"database/sql"

	"courtline/internal/domain"
)

const applicationCols = `id,application_number,applicant_id,applicant_type,partner_id,partner_name,partner_location,partner_region,partner_division,partner_informed,age,occupation,church_role,is_born_again,salvation_date,salvation_experience,previously_married,number_of_children,previous_marriage_details,knows_partner,relationship_description,current_stage,status,assigned_committee_member_id,admin_notes,created_at,updated_at,submitted_at,approved_at`

func scanApplicationRow(scan func(dest ...any) error) (domain.Application, error) {
	var a domain.Application
	var partnerID, assignedID, approvedAt sql.NullString
	var partnerInformed, bornAgain, prevMarried, knowsPartner int
	err := scan(
		&a.ID, &a.ApplicationNumber, &a.ApplicantID, &a.ApplicantType, &partnerID,
		&a.PartnerName, &a.PartnerLocation, &a.PartnerRegion, &a.PartnerDivision, &partnerInformed,
		&a.Age, &a.Occupation, &a.ChurchRole,
		&bornAgain, &a.SalvationDate, &a.SalvationExperience,
		&prevMarried, &a.NumberOfChildren, &a.PreviousMarriageDetails,
		&knowsPartner, &a.RelationshipDescription,
		&a.CurrentStage, &a.Status, &assignedID, &a.AdminNotes,
		&a.CreatedAt, &a.UpdatedAt, &a.SubmittedAt, &approvedAt)
	if err == sql.ErrNoRows {
		return a, ErrNotFound
	}
	if err != nil {
		return a, err
	}
	a.PartnerInformed = partnerInformed != 0
	a.IsBornAgain = bornAgain != 0
	a.PreviouslyMarried = prevMarried != 0
	a.KnowsPartner = knowsPartner != 0
	if partnerID.Valid {
		a.PartnerID = &partnerID.String
	}
	if assignedID.Valid {
		a.AssignedCommitteeMemberID = &assignedID.String
	}
	if approvedAt.Valid {
		a.ApprovedAt = &approvedAt.String
	}
	return a, nil
}

func (r Repo) InsertApplicationTx(ctx context.Context, tx *sql.Tx, a domain.Application) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO applications(`+applicationCols+`)
VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		a.ID, a.ApplicationNumber, a.ApplicantID, a.ApplicantType, nullableStringPtr(a.PartnerID),
		a.PartnerName, a.PartnerLocation, a.PartnerRegion, a.PartnerDivision, boolInt(a.PartnerInformed),
		a.Age, a.Occupation, a.ChurchRole,
		boolInt(a.IsBornAgain), a.SalvationDate, a.SalvationExperience,
		boolInt(a.PreviouslyMarried), a.NumberOfChildren, a.PreviousMarriageDetails,
		boolInt(a.KnowsPartner), a.RelationshipDescription,
		a.CurrentStage, a.Status, nullableStringPtr(a.AssignedCommitteeMemberID), a.AdminNotes,
		a.CreatedAt, a.UpdatedAt, a.SubmittedAt, nullableStringPtr(a.ApprovedAt))
	return err
}

func (r Repo) GetApplication(ctx context.Context, id string) (domain.Application, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+applicationCols+` FROM applications WHERE id=?`, id)
	return scanApplicationRow(row.Scan)
}

func (r Repo) GetApplicationTx(ctx context.Context, tx *sql.Tx, id string) (domain.Application, error) {
	row := tx.QueryRowContext(ctx, `SELECT `+applicationCols+` FROM applications WHERE id=?`, id)
	return scanApplicationRow(row.Scan)
}

func (r Repo) GetApplicationByNumber(ctx context.Context, number string) (domain.Application, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+applicationCols+` FROM applications WHERE application_number=?`, number)
	return scanApplicationRow(row.Scan)
}

func (r Repo) ApplicationNumberExists(ctx context.Context, number string) (bool, error) {
	var n int
	err := r.DB.QueryRowContext(ctx, `SELECT count(*) FROM applications WHERE application_number=?`, number).Scan(&n)
	return n > 0, err
}

// ApplicationFilters narrows ListApplications. ApplicantID and
// AssignedTo implement role scoping; Search matches the application
// number or partner name.
type ApplicationFilters struct {
	ApplicantID string
	AssignedTo  string
	Status      string
	Stage       string
	// Region matches the partner's region; ApplicantRegion the applicant's.
	Region          string
	ApplicantRegion string
	Search          string
	Limit           int
	Offset          int
}

func applicationClauses(f ApplicationFilters) ([]string, []any) {
	var clauses []string
	var args []any
	if f.ApplicantID != "" {
		clauses = append(clauses, "applicant_id=?")
		args = append(args, f.ApplicantID)
	}
	if f.AssignedTo != "" {
		clauses = append(clauses, "assigned_committee_member_id=?")
		args = append(args, f.AssignedTo)
	}
	if f.Status != "" {
		clauses = append(clauses, "status=?")
		args = append(args, f.Status)
	}
	if f.Stage != "" {
		clauses = append(clauses, "current_stage=?")
		args = append(args, f.Stage)
	}
	if f.Region != "" {
		clauses = append(clauses, "partner_region=?")
		args = append(args, f.Region)
	}
	if f.ApplicantRegion != "" {
		clauses = append(clauses, "applicant_id IN (SELECT id FROM users WHERE region=?)")
		args = append(args, f.ApplicantRegion)
	}
	if f.Search != "" {
		clauses = append(clauses, "(application_number LIKE ? OR partner_name LIKE ?)")
		pattern := "%" + f.Search + "%"
		args = append(args, pattern, pattern)
	}
	return clauses, args
}

func (r Repo) ListApplications(ctx context.Context, f ApplicationFilters) ([]domain.Application, error) {
	clauses, args := applicationClauses(f)
	query := `SELECT ` + applicationCols + ` FROM applications` + whereClause(clauses) + ` ORDER BY created_at DESC, id DESC`
	query, args = paginate(query, args, f.Limit, f.Offset)
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Application
	for rows.Next() {
		a, err := scanApplicationRow(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, a)
	}
	return res, rows.Err()
}

func (r Repo) CountApplications(ctx context.Context, f ApplicationFilters) (int, error) {
	clauses, args := applicationClauses(f)
	var n int
	err := r.DB.QueryRowContext(ctx, `SELECT count(*) FROM applications`+whereClause(clauses), args...).Scan(&n)
	return n, err
}

func (r Repo) UpdateApplicationStageTx(ctx context.Context, tx *sql.Tx, id, stage, status, updatedAt string, approvedAt *string) error {
	res, err := tx.ExecContext(ctx, `UPDATE applications SET current_stage=?, status=?, updated_at=?, approved_at=COALESCE(?, approved_at) WHERE id=?`,
		stage, status, updatedAt, nullableStringPtr(approvedAt), id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) AssignApplicationTx(ctx context.Context, tx *sql.Tx, id string, memberID *string, updatedAt string) error {
	res, err := tx.ExecContext(ctx, `UPDATE applications SET assigned_committee_member_id=?, updated_at=? WHERE id=?`,
		nullableStringPtr(memberID), updatedAt, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) UpdateApplicationNotes(ctx context.Context, id, notes, updatedAt string) error {
	res, err := r.DB.ExecContext(ctx, `UPDATE applications SET admin_notes=?, updated_at=? WHERE id=?`, notes, updatedAt, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) UpdateApplicationForm(ctx context.Context, id string, partnerInformed bool, relationshipDescription, updatedAt string) error {
	res, err := r.DB.ExecContext(ctx,
		`UPDATE applications SET partner_informed=?, relationship_description=?, updated_at=? WHERE id=?`,
		partnerInformed, relationshipDescription, updatedAt, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) CountApplicationsByStage(ctx context.Context) (map[string]int, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT current_stage, count(*) FROM applications GROUP BY current_stage`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := map[string]int{}
	for rows.Next() {
		var stage string
		var count int
		if err := rows.Scan(&stage, &count); err != nil {
			return nil, err
		}
		res[stage] = count
	}
	return res, rows.Err()
}

func (r Repo) CountApplicationsByStatus(ctx context.Context) (map[string]int, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT status, count(*) FROM applications GROUP BY status`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := map[string]int{}
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		res[status] = count
	}
	return res, rows.Err()
}
