package engine

import (
	"context"
	"crypto/rand"
	"database/sql"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/google/uuid"

	"courtline/internal/config"
	"courtline/internal/domain"
	"courtline/internal/engine/auth"
	"courtline/internal/events"
	"courtline/internal/metrics"
	"courtline/internal/repo"
)

type Engine struct {
	DB     *sql.DB
	Repo   repo.Repo
	Events events.Writer
	Config *config.Config
	Now    func() time.Time
}

func New(db *sql.DB, cfg *config.Config) Engine {
	return Engine{
		DB:     db,
		Repo:   repo.Repo{DB: db},
		Events: events.Writer{DB: db},
		Config: cfg,
		Now:    time.Now,
	}
}

func (e Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

func (e Engine) nowRFC3339() string {
	return e.now().UTC().Format(time.RFC3339)
}

// newApplicationNumber returns a DLBC-<year>-<6 digits> number that is
// not yet taken. Collisions retry with a fresh suffix.
func (e Engine) newApplicationNumber(ctx context.Context) (string, error) {
	year := e.now().UTC().Year()
	for i := 0; i < 10; i++ {
		n, err := rand.Int(rand.Reader, big.NewInt(1000000))
		if err != nil {
			return "", err
		}
		number := fmt.Sprintf("DLBC-%d-%06d", year, n.Int64())
		taken, err := e.Repo.ApplicationNumberExists(ctx, number)
		if err != nil {
			return "", err
		}
		if !taken {
			return number, nil
		}
	}
	return "", errors.New("could not allocate application number")
}

// ApplicationCreateOptions are the applicant-supplied fields of a new
// application.
type ApplicationCreateOptions struct {
	ApplicantType           string `json:"applicant_type" enum:"brother,sister"`
	PartnerName             string `json:"partner_name"`
	PartnerLocation         string `json:"partner_location,omitempty"`
	PartnerRegion           string `json:"partner_region,omitempty"`
	PartnerDivision         string `json:"partner_division,omitempty"`
	PartnerInformed         bool   `json:"partner_informed,omitempty"`
	Age                     int    `json:"age,omitempty"`
	Occupation              string `json:"occupation,omitempty"`
	ChurchRole              string `json:"church_role,omitempty"`
	IsBornAgain             bool   `json:"is_born_again,omitempty"`
	SalvationDate           string `json:"salvation_date,omitempty"`
	SalvationExperience     string `json:"salvation_experience,omitempty"`
	PreviouslyMarried       bool   `json:"previously_married,omitempty"`
	NumberOfChildren        int    `json:"number_of_children,omitempty"`
	PreviousMarriageDetails string `json:"previous_marriage_details,omitempty"`
	KnowsPartner            bool   `json:"knows_partner,omitempty"`
	RelationshipDescription string `json:"relationship_description,omitempty"`
}

func (e Engine) CreateApplication(ctx context.Context, actor auth.Actor, opts ApplicationCreateOptions) (domain.Application, error) {
	if opts.PartnerName == "" {
		return domain.Application{}, errors.New("partner_name is required")
	}
	if opts.ApplicantType != "brother" && opts.ApplicantType != "sister" {
		return domain.Application{}, errors.New("applicant_type must be brother or sister")
	}
	number, err := e.newApplicationNumber(ctx)
	if err != nil {
		return domain.Application{}, err
	}
	now := e.nowRFC3339()
	a := domain.Application{
		ID:                      uuid.NewString(),
		ApplicationNumber:       number,
		ApplicantID:             actor.ID,
		ApplicantType:           opts.ApplicantType,
		PartnerName:             opts.PartnerName,
		PartnerLocation:         opts.PartnerLocation,
		PartnerRegion:           opts.PartnerRegion,
		PartnerDivision:         opts.PartnerDivision,
		PartnerInformed:         opts.PartnerInformed,
		Age:                     opts.Age,
		Occupation:              opts.Occupation,
		ChurchRole:              opts.ChurchRole,
		IsBornAgain:             opts.IsBornAgain,
		SalvationDate:           opts.SalvationDate,
		SalvationExperience:     opts.SalvationExperience,
		PreviouslyMarried:       opts.PreviouslyMarried,
		NumberOfChildren:        opts.NumberOfChildren,
		PreviousMarriageDetails: opts.PreviousMarriageDetails,
		KnowsPartner:            opts.KnowsPartner,
		RelationshipDescription: opts.RelationshipDescription,
		CurrentStage:            domain.StageApplicationSubmitted,
		Status:                  domain.StatusPending,
		CreatedAt:               now,
		UpdatedAt:               now,
		SubmittedAt:             now,
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Application{}, err
	}
	defer tx.Rollback()

	if err := e.Repo.InsertApplicationTx(ctx, tx, a); err != nil {
		return domain.Application{}, fmt.Errorf("insert application: %w", err)
	}
	first := domain.StageRecord{
		ID:            uuid.NewString(),
		ApplicationID: a.ID,
		StageName:     domain.StageApplicationSubmitted,
		StageOrder:    domain.StageOrder(domain.StageApplicationSubmitted),
		Status:        domain.StageInProgress,
		StartedAt:     now,
	}
	if err := e.Repo.InsertStageRecordTx(ctx, tx, first); err != nil {
		return domain.Application{}, fmt.Errorf("insert stage record: %w", err)
	}
	if err := e.notifyCommitteeTx(ctx, tx, a.ID,
		"New marriage application",
		fmt.Sprintf("Application %s was submitted and awaits form review.", a.ApplicationNumber)); err != nil {
		return domain.Application{}, err
	}
	if err := e.Events.Append(ctx, tx, "application.created", "application", a.ID, actor.ID,
		events.EventPayload{"application_number": a.ApplicationNumber}); err != nil {
		return domain.Application{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Application{}, err
	}
	metrics.ApplicationsCreated.Inc()
	return a, nil
}

// notifyCommitteeTx fans a notification out to every active central
// committee member.
func (e Engine) notifyCommitteeTx(ctx context.Context, tx *sql.Tx, applicationID, title, message string) error {
	rows, err := tx.QueryContext(ctx, `SELECT id FROM users WHERE role=? AND is_active=1`, domain.RoleCentralCommittee)
	if err != nil {
		return err
	}
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return err
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return err
	}
	now := e.nowRFC3339()
	for _, id := range ids {
		n := domain.Notification{
			ID:            uuid.NewString(),
			UserID:        id,
			ApplicationID: &applicationID,
			Title:         title,
			Message:       message,
			Type:          "application",
			CreatedAt:     now,
		}
		if err := e.Repo.InsertNotificationTx(ctx, tx, n); err != nil {
			return err
		}
	}
	return nil
}

func (e Engine) notifyUserTx(ctx context.Context, tx *sql.Tx, userID, applicationID, title, message, kind string) error {
	n := domain.Notification{
		ID:            uuid.NewString(),
		UserID:        userID,
		ApplicationID: &applicationID,
		Title:         title,
		Message:       message,
		Type:          kind,
		CreatedAt:     e.nowRFC3339(),
	}
	return e.Repo.InsertNotificationTx(ctx, tx, n)
}

// StageAdvanceOptions describe one stage decision. Outcome defaults to
// completed; ToStage, when set, must be the immediate successor. An
// in_progress outcome leaves the open record in place and only updates
// its notes.
type StageAdvanceOptions struct {
	ToStage string
	Outcome string
	Notes   string
}

func (e Engine) AdvanceStage(ctx context.Context, actor auth.Actor, applicationID string, opts StageAdvanceOptions) (domain.Application, error) {
	if opts.Outcome == "" {
		opts.Outcome = domain.StageCompleted
	}
	switch opts.Outcome {
	case domain.StageCompleted, domain.StageRejected, domain.StageInProgress:
	default:
		return domain.Application{}, fmt.Errorf("outcome must be %s, %s, or %s",
			domain.StageCompleted, domain.StageRejected, domain.StageInProgress)
	}

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Application{}, err
	}
	defer tx.Rollback()

	app, err := e.Repo.GetApplicationTx(ctx, tx, applicationID)
	if err != nil {
		return domain.Application{}, err
	}
	if app.Status == domain.StatusApproved || app.Status == domain.StatusRejected {
		return domain.Application{}, AlreadyTerminalError{Status: app.Status}
	}
	if !auth.CanAdvanceStage(actor, app.CurrentStage) {
		return domain.Application{}, auth.ForbiddenError{Action: "stage advance"}
	}

	now := e.nowRFC3339()
	current, err := e.Repo.CurrentStageRecordTx(ctx, tx, applicationID)
	if err != nil {
		return domain.Application{}, fmt.Errorf("current stage record: %w", err)
	}

	// An in_progress outcome only records notes on the open record. The
	// record stays open and current_stage does not move.
	if opts.Outcome == domain.StageInProgress {
		if opts.ToStage != "" && opts.ToStage != app.CurrentStage {
			return domain.Application{}, InvalidTransitionError{From: app.CurrentStage, To: opts.ToStage}
		}
		if err := e.Repo.UpdateStageRecordNotesTx(ctx, tx, current.ID, opts.Notes, actor.ID); err != nil {
			return domain.Application{}, err
		}
		if err := e.Events.Append(ctx, tx, "application.stage_noted", "application", app.ID, actor.ID,
			events.EventPayload{"stage": app.CurrentStage, "notes": opts.Notes}); err != nil {
			return domain.Application{}, err
		}
		if err := tx.Commit(); err != nil {
			return domain.Application{}, err
		}
		return app, nil
	}

	if opts.Outcome == domain.StageRejected {
		if err := e.Repo.CloseStageRecordTx(ctx, tx, current.ID, domain.StageRejected, actor.ID, opts.Notes, now); err != nil {
			return domain.Application{}, err
		}
		if err := e.Repo.UpdateApplicationStageTx(ctx, tx, app.ID, app.CurrentStage, domain.StatusRejected, now, nil); err != nil {
			return domain.Application{}, err
		}
		if err := e.notifyUserTx(ctx, tx, app.ApplicantID, app.ID,
			"Application update",
			fmt.Sprintf("Your application %s was not approved at the %s stage.", app.ApplicationNumber, domain.StageTitle(app.CurrentStage)),
			"stage"); err != nil {
			return domain.Application{}, err
		}
		if err := e.Events.Append(ctx, tx, "application.rejected", "application", app.ID, actor.ID,
			events.EventPayload{"stage": app.CurrentStage, "notes": opts.Notes}); err != nil {
			return domain.Application{}, err
		}
		if err := tx.Commit(); err != nil {
			return domain.Application{}, err
		}
		metrics.StageTransitions.WithLabelValues(app.CurrentStage, "rejected").Inc()
		app.Status = domain.StatusRejected
		app.UpdatedAt = now
		return app, nil
	}

	next, ok := domain.NextStage(app.CurrentStage)
	if !ok {
		return domain.Application{}, AlreadyTerminalError{Status: app.Status}
	}
	if opts.ToStage != "" && opts.ToStage != next {
		return domain.Application{}, InvalidTransitionError{From: app.CurrentStage, To: opts.ToStage}
	}

	if err := e.Repo.CloseStageRecordTx(ctx, tx, current.ID, domain.StageCompleted, actor.ID, opts.Notes, now); err != nil {
		return domain.Application{}, err
	}

	record := domain.StageRecord{
		ID:            uuid.NewString(),
		ApplicationID: app.ID,
		StageName:     next,
		StageOrder:    domain.StageOrder(next),
		Status:        domain.StageInProgress,
		StartedAt:     now,
	}
	status := app.Status
	var approvedAt *string
	if next == domain.StageApproved {
		record.Status = domain.StageCompleted
		record.ActionedByID = &actor.ID
		record.CompletedAt = &now
		status = domain.StatusApproved
		approvedAt = &now
	}
	if err := e.Repo.InsertStageRecordTx(ctx, tx, record); err != nil {
		return domain.Application{}, err
	}
	if err := e.Repo.UpdateApplicationStageTx(ctx, tx, app.ID, next, status, now, approvedAt); err != nil {
		return domain.Application{}, err
	}

	if next == domain.StageCourtship {
		if err := e.initializeCourtshipTx(ctx, tx, app.ID); err != nil {
			return domain.Application{}, err
		}
	}

	message := fmt.Sprintf("Your application %s moved to the %s stage.", app.ApplicationNumber, domain.StageTitle(next))
	if next == domain.StageApproved {
		message = fmt.Sprintf("Congratulations, your application %s has been approved.", app.ApplicationNumber)
	}
	if err := e.notifyUserTx(ctx, tx, app.ApplicantID, app.ID, "Application update", message, "stage"); err != nil {
		return domain.Application{}, err
	}
	if err := e.Events.Append(ctx, tx, "application.stage_advanced", "application", app.ID, actor.ID,
		events.EventPayload{"from": app.CurrentStage, "to": next}); err != nil {
		return domain.Application{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Application{}, err
	}
	metrics.StageTransitions.WithLabelValues(next, "completed").Inc()

	app.CurrentStage = next
	app.Status = status
	app.UpdatedAt = now
	app.ApprovedAt = approvedAt
	return app, nil
}

func (e Engine) AssignApplication(ctx context.Context, actor auth.Actor, applicationID, memberID string) (domain.Application, error) {
	if !auth.CanAssign(actor) {
		return domain.Application{}, auth.ForbiddenError{Action: "application assignment"}
	}
	member, err := e.Repo.GetUser(ctx, memberID)
	if err != nil {
		return domain.Application{}, fmt.Errorf("committee member: %w", err)
	}
	if !domain.IsCommitteeRole(member.Role) {
		return domain.Application{}, fmt.Errorf("user %s is not a committee member", memberID)
	}

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Application{}, err
	}
	defer tx.Rollback()

	app, err := e.Repo.GetApplicationTx(ctx, tx, applicationID)
	if err != nil {
		return domain.Application{}, err
	}
	now := e.nowRFC3339()
	if err := e.Repo.AssignApplicationTx(ctx, tx, app.ID, &memberID, now); err != nil {
		return domain.Application{}, err
	}
	if err := e.notifyUserTx(ctx, tx, memberID, app.ID,
		"Application assigned",
		fmt.Sprintf("Application %s has been assigned to you.", app.ApplicationNumber),
		"assignment"); err != nil {
		return domain.Application{}, err
	}
	if err := e.Events.Append(ctx, tx, "application.assigned", "application", app.ID, actor.ID,
		events.EventPayload{"member_id": memberID}); err != nil {
		return domain.Application{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Application{}, err
	}
	app.AssignedCommitteeMemberID = &memberID
	app.UpdatedAt = now
	return app, nil
}

// SetApplicationHold toggles an application between pending and on
// hold. Terminal applications are left alone.
func (e Engine) SetApplicationHold(ctx context.Context, actor auth.Actor, applicationID string, hold bool, notes string) (domain.Application, error) {
	if !domain.IsCommitteeRole(actor.Role) {
		return domain.Application{}, auth.ForbiddenError{Action: "hold toggle"}
	}

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Application{}, err
	}
	defer tx.Rollback()

	app, err := e.Repo.GetApplicationTx(ctx, tx, applicationID)
	if err != nil {
		return domain.Application{}, err
	}
	if app.Status == domain.StatusApproved || app.Status == domain.StatusRejected {
		return domain.Application{}, AlreadyTerminalError{Status: app.Status}
	}
	status := domain.StatusPending
	action := "application.resumed"
	if hold {
		status = domain.StatusOnHold
		action = "application.held"
	}
	now := e.nowRFC3339()
	if err := e.Repo.UpdateApplicationStageTx(ctx, tx, app.ID, app.CurrentStage, status, now, nil); err != nil {
		return domain.Application{}, err
	}
	if err := e.Events.Append(ctx, tx, action, "application", app.ID, actor.ID,
		events.EventPayload{"notes": notes}); err != nil {
		return domain.Application{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Application{}, err
	}
	app.Status = status
	app.UpdatedAt = now
	return app, nil
}

// GetApplication loads an application, applying the actor's visibility.
// Committee members only reach applications from their own region.
func (e Engine) GetApplication(ctx context.Context, actor auth.Actor, id string) (domain.Application, error) {
	app, err := e.Repo.GetApplication(ctx, id)
	if err != nil {
		return domain.Application{}, err
	}
	region, err := e.applicantRegion(ctx, app.ApplicantID)
	if err != nil {
		return domain.Application{}, err
	}
	if !auth.CanViewApplication(actor, app, region) {
		return domain.Application{}, auth.ForbiddenError{Action: "application access"}
	}
	return app, nil
}

func (e Engine) applicantRegion(ctx context.Context, applicantID string) (string, error) {
	u, err := e.Repo.GetUser(ctx, applicantID)
	if errors.Is(err, repo.ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return u.Region, nil
}
