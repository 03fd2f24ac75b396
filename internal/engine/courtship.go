package engine

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"courtline/internal/domain"
	"courtline/internal/engine/auth"
	"courtline/internal/events"
	"courtline/internal/metrics"
)

// initializeCourtshipTx seeds the 25 not_started week rows and the
// counseling check-in schedule, one check-in per CheckInIntervalDays
// from now.
func (e Engine) initializeCourtshipTx(ctx context.Context, tx *sql.Tx, applicationID string) error {
	n, err := e.Repo.CountCourtshipWeeksTx(ctx, tx, applicationID)
	if err != nil {
		return err
	}
	if n > 0 {
		return AlreadyInitializedError{ApplicationID: applicationID}
	}
	for week := 1; week <= domain.CourtshipWeeks; week++ {
		w := domain.CourtshipWeek{
			ApplicationID: applicationID,
			Week:          week,
			Status:        domain.WeekNotStarted,
		}
		if err := e.Repo.InsertCourtshipWeekTx(ctx, tx, w); err != nil {
			return fmt.Errorf("seed week %d: %w", week, err)
		}
	}
	now := e.now().UTC()
	for i := 1; i <= domain.CourtshipCheckIns; i++ {
		c := domain.CheckIn{
			ID:            uuid.NewString(),
			ApplicationID: applicationID,
			ScheduledDate: now.AddDate(0, 0, i*domain.CheckInIntervalDays).Format(time.RFC3339),
			Status:        "scheduled",
			CreatedAt:     now.Format(time.RFC3339),
			UpdatedAt:     now.Format(time.RFC3339),
		}
		if err := e.Repo.InsertCheckInTx(ctx, tx, c); err != nil {
			return fmt.Errorf("schedule check-in %d: %w", i, err)
		}
	}
	return nil
}

// InitializeCourtship seeds the tracker outside a stage transition, for
// applications migrated in while already courting.
func (e Engine) InitializeCourtship(ctx context.Context, actor auth.Actor, applicationID string) error {
	if !domain.IsCommitteeRole(actor.Role) {
		return auth.ForbiddenError{Action: "courtship initialization"}
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	app, err := e.Repo.GetApplicationTx(ctx, tx, applicationID)
	if err != nil {
		return err
	}
	if app.CurrentStage != domain.StageCourtship {
		return NotInCourtshipError{Stage: app.CurrentStage}
	}
	if err := e.initializeCourtshipTx(ctx, tx, app.ID); err != nil {
		return err
	}
	if err := e.Events.Append(ctx, tx, "courtship.initialized", "application", app.ID, actor.ID, nil); err != nil {
		return err
	}
	return tx.Commit()
}

// courtshipAppTx loads the application and checks the actor may record
// progress on it.
func (e Engine) courtshipAppTx(ctx context.Context, tx *sql.Tx, actor auth.Actor, applicationID string) (domain.Application, error) {
	app, err := e.Repo.GetApplicationTx(ctx, tx, applicationID)
	if err != nil {
		return domain.Application{}, err
	}
	if !auth.CanEditCourtship(actor, app) {
		return domain.Application{}, auth.ForbiddenError{Action: "courtship update"}
	}
	if app.CurrentStage != domain.StageCourtship {
		return domain.Application{}, NotInCourtshipError{Stage: app.CurrentStage}
	}
	return app, nil
}

// StartWeek moves the active week from not_started to in_progress.
func (e Engine) StartWeek(ctx context.Context, actor auth.Actor, applicationID string, week int) (domain.CourtshipWeek, error) {
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.CourtshipWeek{}, err
	}
	defer tx.Rollback()

	app, err := e.courtshipAppTx(ctx, tx, actor, applicationID)
	if err != nil {
		return domain.CourtshipWeek{}, err
	}
	active, err := e.Repo.ActiveCourtshipWeekTx(ctx, tx, app.ID)
	if err != nil {
		return domain.CourtshipWeek{}, err
	}
	if week != active.Week {
		return domain.CourtshipWeek{}, WrongWeekError{Requested: week, Active: active.Week}
	}
	if active.Status == domain.WeekInProgress {
		return active, tx.Commit()
	}
	now := e.nowRFC3339()
	active.Status = domain.WeekInProgress
	active.StartedAt = &now
	active.LastUpdatedBy = &actor.ID
	if err := e.Repo.UpdateCourtshipWeekTx(ctx, tx, active); err != nil {
		return domain.CourtshipWeek{}, err
	}
	if err := e.Events.Append(ctx, tx, "courtship.week_started", "application", app.ID, actor.ID,
		events.EventPayload{"week": week}); err != nil {
		return domain.CourtshipWeek{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.CourtshipWeek{}, err
	}
	return active, nil
}

// WeekUpdateOptions carry note edits for the active week. Counselor
// notes are only written for committee actors.
type WeekUpdateOptions struct {
	CoupleNotes    *string
	CounselorNotes *string
}

// UpdateWeekNotes edits notes on a week without completing it.
func (e Engine) UpdateWeekNotes(ctx context.Context, actor auth.Actor, applicationID string, week int, opts WeekUpdateOptions) (domain.CourtshipWeek, error) {
	if opts.CounselorNotes != nil && !auth.CanWriteCounselorNotes(actor) {
		return domain.CourtshipWeek{}, auth.ForbiddenError{Action: "counselor notes"}
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.CourtshipWeek{}, err
	}
	defer tx.Rollback()

	app, err := e.courtshipAppTx(ctx, tx, actor, applicationID)
	if err != nil {
		return domain.CourtshipWeek{}, err
	}
	w, err := e.Repo.GetCourtshipWeekTx(ctx, tx, app.ID, week)
	if err != nil {
		return domain.CourtshipWeek{}, err
	}
	if opts.CoupleNotes != nil {
		w.CoupleNotes = *opts.CoupleNotes
	}
	if opts.CounselorNotes != nil {
		w.CounselorNotes = *opts.CounselorNotes
	}
	w.LastUpdatedBy = &actor.ID
	if err := e.Repo.UpdateCourtshipWeekTx(ctx, tx, w); err != nil {
		return domain.CourtshipWeek{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.CourtshipWeek{}, err
	}
	return w, nil
}

// CompleteWeek marks the active week completed. A completion inside the
// pacing window of the previous one is refused.
func (e Engine) CompleteWeek(ctx context.Context, actor auth.Actor, applicationID string, week int, opts WeekUpdateOptions) (domain.CourtshipWeek, error) {
	if opts.CounselorNotes != nil && !auth.CanWriteCounselorNotes(actor) {
		return domain.CourtshipWeek{}, auth.ForbiddenError{Action: "counselor notes"}
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.CourtshipWeek{}, err
	}
	defer tx.Rollback()

	app, err := e.courtshipAppTx(ctx, tx, actor, applicationID)
	if err != nil {
		return domain.CourtshipWeek{}, err
	}
	active, err := e.Repo.ActiveCourtshipWeekTx(ctx, tx, app.ID)
	if err != nil {
		return domain.CourtshipWeek{}, err
	}
	if week != active.Week {
		return domain.CourtshipWeek{}, WrongWeekError{Requested: week, Active: active.Week}
	}

	latest, err := e.Repo.LatestCompletionTx(ctx, tx, app.ID)
	if err != nil {
		return domain.CourtshipWeek{}, err
	}
	nowT := e.now().UTC()
	if latest != "" {
		latestT, err := time.Parse(time.RFC3339, latest)
		if err != nil {
			return domain.CourtshipWeek{}, fmt.Errorf("parse completion time: %w", err)
		}
		window := e.Config.PacingWindow()
		if nowT.Sub(latestT) < window {
			metrics.PacingViolations.Inc()
			return domain.CourtshipWeek{}, PacingViolationError{
				Week:        week,
				NextAllowed: latestT.Add(window).Format(time.RFC3339),
			}
		}
	}

	now := nowT.Format(time.RFC3339)
	if active.StartedAt == nil {
		active.StartedAt = &now
	}
	active.Status = domain.WeekCompleted
	active.CompletedAt = &now
	active.LastUpdatedBy = &actor.ID
	if opts.CoupleNotes != nil {
		active.CoupleNotes = *opts.CoupleNotes
	}
	if opts.CounselorNotes != nil {
		active.CounselorNotes = *opts.CounselorNotes
	}
	if err := e.Repo.UpdateCourtshipWeekTx(ctx, tx, active); err != nil {
		return domain.CourtshipWeek{}, err
	}
	if err := e.Events.Append(ctx, tx, "courtship.week_completed", "application", app.ID, actor.ID,
		events.EventPayload{"week": week}); err != nil {
		return domain.CourtshipWeek{}, err
	}
	if week == domain.CourtshipWeeks {
		if err := e.notifyCommitteeTx(ctx, tx, app.ID,
			"Courtship curriculum finished",
			fmt.Sprintf("Application %s completed all %d courtship weeks.", app.ApplicationNumber, domain.CourtshipWeeks)); err != nil {
			return domain.CourtshipWeek{}, err
		}
	}
	if err := tx.Commit(); err != nil {
		return domain.CourtshipWeek{}, err
	}
	metrics.WeeksCompleted.Inc()
	return active, nil
}

// CourtshipProgress is the tracker read model.
type CourtshipProgress struct {
	ApplicationID     string                 `json:"application_id"`
	CurrentWeek       int                    `json:"current_week"`
	CompletedWeeks    int                    `json:"completed_weeks"`
	TotalWeeks        int                    `json:"total_weeks"`
	TotalCheckIns     int                    `json:"total_check_ins"`
	CompletedCheckIns int                    `json:"completed_check_ins"`
	Done              bool                   `json:"done"`
	Weeks             []domain.CourtshipWeek `json:"weeks"`
}

// Progress returns all weeks plus the derived current position. The
// current week is the lowest one not yet completed.
func (e Engine) Progress(ctx context.Context, actor auth.Actor, applicationID string) (CourtshipProgress, error) {
	if _, err := e.GetApplication(ctx, actor, applicationID); err != nil {
		return CourtshipProgress{}, err
	}
	weeks, err := e.Repo.ListCourtshipWeeks(ctx, applicationID)
	if err != nil {
		return CourtshipProgress{}, err
	}
	p := CourtshipProgress{
		ApplicationID: applicationID,
		TotalWeeks:    domain.CourtshipWeeks,
		Weeks:         weeks,
	}
	current := 0
	for _, w := range weeks {
		if w.Status == domain.WeekCompleted {
			p.CompletedWeeks++
		} else if current == 0 {
			current = w.Week
		}
	}
	p.CurrentWeek = current
	p.Done = len(weeks) > 0 && p.CompletedWeeks == len(weeks)
	if p.TotalCheckIns, err = e.Repo.CountCheckIns(ctx, applicationID, ""); err != nil {
		return CourtshipProgress{}, err
	}
	if p.CompletedCheckIns, err = e.Repo.CountCheckIns(ctx, applicationID, "completed"); err != nil {
		return CourtshipProgress{}, err
	}
	return p, nil
}
