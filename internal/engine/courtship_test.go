package engine_test

import (
	"errors"
	"testing"
	"time"

	"courtline/internal/domain"
	"courtline/internal/engine"
	"courtline/internal/engine/auth"
)

// advanceToCourtship walks an application into the courtship stage.
func advanceToCourtship(t *testing.T, env testEnv, member auth.Actor, appID string) domain.Application {
	t.Helper()
	app, err := env.Engine.Repo.GetApplication(env.Ctx, appID)
	if err != nil {
		t.Fatalf("get application: %v", err)
	}
	for app.CurrentStage != domain.StageCourtship {
		app, err = env.Engine.AdvanceStage(env.Ctx, member, app.ID, engine.StageAdvanceOptions{})
		if err != nil {
			t.Fatalf("advance to courtship: %v", err)
		}
	}
	return app
}

func TestCompleteWeekOutOfOrder(t *testing.T) {
	env := newTestEnv(t)
	applicant := env.seedUser(t, domain.RoleSingle)
	member := env.seedUser(t, domain.RoleCommitteeMember)
	app := env.createApplication(t, applicant)
	advanceToCourtship(t, env, member, app.ID)

	_, err := env.Engine.CompleteWeek(env.Ctx, applicant, app.ID, 2, engine.WeekUpdateOptions{})
	var wrong engine.WrongWeekError
	if !errors.As(err, &wrong) {
		t.Fatalf("expected WrongWeekError, got %v", err)
	}
	if wrong.Active != 1 {
		t.Fatalf("active week = %d", wrong.Active)
	}
}

func TestPacingWindowEnforced(t *testing.T) {
	env := newTestEnv(t)
	applicant := env.seedUser(t, domain.RoleSingle)
	member := env.seedUser(t, domain.RoleCommitteeMember)
	app := env.createApplication(t, applicant)
	advanceToCourtship(t, env, member, app.ID)

	if _, err := env.Engine.CompleteWeek(env.Ctx, applicant, app.ID, 1, engine.WeekUpdateOptions{}); err != nil {
		t.Fatalf("complete week 1: %v", err)
	}
	firstCompletion := *env.Clock

	// one day later is inside the rolling window
	*env.Clock = env.Clock.Add(24 * time.Hour)
	_, err := env.Engine.CompleteWeek(env.Ctx, applicant, app.ID, 2, engine.WeekUpdateOptions{})
	var pacing engine.PacingViolationError
	if !errors.As(err, &pacing) {
		t.Fatalf("expected PacingViolationError, got %v", err)
	}
	wantNext := firstCompletion.Add(7 * 24 * time.Hour).Format(time.RFC3339)
	if pacing.NextAllowed != wantNext {
		t.Fatalf("next allowed = %s, want %s", pacing.NextAllowed, wantNext)
	}

	// starting the week is still allowed inside the window
	if _, err := env.Engine.StartWeek(env.Ctx, applicant, app.ID, 2); err != nil {
		t.Fatalf("start week 2: %v", err)
	}

	// exactly seven days after the last completion the week may close
	*env.Clock = firstCompletion.Add(7 * 24 * time.Hour)
	w, err := env.Engine.CompleteWeek(env.Ctx, applicant, app.ID, 2, engine.WeekUpdateOptions{})
	if err != nil {
		t.Fatalf("complete week 2 after window: %v", err)
	}
	if w.Status != domain.WeekCompleted {
		t.Fatalf("status = %s", w.Status)
	}
}

func TestStartWeekRequiresActiveWeek(t *testing.T) {
	env := newTestEnv(t)
	applicant := env.seedUser(t, domain.RoleSingle)
	member := env.seedUser(t, domain.RoleCommitteeMember)
	app := env.createApplication(t, applicant)
	advanceToCourtship(t, env, member, app.ID)

	_, err := env.Engine.StartWeek(env.Ctx, applicant, app.ID, 3)
	var wrong engine.WrongWeekError
	if !errors.As(err, &wrong) {
		t.Fatalf("expected WrongWeekError, got %v", err)
	}

	w, err := env.Engine.StartWeek(env.Ctx, applicant, app.ID, 1)
	if err != nil {
		t.Fatalf("start week 1: %v", err)
	}
	if w.Status != domain.WeekInProgress {
		t.Fatalf("status = %s", w.Status)
	}
	// starting again is a no-op
	w, err = env.Engine.StartWeek(env.Ctx, applicant, app.ID, 1)
	if err != nil || w.Status != domain.WeekInProgress {
		t.Fatalf("restart week 1: %v", err)
	}
}

func TestCounselorNotesNeedCommitteeRole(t *testing.T) {
	env := newTestEnv(t)
	applicant := env.seedUser(t, domain.RoleSingle)
	member := env.seedUser(t, domain.RoleCommitteeMember)
	app := env.createApplication(t, applicant)
	advanceToCourtship(t, env, member, app.ID)

	notes := "observed good communication"
	_, err := env.Engine.UpdateWeekNotes(env.Ctx, applicant, app.ID, 1, engine.WeekUpdateOptions{CounselorNotes: &notes})
	var forbidden auth.ForbiddenError
	if !errors.As(err, &forbidden) {
		t.Fatalf("expected ForbiddenError, got %v", err)
	}

	w, err := env.Engine.UpdateWeekNotes(env.Ctx, member, app.ID, 1, engine.WeekUpdateOptions{CounselorNotes: &notes})
	if err != nil {
		t.Fatalf("counselor notes as member: %v", err)
	}
	if w.CounselorNotes != notes {
		t.Fatalf("notes not stored")
	}

	couple := "we discussed finances"
	w, err = env.Engine.UpdateWeekNotes(env.Ctx, applicant, app.ID, 1, engine.WeekUpdateOptions{CoupleNotes: &couple})
	if err != nil {
		t.Fatalf("couple notes: %v", err)
	}
	if w.CoupleNotes != couple {
		t.Fatalf("couple notes not stored")
	}
}

func TestCourtshipActionsRequireCourtshipStage(t *testing.T) {
	env := newTestEnv(t)
	applicant := env.seedUser(t, domain.RoleSingle)
	app := env.createApplication(t, applicant)

	_, err := env.Engine.StartWeek(env.Ctx, applicant, app.ID, 1)
	var notIn engine.NotInCourtshipError
	if !errors.As(err, &notIn) {
		t.Fatalf("expected NotInCourtshipError, got %v", err)
	}
}

func TestInitializeCourtshipIsOneShot(t *testing.T) {
	env := newTestEnv(t)
	applicant := env.seedUser(t, domain.RoleSingle)
	member := env.seedUser(t, domain.RoleCommitteeMember)
	app := env.createApplication(t, applicant)
	advanceToCourtship(t, env, member, app.ID)

	err := env.Engine.InitializeCourtship(env.Ctx, member, app.ID)
	var already engine.AlreadyInitializedError
	if !errors.As(err, &already) {
		t.Fatalf("expected AlreadyInitializedError, got %v", err)
	}
}

func TestProgressTracksCurrentWeek(t *testing.T) {
	env := newTestEnv(t)
	applicant := env.seedUser(t, domain.RoleSingle)
	member := env.seedUser(t, domain.RoleCommitteeMember)
	app := env.createApplication(t, applicant)
	advanceToCourtship(t, env, member, app.ID)

	for week := 1; week <= 3; week++ {
		if _, err := env.Engine.CompleteWeek(env.Ctx, applicant, app.ID, week, engine.WeekUpdateOptions{}); err != nil {
			t.Fatalf("complete week %d: %v", week, err)
		}
		*env.Clock = env.Clock.Add(7 * 24 * time.Hour)
	}

	p, err := env.Engine.Progress(env.Ctx, applicant, app.ID)
	if err != nil {
		t.Fatalf("progress: %v", err)
	}
	if p.CompletedWeeks != 3 {
		t.Fatalf("completed = %d", p.CompletedWeeks)
	}
	if p.CurrentWeek != 4 {
		t.Fatalf("current = %d", p.CurrentWeek)
	}
	if p.Done {
		t.Fatalf("should not be done")
	}
	if p.TotalWeeks != domain.CourtshipWeeks {
		t.Fatalf("total = %d", p.TotalWeeks)
	}
}
