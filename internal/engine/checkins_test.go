package engine_test

import (
	"errors"
	"testing"

	"courtline/internal/domain"
	"courtline/internal/engine"
	"courtline/internal/engine/auth"
)

func TestCheckInsScheduledWithCourtship(t *testing.T) {
	env := newTestEnv(t)
	applicant := env.seedUser(t, domain.RoleSingle)
	member := env.seedUser(t, domain.RoleCommitteeMember)
	app := env.createApplication(t, applicant)
	advanceToCourtship(t, env, member, app.ID)

	checkIns, err := env.Engine.ListCheckIns(env.Ctx, applicant, app.ID)
	if err != nil {
		t.Fatalf("list check-ins: %v", err)
	}
	if len(checkIns) != domain.CourtshipCheckIns {
		t.Fatalf("check-ins = %d, want %d", len(checkIns), domain.CourtshipCheckIns)
	}
	for i, c := range checkIns {
		if c.Status != "scheduled" {
			t.Fatalf("check-in %d status = %s", i, c.Status)
		}
		if i > 0 && c.ScheduledDate <= checkIns[i-1].ScheduledDate {
			t.Fatalf("check-ins not ordered by date: %s after %s", c.ScheduledDate, checkIns[i-1].ScheduledDate)
		}
	}
}

func TestCoupleFeedbackOnCheckIn(t *testing.T) {
	env := newTestEnv(t)
	applicant := env.seedUser(t, domain.RoleSingle)
	member := env.seedUser(t, domain.RoleCommitteeMember)
	app := env.createApplication(t, applicant)
	advanceToCourtship(t, env, member, app.ID)

	checkIns, err := env.Engine.ListCheckIns(env.Ctx, applicant, app.ID)
	if err != nil {
		t.Fatalf("list check-ins: %v", err)
	}

	feedback := "the weekly topics opened real conversations"
	updated, err := env.Engine.UpdateCheckIn(env.Ctx, applicant, checkIns[0].ID, engine.CheckInUpdateOptions{
		CoupleFeedback: &feedback,
	})
	if err != nil {
		t.Fatalf("update check-in: %v", err)
	}
	if updated.CoupleFeedback != feedback {
		t.Fatalf("couple feedback = %q", updated.CoupleFeedback)
	}

	// The couple cannot close their own check-in.
	done := "completed"
	_, err = env.Engine.UpdateCheckIn(env.Ctx, applicant, checkIns[0].ID, engine.CheckInUpdateOptions{Status: &done})
	var forbidden auth.ForbiddenError
	if !errors.As(err, &forbidden) {
		t.Fatalf("expected ForbiddenError, got %v", err)
	}

	stranger := env.seedUser(t, domain.RoleSingle)
	_, err = env.Engine.UpdateCheckIn(env.Ctx, stranger, checkIns[0].ID, engine.CheckInUpdateOptions{CoupleFeedback: &feedback})
	if !errors.As(err, &forbidden) {
		t.Fatalf("expected ForbiddenError for stranger, got %v", err)
	}
}

func TestCommitteeCompletesCheckIn(t *testing.T) {
	env := newTestEnv(t)
	applicant := env.seedUser(t, domain.RoleSingle)
	member := env.seedUser(t, domain.RoleCommitteeMember)
	app := env.createApplication(t, applicant)
	advanceToCourtship(t, env, member, app.ID)

	checkIns, err := env.Engine.ListCheckIns(env.Ctx, member, app.ID)
	if err != nil {
		t.Fatalf("list check-ins: %v", err)
	}

	done := "completed"
	notes := "couple aligned on finances, follow up on housing"
	updated, err := env.Engine.UpdateCheckIn(env.Ctx, member, checkIns[0].ID, engine.CheckInUpdateOptions{
		Status:         &done,
		CounselorNotes: &notes,
	})
	if err != nil {
		t.Fatalf("complete check-in: %v", err)
	}
	if updated.Status != "completed" {
		t.Fatalf("status = %s", updated.Status)
	}
	if updated.CompletedDate == nil {
		t.Fatal("completed date not stamped")
	}
	if updated.ConductedByID == nil || *updated.ConductedByID != member.ID {
		t.Fatalf("conducted by = %v, want %s", updated.ConductedByID, member.ID)
	}

	progress, err := env.Engine.Progress(env.Ctx, member, app.ID)
	if err != nil {
		t.Fatalf("progress: %v", err)
	}
	if progress.TotalCheckIns != domain.CourtshipCheckIns || progress.CompletedCheckIns != 1 {
		t.Fatalf("check-in counts = %d/%d", progress.CompletedCheckIns, progress.TotalCheckIns)
	}
}

func TestUpcomingCheckInsScopedByRole(t *testing.T) {
	env := newTestEnv(t)
	applicant := env.seedUser(t, domain.RoleSingle)
	member := env.seedUser(t, domain.RoleCommitteeMember)
	outsider := env.seedUserIn(t, domain.RoleCommitteeMember, "north-east")
	overseer := env.seedUserIn(t, domain.RoleOverseer, "north-east")
	app := env.createApplication(t, applicant)
	advanceToCourtship(t, env, member, app.ID)

	// Only the first check-in falls inside the 30-day horizon.
	own, err := env.Engine.UpcomingCheckIns(env.Ctx, applicant)
	if err != nil {
		t.Fatalf("upcoming for applicant: %v", err)
	}
	if len(own) != 1 {
		t.Fatalf("applicant sees %d upcoming check-ins, want 1", len(own))
	}
	if own[0].ApplicationNumber != app.ApplicationNumber {
		t.Fatalf("application number = %s", own[0].ApplicationNumber)
	}

	local, err := env.Engine.UpcomingCheckIns(env.Ctx, member)
	if err != nil {
		t.Fatalf("upcoming for member: %v", err)
	}
	if len(local) != 1 {
		t.Fatalf("local member sees %d, want 1", len(local))
	}

	foreign, err := env.Engine.UpcomingCheckIns(env.Ctx, outsider)
	if err != nil {
		t.Fatalf("upcoming for outsider: %v", err)
	}
	if len(foreign) != 0 {
		t.Fatalf("outside member sees %d, want 0", len(foreign))
	}

	all, err := env.Engine.UpcomingCheckIns(env.Ctx, overseer)
	if err != nil {
		t.Fatalf("upcoming for overseer: %v", err)
	}
	if len(all) != 1 {
		t.Fatalf("overseer sees %d, want 1", len(all))
	}
}
