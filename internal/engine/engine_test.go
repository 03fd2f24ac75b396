package engine_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"courtline/internal/config"
	"courtline/internal/db"
	"courtline/internal/domain"
	"courtline/internal/engine"
	"courtline/internal/engine/auth"
	"courtline/internal/migrate"
)

type testEnv struct {
	Engine engine.Engine
	Ctx    context.Context
	Clock  *time.Time
}

func newTestEnv(t *testing.T) testEnv {
	t.Helper()
	dir := t.TempDir()
	conn, err := db.Open(db.Config{Workspace: dir})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	clock := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	eng := engine.New(conn, config.Default())
	eng.Now = func() time.Time { return clock }
	eng.Events.Now = eng.Now
	return testEnv{Engine: eng, Ctx: context.Background(), Clock: &clock}
}

func (env testEnv) seedUser(t *testing.T, role string) auth.Actor {
	t.Helper()
	return env.seedUserIn(t, role, "south-west")
}

func (env testEnv) seedUserIn(t *testing.T, role, region string) auth.Actor {
	t.Helper()
	id := uuid.NewString()
	now := env.Clock.Format(time.RFC3339)
	u := domain.User{
		ID:           id,
		Email:        id + "@example.org",
		Username:     "u-" + id[:8],
		PasswordHash: "x",
		FullName:     "Test " + role,
		Role:         role,
		Region:       region,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := env.Engine.Repo.InsertUser(env.Ctx, u); err != nil {
		t.Fatalf("seed user: %v", err)
	}
	return auth.Actor{ID: u.ID, Role: u.Role, Region: u.Region}
}

func (env testEnv) createApplication(t *testing.T, applicant auth.Actor) domain.Application {
	t.Helper()
	app, err := env.Engine.CreateApplication(env.Ctx, applicant, engine.ApplicationCreateOptions{
		ApplicantType: "brother",
		PartnerName:   "Sister Grace",
		Age:           29,
		Occupation:    "nurse",
		IsBornAgain:   true,
		KnowsPartner:  true,
	})
	if err != nil {
		t.Fatalf("create application: %v", err)
	}
	return app
}

func TestCreateApplicationStartsFirstStage(t *testing.T) {
	env := newTestEnv(t)
	applicant := env.seedUser(t, domain.RoleSingle)
	app := env.createApplication(t, applicant)
	if app.CurrentStage != domain.StageApplicationSubmitted {
		t.Fatalf("stage = %s", app.CurrentStage)
	}
	if app.Status != domain.StatusPending {
		t.Fatalf("status = %s", app.Status)
	}
	if app.ApplicationNumber == "" {
		t.Fatalf("expected application number")
	}
	history, err := env.Engine.Repo.ListStageHistory(env.Ctx, app.ID)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(history) != 1 || history[0].Status != domain.StageInProgress {
		t.Fatalf("expected one open stage record, got %+v", history)
	}
}

func TestStageAdvanceHappyPath(t *testing.T) {
	env := newTestEnv(t)
	applicant := env.seedUser(t, domain.RoleSingle)
	member := env.seedUser(t, domain.RoleCommitteeMember)
	central := env.seedUser(t, domain.RoleCentralCommittee)
	app := env.createApplication(t, applicant)

	var err error
	for app.CurrentStage != domain.StageApproved {
		actor := member
		if app.CurrentStage == domain.StageCentralCommitteeReview {
			actor = central
		}
		app, err = env.Engine.AdvanceStage(env.Ctx, actor, app.ID, engine.StageAdvanceOptions{})
		if err != nil {
			t.Fatalf("advance from %s: %v", app.CurrentStage, err)
		}
	}
	if app.Status != domain.StatusApproved {
		t.Fatalf("status = %s", app.Status)
	}
	if app.ApprovedAt == nil {
		t.Fatalf("expected approved_at")
	}

	history, err := env.Engine.Repo.ListStageHistory(env.Ctx, app.ID)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(history) != len(domain.StageSequence()) {
		t.Fatalf("expected %d records, got %d", len(domain.StageSequence()), len(history))
	}
	for _, rec := range history {
		if rec.CompletedAt == nil {
			t.Fatalf("record %s still open", rec.StageName)
		}
	}
}

func TestRegionScopedApplicationReads(t *testing.T) {
	env := newTestEnv(t)
	applicant := env.seedUser(t, domain.RoleSingle)
	local := env.seedUser(t, domain.RoleCommitteeMember)
	outsider := env.seedUserIn(t, domain.RoleCommitteeMember, "north-east")
	central := env.seedUserIn(t, domain.RoleCentralCommittee, "north-east")
	app := env.createApplication(t, applicant)

	var forbidden auth.ForbiddenError
	if _, err := env.Engine.GetApplication(env.Ctx, outsider, app.ID); !errors.As(err, &forbidden) {
		t.Fatalf("expected forbidden for out-of-region member, got %v", err)
	}
	if _, err := env.Engine.GetApplication(env.Ctx, local, app.ID); err != nil {
		t.Fatalf("same-region member: %v", err)
	}
	if _, err := env.Engine.GetApplication(env.Ctx, central, app.ID); err != nil {
		t.Fatalf("central committee: %v", err)
	}
	if _, err := env.Engine.GetApplication(env.Ctx, applicant, app.ID); err != nil {
		t.Fatalf("applicant: %v", err)
	}
}

func TestStageNotesWithoutAdvancing(t *testing.T) {
	env := newTestEnv(t)
	applicant := env.seedUser(t, domain.RoleSingle)
	member := env.seedUser(t, domain.RoleCommitteeMember)
	app := env.createApplication(t, applicant)

	got, err := env.Engine.AdvanceStage(env.Ctx, member, app.ID, engine.StageAdvanceOptions{
		Outcome: domain.StageInProgress,
		Notes:   "form needs the pastor's countersignature",
	})
	if err != nil {
		t.Fatalf("in_progress update: %v", err)
	}
	if got.CurrentStage != domain.StageApplicationSubmitted {
		t.Fatalf("stage moved to %s", got.CurrentStage)
	}
	history, err := env.Engine.Repo.ListStageHistory(env.Ctx, app.ID)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(history) != 1 {
		t.Fatalf("expected the single open record, got %d", len(history))
	}
	rec := history[0]
	if rec.Status != domain.StageInProgress || rec.CompletedAt != nil {
		t.Fatalf("record must stay open, got %+v", rec)
	}
	if rec.Notes != "form needs the pastor's countersignature" {
		t.Fatalf("notes = %q", rec.Notes)
	}

	// Completing afterwards still moves to the immediate successor.
	got, err = env.Engine.AdvanceStage(env.Ctx, member, app.ID, engine.StageAdvanceOptions{})
	if err != nil {
		t.Fatalf("advance after notes: %v", err)
	}
	if got.CurrentStage != domain.StageFormReview {
		t.Fatalf("stage = %s", got.CurrentStage)
	}
}

func TestStageAdvanceRejectsSkip(t *testing.T) {
	env := newTestEnv(t)
	applicant := env.seedUser(t, domain.RoleSingle)
	member := env.seedUser(t, domain.RoleCommitteeMember)
	app := env.createApplication(t, applicant)

	_, err := env.Engine.AdvanceStage(env.Ctx, member, app.ID, engine.StageAdvanceOptions{ToStage: domain.StageCourtship})
	var invalid engine.InvalidTransitionError
	if !errors.As(err, &invalid) {
		t.Fatalf("expected InvalidTransitionError, got %v", err)
	}
	if invalid.To != domain.StageCourtship {
		t.Fatalf("unexpected target %s", invalid.To)
	}
}

func TestStageAdvanceForbiddenForSingles(t *testing.T) {
	env := newTestEnv(t)
	applicant := env.seedUser(t, domain.RoleSingle)
	app := env.createApplication(t, applicant)

	_, err := env.Engine.AdvanceStage(env.Ctx, applicant, app.ID, engine.StageAdvanceOptions{})
	var forbidden auth.ForbiddenError
	if !errors.As(err, &forbidden) {
		t.Fatalf("expected ForbiddenError, got %v", err)
	}
}

func TestCentralReviewNeedsCentralCommittee(t *testing.T) {
	env := newTestEnv(t)
	applicant := env.seedUser(t, domain.RoleSingle)
	member := env.seedUser(t, domain.RoleCommitteeMember)
	app := env.createApplication(t, applicant)

	var err error
	for app.CurrentStage != domain.StageCentralCommitteeReview {
		app, err = env.Engine.AdvanceStage(env.Ctx, member, app.ID, engine.StageAdvanceOptions{})
		if err != nil {
			t.Fatalf("advance: %v", err)
		}
	}
	_, err = env.Engine.AdvanceStage(env.Ctx, member, app.ID, engine.StageAdvanceOptions{})
	var forbidden auth.ForbiddenError
	if !errors.As(err, &forbidden) {
		t.Fatalf("expected ForbiddenError for member at central review, got %v", err)
	}
}

func TestRejectionIsTerminal(t *testing.T) {
	env := newTestEnv(t)
	applicant := env.seedUser(t, domain.RoleSingle)
	member := env.seedUser(t, domain.RoleCommitteeMember)
	app := env.createApplication(t, applicant)

	app, err := env.Engine.AdvanceStage(env.Ctx, member, app.ID, engine.StageAdvanceOptions{
		Outcome: domain.StageRejected,
		Notes:   "incomplete form",
	})
	if err != nil {
		t.Fatalf("reject: %v", err)
	}
	if app.Status != domain.StatusRejected {
		t.Fatalf("status = %s", app.Status)
	}

	_, err = env.Engine.AdvanceStage(env.Ctx, member, app.ID, engine.StageAdvanceOptions{})
	var terminal engine.AlreadyTerminalError
	if !errors.As(err, &terminal) {
		t.Fatalf("expected AlreadyTerminalError, got %v", err)
	}
}

func TestCourtshipSeededOnStageEntry(t *testing.T) {
	env := newTestEnv(t)
	applicant := env.seedUser(t, domain.RoleSingle)
	member := env.seedUser(t, domain.RoleCommitteeMember)
	app := env.createApplication(t, applicant)

	var err error
	for app.CurrentStage != domain.StageCourtship {
		app, err = env.Engine.AdvanceStage(env.Ctx, member, app.ID, engine.StageAdvanceOptions{})
		if err != nil {
			t.Fatalf("advance: %v", err)
		}
	}
	weeks, err := env.Engine.Repo.ListCourtshipWeeks(env.Ctx, app.ID)
	if err != nil {
		t.Fatalf("weeks: %v", err)
	}
	if len(weeks) != domain.CourtshipWeeks {
		t.Fatalf("expected %d weeks, got %d", domain.CourtshipWeeks, len(weeks))
	}
	for _, w := range weeks {
		if w.Status != domain.WeekNotStarted {
			t.Fatalf("week %d seeded as %s", w.Week, w.Status)
		}
	}
}

func TestHoldToggle(t *testing.T) {
	env := newTestEnv(t)
	applicant := env.seedUser(t, domain.RoleSingle)
	member := env.seedUser(t, domain.RoleCommitteeMember)
	app := env.createApplication(t, applicant)

	app, err := env.Engine.SetApplicationHold(env.Ctx, member, app.ID, true, "missing documents")
	if err != nil {
		t.Fatalf("hold: %v", err)
	}
	if app.Status != domain.StatusOnHold {
		t.Fatalf("status = %s", app.Status)
	}
	app, err = env.Engine.SetApplicationHold(env.Ctx, member, app.ID, false, "")
	if err != nil {
		t.Fatalf("resume: %v", err)
	}
	if app.Status != domain.StatusPending {
		t.Fatalf("status = %s", app.Status)
	}
}

func TestAssignApplication(t *testing.T) {
	env := newTestEnv(t)
	applicant := env.seedUser(t, domain.RoleSingle)
	member := env.seedUser(t, domain.RoleCommitteeMember)
	central := env.seedUser(t, domain.RoleCentralCommittee)
	app := env.createApplication(t, applicant)

	app, err := env.Engine.AssignApplication(env.Ctx, central, app.ID, member.ID)
	if err != nil {
		t.Fatalf("assign: %v", err)
	}
	if app.AssignedCommitteeMemberID == nil || *app.AssignedCommitteeMemberID != member.ID {
		t.Fatalf("assignment not recorded")
	}

	// singles may not be assigned
	_, err = env.Engine.AssignApplication(env.Ctx, central, app.ID, applicant.ID)
	if err == nil {
		t.Fatalf("expected assignment to single to fail")
	}
	// and members may not assign
	_, err = env.Engine.AssignApplication(env.Ctx, member, app.ID, member.ID)
	var forbidden auth.ForbiddenError
	if !errors.As(err, &forbidden) {
		t.Fatalf("expected ForbiddenError, got %v", err)
	}
}

func TestEventsLoggedOnWorkflowChanges(t *testing.T) {
	env := newTestEnv(t)
	applicant := env.seedUser(t, domain.RoleSingle)
	member := env.seedUser(t, domain.RoleCommitteeMember)
	app := env.createApplication(t, applicant)
	if _, err := env.Engine.AdvanceStage(env.Ctx, member, app.ID, engine.StageAdvanceOptions{}); err != nil {
		t.Fatalf("advance: %v", err)
	}
	events, err := env.Engine.Repo.LatestEvents(env.Ctx, 10, "", "application", app.ID)
	if err != nil {
		t.Fatalf("events: %v", err)
	}
	if len(events) < 2 {
		t.Fatalf("expected created and advanced events, got %d", len(events))
	}
}
