package engine_test

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"courtline/internal/domain"
	"courtline/internal/engine/auth"
)

func (env testEnv) seedMedicalTest(t *testing.T, applicationID, personType, hiv, genotype string, received bool) domain.MedicalTest {
	t.Helper()
	now := env.Clock.Format(time.RFC3339)
	mt := domain.MedicalTest{
		ID:              uuid.NewString(),
		ApplicationID:   applicationID,
		PersonType:      personType,
		HIVTest:         hiv,
		SickleCellTest:  genotype,
		ResultsReceived: received,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if received {
		mt.ResultsReceivedAt = &now
	}
	if err := env.Engine.Repo.InsertMedicalTest(env.Ctx, mt); err != nil {
		t.Fatalf("seed medical test: %v", err)
	}
	return mt
}

func TestCompatibilityPendingUntilBothResults(t *testing.T) {
	env := newTestEnv(t)
	applicant := env.seedUser(t, domain.RoleSingle)
	member := env.seedUser(t, domain.RoleCommitteeMember)
	app := env.createApplication(t, applicant)

	env.seedMedicalTest(t, app.ID, "brother", "negative", "AA", true)
	env.seedMedicalTest(t, app.ID, "sister", "negative", "AS", false)

	res, err := env.Engine.CheckCompatibility(env.Ctx, member, app.ID)
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if res.Status != "pending" {
		t.Fatalf("status = %s", res.Status)
	}
}

func TestCompatibilityVerdictPersisted(t *testing.T) {
	env := newTestEnv(t)
	applicant := env.seedUser(t, domain.RoleSingle)
	member := env.seedUser(t, domain.RoleCommitteeMember)
	app := env.createApplication(t, applicant)

	brother := env.seedMedicalTest(t, app.ID, "brother", "negative", "AA", true)
	env.seedMedicalTest(t, app.ID, "sister", "negative", "AS", true)

	res, err := env.Engine.CheckCompatibility(env.Ctx, member, app.ID)
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if res.Status != "compatible" || len(res.Reasons) != 0 {
		t.Fatalf("unexpected result: %+v", res)
	}
	stored, err := env.Engine.Repo.GetMedicalTest(env.Ctx, brother.ID)
	if err != nil {
		t.Fatalf("get test: %v", err)
	}
	if stored.CompatibilityStatus != "compatible" {
		t.Fatalf("stored status = %s", stored.CompatibilityStatus)
	}
}

func TestIncompatibleGenotypesNotifyApplicant(t *testing.T) {
	env := newTestEnv(t)
	applicant := env.seedUser(t, domain.RoleSingle)
	member := env.seedUser(t, domain.RoleCommitteeMember)
	app := env.createApplication(t, applicant)

	env.seedMedicalTest(t, app.ID, "brother", "negative", "AS", true)
	env.seedMedicalTest(t, app.ID, "sister", "negative", "SS", true)

	res, err := env.Engine.CheckCompatibility(env.Ctx, member, app.ID)
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if res.Status != "incompatible" || len(res.Reasons) != 1 {
		t.Fatalf("unexpected result: %+v", res)
	}

	notes, err := env.Engine.Repo.ListNotifications(env.Ctx, applicant.ID, true, 10, 0)
	if err != nil {
		t.Fatalf("notifications: %v", err)
	}
	if len(notes) != 1 {
		t.Fatalf("expected one notification, got %d", len(notes))
	}

	// A repeat check leaves the settled verdict alone.
	if _, err := env.Engine.CheckCompatibility(env.Ctx, member, app.ID); err != nil {
		t.Fatalf("repeat check: %v", err)
	}
	notes, err = env.Engine.Repo.ListNotifications(env.Ctx, applicant.ID, true, 10, 0)
	if err != nil {
		t.Fatalf("notifications: %v", err)
	}
	if len(notes) != 1 {
		t.Fatalf("verdict must settle once, got %d notifications", len(notes))
	}
}

func TestPositiveHIVIsIncompatible(t *testing.T) {
	env := newTestEnv(t)
	applicant := env.seedUser(t, domain.RoleSingle)
	member := env.seedUser(t, domain.RoleCommitteeMember)
	app := env.createApplication(t, applicant)

	env.seedMedicalTest(t, app.ID, "brother", "positive", "AA", true)
	env.seedMedicalTest(t, app.ID, "sister", "negative", "AA", true)

	res, err := env.Engine.CheckCompatibility(env.Ctx, member, app.ID)
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if res.Status != "incompatible" {
		t.Fatalf("status = %s", res.Status)
	}
}

func TestCompatibilityHiddenFromStrangers(t *testing.T) {
	env := newTestEnv(t)
	applicant := env.seedUser(t, domain.RoleSingle)
	stranger := env.seedUser(t, domain.RoleSingle)
	app := env.createApplication(t, applicant)

	var forbidden auth.ForbiddenError
	_, err := env.Engine.CheckCompatibility(env.Ctx, stranger, app.ID)
	if !errors.As(err, &forbidden) {
		t.Fatalf("expected forbidden, got %v", err)
	}
}
