package engine

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"courtline/internal/domain"
	"courtline/internal/engine/auth"
	"courtline/internal/events"
)

// CompatibilityResult is the verdict over both partners' medical tests.
type CompatibilityResult struct {
	Status  string               `json:"status" enum:"compatible,incompatible,pending"`
	Reasons []string             `json:"reasons,omitempty"`
	Tests   []domain.MedicalTest `json:"tests"`
}

// Genotype pairs that rule a couple out. Order is (brother, sister).
var incompatibleGenotypes = map[[2]string]bool{
	{"AS", "AS"}: true,
	{"AS", "SS"}: true,
	{"SS", "AS"}: true,
	{"SS", "SS"}: true,
}

// CheckCompatibility evaluates both partners' received test results. While
// either result is outstanding the status stays pending. A settled verdict is
// written back onto both test rows, and an incompatible one notifies the
// applicant.
func (e Engine) CheckCompatibility(ctx context.Context, actor auth.Actor, applicationID string) (CompatibilityResult, error) {
	app, err := e.GetApplication(ctx, actor, applicationID)
	if err != nil {
		return CompatibilityResult{}, err
	}
	tests, err := e.Repo.ListMedicalTests(ctx, applicationID)
	if err != nil {
		return CompatibilityResult{}, err
	}

	var brother, sister *domain.MedicalTest
	for i := range tests {
		if !tests[i].ResultsReceived {
			continue
		}
		switch tests[i].PersonType {
		case "brother":
			brother = &tests[i]
		case "sister":
			sister = &tests[i]
		}
	}
	if brother == nil || sister == nil {
		return CompatibilityResult{Status: "pending", Tests: tests}, nil
	}

	var reasons []string
	if brother.HIVTest == "positive" || sister.HIVTest == "positive" {
		reasons = append(reasons, "HIV test positive")
	}
	if incompatibleGenotypes[[2]string{brother.SickleCellTest, sister.SickleCellTest}] {
		reasons = append(reasons, fmt.Sprintf("sickle cell incompatibility (%s + %s)",
			brother.SickleCellTest, sister.SickleCellTest))
	}

	status := "compatible"
	if len(reasons) > 0 {
		status = "incompatible"
	}
	settled := brother.CompatibilityStatus == status && sister.CompatibilityStatus == status
	if !settled {
		now := e.nowRFC3339()
		for _, t := range []*domain.MedicalTest{brother, sister} {
			t.CompatibilityStatus = status
			t.UpdatedAt = now
			if err := e.Repo.UpdateMedicalTest(ctx, *t); err != nil {
				return CompatibilityResult{}, err
			}
		}
		if status == "incompatible" {
			n := domain.Notification{
				ID:            uuid.NewString(),
				UserID:        app.ApplicantID,
				ApplicationID: &applicationID,
				Title:         "Medical Results",
				Message:       "Please contact the marriage committee to discuss your medical test results.",
				Type:          "medical",
				CreatedAt:     now,
			}
			if err := e.Repo.InsertNotification(ctx, n); err != nil {
				return CompatibilityResult{}, err
			}
		}
		if err := e.Events.AppendDirect(ctx, "medical.compatibility", "application", applicationID, actor.ID, events.EventPayload{
			"status":  status,
			"reasons": reasons,
		}); err != nil {
			return CompatibilityResult{}, err
		}
	}
	return CompatibilityResult{Status: status, Reasons: reasons, Tests: tests}, nil
}
