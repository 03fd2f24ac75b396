package engine

import (
	"context"
	"fmt"
	"time"

	"courtline/internal/domain"
	"courtline/internal/engine/auth"
	"courtline/internal/events"
	"courtline/internal/repo"
)

// ListCheckIns returns the counseling schedule for an application,
// ordered by scheduled date. Visibility follows GetApplication.
func (e Engine) ListCheckIns(ctx context.Context, actor auth.Actor, applicationID string) ([]domain.CheckIn, error) {
	if _, err := e.GetApplication(ctx, actor, applicationID); err != nil {
		return nil, err
	}
	return e.Repo.ListCheckIns(ctx, applicationID)
}

// CheckInUpdateOptions carry a partial check-in edit. Which fields an
// actor may touch depends on their role; see UpdateCheckIn.
type CheckInUpdateOptions struct {
	Status         *string
	MeetingFormat  *string
	CoupleFeedback *string
	CounselorNotes *string
	IssuesRaised   *string
	ActionItems    *string
}

// UpdateCheckIn edits a check-in. The couple may only write their own
// feedback; committee actors may reschedule state, record notes and
// close the session. Completing a check-in stamps the completion time
// and the conducting counselor.
func (e Engine) UpdateCheckIn(ctx context.Context, actor auth.Actor, checkInID string, opts CheckInUpdateOptions) (domain.CheckIn, error) {
	c, err := e.Repo.GetCheckIn(ctx, checkInID)
	if err != nil {
		return domain.CheckIn{}, err
	}
	app, err := e.GetApplication(ctx, actor, c.ApplicationID)
	if err != nil {
		return domain.CheckIn{}, err
	}

	committee := domain.IsCommitteeRole(actor.Role)
	if !committee {
		if opts.Status != nil || opts.CounselorNotes != nil || opts.IssuesRaised != nil || opts.ActionItems != nil || opts.MeetingFormat != nil {
			return domain.CheckIn{}, auth.ForbiddenError{Action: "check-in review"}
		}
		if opts.CoupleFeedback != nil {
			c.CoupleFeedback = *opts.CoupleFeedback
		}
	} else {
		if opts.CoupleFeedback != nil {
			c.CoupleFeedback = *opts.CoupleFeedback
		}
		if opts.CounselorNotes != nil {
			c.CounselorNotes = *opts.CounselorNotes
		}
		if opts.IssuesRaised != nil {
			c.IssuesRaised = *opts.IssuesRaised
		}
		if opts.ActionItems != nil {
			c.ActionItems = *opts.ActionItems
		}
		if opts.MeetingFormat != nil {
			c.MeetingFormat = *opts.MeetingFormat
		}
		if opts.Status != nil {
			switch *opts.Status {
			case "scheduled", "completed", "cancelled":
			default:
				return domain.CheckIn{}, fmt.Errorf("status must be scheduled, completed, or cancelled")
			}
			c.Status = *opts.Status
			if c.Status == "completed" && c.CompletedDate == nil {
				now := e.nowRFC3339()
				c.CompletedDate = &now
				c.ConductedByID = &actor.ID
			}
		}
	}

	c.UpdatedAt = e.nowRFC3339()
	if err := e.Repo.UpdateCheckIn(ctx, c); err != nil {
		return domain.CheckIn{}, err
	}
	_ = e.Events.AppendDirect(ctx, "courtship.checkin_updated", "check_in", c.ID, actor.ID,
		events.EventPayload{"application_id": app.ID, "status": c.Status})
	return c, nil
}

// UpcomingCheckIns lists check-ins still scheduled within the next 30
// days. Singles see their own; committee members their region; central
// committee and overseers everything.
func (e Engine) UpcomingCheckIns(ctx context.Context, actor auth.Actor) ([]repo.UpcomingCheckIn, error) {
	now := e.now().UTC()
	f := repo.UpcomingCheckInFilters{
		From:  now.Format(time.RFC3339),
		Until: now.AddDate(0, 0, 30).Format(time.RFC3339),
	}
	switch {
	case !domain.IsCommitteeRole(actor.Role):
		f.ApplicantID = actor.ID
	case actor.Role == domain.RoleCommitteeMember:
		f.ApplicantRegion = actor.Region
	}
	return e.Repo.ListUpcomingCheckIns(ctx, f)
}
