package auth

import (
	"fmt"

	"courtline/internal/domain"
)

// ForbiddenError indicates the actor's role does not allow an action.
type ForbiddenError struct {
	Action string
}

func (e ForbiddenError) Error() string {
	return fmt.Sprintf("role does not permit %s", e.Action)
}

// Actor is the resolved identity behind a request.
type Actor struct {
	ID     string
	Role   string
	Region string
}

// CanAdvanceStage reports whether the actor may drive an application's
// workflow. Central committee review and final approval are reserved
// for central committee and overseer roles.
func CanAdvanceStage(actor Actor, fromStage string) bool {
	if !domain.IsCommitteeRole(actor.Role) {
		return false
	}
	if fromStage == domain.StageCentralCommitteeReview {
		return actor.Role == domain.RoleCentralCommittee || actor.Role == domain.RoleOverseer
	}
	return true
}

// CanViewRegion reports whether the actor may read data scoped to a
// region. Committee members are confined to their own region; central
// committee and overseers see every region.
func CanViewRegion(actor Actor, region string) bool {
	switch actor.Role {
	case domain.RoleCentralCommittee, domain.RoleOverseer:
		return true
	case domain.RoleCommitteeMember:
		return actor.Region == region
	}
	return false
}

// CanViewApplication reports whether the actor may read an application.
// Applicants and their partner see their own; committee access follows
// CanViewRegion over the applicant's region.
func CanViewApplication(actor Actor, app domain.Application, applicantRegion string) bool {
	if actor.ID == app.ApplicantID {
		return true
	}
	if app.PartnerID != nil && actor.ID == *app.PartnerID {
		return true
	}
	if !domain.IsCommitteeRole(actor.Role) {
		return false
	}
	return CanViewRegion(actor, applicantRegion)
}

// CanEditCourtship reports whether the actor may record courtship
// progress. The couple and committee roles may; other singles may not.
func CanEditCourtship(actor Actor, app domain.Application) bool {
	if domain.IsCommitteeRole(actor.Role) {
		return true
	}
	if actor.ID == app.ApplicantID {
		return true
	}
	return app.PartnerID != nil && actor.ID == *app.PartnerID
}

// CanWriteCounselorNotes restricts counselor note fields to committee roles.
func CanWriteCounselorNotes(actor Actor) bool {
	return domain.IsCommitteeRole(actor.Role)
}

// CanAssign reports whether the actor may assign applications to
// committee members.
func CanAssign(actor Actor) bool {
	return actor.Role == domain.RoleCentralCommittee || actor.Role == domain.RoleOverseer
}

// CanManageUsers gates the admin surface.
func CanManageUsers(actor Actor) bool {
	return actor.Role == domain.RoleOverseer
}

// CanHandleComplaints reports whether the actor may review and resolve
// complaints.
func CanHandleComplaints(actor Actor) bool {
	return actor.Role == domain.RoleCentralCommittee || actor.Role == domain.RoleOverseer
}

// CanRecordMedical restricts medical result entry to committee roles.
func CanRecordMedical(actor Actor) bool {
	return domain.IsCommitteeRole(actor.Role)
}
