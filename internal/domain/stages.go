package domain

// Application statuses.
const (
	StatusPending  = "pending"
	StatusApproved = "approved"
	StatusRejected = "rejected"
	StatusOnHold   = "on_hold"
)

// Stage record statuses.
const (
	StagePending    = "pending"
	StageInProgress = "in_progress"
	StageCompleted  = "completed"
	StageRejected   = "rejected"
)

// Courtship week statuses.
const (
	WeekNotStarted = "not_started"
	WeekInProgress = "in_progress"
	WeekCompleted  = "completed"
)

// CourtshipWeeks is the length of the curriculum.
const CourtshipWeeks = 25

// CourtshipCheckIns is the number of counseling check-ins scheduled
// when the courtship period opens, one every CheckInIntervalDays.
const (
	CourtshipCheckIns   = 6
	CheckInIntervalDays = 30
)

// Stages in their fixed review order. A transition may only target the
// immediate successor; StageApproved is terminal.
const (
	StageApplicationSubmitted   = "application_submitted"
	StageFormReview             = "form_review"
	StageInitialInterview       = "initial_interview"
	StageMedicalTests           = "medical_tests"
	StagePartnerInterview       = "partner_interview"
	StageFamilyIntroduction     = "family_introduction"
	StageCourtship              = "courtship"
	StageCentralCommitteeReview = "central_committee_review"
	StageApproved               = "approved"
)

var stageSequence = []string{
	StageApplicationSubmitted,
	StageFormReview,
	StageInitialInterview,
	StageMedicalTests,
	StagePartnerInterview,
	StageFamilyIntroduction,
	StageCourtship,
	StageCentralCommitteeReview,
	StageApproved,
}

var stageTitles = map[string]string{
	StageApplicationSubmitted:   "Application Submitted",
	StageFormReview:             "Form Review",
	StageInitialInterview:       "Initial Interview",
	StageMedicalTests:           "Medical Tests",
	StagePartnerInterview:       "Partner Interview",
	StageFamilyIntroduction:     "Family Introduction",
	StageCourtship:              "Courtship",
	StageCentralCommitteeReview: "Central Committee Review",
	StageApproved:               "Approved",
}

// StageSequence returns a copy of the fixed stage order.
func StageSequence() []string {
	out := make([]string, len(stageSequence))
	copy(out, stageSequence)
	return out
}

// StageOrder returns the 1-based position of a stage, or 0 for an
// unknown stage name.
func StageOrder(stage string) int {
	for i, s := range stageSequence {
		if s == stage {
			return i + 1
		}
	}
	return 0
}

// NextStage returns the immediate successor of stage in the fixed order.
// ok is false for the terminal stage or an unknown name.
func NextStage(stage string) (next string, ok bool) {
	for i, s := range stageSequence {
		if s == stage {
			if i+1 < len(stageSequence) {
				return stageSequence[i+1], true
			}
			return "", false
		}
	}
	return "", false
}

// StageTitle returns the display name for a stage key.
func StageTitle(stage string) string {
	if t, ok := stageTitles[stage]; ok {
		return t
	}
	return stage
}

// IsCommitteeRole reports whether role may drive the application workflow.
func IsCommitteeRole(role string) bool {
	switch role {
	case RoleCommitteeMember, RoleCentralCommittee, RoleOverseer:
		return true
	}
	return false
}
