package engine

import (
	"fmt"

	"courtline/internal/domain"
)

// InvalidTransitionError is returned when a stage advance targets
// anything other than the immediate successor in the fixed order.
type InvalidTransitionError struct {
	From string
	To   string
}

func (e InvalidTransitionError) Error() string {
	return fmt.Sprintf("cannot move from %s to %s; next stage is %s", e.From, e.To, nextOrNone(e.From))
}

func nextOrNone(stage string) string {
	if next, ok := domain.NextStage(stage); ok {
		return next
	}
	return "none"
}

// AlreadyTerminalError is returned when an application in a terminal
// status receives a workflow action.
type AlreadyTerminalError struct {
	Status string
}

func (e AlreadyTerminalError) Error() string {
	return fmt.Sprintf("application is %s and can no longer change stage", e.Status)
}

// WrongWeekError is returned when a courtship action targets a week
// other than the active one.
type WrongWeekError struct {
	Requested int
	Active    int
}

func (e WrongWeekError) Error() string {
	return fmt.Sprintf("week %d is not the active week; week %d is", e.Requested, e.Active)
}

// PacingViolationError is returned when a second week would be
// completed inside the pacing window.
type PacingViolationError struct {
	Week        int
	NextAllowed string
}

func (e PacingViolationError) Error() string {
	return fmt.Sprintf("week %d cannot be completed before %s", e.Week, e.NextAllowed)
}

// AlreadyInitializedError is returned when the courtship tracker for an
// application already has its week rows.
type AlreadyInitializedError struct {
	ApplicationID string
}

func (e AlreadyInitializedError) Error() string {
	return fmt.Sprintf("courtship tracking already initialized for application %s", e.ApplicationID)
}

// NotInCourtshipError is returned for courtship actions on an
// application that has not reached the courtship stage.
type NotInCourtshipError struct {
	Stage string
}

func (e NotInCourtshipError) Error() string {
	return fmt.Sprintf("application is in stage %s, not courtship", e.Stage)
}
