package server

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/google/uuid"

	"courtline/internal/domain"
	"courtline/internal/engine"
	"courtline/internal/engine/auth"
	"courtline/internal/events"
	"courtline/internal/repo"
)

type MeetingRequest struct {
	ApplicationID   string `json:"application_id"`
	Title           string `json:"title"`
	Description     string `json:"description,omitempty"`
	ScheduledDate   string `json:"scheduled_date" format:"date-time"`
	DurationMinutes int    `json:"duration_minutes,omitempty" minimum:"0"`
	Location        string `json:"location,omitempty"`
	MeetingType     string `json:"meeting_type" enum:"interview,review,introduction,check_in,final_approval"`
	MeetingFormat   string `json:"meeting_format,omitempty" enum:"in_person,phone,video"`
	Attendees       string `json:"attendees,omitempty"`
	Notes           string `json:"notes,omitempty"`
}

type MeetingUpdateRequest struct {
	Title           *string `json:"title,omitempty"`
	Description     *string `json:"description,omitempty"`
	ScheduledDate   *string `json:"scheduled_date,omitempty" format:"date-time"`
	DurationMinutes *int    `json:"duration_minutes,omitempty" minimum:"0"`
	Location        *string `json:"location,omitempty"`
	Status          *string `json:"status,omitempty" enum:"scheduled,completed,cancelled"`
	Attendees       *string `json:"attendees,omitempty"`
	Notes           *string `json:"notes,omitempty"`
	Outcome         *string `json:"outcome,omitempty"`
}

func registerMeetings(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "create-meeting",
		Method:      http.MethodPost,
		Path:        "/meetings",
		Summary:     "Schedule a meeting",
		Errors: []int{
			http.StatusBadRequest,
			http.StatusUnauthorized,
			http.StatusForbidden,
			http.StatusNotFound,
		},
	}, func(ctx context.Context, input *struct {
		Body MeetingRequest `json:"body"`
	}) (*struct {
		Body domain.Meeting `json:"body"`
	}, error) {
		actor, authErr := actorFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if !domain.IsCommitteeRole(actor.Role) {
			return nil, handleError(auth.ForbiddenError{Action: "schedule meetings"})
		}
		req := input.Body
		if req.ApplicationID == "" || req.Title == "" || req.ScheduledDate == "" || req.MeetingType == "" {
			return nil, newAPIError(http.StatusBadRequest, "bad_request",
				"application_id, title, scheduled_date and meeting_type are required", nil)
		}
		if _, err := e.Repo.GetApplication(ctx, req.ApplicationID); err != nil {
			return nil, handleError(err)
		}
		now := time.Now().UTC().Format(time.RFC3339)
		format := req.MeetingFormat
		if format == "" {
			format = "in_person"
		}
		organizer := actor.ID
		m := domain.Meeting{
			ID:              uuid.NewString(),
			ApplicationID:   req.ApplicationID,
			Title:           req.Title,
			Description:     req.Description,
			ScheduledDate:   req.ScheduledDate,
			DurationMinutes: req.DurationMinutes,
			Location:        req.Location,
			MeetingType:     req.MeetingType,
			MeetingFormat:   format,
			Status:          "scheduled",
			Attendees:       req.Attendees,
			Notes:           req.Notes,
			OrganizedByID:   &organizer,
			CreatedAt:       now,
			UpdatedAt:       now,
		}
		if err := e.Repo.InsertMeeting(ctx, m); err != nil {
			return nil, handleError(err)
		}
		_ = e.Events.AppendDirect(ctx, "meeting.scheduled", "meeting", m.ID, actor.ID,
			events.EventPayload{"application_id": m.ApplicationID, "meeting_type": m.MeetingType})
		return &struct {
			Body domain.Meeting `json:"body"`
		}{Body: m}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-meetings",
		Method:      http.MethodGet,
		Path:        "/meetings",
		Summary:     "List meetings",
		Errors:      []int{http.StatusUnauthorized, http.StatusForbidden},
	}, func(ctx context.Context, input *struct {
		ApplicationID string `query:"application_id"`
		Status        string `query:"status" enum:"scheduled,completed,cancelled,"`
		Page          int    `query:"page" minimum:"1"`
	}) (*struct {
		Body []domain.Meeting `json:"body"`
	}, error) {
		actor, authErr := actorFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if !domain.IsCommitteeRole(actor.Role) {
			// Singles only see meetings for applications they can view.
			if input.ApplicationID == "" {
				return nil, handleError(auth.ForbiddenError{Action: "list all meetings"})
			}
			if _, err := e.GetApplication(ctx, actor, input.ApplicationID); err != nil {
				return nil, handleError(err)
			}
		}
		perPage := e.Config.PerPage()
		page := input.Page
		if page < 1 {
			page = 1
		}
		meetings, err := e.Repo.ListMeetings(ctx, repo.MeetingFilters{
			ApplicationID: input.ApplicationID,
			Status:        input.Status,
			Limit:         perPage,
			Offset:        (page - 1) * perPage,
		})
		if err != nil {
			return nil, handleError(err)
		}
		if meetings == nil {
			meetings = []domain.Meeting{}
		}
		return &struct {
			Body []domain.Meeting `json:"body"`
		}{Body: meetings}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-meeting",
		Method:      http.MethodGet,
		Path:        "/meetings/{id}",
		Summary:     "Get a meeting",
		Errors: []int{
			http.StatusUnauthorized,
			http.StatusForbidden,
			http.StatusNotFound,
		},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*struct {
		Body domain.Meeting `json:"body"`
	}, error) {
		actor, authErr := actorFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		m, err := e.Repo.GetMeeting(ctx, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		if !domain.IsCommitteeRole(actor.Role) {
			if _, err := e.GetApplication(ctx, actor, m.ApplicationID); err != nil {
				return nil, handleError(err)
			}
		}
		return &struct {
			Body domain.Meeting `json:"body"`
		}{Body: m}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-meeting",
		Method:      http.MethodPut,
		Path:        "/meetings/{id}",
		Summary:     "Update a meeting",
		Errors: []int{
			http.StatusUnauthorized,
			http.StatusForbidden,
			http.StatusNotFound,
		},
	}, func(ctx context.Context, input *struct {
		ID   string               `path:"id"`
		Body MeetingUpdateRequest `json:"body"`
	}) (*struct {
		Body domain.Meeting `json:"body"`
	}, error) {
		actor, authErr := actorFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if !domain.IsCommitteeRole(actor.Role) {
			return nil, handleError(auth.ForbiddenError{Action: "update meetings"})
		}
		m, err := e.Repo.GetMeeting(ctx, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		req := input.Body
		if req.Title != nil {
			m.Title = *req.Title
		}
		if req.Description != nil {
			m.Description = *req.Description
		}
		if req.ScheduledDate != nil {
			m.ScheduledDate = *req.ScheduledDate
		}
		if req.DurationMinutes != nil {
			m.DurationMinutes = *req.DurationMinutes
		}
		if req.Location != nil {
			m.Location = *req.Location
		}
		if req.Status != nil {
			m.Status = *req.Status
		}
		if req.Attendees != nil {
			m.Attendees = *req.Attendees
		}
		if req.Notes != nil {
			m.Notes = *req.Notes
		}
		if req.Outcome != nil {
			m.Outcome = *req.Outcome
		}
		m.UpdatedAt = time.Now().UTC().Format(time.RFC3339)
		if err := e.Repo.UpdateMeeting(ctx, m); err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Meeting `json:"body"`
		}{Body: m}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "cancel-meeting",
		Method:      http.MethodDelete,
		Path:        "/meetings/{id}",
		Summary:     "Delete a meeting",
		Errors: []int{
			http.StatusUnauthorized,
			http.StatusForbidden,
			http.StatusNotFound,
		},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*struct{}, error) {
		actor, authErr := actorFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if !domain.IsCommitteeRole(actor.Role) {
			return nil, handleError(auth.ForbiddenError{Action: "delete meetings"})
		}
		if err := e.Repo.DeleteMeeting(ctx, input.ID); err != nil {
			return nil, handleError(err)
		}
		return &struct{}{}, nil
	})
}
