package server

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"courtline/internal/domain"
	"courtline/internal/engine"
	"courtline/internal/engine/auth"
	"courtline/internal/repo"
)

func registerCommittee(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "assign-application",
		Method:      http.MethodPost,
		Path:        "/applications/{id}/assign",
		Summary:     "Assign application to committee member",
		Errors: []int{
			http.StatusBadRequest,
			http.StatusUnauthorized,
			http.StatusForbidden,
			http.StatusNotFound,
		},
	}, func(ctx context.Context, input *struct {
		ID   string `path:"id"`
		Body struct {
			MemberID string `json:"member_id"`
		} `json:"body"`
	}) (*struct {
		Body domain.Application `json:"body"`
	}, error) {
		actor, authErr := actorFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if input.Body.MemberID == "" {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "member_id is required", nil)
		}
		app, err := e.AssignApplication(ctx, actor, input.ID, input.Body.MemberID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Application `json:"body"`
		}{Body: app}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "hold-application",
		Method:      http.MethodPost,
		Path:        "/applications/{id}/hold",
		Summary:     "Put application on hold or resume it",
		Errors: []int{
			http.StatusUnauthorized,
			http.StatusForbidden,
			http.StatusNotFound,
			http.StatusConflict,
		},
	}, func(ctx context.Context, input *struct {
		ID   string `path:"id"`
		Body struct {
			Hold  bool   `json:"hold"`
			Notes string `json:"notes,omitempty"`
		} `json:"body"`
	}) (*struct {
		Body domain.Application `json:"body"`
	}, error) {
		actor, authErr := actorFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		app, err := e.SetApplicationHold(ctx, actor, input.ID, input.Body.Hold, input.Body.Notes)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Application `json:"body"`
		}{Body: app}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-application-notes",
		Method:      http.MethodPut,
		Path:        "/applications/{id}/notes",
		Summary:     "Update committee notes on an application",
		Errors: []int{
			http.StatusUnauthorized,
			http.StatusForbidden,
			http.StatusNotFound,
		},
	}, func(ctx context.Context, input *struct {
		ID   string `path:"id"`
		Body struct {
			AdminNotes string `json:"admin_notes"`
		} `json:"body"`
	}) (*struct {
		Body domain.Application `json:"body"`
	}, error) {
		actor, authErr := actorFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if !domain.IsCommitteeRole(actor.Role) {
			return nil, handleError(auth.ForbiddenError{Action: "committee notes"})
		}
		now := time.Now().UTC().Format(time.RFC3339)
		if err := e.Repo.UpdateApplicationNotes(ctx, input.ID, input.Body.AdminNotes, now); err != nil {
			return nil, handleError(err)
		}
		app, err := e.Repo.GetApplication(ctx, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Application `json:"body"`
		}{Body: app}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-committee-members",
		Method:      http.MethodGet,
		Path:        "/committee/members",
		Summary:     "List committee members",
		Errors:      []int{http.StatusUnauthorized, http.StatusForbidden},
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body []domain.User `json:"body"`
	}, error) {
		actor, authErr := actorFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if !domain.IsCommitteeRole(actor.Role) {
			return nil, handleError(auth.ForbiddenError{Action: "committee roster"})
		}
		active := true
		members, err := e.Repo.ListUsers(ctx, repo.UserFilters{Role: domain.RoleCommitteeMember, Active: &active})
		if err != nil {
			return nil, handleError(err)
		}
		if members == nil {
			members = []domain.User{}
		}
		return &struct {
			Body []domain.User `json:"body"`
		}{Body: members}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-pending-applications",
		Method:      http.MethodGet,
		Path:        "/committee/applications/pending",
		Summary:     "Applications awaiting committee review",
		Errors:      []int{http.StatusUnauthorized, http.StatusForbidden},
	}, func(ctx context.Context, input *struct {
		Page int `query:"page" minimum:"1" default:"1"`
	}) (*struct {
		Body ApplicationPage `json:"body"`
	}, error) {
		actor, authErr := actorFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if !domain.IsCommitteeRole(actor.Role) {
			return nil, handleError(auth.ForbiddenError{Action: "pending queue"})
		}
		f := repo.ApplicationFilters{Status: domain.StatusPending}
		// Ordinary members only see their own region's queue.
		if actor.Role == domain.RoleCommitteeMember {
			f.ApplicantRegion = actor.Region
		}
		perPage := e.Config.PerPage()
		f.Limit = perPage
		f.Offset = (input.Page - 1) * perPage
		items, err := e.Repo.ListApplications(ctx, f)
		if err != nil {
			return nil, handleError(err)
		}
		total, err := e.Repo.CountApplications(ctx, f)
		if err != nil {
			return nil, handleError(err)
		}
		if items == nil {
			items = []domain.Application{}
		}
		return &struct {
			Body ApplicationPage `json:"body"`
		}{Body: ApplicationPage{
			Items: items,
			Meta:  PageMeta{Page: input.Page, PerPage: perPage, Total: total},
		}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "committee-statistics",
		Method:      http.MethodGet,
		Path:        "/committee/statistics",
		Summary:     "Application counts by stage and status",
		Errors:      []int{http.StatusUnauthorized, http.StatusForbidden},
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body struct {
			ByStage  map[string]int `json:"applications_by_stage"`
			ByStatus map[string]int `json:"applications_by_status"`
		} `json:"body"`
	}, error) {
		actor, authErr := actorFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if !domain.IsCommitteeRole(actor.Role) {
			return nil, handleError(auth.ForbiddenError{Action: "committee statistics"})
		}
		byStage, err := e.Repo.CountApplicationsByStage(ctx)
		if err != nil {
			return nil, handleError(err)
		}
		byStatus, err := e.Repo.CountApplicationsByStatus(ctx)
		if err != nil {
			return nil, handleError(err)
		}
		out := &struct {
			Body struct {
				ByStage  map[string]int `json:"applications_by_stage"`
				ByStatus map[string]int `json:"applications_by_status"`
			} `json:"body"`
		}{}
		out.Body.ByStage = byStage
		out.Body.ByStatus = byStatus
		return out, nil
	})
}
