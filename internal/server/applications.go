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

func registerApplications(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-application",
		Method:        http.MethodPost,
		Path:          "/applications",
		Summary:       "Submit marriage application",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusUnauthorized},
	}, func(ctx context.Context, input *struct {
		Body engine.ApplicationCreateOptions `json:"body"`
	}) (*struct {
		Body domain.Application `json:"body"`
	}, error) {
		actor, authErr := actorFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		app, err := e.CreateApplication(ctx, actor, input.Body)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Application `json:"body"`
		}{Body: app}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-applications",
		Method:      http.MethodGet,
		Path:        "/applications",
		Summary:     "List applications",
		Errors:      []int{http.StatusBadRequest, http.StatusUnauthorized},
	}, func(ctx context.Context, input *struct {
		Status string `query:"status" enum:"pending,approved,rejected,on_hold"`
		Stage  string `query:"stage"`
		Search string `query:"search"`
		Page   int    `query:"page" default:"1" minimum:"1"`
	}) (*struct {
		Body ApplicationPage `json:"body"`
	}, error) {
		actor, authErr := actorFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		perPage := e.Config.PerPage()
		f := repo.ApplicationFilters{
			Status: input.Status,
			Stage:  input.Stage,
			Search: input.Search,
			Limit:  perPage,
			Offset: (input.Page - 1) * perPage,
		}
		// Singles see only their own; committee members see their
		// assignments; central committee and overseers see everything.
		switch actor.Role {
		case domain.RoleSingle:
			f.ApplicantID = actor.ID
		case domain.RoleCommitteeMember:
			f.AssignedTo = actor.ID
		}
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
		OperationID: "get-application",
		Method:      http.MethodGet,
		Path:        "/applications/{id}",
		Summary:     "Get application with stage history",
		Errors:      []int{http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*struct {
		Body ApplicationDetail `json:"body"`
	}, error) {
		actor, authErr := actorFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		app, err := e.GetApplication(ctx, actor, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		history, err := e.Repo.ListStageHistory(ctx, app.ID)
		if err != nil {
			return nil, handleError(err)
		}
		if history == nil {
			history = []domain.StageRecord{}
		}
		return &struct {
			Body ApplicationDetail `json:"body"`
		}{Body: ApplicationDetail{Application: app, History: history}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-application",
		Method:      http.MethodPut,
		Path:        "/applications/{id}",
		Summary:     "Update applicant-editable fields",
		Errors: []int{
			http.StatusUnauthorized,
			http.StatusForbidden,
			http.StatusNotFound,
		},
	}, func(ctx context.Context, input *struct {
		ID   string `path:"id"`
		Body struct {
			PartnerInformed         *bool   `json:"partner_informed,omitempty"`
			RelationshipDescription *string `json:"relationship_description,omitempty"`
		} `json:"body"`
	}) (*struct {
		Body domain.Application `json:"body"`
	}, error) {
		actor, authErr := actorFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		app, err := e.GetApplication(ctx, actor, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		if actor.ID != app.ApplicantID && !domain.IsCommitteeRole(actor.Role) {
			return nil, handleError(auth.ForbiddenError{Action: "edit application"})
		}
		if input.Body.PartnerInformed != nil {
			app.PartnerInformed = *input.Body.PartnerInformed
		}
		if input.Body.RelationshipDescription != nil {
			app.RelationshipDescription = *input.Body.RelationshipDescription
		}
		app.UpdatedAt = time.Now().UTC().Format(time.RFC3339)
		if err := e.Repo.UpdateApplicationForm(ctx, app.ID, app.PartnerInformed, app.RelationshipDescription, app.UpdatedAt); err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Application `json:"body"`
		}{Body: app}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "advance-stage",
		Method:      http.MethodPost,
		Path:        "/applications/{id}/stage",
		Summary:     "Record a stage decision",
		Errors: []int{
			http.StatusBadRequest,
			http.StatusUnauthorized,
			http.StatusForbidden,
			http.StatusNotFound,
			http.StatusConflict,
		},
	}, func(ctx context.Context, input *struct {
		ID   string              `path:"id"`
		Body StageAdvanceRequest `json:"body"`
	}) (*struct {
		Body domain.Application `json:"body"`
	}, error) {
		actor, authErr := actorFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		app, err := e.AdvanceStage(ctx, actor, input.ID, engine.StageAdvanceOptions{
			ToStage: input.Body.Stage,
			Outcome: input.Body.Outcome,
			Notes:   input.Body.Notes,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Application `json:"body"`
		}{Body: app}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "application-stages",
		Method:      http.MethodGet,
		Path:        "/applications/stages",
		Summary:     "Stage sequence reference",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body []map[string]any `json:"body"`
	}, error) {
		var out []map[string]any
		for i, s := range domain.StageSequence() {
			out = append(out, map[string]any{
				"key":   s,
				"order": i + 1,
				"title": domain.StageTitle(s),
			})
		}
		return &struct {
			Body []map[string]any `json:"body"`
		}{Body: out}, nil
	})
}
