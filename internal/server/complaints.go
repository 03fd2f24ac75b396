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

type ComplaintRequest struct {
	Subject     string `json:"subject"`
	Description string `json:"description"`
	Category    string `json:"category,omitempty"`
}

type ComplaintResolveRequest struct {
	Status     string `json:"status" enum:"under_review,resolved,dismissed"`
	Resolution string `json:"resolution,omitempty"`
}

func registerComplaints(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "create-complaint",
		Method:      http.MethodPost,
		Path:        "/complaints",
		Summary:     "File a complaint",
		Errors:      []int{http.StatusBadRequest, http.StatusUnauthorized},
	}, func(ctx context.Context, input *struct {
		Body ComplaintRequest `json:"body"`
	}) (*struct {
		Body domain.Complaint `json:"body"`
	}, error) {
		actor, authErr := actorFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		req := input.Body
		if req.Subject == "" || req.Description == "" {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "subject and description are required", nil)
		}
		now := time.Now().UTC().Format(time.RFC3339)
		c := domain.Complaint{
			ID:          uuid.NewString(),
			AuthorID:    actor.ID,
			Subject:     req.Subject,
			Description: req.Description,
			Category:    req.Category,
			Status:      "open",
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		if err := e.Repo.InsertComplaint(ctx, c); err != nil {
			return nil, handleError(err)
		}
		_ = e.Events.AppendDirect(ctx, "complaint.filed", "complaint", c.ID, actor.ID,
			events.EventPayload{"category": c.Category})
		return &struct {
			Body domain.Complaint `json:"body"`
		}{Body: c}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-complaints",
		Method:      http.MethodGet,
		Path:        "/complaints",
		Summary:     "List complaints",
		Errors:      []int{http.StatusUnauthorized},
	}, func(ctx context.Context, input *struct {
		Status string `query:"status" enum:"open,under_review,resolved,dismissed,"`
		Page   int    `query:"page" minimum:"1"`
	}) (*struct {
		Body []domain.Complaint `json:"body"`
	}, error) {
		actor, authErr := actorFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		f := repo.ComplaintFilters{Status: input.Status}
		if !auth.CanHandleComplaints(actor) {
			f.AuthorID = actor.ID
		}
		perPage := e.Config.PerPage()
		page := input.Page
		if page < 1 {
			page = 1
		}
		f.Limit = perPage
		f.Offset = (page - 1) * perPage
		items, err := e.Repo.ListComplaints(ctx, f)
		if err != nil {
			return nil, handleError(err)
		}
		if items == nil {
			items = []domain.Complaint{}
		}
		return &struct {
			Body []domain.Complaint `json:"body"`
		}{Body: items}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-complaint",
		Method:      http.MethodGet,
		Path:        "/complaints/{id}",
		Summary:     "Get a complaint",
		Errors: []int{
			http.StatusUnauthorized,
			http.StatusForbidden,
			http.StatusNotFound,
		},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*struct {
		Body domain.Complaint `json:"body"`
	}, error) {
		actor, authErr := actorFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		c, err := e.Repo.GetComplaint(ctx, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		if c.AuthorID != actor.ID && !auth.CanHandleComplaints(actor) {
			return nil, handleError(auth.ForbiddenError{Action: "view complaint"})
		}
		return &struct {
			Body domain.Complaint `json:"body"`
		}{Body: c}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "resolve-complaint",
		Method:      http.MethodPost,
		Path:        "/complaints/{id}/resolve",
		Summary:     "Update complaint status",
		Errors: []int{
			http.StatusBadRequest,
			http.StatusUnauthorized,
			http.StatusForbidden,
			http.StatusNotFound,
		},
	}, func(ctx context.Context, input *struct {
		ID   string                  `path:"id"`
		Body ComplaintResolveRequest `json:"body"`
	}) (*struct {
		Body domain.Complaint `json:"body"`
	}, error) {
		actor, authErr := actorFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if !auth.CanHandleComplaints(actor) {
			return nil, handleError(auth.ForbiddenError{Action: "handle complaints"})
		}
		now := time.Now().UTC().Format(time.RFC3339)
		if err := e.Repo.UpdateComplaintStatus(ctx, input.ID, input.Body.Status, input.Body.Resolution, actor.ID, now); err != nil {
			return nil, handleError(err)
		}
		c, err := e.Repo.GetComplaint(ctx, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		_ = e.Events.AppendDirect(ctx, "complaint."+input.Body.Status, "complaint", c.ID, actor.ID, nil)
		return &struct {
			Body domain.Complaint `json:"body"`
		}{Body: c}, nil
	})
}
