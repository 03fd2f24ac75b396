package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/google/uuid"

	"courtline/internal/domain"
	"courtline/internal/engine"
	"courtline/internal/engine/auth"
	"courtline/internal/repo"
)

type DiscussionRequest struct {
	Title      string `json:"title"`
	Content    string `json:"content"`
	Category   string `json:"category,omitempty"`
	Visibility string `json:"visibility,omitempty" enum:"region,division,all,"`
}

type DiscussionDetail struct {
	Discussion domain.Discussion `json:"discussion"`
	Replies    []domain.Reply    `json:"replies"`
}

// callerScope loads the caller's region and division for visibility
// filtering. Service principals have no user row and see everything.
func callerScope(ctx context.Context, e engine.Engine, actor auth.Actor) (region, division string, err error) {
	u, err := e.Repo.GetUser(ctx, actor.ID)
	if errors.Is(err, repo.ErrNotFound) {
		return "", "", nil
	}
	if err != nil {
		return "", "", err
	}
	return u.Region, u.Division, nil
}

func registerDiscussions(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "create-discussion",
		Method:      http.MethodPost,
		Path:        "/discussions",
		Summary:     "Start a discussion",
		Errors:      []int{http.StatusBadRequest, http.StatusUnauthorized},
	}, func(ctx context.Context, input *struct {
		Body DiscussionRequest `json:"body"`
	}) (*struct {
		Body domain.Discussion `json:"body"`
	}, error) {
		actor, authErr := actorFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		req := input.Body
		if req.Title == "" || req.Content == "" {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "title and content are required", nil)
		}
		region, division, err := callerScope(ctx, e, actor)
		if err != nil {
			return nil, handleError(err)
		}
		visibility := req.Visibility
		if visibility == "" {
			visibility = "all"
		}
		now := time.Now().UTC().Format(time.RFC3339)
		d := domain.Discussion{
			ID:         uuid.NewString(),
			AuthorID:   actor.ID,
			Title:      req.Title,
			Content:    req.Content,
			Category:   req.Category,
			Visibility: visibility,
			Region:     region,
			Division:   division,
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		if err := e.Repo.InsertDiscussion(ctx, d); err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Discussion `json:"body"`
		}{Body: d}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-discussions",
		Method:      http.MethodGet,
		Path:        "/discussions",
		Summary:     "List discussions visible to the caller",
		Errors:      []int{http.StatusUnauthorized},
	}, func(ctx context.Context, input *struct {
		Page int `query:"page" minimum:"1"`
	}) (*struct {
		Body []domain.Discussion `json:"body"`
	}, error) {
		actor, authErr := actorFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		region, division, err := callerScope(ctx, e, actor)
		if err != nil {
			return nil, handleError(err)
		}
		perPage := e.Config.PerPage()
		page := input.Page
		if page < 1 {
			page = 1
		}
		items, err := e.Repo.ListDiscussions(ctx, region, division, perPage, (page-1)*perPage)
		if err != nil {
			return nil, handleError(err)
		}
		if items == nil {
			items = []domain.Discussion{}
		}
		return &struct {
			Body []domain.Discussion `json:"body"`
		}{Body: items}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-discussion",
		Method:      http.MethodGet,
		Path:        "/discussions/{id}",
		Summary:     "Get a discussion with its replies",
		Errors:      []int{http.StatusUnauthorized, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*struct {
		Body DiscussionDetail `json:"body"`
	}, error) {
		if _, authErr := actorFromContext(ctx); authErr != nil {
			return nil, authErr
		}
		d, err := e.Repo.GetDiscussion(ctx, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		replies, err := e.Repo.ListReplies(ctx, d.ID)
		if err != nil {
			return nil, handleError(err)
		}
		if replies == nil {
			replies = []domain.Reply{}
		}
		return &struct {
			Body DiscussionDetail `json:"body"`
		}{Body: DiscussionDetail{Discussion: d, Replies: replies}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "reply-discussion",
		Method:      http.MethodPost,
		Path:        "/discussions/{id}/replies",
		Summary:     "Reply to a discussion",
		Errors: []int{
			http.StatusBadRequest,
			http.StatusUnauthorized,
			http.StatusNotFound,
		},
	}, func(ctx context.Context, input *struct {
		ID   string `path:"id"`
		Body struct {
			Content string `json:"content"`
		} `json:"body"`
	}) (*struct {
		Body domain.Reply `json:"body"`
	}, error) {
		actor, authErr := actorFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if input.Body.Content == "" {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "content is required", nil)
		}
		if _, err := e.Repo.GetDiscussion(ctx, input.ID); err != nil {
			return nil, handleError(err)
		}
		rep := domain.Reply{
			ID:           uuid.NewString(),
			DiscussionID: input.ID,
			AuthorID:     actor.ID,
			Content:      input.Body.Content,
			CreatedAt:    time.Now().UTC().Format(time.RFC3339),
		}
		if err := e.Repo.InsertReply(ctx, rep); err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Reply `json:"body"`
		}{Body: rep}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "delete-discussion",
		Method:      http.MethodDelete,
		Path:        "/discussions/{id}",
		Summary:     "Delete a discussion",
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
		d, err := e.Repo.GetDiscussion(ctx, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		// Authors delete their own threads; overseers moderate any.
		if d.AuthorID != actor.ID && actor.Role != domain.RoleOverseer {
			return nil, handleError(auth.ForbiddenError{Action: "delete discussion"})
		}
		if err := e.Repo.DeleteDiscussion(ctx, input.ID); err != nil {
			return nil, handleError(err)
		}
		return &struct{}{}, nil
	})
}
