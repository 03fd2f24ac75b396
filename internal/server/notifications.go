package server

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"courtline/internal/domain"
	"courtline/internal/engine"
)

func registerNotifications(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "list-notifications",
		Method:      http.MethodGet,
		Path:        "/notifications",
		Summary:     "List the caller's notifications",
		Errors:      []int{http.StatusUnauthorized},
	}, func(ctx context.Context, input *struct {
		Unread bool `query:"unread"`
		Page   int  `query:"page" minimum:"1"`
	}) (*struct {
		Body struct {
			Items  []domain.Notification `json:"items"`
			Unread int                   `json:"unread_count"`
		} `json:"body"`
	}, error) {
		actor, authErr := actorFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		perPage := e.Config.PerPage()
		page := input.Page
		if page < 1 {
			page = 1
		}
		items, err := e.Repo.ListNotifications(ctx, actor.ID, input.Unread, perPage, (page-1)*perPage)
		if err != nil {
			return nil, handleError(err)
		}
		if items == nil {
			items = []domain.Notification{}
		}
		unread, err := e.Repo.CountUnreadNotifications(ctx, actor.ID)
		if err != nil {
			return nil, handleError(err)
		}
		out := &struct {
			Body struct {
				Items  []domain.Notification `json:"items"`
				Unread int                   `json:"unread_count"`
			} `json:"body"`
		}{}
		out.Body.Items = items
		out.Body.Unread = unread
		return out, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "read-notification",
		Method:      http.MethodPost,
		Path:        "/notifications/{id}/read",
		Summary:     "Mark a notification as read",
		Errors:      []int{http.StatusUnauthorized, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*struct{}, error) {
		actor, authErr := actorFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		readAt := time.Now().UTC().Format(time.RFC3339)
		if err := e.Repo.MarkNotificationRead(ctx, input.ID, actor.ID, readAt); err != nil {
			return nil, handleError(err)
		}
		return &struct{}{}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "read-all-notifications",
		Method:      http.MethodPost,
		Path:        "/notifications/read-all",
		Summary:     "Mark all notifications as read",
		Errors:      []int{http.StatusUnauthorized},
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body struct {
			Updated int64 `json:"updated"`
		} `json:"body"`
	}, error) {
		actor, authErr := actorFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		readAt := time.Now().UTC().Format(time.RFC3339)
		n, err := e.Repo.MarkAllNotificationsRead(ctx, actor.ID, readAt)
		if err != nil {
			return nil, handleError(err)
		}
		out := &struct {
			Body struct {
				Updated int64 `json:"updated"`
			} `json:"body"`
		}{}
		out.Body.Updated = n
		return out, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "delete-notification",
		Method:      http.MethodDelete,
		Path:        "/notifications/{id}",
		Summary:     "Delete a notification",
		Errors:      []int{http.StatusUnauthorized, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*struct{}, error) {
		actor, authErr := actorFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if err := e.Repo.DeleteNotification(ctx, input.ID, actor.ID); err != nil {
			return nil, handleError(err)
		}
		return &struct{}{}, nil
	})
}
