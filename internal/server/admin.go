package server

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"courtline/internal/domain"
	"courtline/internal/engine"
	"courtline/internal/engine/auth"
	"courtline/internal/events"
	"courtline/internal/repo"
	"courtline/internal/session"
)

func registerAdmin(api huma.API, e engine.Engine, sessions *session.Store) {
	huma.Register(api, huma.Operation{
		OperationID: "admin-list-users",
		Method:      http.MethodGet,
		Path:        "/admin/users",
		Summary:     "List accounts",
		Errors:      []int{http.StatusUnauthorized, http.StatusForbidden},
	}, func(ctx context.Context, input *struct {
		Role   string `query:"role" enum:"single,committee_member,central_committee,overseer,"`
		Region string `query:"region"`
		Page   int    `query:"page" minimum:"1"`
	}) (*struct {
		Body []domain.User `json:"body"`
	}, error) {
		actor, authErr := actorFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if !auth.CanManageUsers(actor) {
			return nil, handleError(auth.ForbiddenError{Action: "manage users"})
		}
		perPage := e.Config.PerPage()
		page := input.Page
		if page < 1 {
			page = 1
		}
		users, err := e.Repo.ListUsers(ctx, repo.UserFilters{
			Role:   input.Role,
			Region: input.Region,
			Limit:  perPage,
			Offset: (page - 1) * perPage,
		})
		if err != nil {
			return nil, handleError(err)
		}
		if users == nil {
			users = []domain.User{}
		}
		return &struct {
			Body []domain.User `json:"body"`
		}{Body: users}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "admin-set-user-active",
		Method:      http.MethodPost,
		Path:        "/admin/users/{id}/active",
		Summary:     "Activate or deactivate an account",
		Errors: []int{
			http.StatusUnauthorized,
			http.StatusForbidden,
			http.StatusNotFound,
		},
	}, func(ctx context.Context, input *struct {
		ID   string `path:"id"`
		Body struct {
			Active bool `json:"active"`
		} `json:"body"`
	}) (*struct {
		Body domain.User `json:"body"`
	}, error) {
		actor, authErr := actorFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if !auth.CanManageUsers(actor) {
			return nil, handleError(auth.ForbiddenError{Action: "manage users"})
		}
		now := time.Now().UTC().Format(time.RFC3339)
		if err := e.Repo.SetUserActive(ctx, input.ID, input.Body.Active, now); err != nil {
			return nil, handleError(err)
		}
		if !input.Body.Active {
			// Deactivation revokes every live session immediately.
			if err := e.Repo.DeleteSessionsForUser(ctx, input.ID); err != nil {
				return nil, handleError(err)
			}
		}
		u, err := e.Repo.GetUser(ctx, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		_ = e.Events.AppendDirect(ctx, "user.active_changed", "user", u.ID, actor.ID,
			events.EventPayload{"active": input.Body.Active})
		return &struct {
			Body domain.User `json:"body"`
		}{Body: u}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "admin-set-user-role",
		Method:      http.MethodPost,
		Path:        "/admin/users/{id}/role",
		Summary:     "Change an account role",
		Errors: []int{
			http.StatusBadRequest,
			http.StatusUnauthorized,
			http.StatusForbidden,
			http.StatusNotFound,
		},
	}, func(ctx context.Context, input *struct {
		ID   string `path:"id"`
		Body struct {
			Role string `json:"role" enum:"single,committee_member,central_committee,overseer"`
		} `json:"body"`
	}) (*struct {
		Body domain.User `json:"body"`
	}, error) {
		actor, authErr := actorFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if !auth.CanManageUsers(actor) {
			return nil, handleError(auth.ForbiddenError{Action: "manage users"})
		}
		now := time.Now().UTC().Format(time.RFC3339)
		if err := e.Repo.UpdateUserRole(ctx, input.ID, input.Body.Role, now); err != nil {
			return nil, handleError(err)
		}
		// Role is fixed per session, so live sessions must re-login.
		if err := e.Repo.DeleteSessionsForUser(ctx, input.ID); err != nil {
			return nil, handleError(err)
		}
		u, err := e.Repo.GetUser(ctx, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		_ = e.Events.AppendDirect(ctx, "user.role_changed", "user", u.ID, actor.ID,
			events.EventPayload{"role": input.Body.Role})
		return &struct {
			Body domain.User `json:"body"`
		}{Body: u}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "admin-reset-password",
		Method:      http.MethodPost,
		Path:        "/admin/users/{id}/password",
		Summary:     "Reset an account password",
		Errors: []int{
			http.StatusBadRequest,
			http.StatusUnauthorized,
			http.StatusForbidden,
			http.StatusNotFound,
		},
	}, func(ctx context.Context, input *struct {
		ID   string `path:"id"`
		Body struct {
			Password string `json:"password" minLength:"8"`
		} `json:"body"`
	}) (*struct {
		Body map[string]string `json:"body"`
	}, error) {
		actor, authErr := actorFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if !auth.CanManageUsers(actor) {
			return nil, handleError(auth.ForbiddenError{Action: "manage users"})
		}
		if _, err := e.Repo.GetUser(ctx, input.ID); err != nil {
			return nil, handleError(err)
		}
		hash, err := session.HashPassword(input.Body.Password)
		if err != nil {
			return nil, handleError(err)
		}
		now := time.Now().UTC().Format(time.RFC3339)
		if err := e.Repo.UpdateUserPassword(ctx, input.ID, hash, now); err != nil {
			return nil, handleError(err)
		}
		if err := e.Repo.DeleteSessionsForUser(ctx, input.ID); err != nil {
			return nil, handleError(err)
		}
		_ = e.Events.AppendDirect(ctx, "user.password_reset", "user", input.ID, actor.ID, nil)
		return &struct {
			Body map[string]string `json:"body"`
		}{Body: map[string]string{"status": "password_reset"}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "admin-list-events",
		Method:      http.MethodGet,
		Path:        "/admin/events",
		Summary:     "List recent audit events",
		Errors:      []int{http.StatusUnauthorized, http.StatusForbidden},
	}, func(ctx context.Context, input *struct {
		Limit      int    `query:"limit" minimum:"1" maximum:"500"`
		Type       string `query:"type"`
		EntityKind string `query:"entity_kind"`
		EntityID   string `query:"entity_id"`
	}) (*struct {
		Body []domain.Event `json:"body"`
	}, error) {
		actor, authErr := actorFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if !auth.CanManageUsers(actor) {
			return nil, handleError(auth.ForbiddenError{Action: "view audit events"})
		}
		limit := input.Limit
		if limit <= 0 {
			limit = 100
		}
		evts, err := e.Repo.LatestEvents(ctx, limit, input.Type, input.EntityKind, input.EntityID)
		if err != nil {
			return nil, handleError(err)
		}
		if evts == nil {
			evts = []domain.Event{}
		}
		return &struct {
			Body []domain.Event `json:"body"`
		}{Body: evts}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "admin-sweep-sessions",
		Method:      http.MethodPost,
		Path:        "/admin/sessions/sweep",
		Summary:     "Force an idle-session sweep",
		Errors:      []int{http.StatusUnauthorized, http.StatusForbidden},
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body struct {
			Expired int `json:"expired"`
		} `json:"body"`
	}, error) {
		actor, authErr := actorFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if !auth.CanManageUsers(actor) {
			return nil, handleError(auth.ForbiddenError{Action: "sweep sessions"})
		}
		n := session.NewMonitor(sessions).Sweep(ctx)
		out := &struct {
			Body struct {
				Expired int `json:"expired"`
			} `json:"body"`
		}{}
		out.Body.Expired = n
		return out, nil
	})
}
