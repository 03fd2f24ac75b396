package server

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/google/uuid"

	"courtline/internal/domain"
	"courtline/internal/engine"
	"courtline/internal/session"
)

func registerAuth(api huma.API, e engine.Engine, sessions *session.Store) {
	huma.Register(api, huma.Operation{
		OperationID:   "register",
		Method:        http.MethodPost,
		Path:          "/auth/register",
		Summary:       "Register account",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusConflict},
	}, func(ctx context.Context, input *struct {
		Body RegisterRequest `json:"body"`
	}) (*struct {
		Body domain.User `json:"body"`
	}, error) {
		b := input.Body
		if b.Email == "" || b.Username == "" || b.Password == "" || b.FullName == "" {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "email, username, password, and full_name are required", nil)
		}
		if _, err := e.Repo.GetUserByEmail(ctx, b.Email); err == nil {
			return nil, newAPIError(http.StatusConflict, "conflict", "email already registered", nil)
		}
		if _, err := e.Repo.GetUserByUsername(ctx, b.Username); err == nil {
			return nil, newAPIError(http.StatusConflict, "conflict", "username already taken", nil)
		}
		hash, err := session.HashPassword(b.Password)
		if err != nil {
			return nil, handleError(err)
		}
		now := time.Now().UTC().Format(time.RFC3339)
		u := domain.User{
			ID:           uuid.NewString(),
			Email:        strings.ToLower(b.Email),
			Username:     b.Username,
			PasswordHash: hash,
			FullName:     b.FullName,
			Phone:        b.Phone,
			Role:         domain.RoleSingle,
			Region:       b.Region,
			Division:     b.Division,
			LocalChurch:  b.LocalChurch,
			Gender:       b.Gender,
			IsActive:     true,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		if err := e.Repo.InsertUser(ctx, u); err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.User `json:"body"`
		}{Body: u}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "login",
		Method:      http.MethodPost,
		Path:        "/auth/login",
		Summary:     "Login",
		Errors:      []int{http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden},
	}, func(ctx context.Context, input *struct {
		Body LoginRequest `json:"body"`
	}) (*struct {
		Body LoginResponse `json:"body"`
	}, error) {
		if input.Body.Identifier == "" || input.Body.Password == "" {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "identifier and password are required", nil)
		}
		res, err := sessions.Login(ctx, input.Body.Identifier, input.Body.Password)
		if err != nil {
			return nil, handleError(err)
		}
		out := LoginResponse{Token: res.Token, User: res.User}
		if res.Marker != nil {
			out.ReturnPath = res.Marker.ReturnPath
			out.LogoutReason = res.Marker.LogoutReason
		}
		return &struct {
			Body LoginResponse `json:"body"`
		}{Body: out}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "logout",
		Method:      http.MethodPost,
		Path:        "/auth/logout",
		Summary:     "Logout",
		Errors:      []int{http.StatusBadRequest, http.StatusUnauthorized},
	}, func(ctx context.Context, input *struct {
		Body LogoutRequest `json:"body"`
	}) (*struct {
		Body map[string]string `json:"body"`
	}, error) {
		p, ok := principalFromContext(ctx)
		if !ok {
			return nil, newAPIError(http.StatusUnauthorized, "unauthorized", "authentication required", nil)
		}
		if p.Session.ID == "" {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "service tokens have no session to log out", nil)
		}
		if err := sessions.LogoutSession(ctx, p.Session.ID, p.UserID, input.Body.ReturnPath); err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body map[string]string `json:"body"`
		}{Body: map[string]string{"status": "logged_out"}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "me",
		Method:      http.MethodGet,
		Path:        "/auth/me",
		Summary:     "Current user",
		Errors:      []int{http.StatusUnauthorized},
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body domain.User `json:"body"`
	}, error) {
		actor, authErr := actorFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		u, err := e.Repo.GetUser(ctx, actor.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.User `json:"body"`
		}{Body: u}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-profile",
		Method:      http.MethodPut,
		Path:        "/auth/me",
		Summary:     "Update profile",
		Errors:      []int{http.StatusBadRequest, http.StatusUnauthorized},
	}, func(ctx context.Context, input *struct {
		Body struct {
			FullName    *string `json:"full_name,omitempty"`
			Phone       *string `json:"phone,omitempty"`
			Region      *string `json:"region,omitempty"`
			Division    *string `json:"division,omitempty"`
			LocalChurch *string `json:"local_church,omitempty"`
		} `json:"body"`
	}) (*struct {
		Body domain.User `json:"body"`
	}, error) {
		actor, authErr := actorFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		u, err := e.Repo.GetUser(ctx, actor.ID)
		if err != nil {
			return nil, handleError(err)
		}
		if input.Body.FullName != nil {
			u.FullName = *input.Body.FullName
		}
		if input.Body.Phone != nil {
			u.Phone = *input.Body.Phone
		}
		if input.Body.Region != nil {
			u.Region = *input.Body.Region
		}
		if input.Body.Division != nil {
			u.Division = *input.Body.Division
		}
		if input.Body.LocalChurch != nil {
			u.LocalChurch = *input.Body.LocalChurch
		}
		u.UpdatedAt = time.Now().UTC().Format(time.RFC3339)
		if err := e.Repo.UpdateUserProfile(ctx, u); err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.User `json:"body"`
		}{Body: u}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "change-password",
		Method:      http.MethodPost,
		Path:        "/auth/password",
		Summary:     "Change password",
		Errors:      []int{http.StatusBadRequest, http.StatusUnauthorized},
	}, func(ctx context.Context, input *struct {
		Body struct {
			CurrentPassword string `json:"current_password"`
			NewPassword     string `json:"new_password" minLength:"8"`
		} `json:"body"`
	}) (*struct {
		Body map[string]string `json:"body"`
	}, error) {
		actor, authErr := actorFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		u, err := e.Repo.GetUser(ctx, actor.ID)
		if err != nil {
			return nil, handleError(err)
		}
		if !session.CheckPassword(u.PasswordHash, input.Body.CurrentPassword) {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "current password is incorrect", nil)
		}
		hash, err := session.HashPassword(input.Body.NewPassword)
		if err != nil {
			return nil, handleError(err)
		}
		now := time.Now().UTC().Format(time.RFC3339)
		if err := e.Repo.UpdateUserPassword(ctx, u.ID, hash, now); err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body map[string]string `json:"body"`
		}{Body: map[string]string{"status": "password_changed"}}, nil
	})
}
