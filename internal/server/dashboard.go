package server

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"courtline/internal/domain"
	"courtline/internal/engine"
	"courtline/internal/engine/auth"
	"courtline/internal/repo"
)

func registerDashboard(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "dashboard-stats",
		Method:      http.MethodGet,
		Path:        "/dashboard/stats",
		Summary:     "Committee dashboard counters",
		Errors:      []int{http.StatusUnauthorized, http.StatusForbidden},
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body DashboardResponse `json:"body"`
	}, error) {
		actor, authErr := actorFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if !domain.IsCommitteeRole(actor.Role) {
			return nil, handleError(auth.ForbiddenError{Action: "dashboard"})
		}
		byStage, err := e.Repo.CountApplicationsByStage(ctx)
		if err != nil {
			return nil, handleError(err)
		}
		byStatus, err := e.Repo.CountApplicationsByStatus(ctx)
		if err != nil {
			return nil, handleError(err)
		}
		byRole, err := e.Repo.CountUsersByRole(ctx)
		if err != nil {
			return nil, handleError(err)
		}
		liveSessions, err := e.Repo.CountSessions(ctx)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body DashboardResponse `json:"body"`
		}{Body: DashboardResponse{
			ByStage:  byStage,
			ByStatus: byStatus,
			ByRole:   byRole,
			Sessions: liveSessions,
		}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "dashboard-recent-activity",
		Method:      http.MethodGet,
		Path:        "/dashboard/recent-activity",
		Summary:     "Latest workflow events",
		Errors:      []int{http.StatusUnauthorized, http.StatusForbidden},
	}, func(ctx context.Context, input *struct {
		Limit int `query:"limit" minimum:"1" maximum:"100" default:"10"`
	}) (*struct {
		Body []domain.Event `json:"body"`
	}, error) {
		actor, authErr := actorFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if !domain.IsCommitteeRole(actor.Role) {
			return nil, handleError(auth.ForbiddenError{Action: "dashboard"})
		}
		items, err := e.Repo.LatestEvents(ctx, input.Limit, "", "", "")
		if err != nil {
			return nil, handleError(err)
		}
		if items == nil {
			items = []domain.Event{}
		}
		return &struct {
			Body []domain.Event `json:"body"`
		}{Body: items}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "dashboard-upcoming-checkins",
		Method:      http.MethodGet,
		Path:        "/dashboard/upcoming-checkins",
		Summary:     "Check-ins scheduled in the next 30 days",
		Errors:      []int{http.StatusUnauthorized},
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body []repo.UpcomingCheckIn `json:"body"`
	}, error) {
		actor, authErr := actorFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		items, err := e.UpcomingCheckIns(ctx, actor)
		if err != nil {
			return nil, handleError(err)
		}
		if items == nil {
			items = []repo.UpcomingCheckIn{}
		}
		return &struct {
			Body []repo.UpcomingCheckIn `json:"body"`
		}{Body: items}, nil
	})
}
