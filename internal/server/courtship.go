package server

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"courtline/internal/curriculum"
	"courtline/internal/domain"
	"courtline/internal/engine"
)

func registerCourtship(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "get-courtship-progress",
		Method:      http.MethodGet,
		Path:        "/applications/{id}/courtship",
		Summary:     "Get courtship progress",
		Errors: []int{
			http.StatusUnauthorized,
			http.StatusForbidden,
			http.StatusNotFound,
			http.StatusConflict,
		},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*struct {
		Body engine.CourtshipProgress `json:"body"`
	}, error) {
		actor, authErr := actorFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		progress, err := e.Progress(ctx, actor, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body engine.CourtshipProgress `json:"body"`
		}{Body: progress}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "initialize-courtship",
		Method:      http.MethodPost,
		Path:        "/applications/{id}/courtship/initialize",
		Summary:     "Seed the courtship tracker",
		Errors: []int{
			http.StatusUnauthorized,
			http.StatusForbidden,
			http.StatusNotFound,
			http.StatusConflict,
		},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*struct {
		Body engine.CourtshipProgress `json:"body"`
	}, error) {
		actor, authErr := actorFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if err := e.InitializeCourtship(ctx, actor, input.ID); err != nil {
			return nil, handleError(err)
		}
		progress, err := e.Progress(ctx, actor, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body engine.CourtshipProgress `json:"body"`
		}{Body: progress}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "start-courtship-week",
		Method:      http.MethodPost,
		Path:        "/applications/{id}/courtship/weeks/{week}/start",
		Summary:     "Start a courtship week",
		Errors: []int{
			http.StatusUnauthorized,
			http.StatusForbidden,
			http.StatusNotFound,
			http.StatusConflict,
		},
	}, func(ctx context.Context, input *struct {
		ID   string `path:"id"`
		Week int    `path:"week" minimum:"1" maximum:"25"`
	}) (*struct {
		Body domain.CourtshipWeek `json:"body"`
	}, error) {
		actor, authErr := actorFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		week, err := e.StartWeek(ctx, actor, input.ID, input.Week)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.CourtshipWeek `json:"body"`
		}{Body: week}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-courtship-week",
		Method:      http.MethodPut,
		Path:        "/applications/{id}/courtship/weeks/{week}",
		Summary:     "Update notes on a courtship week",
		Errors: []int{
			http.StatusUnauthorized,
			http.StatusForbidden,
			http.StatusNotFound,
			http.StatusConflict,
		},
	}, func(ctx context.Context, input *struct {
		ID   string           `path:"id"`
		Week int              `path:"week" minimum:"1" maximum:"25"`
		Body WeekNotesRequest `json:"body"`
	}) (*struct {
		Body domain.CourtshipWeek `json:"body"`
	}, error) {
		actor, authErr := actorFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		week, err := e.UpdateWeekNotes(ctx, actor, input.ID, input.Week, engine.WeekUpdateOptions{
			CoupleNotes:    input.Body.CoupleNotes,
			CounselorNotes: input.Body.CounselorNotes,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.CourtshipWeek `json:"body"`
		}{Body: week}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "complete-courtship-week",
		Method:      http.MethodPost,
		Path:        "/applications/{id}/courtship/weeks/{week}/complete",
		Summary:     "Complete a courtship week",
		Errors: []int{
			http.StatusUnauthorized,
			http.StatusForbidden,
			http.StatusNotFound,
			http.StatusConflict,
			http.StatusUnprocessableEntity,
		},
	}, func(ctx context.Context, input *struct {
		ID   string           `path:"id"`
		Week int              `path:"week" minimum:"1" maximum:"25"`
		Body WeekNotesRequest `json:"body"`
	}) (*struct {
		Body domain.CourtshipWeek `json:"body"`
	}, error) {
		actor, authErr := actorFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		week, err := e.CompleteWeek(ctx, actor, input.ID, input.Week, engine.WeekUpdateOptions{
			CoupleNotes:    input.Body.CoupleNotes,
			CounselorNotes: input.Body.CounselorNotes,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.CourtshipWeek `json:"body"`
		}{Body: week}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-check-ins",
		Method:      http.MethodGet,
		Path:        "/applications/{id}/checkins",
		Summary:     "List counseling check-ins for an application",
		Errors: []int{
			http.StatusUnauthorized,
			http.StatusForbidden,
			http.StatusNotFound,
		},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*struct {
		Body []domain.CheckIn `json:"body"`
	}, error) {
		actor, authErr := actorFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		checkIns, err := e.ListCheckIns(ctx, actor, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		if checkIns == nil {
			checkIns = []domain.CheckIn{}
		}
		return &struct {
			Body []domain.CheckIn `json:"body"`
		}{Body: checkIns}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-check-in",
		Method:      http.MethodPut,
		Path:        "/checkins/{id}",
		Summary:     "Update a counseling check-in",
		Errors: []int{
			http.StatusUnauthorized,
			http.StatusForbidden,
			http.StatusNotFound,
		},
	}, func(ctx context.Context, input *struct {
		ID   string               `path:"id"`
		Body CheckInUpdateRequest `json:"body"`
	}) (*struct {
		Body domain.CheckIn `json:"body"`
	}, error) {
		actor, authErr := actorFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		checkIn, err := e.UpdateCheckIn(ctx, actor, input.ID, engine.CheckInUpdateOptions{
			Status:         input.Body.Status,
			MeetingFormat:  input.Body.MeetingFormat,
			CoupleFeedback: input.Body.CoupleFeedback,
			CounselorNotes: input.Body.CounselorNotes,
			IssuesRaised:   input.Body.IssuesRaised,
			ActionItems:    input.Body.ActionItems,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.CheckIn `json:"body"`
		}{Body: checkIn}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-curriculum",
		Method:      http.MethodGet,
		Path:        "/courtship/curriculum",
		Summary:     "List the courtship curriculum topics",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body []curriculum.Topic `json:"body"`
	}, error) {
		if _, authErr := actorFromContext(ctx); authErr != nil {
			return nil, authErr
		}
		return &struct {
			Body []curriculum.Topic `json:"body"`
		}{Body: curriculum.All()}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-curriculum-topic",
		Method:      http.MethodGet,
		Path:        "/courtship/curriculum/{week}",
		Summary:     "Get the curriculum topic for a week",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		Week int `path:"week" minimum:"1" maximum:"25"`
	}) (*struct {
		Body curriculum.Topic `json:"body"`
	}, error) {
		if _, authErr := actorFromContext(ctx); authErr != nil {
			return nil, authErr
		}
		topic, ok := curriculum.ByWeek(input.Week)
		if !ok {
			return nil, newAPIError(http.StatusNotFound, "not_found", "curriculum topic not found", nil)
		}
		return &struct {
			Body curriculum.Topic `json:"body"`
		}{Body: topic}, nil
	})
}
