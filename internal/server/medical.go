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
)

type MedicalTestRequest struct {
	ApplicationID    string `json:"application_id"`
	PersonType       string `json:"person_type" enum:"brother,sister"`
	HIVTest          string `json:"hiv_test,omitempty" enum:"positive,negative,pending,"`
	HepatitisTest    string `json:"hepatitis_test,omitempty"`
	SickleCellTest   string `json:"sickle_cell_test,omitempty"`
	TestDate         string `json:"test_date,omitempty" format:"date"`
	HospitalName     string `json:"hospital_name,omitempty"`
	HospitalLocation string `json:"hospital_location,omitempty"`
	Notes            string `json:"notes,omitempty"`
}

type MedicalTestUpdateRequest struct {
	HIVTest             *string `json:"hiv_test,omitempty"`
	HepatitisTest       *string `json:"hepatitis_test,omitempty"`
	SickleCellTest      *string `json:"sickle_cell_test,omitempty"`
	TestDate            *string `json:"test_date,omitempty" format:"date"`
	HospitalName        *string `json:"hospital_name,omitempty"`
	HospitalLocation    *string `json:"hospital_location,omitempty"`
	ResultsReceived     *bool   `json:"results_received,omitempty"`
	CompatibilityStatus *string `json:"compatibility_status,omitempty" enum:"compatible,incompatible,pending"`
	Notes               *string `json:"notes,omitempty"`
}

func registerMedical(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "record-medical-test",
		Method:      http.MethodPost,
		Path:        "/medical-tests",
		Summary:     "Record a medical test",
		Errors: []int{
			http.StatusBadRequest,
			http.StatusUnauthorized,
			http.StatusForbidden,
			http.StatusNotFound,
		},
	}, func(ctx context.Context, input *struct {
		Body MedicalTestRequest `json:"body"`
	}) (*struct {
		Body domain.MedicalTest `json:"body"`
	}, error) {
		actor, authErr := actorFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if !auth.CanRecordMedical(actor) {
			return nil, handleError(auth.ForbiddenError{Action: "record medical tests"})
		}
		req := input.Body
		if req.ApplicationID == "" || req.PersonType == "" {
			return nil, newAPIError(http.StatusBadRequest, "bad_request",
				"application_id and person_type are required", nil)
		}
		if _, err := e.Repo.GetApplication(ctx, req.ApplicationID); err != nil {
			return nil, handleError(err)
		}
		now := time.Now().UTC().Format(time.RFC3339)
		t := domain.MedicalTest{
			ID:               uuid.NewString(),
			ApplicationID:    req.ApplicationID,
			PersonType:       req.PersonType,
			HIVTest:          req.HIVTest,
			HepatitisTest:    req.HepatitisTest,
			SickleCellTest:   req.SickleCellTest,
			TestDate:         req.TestDate,
			HospitalName:     req.HospitalName,
			HospitalLocation: req.HospitalLocation,
			Notes:            req.Notes,
			CreatedAt:        now,
			UpdatedAt:        now,
		}
		if err := e.Repo.InsertMedicalTest(ctx, t); err != nil {
			return nil, handleError(err)
		}
		_ = e.Events.AppendDirect(ctx, "medical.recorded", "medical_test", t.ID, actor.ID,
			events.EventPayload{"application_id": t.ApplicationID, "person_type": t.PersonType})
		return &struct {
			Body domain.MedicalTest `json:"body"`
		}{Body: t}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-medical-tests",
		Method:      http.MethodGet,
		Path:        "/applications/{id}/medical-tests",
		Summary:     "List medical tests for an application",
		Errors: []int{
			http.StatusUnauthorized,
			http.StatusForbidden,
			http.StatusNotFound,
		},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*struct {
		Body []domain.MedicalTest `json:"body"`
	}, error) {
		actor, authErr := actorFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if !auth.CanRecordMedical(actor) {
			return nil, handleError(auth.ForbiddenError{Action: "view medical tests"})
		}
		if _, err := e.Repo.GetApplication(ctx, input.ID); err != nil {
			return nil, handleError(err)
		}
		tests, err := e.Repo.ListMedicalTests(ctx, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		if tests == nil {
			tests = []domain.MedicalTest{}
		}
		return &struct {
			Body []domain.MedicalTest `json:"body"`
		}{Body: tests}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-medical-test",
		Method:      http.MethodPut,
		Path:        "/medical-tests/{id}",
		Summary:     "Update a medical test record",
		Errors: []int{
			http.StatusUnauthorized,
			http.StatusForbidden,
			http.StatusNotFound,
		},
	}, func(ctx context.Context, input *struct {
		ID   string                   `path:"id"`
		Body MedicalTestUpdateRequest `json:"body"`
	}) (*struct {
		Body domain.MedicalTest `json:"body"`
	}, error) {
		actor, authErr := actorFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if !auth.CanRecordMedical(actor) {
			return nil, handleError(auth.ForbiddenError{Action: "update medical tests"})
		}
		t, err := e.Repo.GetMedicalTest(ctx, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		req := input.Body
		if req.HIVTest != nil {
			t.HIVTest = *req.HIVTest
		}
		if req.HepatitisTest != nil {
			t.HepatitisTest = *req.HepatitisTest
		}
		if req.SickleCellTest != nil {
			t.SickleCellTest = *req.SickleCellTest
		}
		if req.TestDate != nil {
			t.TestDate = *req.TestDate
		}
		if req.HospitalName != nil {
			t.HospitalName = *req.HospitalName
		}
		if req.HospitalLocation != nil {
			t.HospitalLocation = *req.HospitalLocation
		}
		if req.Notes != nil {
			t.Notes = *req.Notes
		}
		if req.CompatibilityStatus != nil {
			t.CompatibilityStatus = *req.CompatibilityStatus
		}
		received := false
		if req.ResultsReceived != nil && *req.ResultsReceived && !t.ResultsReceived {
			t.ResultsReceived = true
			at := time.Now().UTC().Format(time.RFC3339)
			t.ResultsReceivedAt = &at
			received = true
		}
		t.UpdatedAt = time.Now().UTC().Format(time.RFC3339)
		if err := e.Repo.UpdateMedicalTest(ctx, t); err != nil {
			return nil, handleError(err)
		}
		if received {
			// Settles the verdict as soon as the second result lands.
			if _, err := e.CheckCompatibility(ctx, actor, t.ApplicationID); err != nil {
				return nil, handleError(err)
			}
			if t, err = e.Repo.GetMedicalTest(ctx, t.ID); err != nil {
				return nil, handleError(err)
			}
		}
		return &struct {
			Body domain.MedicalTest `json:"body"`
		}{Body: t}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "check-compatibility",
		Method:      http.MethodGet,
		Path:        "/applications/{id}/compatibility",
		Summary:     "Medical compatibility verdict for an application",
		Errors: []int{
			http.StatusUnauthorized,
			http.StatusForbidden,
			http.StatusNotFound,
		},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*struct {
		Body engine.CompatibilityResult `json:"body"`
	}, error) {
		actor, authErr := actorFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		res, err := e.CheckCompatibility(ctx, actor, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body engine.CompatibilityResult `json:"body"`
		}{Body: res}, nil
	})
}
