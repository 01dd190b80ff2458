package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DukeRupert/cardapiofacil/internal/domain"
	"github.com/DukeRupert/cardapiofacil/internal/experiment"
	"github.com/DukeRupert/cardapiofacil/internal/service"
)

func newAPIFixture(t *testing.T) (*http.ServeMux, *mockSignupService, *recordingFunnel) {
	t.Helper()

	assigner, err := experiment.NewAssigner(experiment.DefaultArms(), false)
	require.NoError(t, err)

	signups := &mockSignupService{}
	funnel := &recordingFunnel{}
	mux := http.NewServeMux()
	NewAPIHandler(signups, funnel, assigner, testLogger()).RegisterRoutes(mux, func(h http.Handler) http.Handler { return h })
	return mux, signups, funnel
}

func postJSON(path, body string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

const signupBody = `{
	"formId": "` + testFormID + `",
	"name": "João Souza",
	"whatsapp": "11999998888",
	"familySize": "couple",
	"acceptedTerms": true,
	"acceptedPrivacyPolicy": true
}`

func TestAPISignup_Created(t *testing.T) {
	mux, signups, _ := newAPIFixture(t)
	signups.SubmitFunc = func(ctx context.Context, params service.SubmitParams) (*domain.SubmissionResult, error) {
		return &domain.SubmissionResult{ProfileID: "p-42", WhatsAppNotified: true, ReturningUser: true}, nil
	}

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, postJSON("/api/v1/signup", signupBody))

	require.Equal(t, http.StatusCreated, rec.Code)
	var got SignupResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&got))
	assert.Equal(t, SignupResponse{ProfileID: "p-42", WhatsAppNotified: true, ReturningUser: true}, got)

	require.Len(t, signups.calls, 1)
	params := signups.calls[0]
	assert.Equal(t, testFormID, params.Form.FormID)
	assert.Equal(t, "João Souza", params.Form.Values.Name)
	assert.Equal(t, "couple", params.Form.Values.FamilySize)
	assert.True(t, params.Form.Values.AcceptedTerms)
}

func TestAPISignup_ValidationErrorHasFields(t *testing.T) {
	mux, signups, _ := newAPIFixture(t)
	signups.SubmitFunc = func(ctx context.Context, params service.SubmitParams) (*domain.SubmissionResult, error) {
		return nil, domain.NewValidationError("signup.submit", domain.FieldErrors{
			domain.FieldAcceptedTerms: domain.MsgTermsRequired,
		})
	}

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, postJSON("/api/v1/signup", signupBody))

	require.Equal(t, http.StatusBadRequest, rec.Code)
	var got JSONError
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&got))
	assert.Equal(t, map[string]string{"acceptedTerms": domain.MsgTermsRequired}, got.Error.Fields)
}

func TestAPISignup_UpstreamFailure(t *testing.T) {
	mux, signups, _ := newAPIFixture(t)
	signups.SubmitFunc = func(ctx context.Context, params service.SubmitParams) (*domain.SubmissionResult, error) {
		return nil, domain.Unavailable(nil, "signup.submit", domain.MsgGenericErrorDescription)
	}

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, postJSON("/api/v1/signup", signupBody))

	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Contains(t, rec.Body.String(), domain.EUNAVAILABLE)
}

func TestAPISignup_AbandonedRequestWritesNothing(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{"cancelled", context.Canceled},
		{"deadline", context.DeadlineExceeded},
		{"wrapped deadline", fmt.Errorf("create profile: %w", context.DeadlineExceeded)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mux, signups, _ := newAPIFixture(t)
			signups.SubmitFunc = func(ctx context.Context, params service.SubmitParams) (*domain.SubmissionResult, error) {
				return nil, tt.err
			}

			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, postJSON("/api/v1/signup", signupBody))

			assert.NotEqual(t, http.StatusInternalServerError, rec.Code)
			assert.Empty(t, rec.Body.String())
			assert.Empty(t, rec.Header().Get("Content-Type"))
		})
	}
}

func TestAPISignup_RejectsBadBody(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"not json", "name=x"},
		{"unknown field", `{"name": "Ana", "admin": true}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mux, signups, _ := newAPIFixture(t)

			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, postJSON("/api/v1/signup", tt.body))

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Empty(t, signups.calls)
		})
	}
}

func TestAPIEvent(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		wantStatus int
		wantStages []domain.FunnelStage
	}{
		{"viewed", `{"stage": "viewed", "formId": "` + testFormID + `"}`, http.StatusAccepted, []domain.FunnelStage{domain.StageViewed}},
		{"started", `{"stage": "started", "formId": "` + testFormID + `"}`, http.StatusAccepted, []domain.FunnelStage{domain.StageStarted}},
		{"server stage refused", `{"stage": "completed", "formId": "` + testFormID + `"}`, http.StatusBadRequest, nil},
		{"unknown stage refused", `{"stage": "bought", "formId": "` + testFormID + `"}`, http.StatusBadRequest, nil},
		{"bad form id", `{"stage": "viewed", "formId": "x"}`, http.StatusBadRequest, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mux, _, funnel := newAPIFixture(t)

			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, postJSON("/api/v1/events", tt.body))

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, tt.wantStages, funnel.Stages())
		})
	}
}
