package handler

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DukeRupert/cardapiofacil/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// =============================================================================
// Error Response Tests - Security Focus
// =============================================================================

func TestValidationErrorResponse_DoesNotExposeOperationName(t *testing.T) {
	ve := domain.NewValidationError("signup.submit", domain.FieldErrors{
		domain.FieldName: domain.MsgNameRequired,
	})

	req := httptest.NewRequest(http.MethodPost, "/signup", nil)
	req.Header.Set("Accept", "text/html")
	rec := httptest.NewRecorder()

	ValidationErrorResponse(rec, req, testLogger(), ve)

	body := rec.Body.String()
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.NotContains(t, body, "signup.submit")
	assert.Contains(t, body, domain.MsgValidationTitle)
}

func TestValidationErrorResponse_JSONCarriesFields(t *testing.T) {
	ve := domain.NewValidationError("signup.submit", domain.FieldErrors{
		domain.FieldWhatsApp:   domain.MsgWhatsAppInvalid,
		domain.FieldFamilySize: "",
	})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/signup", nil)
	req.Header.Set("Accept", "application/json")
	rec := httptest.NewRecorder()

	ValidationErrorResponse(rec, req, testLogger(), ve)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.NotContains(t, rec.Body.String(), "signup.submit")

	var got JSONError
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&got))
	assert.Equal(t, domain.EINVALID, got.Error.Code)
	assert.Equal(t, map[string]string{"whatsapp": domain.MsgWhatsAppInvalid}, got.Error.Fields)
}

func TestValidationErrorResponse_FallsBackForOtherErrors(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/signup", nil)
	rec := httptest.NewRecorder()

	ValidationErrorResponse(rec, req, testLogger(), domain.Conflict("signup.submit", domain.MsgInProgressTitle))

	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestErrorResponse_InternalErrorHidesDetails(t *testing.T) {
	dbErr := errors.New(`pq: relation "funnel_events" does not exist`)
	internalErr := domain.Internal(dbErr, "analytics.postgres", "insert failed")

	for _, accept := range []string{"text/html", "application/json"} {
		t.Run(accept, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.Header.Set("Accept", accept)
			rec := httptest.NewRecorder()

			ErrorResponse(rec, req, testLogger(), internalErr)

			body := rec.Body.String()
			assert.Equal(t, http.StatusInternalServerError, rec.Code)
			assert.NotContains(t, body, "pq:")
			assert.NotContains(t, body, "funnel_events")
			assert.NotContains(t, body, "analytics.postgres")
			assert.Contains(t, body, domain.MsgGenericErrorDescription)
		})
	}
}

func TestErrorResponse_UnwrappedErrorReturnsGeneric(t *testing.T) {
	rawErr := errors.New(`FATAL: password authentication failed for user "postgres"`)

	req := httptest.NewRequest(http.MethodGet, "/data", nil)
	rec := httptest.NewRecorder()

	ErrorResponse(rec, req, testLogger(), rawErr)

	body := rec.Body.String()
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, body, "FATAL")
	assert.NotContains(t, body, "postgres")
}

func TestErrorResponse_HTMXGetsText(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/events", nil)
	req.Header.Set("HX-Request", "true")
	rec := httptest.NewRecorder()

	ErrorResponse(rec, req, testLogger(), domain.RateLimit("signup"))

	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.False(t, strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json"))
}

func TestErrorCodeToHTTPStatus(t *testing.T) {
	tests := []struct {
		code string
		want int
	}{
		{domain.EINVALID, http.StatusBadRequest},
		{domain.ENOTFOUND, http.StatusNotFound},
		{domain.ECONFLICT, http.StatusConflict},
		{domain.ERATELIMIT, http.StatusTooManyRequests},
		{domain.EUNAVAILABLE, http.StatusBadGateway},
		{domain.EINTERNAL, http.StatusInternalServerError},
		{"something-else", http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			assert.Equal(t, tt.want, ErrorCodeToHTTPStatus(tt.code))
		})
	}
}
