package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/DukeRupert/cardapiofacil/internal/domain"
	"github.com/DukeRupert/cardapiofacil/internal/experiment"
	"github.com/DukeRupert/cardapiofacil/internal/form"
	"github.com/DukeRupert/cardapiofacil/internal/service"
)

// maxJSONBody caps API request bodies.
const maxJSONBody = 16 << 10

// APIHandler serves the JSON endpoints used by scripted clients and the
// browser's funnel beacons.
type APIHandler struct {
	signups    service.SignupService
	funnel     Funnel
	experiment *experiment.Assigner
	logger     *slog.Logger
}

// NewAPIHandler creates a new APIHandler.
func NewAPIHandler(
	signups service.SignupService,
	funnel Funnel,
	assigner *experiment.Assigner,
	logger *slog.Logger,
) *APIHandler {
	return &APIHandler{
		signups:    signups,
		funnel:     funnel,
		experiment: assigner,
		logger:     logger,
	}
}

// SignupRequest is the body of POST /api/v1/signup.
type SignupRequest struct {
	FormID string `json:"formId,omitempty"`
	domain.SignupFormData
}

// SignupResponse is returned with 201 when the profile was created.
type SignupResponse struct {
	ProfileID        string `json:"profileId"`
	WhatsAppNotified bool   `json:"whatsappNotified"`
	ReturningUser    bool   `json:"returningUser"`
}

// EventRequest is the body of POST /api/v1/events.
type EventRequest struct {
	Stage  domain.FunnelStage `json:"stage"`
	FormID string             `json:"formId"`
}

// RegisterRoutes registers the API routes. limit wraps the signup route.
func (h *APIHandler) RegisterRoutes(mux *http.ServeMux, limit func(http.Handler) http.Handler) {
	mux.Handle("POST /api/v1/signup", limit(http.HandlerFunc(h.Signup)))
	mux.HandleFunc("POST /api/v1/events", h.Event)
}

// =============================================================================
// POST /api/v1/signup
// =============================================================================

// Signup runs the signup for a JSON body.
func (h *APIHandler) Signup(w http.ResponseWriter, r *http.Request) {
	const op = "api.signup"

	var req SignupRequest
	if err := decodeJSON(w, r, &req); err != nil {
		ErrorResponse(w, r, h.logger, domain.Invalid(op, "Corpo da requisição inválido."))
		return
	}

	state := form.NewState(strings.TrimSpace(req.FormID))
	state.Values = req.SignupFormData
	visitorID, variant := h.experiment.FromRequest(r)

	result, err := h.signups.Submit(r.Context(), service.SubmitParams{
		Form:      state,
		VisitorID: visitorID,
		Variant:   variant,
	})
	if err != nil {
		if requestAbandoned(err) {
			return
		}
		ValidationErrorResponse(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusCreated, SignupResponse{
		ProfileID:        result.ProfileID,
		WhatsAppNotified: result.WhatsAppNotified,
		ReturningUser:    result.ReturningUser,
	})
}

// =============================================================================
// POST /api/v1/events
// =============================================================================

// Event records a funnel event reported by the browser. Only the stages the
// browser observes itself are accepted; the rest are emitted by the server.
func (h *APIHandler) Event(w http.ResponseWriter, r *http.Request) {
	const op = "api.event"

	var req EventRequest
	if err := decodeJSON(w, r, &req); err != nil {
		ErrorResponse(w, r, h.logger, domain.Invalid(op, "Corpo da requisição inválido."))
		return
	}
	if !req.Stage.IsClientStage() {
		ErrorResponse(w, r, h.logger, domain.Invalid(op, "Etapa não aceita."))
		return
	}
	if _, err := uuid.Parse(req.FormID); err != nil {
		ErrorResponse(w, r, h.logger, domain.Invalid(op, "Formulário inválido."))
		return
	}

	visitorID, variant := h.experiment.FromRequest(r)
	e := domain.FunnelEvent{
		Stage:     req.Stage,
		FormID:    req.FormID,
		VisitorID: visitorID,
		Variant:   variant,
	}

	ctx := context.WithoutCancel(r.Context())
	if req.Stage == domain.StageStarted {
		h.funnel.Started(ctx, e)
	} else {
		h.funnel.Track(ctx, e)
	}

	w.WriteHeader(http.StatusAccepted)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBody))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}
