// Package handler contains HTTP handlers for the Cardápio Fácil landing page.
//
// This file implements the landing page, the htmx live validation, the
// signup form submit and the confirmation page.
package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/google/uuid"

	"github.com/DukeRupert/cardapiofacil/internal/content"
	"github.com/DukeRupert/cardapiofacil/internal/csrf"
	"github.com/DukeRupert/cardapiofacil/internal/domain"
	"github.com/DukeRupert/cardapiofacil/internal/experiment"
	"github.com/DukeRupert/cardapiofacil/internal/form"
	"github.com/DukeRupert/cardapiofacil/internal/service"
	"github.com/DukeRupert/cardapiofacil/internal/session"
	"github.com/DukeRupert/cardapiofacil/internal/templ/components/toast"
)

// inputField names the field whose blur or change triggered a live
// validation request.
const inputField = "field"

// =============================================================================
// Template Data Types
// =============================================================================

// LandingPageData contains data for the landing page.
type LandingPageData struct {
	Brand     string
	CSRFToken string
	Variant   domain.Variant
	Hero      content.Hero
	Content   *content.Content
	Form      FormData
	Toast     *toast.Data // Shown when a plain form post failed
}

// FormData contains data for the signup form partial.
type FormData struct {
	CSRFToken         string
	FormID            string
	Values            domain.SignupFormData
	Errors            map[string]string // Visible field errors
	Touched           []string          // Touched field names, echoed back as hidden inputs
	FamilySizeOptions []content.Option
	DietaryOptions    []content.Option
	CTA               string
}

// ConfirmationPageData contains data for the confirmation page.
type ConfirmationPageData struct {
	Brand        string
	CSRFToken    string
	Result       domain.SubmissionResult
	FamilySize   string // Label of the chosen family size
	WhatsAppLink string
	Toast        *toast.Data
}

// =============================================================================
// Handler Configuration
// =============================================================================

// Funnel receives the funnel events emitted by the page handlers.
type Funnel interface {
	Track(ctx context.Context, e domain.FunnelEvent)
	Started(ctx context.Context, e domain.FunnelEvent) bool
}

// LandingHandler serves the landing page and its signup form.
type LandingHandler struct {
	renderer       *Renderer
	content        *content.Content
	signups        service.SignupService
	funnel         Funnel
	experiment     *experiment.Assigner
	confirmations  *session.Store
	whatsappNumber string
	secure         bool
	logger         *slog.Logger
}

// NewLandingHandler creates a new LandingHandler.
func NewLandingHandler(
	renderer *Renderer,
	pageContent *content.Content,
	signups service.SignupService,
	funnel Funnel,
	assigner *experiment.Assigner,
	confirmations *session.Store,
	whatsappNumber string,
	secure bool,
	logger *slog.Logger,
) *LandingHandler {
	return &LandingHandler{
		renderer:       renderer,
		content:        pageContent,
		signups:        signups,
		funnel:         funnel,
		experiment:     assigner,
		confirmations:  confirmations,
		whatsappNumber: whatsappNumber,
		secure:         secure,
		logger:         logger,
	}
}

// RegisterRoutes registers the page routes. limit wraps the submit route.
func (h *LandingHandler) RegisterRoutes(mux *http.ServeMux, limit func(http.Handler) http.Handler) {
	mux.HandleFunc("GET /{$}", h.Show)
	mux.HandleFunc("POST /signup/validate", h.Validate)
	mux.Handle("POST /signup", limit(http.HandlerFunc(h.Submit)))
	mux.HandleFunc("GET /obrigado", h.Confirmation)
}

// =============================================================================
// GET / - Landing Page
// =============================================================================

// Show renders the landing page with a fresh form instance.
func (h *LandingHandler) Show(w http.ResponseWriter, r *http.Request) {
	token, err := csrf.EnsureToken(w, r, h.secure)
	if err != nil {
		InternalErrorResponse(w, r, h.logger, err)
		return
	}

	visitorID, variant := h.experiment.Expose(w, r)
	state := form.NewState(uuid.NewString())

	h.funnel.Track(context.WithoutCancel(r.Context()), domain.FunnelEvent{
		Stage:     domain.StageViewed,
		FormID:    state.FormID,
		VisitorID: visitorID,
		Variant:   variant,
	})

	hero := h.content.Hero(variant)
	h.renderer.RenderHTTP(w, http.StatusOK, "landing", LandingPageData{
		Brand:     h.content.Brand,
		CSRFToken: token,
		Variant:   variant,
		Hero:      hero,
		Content:   h.content,
		Form:      h.formData(state, token, hero.CTA),
	})
}

// =============================================================================
// POST /signup/validate - Live Validation
// =============================================================================

// Validate re-renders the form after a field blur or change. The first
// interaction with a form instance emits the "started" funnel event.
func (h *LandingHandler) Validate(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		ErrorResponse(w, r, h.logger, domain.Invalid("signup.validate", domain.MsgValidationTitle))
		return
	}

	state := form.Decode(r.PostForm)
	if f := domain.Field(r.PostForm.Get(inputField)); f.IsValid() {
		// Change reformats the WhatsApp number as it is typed.
		state.Change(f, r.PostForm.Get(f.String()))
	}

	visitorID, variant := h.experiment.FromRequest(r)
	if state.HasTouched() {
		h.funnel.Started(context.WithoutCancel(r.Context()), domain.FunnelEvent{
			FormID:    state.FormID,
			VisitorID: visitorID,
			Variant:   variant,
		})
	}

	h.renderer.RenderPartial(w, http.StatusOK, "signup_form", h.formData(state, csrfToken(r), h.content.Hero(variant).CTA))
}

// =============================================================================
// POST /signup - Submit
// =============================================================================

// Submit runs the signup. On success the visitor is sent to the
// confirmation page; otherwise the form is rendered again with its errors
// and a toast.
func (h *LandingHandler) Submit(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		ErrorResponse(w, r, h.logger, domain.Invalid("signup.submit", domain.MsgValidationTitle))
		return
	}

	state := form.Decode(r.PostForm)
	visitorID, variant := h.experiment.FromRequest(r)

	result, err := h.signups.Submit(r.Context(), service.SubmitParams{
		Form:      state,
		VisitorID: visitorID,
		Variant:   variant,
	})
	if err != nil {
		if requestAbandoned(err) {
			// The visitor left; nothing to render.
			return
		}
		h.renderSubmitError(w, r, state, variant, err)
		return
	}

	if err := h.confirmations.Issue(w, *result); err != nil {
		InternalErrorResponse(w, r, h.logger, err)
		return
	}

	if isHTMX(r) {
		w.Header().Set("HX-Redirect", "/obrigado")
		w.WriteHeader(http.StatusOK)
		return
	}
	http.Redirect(w, r, "/obrigado", http.StatusSeeOther)
}

func (h *LandingHandler) renderSubmitError(w http.ResponseWriter, r *http.Request, state *form.State, variant domain.Variant, err error) {
	t := service.ToastForError(err)
	status := http.StatusUnprocessableEntity
	if code := domain.ErrorCode(err); code != domain.EINVALID {
		status = ErrorCodeToHTTPStatus(code)
	}

	token := csrfToken(r)
	data := h.formData(state, token, h.content.Hero(variant).CTA)
	toastData := toast.Data{Title: t.Title, Description: t.Description, Variant: t.Variant}

	if isHTMX(r) {
		// htmx does not swap 4xx/5xx bodies by default, so the form is
		// returned with 200 and the status travels in the toast.
		h.renderer.RenderPartialWithToast(w, http.StatusOK, "signup_form", data, toastData)
		return
	}

	hero := h.content.Hero(variant)
	h.renderer.RenderHTTP(w, status, "landing", LandingPageData{
		Brand:     h.content.Brand,
		CSRFToken: token,
		Variant:   variant,
		Hero:      hero,
		Content:   h.content,
		Form:      data,
		Toast:     &toastData,
	})
}

// =============================================================================
// GET /obrigado - Confirmation
// =============================================================================

// Confirmation shows the result of the last signup. Visiting it without a
// pending confirmation redirects to the landing page.
func (h *LandingHandler) Confirmation(w http.ResponseWriter, r *http.Request) {
	result, err := h.confirmations.Claim(w, r)
	if err != nil {
		if !errors.Is(err, session.ErrNoConfirmation) {
			h.logger.Warn("failed to claim confirmation", "error", err)
		}
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}

	h.renderer.RenderHTTP(w, http.StatusOK, "obrigado", ConfirmationPageData{
		Brand:        h.content.Brand,
		CSRFToken:    csrfToken(r),
		Result:       result,
		FamilySize:   h.content.FamilySizeLabel(result.FormData.FamilySize),
		WhatsAppLink: WhatsAppLink(h.whatsappNumber),
	})
}

// WhatsAppLink returns the click-to-chat link that opens a conversation
// with the business number and the onboarding keyword typed in.
func WhatsAppLink(number string) string {
	return "https://wa.me/" + form.Digits(number) + "?" + url.Values{"text": {"INICIAR"}}.Encode()
}

// =============================================================================
// Helpers
// =============================================================================

func (h *LandingHandler) formData(state *form.State, token, cta string) FormData {
	return FormData{
		CSRFToken:         token,
		FormID:            state.FormID,
		Values:            state.Values,
		Errors:            state.Errors.StringMap(),
		Touched:           state.TouchedFields(),
		FamilySizeOptions: h.content.FamilySizeOptions(),
		DietaryOptions:    h.content.DietaryOptions(),
		CTA:               cta,
	}
}

// csrfToken returns the token of the request's CSRF cookie. Pages rendered
// after the middleware accepted a request reuse it.
func csrfToken(r *http.Request) string {
	if c, err := r.Cookie(csrf.CookieName); err == nil {
		return c.Value
	}
	return ""
}
