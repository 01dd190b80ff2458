// This file implements the static text pages linked from the signup form
// and the rendered not-found page.
package handler

import (
	"log/slog"
	"net/http"

	"github.com/DukeRupert/cardapiofacil/internal/content"
	"github.com/DukeRupert/cardapiofacil/internal/templ/components/toast"
)

// LegalPageData is the data for the terms and privacy pages.
type LegalPageData struct {
	Brand     string
	CSRFToken string
	Document  content.Document
	Toast     *toast.Data
}

// NotFoundPageData is the data for the 404 page.
type NotFoundPageData struct {
	Brand     string
	CSRFToken string
	Path      string
	Toast     *toast.Data
}

// PageHandler serves pages that are rendered from content only.
type PageHandler struct {
	renderer *Renderer
	content  *content.Content
	logger   *slog.Logger
}

// NewPageHandler creates a new PageHandler.
func NewPageHandler(renderer *Renderer, pageContent *content.Content, logger *slog.Logger) *PageHandler {
	return &PageHandler{
		renderer: renderer,
		content:  pageContent,
		logger:   logger,
	}
}

// RegisterRoutes registers the legal pages and the catch-all 404.
func (h *PageHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /termos", h.legal(func(c *content.Content) content.Document { return c.Legal.Terms }))
	mux.HandleFunc("GET /privacidade", h.legal(func(c *content.Content) content.Document { return c.Legal.Privacy }))
	mux.HandleFunc("/", h.NotFound)
}

func (h *PageHandler) legal(doc func(*content.Content) content.Document) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		h.renderer.RenderHTTP(w, http.StatusOK, "legal", LegalPageData{
			Brand:     h.content.Brand,
			CSRFToken: csrfToken(r),
			Document:  doc(h.content),
		})
	}
}

// NotFound renders the 404 page, or the JSON/text error for API and htmx
// requests.
func (h *PageHandler) NotFound(w http.ResponseWriter, r *http.Request) {
	if acceptsJSON(r) || isHTMX(r) || r.Method != http.MethodGet {
		NotFoundResponse(w, r, h.logger)
		return
	}

	h.renderer.RenderHTTP(w, http.StatusNotFound, "not_found", NotFoundPageData{
		Brand:     h.content.Brand,
		CSRFToken: csrfToken(r),
		Path:      r.URL.Path,
	})
}
