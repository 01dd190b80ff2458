// This file implements the responsive image endpoint used by the landing
// page's srcset attributes.
package handler

import (
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/DukeRupert/cardapiofacil/internal/domain"
	"github.com/DukeRupert/cardapiofacil/internal/metrics"
	"github.com/DukeRupert/cardapiofacil/internal/service"
)

// ImageHandler serves resized landing page images.
type ImageHandler struct {
	images service.ImageService
	logger *slog.Logger
}

// NewImageHandler creates a new ImageHandler.
func NewImageHandler(images service.ImageService, logger *slog.Logger) *ImageHandler {
	return &ImageHandler{
		images: images,
		logger: logger,
	}
}

// RegisterRoutes registers the image route.
func (h *ImageHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /images/{name}", h.Serve)
}

// =============================================================================
// GET /images/{name}?w=N
// =============================================================================

// Serve writes the image resized to the allowed width nearest to w.
func (h *ImageHandler) Serve(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	width, _ := strconv.Atoi(r.URL.Query().Get("w"))

	rc, variant, err := h.images.Variant(r.Context(), name, width)
	if err != nil {
		switch domain.ErrorCode(err) {
		case domain.ENOTFOUND, domain.EINVALID:
			metrics.ImageRequestsTotal.WithLabelValues("not_found").Inc()
			http.NotFound(w, r)
		default:
			metrics.ImageRequestsTotal.WithLabelValues("error").Inc()
			InternalErrorResponse(w, r, h.logger, err)
		}
		return
	}
	defer rc.Close()

	metrics.ImageRequestsTotal.WithLabelValues(variant.Result).Inc()

	w.Header().Set("Content-Type", variant.ContentType)
	if variant.Size > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(variant.Size, 10))
	}
	w.Header().Set("Cache-Control", "public, max-age=604800, immutable")
	w.Header().Set("Vary", "Accept")
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, rc); err != nil {
		h.logger.Debug("image write interrupted", "name", name, "error", err)
	}
}
