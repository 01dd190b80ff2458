package handler

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DukeRupert/cardapiofacil/internal/domain"
	"github.com/DukeRupert/cardapiofacil/internal/service"
)

type mockImageService struct {
	VariantFunc func(ctx context.Context, name string, width int) (io.ReadCloser, service.ImageVariant, error)
}

func (m *mockImageService) Variant(ctx context.Context, name string, width int) (io.ReadCloser, service.ImageVariant, error) {
	return m.VariantFunc(ctx, name, width)
}

func serveImage(t *testing.T, images service.ImageService, target string) *httptest.ResponseRecorder {
	t.Helper()
	mux := http.NewServeMux()
	NewImageHandler(images, testLogger()).RegisterRoutes(mux)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func TestImage_Serves(t *testing.T) {
	var gotName string
	var gotWidth int
	images := &mockImageService{VariantFunc: func(ctx context.Context, name string, width int) (io.ReadCloser, service.ImageVariant, error) {
		gotName, gotWidth = name, width
		return io.NopCloser(strings.NewReader("jpegdata")), service.ImageVariant{
			Width: 640, ContentType: "image/jpeg", Size: 8, Result: service.ImageResized,
		}, nil
	}}

	rec := serveImage(t, images, "/images/hero-maes.jpg?w=700")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "hero-maes.jpg", gotName)
	assert.Equal(t, 700, gotWidth)
	assert.Equal(t, "image/jpeg", rec.Header().Get("Content-Type"))
	assert.Equal(t, "8", rec.Header().Get("Content-Length"))
	assert.Contains(t, rec.Header().Get("Cache-Control"), "immutable")
	assert.Equal(t, "jpegdata", rec.Body.String())
}

func TestImage_MissingWidthPassesZero(t *testing.T) {
	var gotWidth = -1
	images := &mockImageService{VariantFunc: func(ctx context.Context, name string, width int) (io.ReadCloser, service.ImageVariant, error) {
		gotWidth = width
		return io.NopCloser(strings.NewReader("")), service.ImageVariant{ContentType: "image/png", Result: service.ImageCacheHit}, nil
	}}

	serveImage(t, images, "/images/a.png")

	assert.Equal(t, 0, gotWidth)
}

func TestImage_Errors(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{"missing source", domain.Errorf(domain.ENOTFOUND, "image.resize", "Imagem não encontrada."), http.StatusNotFound},
		{"invalid name", domain.Invalid("image.variant", "Imagem inválida."), http.StatusNotFound},
		{"storage failure", domain.Internal(errors.New("disk"), "image.variant", "failed"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			images := &mockImageService{VariantFunc: func(ctx context.Context, name string, width int) (io.ReadCloser, service.ImageVariant, error) {
				return nil, service.ImageVariant{}, tt.err
			}}

			rec := serveImage(t, images, "/images/x.jpg")

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.NotContains(t, rec.Body.String(), "disk")
		})
	}
}

func TestHealth(t *testing.T) {
	rec := httptest.NewRecorder()
	Health(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK", rec.Body.String())
}
