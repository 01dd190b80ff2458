package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func secureHeaders(isSecure bool, origins ...string) http.Header {
	mw := NewSecurityHeadersMiddleware(isSecure, origins...)
	rec := httptest.NewRecorder()
	mw.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	return rec.Header()
}

func TestSecurityHeadersMiddleware_SetsHeaders(t *testing.T) {
	h := secureHeaders(false)

	assert.Equal(t, "DENY", h.Get("X-Frame-Options"))
	assert.Equal(t, "nosniff", h.Get("X-Content-Type-Options"))
	assert.Equal(t, "strict-origin-when-cross-origin", h.Get("Referrer-Policy"))
	assert.Contains(t, h.Get("Permissions-Policy"), "camera=()")
	assert.Empty(t, h.Get("Strict-Transport-Security"))
}

func TestSecurityHeadersMiddleware_HSTSInProduction(t *testing.T) {
	assert.Contains(t, secureHeaders(true).Get("Strict-Transport-Security"), "max-age=31536000")
}

func TestSecurityHeadersMiddleware_CSP(t *testing.T) {
	csp := secureHeaders(false).Get("Content-Security-Policy")

	assert.Contains(t, csp, "default-src 'self'")
	assert.Contains(t, csp, "script-src 'self' https://unpkg.com")
	assert.NotContains(t, csp, "script-src 'self' https://unpkg.com 'unsafe-inline'")
	assert.Contains(t, csp, "frame-ancestors 'none'")
	assert.Contains(t, csp, "form-action 'self'")
	assert.Contains(t, csp, "img-src 'self' data:;")
}

func TestSecurityHeadersMiddleware_ImageOrigins(t *testing.T) {
	csp := secureHeaders(true, "https://cdn.cardapiofacil.com.br", " ").Get("Content-Security-Policy")

	assert.Contains(t, csp, "img-src 'self' data: https://cdn.cardapiofacil.com.br;")
}
