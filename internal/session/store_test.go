package session

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/DukeRupert/cardapiofacil/internal/domain"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s := NewStore(time.Minute, false)
	t.Cleanup(s.Stop)
	return s
}

func sampleResult() domain.SubmissionResult {
	return domain.SubmissionResult{
		ProfileID:        "user-123",
		WhatsAppNotified: true,
		FormData:         domain.SignupFormData{Name: "Maria Silva"},
	}
}

func TestStore_TakeIsOneShot(t *testing.T) {
	s := newTestStore(t)

	token, err := s.Put(sampleResult())
	require.NoError(t, err)

	got, err := s.Take(token)
	require.NoError(t, err)
	assert.Equal(t, sampleResult(), got)

	_, err = s.Take(token)
	assert.ErrorIs(t, err, ErrNoConfirmation)
}

func TestStore_TakeUnknown(t *testing.T) {
	s := newTestStore(t)

	_, err := s.Take("nope")
	assert.ErrorIs(t, err, ErrNoConfirmation)
}

func TestStore_Expiry(t *testing.T) {
	s := newTestStore(t)
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }

	expired, err := s.Put(sampleResult())
	require.NoError(t, err)
	swept, err := s.Put(sampleResult())
	require.NoError(t, err)

	now = now.Add(time.Minute)

	_, err = s.Take(expired)
	assert.ErrorIs(t, err, ErrNoConfirmation)

	assert.Equal(t, 1, s.Len())
	s.sweep()
	assert.Equal(t, 0, s.Len())

	_, err = s.Take(swept)
	assert.ErrorIs(t, err, ErrNoConfirmation)
}

func TestStore_IssueAndClaim(t *testing.T) {
	s := newTestStore(t)

	rec := httptest.NewRecorder()
	require.NoError(t, s.Issue(rec, sampleResult()))

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, CookieName, cookies[0].Name)
	assert.True(t, cookies[0].HttpOnly)
	assert.Equal(t, CookiePath, cookies[0].Path)

	req := httptest.NewRequest(http.MethodGet, "/obrigado", nil)
	req.AddCookie(cookies[0])
	rec = httptest.NewRecorder()

	got, err := s.Claim(rec, req)
	require.NoError(t, err)
	assert.Equal(t, "user-123", got.ProfileID)

	cleared := rec.Result().Cookies()
	require.Len(t, cleared, 1)
	assert.Equal(t, -1, cleared[0].MaxAge)

	// A second visit with the same cookie finds nothing.
	req = httptest.NewRequest(http.MethodGet, "/obrigado", nil)
	req.AddCookie(cookies[0])
	_, err = s.Claim(httptest.NewRecorder(), req)
	assert.ErrorIs(t, err, ErrNoConfirmation)
}

func TestStore_ClaimWithoutCookie(t *testing.T) {
	s := newTestStore(t)

	_, err := s.Claim(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/obrigado", nil))
	assert.ErrorIs(t, err, ErrNoConfirmation)
}

func TestStore_StopIsIdempotent(t *testing.T) {
	s := NewStore(time.Minute, false)
	s.Stop()
	s.Stop()
}
