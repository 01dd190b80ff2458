package session

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/DukeRupert/cardapiofacil/internal/domain"
)

// ErrNoConfirmation is returned when a token is unknown, expired or
// already consumed.
var ErrNoConfirmation = errors.New("session: no confirmation")

type entry struct {
	result    domain.SubmissionResult
	expiresAt time.Time
}

// Store holds submission results until the confirmation page reads them.
// Each entry can be taken once.
type Store struct {
	mu      sync.Mutex
	entries map[string]entry
	ttl     time.Duration
	secure  bool
	now     func() time.Time

	stopOnce sync.Once
	stop     chan struct{}
	done     chan struct{}
}

// NewStore starts a sweeper that evicts expired entries every ttl. Call
// Stop to end it.
func NewStore(ttl time.Duration, secure bool) *Store {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	s := &Store{
		entries: make(map[string]entry),
		ttl:     ttl,
		secure:  secure,
		now:     time.Now,
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
	go s.sweepLoop()
	return s
}

// Put stores result under a new random token.
func (s *Store) Put(result domain.SubmissionResult) (string, error) {
	b := make([]byte, 24)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	token := base64.RawURLEncoding.EncodeToString(b)

	s.mu.Lock()
	s.entries[token] = entry{result: result, expiresAt: s.now().Add(s.ttl)}
	s.mu.Unlock()

	return token, nil
}

// Take removes and returns the result stored under token.
func (s *Store) Take(token string) (domain.SubmissionResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[token]
	if !ok {
		return domain.SubmissionResult{}, ErrNoConfirmation
	}
	delete(s.entries, token)

	if !s.now().Before(e.expiresAt) {
		return domain.SubmissionResult{}, ErrNoConfirmation
	}
	return e.result, nil
}

func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Issue stores result and sets the confirmation cookie on w.
func (s *Store) Issue(w http.ResponseWriter, result domain.SubmissionResult) error {
	token, err := s.Put(result)
	if err != nil {
		return err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    token,
		Path:     CookiePath,
		MaxAge:   int(s.ttl.Seconds()),
		HttpOnly: true,
		Secure:   s.secure,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

// Claim takes the result named by the request's cookie and clears the
// cookie, whether or not an entry was found.
func (s *Store) Claim(w http.ResponseWriter, r *http.Request) (domain.SubmissionResult, error) {
	c, err := r.Cookie(CookieName)
	if err != nil || c.Value == "" {
		return domain.SubmissionResult{}, ErrNoConfirmation
	}

	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     CookiePath,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   s.secure,
		SameSite: http.SameSiteLaxMode,
	})

	return s.Take(c.Value)
}

func (s *Store) sweep() {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	for token, e := range s.entries {
		if !now.Before(e.expiresAt) {
			delete(s.entries, token)
		}
	}
}

func (s *Store) sweepLoop() {
	defer close(s.done)

	ticker := time.NewTicker(s.ttl)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.sweep()
		case <-s.stop:
			return
		}
	}
}

// Stop ends the sweeper. It is safe to call more than once.
func (s *Store) Stop() {
	s.stopOnce.Do(func() { close(s.stop) })
	<-s.done
}
