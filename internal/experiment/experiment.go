// Package experiment assigns landing page visitors to A/B variants.
package experiment

import (
	"errors"
	"fmt"
	"hash/fnv"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/DukeRupert/cardapiofacil/internal/domain"
	"github.com/DukeRupert/cardapiofacil/internal/metrics"
)

const (
	// VisitorCookie holds the visitor id that variants are derived from.
	VisitorCookie = "ab_test_user_id"

	visitorCookieMaxAge = 365 * 24 * time.Hour
)

// Arm is a variant and its share of traffic.
type Arm struct {
	Variant domain.Variant
	Weight  uint32
}

// DefaultArms splits traffic evenly across the three variants.
func DefaultArms() []Arm {
	return []Arm{
		{Variant: domain.VariantControl, Weight: 34},
		{Variant: domain.VariantA, Weight: 33},
		{Variant: domain.VariantB, Weight: 33},
	}
}

// Assigner maps visitor ids to variants. The same id always gets the same
// variant for a given set of arms.
type Assigner struct {
	arms   []Arm
	total  uint32
	secure bool
}

// NewAssigner validates the arms. secure marks the visitor cookie Secure.
func NewAssigner(arms []Arm, secure bool) (*Assigner, error) {
	if len(arms) == 0 {
		return nil, errors.New("experiment: no arms")
	}

	var total uint32
	seen := make(map[domain.Variant]bool, len(arms))
	for _, a := range arms {
		if !a.Variant.IsValid() {
			return nil, fmt.Errorf("experiment: unknown variant %q", a.Variant)
		}
		if seen[a.Variant] {
			return nil, fmt.Errorf("experiment: duplicate variant %q", a.Variant)
		}
		seen[a.Variant] = true
		total += a.Weight
	}
	if total == 0 {
		return nil, errors.New("experiment: weights sum to zero")
	}

	return &Assigner{arms: arms, total: total, secure: secure}, nil
}

// Variant picks the arm for visitorID using FNV-1a over the id.
func (a *Assigner) Variant(visitorID string) domain.Variant {
	h := fnv.New32a()
	h.Write([]byte(visitorID))
	bucket := h.Sum32() % a.total

	for _, arm := range a.arms {
		if bucket < arm.Weight {
			return arm.Variant
		}
		bucket -= arm.Weight
	}
	return a.arms[len(a.arms)-1].Variant
}

// Visitor returns the request's visitor id, issuing a new one in a cookie
// when the request has none or it is not a uuid.
func (a *Assigner) Visitor(w http.ResponseWriter, r *http.Request) string {
	if c, err := r.Cookie(VisitorCookie); err == nil {
		if id, err := uuid.Parse(c.Value); err == nil {
			return id.String()
		}
	}

	id := uuid.NewString()
	http.SetCookie(w, &http.Cookie{
		Name:     VisitorCookie,
		Value:    id,
		Path:     "/",
		MaxAge:   int(visitorCookieMaxAge.Seconds()),
		HttpOnly: true,
		Secure:   a.secure,
		SameSite: http.SameSiteLaxMode,
	})
	return id
}

// Expose resolves the visitor and variant for a page view and counts the
// exposure.
func (a *Assigner) Expose(w http.ResponseWriter, r *http.Request) (visitorID string, variant domain.Variant) {
	visitorID = a.Visitor(w, r)
	variant = a.Variant(visitorID)
	metrics.ExperimentExposuresTotal.WithLabelValues(string(variant)).Inc()
	return visitorID, variant
}

// FromRequest reads the visitor and variant without issuing a cookie or
// counting an exposure. Requests without a valid cookie get an empty
// visitor id and the control variant.
func (a *Assigner) FromRequest(r *http.Request) (visitorID string, variant domain.Variant) {
	c, err := r.Cookie(VisitorCookie)
	if err != nil {
		return "", domain.VariantControl
	}
	id, err := uuid.Parse(c.Value)
	if err != nil {
		return "", domain.VariantControl
	}
	return id.String(), a.Variant(id.String())
}
