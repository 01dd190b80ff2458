// Package profile is the client of the User Management Service, which owns
// user records. The landing page only ever creates partial profiles; the
// rest of the profile is completed during WhatsApp onboarding.
package profile

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/DukeRupert/cardapiofacil/internal/domain"
	"github.com/DukeRupert/cardapiofacil/internal/form"
	"github.com/DukeRupert/cardapiofacil/internal/upstream"
)

// DefaultBaseURL is used when no service URL is configured.
const DefaultBaseURL = "http://localhost:3001/api/v1"

const partialProfilePath = "/users/partial-profile"

// PartialProfileRequest is the body of POST /users/partial-profile.
type PartialProfileRequest struct {
	Name                  string `json:"name" validate:"required"`
	PhoneNumber           string `json:"phoneNumber" validate:"required,numeric,startswith=55"`
	Source                string `json:"source" validate:"required"`
	FamilySize            string `json:"familySize" validate:"required"`
	DietaryRestrictions   string `json:"dietaryRestrictions,omitempty"`
	AcceptedTerms         bool   `json:"acceptedTerms"`
	AcceptedPrivacyPolicy bool   `json:"acceptedPrivacyPolicy"`
}

// Profile is the data member of a successful response.
type Profile struct {
	ID                  string `json:"id" validate:"required"`
	Name                string `json:"name"`
	PhoneNumber         string `json:"phoneNumber"`
	FamilySize          string `json:"familySize"`
	DietaryRestrictions string `json:"dietaryRestrictions,omitempty"`
	CreatedAt           string `json:"createdAt"` // unparsed
	Status              string `json:"status"`
}

// Created is the success side of CreatePartialProfile. Existing is true when
// the service matched the phone number to a profile it already had.
type Created struct {
	Profile  Profile
	Existing bool
}

// Client creates partial profiles.
type Client interface {
	CreatePartialProfile(ctx context.Context, data domain.SignupFormData) (*Created, error)
}

// Config holds the client configuration.
type Config struct {
	BaseURL string
	Timeout time.Duration
}

type httpClient struct {
	caller *upstream.Caller
}

// NewClient creates a Client backed by HTTP.
func NewClient(cfg Config, logger *slog.Logger) Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	return &httpClient{
		caller: upstream.NewCaller(upstream.Config{
			Service:        "profile",
			BaseURL:        cfg.BaseURL,
			Timeout:        cfg.Timeout,
			DefaultCode:    upstream.CodeUnknown,
			DefaultMessage: "Failed to create profile",
			Logger:         logger,
		}),
	}
}

// NewRequest builds the request body from the form values.
func NewRequest(data domain.SignupFormData) PartialProfileRequest {
	return PartialProfileRequest{
		Name:                  strings.TrimSpace(data.Name),
		PhoneNumber:           form.PrepareWhatsAppNumber(data.WhatsApp),
		Source:                domain.SourceLandingPage,
		FamilySize:            data.FamilySize,
		DietaryRestrictions:   data.DietaryRestrictions,
		AcceptedTerms:         data.AcceptedTerms,
		AcceptedPrivacyPolicy: data.AcceptedPrivacyPolicy,
	}
}

// CreatePartialProfile posts the form to the service. Failures are always an
// *upstream.Error, except for request construction bugs.
func (c *httpClient) CreatePartialProfile(ctx context.Context, data domain.SignupFormData) (*Created, error) {
	env, err := upstream.Post[Profile](ctx, c.caller, partialProfilePath, NewRequest(data))
	if err != nil {
		return nil, err
	}
	if env.Data == nil {
		return nil, &upstream.Error{
			Service: c.caller.Service(),
			Kind:    upstream.KindMalformed,
			Code:    upstream.CodeMalformed,
			Message: "Successful response without profile data",
		}
	}

	created := &Created{Profile: *env.Data}
	if v, ok := env.Meta["created"].(bool); ok {
		created.Existing = !v
	}
	return created, nil
}
