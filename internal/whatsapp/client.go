// Package whatsapp is the client of the WhatsApp Service. The landing page
// never talks to WhatsApp directly; it asks the service to start onboarding
// for a freshly created profile.
package whatsapp

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/DukeRupert/cardapiofacil/internal/domain"
	"github.com/DukeRupert/cardapiofacil/internal/form"
	"github.com/DukeRupert/cardapiofacil/internal/upstream"
)

// Defaults used when the service is not configured.
const (
	DefaultBaseURL = "http://localhost:3002/api/v1"
	DefaultAPIKey  = "dev-api-key"
)

// APIKeyHeader carries the service API key.
const APIKeyHeader = "X-API-Key"

const landingPageSignupPath = "/onboarding/landing-page-signup"

// SignupNotification is the body of POST /onboarding/landing-page-signup.
type SignupNotification struct {
	ProfileID           string `json:"profileId" validate:"required"`
	Name                string `json:"name" validate:"required"`
	PhoneNumber         string `json:"phoneNumber" validate:"required,numeric"`
	FamilySize          string `json:"familySize" validate:"required"`
	DietaryRestrictions string `json:"dietaryRestrictions,omitempty"`
	Source              string `json:"source" validate:"required"`
}

// Onboarding is the data member of a successful response. The service may
// answer with an empty data member; only success matters.
type Onboarding struct {
	ProfileID     string `json:"profileId"`
	OnboardingID  string `json:"onboardingId"`
	MessageStatus string `json:"messageStatus"`
	Timestamp     string `json:"timestamp"`
}

// Client asks the WhatsApp Service to send onboarding messages.
type Client interface {
	NotifyLandingPageSignup(ctx context.Context, profileID string, data domain.SignupFormData) (*Onboarding, error)
}

// Config holds the client configuration.
type Config struct {
	BaseURL string
	APIKey  string
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
	if cfg.APIKey == "" {
		cfg.APIKey = DefaultAPIKey
	}
	if logger != nil {
		logger.Info("whatsapp client configured",
			"base_url", cfg.BaseURL,
			"api_key", MaskAPIKey(cfg.APIKey),
		)
	}
	return &httpClient{
		caller: upstream.NewCaller(upstream.Config{
			Service:        "whatsapp",
			BaseURL:        cfg.BaseURL,
			Timeout:        cfg.Timeout,
			Headers:        map[string]string{APIKeyHeader: cfg.APIKey},
			DefaultCode:    "API_ERROR",
			DefaultMessage: "Failed to notify WhatsApp service",
			Logger:         logger,
		}),
	}
}

// NewNotification builds the request body for a created profile.
func NewNotification(profileID string, data domain.SignupFormData) SignupNotification {
	return SignupNotification{
		ProfileID:           profileID,
		Name:                strings.TrimSpace(data.Name),
		PhoneNumber:         form.PrepareWhatsAppNumber(data.WhatsApp),
		FamilySize:          data.FamilySize,
		DietaryRestrictions: data.DietaryRestrictions,
		Source:              domain.SourceLandingPage,
	}
}

// NotifyLandingPageSignup requests the welcome message for a new signup.
func (c *httpClient) NotifyLandingPageSignup(ctx context.Context, profileID string, data domain.SignupFormData) (*Onboarding, error) {
	env, err := upstream.Post[Onboarding](ctx, c.caller, landingPageSignupPath, NewNotification(profileID, data))
	if err != nil {
		return nil, err
	}
	if env.Data == nil {
		return &Onboarding{ProfileID: profileID}, nil
	}
	return env.Data, nil
}

// MaskAPIKey keeps the first and last three characters of a key for logs.
func MaskAPIKey(key string) string {
	if len(key) <= 6 {
		return strings.Repeat("*", len(key))
	}
	return key[:3] + "..." + key[len(key)-3:]
}
