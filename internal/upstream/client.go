package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/DukeRupert/cardapiofacil/internal/metrics"
)

// maxResponseBytes caps how much of a response body is read.
const maxResponseBytes = 1 << 20

// Envelope is the response shape shared by the backend services:
//
//	{"success": true, "data": {...}, "meta": {...}}
//	{"success": false, "error": {"message": "...", "code": "..."}}
//
// Success is a pointer so a body without it is detected as malformed.
type Envelope[T any] struct {
	Success *bool          `json:"success" validate:"required"`
	Data    *T             `json:"data,omitempty"`
	Meta    map[string]any `json:"meta,omitempty"`
	Error   *ErrorBody     `json:"error,omitempty"`
}

// ErrorBody is the error member of a failed envelope.
type ErrorBody struct {
	Message string `json:"message"`
	Code    string `json:"code"`
}

// Config configures a Caller.
type Config struct {
	Service        string            // name used in errors and logs
	BaseURL        string            // e.g. http://localhost:3001/api/v1
	Timeout        time.Duration     // per-call http.Client timeout
	Headers        map[string]string // extra headers sent on every call
	DefaultCode    string            // code used when a rejection carries none
	DefaultMessage string            // message used when a rejection carries none
	Logger         *slog.Logger
	HTTPClient     *http.Client // optional, overrides Timeout
}

// Caller performs JSON calls against one backend service and turns every
// outcome into either a validated envelope or an *Error.
type Caller struct {
	cfg      Config
	client   *http.Client
	validate *validator.Validate
}

// NewCaller creates a Caller.
func NewCaller(cfg Config) *Caller {
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	if cfg.DefaultCode == "" {
		cfg.DefaultCode = CodeUnknown
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &Caller{
		cfg:      cfg,
		client:   client,
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
}

// Service returns the configured service name.
func (c *Caller) Service() string {
	return c.cfg.Service
}

// Post sends body as JSON to path and decodes the envelope. The request body
// is validated before anything is sent; the data member of a successful
// response is validated with its struct tags.
func Post[T any](ctx context.Context, c *Caller, path string, body any) (*Envelope[T], error) {
	start := time.Now()
	env, err := post[T](ctx, c, path, body)

	result := "ok"
	if ue, ok := AsError(err); ok {
		result = string(ue.Kind)
	} else if err != nil {
		result = "error"
	}
	metrics.UpstreamCall(c.cfg.Service, result, time.Since(start))

	return env, err
}

func post[T any](ctx context.Context, c *Caller, path string, body any) (*Envelope[T], error) {
	if err := c.validate.Struct(body); err != nil {
		return nil, c.invalidRequest(err)
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("%s: marshal request: %w", c.cfg.Service, err)
	}

	url := c.cfg.BaseURL + path
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("%s: build request: %w", c.cfg.Service, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	for k, v := range c.cfg.Headers {
		req.Header.Set(k, v)
	}

	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, &Error{
			Service: c.cfg.Service,
			Kind:    KindUnavailable,
			Code:    CodeUnavailable,
			Message: "Network error or service unavailable",
			Err:     err,
		}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, &Error{
			Service: c.cfg.Service,
			Kind:    KindUnavailable,
			Status:  resp.StatusCode,
			Code:    CodeUnavailable,
			Message: "Failed to read response",
			Err:     err,
		}
	}

	if c.cfg.Logger != nil {
		c.cfg.Logger.Debug("upstream call",
			"service", c.cfg.Service,
			"path", path,
			"status", resp.StatusCode,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	}

	return decodeEnvelope[T](c, resp.StatusCode, raw)
}

func decodeEnvelope[T any](c *Caller, status int, raw []byte) (*Envelope[T], error) {
	var env Envelope[T]
	decodeErr := json.Unmarshal(raw, &env)
	ok := status >= 200 && status < 300

	if !ok {
		// The service answered with an error status. Take what the body
		// offers and fall back to the defaults.
		if decodeErr != nil {
			return nil, c.rejected(status, nil)
		}
		return nil, c.rejected(status, env.Error)
	}

	if decodeErr != nil {
		return nil, c.malformed(status, decodeErr)
	}
	if err := c.validate.Struct(&env); err != nil {
		return nil, c.malformed(status, err)
	}

	if !*env.Success {
		return nil, c.rejected(status, env.Error)
	}

	return &env, nil
}

func (c *Caller) rejected(status int, body *ErrorBody) *Error {
	code, message := c.cfg.DefaultCode, c.cfg.DefaultMessage
	if body != nil {
		if body.Code != "" {
			code = body.Code
		}
		if body.Message != "" {
			message = body.Message
		}
	}
	if message == "" {
		message = http.StatusText(status)
	}
	return &Error{
		Service: c.cfg.Service,
		Kind:    KindRejected,
		Status:  status,
		Code:    code,
		Message: message,
	}
}

func (c *Caller) malformed(status int, err error) *Error {
	return &Error{
		Service: c.cfg.Service,
		Kind:    KindMalformed,
		Status:  status,
		Code:    CodeMalformed,
		Message: "Unexpected response from service",
		Err:     err,
	}
}

// invalidRequest reports a request that failed validation before it was sent,
// with the same code the services use for rejected input.
func (c *Caller) invalidRequest(err error) *Error {
	var fields []string
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		for _, fe := range verrs {
			fields = append(fields, fe.Field())
		}
	}
	return &Error{
		Service: c.cfg.Service,
		Kind:    KindRejected,
		Code:    CodeValidation,
		Message: "Validation error: invalid " + strings.Join(fields, ", "),
		Err:     err,
	}
}
