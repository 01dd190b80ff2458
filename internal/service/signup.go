// Package service contains the business logic layer.
//
// This file implements the signup orchestrator: it validates the form,
// creates the partial profile, requests the WhatsApp onboarding message
// and produces the result the confirmation page shows.
package service

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/DukeRupert/cardapiofacil/internal/domain"
	"github.com/DukeRupert/cardapiofacil/internal/form"
	"github.com/DukeRupert/cardapiofacil/internal/metrics"
	"github.com/DukeRupert/cardapiofacil/internal/profile"
	"github.com/DukeRupert/cardapiofacil/internal/upstream"
	"github.com/DukeRupert/cardapiofacil/internal/whatsapp"
)

// ErrSubmissionInProgress is returned when a form instance is submitted
// again before its first submission finished.
var ErrSubmissionInProgress = domain.Conflict("signup.submit", domain.MsgInProgressTitle)

// Upstream error code reported on failed events when the request context
// ended mid-submission.
const codeCancelled = "CANCELLED"

// =============================================================================
// Interface Definition
// =============================================================================

// SignupService defines the signup submission flow.
type SignupService interface {
	// Submit runs one submit attempt for the form. It marks every field
	// touched on params.Form so the caller can render the errors.
	//
	// Errors:
	//   - *domain.ValidationError when the form is invalid (no calls made)
	//   - domain.EINVALID when the profile service rejected a field
	//   - domain.EUNAVAILABLE for server, network and malformed failures
	//   - ErrSubmissionInProgress (domain.ECONFLICT) on re-entrant submits
	//   - the context error when ctx ended during the attempt
	Submit(ctx context.Context, params SubmitParams) (*domain.SubmissionResult, error)
}

// Funnel receives the funnel events emitted around a submission.
type Funnel interface {
	Track(ctx context.Context, e domain.FunnelEvent)
	HashPhone(phone string) string
}

// SubmitParams identifies the form instance and visitor being submitted.
type SubmitParams struct {
	Form      *form.State
	VisitorID string
	Variant   domain.Variant
}

// =============================================================================
// Implementation
// =============================================================================

type signupService struct {
	profiles profile.Client
	whatsapp whatsapp.Client
	funnel   Funnel
	logger   *slog.Logger

	mu       sync.Mutex
	inFlight map[string]struct{}
}

// NewSignupService creates a SignupService.
func NewSignupService(
	profiles profile.Client,
	notifier whatsapp.Client,
	funnel Funnel,
	logger *slog.Logger,
) SignupService {
	return &signupService{
		profiles: profiles,
		whatsapp: notifier,
		funnel:   funnel,
		logger:   logger,
		inFlight: make(map[string]struct{}),
	}
}

// Submit implements SignupService.
func (s *signupService) Submit(ctx context.Context, params SubmitParams) (*domain.SubmissionResult, error) {
	const op = "signup.submit"

	st := params.Form
	if st == nil {
		return nil, domain.Internal(errors.New("nil form state"), op, "missing form state")
	}
	if st.FormID == "" {
		st.FormID = uuid.NewString()
	}

	if !s.acquire(st.FormID) {
		metrics.SignupFinished(metrics.OutcomeInProgress)
		s.logger.Info("submission already in progress", "form_id", st.FormID)
		return nil, ErrSubmissionInProgress
	}
	defer s.release(st.FormID)

	// Funnel delivery must not depend on the request outliving the attempt.
	trackCtx := context.WithoutCancel(ctx)
	base := domain.FunnelEvent{
		FormID:    st.FormID,
		VisitorID: params.VisitorID,
		Variant:   params.Variant,
	}
	track := func(e domain.FunnelEvent) {
		if s.funnel != nil {
			s.funnel.Track(trackCtx, e)
		}
	}

	sub := domain.NewSubmission(st.FormID)
	logger := s.logger.With("form_id", st.FormID)

	// idle -> validating
	s.transition(sub, domain.SubmissionValidating)
	track(withStage(base, domain.StageAttempted))

	if !st.TouchAll() {
		fields, _ := form.ValidateForm(st.Values)
		s.transition(sub, domain.SubmissionIdle)
		failed := withStage(base, domain.StageFailed)
		failed.FailureType = domain.FailureValidation
		failed.FailedFields = fields.Fields()
		track(failed)
		metrics.SignupFinished(metrics.OutcomeInvalid)
		logger.Debug("signup rejected by form validation", "fields", fields.Fields())
		return nil, domain.NewValidationError(op, fields)
	}
	track(withStage(base, domain.StageValidated))

	data := st.Values
	if s.funnel != nil {
		base.PhoneHash = s.funnel.HashPhone(data.WhatsApp)
	}

	// validating -> submitting_profile
	s.transition(sub, domain.SubmissionProfile)
	created, err := s.profiles.CreatePartialProfile(ctx, data)
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, s.cancelled(sub, base, track, logger, "profile", ctxErr)
	}
	if err != nil {
		s.transition(sub, domain.SubmissionFailure)
		return nil, s.profileFailed(op, base, track, logger, err)
	}

	profileID := created.Profile.ID
	base.ProfileID = profileID
	logger = logger.With("profile_id", profileID)
	track(withStage(base, domain.StageSubmitted))
	logger.Info("partial profile created", "existing", created.Existing)

	// submitting_profile -> submitting_notification
	s.transition(sub, domain.SubmissionNotification)
	notified := true
	onboarding, err := s.whatsapp.NotifyLandingPageSignup(ctx, profileID, data)
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, s.cancelled(sub, base, track, logger, "notification", ctxErr)
	}
	if err != nil {
		notified = false
		attrs := []any{"error", err}
		if ue, ok := upstream.AsError(err); ok {
			attrs = append(attrs, "code", ue.Code, "kind", ue.Kind, "status", ue.Status)
		}
		logger.Warn("whatsapp onboarding message not sent, continuing", attrs...)
	} else if onboarding != nil {
		logger.Info("whatsapp onboarding requested",
			"onboarding_id", onboarding.OnboardingID,
			"message_status", onboarding.MessageStatus,
		)
	}

	// submitting_notification -> success
	s.transition(sub, domain.SubmissionSuccess)
	completed := withStage(base, domain.StageCompleted)
	completed.WhatsAppStatus = domain.WhatsAppStatusSent
	outcome := metrics.OutcomeNotified
	if !notified {
		completed.WhatsAppStatus = domain.WhatsAppStatusFailed
		outcome = metrics.OutcomeUnnotified
	}
	track(completed)
	metrics.SignupFinished(outcome)

	return &domain.SubmissionResult{
		ProfileID:        profileID,
		WhatsAppNotified: notified,
		ReturningUser:    created.Existing,
		FormData:         data,
	}, nil
}

// profileFailed classifies a profile service failure, records it and
// returns the error the caller shows.
func (s *signupService) profileFailed(op string, base domain.FunnelEvent, track func(domain.FunnelEvent), logger *slog.Logger, err error) error {
	failed := withStage(base, domain.StageFailed)
	failed.FailureType = domain.FailureException

	ue, ok := upstream.AsError(err)
	if !ok {
		track(failed)
		metrics.SignupFinished(metrics.OutcomeFailed)
		logger.Error("profile creation failed unexpectedly", "error", err)
		return domain.Unavailable(err, op, domain.MsgGenericErrorDescription)
	}

	failed.ErrorCode = ue.Code
	if ue.HasResponse() {
		failed.FailureType = domain.FailureAPI
	}
	track(failed)

	if ue.IsValidation() {
		metrics.SignupFinished(metrics.OutcomeRejected)
		logger.Warn("profile service rejected signup", "code", ue.Code, "status", ue.Status, "message", ue.Message)
		msg := ue.Message
		if msg == "" {
			msg = domain.MsgProfileErrorBody
		}
		return domain.Wrap(err, domain.EINVALID, op, msg)
	}

	metrics.SignupFinished(metrics.OutcomeFailed)
	logger.Error("profile creation failed",
		"kind", ue.Kind,
		"code", ue.Code,
		"status", ue.Status,
		"error", err,
	)
	return domain.Unavailable(err, op, domain.MsgGenericErrorDescription)
}

// cancelled records an attempt abandoned because ctx ended after a call
// returned. Nothing the call produced is kept.
func (s *signupService) cancelled(sub *domain.Submission, base domain.FunnelEvent, track func(domain.FunnelEvent), logger *slog.Logger, step string, err error) error {
	s.transition(sub, domain.SubmissionFailure)
	failed := withStage(base, domain.StageFailed)
	failed.FailureType = domain.FailureException
	failed.ErrorCode = codeCancelled
	track(failed)
	metrics.SignupFinished(metrics.OutcomeCancelled)
	logger.Info("submission abandoned by client", "step", step, "error", err)
	return err
}

func (s *signupService) transition(sub *domain.Submission, target domain.SubmissionState) {
	if err := sub.TransitionTo(target); err != nil {
		// The flow above only makes legal moves.
		s.logger.Error("illegal submission transition", "form_id", sub.FormID, "error", err)
	}
}

func (s *signupService) acquire(formID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, busy := s.inFlight[formID]; busy {
		return false
	}
	s.inFlight[formID] = struct{}{}
	return true
}

func (s *signupService) release(formID string) {
	s.mu.Lock()
	delete(s.inFlight, formID)
	s.mu.Unlock()
}

func withStage(e domain.FunnelEvent, stage domain.FunnelStage) domain.FunnelEvent {
	e.Stage = stage
	return e
}
