package domain

// =============================================================================
// Submission State
// =============================================================================

// SubmissionState represents the lifecycle state of a single submit attempt.
type SubmissionState string

const (
	// SubmissionIdle is the editable form. Every attempt starts and, unless it
	// succeeds, ends here.
	SubmissionIdle SubmissionState = "idle"

	// SubmissionValidating means every field is touched and the full-form
	// validation is running. No network call has been made.
	SubmissionValidating SubmissionState = "validating"

	// SubmissionProfile means the partial profile is being created.
	SubmissionProfile SubmissionState = "submitting_profile"

	// SubmissionNotification means the profile exists and the onboarding
	// message is being requested.
	SubmissionNotification SubmissionState = "submitting_notification"

	// SubmissionSuccess is terminal: a SubmissionResult was produced.
	SubmissionSuccess SubmissionState = "success"

	// SubmissionFailure is terminal for the attempt; the form goes back to
	// idle so the user can retry.
	SubmissionFailure SubmissionState = "failure"
)

// String returns the string representation of the state.
func (s SubmissionState) String() string {
	return string(s)
}

// IsValid returns true if the state is a recognized value.
func (s SubmissionState) IsValid() bool {
	switch s {
	case SubmissionIdle, SubmissionValidating, SubmissionProfile,
		SubmissionNotification, SubmissionSuccess, SubmissionFailure:
		return true
	}
	return false
}

// IsTerminal returns true for success and failure.
func (s SubmissionState) IsTerminal() bool {
	return s == SubmissionSuccess || s == SubmissionFailure
}

// CanTransitionTo checks if the submission can move to the target state.
//
// Valid transitions:
// - idle -> validating (submit event)
// - validating -> idle (client validation rejected)
// - validating -> submitting_profile
// - submitting_profile -> submitting_notification | failure
// - submitting_notification -> success (notified or not)
// - failure -> idle (form editable again)
// - any non-terminal -> failure (unexpected error or cancellation)
func (s SubmissionState) CanTransitionTo(target SubmissionState) bool {
	if target == SubmissionFailure && !s.IsTerminal() && s != SubmissionIdle {
		return true
	}

	switch s {
	case SubmissionIdle:
		return target == SubmissionValidating
	case SubmissionValidating:
		return target == SubmissionIdle || target == SubmissionProfile
	case SubmissionProfile:
		return target == SubmissionNotification
	case SubmissionNotification:
		return target == SubmissionSuccess
	case SubmissionFailure:
		return target == SubmissionIdle
	}

	return false
}

// Submission tracks the state of one submit attempt.
type Submission struct {
	FormID  string
	State   SubmissionState
	History []SubmissionState
}

// NewSubmission starts an attempt in the idle state.
func NewSubmission(formID string) *Submission {
	return &Submission{
		FormID:  formID,
		State:   SubmissionIdle,
		History: []SubmissionState{SubmissionIdle},
	}
}

// TransitionTo moves the submission to the target state, refusing moves the
// state machine does not allow.
func (s *Submission) TransitionTo(target SubmissionState) error {
	if !s.State.CanTransitionTo(target) {
		return Errorf(EINTERNAL, "submission.transition",
			"cannot transition from %s to %s", s.State, target)
	}
	s.State = target
	s.History = append(s.History, target)
	return nil
}
