package metrics

import "time"

// Signup outcomes used as the "outcome" label.
const (
	OutcomeNotified   = "notified"
	OutcomeUnnotified = "unnotified"
	OutcomeInvalid    = "invalid"
	OutcomeRejected   = "rejected"
	OutcomeFailed     = "failed"
	OutcomeInProgress = "in_progress"
	OutcomeCancelled  = "cancelled"
)

// SignupFinished records the outcome of one submit attempt.
func SignupFinished(outcome string) {
	SignupsTotal.WithLabelValues(outcome).Inc()
}

// UpstreamCall records a call to a backend service. result is "ok" or the
// failure kind.
func UpstreamCall(service, result string, duration time.Duration) {
	UpstreamRequestsTotal.WithLabelValues(service, result).Inc()
	UpstreamDuration.WithLabelValues(service).Observe(duration.Seconds())
}
