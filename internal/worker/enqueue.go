package worker

// JobTypeFunnelEvent delivers one funnel event to one analytics sink.
const JobTypeFunnelEvent = "funnel_event"

// EnqueueOption is a functional option for customizing job enqueue parameters.
type EnqueueOption func(*Job)

// WithMaxAttempts sets the maximum number of attempts for this job.
func WithMaxAttempts(attempts int) EnqueueOption {
	return func(j *Job) {
		if attempts > 0 {
			j.MaxAttempts = attempts
		}
	}
}
