// Package domain defines the core domain models for the content pipeline.
package domain

// StepStatus represents the status of a step within a run.
type StepStatus string

const (
	StepStatusNotStarted StepStatus = "NOT_STARTED"
	StepStatusRunning    StepStatus = "RUNNING"
	StepStatusDone       StepStatus = "DONE"
	StepStatusFailed     StepStatus = "FAILED"
)

// IsResolved reports whether the status is terminal for the step.
func (s StepStatus) IsResolved() bool {
	return s == StepStatusDone || s == StepStatusFailed
}

// Outcome is the status an executor reports for one attempt.
type Outcome string

const (
	OutcomeDone   Outcome = "done"
	OutcomeFailed Outcome = "failed"
	OutcomeRetry  Outcome = "retry"
)

// Valid reports whether the outcome is one the runner understands.
func (o Outcome) Valid() bool {
	switch o {
	case OutcomeDone, OutcomeFailed, OutcomeRetry:
		return true
	}
	return false
}

// SupervisorState represents whether a run is active in the process.
type SupervisorState string

const (
	SupervisorIdle   SupervisorState = "IDLE"
	SupervisorActive SupervisorState = "ACTIVE"
)

// RunStatus represents the persisted status of a run.
type RunStatus string

const (
	RunStatusActive   RunStatus = "ACTIVE"
	RunStatusFinished RunStatus = "FINISHED"
	RunStatusStopped  RunStatus = "STOPPED"
)

// NotificationKind represents the kind of a progress notification.
type NotificationKind string

const (
	NotificationStepStarted  NotificationKind = "step_started"
	NotificationStepDone     NotificationKind = "step_done"
	NotificationStepFailed   NotificationKind = "step_failed"
	NotificationRunFinalized NotificationKind = "run_finalized"
)

// TrackerLabel is the status vocabulary of the external progress tracker.
type TrackerLabel string

const (
	TrackerNotStarted TrackerLabel = "NOT_STARTED"
	TrackerInProgress TrackerLabel = "IN_PROGRESS"
	TrackerDone       TrackerLabel = "DONE"
	TrackerFailed     TrackerLabel = "FAILED"
)

// ErrorKind classifies why a step did not complete.
type ErrorKind string

const (
	ErrorKindPolicyDenied      ErrorKind = "policy_denied"
	ErrorKindExecutorFailure   ErrorKind = "executor_failure"
	ErrorKindProtocolViolation ErrorKind = "protocol_violation"
	ErrorKindSinkFailure       ErrorKind = "sink_failure"
)
