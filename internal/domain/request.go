package domain

// StartRunRequest represents the request to start a run.
type StartRunRequest struct {
	Context string `json:"context"`
}

// StartRunResponse represents the response after a start or resume request.
// Started is false when another run was already active; RunID is then the active run.
type StartRunResponse struct {
	RunID       string   `json:"run_id"`
	Started     bool     `json:"started"`
	Sequence    []string `json:"sequence,omitempty"`
	ResumedFrom string   `json:"resumed_from,omitempty"`
}

// ResumeRunRequest selects the snapshot a run resumes from. Exactly one of
// CheckpointID and BeforeStep is expected.
type ResumeRunRequest struct {
	CheckpointID string `json:"checkpoint_id,omitempty"`
	BeforeStep   string `json:"before_step,omitempty"`
}

// SupervisorStatus represents the supervisor state.
type SupervisorStatus struct {
	State SupervisorState `json:"state"`
	RunID string          `json:"run_id,omitempty"`
}

// StopResponse represents the response after a stop request.
type StopResponse struct {
	Stopped bool   `json:"stopped"`
	RunID   string `json:"run_id,omitempty"`
}

// RunResponse combines the persisted run row with its latest snapshot.
type RunResponse struct {
	Run   *Run      `json:"run"`
	State *RunState `json:"state,omitempty"`
}

// ListRunsResponse represents the response for listing runs.
type ListRunsResponse struct {
	Runs []Run `json:"runs"`
}

// CheckpointItem represents a checkpoint in list responses.
type CheckpointItem struct {
	CheckpointID string                `json:"checkpoint_id"`
	Seq          int                   `json:"seq"`
	Cursor       int                   `json:"cursor"`
	StepStatus   map[string]StepStatus `json:"step_status"`
	CreatedAt    int64                 `json:"created_at"`
}

// ListCheckpointsResponse represents the response for listing checkpoints.
type ListCheckpointsResponse struct {
	RunID       string           `json:"run_id"`
	Checkpoints []CheckpointItem `json:"checkpoints"`
}

// ListEventsResponse represents the response for listing run events.
type ListEventsResponse struct {
	RunID  string  `json:"run_id"`
	Events []Event `json:"events"`
}

// PolicyUsageResponse reports today's quota consumption.
type PolicyUsageResponse struct {
	MaxPerDay int            `json:"max_per_day"`
	MaxRetry  int            `json:"max_retry"`
	Usage     map[string]int `json:"usage"`
}
