package domain

import (
	"encoding/json"
	"time"
)

// RunState is the record threaded through one run of a planned sequence.
// It is mutated only by the runner that owns it; executors receive copies.
type RunState struct {
	RunID       string                                `json:"run_id"`
	Context     string                                `json:"context"`
	Sequence    []string                              `json:"sequence"`
	Cursor      int                                   `json:"cursor"`
	StepStatus  map[string]StepStatus                 `json:"step_status"`
	RetryCounts map[string]int                        `json:"retry_counts"`
	Outputs     map[string]json.RawMessage            `json:"outputs"`
	NodeData    map[string]map[string]json.RawMessage `json:"node_data,omitempty"`
	Messages    []string                              `json:"messages"`
	CreatedAt   time.Time                             `json:"created_at"`
	UpdatedAt   time.Time                             `json:"updated_at"`
	// FinalizedAt is set once the run summary has been emitted. A finalized
	// state is never driven again.
	FinalizedAt *time.Time `json:"finalized_at,omitempty"`
}

// NewRunState creates the initial state for a freshly planned run.
func NewRunState(runID, context string, sequence []string, now time.Time) *RunState {
	seq := make([]string, len(sequence))
	copy(seq, sequence)
	return &RunState{
		RunID:       runID,
		Context:     context,
		Sequence:    seq,
		StepStatus:  make(map[string]StepStatus),
		RetryCounts: make(map[string]int),
		Outputs:     make(map[string]json.RawMessage),
		NodeData:    make(map[string]map[string]json.RawMessage),
		Messages:    []string{},
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// Terminal reports whether every step of the sequence has been resolved.
func (s *RunState) Terminal() bool {
	return s.Cursor >= len(s.Sequence)
}

// Finalized reports whether the run summary has already been emitted.
func (s *RunState) Finalized() bool {
	return s.FinalizedAt != nil
}

// CurrentStep returns the step under the cursor, or "" when terminal.
func (s *RunState) CurrentStep() string {
	if s.Terminal() {
		return ""
	}
	return s.Sequence[s.Cursor]
}

// Resolved reports whether the step has a Done or Failed marker.
func (s *RunState) Resolved(step string) bool {
	return s.StepStatus[step].IsResolved()
}

// Counts returns the number of Done and Failed steps.
func (s *RunState) Counts() (done, failed int) {
	for _, status := range s.StepStatus {
		switch status {
		case StepStatusDone:
			done++
		case StepStatusFailed:
			failed++
		}
	}
	return done, failed
}

// Clone returns a deep copy of the state.
func (s *RunState) Clone() *RunState {
	if s == nil {
		return nil
	}
	c := *s
	c.Sequence = append([]string(nil), s.Sequence...)
	c.Messages = append([]string{}, s.Messages...)
	if s.FinalizedAt != nil {
		t := *s.FinalizedAt
		c.FinalizedAt = &t
	}

	c.StepStatus = make(map[string]StepStatus, len(s.StepStatus))
	for k, v := range s.StepStatus {
		c.StepStatus[k] = v
	}
	c.RetryCounts = make(map[string]int, len(s.RetryCounts))
	for k, v := range s.RetryCounts {
		c.RetryCounts[k] = v
	}
	c.Outputs = make(map[string]json.RawMessage, len(s.Outputs))
	for k, v := range s.Outputs {
		c.Outputs[k] = cloneRaw(v)
	}
	c.NodeData = make(map[string]map[string]json.RawMessage, len(s.NodeData))
	for step, fields := range s.NodeData {
		m := make(map[string]json.RawMessage, len(fields))
		for k, v := range fields {
			m[k] = cloneRaw(v)
		}
		c.NodeData[step] = m
	}
	return &c
}

// Output decodes the stored output of a step into v. It returns false when the
// step has no output.
func (s *RunState) Output(step string, v interface{}) (bool, error) {
	raw, ok := s.Outputs[step]
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return true, err
	}
	return true, nil
}

func cloneRaw(raw json.RawMessage) json.RawMessage {
	if raw == nil {
		return nil
	}
	out := make(json.RawMessage, len(raw))
	copy(out, raw)
	return out
}

// StepResult is what an executor returns for one attempt.
type StepResult struct {
	Status   Outcome                `json:"status"`
	Outputs  map[string]interface{} `json:"outputs,omitempty"`
	Messages []string               `json:"messages,omitempty"`
	// Extra holds step-specific fields such as an SEO score; they are kept
	// verbatim in RunState.NodeData.
	Extra map[string]interface{} `json:"extra,omitempty"`
}

// Done returns a successful result.
func Done(outputs map[string]interface{}, messages ...string) *StepResult {
	return &StepResult{Status: OutcomeDone, Outputs: outputs, Messages: messages}
}

// Failed returns a failed result.
func Failed(messages ...string) *StepResult {
	return &StepResult{Status: OutcomeFailed, Messages: messages}
}

// Retry returns a result asking the runner to attempt the step again.
func Retry(messages ...string) *StepResult {
	return &StepResult{Status: OutcomeRetry, Messages: messages}
}

// Checkpoint is an immutable snapshot of a run taken after a transition.
type Checkpoint struct {
	CheckpointID string    `json:"checkpoint_id"`
	RunID        string    `json:"run_id"`
	Seq          int       `json:"seq"`
	State        *RunState `json:"state"`
	CreatedAt    time.Time `json:"created_at"`
}

// Run is the persisted record of a run.
type Run struct {
	RunID      string     `json:"run_id"`
	Context    string     `json:"context"`
	Sequence   []string   `json:"sequence"`
	Status     RunStatus  `json:"status"`
	Cursor     int        `json:"cursor"`
	StartedAt  time.Time  `json:"started_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

// Notification is a progress event delivered to notification sinks.
type Notification struct {
	RunID     string           `json:"run_id"`
	Step      string           `json:"step,omitempty"`
	Kind      NotificationKind `json:"kind"`
	Message   string           `json:"message"`
	ErrorKind ErrorKind        `json:"error_kind,omitempty"`
	Ts        int64            `json:"ts"` // Unix milliseconds
}

// Event is a persisted notification, used for replay.
type Event struct {
	EventID string           `json:"event_id"`
	RunID   string           `json:"run_id"`
	Ts      int64            `json:"ts"` // Unix milliseconds
	Type    NotificationKind `json:"type"`
	Step    string           `json:"step,omitempty"`
	Payload json.RawMessage  `json:"payload,omitempty"`
}
