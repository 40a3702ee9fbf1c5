package domain

// StepInvokeRequest is posted to a remote step endpoint.
type StepInvokeRequest struct {
	RunID string    `json:"run_id"`
	Step  string    `json:"step"`
	State *RunState `json:"state"`
}

// MessageEventData is the data for a message SSE event.
type MessageEventData struct {
	Text string `json:"text"`
}

// ErrorEventData is the data for an error SSE event.
type ErrorEventData struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
