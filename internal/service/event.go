package service

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/xiaot623/gogo/contentflow/internal/domain"
	"github.com/xiaot623/gogo/contentflow/internal/repository"
)

// eventPayload is the persisted body of a notification.
type eventPayload struct {
	Message   string           `json:"message"`
	ErrorKind domain.ErrorKind `json:"error_kind,omitempty"`
}

// eventRecorder persists every notification so a run can be replayed.
type eventRecorder struct {
	store repository.Store
}

// Notify implements notify.Sink.
func (r *eventRecorder) Notify(ctx context.Context, n domain.Notification) error {
	payloadBytes, err := json.Marshal(eventPayload{Message: n.Message, ErrorKind: n.ErrorKind})
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	event := &domain.Event{
		EventID: "evt_" + uuid.New().String()[:8],
		RunID:   n.RunID,
		Ts:      n.Ts,
		Type:    n.Kind,
		Step:    n.Step,
		Payload: payloadBytes,
	}
	// Record even when the run is being stopped.
	return r.store.CreateEvent(context.WithoutCancel(ctx), event)
}
