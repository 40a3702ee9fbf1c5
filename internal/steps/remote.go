package steps

import (
	"context"
	"errors"
	"fmt"

	"github.com/xiaot623/gogo/contentflow/internal/adapter/agentclient"
	"github.com/xiaot623/gogo/contentflow/internal/domain"
	"github.com/xiaot623/gogo/contentflow/internal/logging"
)

// Remote executes a step on an external endpoint that streams SSE.
// Message events are appended to the result trace; the result event carries the outcome.
type Remote struct {
	client   *agentclient.Client
	step     string
	endpoint string
}

// NewRemote creates a remote executor for one step.
func NewRemote(client *agentclient.Client, step, endpoint string) *Remote {
	return &Remote{client: client, step: step, endpoint: endpoint}
}

// Execute implements Executor.
func (r *Remote) Execute(ctx context.Context, state *domain.RunState) (*domain.StepResult, error) {
	req := &domain.StepInvokeRequest{RunID: state.RunID, Step: r.step, State: state}

	var (
		trace  []string
		result *domain.StepResult
	)
	err := r.client.Invoke(ctx, r.endpoint, req, func(evt agentclient.SSEEvent) error {
		switch evt.Event {
		case agentclient.EventMessage:
			msg, err := agentclient.ParseMessageEvent(evt.Data)
			if err != nil {
				return err
			}
			trace = append(trace, msg.Text)
		case agentclient.EventResult:
			res, err := agentclient.ParseResultEvent(evt.Data)
			if err != nil {
				return err
			}
			result = res
		case agentclient.EventError:
			errEvt, err := agentclient.ParseErrorEvent(evt.Data)
			if err != nil {
				return err
			}
			return fmt.Errorf("%s: %s", errEvt.Code, errEvt.Message)
		default:
			logging.Debug("ignoring step event", "step", r.step, "event", evt.Event)
		}
		return nil
	})
	if err != nil {
		var statusErr *agentclient.StatusError
		if errors.As(err, &statusErr) && statusErr.Temporary() {
			return domain.Retry(fmt.Sprintf("%s: endpoint unavailable: %v", r.step, err)), nil
		}
		return nil, fmt.Errorf("%s: %w", r.step, err)
	}
	if result == nil {
		return nil, fmt.Errorf("%s: stream ended without a result", r.step)
	}
	result.Messages = append(trace, result.Messages...)
	return result, nil
}

// RegisterRemotes registers a Remote executor for every step endpoint.
func RegisterRemotes(r *Registry, client *agentclient.Client, endpoints map[string]string) error {
	for step, endpoint := range endpoints {
		if err := r.Register(step, NewRemote(client, step, endpoint)); err != nil {
			return err
		}
	}
	return nil
}
