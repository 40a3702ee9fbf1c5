// Package ingress forwards run notifications to the ingress gateway over JSON-RPC.
package ingress

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/rpc/jsonrpc"
	"net/url"
	"strings"
	"time"

	"github.com/xiaot623/gogo/contentflow/internal/domain"
	"github.com/xiaot623/gogo/contentflow/internal/logging"
)

const pushMethod = "Ingress.PushEvent"

// ErrRejected is returned when the gateway answers ok=false.
var ErrRejected = errors.New("ingress rejected event")

// Client pushes notifications to one channel on the ingress gateway.
// The gateway fans them out to the sessions subscribed to that channel.
type Client struct {
	addr    string
	channel string
	dialer  net.Dialer
	timeout time.Duration
}

// NewClient creates an ingress client. An empty baseURL disables delivery.
func NewClient(baseURL, channel string) *Client {
	return &Client{
		addr:    rpcAddr(baseURL),
		channel: channel,
		dialer:  net.Dialer{Timeout: 5 * time.Second},
		timeout: 5 * time.Second,
	}
}

// Event is the progress payload pushed to the gateway.
type Event struct {
	Type      domain.NotificationKind `json:"type"`
	RunID     string                  `json:"run_id"`
	Step      string                  `json:"step,omitempty"`
	Message   string                  `json:"message"`
	ErrorKind domain.ErrorKind        `json:"error_kind,omitempty"`
	Ts        int64                   `json:"ts"`
}

// PushRequest is the argument of Ingress.PushEvent. The gateway addresses
// deliveries by session; the channel name is used as the session.
type PushRequest struct {
	SessionID string `json:"session_id"`
	Event     Event  `json:"event"`
}

// PushResponse is the reply of Ingress.PushEvent.
type PushResponse struct {
	OK        bool `json:"ok"`
	Delivered bool `json:"delivered"`
}

// Notify implements notify.Sink.
func (c *Client) Notify(ctx context.Context, n domain.Notification) error {
	if c.addr == "" {
		return nil
	}
	return c.push(ctx, &PushRequest{
		SessionID: c.channel,
		Event: Event{
			Type:      n.Kind,
			RunID:     n.RunID,
			Step:      n.Step,
			Message:   n.Message,
			ErrorKind: n.ErrorKind,
			Ts:        n.Ts,
		},
	})
}

func (c *Client) push(ctx context.Context, req *PushRequest) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	conn, err := c.dialer.DialContext(ctx, "tcp", c.addr)
	if err != nil {
		return fmt.Errorf("failed to dial ingress: %w", err)
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}
	client := jsonrpc.NewClient(conn)
	defer client.Close()

	var resp PushResponse
	call := client.Go(pushMethod, req, &resp, nil)
	select {
	case <-ctx.Done():
		return fmt.Errorf("failed to push event to ingress: %w", ctx.Err())
	case <-call.Done:
	}
	if call.Error != nil {
		return fmt.Errorf("failed to push event to ingress: %w", call.Error)
	}
	if !resp.OK {
		logging.Debug("ingress refused event", "run_id", req.Event.RunID, "delivered", resp.Delivered)
		return ErrRejected
	}
	return nil
}

// rpcAddr accepts either host:port or a URL and returns host:port.
func rpcAddr(raw string) string {
	raw = strings.TrimSpace(raw)
	if !strings.Contains(raw, "://") {
		return raw
	}
	if u, err := url.Parse(raw); err == nil && u.Host != "" {
		return u.Host
	}
	return raw
}
