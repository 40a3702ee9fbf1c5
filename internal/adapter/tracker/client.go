// Package tracker mirrors step labels to an external task board over HTTP.
package tracker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/xiaot623/gogo/contentflow/internal/domain"
)

// Client updates the board task named after each step.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// NewClient creates a tracker client. An empty baseURL disables updates.
func NewClient(baseURL, token string) *Client {
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		token:   token,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

type updateRequest struct {
	Status domain.TrackerLabel `json:"status"`
}

// UpdateStatus implements notify.Tracker with PATCH {base}/tasks/{step}.
func (c *Client) UpdateStatus(ctx context.Context, step string, label domain.TrackerLabel) error {
	if c.baseURL == "" {
		return nil
	}
	body, err := json.Marshal(updateRequest{Status: label})
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	endpoint := c.baseURL + "/tasks/" + url.PathEscape(step)
	req, err := http.NewRequestWithContext(ctx, http.MethodPatch, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to update tracker: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("tracker returned status %d: %s", resp.StatusCode, string(respBody))
	}
	return nil
}
