package runner

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	mp_errors "marketpulse/pkg/errors"
)

// DispatchRequest is the outbound event envelope sent to the external
// automation runner. The runner answers with mere acceptance; the final
// result arrives later through the webhook callback.
type DispatchRequest struct {
	RequestID    string                 `json:"request_id"`
	TenantID     string                 `json:"tenant_id"`
	WorkflowID   string                 `json:"workflow_id"`
	EventType    string                 `json:"event_type"`
	EventPayload json.RawMessage        `json:"event_payload,omitempty"`
	ExtraContext map[string]interface{} `json:"extra_context,omitempty"`
}

// Client talks to a single configured runner endpoint. The endpoint is
// fixed configuration with an explicit /health contract; there is no
// candidate-path probing.
type Client struct {
	endpoint string
	apiKey   string
	http     *http.Client
}

func NewClient(endpoint, apiKey string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		endpoint: strings.TrimRight(endpoint, "/"),
		apiKey:   apiKey,
		http:     &http.Client{Timeout: timeout},
	}
}

// TriggerWorkflow fires the dispatch at the runner. Any transport-level
// failure (network error, timeout, non-2xx) is reported as
// ErrRunnerUnavailable; callers absorb it and leave the ledger Pending.
func (c *Client) TriggerWorkflow(ctx context.Context, req DispatchRequest) error {
	body, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("marshal dispatch request: %w", err)
	}

	url := fmt.Sprintf("%s/v1/workflows/%s/dispatch", c.endpoint, req.WorkflowID)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build dispatch request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("X-Request-Id", req.RequestID)
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return fmt.Errorf("%w: %v", mp_errors.ErrRunnerUnavailable, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%w: runner returned %d", mp_errors.ErrRunnerUnavailable, resp.StatusCode)
	}
	return nil
}

// HealthCheck probes the runner's health endpoint.
func (c *Client) HealthCheck(ctx context.Context) error {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint+"/health", nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(httpReq)
	if err != nil {
		return fmt.Errorf("%w: %v", mp_errors.ErrRunnerUnavailable, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1024))

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: health returned %d", mp_errors.ErrRunnerUnavailable, resp.StatusCode)
	}
	return nil
}
