// Package client provides the HTTP client the CLI uses to talk to a
// running chime server.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/chimelab/chime/internal/coordinator"
	"github.com/chimelab/chime/pkg/models"
)

// Client is the chime API client.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// New creates a new API client for the given server URL.
func New(serverURL string, timeout time.Duration) (*Client, error) {
	if serverURL == "" {
		return nil, fmt.Errorf("server URL is required")
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimSuffix(serverURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}, nil
}

// APIError represents an error response from the API.
type APIError struct {
	Message    string
	ErrorType  models.APIErrorType
	StatusCode int
}

func (e *APIError) Error() string {
	if e.ErrorType != "" {
		return fmt.Sprintf("%s: %s", e.ErrorType, e.Message)
	}
	return e.Message
}

// ListAlarms fetches all alarm records.
func (c *Client) ListAlarms(ctx context.Context) ([]*models.Alarm, error) {
	var alarms []*models.Alarm
	if err := c.do(ctx, http.MethodGet, "/api/v1/alarms", nil, &alarms); err != nil {
		return nil, err
	}
	return alarms, nil
}

// CreateAlarm creates a new alarm and returns the refreshed list.
func (c *Client) CreateAlarm(ctx context.Context, req *models.CreateAlarmRequest) ([]*models.Alarm, error) {
	var alarms []*models.Alarm
	if err := c.do(ctx, http.MethodPost, "/api/v1/alarms", req, &alarms); err != nil {
		return nil, err
	}
	return alarms, nil
}

// ToggleAlarm flips an alarm's enabled state and returns the refreshed
// list.
func (c *Client) ToggleAlarm(ctx context.Context, alarmID string) ([]*models.Alarm, error) {
	var alarms []*models.Alarm
	path := "/api/v1/alarms/" + alarmID + "/toggle"
	if err := c.do(ctx, http.MethodPost, path, nil, &alarms); err != nil {
		return nil, err
	}
	return alarms, nil
}

// DeleteAlarm removes an alarm and returns the refreshed list.
func (c *Client) DeleteAlarm(ctx context.Context, alarmID string) ([]*models.Alarm, error) {
	var alarms []*models.Alarm
	if err := c.do(ctx, http.MethodDelete, "/api/v1/alarms/"+alarmID, nil, &alarms); err != nil {
		return nil, err
	}
	return alarms, nil
}

// ListRinging fetches the entries currently ringing.
func (c *Client) ListRinging(ctx context.Context) ([]coordinator.Ringing, error) {
	var ringing []coordinator.Ringing
	if err := c.do(ctx, http.MethodGet, "/api/v1/ringing", nil, &ringing); err != nil {
		return nil, err
	}
	return ringing, nil
}

// PostSignal delivers a wake signal to the server's bridge.
func (c *Client) PostSignal(ctx context.Context, sig models.Signal) error {
	return c.do(ctx, http.MethodPost, "/api/v1/signals", sig, nil)
}

// do executes a request and decodes the success envelope into out.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	var envelope struct {
		Status    string              `json:"status"`
		Data      json.RawMessage     `json:"data"`
		Message   string              `json:"message"`
		ErrorType models.APIErrorType `json:"error_type"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	if resp.StatusCode >= 400 || envelope.Status == "error" {
		return &APIError{
			Message:    envelope.Message,
			ErrorType:  envelope.ErrorType,
			StatusCode: resp.StatusCode,
		}
	}

	if out != nil && len(envelope.Data) > 0 {
		if err := json.Unmarshal(envelope.Data, out); err != nil {
			return fmt.Errorf("failed to decode payload: %w", err)
		}
	}
	return nil
}
