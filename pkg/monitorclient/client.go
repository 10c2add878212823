package monitorclient

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

// Client queries the JSON endpoints of a running monitor.
type Client struct {
	baseURL string
	client  *http.Client
}

// New creates a Client for the monitor at baseURL, e.g. "http://localhost:8050".
func New(baseURL string, client *http.Client) *Client {
	if client == nil {
		client = http.DefaultClient
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  client,
	}
}

// StatusError is returned for any non-200 response.
type StatusError struct {
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("monitor returned status %d", e.StatusCode)
	}
	return fmt.Sprintf("monitor returned status %d: %s", e.StatusCode, e.Message)
}

// Supply fetches the token supply breakdown as raw JSON.
func (c *Client) Supply(ctx context.Context) (json.RawMessage, error) {
	return c.get(ctx, "/supply_information")
}

// Staker fetches the on-chain status of the staker at address as raw JSON.
func (c *Client) Staker(ctx context.Context, address string) (json.RawMessage, error) {
	return c.get(ctx, "/staker_information/"+url.PathEscape(address))
}

// Health reports whether the monitor holds a snapshot.
func (c *Client) Health(ctx context.Context) (json.RawMessage, error) {
	return c.get(ctx, "/healthz")
}

func (c *Client) get(ctx context.Context, path string) (json.RawMessage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		var payload struct {
			Error string `json:"error"`
		}
		_ = json.Unmarshal(body, &payload)
		return nil, &StatusError{StatusCode: resp.StatusCode, Message: payload.Error}
	}
	if !json.Valid(body) {
		return nil, fmt.Errorf("monitor returned malformed JSON")
	}
	return body, nil
}
