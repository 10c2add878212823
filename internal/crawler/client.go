package crawler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// ErrFetch wraps every failure to obtain a Snapshot from the crawler.
var ErrFetch = errors.New("crawler fetch failed")

// maxPayloadBytes bounds the size of a metrics document.
const maxPayloadBytes = 32 << 20

// Client requests metrics from a running crawler.
type Client struct {
	url    string
	client *http.Client
	logger *zap.Logger
}

// NewClient creates a client for the crawler metrics endpoint at url.
// timeout bounds each request; zero means no timeout.
func NewClient(url string, timeout time.Duration, logger *zap.Logger) *Client {
	return &Client{
		url:    url,
		client: &http.Client{Timeout: timeout},
		logger: logger.Named("crawler_client"),
	}
}

// URL returns the metrics endpoint address.
func (c *Client) URL() string {
	return c.url
}

// FetchMetrics performs one request to the crawler and decodes the payload.
func (c *Client) FetchMetrics(ctx context.Context) (*Snapshot, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: build request: %v", ErrFetch, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		c.logger.Warn("Crawler request failed", zap.String("url", c.url), zap.Error(err))
		return nil, fmt.Errorf("%w: %v", ErrFetch, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.logger.Warn("Crawler returned unexpected status", zap.String("url", c.url), zap.Int("status_code", resp.StatusCode))
		return nil, fmt.Errorf("%w: unexpected status %d", ErrFetch, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPayloadBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %v", ErrFetch, err)
	}

	snapshot, err := DecodeSnapshot(body)
	if err != nil {
		c.logger.Warn("Crawler returned malformed payload", zap.String("url", c.url), zap.Error(err))
		return nil, fmt.Errorf("%w: %v", ErrFetch, err)
	}
	snapshot.FetchedAt = time.Now()

	c.logger.Debug("Fetched crawler metrics",
		zap.Int("known_nodes", len(snapshot.NodeDetails)),
		zap.Int64("current_period", snapshot.CurrentPeriod))
	return snapshot, nil
}

// DecodeSnapshot parses a crawler metrics document.
func DecodeSnapshot(data []byte) (*Snapshot, error) {
	var snapshot Snapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return nil, fmt.Errorf("decode metrics payload: %w", err)
	}
	return &snapshot, nil
}
