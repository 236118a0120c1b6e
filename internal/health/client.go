// Package health reads the backend's health endpoint, on demand and on
// a poll schedule.
package health

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/eternisai/deepr-console/internal/logger"
	"github.com/eternisai/deepr-console/internal/protocol"
)

// Client fetches health snapshots from the backend.
type Client struct {
	httpClient *http.Client
	logger     *logger.Logger
	healthURL  string
}

// NewClient creates a health client for the given endpoint.
func NewClient(healthURL string, timeout time.Duration, log *logger.Logger) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger:    log.WithComponent("health"),
		healthURL: healthURL,
	}
}

// Check fetches one health snapshot.
func (c *Client) Check(ctx context.Context) (*protocol.HealthStatus, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", c.healthURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("health endpoint returned status %d: %s", resp.StatusCode, string(body))
	}

	var status protocol.HealthStatus
	if err := json.Unmarshal(body, &status); err != nil {
		return nil, fmt.Errorf("failed to parse health response: %w", err)
	}
	return &status, nil
}
