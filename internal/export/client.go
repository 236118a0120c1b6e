// Package export saves research reports: it fetches the backend's
// rendered markdown over the export endpoint and renders held results
// locally in the same layout.
package export

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	apierrors "github.com/eternisai/deepr-console/internal/errors"
	"github.com/eternisai/deepr-console/internal/logger"
	"github.com/eternisai/deepr-console/internal/protocol"
)

// Client fetches exported reports from the backend.
type Client struct {
	httpClient  *http.Client
	logger      *logger.Logger
	exportURL   string
	downloadDir string
}

// NewClient creates an export client for the given endpoint. Saved
// files land in downloadDir.
func NewClient(exportURL, downloadDir string, timeout time.Duration, log *logger.Logger) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger:      log.WithComponent("export"),
		exportURL:   exportURL,
		downloadDir: downloadDir,
	}
}

// Export posts the session id to the backend and saves the returned
// report as research_report_<date>.md in the download directory. The
// response body is treated as opaque file content on success; failures
// carry the HTTP status and body text.
func (c *Client) Export(ctx context.Context, sessionID string) (string, error) {
	payload, err := json.Marshal(protocol.ExportRequest{SessionID: sessionID})
	if err != nil {
		return "", fmt.Errorf("failed to build export payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.exportURL, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", apierrors.NewExportError(resp.StatusCode, resp.Status, strings.TrimSpace(string(body)))
	}

	if err := os.MkdirAll(c.downloadDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create download dir: %w", err)
	}
	path := filepath.Join(c.downloadDir, ReportFilename(time.Now()))
	if err := os.WriteFile(path, body, 0o644); err != nil {
		return "", fmt.Errorf("failed to save report: %w", err)
	}

	c.logger.WithContext(ctx).Info("report exported",
		slog.String("path", path),
		slog.Int("bytes", len(body)))
	return path, nil
}

// ReportFilename names a downloaded report after the day it was
// fetched.
func ReportFilename(now time.Time) string {
	return "research_report_" + now.Format("2006-01-02") + ".md"
}
