package preview

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/eternisai/deepr-console/internal/logger"
	"github.com/eternisai/deepr-console/internal/metrics"
)

func testServer(t *testing.T, dir string) *httptest.Server {
	t.Helper()
	log := logger.New(logger.Config{Level: slog.LevelError}) // Reduce noise in tests
	server := NewServer(Options{
		Addr:           "127.0.0.1:0",
		Dir:            dir,
		AllowedOrigins: "http://localhost:3000",
	}, metrics.New(), nil, log)

	ts := httptest.NewServer(server.Handler())
	t.Cleanup(ts.Close)
	return ts
}

func TestIndexListsSavedFiles(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "research_report_2026-08-25.md"), []byte("# Report"), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "report.html"), []byte("<html></html>"), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}

	ts := testServer(t, dir)
	resp, err := http.Get(ts.URL + "/")
	if err != nil {
		t.Fatalf("get index: %v", err)
	}
	defer resp.Body.Close() //nolint:errcheck
	body, _ := io.ReadAll(resp.Body)

	page := string(body)
	if !strings.Contains(page, `<a href="/files/research_report_2026-08-25.md">`) {
		t.Errorf("expected report link in index, got: %s", page)
	}
	if !strings.Contains(page, `<a href="/files/report.html">`) {
		t.Errorf("expected html link in index, got: %s", page)
	}
}

func TestIndexEmptyDirectory(t *testing.T) {
	ts := testServer(t, t.TempDir())
	resp, err := http.Get(ts.URL + "/")
	if err != nil {
		t.Fatalf("get index: %v", err)
	}
	defer resp.Body.Close() //nolint:errcheck
	body, _ := io.ReadAll(resp.Body)

	if !strings.Contains(string(body), "No saved reports yet") {
		t.Errorf("expected empty notice, got: %s", body)
	}
}

func TestServesSavedFile(t *testing.T) {
	dir := t.TempDir()
	content := "# Research Report\n\nbody\n"
	if err := os.WriteFile(filepath.Join(dir, "report.md"), []byte(content), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}

	ts := testServer(t, dir)
	resp, err := http.Get(ts.URL + "/files/report.md")
	if err != nil {
		t.Fatalf("get file: %v", err)
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	body, _ := io.ReadAll(resp.Body)
	if string(body) != content {
		t.Errorf("expected file content round-trip, got: %s", body)
	}
}

func TestHealthzReportsStatus(t *testing.T) {
	ts := testServer(t, t.TempDir())
	resp, err := http.Get(ts.URL + "/healthz")
	if err != nil {
		t.Fatalf("get healthz: %v", err)
	}
	defer resp.Body.Close() //nolint:errcheck

	var payload map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		t.Fatalf("decode healthz: %v", err)
	}
	if payload["status"] != "ok" {
		t.Errorf("expected status ok, got %v", payload["status"])
	}
	if _, found := payload["backend_reachable"]; found {
		t.Error("expected no backend fields without a poller")
	}
}

func TestMetricsEndpoint(t *testing.T) {
	ts := testServer(t, t.TempDir())
	resp, err := http.Get(ts.URL + "/metrics")
	if err != nil {
		t.Fatalf("get metrics: %v", err)
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), "deepr_console_connection_state") {
		t.Errorf("expected console metrics in exposition, got: %s", body)
	}
}

func TestCORSHeaderOnAllowedOrigin(t *testing.T) {
	ts := testServer(t, t.TempDir())

	req, err := http.NewRequest("GET", ts.URL+"/healthz", nil)
	if err != nil {
		t.Fatalf("create request: %v", err)
	}
	req.Header.Set("Origin", "http://localhost:3000")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer resp.Body.Close() //nolint:errcheck

	if got := resp.Header.Get("Access-Control-Allow-Origin"); got != "http://localhost:3000" {
		t.Errorf("expected allowed origin echoed, got %q", got)
	}
}
