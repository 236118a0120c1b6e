package health

import (
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/eternisai/deepr-console/internal/metrics"
)

func TestPollerTracksReachability(t *testing.T) {
	var healthy atomic.Bool
	healthy.Store(true)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !healthy.Load() {
			http.Error(w, "down", http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"status": "healthy",
			"timestamp": "2026-08-25T10:00:00.000000",
			"active_sessions": 1,
			"system_usage": {"ram_used_mb": 256.0, "ram_usage_percent": 20.5}
		}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, time.Second, testLogger())
	poller := NewPoller(client, "@every 30s", testLogger(), metrics.New())

	if poller.Reachable() {
		t.Error("expected unreachable before first poll")
	}
	if poller.Last() != nil {
		t.Error("expected no snapshot before first poll")
	}

	poller.poll()
	if !poller.Reachable() {
		t.Fatal("expected reachable after successful poll")
	}
	last := poller.Last()
	if last == nil {
		t.Fatal("expected snapshot after successful poll")
	}
	if last.ActiveSessions != 1 {
		t.Errorf("expected 1 active session, got %d", last.ActiveSessions)
	}

	healthy.Store(false)
	poller.poll()
	if poller.Reachable() {
		t.Error("expected unreachable after failed poll")
	}
	if poller.Last() == nil {
		t.Error("expected last snapshot retained across failures")
	}

	healthy.Store(true)
	poller.poll()
	if !poller.Reachable() {
		t.Error("expected reachable after recovery")
	}
}

func TestPollerStartRejectsBadSchedule(t *testing.T) {
	client := NewClient("http://localhost:1/health", time.Second, testLogger())
	poller := NewPoller(client, "not a schedule", testLogger(), metrics.New())

	if err := poller.Start(); err == nil {
		t.Fatal("expected error for invalid schedule")
	}
}

func TestPollerStartAndStop(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status": "healthy", "timestamp": "", "active_sessions": 0,
			"system_usage": {"ram_used_mb": "N/A", "ram_usage_percent": "N/A"}}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, time.Second, testLogger())
	poller := NewPoller(client, "@every 1h", testLogger(), metrics.New())

	if err := poller.Start(); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	poller.Stop()
}
