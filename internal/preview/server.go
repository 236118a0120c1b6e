// Package preview serves saved reports and artifacts over local HTTP so
// rendered HTML can be opened in a browser. It also exposes the
// console's health and metrics endpoints.
package preview

import (
	"context"
	"encoding/json"
	"fmt"
	"html"
	"log/slog"
	"net/http"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/eternisai/deepr-console/internal/health"
	"github.com/eternisai/deepr-console/internal/logger"
	"github.com/eternisai/deepr-console/internal/metrics"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
)

// Options configures the preview server.
type Options struct {
	Addr string
	// Dir is the directory whose files are listed and served.
	Dir string
	// AllowedOrigins is a comma-separated CORS origin list.
	AllowedOrigins string
}

// Server is a small local HTTP server over the download directory.
type Server struct {
	httpServer *http.Server
	logger     *logger.Logger
	dir        string
	poller     *health.Poller
	startedAt  time.Time
}

// NewServer builds the preview server. poller may be nil; /healthz then
// reports only the server's own status.
func NewServer(opts Options, m *metrics.Metrics, poller *health.Poller, log *logger.Logger) *Server {
	s := &Server{
		logger:    log.WithComponent("preview"),
		dir:       opts.Dir,
		poller:    poller,
		startedAt: time.Now(),
	}

	router := chi.NewRouter()
	router.Get("/", s.handleIndex)
	router.Get("/healthz", s.handleHealthz)
	router.Method("GET", "/metrics", promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{}))
	router.Handle("/files/*", http.StripPrefix("/files/", http.FileServer(http.Dir(opts.Dir))))

	corsMiddleware := cors.New(cors.Options{
		AllowedOrigins: splitOrigins(opts.AllowedOrigins),
		AllowedMethods: []string{"GET", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type"},
	})

	s.httpServer = &http.Server{
		Addr:    opts.Addr,
		Handler: corsMiddleware.Handler(router),
	}
	return s
}

// Handler returns the server's root handler.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start runs the server until Shutdown is called. It blocks.
func (s *Server) Start() error {
	s.logger.Info("preview server listening",
		slog.String("addr", s.httpServer.Addr),
		slog.String("dir", s.dir))
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown stops the server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// handleIndex lists the saved files as links under /files/.
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	entries, err := os.ReadDir(s.dir)
	if err != nil && !os.IsNotExist(err) {
		http.Error(w, "failed to read download directory", http.StatusInternalServerError)
		return
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		names = append(names, entry.Name())
	}
	sort.Strings(names)

	var b strings.Builder
	b.WriteString("<!DOCTYPE html>\n<html>\n<head><meta charset=\"utf-8\"><title>Saved Reports</title></head>\n<body>\n")
	b.WriteString("<h1>Saved Reports</h1>\n")
	if len(names) == 0 {
		b.WriteString("<p>No saved reports yet.</p>\n")
	} else {
		b.WriteString("<ul>\n")
		for _, name := range names {
			escaped := html.EscapeString(name)
			fmt.Fprintf(&b, "<li><a href=\"/files/%s\">%s</a></li>\n", escaped, escaped)
		}
		b.WriteString("</ul>\n")
	}
	b.WriteString("</body>\n</html>\n")

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write([]byte(b.String())) //nolint:errcheck
}

// handleHealthz reports the console's own status and, when polling is
// enabled, the backend's last known reachability.
func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	response := map[string]any{
		"status":         "ok",
		"uptime_seconds": int(time.Since(s.startedAt).Seconds()),
	}
	if s.poller != nil {
		response["backend_reachable"] = s.poller.Reachable()
		if last := s.poller.Last(); last != nil {
			response["backend_status"] = last.Status
			response["backend_active_sessions"] = last.ActiveSessions
		}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response) //nolint:errcheck
}

func splitOrigins(origins string) []string {
	parts := strings.Split(origins, ",")
	cleaned := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			cleaned = append(cleaned, trimmed)
		}
	}
	if len(cleaned) == 0 {
		return []string{"*"}
	}
	return cleaned
}
