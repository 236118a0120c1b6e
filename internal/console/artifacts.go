package console

import (
	"log/slog"
	"os"
	"path/filepath"

	"github.com/eternisai/deepr-console/internal/export"
	"github.com/eternisai/deepr-console/internal/logger"
	"github.com/eternisai/deepr-console/internal/protocol"
)

// Artifact file names under the download directory. The latest plan and
// report always overwrite the previous ones.
const (
	PlanArtifact   = "plan.html"
	ReportArtifact = "report.html"
	ResultArtifact = "result.json"
)

// ArtifactWriter saves rendered HTML fragments and raw results under
// the download directory so the preview server can serve them. Write
// failures are logged, never fatal.
type ArtifactWriter struct {
	dir    string
	logger *logger.Logger
}

// NewArtifactWriter creates a writer rooted at dir.
func NewArtifactWriter(dir string, log *logger.Logger) *ArtifactWriter {
	return &ArtifactWriter{
		dir:    dir,
		logger: log.WithComponent("artifacts"),
	}
}

// Dir returns the artifact directory.
func (w *ArtifactWriter) Dir() string {
	return w.dir
}

// WritePlan saves the rendered plan fragment.
func (w *ArtifactWriter) WritePlan(html string) {
	w.writeFile(PlanArtifact, []byte(html))
}

// WriteReport saves the rendered report fragment.
func (w *ArtifactWriter) WriteReport(html string) {
	w.writeFile(ReportArtifact, []byte(html))
}

// SaveResult stores the raw result JSON so the render subcommand can
// re-render it later.
func (w *ArtifactWriter) SaveResult(result protocol.Result) {
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		w.logger.Warn("failed to create artifact directory", slog.String("error", err.Error()))
		return
	}
	path := filepath.Join(w.dir, ResultArtifact)
	if err := export.SaveResult(result, path); err != nil {
		w.logger.Warn("failed to save result artifact",
			slog.String("path", path),
			slog.String("error", err.Error()))
	}
}

func (w *ArtifactWriter) writeFile(name string, data []byte) {
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		w.logger.Warn("failed to create artifact directory", slog.String("error", err.Error()))
		return
	}
	path := filepath.Join(w.dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		w.logger.Warn("failed to write artifact",
			slog.String("path", path),
			slog.String("error", err.Error()))
	}
}
