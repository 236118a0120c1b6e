package console

import (
	"bufio"
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	apierrors "github.com/eternisai/deepr-console/internal/errors"
	"github.com/eternisai/deepr-console/internal/export"
	"github.com/eternisai/deepr-console/internal/health"
	"github.com/eternisai/deepr-console/internal/logger"
	"github.com/eternisai/deepr-console/internal/metrics"
	"github.com/eternisai/deepr-console/internal/session"
)

const welcomeText = `Deepr Console
Type "research <topic>" to begin, "help" for commands.
`

const helpText = `Commands:
  research <topic>   propose a research plan for the topic
  refine <feedback>  ask the backend to rework the current plan
  start              execute the approved plan
  depth              toggle research depth (standard/deep)
  export             save the backend's report to the download dir
  export local       render the held result to markdown and HTML
  clear              reset the session on the backend
  screen [name]      show or switch screens (main/plan/research/about)
  about              show the about screen
  health             query the backend health endpoint
  stats              print client-side counters
  log                replay the status history
  help               this text
  quit               exit
`

// Options wires the command loop to the rest of the client.
type Options struct {
	Manager        *session.Manager
	Health         *health.Client
	Metrics        *metrics.Metrics
	Printer        *Printer
	Logger         *logger.Logger
	Input          io.Reader
	DownloadDir    string
	RequestTimeout time.Duration
}

// Console reads commands from Input and applies them to the session
// manager. Backend messages print concurrently through the shared
// printer.
type Console struct {
	manager        *session.Manager
	health         *health.Client
	metrics        *metrics.Metrics
	printer        *Printer
	logger         *logger.Logger
	in             io.Reader
	downloadDir    string
	requestTimeout time.Duration
}

// New builds the command loop.
func New(opts Options) *Console {
	return &Console{
		manager:        opts.Manager,
		health:         opts.Health,
		metrics:        opts.Metrics,
		printer:        opts.Printer,
		logger:         opts.Logger.WithComponent("console"),
		in:             opts.Input,
		downloadDir:    opts.DownloadDir,
		requestTimeout: opts.RequestTimeout,
	}
}

// Run processes commands until quit, end of input, or context
// cancellation.
func (c *Console) Run(ctx context.Context) error {
	c.printer.Write(welcomeText)
	c.printer.Write("deepr> ")

	scanner := bufio.NewScanner(c.in)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024) // Allow long feedback lines

	for scanner.Scan() {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			c.printer.Write("deepr> ")
			continue
		}
		if quit := c.dispatch(ctx, line); quit {
			return nil
		}
		c.printer.Write("deepr> ")
	}
	return scanner.Err()
}

// dispatch runs one command line. Action rejections are already
// surfaced through the presenter's notification path, so most errors
// are only logged here.
func (c *Console) dispatch(ctx context.Context, line string) (quit bool) {
	command, arg := splitCommand(line)

	switch command {
	case "research":
		c.logRejection("research", c.manager.SubmitQuery(arg))
	case "refine":
		c.logRejection("refine", c.manager.RefinePlan(arg))
	case "start":
		c.logRejection("start", c.manager.StartResearch())
	case "depth":
		c.manager.ToggleDepth()
	case "export":
		if arg == "local" {
			c.exportLocal()
		} else {
			c.exportBackend(ctx)
		}
	case "clear":
		c.logRejection("clear", c.manager.ClearSession())
	case "screen":
		c.showScreen(arg)
	case "about":
		c.showScreen(string(session.ScreenAbout))
	case "health":
		c.showHealth(ctx)
	case "stats":
		c.showStats()
	case "log":
		c.showLog()
	case "help", "?":
		c.printer.Write(helpText)
	case "quit", "exit", "q":
		return true
	default:
		c.printer.Printf("unknown command %q (try help)\n", command)
	}
	return false
}

// exportBackend fetches the backend's rendered report. Success is
// announced on the status line, failure as a notification.
func (c *Console) exportBackend(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, c.requestTimeout)
	defer cancel()
	_, err := c.manager.ExportReport(ctx)
	c.logRejection("export", err)
}

// exportLocal renders the held result without calling the backend.
func (c *Console) exportLocal() {
	snapshot := c.manager.Snapshot()
	if snapshot.Result == nil {
		c.printer.Printf("!! %s\n", apierrors.NoReport().UIMessage)
		return
	}

	mdPath := filepath.Join(c.downloadDir, export.ReportFilename(time.Now()))
	htmlPath := strings.TrimSuffix(mdPath, ".md") + ".html"

	if err := export.WriteMarkdown(*snapshot.Result, mdPath); err != nil {
		c.printer.Printf("!! failed to write %s: %v\n", mdPath, err)
		return
	}
	if err := export.WriteHTML(*snapshot.Result, htmlPath); err != nil {
		c.printer.Printf("!! failed to write %s: %v\n", htmlPath, err)
		return
	}
	c.printer.Printf("Saved %s\nSaved %s\n", mdPath, htmlPath)
}

// showScreen switches screens, or reports the active one when no name
// is given. A short state summary follows so re-entering a screen
// still shows something.
func (c *Console) showScreen(name string) {
	if name == "" {
		c.printer.Printf("screen: %s\n", c.manager.Snapshot().Screen)
		return
	}

	screen, err := session.ParseScreen(strings.ToLower(name))
	if err != nil {
		c.printer.Printf("!! %v\n", err)
		return
	}
	if err := c.manager.SwitchScreen(screen); err != nil {
		c.printer.Printf("!! %v\n", err)
		return
	}

	snapshot := c.manager.Snapshot()
	switch screen {
	case session.ScreenPlan:
		if snapshot.Plan == nil {
			c.printer.Write("No plan yet. Use research <topic> to request one.\n")
		} else {
			c.printer.Printf("Plan held: %d sub-topics. Next: start | refine <feedback>\n", len(snapshot.Plan.SubTopics))
		}
	case session.ScreenResearch:
		c.printer.Printf("progress: %d%%, streamed %d bytes\n", snapshot.Progress, len(snapshot.Output))
		if snapshot.Result != nil {
			c.printer.Write("Result held. Use export or export local to save it.\n")
		}
	}
}

func (c *Console) showHealth(ctx context.Context) {
	if c.health == nil {
		c.printer.Write("health client not configured\n")
		return
	}

	ctx, cancel := context.WithTimeout(ctx, c.requestTimeout)
	defer cancel()
	status, err := c.health.Check(ctx)
	if err != nil {
		c.printer.Printf("!! health check failed: %v\n", err)
		return
	}

	c.printer.Printf("Backend status: %s\n", status.Status)
	c.printer.Printf("Active sessions: %d\n", status.ActiveSessions)
	c.printer.Printf("RAM used: %s MB (%s%%)\n",
		status.SystemUsage.RAMUsedMB, status.SystemUsage.RAMUsagePercent)
	if status.Timestamp != "" {
		c.printer.Printf("Reported at: %s\n", status.Timestamp)
	}
}

// showStats prints every gathered metric as one line. Label pairs keep
// the exposition format so the output matches /metrics on the preview
// server.
func (c *Console) showStats() {
	families, err := c.metrics.Registry.Gather()
	if err != nil {
		c.printer.Printf("!! failed to gather metrics: %v\n", err)
		return
	}

	for _, family := range families {
		for _, metric := range family.GetMetric() {
			var labels strings.Builder
			for i, pair := range metric.GetLabel() {
				if i == 0 {
					labels.WriteString("{")
				} else {
					labels.WriteString(",")
				}
				labels.WriteString(pair.GetName())
				labels.WriteString(`="`)
				labels.WriteString(pair.GetValue())
				labels.WriteString(`"`)
			}
			if labels.Len() > 0 {
				labels.WriteString("}")
			}

			name := family.GetName() + labels.String()
			switch {
			case metric.GetCounter() != nil:
				c.printer.Printf("%s %v\n", name, metric.GetCounter().GetValue())
			case metric.GetGauge() != nil:
				c.printer.Printf("%s %v\n", name, metric.GetGauge().GetValue())
			case metric.GetHistogram() != nil:
				histogram := metric.GetHistogram()
				c.printer.Printf("%s count=%d sum=%.3f\n", name, histogram.GetSampleCount(), histogram.GetSampleSum())
			}
		}
	}
}

func (c *Console) showLog() {
	snapshot := c.manager.Snapshot()
	if len(snapshot.Log) == 0 {
		c.printer.Write("no status history yet\n")
		return
	}
	for _, entry := range snapshot.Log {
		c.printer.Printf("%s  %s\n", entry.Time.Format("15:04:05"), entry.Message)
	}
}

func (c *Console) logRejection(command string, err error) {
	if err != nil {
		c.logger.Debug("command rejected",
			slog.String("command", command),
			slog.String("error", err.Error()))
	}
}

// splitCommand separates the command word from its argument.
func splitCommand(line string) (string, string) {
	parts := strings.SplitN(line, " ", 2)
	command := strings.ToLower(parts[0])
	if len(parts) == 1 {
		return command, ""
	}
	return command, strings.TrimSpace(parts[1])
}
