package console

import (
	"strings"

	"github.com/eternisai/deepr-console/internal/backend"
	"github.com/eternisai/deepr-console/internal/protocol"
	"github.com/eternisai/deepr-console/internal/session"
)

const aboutText = `
Deepr Console is a terminal client for the AI Open Deep Research
Engine. Describe a topic, review and refine the proposed research
plan, then watch the report stream in as the backend searches,
reads, and synthesizes. Finished reports can be exported as
markdown or rendered HTML.
`

// Presenter renders session state changes as terminal output and saves
// rendered HTML artifacts for the preview server.
type Presenter struct {
	printer   *Printer
	artifacts *ArtifactWriter
}

// NewPresenter builds the terminal presenter.
func NewPresenter(printer *Printer, artifacts *ArtifactWriter) *Presenter {
	return &Presenter{
		printer:   printer,
		artifacts: artifacts,
	}
}

func (p *Presenter) ShowScreen(screen session.Screen, topic string) {
	title := strings.ToUpper(string(screen))
	if topic != "" && (screen == session.ScreenPlan || screen == session.ScreenResearch) {
		p.printer.Printf("\n===[ %s ]=== %s\n", title, topic)
	} else {
		p.printer.Printf("\n===[ %s ]===\n", title)
	}
	if screen == session.ScreenAbout {
		p.printer.Write(aboutText)
	}
}

func (p *Presenter) ShowDepth(depth protocol.Depth) {
	p.printer.Printf("depth: %s\n", depth)
}

func (p *Presenter) ShowStatus(status string) {
	p.printer.Printf("status: %s\n", status)
}

// ShowLogEntry is a no-op on the terminal; the status line above
// already showed the message, and the log command replays history.
func (p *Presenter) ShowLogEntry(entry session.LogEntry) {}

func (p *Presenter) ShowPlanPlaceholder(message string) {
	p.printer.Printf("  %s\n", message)
}

func (p *Presenter) ShowPlan(plan protocol.Plan, html string, refined bool) {
	if refined {
		p.printer.Write("\nPlan refined.\n")
	}
	if plan.Reasoning != "" {
		p.printer.Printf("\n%s\n", plan.Reasoning)
	}
	p.printer.Write("\nProposed sub-topics:\n")
	if len(plan.SubTopics) == 0 {
		p.printer.Write("  (none proposed)\n")
	}
	for i, topic := range plan.SubTopics {
		p.printer.Printf("  %d. %s\n", i+1, topic)
	}
	if plan.EstimatedSources > 0 {
		p.printer.Printf("Estimated sources: %d\n", plan.EstimatedSources)
	}
	p.printer.Write("Next: start | refine <feedback> | depth\n")

	p.artifacts.WritePlan(html)
}

func (p *Presenter) ResetOutput() {
	p.printer.Write("\n--- live report ---\n")
}

// AppendOutput writes the chunk verbatim so the report streams onto
// the terminal exactly as the backend produced it.
func (p *Presenter) AppendOutput(chunk string, progress int) {
	p.printer.Write(chunk)
}

func (p *Presenter) ShowResult(result protocol.Result, html string) {
	p.printer.Write("\n--- report complete ---\n")
	if result.Query != "" {
		p.printer.Printf("Query: %s\n", result.Query)
	}
	quality := result.QualityMetrics
	p.printer.Printf("Confidence: %.1f%%\n", quality.Confidence*100)
	p.printer.Printf("Sources found: %d, cited: %d\n", quality.SourceCount, len(result.Citations))
	if result.Iterations > 0 {
		p.printer.Printf("Iterations: %d\n", result.Iterations)
	}
	if len(result.Sources) > 0 {
		p.printer.Write("Sources:\n")
		for _, source := range result.Sources {
			p.printer.Printf("  [%d] %s\n      %s\n", source.ID, source.Title, source.URL)
		}
	}

	p.artifacts.WriteReport(html)
	p.artifacts.SaveResult(result)
	p.printer.Printf("Rendered artifacts saved in %s\n", p.artifacts.Dir())
}

func (p *Presenter) ShowConnection(state backend.State) {
	p.printer.Printf("connection: %s\n", state)
}

func (p *Presenter) Notify(message string) {
	p.printer.Printf("!! %s\n", message)
}
