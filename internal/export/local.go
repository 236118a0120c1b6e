package export

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/eternisai/deepr-console/internal/markdown"
	"github.com/eternisai/deepr-console/internal/protocol"
)

// timestampLayouts covers the shapes the backend puts in
// result.timestamp; the first match wins.
var timestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

// Markdown renders a held result in the backend exporter's layout: a
// header block, the report body, and a references section limited to
// sources the report actually cites.
func Markdown(result protocol.Result) string {
	query := result.Query
	if query == "" {
		query = "Research Report"
	}
	cited := markdown.CitationIDs(result.ReportText)
	sourceMap := result.SourceMap()

	var b strings.Builder
	b.WriteString("# Research Report\n\n")
	fmt.Fprintf(&b, "**Query:** %s  \n", query)
	fmt.Fprintf(&b, "**Generated:** %s  \n", formatTimestamp(result.Timestamp))
	fmt.Fprintf(&b, "**Confidence:** %.1f%%  \n", result.QualityMetrics.Confidence*100)
	fmt.Fprintf(&b, "**Sources Found:** %d  \n", result.QualityMetrics.SourceCount)
	fmt.Fprintf(&b, "**Sources Cited:** %d  \n", len(cited))
	b.WriteString("\n---\n\n")
	b.WriteString(strings.TrimSpace(result.ReportText))
	b.WriteString("\n\n---\n\n## References\n\n")

	for _, id := range cited {
		src, ok := sourceMap[id]
		if !ok {
			continue
		}
		title := src.Title
		if title == "" {
			title = "Untitled"
		}
		url := src.URL
		if url == "" {
			url = "#"
		}
		fmt.Fprintf(&b, "[%d] **%s**  \n    %s\n\n", id, title, url)
	}
	return b.String()
}

// pageStyle is the stylesheet of the standalone report page.
const pageStyle = `* { margin: 0; padding: 0; box-sizing: border-box; }
body {
    font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, Oxygen, Ubuntu, sans-serif;
    line-height: 1.6;
    max-width: 900px;
    margin: 0 auto;
    padding: 40px 20px;
    color: #1f2937;
    background: #ffffff;
}
h1 { font-size: 2.5rem; color: #111827; margin-bottom: 24px; padding-bottom: 16px; border-bottom: 3px solid #6366f1; }
h2 { font-size: 1.75rem; color: #1f2937; margin-top: 32px; margin-bottom: 16px; }
h3 { font-size: 1.35rem; color: #374151; margin-top: 24px; margin-bottom: 12px; }
p { margin: 16px 0; text-align: justify; }
ul, ol { margin: 16px 0; padding-left: 32px; }
li { margin: 8px 0; }
strong { color: #111827; font-weight: 600; }
em { font-style: italic; color: #4b5563; }
.meta { margin-bottom: 32px; padding-bottom: 16px; border-bottom: 1px solid #e5e7eb; font-size: 0.95rem; line-height: 1.8; color: #4b5563; }
.meta-item { margin-bottom: 8px; }
.meta-label { font-weight: 600; color: #4b5563; }
.meta-value { color: #1f2937; }
.report { margin: 32px 0; }
.citation-link { color: #6366f1; text-decoration: none; font-weight: 600; white-space: nowrap; }
.citation-link:hover { text-decoration: underline; }
.references { margin-top: 48px; padding-top: 32px; border-top: 2px solid #e5e7eb; }
.references h3 { font-size: 1.5rem; margin-bottom: 24px; color: #111827; }
.references ul { list-style: none; padding-left: 0; }
.plan-reasoning { margin-bottom: 16px; }
.plan-topics li { margin: 8px 0; }`

// HTML renders a held result as a standalone page: meta header,
// rendered report body, references.
func HTML(result protocol.Result) string {
	query := result.Query
	if query == "" {
		query = "Research Report"
	}
	cited := markdown.CitationIDs(result.ReportText)
	body := markdown.RenderReport(result.ReportText, result.SourceMap())
	references := markdown.RenderReferences(cited, result.SourceMap())

	var b strings.Builder
	b.WriteString("<!DOCTYPE html>\n<html lang=\"en\">\n<head>\n")
	b.WriteString("<meta charset=\"utf-8\">\n")
	b.WriteString("<meta name=\"viewport\" content=\"width=device-width, initial-scale=1.0\">\n")
	fmt.Fprintf(&b, "<title>Research Report - %s</title>\n", markdown.EscapeHTML(query))
	b.WriteString("<style>\n" + pageStyle + "\n</style>\n</head>\n<body>\n")
	b.WriteString("<h1>Research Report</h1>\n")

	b.WriteString("<div class=\"meta\">\n")
	writeMetaItem(&b, "Query:", markdown.EscapeHTML(query))
	writeMetaItem(&b, "Generated:", markdown.EscapeHTML(formatTimestamp(result.Timestamp)))
	writeMetaItem(&b, "Confidence:", fmt.Sprintf("%.1f%%", result.QualityMetrics.Confidence*100))
	writeMetaItem(&b, "Sources Found:", fmt.Sprintf("%d", result.QualityMetrics.SourceCount))
	writeMetaItem(&b, "Sources Cited:", fmt.Sprintf("%d", len(cited)))
	b.WriteString("</div>\n")

	b.WriteString("<div class=\"report\">\n")
	b.WriteString(body)
	b.WriteString("\n</div>\n")
	if references != "" {
		b.WriteString(references)
		b.WriteString("\n")
	}
	b.WriteString("</body>\n</html>\n")
	return b.String()
}

func writeMetaItem(b *strings.Builder, label, value string) {
	fmt.Fprintf(b, "<div class=\"meta-item\"><span class=\"meta-label\">%s</span> <span class=\"meta-value\">%s</span></div>\n", label, value)
}

// WriteMarkdown saves the markdown rendition of result to path.
func WriteMarkdown(result protocol.Result, path string) error {
	if err := os.WriteFile(path, []byte(Markdown(result)), 0o644); err != nil {
		return fmt.Errorf("failed to write markdown export: %w", err)
	}
	return nil
}

// WriteHTML saves the standalone page rendition of result to path.
func WriteHTML(result protocol.Result, path string) error {
	if err := os.WriteFile(path, []byte(HTML(result)), 0o644); err != nil {
		return fmt.Errorf("failed to write html export: %w", err)
	}
	return nil
}

// SaveResult stores the raw result as indented JSON so it can be
// re-rendered later.
func SaveResult(result protocol.Result, path string) error {
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode result: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write result: %w", err)
	}
	return nil
}

// LoadResult reads a result saved by SaveResult.
func LoadResult(path string) (protocol.Result, error) {
	var result protocol.Result
	data, err := os.ReadFile(path)
	if err != nil {
		return result, fmt.Errorf("failed to read result: %w", err)
	}
	if err := json.Unmarshal(data, &result); err != nil {
		return result, fmt.Errorf("failed to decode result: %w", err)
	}
	return result, nil
}

// formatTimestamp reshapes the backend's ISO timestamp for display;
// unparsable values pass through unchanged.
func formatTimestamp(ts string) string {
	if ts == "" {
		return time.Now().Format("2006-01-02 15:04:05")
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, ts); err == nil {
			return t.Format("2006-01-02 15:04:05")
		}
	}
	return ts
}
