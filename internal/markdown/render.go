package markdown

import (
	"fmt"
	"sort"
	"strings"

	"github.com/eternisai/deepr-console/internal/protocol"
)

// RenderPlan converts a plan into display HTML. Reasoning renders as
// a paragraph labeled Strategy, sub-topics as a bulleted list; either
// section is omitted when empty. A plan with neither renders as the
// empty string.
func RenderPlan(plan protocol.Plan) string {
	var b strings.Builder
	if strings.TrimSpace(plan.Reasoning) != "" {
		b.WriteString(`<p class="plan-reasoning"><strong>Strategy:</strong> `)
		b.WriteString(EscapeHTML(plan.Reasoning))
		b.WriteString("</p>")
	}
	if len(plan.SubTopics) > 0 {
		b.WriteString(`<ul class="plan-topics">`)
		for _, topic := range plan.SubTopics {
			b.WriteString("<li>")
			b.WriteString(EscapeHTML(topic))
			b.WriteString("</li>")
		}
		b.WriteString("</ul>")
	}
	return b.String()
}

// RenderResult converts a finished result into display HTML: the
// report body followed by its references section.
func RenderResult(result protocol.Result) string {
	sources := result.SourceMap()
	var b strings.Builder
	b.WriteString(RenderReport(result.ReportText, sources))
	b.WriteString(RenderReferences(result.Citations, sources))
	return b.String()
}

// RenderReport converts report markdown into HTML, using sources to
// resolve citation brackets.
func RenderReport(text string, sources map[int]protocol.Source) string {
	var b strings.Builder
	for _, block := range Parse(text, sources) {
		renderBlock(&b, block)
	}
	return b.String()
}

// RenderReferences builds the references section from the citation
// list: deduplicated, sorted ascending, ids without a matching source
// skipped. Untitled sources fall back to "Untitled". Returns the
// empty string when nothing resolves.
func RenderReferences(citations []int, sources map[int]protocol.Source) string {
	seen := make(map[int]bool, len(citations))
	ids := make([]int, 0, len(citations))
	for _, id := range citations {
		if seen[id] {
			continue
		}
		seen[id] = true
		if _, ok := sources[id]; !ok {
			continue
		}
		ids = append(ids, id)
	}
	if len(ids) == 0 {
		return ""
	}
	sort.Ints(ids)

	var b strings.Builder
	b.WriteString(`<div class="references"><h3>References</h3><ul>`)
	for _, id := range ids {
		src := sources[id]
		title := src.Title
		if title == "" {
			title = "Untitled"
		}
		fmt.Fprintf(&b, `<li>[%d] <a href="%s" target="_blank" class="citation-link">%s</a></li>`,
			id, EscapeHTML(src.URL), EscapeHTML(title))
	}
	b.WriteString("</ul></div>")
	return b.String()
}

func renderBlock(b *strings.Builder, block Block) {
	switch blk := block.(type) {
	case Heading:
		fmt.Fprintf(b, "<h%d>", blk.Level)
		renderInlines(b, blk.Children)
		fmt.Fprintf(b, "</h%d>", blk.Level)
	case List:
		b.WriteString("<ul>")
		for _, item := range blk.Items {
			b.WriteString("<li>")
			renderInlines(b, item)
			b.WriteString("</li>")
		}
		b.WriteString("</ul>")
	case Paragraph:
		b.WriteString("<p>")
		for i, line := range blk.Lines {
			if i > 0 {
				b.WriteString("<br>")
			}
			renderInlines(b, line)
		}
		b.WriteString("</p>")
	}
}

func renderInlines(b *strings.Builder, nodes []Inline) {
	for _, node := range nodes {
		switch n := node.(type) {
		case Text:
			b.WriteString(EscapeHTML(n.Content))
		case Bold:
			b.WriteString("<strong>")
			renderInlines(b, n.Children)
			b.WriteString("</strong>")
		case Italic:
			b.WriteString("<em>")
			renderInlines(b, n.Children)
			b.WriteString("</em>")
		case BoldItalic:
			b.WriteString("<strong><em>")
			renderInlines(b, n.Children)
			b.WriteString("</em></strong>")
		case Citation:
			renderCitation(b, n)
		}
	}
}

func renderCitation(b *strings.Builder, c Citation) {
	if !c.Resolved {
		b.WriteString("[")
		b.WriteString(c.Raw)
		b.WriteString("]")
		return
	}
	fmt.Fprintf(b, `<a href="%s" title="%s" target="_blank" class="citation-link">[%d]</a>`,
		EscapeHTML(c.Source.URL), EscapeHTML(c.Source.Title), c.ID)
}
