// Package markdown converts the backend's report markdown into HTML.
//
// Only the subset the backend actually emits is supported: headings,
// asterisk emphasis, flat bulleted lists, paragraphs and numeric
// citation brackets. No nested lists, code blocks, tables or inline
// link syntax.
package markdown

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/eternisai/deepr-console/internal/protocol"
)

// Block is one top-level node of a parsed report.
type Block interface{ block() }

// Heading is a hash-prefixed line; Level runs 1 through 6.
type Heading struct {
	Level    int
	Children []Inline
}

// List is a run of consecutive bullet lines.
type List struct {
	Items [][]Inline
}

// Paragraph is a run of consecutive plain lines. Lines render
// separated by line breaks.
type Paragraph struct {
	Lines [][]Inline
}

func (Heading) block()   {}
func (List) block()      {}
func (Paragraph) block() {}

// Inline is one node within a line of text.
type Inline interface{ inline() }

type Text struct{ Content string }

type Bold struct{ Children []Inline }

type Italic struct{ Children []Inline }

type BoldItalic struct{ Children []Inline }

// Citation is a single-id bracket. Resolved citations render as links
// to their source; unresolved ones render as the literal bracket text.
type Citation struct {
	ID       int
	Raw      string
	Source   protocol.Source
	Resolved bool
}

func (Text) inline()       {}
func (Bold) inline()       {}
func (Italic) inline()     {}
func (BoldItalic) inline() {}
func (Citation) inline()   {}

// Parse converts report text into block nodes. Citation groups are
// normalized first, then lines are scanned into headings, lists and
// paragraphs, and each line's text is tokenized into inline nodes.
// sources resolves citation ids to their targets.
func Parse(text string, sources map[int]protocol.Source) []Block {
	text = NormalizeCitations(text)
	p := &inlineParser{sources: sources}

	var (
		blocks []Block
		items  [][]Inline
		lines  [][]Inline
	)

	closeList := func() {
		if items != nil {
			blocks = append(blocks, List{Items: items})
			items = nil
		}
	}
	closeParagraph := func() {
		if lines != nil {
			blocks = append(blocks, Paragraph{Lines: lines})
			lines = nil
		}
	}

	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSuffix(line, "\r")

		if strings.TrimSpace(line) == "" {
			// Blank lines separate paragraphs. Inside a bullet run the
			// list stays open, so the run renders as one list.
			closeParagraph()
			continue
		}

		if level, rest, ok := headingLine(line); ok {
			closeList()
			closeParagraph()
			blocks = append(blocks, Heading{Level: level, Children: p.parse(rest)})
			continue
		}

		if item, ok := listItemLine(line); ok {
			closeParagraph()
			items = append(items, p.parse(item))
			continue
		}

		closeList()
		lines = append(lines, p.parse(line))
	}

	closeList()
	closeParagraph()
	return blocks
}

// headingLine matches `#` through `######` at line start followed by
// whitespace. Counting the full hash run keeps six hashes from being
// read as a level-one heading with hashes in its text.
func headingLine(line string) (int, string, bool) {
	level := 0
	for level < len(line) && line[level] == '#' {
		level++
	}
	if level == 0 || level > 6 || level == len(line) {
		return 0, "", false
	}
	if line[level] != ' ' && line[level] != '\t' {
		return 0, "", false
	}
	return level, strings.TrimSpace(line[level:]), true
}

// listItemLine matches `* ` or `- ` at line start with non-empty
// content after the marker.
func listItemLine(line string) (string, bool) {
	if len(line) < 2 || (line[0] != '*' && line[0] != '-') {
		return "", false
	}
	if line[1] != ' ' && line[1] != '\t' {
		return "", false
	}
	content := strings.TrimSpace(line[2:])
	if content == "" {
		return "", false
	}
	return content, true
}

var (
	boldItalicRe = regexp.MustCompile(`\*\*\*(.+?)\*\*\*`)
	boldRe       = regexp.MustCompile(`\*\*(.+?)\*\*`)
	italicRe     = regexp.MustCompile(`\*(.+?)\*`)
	citationRe   = regexp.MustCompile(`\[(\d+)\]`)
)

type inlineParser struct {
	sources map[int]protocol.Source
}

var emphasisRes = []*regexp.Regexp{boldItalicRe, boldRe, italicRe}

// parse tokenizes one line. Emphasis is matched non-greedily with
// triple asterisks taking precedence over double, and double over
// single; citations resolve inside any emphasis span.
func (p *inlineParser) parse(s string) []Inline {
	return p.parseEmphasis(s, 0)
}

func (p *inlineParser) parseEmphasis(s string, level int) []Inline {
	if level >= len(emphasisRes) {
		return p.parseCitations(s)
	}
	re := emphasisRes[level]

	var nodes []Inline
	rest := s
	for {
		loc := re.FindStringSubmatchIndex(rest)
		if loc == nil {
			break
		}
		if before := rest[:loc[0]]; before != "" {
			nodes = append(nodes, p.parseEmphasis(before, level+1)...)
		}
		children := p.parseEmphasis(rest[loc[2]:loc[3]], level+1)
		switch level {
		case 0:
			nodes = append(nodes, BoldItalic{Children: children})
		case 1:
			nodes = append(nodes, Bold{Children: children})
		default:
			nodes = append(nodes, Italic{Children: children})
		}
		rest = rest[loc[1]:]
	}
	if rest != "" {
		nodes = append(nodes, p.parseEmphasis(rest, level+1)...)
	}
	return nodes
}

func (p *inlineParser) parseCitations(s string) []Inline {
	var nodes []Inline
	rest := s
	for {
		loc := citationRe.FindStringSubmatchIndex(rest)
		if loc == nil {
			break
		}
		if before := rest[:loc[0]]; before != "" {
			nodes = append(nodes, Text{Content: before})
		}
		raw := rest[loc[2]:loc[3]]
		id, _ := strconv.Atoi(raw)
		src, ok := p.sources[id]
		nodes = append(nodes, Citation{ID: id, Raw: raw, Source: src, Resolved: ok})
		rest = rest[loc[1]:]
	}
	if rest != "" {
		nodes = append(nodes, Text{Content: rest})
	}
	return nodes
}
