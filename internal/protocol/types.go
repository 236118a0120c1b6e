// Package protocol defines the wire types exchanged with the deep
// research backend over its WebSocket and HTTP endpoints.
package protocol

// Depth selects how thorough a research run should be.
type Depth string

const (
	DepthStandard Depth = "standard"
	DepthDeep     Depth = "deep"
)

// Toggle flips between the two depths.
func (d Depth) Toggle() Depth {
	if d == DepthDeep {
		return DepthStandard
	}
	return DepthDeep
}

// Valid reports whether d is one of the known depths.
func (d Depth) Valid() bool {
	return d == DepthStandard || d == DepthDeep
}

// ParseDepth maps s onto a known depth, defaulting to standard.
func ParseDepth(s string) Depth {
	if s == string(DepthDeep) {
		return DepthDeep
	}
	return DepthStandard
}

// Plan is a research plan proposed by the backend.
type Plan struct {
	Query            string   `json:"query"`
	Depth            Depth    `json:"depth"`
	SubTopics        []string `json:"sub_topics"`
	Reasoning        string   `json:"reasoning,omitempty"`
	EstimatedSources int      `json:"estimated_sources,omitempty"`
}

// Source is one reference collected during research. IDs are assigned
// by the backend and start at 1.
type Source struct {
	ID    int    `json:"id"`
	Title string `json:"title"`
	URL   string `json:"url"`
}

// QualityMetrics describes how trustworthy a finished report is.
type QualityMetrics struct {
	Confidence   float64 `json:"confidence"`
	SourceCount  int     `json:"source_count,omitempty"`
	SourcesCited int     `json:"sources_cited,omitempty"`
}

// Result is the final output of a research run.
type Result struct {
	Query          string         `json:"query"`
	ReportText     string         `json:"report_text"`
	Sources        []Source       `json:"sources"`
	Citations      []int          `json:"citations"`
	SubTopics      []string       `json:"sub_topics,omitempty"`
	QualityMetrics QualityMetrics `json:"quality_metrics"`
	Timestamp      string         `json:"timestamp,omitempty"`
	Iterations     int            `json:"iterations,omitempty"`
}

// SourceMap indexes the result's sources by ID for citation lookup.
func (r *Result) SourceMap() map[int]Source {
	m := make(map[int]Source, len(r.Sources))
	for _, s := range r.Sources {
		m[s.ID] = s
	}
	return m
}
