package markdown

import (
	"regexp"
	"sort"
	"strconv"
	"strings"
)

var (
	citationGroupRe = regexp.MustCompile(`\[([\d\s,]+)\]`)
	citationIDRe    = regexp.MustCompile(`\d+`)
)

// NormalizeCitations splits bracket groups holding several ids into
// single-id brackets: [1, 2] becomes [1][2]. Groups with a single id
// pass through unchanged, as does anything that is not purely digits,
// commas and whitespace.
func NormalizeCitations(text string) string {
	return citationGroupRe.ReplaceAllStringFunc(text, func(group string) string {
		ids := citationIDRe.FindAllString(group, -1)
		if len(ids) < 2 {
			return group
		}
		var b strings.Builder
		for _, id := range ids {
			b.WriteString("[")
			b.WriteString(id)
			b.WriteString("]")
		}
		return b.String()
	})
}

// CitationIDs scans text for citation brackets, single or grouped, and
// returns the unique ids in ascending order.
func CitationIDs(text string) []int {
	seen := make(map[int]bool)
	for _, group := range citationGroupRe.FindAllStringSubmatch(text, -1) {
		for _, raw := range citationIDRe.FindAllString(group[1], -1) {
			if id, err := strconv.Atoi(raw); err == nil {
				seen[id] = true
			}
		}
	}

	ids := make([]int, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}
