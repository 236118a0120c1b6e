package markdown

import "strings"

// The five reserved characters and their substitutions. Applied to
// every piece of backend-supplied text before it reaches HTML output.
var htmlEscaper = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	`"`, "&quot;",
	"'", "&#39;",
)

// EscapeHTML substitutes the five HTML-reserved characters.
func EscapeHTML(s string) string {
	return htmlEscaper.Replace(s)
}
