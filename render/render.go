// Package render converts article content, which is CommonMark markdown, to HTML for previews.
package render

import (
	"strings"

	"gitlab.com/golang-commonmark/markdown"
)

// Raw HTML is escaped, because article content comes from authors and the preview is shown to editors.
var parser = markdown.New(markdown.HTML(false), markdown.Linkify(true), markdown.Typographer(true), markdown.MaxNesting(10))

// HTML renders markdown.
func HTML(content string) string {
	return parser.RenderToString([]byte(content))
}

// Excerpt returns the first paragraph of the content, for article lists.
func Excerpt(content string) string {
	content = strings.TrimSpace(strings.ReplaceAll(content, "\r\n", "\n"))
	if i := strings.Index(content, "\n\n"); i >= 0 {
		content = content[:i]
	}
	return HTML(content)
}
