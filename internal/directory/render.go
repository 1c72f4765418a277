package directory

import (
	"html"
	"regexp"
	"strings"

	"jirabridge/internal/bridge"
	"jirabridge/pkg/chatfmt"
)

// Attachment text uses a minimal inline markup: *bold* spans and
// [text](url) links. Both patterns still match after HTML escaping because
// escaping leaves *, [, ], ( and ) alone.
var (
	linkPattern = regexp.MustCompile(`\[([^\]\n]+)\]\(([^)\s]+)\)`)
	boldPattern = regexp.MustCompile(`\*([^*\n]+)\*`)
)

// RenderHTML converts a rendered attachment into a Telegram HTML message:
// an italic author line followed by the attachment body.
func RenderHTML(att bridge.Attachment) string {
	body := html.EscapeString(att.Text)
	body = linkPattern.ReplaceAllString(body, `<a href="$2">$1</a>`)
	body = boldPattern.ReplaceAllString(body, `<b>$1</b>`)

	parts := make([]string, 0, 2)
	if strings.TrimSpace(att.AuthorName) != "" {
		parts = append(parts, chatfmt.I(att.AuthorName).String())
	}
	parts = append(parts, body)
	return strings.Join(parts, "\n")
}
