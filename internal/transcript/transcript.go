// Package transcript renders a session's history for operators taking over
// a conversation.
package transcript

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"
	"time"

	"github.com/yuin/goldmark"
	highlighting "github.com/yuin/goldmark-highlighting/v2"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"

	"github.com/ziadkadry99/askdesk/internal/session"
)

// Renderer turns sessions into Markdown or HTML. It is safe for concurrent
// use.
type Renderer struct {
	md   goldmark.Markdown
	page *template.Template
}

// NewRenderer creates a renderer. Raw HTML inside messages is never passed
// through.
func NewRenderer() (*Renderer, error) {
	md := goldmark.New(
		goldmark.WithExtensions(
			extension.GFM,
			highlighting.NewHighlighting(
				highlighting.WithStyle("github"),
			),
		),
		goldmark.WithParserOptions(
			parser.WithAutoHeadingID(),
		),
	)

	page, err := template.New("transcript").Parse(pageTemplate)
	if err != nil {
		return nil, fmt.Errorf("parsing transcript template: %w", err)
	}
	return &Renderer{md: md, page: page}, nil
}

var roleTitles = map[session.Role]string{
	session.RoleUser:      "User",
	session.RoleAssistant: "Assistant",
	session.RoleSystem:    "System",
}

// Markdown renders sess as a Markdown document, one section per turn.
func Markdown(sess *session.Session) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Conversation %s\n\n", sess.ConversationID)
	fmt.Fprintf(&b, "- Session: `%s`\n", sess.ID)
	fmt.Fprintf(&b, "- Started: %s\n", sess.CreatedAt.UTC().Format(time.RFC3339))

	msgs := sess.Messages()
	fmt.Fprintf(&b, "- Messages retained: %d\n", len(msgs))

	for _, m := range msgs {
		title, ok := roleTitles[m.Role]
		if !ok {
			title = string(m.Role)
		}
		fmt.Fprintf(&b, "\n## %s · %s\n\n", title, m.At.UTC().Format("15:04:05"))
		text := strings.TrimSpace(m.Text)
		if text == "" {
			text = "_(empty)_"
		}
		b.WriteString(text)
		b.WriteString("\n")
	}
	return b.String()
}

// HTML renders sess as a standalone HTML page.
func (r *Renderer) HTML(sess *session.Session) ([]byte, error) {
	var body bytes.Buffer
	if err := r.md.Convert([]byte(Markdown(sess)), &body); err != nil {
		return nil, fmt.Errorf("converting transcript: %w", err)
	}

	var out bytes.Buffer
	err := r.page.Execute(&out, struct {
		Title string
		Body  template.HTML
	}{
		Title: "Conversation " + sess.ConversationID,
		// goldmark escapes raw HTML from messages.
		Body: template.HTML(body.String()),
	})
	if err != nil {
		return nil, fmt.Errorf("executing transcript template: %w", err)
	}
	return out.Bytes(), nil
}

const pageTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>{{.Title}}</title>
<style>
body { font-family: -apple-system, BlinkMacSystemFont, "Segoe UI", sans-serif; max-width: 52rem; margin: 2rem auto; padding: 0 1rem; color: #1f2328; }
h2 { font-size: 1rem; border-top: 1px solid #d0d7de; padding-top: 1rem; color: #57606a; }
pre { padding: 0.75rem; overflow-x: auto; border-radius: 6px; }
code { font-size: 0.9em; }
</style>
</head>
<body>
{{.Body}}
</body>
</html>
`
