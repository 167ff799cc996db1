// Package markup converts note documents to and from HTML. Pending
// suggestions are carried as data-suggestion spans so they survive copy,
// paste and storage as markup.
package markup

import (
	"fmt"
	"strings"

	"golang.org/x/net/html"

	"capnote/api/internal/doc"
	"capnote/api/internal/suggest"
)

// Render converts a document to HTML.
func Render(d *doc.Document) string {
	if d == nil {
		return ""
	}
	r := renderer{schema: d.Schema()}
	var sb strings.Builder
	r.content(&sb, d.Root().Content)
	return sb.String()
}

type renderer struct {
	schema *doc.Schema
}

func (r renderer) content(sb *strings.Builder, nodes []*doc.Node) {
	for _, n := range nodes {
		r.node(sb, n)
	}
}

func (r renderer) node(sb *strings.Builder, n *doc.Node) {
	switch n.Type {
	case "paragraph":
		r.wrap(sb, "<p>", n, "</p>\n")
	case "heading":
		level := attrInt(n.Attrs, "level", 1)
		if level < 1 || level > 6 {
			level = 1
		}
		r.wrap(sb, fmt.Sprintf("<h%d>", level), n, fmt.Sprintf("</h%d>\n", level))
	case "bulletList":
		r.wrap(sb, "<ul>\n", n, "</ul>\n")
	case "orderedList":
		r.wrap(sb, "<ol>\n", n, "</ol>\n")
	case "listItem":
		r.wrap(sb, "<li>", n, "</li>\n")
	case "blockquote":
		r.wrap(sb, "<blockquote>\n", n, "</blockquote>\n")
	case "codeBlock":
		r.wrap(sb, "<pre><code>", n, "</code></pre>\n")
	case "horizontalRule":
		sb.WriteString("<hr>\n")
	case "text":
		sb.WriteString(r.marked(html.EscapeString(n.Text), n.Marks))
	case "hardBreak":
		sb.WriteString(r.marked("<br>", n.Marks))
	case "image":
		tag := fmt.Sprintf(`<img src="%s" alt="%s">`,
			html.EscapeString(attrString(n.Attrs, "src")), html.EscapeString(attrString(n.Attrs, "alt")))
		sb.WriteString(r.marked(tag, n.Marks))
	default:
		r.content(sb, n.Content)
	}
}

func (r renderer) wrap(sb *strings.Builder, open string, n *doc.Node, close string) {
	sb.WriteString(open)
	r.content(sb, n.Content)
	sb.WriteString(close)
}

// marked wraps inner with marks, first mark outermost.
func (r renderer) marked(inner string, marks []doc.Mark) string {
	out := inner
	for i := len(marks) - 1; i >= 0; i-- {
		m := marks[i]
		switch m.Type {
		case "bold":
			out = "<strong>" + out + "</strong>"
		case "italic":
			out = "<em>" + out + "</em>"
		case "code":
			out = "<code>" + out + "</code>"
		case "strike":
			out = "<s>" + out + "</s>"
		case "underline":
			out = "<u>" + out + "</u>"
		case "link":
			out = fmt.Sprintf(`<a href="%s">%s</a>`, html.EscapeString(m.Attr("href")), out)
		case suggest.MarkInsert, suggest.MarkDelete:
			out = suggestionSpan(m) + out + "</span>"
		}
	}
	return out
}

func suggestionSpan(m doc.Mark) string {
	kind := "insert"
	if m.Type == suggest.MarkDelete {
		kind = "delete"
	}
	a := suggest.AttrsFromMark(m)
	return fmt.Sprintf(`<span data-suggestion="%s" data-id="%s" data-user="%s" data-reason="%s" data-ts="%d" data-source="%s">`,
		kind,
		html.EscapeString(a.ID),
		html.EscapeString(a.User),
		html.EscapeString(a.Reason),
		a.TS,
		html.EscapeString(a.Source),
	)
}

func attrString(attrs map[string]any, key string) string {
	if v, ok := attrs[key].(string); ok {
		return v
	}
	return ""
}

func attrInt(attrs map[string]any, key string, fallback int) int {
	switch v := attrs[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	case int64:
		return int(v)
	}
	return fallback
}
