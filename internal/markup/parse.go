package markup

import (
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/net/html"

	"capnote/api/internal/doc"
	"capnote/api/internal/suggest"
)

// Parse reads HTML into a document of the given schema. Unknown elements are
// unwrapped; marks the schema does not register are dropped.
func Parse(schema *doc.Schema, markup string) (*doc.Document, error) {
	root, err := html.Parse(strings.NewReader(markup))
	if err != nil {
		return nil, fmt.Errorf("parse markup: %w", err)
	}
	body := findElement(root, "body")
	if body == nil {
		return doc.New(schema, nil), nil
	}
	p := parser{schema: schema}
	return doc.New(schema, doc.Block("doc", nil, p.blocks(body)...)), nil
}

type parser struct {
	schema *doc.Schema
}

func (p parser) blocks(parent *html.Node) []*doc.Node {
	var out, pending []*doc.Node
	flush := func() {
		if !onlyWhitespace(pending) {
			out = append(out, doc.Paragraph(p.schema.NormalizeInline(pending)...))
		}
		pending = nil
	}
	for c := parent.FirstChild; c != nil; c = c.NextSibling {
		switch c.Type {
		case html.TextNode:
			if len(pending) == 0 && strings.TrimSpace(c.Data) == "" {
				continue
			}
			pending = append(pending, p.inline(c, nil, false)...)
			continue
		case html.ElementNode:
		default:
			continue
		}

		switch c.Data {
		case "p":
			flush()
			out = append(out, doc.Paragraph(p.textblock(c, false)...))
		case "h1", "h2", "h3", "h4", "h5", "h6":
			flush()
			level := int(c.Data[1] - '0')
			out = append(out, doc.Block("heading", map[string]any{"level": level}, p.textblock(c, false)...))
		case "pre":
			flush()
			out = append(out, doc.Block("codeBlock", nil, p.textblock(c, true)...))
		case "ul":
			flush()
			out = append(out, doc.Block("bulletList", nil, p.blocks(c)...))
		case "ol":
			flush()
			out = append(out, doc.Block("orderedList", nil, p.blocks(c)...))
		case "li":
			flush()
			out = append(out, doc.Block("listItem", nil, p.blocks(c)...))
		case "blockquote":
			flush()
			out = append(out, doc.Block("blockquote", nil, p.blocks(c)...))
		case "hr":
			flush()
			out = append(out, &doc.Node{Type: "horizontalRule"})
		case "div", "section", "article", "main", "header", "footer":
			flush()
			out = append(out, p.blocks(c)...)
		default:
			pending = append(pending, p.inline(c, nil, false)...)
		}
	}
	flush()
	return out
}

func (p parser) textblock(n *html.Node, pre bool) []*doc.Node {
	var content []*doc.Node
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		content = append(content, p.inline(c, nil, pre)...)
	}
	return p.schema.NormalizeInline(content)
}

// inline converts n and its descendants into inline nodes carrying marks.
// Inside pre, code elements are the block's own wrapper and add no mark.
func (p parser) inline(n *html.Node, marks []doc.Mark, pre bool) []*doc.Node {
	switch n.Type {
	case html.TextNode:
		return []*doc.Node{doc.Text(n.Data, marks...)}
	case html.ElementNode:
	default:
		return nil
	}

	switch n.Data {
	case "br":
		return []*doc.Node{{Type: "hardBreak", Marks: marks}}
	case "img":
		attrs := map[string]any{"src": getAttr(n, "src")}
		if alt := getAttr(n, "alt"); alt != "" {
			attrs["alt"] = alt
		}
		return []*doc.Node{{Type: "image", Attrs: attrs, Marks: marks}}
	}

	if m, ok := p.markFor(n, pre); ok {
		marks = p.schema.AddToSet(marks, m)
	}
	var out []*doc.Node
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		out = append(out, p.inline(c, marks, pre)...)
	}
	return out
}

func (p parser) markFor(n *html.Node, pre bool) (doc.Mark, bool) {
	var m doc.Mark
	switch n.Data {
	case "strong", "b":
		m = doc.Mark{Type: "bold"}
	case "em", "i":
		m = doc.Mark{Type: "italic"}
	case "code":
		if pre {
			return m, false
		}
		m = doc.Mark{Type: "code"}
	case "s", "del", "strike":
		m = doc.Mark{Type: "strike"}
	case "u":
		m = doc.Mark{Type: "underline"}
	case "a":
		m = doc.Mark{Type: "link", Attrs: map[string]any{"href": getAttr(n, "href")}}
	case "span":
		var ok bool
		if m, ok = suggestionMark(n); !ok {
			return m, false
		}
	default:
		return m, false
	}
	return m, p.schema.HasMark(m.Type)
}

func suggestionMark(n *html.Node) (doc.Mark, bool) {
	var markType string
	switch getAttr(n, "data-suggestion") {
	case "insert":
		markType = suggest.MarkInsert
	case "delete":
		markType = suggest.MarkDelete
	default:
		return doc.Mark{}, false
	}
	ts, _ := strconv.ParseInt(getAttr(n, "data-ts"), 10, 64)
	attrs := suggest.Attrs{
		ID:     getAttr(n, "data-id"),
		User:   getAttr(n, "data-user"),
		Reason: getAttr(n, "data-reason"),
		TS:     ts,
		Source: getAttr(n, "data-source"),
	}
	return attrs.Mark(markType), true
}

func getAttr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func findElement(n *html.Node, name string) *html.Node {
	if n.Type == html.ElementNode && n.Data == name {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findElement(c, name); found != nil {
			return found
		}
	}
	return nil
}

func onlyWhitespace(nodes []*doc.Node) bool {
	for _, n := range nodes {
		if n.Type != "text" || strings.TrimSpace(n.Text) != "" {
			return false
		}
	}
	return true
}
