// Package suggest tracks AI-proposed edits as suggestion marks inside a
// document: it locates target text, composes the suggestion transaction and
// resolves suggestions by accepting or rejecting them.
package suggest

import (
	"strconv"

	"capnote/api/internal/doc"
)

const (
	MarkInsert = "suggestion_insert"
	MarkDelete = "suggestion_delete"

	SourceAI    = "ai"
	DefaultUser = "AI"
)

// Attrs is the attribute bag shared by both suggestion mark types.
type Attrs struct {
	ID     string `json:"id"`
	User   string `json:"user"`
	Reason string `json:"reason"`
	TS     int64  `json:"ts"`
	Source string `json:"source"`
}

func (a Attrs) Mark(markType string) doc.Mark {
	return doc.Mark{Type: markType, Attrs: map[string]any{
		"id":     a.ID,
		"user":   a.User,
		"reason": a.Reason,
		"ts":     a.TS,
		"source": a.Source,
	}}
}

func AttrsFromMark(m doc.Mark) Attrs {
	ts, _ := strconv.ParseInt(m.Attr("ts"), 10, 64)
	return Attrs{
		ID:     m.Attr("id"),
		User:   m.Attr("user"),
		Reason: m.Attr("reason"),
		TS:     ts,
		Source: m.Attr("source"),
	}
}

// RegisterMarks adds the two suggestion mark types to a host schema. They are
// not inclusive, so typing at their edge does not extend them, and they do
// not exclude themselves, so overlapping suggestions keep both ids.
func RegisterMarks(schema *doc.Schema) *doc.Schema {
	schema.AddMark(doc.MarkSpec{Name: MarkInsert, Inclusive: false, ExcludesSelf: false})
	schema.AddMark(doc.MarkSpec{Name: MarkDelete, Inclusive: false, ExcludesSelf: false})
	return schema
}

// DefaultSchema is the note editor schema with suggestion marks registered.
func DefaultSchema() *doc.Schema {
	s := doc.NewSchema()
	s.AddNode(doc.NodeSpec{Name: "paragraph", Textblock: true})
	s.AddNode(doc.NodeSpec{Name: "heading", Textblock: true})
	s.AddNode(doc.NodeSpec{Name: "codeBlock", Textblock: true})
	s.AddNode(doc.NodeSpec{Name: "blockquote"})
	s.AddNode(doc.NodeSpec{Name: "bulletList"})
	s.AddNode(doc.NodeSpec{Name: "orderedList"})
	s.AddNode(doc.NodeSpec{Name: "listItem"})
	s.AddNode(doc.NodeSpec{Name: "horizontalRule", Leaf: true})
	s.AddNode(doc.NodeSpec{Name: "hardBreak", Inline: true, Leaf: true, LeafText: "\n"})
	s.AddNode(doc.NodeSpec{Name: "image", Inline: true, Leaf: true})

	s.AddMark(doc.MarkSpec{Name: "link", ExcludesSelf: true})
	s.AddMark(doc.MarkSpec{Name: "bold", Inclusive: true, ExcludesSelf: true})
	s.AddMark(doc.MarkSpec{Name: "italic", Inclusive: true, ExcludesSelf: true})
	s.AddMark(doc.MarkSpec{Name: "underline", Inclusive: true, ExcludesSelf: true})
	s.AddMark(doc.MarkSpec{Name: "strike", Inclusive: true, ExcludesSelf: true})
	s.AddMark(doc.MarkSpec{Name: "code", Inclusive: true, ExcludesSelf: true})
	return RegisterMarks(s)
}

func available(schema *doc.Schema) bool {
	return schema.HasMark(MarkInsert) && schema.HasMark(MarkDelete)
}
