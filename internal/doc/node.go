package doc

import (
	"fmt"
	"reflect"
	"unicode/utf8"
)

// Node is a document node in ProseMirror JSON shape. Nodes are never mutated
// once they are part of a Document; steps copy the path they change.
type Node struct {
	Type    string         `json:"type"`
	Attrs   map[string]any `json:"attrs,omitempty"`
	Content []*Node        `json:"content,omitempty"`
	Text    string         `json:"text,omitempty"`
	Marks   []Mark         `json:"marks,omitempty"`
}

// Mark is an inline annotation attached to text or inline leaves.
type Mark struct {
	Type  string         `json:"type"`
	Attrs map[string]any `json:"attrs,omitempty"`
}

func (m Mark) Eq(other Mark) bool {
	return m.Type == other.Type && attrsEqual(m.Attrs, other.Attrs)
}

// Attr returns attribute key rendered as a string ("" when absent).
func (m Mark) Attr(key string) string {
	v, ok := m.Attrs[key]
	if !ok || v == nil {
		return ""
	}
	switch value := v.(type) {
	case string:
		return value
	case float64:
		if value == float64(int64(value)) {
			return fmt.Sprintf("%d", int64(value))
		}
		return fmt.Sprintf("%v", value)
	default:
		return fmt.Sprintf("%v", value)
	}
}

func Text(text string, marks ...Mark) *Node {
	return &Node{Type: "text", Text: text, Marks: marks}
}

func Block(nodeType string, attrs map[string]any, content ...*Node) *Node {
	return &Node{Type: nodeType, Attrs: attrs, Content: content}
}

func Paragraph(content ...*Node) *Node {
	return &Node{Type: "paragraph", Content: content}
}

func HardBreak() *Node {
	return &Node{Type: "hardBreak"}
}

// HasMark reports whether n carries a mark of the given type.
func (n *Node) HasMark(markType string) bool {
	for _, m := range n.Marks {
		if m.Type == markType {
			return true
		}
	}
	return false
}

// MarksOf returns the marks of the given type on n.
func (n *Node) MarksOf(markType string) []Mark {
	var out []Mark
	for _, m := range n.Marks {
		if m.Type == markType {
			out = append(out, m)
		}
	}
	return out
}

func (n *Node) withMarks(marks []Mark) *Node {
	cp := *n
	cp.Marks = marks
	return &cp
}

func (n *Node) withContent(content []*Node) *Node {
	cp := *n
	cp.Content = content
	return &cp
}

func (n *Node) withText(text string) *Node {
	cp := *n
	cp.Text = text
	return &cp
}

// AddToSet returns set with mark added in rank order. An equal mark is not
// duplicated; a self-excluding mark replaces others of its type.
func (s *Schema) AddToSet(set []Mark, mark Mark) []Mark {
	out := make([]Mark, 0, len(set)+1)
	placed := false
	spec, _ := s.Mark(mark.Type)
	for _, existing := range set {
		if existing.Eq(mark) {
			return set
		}
		if existing.Type == mark.Type && spec.ExcludesSelf {
			continue
		}
		if !placed && s.markRank(existing.Type) > s.markRank(mark.Type) {
			out = append(out, mark)
			placed = true
		}
		out = append(out, existing)
	}
	if !placed {
		out = append(out, mark)
	}
	return out
}

// removeMark drops mark from set. A mark with nil Attrs matches every mark of
// its type.
func removeMark(set []Mark, mark Mark) []Mark {
	var out []Mark
	for _, existing := range set {
		if existing.Type == mark.Type && (mark.Attrs == nil || existing.Eq(mark)) {
			continue
		}
		out = append(out, existing)
	}
	return out
}

func sameMarkSet(a, b []Mark) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !a[i].Eq(b[i]) {
			return false
		}
	}
	return true
}

func attrsEqual(a, b map[string]any) bool {
	if len(a) != len(b) {
		return false
	}
	for k, av := range a {
		bv, ok := b[k]
		if !ok {
			return false
		}
		if af, aok := toFloat(av); aok {
			if bf, bok := toFloat(bv); bok && af == bf {
				continue
			}
			return false
		}
		if !reflect.DeepEqual(av, bv) {
			return false
		}
	}
	return true
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case int32:
		return float64(n), true
	case float64:
		return n, true
	case float32:
		return float64(n), true
	}
	return 0, false
}

func runeLen(s string) int {
	return utf8.RuneCountInString(s)
}

// sliceRunes returns s[from:to] measured in runes.
func sliceRunes(s string, from, to int) string {
	r := []rune(s)
	if from < 0 {
		from = 0
	}
	if to > len(r) {
		to = len(r)
	}
	if from >= to {
		return ""
	}
	return string(r[from:to])
}
