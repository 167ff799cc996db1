// Package doc implements the structured document substrate: a ProseMirror
// compatible node tree addressed by a single flat integer position space,
// marks, position-mapped steps and atomic transactions.
package doc

import "sort"

// NodeSpec describes how a node type occupies positions.
type NodeSpec struct {
	Name      string
	Inline    bool
	Textblock bool
	Leaf      bool
	// LeafText is the text a leaf contributes to flattened block text.
	LeafText string
}

// MarkSpec describes a mark type.
type MarkSpec struct {
	Name string
	// Inclusive marks extend over text typed at their end boundary.
	Inclusive bool
	// ExcludesSelf makes a new mark of this type replace an existing one
	// with different attrs instead of coexisting with it.
	ExcludesSelf bool

	rank int
}

type Schema struct {
	nodes map[string]NodeSpec
	marks map[string]MarkSpec
	next  int
}

func NewSchema() *Schema {
	s := &Schema{
		nodes: make(map[string]NodeSpec),
		marks: make(map[string]MarkSpec),
	}
	s.AddNode(NodeSpec{Name: "doc"})
	s.AddNode(NodeSpec{Name: "text", Inline: true})
	return s
}

func (s *Schema) AddNode(spec NodeSpec) *Schema {
	s.nodes[spec.Name] = spec
	return s
}

// AddMark registers a mark type. Registration order defines mark rank, which
// fixes the order marks are stored in on a node.
func (s *Schema) AddMark(spec MarkSpec) *Schema {
	if existing, ok := s.marks[spec.Name]; ok {
		spec.rank = existing.rank
	} else {
		spec.rank = s.next
		s.next++
	}
	s.marks[spec.Name] = spec
	return s
}

func (s *Schema) HasMark(name string) bool {
	_, ok := s.marks[name]
	return ok
}

func (s *Schema) Mark(name string) (MarkSpec, bool) {
	spec, ok := s.marks[name]
	return spec, ok
}

func (s *Schema) Node(name string) (NodeSpec, bool) {
	spec, ok := s.nodes[name]
	return spec, ok
}

// MarkNames returns registered mark types in rank order.
func (s *Schema) MarkNames() []string {
	names := make([]string, 0, len(s.marks))
	for name := range s.marks {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		return s.marks[names[i]].rank < s.marks[names[j]].rank
	})
	return names
}

func (s *Schema) IsText(n *Node) bool {
	return n != nil && n.Type == "text"
}

func (s *Schema) IsTextblock(n *Node) bool {
	if n == nil {
		return false
	}
	spec, ok := s.nodes[n.Type]
	return ok && spec.Textblock
}

func (s *Schema) IsLeaf(n *Node) bool {
	if n == nil || n.Type == "text" {
		return false
	}
	spec, ok := s.nodes[n.Type]
	return ok && spec.Leaf
}

func (s *Schema) IsInline(n *Node) bool {
	if n == nil {
		return false
	}
	if n.Type == "text" {
		return true
	}
	spec, ok := s.nodes[n.Type]
	return ok && spec.Inline
}

// NodeSize is the number of positions n occupies.
func (s *Schema) NodeSize(n *Node) int {
	switch {
	case n == nil:
		return 0
	case s.IsText(n):
		return runeLen(n.Text)
	case s.IsLeaf(n):
		return 1
	}
	return 2 + s.ContentSize(n)
}

func (s *Schema) ContentSize(n *Node) int {
	size := 0
	for _, child := range n.Content {
		size += s.NodeSize(child)
	}
	return size
}

// LeafText is the text an inline node contributes to flattened block text.
func (s *Schema) LeafText(n *Node) string {
	if s.IsText(n) {
		return n.Text
	}
	if spec, ok := s.nodes[n.Type]; ok && spec.Leaf {
		return spec.LeafText
	}
	return ""
}

func (s *Schema) markRank(name string) int {
	if spec, ok := s.marks[name]; ok {
		return spec.rank
	}
	return int(^uint(0) >> 1)
}
