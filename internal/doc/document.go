package doc

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrInvalidRange reports a position range outside the document.
	ErrInvalidRange = errors.New("invalid position range")
	// ErrCrossesBlock reports an inline edit whose range leaves a textblock.
	ErrCrossesBlock = errors.New("range crosses textblock boundary")
)

// Document is an immutable root node bound to the schema that sizes it.
type Document struct {
	schema *Schema
	root   *Node
}

// BlockRef locates a textblock: Pos is the position before the block, so its
// inline content starts at Pos+1.
type BlockRef struct {
	Node *Node
	Pos  int
	path []int
}

func (b BlockRef) ContentStart() int { return b.Pos + 1 }

func New(schema *Schema, root *Node) *Document {
	if root == nil {
		root = &Node{Type: "doc"}
	}
	return &Document{schema: schema, root: root}
}

func ParseJSON(schema *Schema, raw []byte) (*Document, error) {
	var root Node
	if err := json.Unmarshal(raw, &root); err != nil {
		return nil, fmt.Errorf("decode document: %w", err)
	}
	if root.Type == "" {
		root.Type = "doc"
	}
	d := New(schema, &root)
	if err := d.Validate(); err != nil {
		return nil, err
	}
	return d, nil
}

func (d *Document) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.root)
}

func (d *Document) Root() *Node { return d.root }
func (d *Document) Schema() *Schema { return d.schema }
func (d *Document) ContentSize() int { return d.schema.ContentSize(d.root) }

// Descendants calls fn for every node in document order with the position
// before the node. Returning false skips the node's children.
func (d *Document) Descendants(fn func(n *Node, pos int, parent *Node) bool) {
	d.walk(d.root, 0, func(n *Node, pos int, parent *Node) (bool, bool) {
		return fn(n, pos, parent), false
	})
}

// Find returns the first node in document order for which match is true,
// without visiting the rest of the tree.
func (d *Document) Find(match func(n *Node, pos int) bool) (*Node, int, bool) {
	var (
		found    *Node
		foundPos int
	)
	d.walk(d.root, 0, func(n *Node, pos int, _ *Node) (bool, bool) {
		if match(n, pos) {
			found, foundPos = n, pos
			return false, true
		}
		return true, false
	})
	return found, foundPos, found != nil
}

func (d *Document) walk(parent *Node, start int, fn func(*Node, int, *Node) (descend, stop bool)) bool {
	pos := start
	for _, child := range parent.Content {
		descend, stop := fn(child, pos, parent)
		if stop {
			return true
		}
		if descend && len(child.Content) > 0 {
			if d.walk(child, pos+1, fn) {
				return true
			}
		}
		pos += d.schema.NodeSize(child)
	}
	return false
}

// Textblocks lists every textblock in document order.
func (d *Document) Textblocks() []BlockRef {
	var blocks []BlockRef
	var visit func(parent *Node, start int, path []int)
	visit = func(parent *Node, start int, path []int) {
		pos := start
		for i, child := range parent.Content {
			childPath := append(append([]int(nil), path...), i)
			if d.schema.IsTextblock(child) {
				blocks = append(blocks, BlockRef{Node: child, Pos: pos, path: childPath})
			} else if !d.schema.IsText(child) && !d.schema.IsLeaf(child) {
				visit(child, pos+1, childPath)
			}
			pos += d.schema.NodeSize(child)
		}
	}
	visit(d.root, 0, nil)
	return blocks
}

// TextblockAt returns the textblock whose inline content range contains pos.
func (d *Document) TextblockAt(pos int) (BlockRef, bool) {
	for _, block := range d.Textblocks() {
		start := block.ContentStart()
		end := start + d.schema.ContentSize(block.Node)
		if pos >= start && pos <= end {
			return block, true
		}
	}
	return BlockRef{}, false
}

// BlockText flattens a textblock's inline content to plain text.
func (d *Document) BlockText(block *Node) string {
	var sb strings.Builder
	for _, child := range block.Content {
		sb.WriteString(d.schema.LeafText(child))
	}
	return sb.String()
}

// TextBetween returns the flattened text of inline content in [from, to),
// separating textblocks with blockSep.
func (d *Document) TextBetween(from, to int, blockSep string) string {
	var sb strings.Builder
	first := true
	for _, block := range d.Textblocks() {
		start := block.ContentStart()
		end := start + d.schema.ContentSize(block.Node)
		if end < from || start > to {
			continue
		}
		if !first {
			sb.WriteString(blockSep)
		}
		first = false
		pos := start
		for _, child := range block.Node.Content {
			size := d.schema.NodeSize(child)
			lo, hi := max(from, pos), min(to, pos+size)
			if lo < hi {
				if d.schema.IsText(child) {
					sb.WriteString(sliceRunes(child.Text, lo-pos, hi-pos))
				} else {
					sb.WriteString(d.schema.LeafText(child))
				}
			}
			pos += size
		}
	}
	return sb.String()
}

// PlainText is the whole document's text with textblocks joined by newlines.
func (d *Document) PlainText() string {
	blocks := d.Textblocks()
	parts := make([]string, 0, len(blocks))
	for _, block := range blocks {
		parts = append(parts, d.BlockText(block.Node))
	}
	return strings.Join(parts, "\n")
}

// InlineAt returns the inline node ending at pos (the node to the left of pos)
// within its textblock.
func (d *Document) InlineAt(pos int) (*Node, bool) {
	block, ok := d.TextblockAt(pos)
	if !ok {
		return nil, false
	}
	at := block.ContentStart()
	for _, child := range block.Node.Content {
		size := d.schema.NodeSize(child)
		if pos > at && pos <= at+size {
			return child, true
		}
		at += size
	}
	return nil, false
}

// Slice copies the inline content [from, to) of a single textblock.
func (d *Document) Slice(from, to int) ([]*Node, error) {
	if err := d.checkRange(from, to); err != nil {
		return nil, err
	}
	block, ok := d.TextblockAt(from)
	if !ok {
		return nil, fmt.Errorf("%w: no textblock at %d", ErrCrossesBlock, from)
	}
	start := block.ContentStart()
	if to > start+d.schema.ContentSize(block.Node) {
		return nil, fmt.Errorf("%w: [%d, %d)", ErrCrossesBlock, from, to)
	}
	_, rest := d.splitInline(block.Node.Content, from-start)
	mid, _ := d.splitInline(rest, to-from)
	return mid, nil
}

func (d *Document) checkRange(from, to int) error {
	if from < 0 || to < from || to > d.ContentSize() {
		return fmt.Errorf("%w: [%d, %d) in document of size %d", ErrInvalidRange, from, to, d.ContentSize())
	}
	return nil
}

// replaceInline swaps inline content [from, to) of one textblock for content.
func (d *Document) replaceInline(from, to int, content []*Node) (*Document, error) {
	if err := d.checkRange(from, to); err != nil {
		return nil, err
	}
	block, ok := d.TextblockAt(from)
	if !ok {
		return nil, fmt.Errorf("%w: no textblock at %d", ErrCrossesBlock, from)
	}
	start := block.ContentStart()
	if to > start+d.schema.ContentSize(block.Node) {
		return nil, fmt.Errorf("%w: [%d, %d)", ErrCrossesBlock, from, to)
	}
	for _, n := range content {
		if !d.schema.IsInline(n) {
			return nil, fmt.Errorf("%w: %s is not inline content", ErrInvalidRange, n.Type)
		}
	}
	before, _ := d.splitInline(block.Node.Content, from-start)
	_, after := d.splitInline(block.Node.Content, to-start)
	children := make([]*Node, 0, len(before)+len(content)+len(after))
	children = append(children, before...)
	children = append(children, content...)
	children = append(children, after...)
	updated := block.Node.withContent(normalizeInline(d.schema, children))
	return &Document{schema: d.schema, root: replaceAtPath(d.root, block.path, updated)}, nil
}

// updateInlineMarks rewrites the mark sets of inline nodes in [from, to),
// across as many textblocks as the range touches.
func (d *Document) updateInlineMarks(from, to int, update func([]Mark) []Mark) (*Document, error) {
	if err := d.checkRange(from, to); err != nil {
		return nil, err
	}
	root := d.root
	for _, block := range d.Textblocks() {
		start := block.ContentStart()
		end := start + d.schema.ContentSize(block.Node)
		lo, hi := max(from, start), min(to, end)
		if lo >= hi {
			continue
		}
		left, rest := d.splitInline(block.Node.Content, lo-start)
		mid, right := d.splitInline(rest, hi-lo)
		children := make([]*Node, 0, len(block.Node.Content)+2)
		children = append(children, left...)
		for _, n := range mid {
			children = append(children, n.withMarks(update(n.Marks)))
		}
		children = append(children, right...)
		updated := block.Node.withContent(normalizeInline(d.schema, children))
		root = replaceAtPath(root, block.path, updated)
	}
	return &Document{schema: d.schema, root: root}, nil
}

// splitInline cuts inline children at a content offset, splitting a text node
// when the offset falls inside it.
func (d *Document) splitInline(children []*Node, at int) (before, after []*Node) {
	pos := 0
	for _, child := range children {
		size := d.schema.NodeSize(child)
		switch {
		case pos+size <= at:
			before = append(before, child)
		case pos >= at:
			after = append(after, child)
		case d.schema.IsText(child):
			cut := at - pos
			before = append(before, child.withText(sliceRunes(child.Text, 0, cut)))
			after = append(after, child.withText(sliceRunes(child.Text, cut, size)))
		default:
			before = append(before, child)
		}
		pos += size
	}
	return before, after
}

// NormalizeInline merges adjacent text nodes with equal mark sets and drops
// empty text.
func (s *Schema) NormalizeInline(children []*Node) []*Node {
	return normalizeInline(s, children)
}

func normalizeInline(schema *Schema, children []*Node) []*Node {
	out := make([]*Node, 0, len(children))
	for _, child := range children {
		if schema.IsText(child) && child.Text == "" {
			continue
		}
		if n := len(out); n > 0 && schema.IsText(child) && schema.IsText(out[n-1]) && sameMarkSet(out[n-1].Marks, child.Marks) {
			out[n-1] = out[n-1].withText(out[n-1].Text + child.Text)
			continue
		}
		out = append(out, child)
	}
	return out
}

func replaceAtPath(node *Node, path []int, replacement *Node) *Node {
	if len(path) == 0 {
		return replacement
	}
	children := make([]*Node, len(node.Content))
	copy(children, node.Content)
	children[path[0]] = replaceAtPath(children[path[0]], path[1:], replacement)
	return node.withContent(children)
}
