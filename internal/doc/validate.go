package doc

import (
	"errors"
	"fmt"
)

// ErrInvalidDocument reports a node tree the schema cannot address.
var ErrInvalidDocument = errors.New("invalid document")

// Validate checks that every node is known to the schema and sits where its
// spec allows: inline nodes only inside textblocks, textblocks holding only
// inline nodes, and leaves and text without children.
func (d *Document) Validate() error {
	if d.root.Type != "doc" {
		return fmt.Errorf("%w: root is %q, want doc", ErrInvalidDocument, d.root.Type)
	}
	return d.schema.validateChildren(d.root, "content")
}

func (s *Schema) validateChildren(parent *Node, path string) error {
	inTextblock := s.IsTextblock(parent)
	for i, child := range parent.Content {
		at := fmt.Sprintf("%s[%d]", path, i)
		if child == nil {
			return fmt.Errorf("%w: %s is null", ErrInvalidDocument, at)
		}
		spec, ok := s.Node(child.Type)
		if !ok || child.Type == "doc" {
			return fmt.Errorf("%w: %s has unknown node type %q", ErrInvalidDocument, at, child.Type)
		}
		if spec.Inline != inTextblock {
			if inTextblock {
				return fmt.Errorf("%w: %s: %s is not inline content of %s", ErrInvalidDocument, at, child.Type, parent.Type)
			}
			return fmt.Errorf("%w: %s: %s outside a textblock", ErrInvalidDocument, at, child.Type)
		}
		if child.Type == "text" && child.Text == "" {
			return fmt.Errorf("%w: %s: empty text node", ErrInvalidDocument, at)
		}
		if (spec.Leaf || child.Type == "text") && len(child.Content) > 0 {
			return fmt.Errorf("%w: %s: %s cannot have content", ErrInvalidDocument, at, child.Type)
		}
		if err := s.validateChildren(child, at+".content"); err != nil {
			return err
		}
	}
	return nil
}
