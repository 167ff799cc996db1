package suggest

import (
	"strings"
	"unicode/utf8"

	"capnote/api/internal/doc"
)

// Range is a half-open document position range.
type Range struct {
	From int `json:"from"`
	To   int `json:"to"`
}

// SpanQuery describes text to find, optionally disambiguated by the text
// that must immediately precede and follow it inside the same block.
type SpanQuery struct {
	TextToReplace string
	TextBefore    string
	TextAfter     string
}

// AnchorQuery describes an insertion point by neighbouring text.
type AnchorQuery struct {
	TextBefore string
	TextAfter  string
}

// LocateSpan finds the first occurrence of q.TextToReplace, in document
// order, whose block-local context matches TextBefore and TextAfter.
func LocateSpan(d *doc.Document, q SpanQuery) (Range, bool) {
	if q.TextToReplace == "" {
		return Range{}, false
	}
	schema := d.Schema()
	for _, block := range d.Textblocks() {
		text := d.BlockText(block.Node)
		offset := 0
		for {
			idx := strings.Index(text[offset:], q.TextToReplace)
			if idx < 0 {
				break
			}
			idx += offset
			end := idx + len(q.TextToReplace)
			if strings.HasSuffix(text[:idx], q.TextBefore) && strings.HasPrefix(text[end:], q.TextAfter) {
				from, okFrom := BlockOffsetToPosition(schema, block.Node, block.Pos, utf8.RuneCountInString(text[:idx]), BiasRight)
				to, okTo := BlockOffsetToPosition(schema, block.Node, block.Pos, utf8.RuneCountInString(text[:end]), BiasLeft)
				if okFrom && okTo {
					return Range{From: from, To: to}, true
				}
			}
			_, width := utf8.DecodeRuneInString(text[idx:])
			offset = idx + width
		}
	}
	return Range{}, false
}

// LocateInsertionPoint returns the position right after the first
// occurrence of TextBefore, or, without TextBefore, right before the first
// occurrence of TextAfter.
func LocateInsertionPoint(d *doc.Document, q AnchorQuery) (int, bool) {
	if q.TextBefore == "" && q.TextAfter == "" {
		return 0, false
	}
	schema := d.Schema()
	for _, block := range d.Textblocks() {
		text := d.BlockText(block.Node)
		var charOffset int
		bias := BiasLeft
		if q.TextBefore != "" {
			idx := strings.Index(text, q.TextBefore)
			if idx < 0 {
				continue
			}
			charOffset = utf8.RuneCountInString(text[:idx+len(q.TextBefore)])
		} else {
			idx := strings.Index(text, q.TextAfter)
			if idx < 0 {
				continue
			}
			charOffset = utf8.RuneCountInString(text[:idx])
			bias = BiasRight
		}
		if pos, ok := BlockOffsetToPosition(schema, block.Node, block.Pos, charOffset, bias); ok {
			return pos, true
		}
	}
	return 0, false
}

// Bias picks the side of inline leaves without text (images) when a
// character offset falls next to them.
type Bias int

const (
	// BiasLeft resolves to the end of the preceding text.
	BiasLeft Bias = iota
	// BiasRight resolves to the start of the following text.
	BiasRight
)

// BlockOffsetToPosition converts a character offset inside a textblock's
// flattened text into an absolute position. blockStart is the position
// before the block. Leaves with leaf text (hard breaks) count as characters;
// other inline leaves consume positions but no characters, and bias decides
// which side of them a boundary offset lands on.
func BlockOffsetToPosition(schema *doc.Schema, block *doc.Node, blockStart, charOffset int, bias Bias) (int, bool) {
	if charOffset < 0 {
		return 0, false
	}
	pos := blockStart + 1
	consumed := 0
	for _, child := range block.Content {
		size := schema.NodeSize(child)
		chars := utf8.RuneCountInString(schema.LeafText(child))
		if chars == 0 && charOffset == consumed && bias == BiasLeft {
			return pos, true
		}
		if chars > 0 && (charOffset < consumed+chars || charOffset == consumed+chars && bias == BiasLeft) {
			if schema.IsText(child) {
				return pos + charOffset - consumed, true
			}
			if charOffset == consumed {
				return pos, true
			}
			return pos + size, true
		}
		consumed += chars
		pos += size
	}
	if charOffset == consumed {
		return pos, true
	}
	return 0, false
}
