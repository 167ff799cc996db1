package suggest

import "capnote/api/internal/doc"

// Span is one contiguous run of content carrying a suggestion mark.
type Span struct {
	Attrs
	MarkType string
	Range
}

// SpanAt returns the suggestion run under pos. A position inside an inline
// node wins over one at the end of the preceding node; an insert mark wins
// over a delete mark on the same content.
func SpanAt(d *doc.Document, pos int) (Span, bool) {
	block, ok := d.TextblockAt(pos)
	if !ok {
		return Span{}, false
	}
	schema := d.Schema()
	var hit, before *doc.Node
	at := block.ContentStart()
	for _, child := range block.Node.Content {
		end := at + schema.NodeSize(child)
		if pos >= at && pos < end {
			hit = child
			break
		}
		if pos == end {
			before = child
		}
		at = end
	}
	if hit == nil {
		hit = before
	}
	if hit == nil {
		return Span{}, false
	}

	var mark doc.Mark
	switch {
	case hit.HasMark(MarkInsert):
		mark = hit.MarksOf(MarkInsert)[0]
	case hit.HasMark(MarkDelete):
		mark = hit.MarksOf(MarkDelete)[0]
	default:
		return Span{}, false
	}
	attrs := AttrsFromMark(mark)
	for _, r := range collect(d, mark.Type, attrs.ID) {
		if pos >= r.From && pos <= r.To {
			return Span{Attrs: attrs, MarkType: mark.Type, Range: r.Range}, true
		}
	}
	return Span{}, false
}

// Ranges returns the merged ranges covered by suggestion id under either mark
// type, in document order. A replace's adjacent delete and insert runs merge
// into one range.
func Ranges(d *doc.Document, id string) []Range {
	if id == "" {
		return nil
	}
	marked := append(collect(d, MarkInsert, id), collect(d, MarkDelete, id)...)
	return mergeRanges(marked)
}
