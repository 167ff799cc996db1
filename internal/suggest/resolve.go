package suggest

import (
	"log"
	"sort"

	"capnote/api/internal/doc"
)

// MetaSuggestionAction tags resolution transactions with an Action.
const MetaSuggestionAction = "suggestionAction"

// Action is the provenance attached to a resolution transaction. ID is empty
// for bulk operations.
type Action struct {
	Action string `json:"action"`
	ID     string `json:"id,omitempty"`
}

const (
	ActionAccept = "accept"
	ActionReject = "reject"
)

// Command inspects d and, when dispatch is non-nil, dispatches a transaction.
// It reports whether the command applies.
type Command func(d *doc.Document, dispatch func(*doc.Transaction)) bool

// AcceptAll keeps every inserted span as plain text and removes every
// delete-marked span.
func AcceptAll(d *doc.Document, dispatch func(*doc.Transaction)) bool {
	return resolve(d, dispatch, ActionAccept, "")
}

// RejectAll removes every inserted span and restores every delete-marked span.
func RejectAll(d *doc.Document, dispatch func(*doc.Transaction)) bool {
	return resolve(d, dispatch, ActionReject, "")
}

func AcceptByID(id string) Command {
	return func(d *doc.Document, dispatch func(*doc.Transaction)) bool {
		if id == "" {
			return false
		}
		return resolve(d, dispatch, ActionAccept, id)
	}
}

func RejectByID(id string) Command {
	return func(d *doc.Document, dispatch func(*doc.Transaction)) bool {
		if id == "" {
			return false
		}
		return resolve(d, dispatch, ActionReject, id)
	}
}

type markedRange struct {
	Range
	mark doc.Mark
}

func resolve(d *doc.Document, dispatch func(*doc.Transaction), action, id string) bool {
	if !available(d.Schema()) {
		return false
	}
	inserts := collect(d, MarkInsert, id)
	deletes := collect(d, MarkDelete, id)
	if len(inserts) == 0 && len(deletes) == 0 {
		return false
	}
	if dispatch == nil {
		return true
	}

	unmark, remove := inserts, deletes
	if action == ActionReject {
		unmark, remove = deletes, inserts
	}

	tr := doc.NewTransaction(d)
	for _, r := range unmark {
		if err := tr.RemoveMark(r.From, r.To, r.mark); err != nil {
			log.Printf("suggest: %s %q: remove mark: %v", action, id, err)
			return false
		}
	}
	spans := mergeRanges(remove)
	for i := len(spans) - 1; i >= 0; i-- {
		r := spans[i]
		if err := tr.Delete(r.From, r.To); err != nil {
			log.Printf("suggest: %s %q: delete range: %v", action, id, err)
			return false
		}
	}
	tr.SetMeta(MetaSuggestionAction, Action{Action: action, ID: id})
	dispatch(tr)
	return true
}

// mergeRanges unions overlapping or touching ranges, ordered by From.
func mergeRanges(in []markedRange) []Range {
	sorted := make([]Range, 0, len(in))
	for _, r := range in {
		sorted = append(sorted, r.Range)
	}
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].From < sorted[j].From })
	var out []Range
	for _, r := range sorted {
		if last := len(out) - 1; last >= 0 && r.From <= out[last].To {
			out[last].To = max(out[last].To, r.To)
			continue
		}
		out = append(out, r)
	}
	return out
}

// collect returns the inline ranges carrying markType, restricted to id
// unless id is empty. Adjacent ranges are merged so each deletion is one step.
func collect(d *doc.Document, markType, id string) []markedRange {
	schema := d.Schema()
	var out []markedRange
	d.Descendants(func(n *doc.Node, pos int, _ *doc.Node) bool {
		if !schema.IsInline(n) {
			return true
		}
		for _, m := range n.MarksOf(markType) {
			if id != "" && m.Attr("id") != id {
				continue
			}
			r := markedRange{Range: Range{From: pos, To: pos + schema.NodeSize(n)}, mark: m}
			if last := len(out) - 1; last >= 0 && out[last].To == r.From && out[last].mark.Eq(m) {
				out[last].To = r.To
				continue
			}
			out = append(out, r)
		}
		return false
	})
	return out
}

// HasSuggestions reports whether any inline content carries a suggestion
// mark. The walk stops at the first hit.
func HasSuggestions(d *doc.Document) bool {
	_, _, found := d.Find(func(n *doc.Node, _ int) bool {
		return n.HasMark(MarkInsert) || n.HasMark(MarkDelete)
	})
	return found
}

// Suggestion is the logical view of one pending edit, derived from marks.
type Suggestion struct {
	Attrs
	Kind     Kind   `json:"kind"`
	Inserted string `json:"inserted"`
	Deleted  string `json:"deleted"`
	From     int    `json:"from"`
	To       int    `json:"to"`

	hasInsert bool
	hasDelete bool
}

// List derives pending suggestions in document order of first appearance.
func List(d *doc.Document) []Suggestion {
	schema := d.Schema()
	index := make(map[string]int)
	var out []Suggestion
	d.Descendants(func(n *doc.Node, pos int, _ *doc.Node) bool {
		if !schema.IsInline(n) {
			return true
		}
		end := pos + schema.NodeSize(n)
		for _, m := range n.Marks {
			if m.Type != MarkInsert && m.Type != MarkDelete {
				continue
			}
			attrs := AttrsFromMark(m)
			i, seen := index[attrs.ID]
			if !seen {
				i = len(out)
				index[attrs.ID] = i
				out = append(out, Suggestion{Attrs: attrs, From: pos, To: end})
			}
			s := &out[i]
			s.To = max(s.To, end)
			text := schema.LeafText(n)
			if m.Type == MarkInsert {
				s.Inserted += text
				s.hasInsert = true
			} else {
				s.Deleted += text
				s.hasDelete = true
			}
		}
		return false
	})
	for i := range out {
		out[i].Kind = kindOf(out[i].hasInsert, out[i].hasDelete)
	}
	return out
}

// KindOf classifies suggestion id by checking both mark types for it.
func KindOf(d *doc.Document, id string) (Kind, bool) {
	hasInsert := len(collect(d, MarkInsert, id)) > 0
	hasDelete := len(collect(d, MarkDelete, id)) > 0
	if !hasInsert && !hasDelete {
		return "", false
	}
	return kindOf(hasInsert, hasDelete), true
}

func kindOf(hasInsert, hasDelete bool) Kind {
	switch {
	case hasInsert && hasDelete:
		return KindReplace
	case hasDelete:
		return KindDelete
	}
	return KindInsert
}

// Resolved returns the document as it would be after accepting (accept=true)
// or rejecting every pending suggestion. d itself is not modified.
func Resolved(d *doc.Document, accept bool) *doc.Document {
	result := d
	cmd := RejectAll
	if accept {
		cmd = AcceptAll
	}
	cmd(d, func(tr *doc.Transaction) { result = tr.Doc() })
	return result
}

// Preview returns the plain text of Resolved(d, accept).
func Preview(d *doc.Document, accept bool) string {
	return Resolved(d, accept).PlainText()
}
