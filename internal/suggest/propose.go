package suggest

import (
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"capnote/api/internal/doc"
	"capnote/api/internal/util"
)

// MetaAISuggestion tags transactions produced by Propose.
const MetaAISuggestion = "aiSuggestion"

// Kind classifies a suggestion by which mark types carry its id.
type Kind string

const (
	KindInsert  Kind = "insert"
	KindDelete  Kind = "delete"
	KindReplace Kind = "replace"
)

// Proposal is an edit as the model expresses it: plain old and new text with
// optional surrounding context.
type Proposal struct {
	TextToReplace   string `json:"textToReplace"`
	TextReplacement string `json:"textReplacement"`
	Reason          string `json:"reason,omitempty"`
	TextBefore      string `json:"textBefore,omitempty"`
	TextAfter       string `json:"textAfter,omitempty"`
}

// Kind returns the proposal's classification, or false for an empty edit.
func (p Proposal) Kind() (Kind, bool) {
	switch {
	case p.TextToReplace == "" && p.TextReplacement != "":
		return KindInsert, true
	case p.TextToReplace != "" && p.TextReplacement == "":
		return KindDelete, true
	case p.TextToReplace != "" && p.TextReplacement != "":
		return KindReplace, true
	}
	return "", false
}

// Dispatcher is the editor surface Propose needs.
type Dispatcher interface {
	Document() *doc.Document
	Dispatch(tr *doc.Transaction) error
	Focus()
}

// Propose resolves p against the current document and dispatches one
// transaction carrying the suggestion marks. It returns the new suggestion id,
// or false when nothing was changed.
func Propose(ed Dispatcher, p Proposal, user string) (string, bool) {
	if user == "" {
		user = DefaultUser
	}
	attrs := Attrs{
		ID:     util.NewSuggestionID(),
		User:   user,
		Reason: p.Reason,
		TS:     time.Now().UnixMilli(),
		Source: SourceAI,
	}
	tr, ok := Build(ed.Document(), p, attrs)
	if !ok {
		return "", false
	}
	if err := ed.Dispatch(tr); err != nil {
		log.Printf("suggest: dispatch suggestion %s: %v", attrs.ID, err)
		return "", false
	}
	ed.Focus()
	return attrs.ID, true
}

// Build composes the suggestion transaction for p without dispatching it.
//
// insert:  the replacement is inserted at the anchor, insert-marked.
// delete:  the target span is delete-marked in place.
// replace: the span is replaced by insert-marked text and the removed content
// is re-inserted, delete-marked, right before it.
func Build(d *doc.Document, p Proposal, attrs Attrs) (*doc.Transaction, bool) {
	kind, ok := p.Kind()
	if !ok || !available(d.Schema()) {
		return nil, false
	}
	insertMark := attrs.Mark(MarkInsert)
	deleteMark := attrs.Mark(MarkDelete)

	tr := doc.NewTransaction(d)
	var err error
	switch kind {
	case KindInsert:
		pos, found := LocateInsertionPoint(d, AnchorQuery{TextBefore: p.TextBefore, TextAfter: p.TextAfter})
		if !found {
			return nil, false
		}
		err = tr.Insert(pos, doc.Text(p.TextReplacement, insertMark))
	case KindDelete:
		span, found := LocateSpan(d, SpanQuery{TextToReplace: p.TextToReplace, TextBefore: p.TextBefore, TextAfter: p.TextAfter})
		if !found {
			return nil, false
		}
		err = tr.AddMark(span.From, span.To, deleteMark)
	case KindReplace:
		span, found := LocateSpan(d, SpanQuery{TextToReplace: p.TextToReplace, TextBefore: p.TextBefore, TextAfter: p.TextAfter})
		if !found {
			return nil, false
		}
		err = composeReplace(tr, span, p.TextReplacement, insertMark, deleteMark)
	}
	if err != nil {
		log.Printf("suggest: build %s suggestion: %v", kind, err)
		return nil, false
	}
	tr.SetMeta(MetaAISuggestion, true)
	tr.SetMeta(doc.MetaAddToHistory, true)
	return tr, true
}

func composeReplace(tr *doc.Transaction, span Range, replacement string, insertMark, deleteMark doc.Mark) error {
	removed, err := tr.Doc().Slice(span.From, span.To)
	if err != nil {
		return fmt.Errorf("slice original: %w", err)
	}
	if err := tr.Replace(span.From, span.To, doc.Text(replacement, insertMark)); err != nil {
		return fmt.Errorf("replace span: %w", err)
	}
	at := tr.Mapping().Map(span.From, -1)
	if err := tr.Insert(at, removed...); err != nil {
		return fmt.Errorf("reinsert original: %w", err)
	}
	end := tr.Mapping().MapFrom(tr.Mapping().Len()-1, at, 1)
	return tr.AddMark(at, end, deleteMark)
}

// ParseProposals decodes one proposal object or an array of them, the shape
// the chat "suggest edit" tool emits.
func ParseProposals(raw []byte) ([]Proposal, error) {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" {
		return nil, fmt.Errorf("empty proposal payload")
	}
	if strings.HasPrefix(trimmed, "[") {
		var items []Proposal
		if err := json.Unmarshal([]byte(trimmed), &items); err != nil {
			return nil, fmt.Errorf("decode proposals: %w", err)
		}
		return items, nil
	}
	var item Proposal
	if err := json.Unmarshal([]byte(trimmed), &item); err != nil {
		return nil, fmt.Errorf("decode proposal: %w", err)
	}
	return []Proposal{item}, nil
}
