package editor

import (
	"errors"
	"testing"

	"capnote/api/internal/doc"
	"capnote/api/internal/suggest"
)

func newTestEditor(text string) *Editor {
	d := doc.New(suggest.DefaultSchema(), doc.Block("doc", nil, doc.Paragraph(doc.Text(text))))
	return New(d)
}

func TestDispatchMapsSelectionAndNotifies(t *testing.T) {
	ed := newTestEditor("Hello world")
	ed.SetSelection(Selection{Anchor: 12, Head: 12})

	var changes []Change
	unsubscribe := ed.OnChange(func(c Change) { changes = append(changes, c) })

	tr := doc.NewTransaction(ed.Document())
	if err := tr.Insert(1, doc.Text(">> ")); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if err := ed.Dispatch(tr); err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if got := ed.Selection(); got.Anchor != 15 || got.Head != 15 {
		t.Errorf("expected selection mapped to 15, got %+v", got)
	}
	if len(changes) != 1 || changes[0].Kind != ChangeTransaction || changes[0].Tr != tr {
		t.Fatalf("unexpected changes %+v", changes)
	}

	unsubscribe()
	tr = doc.NewTransaction(ed.Document())
	_ = tr.Insert(1, doc.Text("x"))
	if err := ed.Dispatch(tr); err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if len(changes) != 1 {
		t.Errorf("listener called after unsubscribe")
	}
}

func TestDispatchRejectsStaleTransaction(t *testing.T) {
	ed := newTestEditor("abc")
	stale := doc.NewTransaction(ed.Document())
	_ = stale.Insert(1, doc.Text("x"))

	fresh := doc.NewTransaction(ed.Document())
	_ = fresh.Insert(4, doc.Text("y"))
	if err := ed.Dispatch(fresh); err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if err := ed.Dispatch(stale); !errors.Is(err, ErrStaleTransaction) {
		t.Fatalf("expected ErrStaleTransaction, got %v", err)
	}
	if got := ed.Document().PlainText(); got != "abcy" {
		t.Errorf("unexpected text %q", got)
	}
}

func TestUndoRevertsWholeSuggestion(t *testing.T) {
	ed := newTestEditor("cat dog cat")
	original := ed.Document()

	if _, ok := suggest.Propose(ed, suggest.Proposal{TextToReplace: "cat", TextReplacement: "lion"}, ""); !ok {
		t.Fatalf("propose failed")
	}
	if !ed.Focused() {
		t.Errorf("expected editor to be focused")
	}
	if !suggest.HasSuggestions(ed.Document()) {
		t.Fatalf("expected suggestion marks")
	}
	if !ed.Undo() {
		t.Fatalf("expected undo")
	}
	if ed.Document() != original {
		t.Errorf("single undo should restore the pre-suggestion document")
	}
	if !ed.Redo() || !suggest.HasSuggestions(ed.Document()) {
		t.Errorf("redo should bring the suggestion back")
	}
	if ed.Redo() {
		t.Errorf("nothing left to redo")
	}
}

func TestHistoryOptOut(t *testing.T) {
	ed := newTestEditor("abc")
	tr := doc.NewTransaction(ed.Document())
	_ = tr.Insert(1, doc.Text("x"))
	tr.SetMeta(doc.MetaAddToHistory, false)
	if err := ed.Dispatch(tr); err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if ed.CanUndo() {
		t.Errorf("opted-out transaction must not be undoable")
	}
}

func TestRunResolutionCommand(t *testing.T) {
	ed := newTestEditor("Hello world")
	id, ok := suggest.Propose(ed, suggest.Proposal{TextReplacement: " there", TextBefore: "Hello"}, "")
	if !ok {
		t.Fatalf("propose failed")
	}
	if !ed.Run(suggest.RejectByID(id)) {
		t.Fatalf("expected reject to run")
	}
	if got := ed.Document().PlainText(); got != "Hello world" {
		t.Errorf("unexpected text %q", got)
	}
	if ed.Run(suggest.RejectByID(id)) {
		t.Errorf("second reject should not apply")
	}
}

func TestInsertTextSkipsSuggestionMarks(t *testing.T) {
	ed := newTestEditor("Hello world")
	if _, ok := suggest.Propose(ed, suggest.Proposal{TextReplacement: " there", TextBefore: "Hello"}, ""); !ok {
		t.Fatalf("propose failed")
	}
	ed.SetSelection(Selection{Anchor: 12, Head: 12})
	if err := ed.InsertText("!"); err != nil {
		t.Fatalf("insert text: %v", err)
	}
	items := suggest.List(ed.Document())
	if len(items) != 1 || items[0].Inserted != " there" {
		t.Errorf("typing at the edge extended the suggestion: %+v", items)
	}
	if got := ed.Document().PlainText(); got != "Hello there! world" {
		t.Errorf("unexpected text %q", got)
	}
}

func TestInsertTextKeepsInclusiveMarks(t *testing.T) {
	bold := doc.Mark{Type: "bold"}
	d := doc.New(suggest.DefaultSchema(), doc.Block("doc", nil, doc.Paragraph(doc.Text("ab", bold))))
	ed := New(d)
	ed.SetSelection(Selection{Anchor: 3, Head: 3})
	if err := ed.InsertText("c"); err != nil {
		t.Fatalf("insert text: %v", err)
	}
	para := ed.Document().Root().Content[0]
	if len(para.Content) != 1 || para.Content[0].Text != "abc" || !para.Content[0].HasMark("bold") {
		t.Errorf("expected bold to extend, got %+v", para.Content)
	}
}

func TestResetClearsHistory(t *testing.T) {
	ed := newTestEditor("abc")
	ed.SetSelection(Selection{Anchor: 1, Head: 1})
	if err := ed.InsertText("x"); err != nil {
		t.Fatalf("insert text: %v", err)
	}
	var kinds []ChangeKind
	ed.OnChange(func(c Change) { kinds = append(kinds, c.Kind) })

	ed.Reset(doc.New(suggest.DefaultSchema(), nil))
	if ed.CanUndo() || ed.Undo() {
		t.Errorf("history should be cleared")
	}
	if len(kinds) != 1 || kinds[0] != ChangeReset {
		t.Errorf("unexpected change kinds %v", kinds)
	}
	if got := ed.SetSelection(Selection{Anchor: 5, Head: -1}); got.Anchor != 0 || got.Head != 0 {
		t.Errorf("selection not clamped: %+v", got)
	}
}
