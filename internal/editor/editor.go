// Package editor holds the live state of one open note: its document,
// selection, undo history and change listeners. All document mutation goes
// through Dispatch.
package editor

import (
	"errors"
	"sort"
	"sync"

	"capnote/api/internal/doc"
)

// ErrStaleTransaction is returned when a transaction was built against a
// document that is no longer current.
var ErrStaleTransaction = errors.New("transaction built against stale document")

const defaultHistoryLimit = 100

type Selection struct {
	Anchor int `json:"anchor"`
	Head   int `json:"head"`
}

func (s Selection) From() int { return min(s.Anchor, s.Head) }
func (s Selection) To() int   { return max(s.Anchor, s.Head) }
func (s Selection) Empty() bool {
	return s.Anchor == s.Head
}

type ChangeKind string

const (
	ChangeTransaction ChangeKind = "transaction"
	ChangeUndo        ChangeKind = "undo"
	ChangeRedo        ChangeKind = "redo"
	ChangeReset       ChangeKind = "reset"
)

// Change is delivered to listeners after every document update. Tr is nil for
// undo, redo and reset.
type Change struct {
	Kind ChangeKind
	Tr   *doc.Transaction
	Doc  *doc.Document
}

type Listener func(Change)

type snapshot struct {
	doc *doc.Document
	sel Selection
}

type Editor struct {
	// dispatchMu orders dispatch and notification; mu guards state.
	dispatchMu sync.Mutex
	mu         sync.RWMutex

	doc     *doc.Document
	sel     Selection
	focused bool
	undo    []snapshot
	redo    []snapshot
	limit   int

	listeners  map[int]Listener
	listenerID int
}

func New(d *doc.Document) *Editor {
	return &Editor{
		doc:       d,
		limit:     defaultHistoryLimit,
		listeners: make(map[int]Listener),
	}
}

func (e *Editor) Document() *doc.Document {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.doc
}

func (e *Editor) Selection() Selection {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.sel
}

// SetSelection moves the selection, clamped to the document.
func (e *Editor) SetSelection(sel Selection) Selection {
	e.mu.Lock()
	defer e.mu.Unlock()
	size := e.doc.ContentSize()
	sel.Anchor = clamp(sel.Anchor, 0, size)
	sel.Head = clamp(sel.Head, 0, size)
	e.sel = sel
	return sel
}

func (e *Editor) Focus() {
	e.mu.Lock()
	e.focused = true
	e.mu.Unlock()
}

func (e *Editor) Focused() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.focused
}

// OnChange registers fn for every document update. Listeners run in
// registration order on the dispatching goroutine and must not dispatch
// synchronously. The returned func unregisters fn.
func (e *Editor) OnChange(fn Listener) func() {
	e.mu.Lock()
	id := e.listenerID
	e.listenerID++
	e.listeners[id] = fn
	e.mu.Unlock()
	return func() {
		e.mu.Lock()
		delete(e.listeners, id)
		e.mu.Unlock()
	}
}

// Dispatch applies tr. Transactions are applied strictly in dispatch order.
func (e *Editor) Dispatch(tr *doc.Transaction) error {
	e.dispatchMu.Lock()
	defer e.dispatchMu.Unlock()

	e.mu.Lock()
	if tr.Before() != e.doc {
		e.mu.Unlock()
		return ErrStaleTransaction
	}
	if tr.DocChanged() && tr.AddToHistory() {
		e.pushUndo(snapshot{doc: e.doc, sel: e.sel})
		e.redo = nil
	}
	e.doc = tr.Doc()
	e.sel = Selection{
		Anchor: tr.Mapping().Map(e.sel.Anchor, 1),
		Head:   tr.Mapping().Map(e.sel.Head, 1),
	}
	listeners := e.snapshotListeners()
	e.mu.Unlock()

	notify(listeners, Change{Kind: ChangeTransaction, Tr: tr, Doc: tr.Doc()})
	return nil
}

// Run executes a command against the current document, dispatching through
// this editor. Command failures surface as false.
func (e *Editor) Run(cmd func(*doc.Document, func(*doc.Transaction)) bool) bool {
	var dispatchErr error
	ok := cmd(e.Document(), func(tr *doc.Transaction) {
		dispatchErr = e.Dispatch(tr)
	})
	return ok && dispatchErr == nil
}

// Undo restores the state before the most recent history transaction.
func (e *Editor) Undo() bool {
	return e.travel(ChangeUndo)
}

func (e *Editor) Redo() bool {
	return e.travel(ChangeRedo)
}

func (e *Editor) travel(kind ChangeKind) bool {
	e.dispatchMu.Lock()
	defer e.dispatchMu.Unlock()

	e.mu.Lock()
	from, to := &e.undo, &e.redo
	if kind == ChangeRedo {
		from, to = &e.redo, &e.undo
	}
	if len(*from) == 0 {
		e.mu.Unlock()
		return false
	}
	last := (*from)[len(*from)-1]
	*from = (*from)[:len(*from)-1]
	*to = append(*to, snapshot{doc: e.doc, sel: e.sel})
	e.doc, e.sel = last.doc, last.sel
	current := e.doc
	listeners := e.snapshotListeners()
	e.mu.Unlock()

	notify(listeners, Change{Kind: kind, Doc: current})
	return true
}

// Reset replaces the document and clears history.
func (e *Editor) Reset(d *doc.Document) {
	e.dispatchMu.Lock()
	defer e.dispatchMu.Unlock()

	e.mu.Lock()
	e.doc = d
	e.sel = Selection{}
	e.undo, e.redo = nil, nil
	listeners := e.snapshotListeners()
	e.mu.Unlock()

	notify(listeners, Change{Kind: ChangeReset, Doc: d})
}

func (e *Editor) CanUndo() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.undo) > 0
}

// InsertText types text over the selection. Only inclusive marks of the
// content left of the cursor carry over to the typed text.
func (e *Editor) InsertText(text string) error {
	d := e.Document()
	sel := e.Selection()
	var marks []doc.Mark
	if left, ok := d.InlineAt(sel.From()); ok {
		for _, m := range left.Marks {
			if spec, known := d.Schema().Mark(m.Type); known && spec.Inclusive {
				marks = append(marks, m)
			}
		}
	}
	tr := doc.NewTransaction(d)
	if err := tr.Replace(sel.From(), sel.To(), doc.Text(text, marks...)); err != nil {
		return err
	}
	return e.Dispatch(tr)
}

func (e *Editor) pushUndo(s snapshot) {
	e.undo = append(e.undo, s)
	if len(e.undo) > e.limit {
		e.undo = e.undo[len(e.undo)-e.limit:]
	}
}

func (e *Editor) snapshotListeners() []Listener {
	ids := make([]int, 0, len(e.listeners))
	for id := range e.listeners {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	out := make([]Listener, 0, len(ids))
	for _, id := range ids {
		out = append(out, e.listeners[id])
	}
	return out
}

func notify(listeners []Listener, change Change) {
	for _, fn := range listeners {
		fn(change)
	}
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
