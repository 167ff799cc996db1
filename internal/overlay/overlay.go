package overlay

import (
	"log"
	"sync"

	"capnote/api/internal/editor"
	"capnote/api/internal/suggest"
)

// EventSource delivers host events. On returns a func removing the listener.
type EventSource interface {
	On(kind EventKind, fn func(Event)) (off func())
}

// Dock is the floating accept-all / reject-all bar.
type Dock struct {
	Visible bool `json:"visible"`
}

// Overlay binds the reducer to a live editor and an event source.
type Overlay struct {
	ed       *editor.Editor
	geometry Geometry
	source   EventSource

	mu      sync.Mutex
	state   State
	dock    Dock
	mounted bool
}

func New(ed *editor.Editor, geometry Geometry, source EventSource) *Overlay {
	o := &Overlay{ed: ed, geometry: geometry, source: source}
	o.dock = Dock{Visible: suggest.HasSuggestions(ed.Document())}
	return o
}

// Mount subscribes to click, selectionchange, scroll and resize events and to
// document changes. The returned func removes every subscription.
func (o *Overlay) Mount() (unmount func()) {
	o.mu.Lock()
	if o.mounted {
		o.mu.Unlock()
		return func() {}
	}
	o.mounted = true
	o.mu.Unlock()

	offs := []func(){
		o.source.On(KindClick, o.Handle),
		o.source.On(KindSelectionChange, o.Handle),
		o.source.On(KindScroll, o.Handle),
		o.source.On(KindResize, o.Handle),
		o.ed.OnChange(func(editor.Change) { o.refresh() }),
	}
	var once sync.Once
	return func() {
		once.Do(func() {
			for _, off := range offs {
				off()
			}
			o.mu.Lock()
			o.mounted = false
			o.state = Hidden
			o.mu.Unlock()
		})
	}
}

// Handle runs one event through the reducer and performs its effect.
func (o *Overlay) Handle(ev Event) {
	o.mu.Lock()
	next, effect := Reduce(o.state, ev, Env{Doc: o.ed.Document(), Geometry: o.geometry})
	shown := o.state.ID
	o.state = next
	o.mu.Unlock()

	if effect.Resolve != nil && !o.ed.Run(effect.Resolve) {
		log.Printf("overlay: resolve %s: nothing to resolve", shown)
	}
	if effect.Focus {
		o.ed.Focus()
	}
}

func (o *Overlay) Accept() { o.Handle(Action{Accept: true}) }
func (o *Overlay) Reject() { o.Handle(Action{Accept: false}) }

// AcceptAll resolves every pending suggestion from the dock.
func (o *Overlay) AcceptAll() bool {
	return o.bulk(suggest.AcceptAll)
}

func (o *Overlay) RejectAll() bool {
	return o.bulk(suggest.RejectAll)
}

func (o *Overlay) bulk(cmd suggest.Command) bool {
	ok := o.ed.Run(cmd)
	o.mu.Lock()
	o.state = Hidden
	o.mu.Unlock()
	o.ed.Focus()
	return ok
}

func (o *Overlay) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

func (o *Overlay) Dock() Dock {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.dock
}

// refresh recomputes the dock and hides the menu once its suggestion is gone.
func (o *Overlay) refresh() {
	d := o.ed.Document()
	visible := suggest.HasSuggestions(d)
	o.mu.Lock()
	defer o.mu.Unlock()
	o.dock.Visible = visible
	if o.state.Visible && len(suggest.Ranges(d, o.state.ID)) == 0 {
		o.state = Hidden
	}
}

// Bus is an in-process EventSource.
type Bus struct {
	mu        sync.Mutex
	next      int
	listeners map[EventKind]map[int]func(Event)
}

func NewBus() *Bus {
	return &Bus{listeners: make(map[EventKind]map[int]func(Event))}
}

func (b *Bus) On(kind EventKind, fn func(Event)) func() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.listeners[kind] == nil {
		b.listeners[kind] = make(map[int]func(Event))
	}
	id := b.next
	b.next++
	b.listeners[kind][id] = fn
	return func() {
		b.mu.Lock()
		delete(b.listeners[kind], id)
		b.mu.Unlock()
	}
}

// Emit delivers ev to the listeners of its kind.
func (b *Bus) Emit(ev Event) {
	b.mu.Lock()
	fns := make([]func(Event), 0, len(b.listeners[ev.eventKind()]))
	for _, fn := range b.listeners[ev.eventKind()] {
		fns = append(fns, fn)
	}
	b.mu.Unlock()
	for _, fn := range fns {
		fn(ev)
	}
}

// Listeners reports how many listeners are registered for kind.
func (b *Bus) Listeners(kind EventKind) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.listeners[kind])
}
