// Package overlay keeps the hover menu and bulk-action dock for pending
// suggestions in sync with the document. All transitions go through Reduce.
package overlay

import (
	"capnote/api/internal/doc"
	"capnote/api/internal/suggest"
)

type Rect struct {
	Top    float64 `json:"top"`
	Left   float64 `json:"left"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

func (r Rect) Bottom() float64  { return r.Top + r.Height }
func (r Rect) CenterX() float64 { return r.Left + r.Width/2 }

// State is the hover menu state. The zero value is Hidden.
type State struct {
	Visible bool          `json:"visible"`
	ID      string        `json:"id,omitempty"`
	Kind    suggest.Kind  `json:"kind,omitempty"`
	Reason  string        `json:"reason,omitempty"`
	Anchor  suggest.Range `json:"anchor"`
	Rect    Rect          `json:"rect"`
}

// Hidden is the closed menu.
var Hidden = State{}

// Event is one of Click, SelectionChange, Scroll, Resize or Action.
type Event interface {
	eventKind() EventKind
}

type EventKind string

const (
	KindClick           EventKind = "click"
	KindSelectionChange EventKind = "selectionchange"
	KindScroll          EventKind = "scroll"
	KindResize          EventKind = "resize"
	KindAction          EventKind = "action"
)

// Click at a document position. InMenu is set when the click landed on the
// hover menu itself.
type Click struct {
	Pos    int
	InMenu bool
}

// SelectionChange carries the new selection anchor.
type SelectionChange struct {
	Anchor int
}

type Scroll struct{}

type Resize struct{}

// Action is the accept or reject button of the menu.
type Action struct {
	Accept bool
}

func (Click) eventKind() EventKind           { return KindClick }
func (SelectionChange) eventKind() EventKind { return KindSelectionChange }
func (Scroll) eventKind() EventKind          { return KindScroll }
func (Resize) eventKind() EventKind          { return KindResize }
func (Action) eventKind() EventKind          { return KindAction }

// Geometry maps document ranges to screen rectangles. ok is false when the
// range is no longer rendered.
type Geometry interface {
	RectFor(r suggest.Range) (Rect, bool)
}

// Env is what the reducer reads besides the previous state.
type Env struct {
	Doc      *doc.Document
	Geometry Geometry
}

// Effect is work the reducer asks its caller to perform.
type Effect struct {
	Resolve suggest.Command
	Focus   bool
}

// Reduce computes the next state for ev. It never mutates the document;
// resolution is returned as an Effect.
func Reduce(s State, ev Event, env Env) (State, Effect) {
	switch e := ev.(type) {
	case Click:
		if e.InMenu && s.Visible {
			return s, Effect{}
		}
		return show(env, e.Pos)
	case SelectionChange:
		if !s.Visible {
			return s, Effect{}
		}
		return follow(s, env, e.Anchor)
	case Scroll, Resize:
		if !s.Visible {
			return s, Effect{}
		}
		return reanchor(s, env)
	case Action:
		if !s.Visible {
			return s, Effect{}
		}
		cmd := suggest.RejectByID(s.ID)
		if e.Accept {
			cmd = suggest.AcceptByID(s.ID)
		}
		return Hidden, Effect{Resolve: cmd, Focus: true}
	}
	return s, Effect{}
}

func show(env Env, pos int) (State, Effect) {
	span, ok := suggest.SpanAt(env.Doc, pos)
	if !ok {
		return Hidden, Effect{}
	}
	kind, ok := suggest.KindOf(env.Doc, span.ID)
	if !ok {
		return Hidden, Effect{}
	}
	rect, ok := env.Geometry.RectFor(span.Range)
	if !ok {
		return Hidden, Effect{}
	}
	return State{
		Visible: true,
		ID:      span.ID,
		Kind:    kind,
		Reason:  span.Reason,
		Anchor:  span.Range,
		Rect:    rect,
	}, Effect{}
}

// follow keeps the menu open while the caret stays inside a run of the shown
// suggestion, re-anchoring to whichever run now holds it.
func follow(s State, env Env, anchor int) (State, Effect) {
	for _, r := range suggest.Ranges(env.Doc, s.ID) {
		if anchor < r.From || anchor > r.To {
			continue
		}
		rect, ok := env.Geometry.RectFor(r)
		if !ok {
			return Hidden, Effect{}
		}
		s.Anchor, s.Rect = r, rect
		return s, Effect{}
	}
	return Hidden, Effect{}
}

// reanchor recomputes the rectangle of the shown run. The run is looked up
// again because edits may have moved it.
func reanchor(s State, env Env) (State, Effect) {
	ranges := suggest.Ranges(env.Doc, s.ID)
	if len(ranges) == 0 {
		return Hidden, Effect{}
	}
	r := ranges[0]
	for _, candidate := range ranges {
		if candidate.From <= s.Anchor.To && candidate.To >= s.Anchor.From {
			r = candidate
			break
		}
	}
	rect, ok := env.Geometry.RectFor(r)
	if !ok {
		return Hidden, Effect{}
	}
	s.Anchor, s.Rect = r, rect
	return s, Effect{}
}
