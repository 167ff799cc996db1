package aistream

import (
	"context"
	"errors"
	"log"
	"strings"
	"sync"

	"capnote/api/internal/suggest"
)

// ErrStreaming is returned when a result is requested while a stream is still
// running.
var ErrStreaming = errors.New("stream still running")

// ErrNoOutput is returned when there is nothing to propose.
var ErrNoOutput = errors.New("no stream output")

// Snapshot is the visible state of a session.
type Snapshot struct {
	Prompt    string `json:"prompt"`
	Text      string `json:"text"`
	Streaming bool   `json:"streaming"`
	Err       string `json:"error,omitempty"`
}

// Update is delivered to the session listener on every state change. Chunk is
// set for content deltas.
type Update struct {
	Chunk    string
	Snapshot Snapshot
}

// Session runs at most one stream at a time. Output of a stream superseded by
// Submit or Close is dropped.
type Session struct {
	svc      Service
	listener func(Update)

	mu        sync.Mutex
	gen       uint64
	prompt    string
	buf       strings.Builder
	streaming bool
	err       error
	stream    Stream
}

func NewSession(svc Service, listener func(Update)) *Session {
	return &Session{svc: svc, listener: listener}
}

// Submit aborts any running stream, resets the buffer and streams prompt
// until it completes. It returns ErrAborted when the stream was superseded.
func (s *Session) Submit(ctx context.Context, req Request) error {
	s.mu.Lock()
	if s.stream != nil {
		s.stream.Abort()
	}
	s.gen++
	gen := s.gen
	s.prompt = req.Prompt
	s.buf.Reset()
	s.err = nil
	s.streaming = true
	stream := s.svc.CreateStream(req)
	s.stream = stream
	snap := s.snapshotLocked()
	s.mu.Unlock()
	s.notify(Update{Snapshot: snap})

	err := stream.Execute(ctx, Handlers{
		OnChunk: func(c Chunk) {
			s.mu.Lock()
			if gen != s.gen || !s.streaming {
				s.mu.Unlock()
				return
			}
			s.buf.WriteString(c.Content)
			snap := s.snapshotLocked()
			s.mu.Unlock()
			s.notify(Update{Chunk: c.Content, Snapshot: snap})
		},
		OnError: func(err error) {
			s.mu.Lock()
			if gen != s.gen {
				s.mu.Unlock()
				return
			}
			s.err = err
			s.streaming = false
			snap := s.snapshotLocked()
			s.mu.Unlock()
			log.Printf("aistream: stream failed: %v", err)
			s.notify(Update{Snapshot: snap})
		},
	})

	s.mu.Lock()
	if gen != s.gen {
		s.mu.Unlock()
		return ErrAborted
	}
	if err != nil && s.err == nil && !errors.Is(err, ErrAborted) {
		s.err = err
	}
	s.streaming = false
	s.stream = nil
	snap = s.snapshotLocked()
	s.mu.Unlock()
	s.notify(Update{Snapshot: snap})
	return err
}

// Close aborts the running stream and clears all state.
func (s *Session) Close() {
	s.mu.Lock()
	if s.stream != nil {
		s.stream.Abort()
		s.stream = nil
	}
	s.gen++
	s.prompt = ""
	s.buf.Reset()
	s.err = nil
	s.streaming = false
	s.mu.Unlock()
}

func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Session) snapshotLocked() Snapshot {
	snap := Snapshot{Prompt: s.prompt, Text: s.buf.String(), Streaming: s.streaming}
	if s.err != nil {
		snap.Err = s.err.Error()
	}
	return snap
}

func (s *Session) notify(u Update) {
	if s.listener != nil {
		s.listener(u)
	}
}

// ProposeInto turns the finished output into suggestions on ed. Output that
// parses as suggestion JSON is proposed item by item; any other text becomes
// the replacement of tmpl. Targets are resolved against the document at call
// time. Failed streams are never applied.
func (s *Session) ProposeInto(ed suggest.Dispatcher, tmpl suggest.Proposal, user string) ([]string, error) {
	s.mu.Lock()
	text, streaming, streamErr := s.buf.String(), s.streaming, s.err
	s.mu.Unlock()
	switch {
	case streaming:
		return nil, ErrStreaming
	case streamErr != nil:
		return nil, streamErr
	case strings.TrimSpace(text) == "":
		return nil, ErrNoOutput
	}

	proposals, err := suggest.ParseProposals([]byte(text))
	if err != nil {
		p := tmpl
		p.TextReplacement = text
		proposals = []suggest.Proposal{p}
	}
	var ids []string
	for _, p := range proposals {
		if id, ok := suggest.Propose(ed, p, user); ok {
			ids = append(ids, id)
		}
	}
	return ids, nil
}
