package app

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"capnote/api/internal/aistream"
	"capnote/api/internal/suggest"
)

const (
	aiWriteWait       = 10 * time.Second
	aiPongWait        = 60 * time.Second
	aiPingPeriod      = (aiPongWait * 9) / 10
	aiMaxMessageBytes = 64 << 10
	aiSendBuffer      = 256
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// aiClientMessage is sent by the client. Type is "prompt" or "abort". The
// embedded proposal is the template used when the output is plain text.
type aiClientMessage struct {
	Type     string `json:"type"`
	Prompt   string `json:"prompt"`
	Apply    bool   `json:"apply"`
	WithNote bool   `json:"withNote"`
	suggest.Proposal
}

type aiFrame struct {
	Type          string   `json:"type"`
	Content       string   `json:"content,omitempty"`
	Error         string   `json:"error,omitempty"`
	Text          string   `json:"text,omitempty"`
	SuggestionIDs []string `json:"suggestionIds,omitempty"`
}

func (s *HTTPServer) handleAI(w http.ResponseWriter, r *http.Request, session Session, noteID string) {
	svc := s.service.AI()
	if svc == nil {
		writeError(w, http.StatusServiceUnavailable, "AI_UNAVAILABLE", "AI gateway not configured", nil)
		return
	}
	if _, err := s.service.NoteText(r.Context(), noteID); err != nil {
		status, code, message, details := mapError(err)
		writeError(w, status, code, message, details)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("app: ai upgrade for %s: %v", noteID, err)
		return
	}

	ctx, cancel := context.WithCancel(r.Context())
	relay := newAIRelay(conn)
	sess := aistream.NewSession(svc, func(u aistream.Update) {
		if u.Chunk != "" {
			relay.push(aiFrame{Type: "chunk", Content: u.Chunk})
		}
	})
	defer func() {
		cancel()
		sess.Close()
		relay.close()
	}()

	go relay.writePump(ctx)
	relay.readPump(func(msg aiClientMessage) {
		switch msg.Type {
		case "abort":
			sess.Close()
		case "prompt", "":
			if strings.TrimSpace(msg.Prompt) == "" {
				relay.push(aiFrame{Type: "error", Error: "prompt is required"})
				return
			}
			go s.runPrompt(ctx, relay, sess, session, noteID, msg)
		default:
			relay.push(aiFrame{Type: "error", Error: "unknown message type " + msg.Type})
		}
	})
}

// runPrompt streams one prompt. Output of a prompt superseded by a newer one
// or by abort produces no frames after its chunks.
func (s *HTTPServer) runPrompt(ctx context.Context, relay *aiRelay, sess *aistream.Session, session Session, noteID string, msg aiClientMessage) {
	req := aistream.Request{Prompt: msg.Prompt}
	if msg.WithNote {
		text, err := s.service.NoteText(ctx, noteID)
		if err == nil {
			req.Context = text
		}
	}

	err := sess.Submit(ctx, req)
	if errors.Is(err, aistream.ErrAborted) {
		return
	}
	if err != nil {
		relay.push(aiFrame{Type: "error", Error: err.Error()})
		return
	}

	done := aiFrame{Type: "done", Text: sess.Snapshot().Text}
	if msg.Apply {
		ids, err := s.service.ApplyStream(ctx, noteID, sess, msg.Proposal, session.UserName)
		if err != nil {
			relay.push(aiFrame{Type: "error", Error: err.Error()})
			return
		}
		done.SuggestionIDs = ids
	}
	relay.push(done)
}

// aiRelay serializes frames onto one websocket connection.
type aiRelay struct {
	conn *websocket.Conn
	out  chan aiFrame
	done chan struct{}
	once sync.Once
}

func newAIRelay(conn *websocket.Conn) *aiRelay {
	conn.SetReadLimit(aiMaxMessageBytes)
	return &aiRelay{
		conn: conn,
		out:  make(chan aiFrame, aiSendBuffer),
		done: make(chan struct{}),
	}
}

// push queues f, dropping it once the connection is closed.
func (r *aiRelay) push(f aiFrame) {
	select {
	case r.out <- f:
	case <-r.done:
	}
}

func (r *aiRelay) readPump(onMessage func(aiClientMessage)) {
	_ = r.conn.SetReadDeadline(time.Now().Add(aiPongWait))
	r.conn.SetPongHandler(func(string) error {
		return r.conn.SetReadDeadline(time.Now().Add(aiPongWait))
	})
	for {
		var msg aiClientMessage
		if err := r.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("app: ai read: %v", err)
			}
			return
		}
		onMessage(msg)
	}
}

func (r *aiRelay) writePump(ctx context.Context) {
	ticker := time.NewTicker(aiPingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-r.done:
			return
		case frame := <-r.out:
			_ = r.conn.SetWriteDeadline(time.Now().Add(aiWriteWait))
			if err := r.conn.WriteJSON(frame); err != nil {
				log.Printf("app: ai write: %v", err)
				r.close()
				return
			}
		case <-ticker.C:
			_ = r.conn.SetWriteDeadline(time.Now().Add(aiWriteWait))
			if err := r.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				r.close()
				return
			}
		}
	}
}

func (r *aiRelay) close() {
	r.once.Do(func() {
		close(r.done)
		_ = r.conn.Close()
	})
}
