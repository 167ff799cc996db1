package app

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"capnote/api/internal/aistream"
)

type scriptedAI struct {
	chunks []string
	err    error
}

func (s scriptedAI) CreateStream(aistream.Request) aistream.Stream {
	return &scriptedStream{chunks: s.chunks, err: s.err}
}

type scriptedStream struct {
	chunks []string
	err    error
}

func (s *scriptedStream) Execute(ctx context.Context, h aistream.Handlers) error {
	for _, c := range s.chunks {
		if err := ctx.Err(); err != nil {
			return err
		}
		if h.OnChunk != nil {
			h.OnChunk(aistream.Chunk{Content: c})
		}
	}
	if s.err != nil {
		if h.OnError != nil {
			h.OnError(s.err)
		}
		return s.err
	}
	return nil
}

func (s *scriptedStream) Abort() {}

func dialAI(t *testing.T, env *testEnv, noteID string) *websocket.Conn {
	t.Helper()
	srv := httptest.NewServer(env.server.Handler())
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/notes/" + noteID + "/ai?access_token=" + env.token
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		status := 0
		if resp != nil {
			status = resp.StatusCode
		}
		t.Fatalf("dial: %v (status %d)", err, status)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readFrames(t *testing.T, conn *websocket.Conn, until string) []aiFrame {
	t.Helper()
	var frames []aiFrame
	for {
		_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
		var frame aiFrame
		if err := conn.ReadJSON(&frame); err != nil {
			t.Fatalf("read frame: %v (got %v)", err, frames)
		}
		frames = append(frames, frame)
		if frame.Type == until || frame.Type == "error" {
			return frames
		}
	}
}

func TestAIStreamAppliesSuggestion(t *testing.T) {
	env := newTestEnv(t)
	env.svc.ai = scriptedAI{chunks: []string{"calm ", "sea"}}
	id := env.createNote(t, "Poem", "<p>A stormy ocean</p>")

	conn := dialAI(t, env, id)
	if err := conn.WriteJSON(map[string]any{
		"type":          "prompt",
		"prompt":        "make it peaceful",
		"apply":         true,
		"textToReplace": "stormy ocean",
		"reason":        "mood",
	}); err != nil {
		t.Fatalf("write prompt: %v", err)
	}

	frames := readFrames(t, conn, "done")
	if len(frames) != 3 || frames[0].Content != "calm " || frames[1].Content != "sea" {
		t.Fatalf("unexpected frames %+v", frames)
	}
	done := frames[2]
	if done.Type != "done" || done.Text != "calm sea" || len(done.SuggestionIDs) != 1 {
		t.Fatalf("unexpected done frame %+v", done)
	}

	status, payload := env.do(t, http.MethodGet, "/api/notes/"+id+"/suggestions", nil)
	if status != http.StatusOK || payload["previewAccepted"] != "A calm sea" {
		t.Fatalf("unexpected suggestions %d %v", status, payload)
	}
}

func TestAIStreamReportsErrors(t *testing.T) {
	env := newTestEnv(t)
	env.svc.ai = scriptedAI{chunks: []string{"partial"}, err: &aistream.StreamError{Partial: "partial", Err: context.DeadlineExceeded}}
	id := env.createNote(t, "Poem", "<p>A stormy ocean</p>")

	conn := dialAI(t, env, id)
	if err := conn.WriteJSON(map[string]any{"prompt": "rewrite", "apply": true, "textToReplace": "stormy"}); err != nil {
		t.Fatalf("write prompt: %v", err)
	}
	frames := readFrames(t, conn, "done")
	last := frames[len(frames)-1]
	if last.Type != "error" || last.Error == "" {
		t.Fatalf("expected error frame, got %+v", frames)
	}

	status, payload := env.do(t, http.MethodGet, "/api/notes/"+id+"/suggestions", nil)
	if status != http.StatusOK || payload["hasSuggestions"] != false {
		t.Fatalf("failed stream must not apply, got %v", payload)
	}

	if err := conn.WriteJSON(map[string]any{"prompt": "  "}); err != nil {
		t.Fatalf("write prompt: %v", err)
	}
	frames = readFrames(t, conn, "done")
	if frames[0].Type != "error" || frames[0].Error != "prompt is required" {
		t.Fatalf("expected validation error frame, got %+v", frames)
	}
}

func TestAIUnavailable(t *testing.T) {
	env := newTestEnv(t)
	id := env.createNote(t, "Poem", "<p>x</p>")
	status, payload := env.do(t, http.MethodGet, "/api/notes/"+id+"/ai", nil)
	if status != http.StatusServiceUnavailable || payload["code"] != "AI_UNAVAILABLE" {
		t.Fatalf("expected 503, got %d %v", status, payload)
	}
}
