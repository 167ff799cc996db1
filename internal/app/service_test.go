package app

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"capnote/api/internal/config"
	"capnote/api/internal/export"
	"capnote/api/internal/gitrepo"
	"capnote/api/internal/search"
	"capnote/api/internal/session"
	"capnote/api/internal/store"
)

type testEnv struct {
	store  *store.SQLStore
	drafts *session.MemoryStore
	git    *gitrepo.Service
	svc    *Service
	server *HTTPServer
	token  string
}

func testConfig() config.Config {
	return config.Config{JWTSecret: "test-secret", AccessTTL: time.Hour}
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	ctx := context.Background()
	db, err := store.OpenSQLite(ctx, ":memory:")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	if err := store.ApplyMigrations(ctx, db, store.DialectSQLite, store.Migrations(store.DialectSQLite)); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	env := &testEnv{
		store:  store.NewSQLiteStore(db),
		drafts: session.NewMemoryStore(time.Hour),
		git:    gitrepo.New(t.TempDir()),
	}
	env.svc = env.newService(testConfig())
	env.server = NewHTTPServer(env.svc, "*")

	sess, err := env.svc.Login(ctx, "Avery", "")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	env.token = sess.Token
	return env
}

// newService builds a fresh Service over the same stores, as after a restart.
func (e *testEnv) newService(cfg config.Config) *Service {
	return New(cfg, Deps{
		Store:   e.store,
		Drafts:  e.drafts,
		History: e.git,
		Search:  search.NewService(nil, search.NewLike(e.store.DB())),
		Export:  export.NewService(export.Options{ChromePath: "/nonexistent/chrome", PandocPath: "/nonexistent/pandoc"}),
	})
}

func (e *testEnv) do(t *testing.T, method, path string, body any) (int, map[string]any) {
	t.Helper()
	status, raw := e.doRaw(t, method, path, body)
	var payload map[string]any
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &payload); err != nil {
			t.Fatalf("parse response %s: %v body=%s", path, err, raw)
		}
	}
	return status, payload
}

func (e *testEnv) doRaw(t *testing.T, method, path string, body any) (int, []byte) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if e.token != "" {
		req.Header.Set("Authorization", "Bearer "+e.token)
	}
	rr := httptest.NewRecorder()
	e.server.Handler().ServeHTTP(rr, req)
	return rr.Code, rr.Body.Bytes()
}

func (e *testEnv) createNote(t *testing.T, title, markup string) string {
	t.Helper()
	status, payload := e.do(t, http.MethodPost, "/api/notes", map[string]any{"title": title, "markup": markup})
	if status != http.StatusCreated {
		t.Fatalf("create note: status %d payload %v", status, payload)
	}
	return noteField(t, payload, "id").(string)
}

func noteField(t *testing.T, payload map[string]any, key string) any {
	t.Helper()
	note, ok := payload["note"].(map[string]any)
	if !ok {
		t.Fatalf("response has no note: %v", payload)
	}
	return note[key]
}

func strPtr(s string) *string { return &s }

func TestServiceDraftSurvivesRestart(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	id := env.createNote(t, "Plans", "<p>The quick brown fox</p>")

	if _, err := env.svc.Propose(ctx, id, proposals("quick", "slow"), "Avery"); err != nil {
		t.Fatalf("propose: %v", err)
	}

	restarted := env.newService(testConfig())
	payload, err := restarted.GetNote(ctx, id)
	if err != nil {
		t.Fatalf("get after restart: %v", err)
	}
	if dirty, _ := noteField(t, payload, "dirty").(bool); !dirty {
		t.Fatalf("expected draft to be restored")
	}
	if got := noteField(t, payload, "plainText"); got != "The quickslow brown fox" {
		t.Fatalf("unexpected restored text %q", got)
	}
}

func TestServiceDropsStaleDraft(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	id := env.createNote(t, "Plans", "<p>Alpha</p>")

	if err := env.drafts.SaveDraft(ctx, session.Draft{
		NoteID:       id,
		BaseRevision: "not-the-current-revision",
		Content:      json.RawMessage(`{"type":"doc","content":[{"type":"paragraph","content":[{"type":"text","text":"Stale"}]}]}`),
	}); err != nil {
		t.Fatalf("save draft: %v", err)
	}

	restarted := env.newService(testConfig())
	payload, err := restarted.GetNote(ctx, id)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got := noteField(t, payload, "plainText"); got != "Alpha" {
		t.Fatalf("expected stored content, got %q", got)
	}
	if _, err := env.drafts.LoadDraft(ctx, id); !errors.Is(err, session.ErrNoDraft) {
		t.Fatalf("expected stale draft to be deleted, got %v", err)
	}
}

func TestServiceSaveCommitsAndClearsDraft(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	id := env.createNote(t, "Plans", "<p>Alpha beta</p>")

	if _, err := env.svc.Propose(ctx, id, proposals("beta", ""), "Avery"); err != nil {
		t.Fatalf("propose: %v", err)
	}
	if _, err := env.svc.ResolveAll(ctx, id, true, "Avery"); err != nil {
		t.Fatalf("accept all: %v", err)
	}
	payload, err := env.svc.Save(ctx, id, "", "Avery")
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if dirty, _ := noteField(t, payload, "dirty").(bool); dirty {
		t.Fatalf("expected clean note after save")
	}
	if _, err := env.drafts.LoadDraft(ctx, id); !errors.Is(err, session.ErrNoDraft) {
		t.Fatalf("expected draft to be cleared, got %v", err)
	}

	stored, err := env.store.GetNote(ctx, id)
	if err != nil {
		t.Fatalf("get stored: %v", err)
	}
	if stored.PlainText != "Alpha " || stored.Revision != noteField(t, payload, "revision") {
		t.Fatalf("unexpected stored note %+v", stored)
	}

	commits, err := env.git.History(id, 10)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(commits) != 2 {
		t.Fatalf("expected create and save commits, got %d", len(commits))
	}
}

func TestServiceUpdateNoteRejectsStaleRevision(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	id := env.createNote(t, "Plans", "<p>Alpha</p>")

	_, err := env.svc.UpdateNote(ctx, id, NoteInput{Markup: strPtr("<p>Beta</p>"), Revision: "stale"}, "Avery")
	var domainErr *DomainError
	if !errors.As(err, &domainErr) || domainErr.Status != http.StatusConflict {
		t.Fatalf("expected conflict, got %v", err)
	}
}

func TestServiceMissingNote(t *testing.T) {
	env := newTestEnv(t)
	if _, err := env.svc.GetNote(context.Background(), "note_missing"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestServiceConcurrentOpenSharesLiveNote(t *testing.T) {
	env := newTestEnv(t)
	id := env.createNote(t, "Plans", "<p>Alpha</p>")
	restarted := env.newService(testConfig())

	const workers = 8
	lives := make(chan *liveNote, workers)
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		go func() {
			live, err := restarted.open(context.Background(), id)
			if err != nil {
				errs <- err
				return
			}
			lives <- live
		}()
	}
	var first *liveNote
	for i := 0; i < workers; i++ {
		select {
		case err := <-errs:
			t.Fatalf("open: %v", err)
		case live := <-lives:
			if first == nil {
				first = live
			} else if live != first {
				t.Fatalf("concurrent opens returned different live notes")
			}
		}
	}
	if len(restarted.notes) != 1 {
		t.Fatalf("expected one live note, got %d", len(restarted.notes))
	}
}

func TestServiceDropsUnreadableDraft(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	id := env.createNote(t, "Plans", "<p>Alpha</p>")
	stored, err := env.store.GetNote(ctx, id)
	if err != nil {
		t.Fatalf("get stored: %v", err)
	}
	if err := env.drafts.SaveDraft(ctx, session.Draft{
		NoteID:       id,
		BaseRevision: stored.Revision,
		Content:      json.RawMessage(`{"type":"doc","content":[null]}`),
	}); err != nil {
		t.Fatalf("save draft: %v", err)
	}

	restarted := env.newService(testConfig())
	payload, err := restarted.GetNote(ctx, id)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got := noteField(t, payload, "plainText"); got != "Alpha" {
		t.Fatalf("expected stored content, got %q", got)
	}
	if _, err := env.drafts.LoadDraft(ctx, id); !errors.Is(err, session.ErrNoDraft) {
		t.Fatalf("expected unreadable draft to be deleted, got %v", err)
	}
}
