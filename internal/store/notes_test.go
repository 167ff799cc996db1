package store

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
)

func newSQLiteStore(t *testing.T) *SQLStore {
	t.Helper()
	ctx := context.Background()
	db, err := OpenSQLite(ctx, ":memory:")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	if err := ApplyMigrations(ctx, db, DialectSQLite, Migrations(DialectSQLite)); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return NewSQLiteStore(db)
}

const sampleContent = `{"type":"doc","content":[{"type":"paragraph","content":[{"type":"text","text":"Hello"}]}]}`

func TestCreateAndGetNote(t *testing.T) {
	s := newSQLiteStore(t)
	ctx := context.Background()

	created, err := s.CreateNote(ctx, Note{ID: "n1", Title: "First", Content: json.RawMessage(sampleContent), PlainText: "Hello", CreatedBy: "Ada"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if created.Revision != Revision([]byte(sampleContent)) || created.UpdatedBy != "Ada" {
		t.Fatalf("unexpected created note %+v", created)
	}

	got, err := s.GetNote(ctx, "n1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Title != "First" || string(got.Content) != sampleContent || got.PlainText != "Hello" {
		t.Errorf("unexpected note %+v", got)
	}
	if got.CreatedAt.IsZero() || got.UpdatedAt.IsZero() {
		t.Errorf("timestamps not stored")
	}

	if _, err := s.GetNote(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestUpdateNoteRevisionCheck(t *testing.T) {
	s := newSQLiteStore(t)
	ctx := context.Background()
	created, err := s.CreateNote(ctx, Note{ID: "n1", Title: "First", Content: json.RawMessage(sampleContent), CreatedBy: "Ada"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	next := created
	next.Content = json.RawMessage(`{"type":"doc","content":[]}`)
	next.UpdatedBy = "Grace"
	updated, err := s.UpdateNote(ctx, next, created.Revision)
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Revision == created.Revision || updated.UpdatedBy != "Grace" {
		t.Fatalf("unexpected updated note %+v", updated)
	}

	stale := created
	stale.Title = "Stale"
	if _, err := s.UpdateNote(ctx, stale, created.Revision); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
	if _, err := s.UpdateNote(ctx, Note{ID: "missing", Content: json.RawMessage(`{}`)}, ""); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := s.UpdateNote(ctx, stale, ""); err != nil {
		t.Fatalf("unconditional update: %v", err)
	}
}

func TestListNotesAndEvents(t *testing.T) {
	s := newSQLiteStore(t)
	ctx := context.Background()
	for _, id := range []string{"a", "b"} {
		if _, err := s.CreateNote(ctx, Note{ID: id, Title: id, Content: json.RawMessage(`{}`), CreatedBy: "Ada"}); err != nil {
			t.Fatalf("create %s: %v", id, err)
		}
	}
	notes, err := s.ListNotes(ctx, 10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(notes) != 2 {
		t.Fatalf("expected 2 notes, got %d", len(notes))
	}

	events := []NoteEvent{
		{NoteID: "a", Kind: EventProposed, Actor: "AI", SuggestionID: "sugg-1", Detail: json.RawMessage(`{"kind":"replace"}`)},
		{NoteID: "a", Kind: EventAccepted, Actor: "Ada", SuggestionID: "sugg-1"},
		{NoteID: "b", Kind: EventUpdated, Actor: "Ada"},
	}
	for _, event := range events {
		if err := s.RecordEvent(ctx, event); err != nil {
			t.Fatalf("record event: %v", err)
		}
	}
	got, err := s.ListEvents(ctx, "a", 10)
	if err != nil {
		t.Fatalf("list events: %v", err)
	}
	if len(got) != 2 || got[0].Kind != EventAccepted || got[1].Kind != EventProposed {
		t.Fatalf("unexpected events %+v", got)
	}
	if string(got[0].Detail) != `{}` || string(got[1].Detail) != `{"kind":"replace"}` {
		t.Errorf("unexpected details %s %s", got[0].Detail, got[1].Detail)
	}

	if err := s.DeleteNote(ctx, "a"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := s.DeleteNote(ctx, "a"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound on second delete, got %v", err)
	}
	if got, _ := s.ListEvents(ctx, "a", 10); len(got) != 0 {
		t.Errorf("events should cascade with the note, got %d", len(got))
	}
}

func TestRebind(t *testing.T) {
	query := `SELECT * FROM notes WHERE id = ? AND revision = ?`
	if got := DialectPostgres.rebind(query); got != `SELECT * FROM notes WHERE id = $1 AND revision = $2` {
		t.Errorf("unexpected postgres query %q", got)
	}
	if got := DialectSQLite.rebind(query); got != query {
		t.Errorf("sqlite query must be unchanged, got %q", got)
	}
}
