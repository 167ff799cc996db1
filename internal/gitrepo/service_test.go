package gitrepo

import (
	"encoding/json"
	"strings"
	"sync"
	"testing"
)

const sampleDoc = `{"type":"doc","content":[{"type":"paragraph","content":[{"type":"text","text":"Hello"}]}]}`

func TestNoteRepoLifecycle(t *testing.T) {
	svc := New(t.TempDir())

	history, err := svc.History("note-1", 10)
	if err != nil {
		t.Fatalf("History() before first commit error = %v", err)
	}
	if len(history) != 0 {
		t.Fatalf("expected empty history, got %d", len(history))
	}

	first, err := svc.Commit("note-1", Content{Title: "Note", Doc: json.RawMessage(sampleDoc)}, "Ada Lovelace", "Create note")
	if err != nil {
		t.Fatalf("Commit() error = %v", err)
	}
	if len(first.Hash) != 7 || first.Author != "Ada Lovelace" {
		t.Fatalf("unexpected commit %+v", first)
	}

	second, err := svc.Commit("note-1", Content{Title: "Renamed", Doc: json.RawMessage(sampleDoc)}, "Ada Lovelace", "Rename note")
	if err != nil {
		t.Fatalf("Commit() error = %v", err)
	}

	history, err = svc.History("note-1", 10)
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	if len(history) != 2 || history[0].Hash != second.Hash || !strings.HasPrefix(history[1].Message, "Create note") {
		t.Fatalf("unexpected history %+v", history)
	}

	old, err := svc.ContentAt("note-1", first.Hash)
	if err != nil {
		t.Fatalf("ContentAt() error = %v", err)
	}
	if old.Title != "Note" || HasChanges(old, Content{Title: "Note", Doc: json.RawMessage(sampleDoc)}) {
		t.Fatalf("unexpected content %+v", old)
	}

	if limited, _ := svc.History("note-1", 1); len(limited) != 1 {
		t.Errorf("expected limit to apply, got %d", len(limited))
	}
}

func TestCommitWithoutChangesKeepsHead(t *testing.T) {
	svc := New(t.TempDir())
	content := Content{Title: "Note", Doc: json.RawMessage(sampleDoc)}

	first, err := svc.Commit("note-1", content, "Ada", "Create note")
	if err != nil {
		t.Fatalf("Commit() error = %v", err)
	}
	again, err := svc.Commit("note-1", content, "Ada", "Save again")
	if err != nil {
		t.Fatalf("Commit() without changes error = %v", err)
	}
	if again.Hash != first.Hash {
		t.Errorf("expected head %s, got %s", first.Hash, again.Hash)
	}
	if history, _ := svc.History("note-1", 0); len(history) != 1 {
		t.Errorf("expected a single commit, got %d", len(history))
	}
}

func TestHasChangesIgnoresFormatting(t *testing.T) {
	a := Content{Title: "x", Doc: json.RawMessage(`{"type":"doc","content":[]}`)}
	b := Content{Title: "x", Doc: json.RawMessage("{\n  \"content\": [],\n  \"type\": \"doc\"\n}")}
	if HasChanges(a, b) {
		t.Errorf("formatting differences must not count as changes")
	}
	b.Title = "y"
	if !HasChanges(a, b) {
		t.Errorf("title change must count")
	}
}

func TestConcurrentCommitsSerialize(t *testing.T) {
	svc := New(t.TempDir())
	var wg sync.WaitGroup
	errs := make(chan error, 5)
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			content := Content{Title: strings.Repeat("t", i+1), Doc: json.RawMessage(sampleDoc)}
			if _, err := svc.Commit("note-1", content, "Ada", "Concurrent save"); err != nil {
				errs <- err
			}
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("concurrent Commit() error = %v", err)
	}
	if history, _ := svc.History("note-1", 0); len(history) != 5 {
		t.Errorf("expected 5 commits, got %d", len(history))
	}
}

func TestSanitizeEmail(t *testing.T) {
	tests := map[string]string{
		"Ada Lovelace": "Ada.Lovelace",
		"a_b-c":        "a.b.c",
		"???":          "user",
	}
	for in, want := range tests {
		if got := sanitizeEmail(in); got != want {
			t.Errorf("sanitizeEmail(%q) = %q, want %q", in, got, want)
		}
	}
}
