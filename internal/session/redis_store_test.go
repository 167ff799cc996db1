package session

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
)

func setupTestRedis(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	s := miniredis.RunT(t)
	store, err := NewRedisStore("redis://"+s.Addr(), time.Hour)
	if err != nil {
		t.Fatalf("failed to create redis store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store, s
}

func TestNewRedisStore(t *testing.T) {
	store, _ := setupTestRedis(t)
	if err := store.Ping(context.Background()); err != nil {
		t.Errorf("Ping failed: %v", err)
	}
}

func TestNewRedisStoreBadURL(t *testing.T) {
	if _, err := NewRedisStore("not a url", time.Hour); err == nil {
		t.Fatalf("expected parse error")
	}
}

func TestSaveAndLoadDraft(t *testing.T) {
	store, s := setupTestRedis(t)
	ctx := context.Background()

	draft := Draft{NoteID: "note-1", BaseRevision: "rev-1", Content: json.RawMessage(`{"type":"doc"}`), UpdatedBy: "Ada"}
	if err := store.SaveDraft(ctx, draft); err != nil {
		t.Fatalf("SaveDraft failed: %v", err)
	}
	if ttl := s.TTL("draft:note-1"); ttl != time.Hour {
		t.Errorf("expected 1h TTL, got %v", ttl)
	}

	got, err := store.LoadDraft(ctx, "note-1")
	if err != nil {
		t.Fatalf("LoadDraft failed: %v", err)
	}
	if got.BaseRevision != "rev-1" || string(got.Content) != `{"type":"doc"}` || got.SavedAt.IsZero() {
		t.Errorf("unexpected draft %+v", got)
	}
}

func TestDraftExpires(t *testing.T) {
	store, s := setupTestRedis(t)
	ctx := context.Background()

	if err := store.SaveDraft(ctx, Draft{NoteID: "note-1", Content: json.RawMessage(`{}`)}); err != nil {
		t.Fatalf("SaveDraft failed: %v", err)
	}
	s.FastForward(2 * time.Hour)

	if _, err := store.LoadDraft(ctx, "note-1"); !errors.Is(err, ErrNoDraft) {
		t.Errorf("expected ErrNoDraft after expiry, got %v", err)
	}
}

func TestDeleteDraft(t *testing.T) {
	store, _ := setupTestRedis(t)
	ctx := context.Background()

	if err := store.SaveDraft(ctx, Draft{NoteID: "a", Content: json.RawMessage(`{}`)}); err != nil {
		t.Fatalf("SaveDraft a failed: %v", err)
	}
	if err := store.SaveDraft(ctx, Draft{NoteID: "b", Content: json.RawMessage(`{}`)}); err != nil {
		t.Fatalf("SaveDraft b failed: %v", err)
	}
	if err := store.DeleteDraft(ctx, "a"); err != nil {
		t.Fatalf("DeleteDraft failed: %v", err)
	}
	if err := store.DeleteDraft(ctx, "missing"); err != nil {
		t.Errorf("deleting a missing draft should not error: %v", err)
	}
	if _, err := store.LoadDraft(ctx, "a"); !errors.Is(err, ErrNoDraft) {
		t.Errorf("expected draft a gone, got %v", err)
	}
	if _, err := store.LoadDraft(ctx, "b"); err != nil {
		t.Errorf("draft b should survive: %v", err)
	}
}

func TestRevokeToken(t *testing.T) {
	store, s := setupTestRedis(t)
	ctx := context.Background()

	if err := store.RevokeToken(ctx, "jti-1", time.Now().Add(time.Minute)); err != nil {
		t.Fatalf("RevokeToken failed: %v", err)
	}
	if err := store.RevokeToken(ctx, "jti-old", time.Now().Add(-time.Minute)); err != nil {
		t.Fatalf("RevokeToken for expired token failed: %v", err)
	}

	tests := []struct {
		jti  string
		want bool
	}{
		{"jti-1", true},
		{"jti-old", false},
		{"jti-unknown", false},
	}
	for _, tt := range tests {
		got, err := store.IsRevoked(ctx, tt.jti)
		if err != nil {
			t.Fatalf("IsRevoked(%s) failed: %v", tt.jti, err)
		}
		if got != tt.want {
			t.Errorf("IsRevoked(%s) = %v, want %v", tt.jti, got, tt.want)
		}
	}

	s.FastForward(2 * time.Minute)
	if got, _ := store.IsRevoked(ctx, "jti-1"); got {
		t.Errorf("revocation should lapse with the token")
	}
}

func TestMemoryStoreExpiry(t *testing.T) {
	store := NewMemoryStore(time.Minute)
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }
	ctx := context.Background()

	if err := store.SaveDraft(ctx, Draft{NoteID: "n", Content: json.RawMessage(`{}`)}); err != nil {
		t.Fatalf("SaveDraft failed: %v", err)
	}
	if err := store.RevokeToken(ctx, "jti", now.Add(30*time.Second)); err != nil {
		t.Fatalf("RevokeToken failed: %v", err)
	}
	if _, err := store.LoadDraft(ctx, "n"); err != nil {
		t.Fatalf("LoadDraft failed: %v", err)
	}
	if revoked, _ := store.IsRevoked(ctx, "jti"); !revoked {
		t.Errorf("expected token revoked")
	}

	now = now.Add(2 * time.Minute)
	if _, err := store.LoadDraft(ctx, "n"); !errors.Is(err, ErrNoDraft) {
		t.Errorf("expected draft expired, got %v", err)
	}
	if revoked, _ := store.IsRevoked(ctx, "jti"); revoked {
		t.Errorf("revocation should lapse")
	}
}
