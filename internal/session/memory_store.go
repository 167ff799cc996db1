package session

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is the in-process Store used when Redis is not configured.
// Nothing survives a restart.
type MemoryStore struct {
	mu       sync.Mutex
	draftTTL time.Duration
	now      func() time.Time
	drafts   map[string]memoryDraft
	revoked  map[string]time.Time
}

type memoryDraft struct {
	draft     Draft
	expiresAt time.Time
}

func NewMemoryStore(draftTTL time.Duration) *MemoryStore {
	if draftTTL <= 0 {
		draftTTL = 24 * time.Hour
	}
	return &MemoryStore{
		draftTTL: draftTTL,
		now:      time.Now,
		drafts:   make(map[string]memoryDraft),
		revoked:  make(map[string]time.Time),
	}
}

func (s *MemoryStore) SaveDraft(_ context.Context, draft Draft) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	if draft.SavedAt.IsZero() {
		draft.SavedAt = now.UTC()
	}
	draft.Content = append([]byte(nil), draft.Content...)
	s.drafts[draft.NoteID] = memoryDraft{draft: draft, expiresAt: now.Add(s.draftTTL)}
	return nil
}

func (s *MemoryStore) LoadDraft(_ context.Context, noteID string) (Draft, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.drafts[noteID]
	if !ok {
		return Draft{}, ErrNoDraft
	}
	if !s.now().Before(entry.expiresAt) {
		delete(s.drafts, noteID)
		return Draft{}, ErrNoDraft
	}
	return entry.draft, nil
}

func (s *MemoryStore) DeleteDraft(_ context.Context, noteID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.drafts, noteID)
	return nil
}

func (s *MemoryStore) RevokeToken(_ context.Context, jti string, expiresAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if expiresAt.After(s.now()) {
		s.revoked[jti] = expiresAt
	}
	return nil
}

func (s *MemoryStore) IsRevoked(_ context.Context, jti string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	expiresAt, ok := s.revoked[jti]
	if !ok {
		return false, nil
	}
	if !s.now().Before(expiresAt) {
		delete(s.revoked, jti)
		return false, nil
	}
	return true, nil
}

func (s *MemoryStore) Ping(context.Context) error { return nil }

func (s *MemoryStore) Close() error { return nil }
