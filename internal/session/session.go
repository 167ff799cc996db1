// Package session caches live note drafts and revoked access tokens.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

// ErrNoDraft is returned when a note has no cached draft.
var ErrNoDraft = errors.New("draft not found or expired")

// Draft is the unsaved working copy of a note. BaseRevision is the stored
// revision the draft was started from.
type Draft struct {
	NoteID       string          `json:"note_id"`
	BaseRevision string          `json:"base_revision"`
	Content      json.RawMessage `json:"content"`
	UpdatedBy    string          `json:"updated_by"`
	SavedAt      time.Time       `json:"saved_at"`
}

type Store interface {
	SaveDraft(ctx context.Context, draft Draft) error
	LoadDraft(ctx context.Context, noteID string) (Draft, error)
	DeleteDraft(ctx context.Context, noteID string) error
	RevokeToken(ctx context.Context, jti string, expiresAt time.Time) error
	IsRevoked(ctx context.Context, jti string) (bool, error)
	Ping(ctx context.Context) error
	Close() error
}
