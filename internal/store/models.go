package store

import (
	"encoding/json"
	"time"
)

type Note struct {
	ID        string
	Title     string
	Content   json.RawMessage
	PlainText string
	Revision  string
	CreatedBy string
	UpdatedBy string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Event kinds recorded in the note audit log.
const (
	EventCreated  = "created"
	EventUpdated  = "updated"
	EventProposed = "proposed"
	EventAccepted = "accepted"
	EventRejected = "rejected"
	EventUndone   = "undone"
)

type NoteEvent struct {
	ID           int64
	NoteID       string
	Kind         string
	Actor        string
	SuggestionID string
	Detail       json.RawMessage
	CreatedAt    time.Time
}

type CommitInfo struct {
	Hash      string
	Message   string
	Author    string
	CreatedAt time.Time
}
