package util

import (
	"strings"

	"github.com/google/uuid"
)

func NewID(prefix string) string {
	id := strings.ReplaceAll(uuid.NewString(), "-", "")
	if prefix == "" {
		return id
	}
	return prefix + "_" + id
}

// NewSuggestionID returns a time-ordered unique id (UUIDv7) for a pending
// suggestion. Falls back to a random UUID if the clock source fails.
func NewSuggestionID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return "sugg-" + uuid.NewString()
	}
	return "sugg-" + id.String()
}
