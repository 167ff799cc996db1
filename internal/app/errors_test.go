package app

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"capnote/api/internal/auth"
	"capnote/api/internal/export"
	"capnote/api/internal/store"
)

func TestMapError(t *testing.T) {
	gitErr := errors.New("object not found")
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"domain error", conflictError("NOTHING_TO_UNDO", "Nothing to undo", nil), http.StatusConflict, "NOTHING_TO_UNDO"},
		{"wrapped domain error", fmt.Errorf("resolve: %w", notFoundError("SUGGESTION_NOT_FOUND", "Suggestion not found")), http.StatusNotFound, "SUGGESTION_NOT_FOUND"},
		{"domain error wins over cause", &DomainError{Status: http.StatusNotFound, Code: "VERSION_NOT_FOUND", Cause: store.ErrConflict}, http.StatusNotFound, "VERSION_NOT_FOUND"},
		{"missing note", fmt.Errorf("get note: %w", store.ErrNotFound), http.StatusNotFound, "NOT_FOUND"},
		{"stale revision", store.ErrConflict, http.StatusConflict, "REVISION_CONFLICT"},
		{"expired token", auth.ErrExpiredToken, http.StatusUnauthorized, "UNAUTHORIZED"},
		{"no browser", fmt.Errorf("pdf: %w", export.ErrPDFDependencyMissing), http.StatusServiceUnavailable, "EXPORT_UNAVAILABLE"},
		{"bad format", export.ErrUnsupportedFormat, http.StatusUnprocessableEntity, "VALIDATION_ERROR"},
		{"anything else", gitErr, http.StatusInternalServerError, "SERVER_ERROR"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, code, _, _ := mapError(tt.err)
			if status != tt.status || code != tt.code {
				t.Fatalf("mapError(%v) = %d %s, want %d %s", tt.err, status, code, tt.status, tt.code)
			}
		})
	}
}

func TestDomainErrorUnwrapsCause(t *testing.T) {
	err := validationError("markup could not be parsed", store.ErrNotFound)
	if !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected cause to be reachable")
	}
	if got := err.Error(); got != "VALIDATION_ERROR: markup could not be parsed: note not found" {
		t.Fatalf("unexpected message %q", got)
	}
}
