// Package export renders notes to HTML, PDF and DOCX.
package export

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"capnote/api/internal/doc"
)

// Format represents the export output format
type Format string

const (
	FormatHTML Format = "html"
	FormatPDF  Format = "pdf"
	FormatDOCX Format = "docx"
)

// Mode selects how pending suggestions appear in the export.
type Mode string

const (
	// ModeMarkup keeps suggestions visible as insert and delete spans.
	ModeMarkup   Mode = "markup"
	ModeAccepted Mode = "accepted"
	ModeRejected Mode = "rejected"
)

// Request contains parameters for an export operation
type Request struct {
	Title     string
	Author    string
	UpdatedAt time.Time
	Doc       *doc.Document
	Format    Format
	Mode      Mode
}

// Result contains the export output
type Result struct {
	Data     []byte
	Filename string
	MimeType string
}

var (
	ErrUnsupportedFormat = errors.New("export format unsupported")
	ErrUnsupportedMode   = errors.New("export mode unsupported")
	// ErrPDFDependencyMissing indicates PDF export runtime dependencies are unavailable.
	ErrPDFDependencyMissing = errors.New("export pdf dependency missing")
	// ErrDOCXDependencyMissing indicates DOCX export runtime dependencies are unavailable.
	ErrDOCXDependencyMissing = errors.New("export docx dependency missing")
)

// ParseFormat maps a query value to a Format. Empty means HTML.
func ParseFormat(value string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(value))); f {
	case "":
		return FormatHTML, nil
	case FormatHTML, FormatPDF, FormatDOCX:
		return f, nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, value)
	}
}

// ParseMode maps a query value to a Mode. Empty means markup.
func ParseMode(value string) (Mode, error) {
	switch m := Mode(strings.ToLower(strings.TrimSpace(value))); m {
	case "":
		return ModeMarkup, nil
	case ModeMarkup, ModeAccepted, ModeRejected:
		return m, nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedMode, value)
	}
}
