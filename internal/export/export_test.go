package export

import (
	"context"
	"errors"
	"html/template"
	"strings"
	"testing"
	"time"

	"capnote/api/internal/doc"
	"capnote/api/internal/suggest"
)

func sampleDoc() *doc.Document {
	schema := suggest.DefaultSchema()
	ins := suggest.Attrs{ID: "sugg-ins", User: "AI", Reason: "warmer", TS: 1, Source: suggest.SourceAI}.Mark(suggest.MarkInsert)
	del := suggest.Attrs{ID: "sugg-del", User: "AI", Reason: "redundant", TS: 2, Source: suggest.SourceAI}.Mark(suggest.MarkDelete)
	return doc.New(schema, doc.Block("doc", nil,
		doc.Paragraph(doc.Text("Hello "), doc.Text("brave ", ins), doc.Text("old ", del), doc.Text("world")),
	))
}

func TestExportHTMLModes(t *testing.T) {
	svc := NewService(Options{})
	tests := []struct {
		name    string
		mode    Mode
		want    []string
		notWant []string
	}{
		{
			name: "markup keeps suggestions",
			mode: ModeMarkup,
			want: []string{`data-suggestion="insert"`, `data-suggestion="delete"`, "Pending suggestions", "redundant"},
		},
		{
			name:    "accepted applies everything",
			mode:    ModeAccepted,
			want:    []string{"<p>Hello brave world</p>"},
			notWant: []string{"data-suggestion", "Pending suggestions"},
		},
		{
			name:    "rejected drops everything",
			mode:    ModeRejected,
			want:    []string{"<p>Hello old world</p>"},
			notWant: []string{"data-suggestion", "brave"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := svc.Export(context.Background(), Request{
				Title:     "Trip Notes",
				Author:    "sam",
				UpdatedAt: time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC),
				Doc:       sampleDoc(),
				Format:    FormatHTML,
				Mode:      tt.mode,
			})
			if err != nil {
				t.Fatalf("export: %v", err)
			}
			if result.Filename != "Trip-Notes.html" || !strings.HasPrefix(result.MimeType, "text/html") {
				t.Errorf("unexpected result meta %q %q", result.Filename, result.MimeType)
			}
			out := string(result.Data)
			for _, s := range tt.want {
				if !strings.Contains(out, s) {
					t.Errorf("expected output to contain %q", s)
				}
			}
			for _, s := range tt.notWant {
				if strings.Contains(out, s) {
					t.Errorf("expected output not to contain %q", s)
				}
			}
		})
	}
}

func TestExportLeavesSourceDocument(t *testing.T) {
	d := sampleDoc()
	before := d.PlainText()
	if _, err := NewService(Options{}).Export(context.Background(), Request{Title: "x", Doc: d, Mode: ModeAccepted}); err != nil {
		t.Fatalf("export: %v", err)
	}
	if d.PlainText() != before || !suggest.HasSuggestions(d) {
		t.Fatalf("source document changed")
	}
}

func TestExportMissingDependencies(t *testing.T) {
	svc := NewService(Options{
		ChromePath: "/nonexistent/chrome",
		PandocPath: "/nonexistent/pandoc",
	})
	_, err := svc.Export(context.Background(), Request{Title: "x", Doc: sampleDoc(), Format: FormatPDF})
	if !errors.Is(err, ErrPDFDependencyMissing) {
		t.Errorf("expected pdf dependency error, got %v", err)
	}
	_, err = svc.Export(context.Background(), Request{Title: "x", Doc: sampleDoc(), Format: FormatDOCX})
	if !errors.Is(err, ErrDOCXDependencyMissing) {
		t.Errorf("expected docx dependency error, got %v", err)
	}
}

func TestParseFormatAndMode(t *testing.T) {
	if f, err := ParseFormat(""); err != nil || f != FormatHTML {
		t.Errorf("empty format: %v %v", f, err)
	}
	if f, err := ParseFormat(" PDF "); err != nil || f != FormatPDF {
		t.Errorf("pdf format: %v %v", f, err)
	}
	if _, err := ParseFormat("odt"); !errors.Is(err, ErrUnsupportedFormat) {
		t.Errorf("expected unsupported format, got %v", err)
	}
	if m, err := ParseMode(""); err != nil || m != ModeMarkup {
		t.Errorf("empty mode: %v %v", m, err)
	}
	if m, err := ParseMode("accepted"); err != nil || m != ModeAccepted {
		t.Errorf("accepted mode: %v %v", m, err)
	}
	if _, err := ParseMode("draft"); !errors.Is(err, ErrUnsupportedMode) {
		t.Errorf("expected unsupported mode, got %v", err)
	}
}

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"Simple Title", "Simple-Title"},
		{"Title with Special!@#$%^&*() Characters", "Title-with-Special-Characters"},
		{"Very Long Title That Exceeds Fifty Characters Limit For Filenames", "Very-Long-Title-That-Exceeds-Fifty-Characters-Limi"},
		{"", "note"},
		{"!!!", "note"},
		{"under_score-dash", "under_score-dash"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			result := sanitizeFilename(tt.input)
			if result != tt.expected {
				t.Errorf("sanitizeFilename(%q) = %q, want %q", tt.input, result, tt.expected)
			}
		})
	}
}

func TestPercentEncodeForDataURL(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"hello", "hello"},
		{"hello world", "hello%20world"},
		{"<p>", "%3Cp%3E"},
		{"a+b", "a%2Bb"},
		{"100%", "100%25"},
		{"safe-_.~", "safe-_.~"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			result := percentEncodeForDataURL(tt.input)
			if result != tt.expected {
				t.Errorf("percentEncodeForDataURL(%q) = %q, want %q", tt.input, result, tt.expected)
			}
		})
	}
}

func TestRenderNoteHTML(t *testing.T) {
	data := TemplateData{
		Title:       "Test <Note>",
		Author:      "Test Author",
		UpdatedAt:   time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC),
		Mode:        string(ModeAccepted),
		ContentHTML: template.HTML("<p>Test content</p>"),
	}

	html, err := RenderNoteHTML(data)
	if err != nil {
		t.Fatalf("RenderNoteHTML failed: %v", err)
	}

	checks := []string{
		"<!DOCTYPE html>",
		"<title>Test &lt;Note&gt;</title>",
		"Test Author",
		"Jan 15, 2024",
		"all suggestions accepted",
		"<p>Test content</p>",
	}
	for _, check := range checks {
		if !strings.Contains(html, check) {
			t.Errorf("HTML should contain %q", check)
		}
	}
}
