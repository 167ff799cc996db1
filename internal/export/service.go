package export

import (
	"context"
	"fmt"
	"html/template"
	"time"

	"capnote/api/internal/markup"
	"capnote/api/internal/suggest"
)

type Options struct {
	// ChromePath overrides the browser lookup for PDF export.
	ChromePath string
	PandocPath string
	Timeout    time.Duration
}

// Service provides note export functionality
type Service struct {
	chromePath string
	pandocPath string
	timeout    time.Duration
}

func NewService(opts Options) *Service {
	if opts.PandocPath == "" {
		opts.PandocPath = "pandoc"
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	return &Service{chromePath: opts.ChromePath, pandocPath: opts.PandocPath, timeout: opts.Timeout}
}

// Export generates an export in the requested format
func (s *Service) Export(ctx context.Context, req Request) (*Result, error) {
	if req.Doc == nil {
		return nil, fmt.Errorf("export: no document")
	}
	d := req.Doc
	data := TemplateData{
		Title:     req.Title,
		Author:    req.Author,
		UpdatedAt: req.UpdatedAt,
		Mode:      string(req.Mode),
	}
	switch req.Mode {
	case ModeAccepted:
		d = suggest.Resolved(d, true)
	case ModeRejected:
		d = suggest.Resolved(d, false)
	case ModeMarkup, "":
		for _, sg := range suggest.List(d) {
			data.Suggestions = append(data.Suggestions, TemplateSuggestion{
				ID:       sg.ID,
				Kind:     string(sg.Kind),
				User:     sg.User,
				Reason:   sg.Reason,
				Inserted: sg.Inserted,
				Deleted:  sg.Deleted,
			})
		}
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedMode, req.Mode)
	}
	data.ContentHTML = template.HTML(markup.Render(d))

	html, err := RenderNoteHTML(data)
	if err != nil {
		return nil, fmt.Errorf("render template: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	switch req.Format {
	case FormatHTML, "":
		return &Result{
			Data:     []byte(html),
			Filename: sanitizeFilename(req.Title) + ".html",
			MimeType: "text/html; charset=utf-8",
		}, nil
	case FormatPDF:
		return exportPDF(ctx, s.chromePath, html, req.Title)
	case FormatDOCX:
		return exportDOCX(ctx, s.pandocPath, html, req.Title)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, req.Format)
	}
}
