package export

import (
	"bytes"
	"embed"
	"html/template"
	"time"
)

//go:embed templates/note.html
var templateFS embed.FS

var noteTemplate = template.Must(template.New("note.html").Funcs(template.FuncMap{
	"formatDate": func(t time.Time, layout string) string {
		if t.IsZero() {
			return ""
		}
		return t.Format(layout)
	},
}).ParseFS(templateFS, "templates/note.html"))

// TemplateData holds data for note template rendering
type TemplateData struct {
	Title       string
	Author      string
	UpdatedAt   time.Time
	Mode        string
	ContentHTML template.HTML
	Suggestions []TemplateSuggestion
}

// TemplateSuggestion is one pending suggestion listed after the content.
type TemplateSuggestion struct {
	ID       string
	Kind     string
	User     string
	Reason   string
	Inserted string
	Deleted  string
}

// RenderNoteHTML renders the note template with provided data
func RenderNoteHTML(data TemplateData) (string, error) {
	var buf bytes.Buffer
	if err := noteTemplate.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}
