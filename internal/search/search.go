package search

// ResultType identifies the kind of entity in a search result.
type ResultType string

const (
	ResultNote       ResultType = "note"
	ResultSuggestion ResultType = "suggestion"
)

// Result is a single search hit returned to the caller.
type Result struct {
	Type    ResultType `json:"type"`
	ID      string     `json:"id"`
	Title   string     `json:"title"`
	Snippet string     `json:"snippet"`
	NoteID  string     `json:"noteId"`
}

// Query describes a search request.
type Query struct {
	Text       string
	FilterType ResultType // empty = all types
	NoteID     string
	Limit      int
	Offset     int
}

// Response is the envelope returned by the search endpoint.
type Response struct {
	Results []Result `json:"results"`
	Total   int      `json:"total"`
	Query   string   `json:"query"`
}

// Searcher can execute a full-text search.
type Searcher interface {
	Search(q Query) ([]Result, int, error)
	Healthy() bool
}

// NoteRecord is the data we index for a note.
type NoteRecord struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Body      string `json:"body"`
	UpdatedBy string `json:"updatedBy"`
}

// SuggestionRecord is the data we index for a pending suggestion.
type SuggestionRecord struct {
	ID       string `json:"id"`
	NoteID   string `json:"noteId"`
	Kind     string `json:"kind"`
	User     string `json:"user"`
	Reason   string `json:"reason"`
	Inserted string `json:"inserted"`
	Deleted  string `json:"deleted"`
}
