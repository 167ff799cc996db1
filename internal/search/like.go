package search

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"unicode/utf8"
)

const snippetRadius = 40

// Like implements Searcher with case-insensitive substring matching. It backs
// the SQLite store, which has no full-text index.
type Like struct {
	db *sql.DB
}

func NewLike(db *sql.DB) *Like {
	return &Like{db: db}
}

func (l *Like) Healthy() bool {
	return true
}

func (l *Like) Search(q Query) ([]Result, int, error) {
	text := strings.TrimSpace(q.Text)
	if text == "" || q.FilterType == ResultSuggestion {
		return nil, 0, nil
	}
	limit, offset := pageBounds(q)

	pattern := "%" + escapeLike(strings.ToLower(text)) + "%"
	where := `(lower(title) LIKE ? ESCAPE '\' OR lower(plain_text) LIKE ? ESCAPE '\')`
	args := []any{pattern, pattern}
	if q.NoteID != "" {
		where += " AND id = ?"
		args = append(args, q.NoteID)
	}

	ctx := context.Background()
	var total int
	if err := l.db.QueryRowContext(ctx, "SELECT count(*) FROM notes WHERE "+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("like count: %w", err)
	}

	rows, err := l.db.QueryContext(ctx, fmt.Sprintf(
		"SELECT id, title, plain_text FROM notes WHERE %s ORDER BY updated_at DESC LIMIT %d OFFSET %d", where, limit, offset), args...)
	if err != nil {
		return nil, 0, fmt.Errorf("like query: %w", err)
	}
	defer rows.Close()

	var results []Result
	for rows.Next() {
		r := Result{Type: ResultNote}
		var body string
		if err := rows.Scan(&r.ID, &r.Title, &body); err != nil {
			return nil, 0, fmt.Errorf("like scan: %w", err)
		}
		r.NoteID = r.ID
		r.Snippet = snippet(body, text)
		results = append(results, r)
	}
	return results, total, rows.Err()
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

// snippet cuts body around the first match of term and marks it.
func snippet(body, term string) string {
	idx := strings.Index(strings.ToLower(body), strings.ToLower(term))
	if idx < 0 {
		return truncate(body, 2*snippetRadius)
	}
	end := idx + len(term)
	start := idx
	for n := 0; start > 0 && n < snippetRadius; n++ {
		_, size := utf8.DecodeLastRuneInString(body[:start])
		start -= size
	}
	stop := end
	for n := 0; stop < len(body) && n < snippetRadius; n++ {
		_, size := utf8.DecodeRuneInString(body[stop:])
		stop += size
	}
	out := body[start:idx] + "<mark>" + body[idx:end] + "</mark>" + body[end:stop]
	if start > 0 {
		out = "…" + out
	}
	if stop < len(body) {
		out += "…"
	}
	return out
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n]) + "…"
}
