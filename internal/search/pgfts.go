package search

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// PgFTS implements Searcher over the notes table using PostgreSQL full-text
// search. Suggestions are only searchable through Meilisearch.
type PgFTS struct {
	db *sql.DB
}

func NewPgFTS(db *sql.DB) *PgFTS {
	return &PgFTS{db: db}
}

// Healthy always returns true. If Postgres is down, the whole app is down.
func (p *PgFTS) Healthy() bool {
	return true
}

func (p *PgFTS) Search(q Query) ([]Result, int, error) {
	if strings.TrimSpace(q.Text) == "" || q.FilterType == ResultSuggestion {
		return nil, 0, nil
	}
	limit, offset := pageBounds(q)

	where := "n.fts @@ plainto_tsquery('english', $1)"
	args := []any{q.Text}
	if q.NoteID != "" {
		where += " AND n.id = $2"
		args = append(args, q.NoteID)
	}

	ctx := context.Background()
	var total int
	if err := p.db.QueryRowContext(ctx, "SELECT count(*) FROM notes n WHERE "+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("pgfts count: %w", err)
	}

	rows, err := p.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT n.id, n.title,
			ts_headline('english', n.plain_text, plainto_tsquery('english', $1), 'MaxFragments=1,MaxWords=30,StartSel=<mark>,StopSel=</mark>')
		FROM notes n
		WHERE %s
		ORDER BY ts_rank(n.fts, plainto_tsquery('english', $1)) DESC
		LIMIT %d OFFSET %d`, where, limit, offset), args...)
	if err != nil {
		return nil, 0, fmt.Errorf("pgfts query: %w", err)
	}
	defer rows.Close()

	var results []Result
	for rows.Next() {
		r := Result{Type: ResultNote}
		if err := rows.Scan(&r.ID, &r.Title, &r.Snippet); err != nil {
			return nil, 0, fmt.Errorf("pgfts scan: %w", err)
		}
		r.NoteID = r.ID
		results = append(results, r)
	}
	return results, total, rows.Err()
}

// LoadNotes returns every note for full reindexing.
func LoadNotes(ctx context.Context, db *sql.DB) ([]NoteRecord, error) {
	rows, err := db.QueryContext(ctx, `SELECT id, title, plain_text, updated_by FROM notes`)
	if err != nil {
		return nil, fmt.Errorf("load notes: %w", err)
	}
	defer rows.Close()

	notes := make([]NoteRecord, 0)
	for rows.Next() {
		var n NoteRecord
		if err := rows.Scan(&n.ID, &n.Title, &n.Body, &n.UpdatedBy); err != nil {
			return nil, fmt.Errorf("scan note: %w", err)
		}
		notes = append(notes, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate notes: %w", err)
	}
	return notes, nil
}

func pageBounds(q Query) (limit, offset int) {
	limit = q.Limit
	if limit <= 0 {
		limit = 20
	}
	offset = q.Offset
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
