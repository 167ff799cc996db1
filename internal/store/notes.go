package store

import (
	"context"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"golang.org/x/crypto/blake2b"
)

var (
	ErrNotFound = errors.New("note not found")
	// ErrConflict is returned when an update names a revision that is no
	// longer current.
	ErrConflict = errors.New("note revision conflict")
)

type Dialect string

const (
	DialectPostgres Dialect = "postgres"
	DialectSQLite   Dialect = "sqlite"
)

// rebind rewrites ? placeholders to $n for postgres.
func (d Dialect) rebind(query string) string {
	if d != DialectPostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Revision is the content digest used for optimistic concurrency and ETags.
func Revision(content []byte) string {
	sum := blake2b.Sum256(content)
	return hex.EncodeToString(sum[:16])
}

type SQLStore struct {
	db      *sql.DB
	dialect Dialect
}

func NewPostgresStore(db *sql.DB) *SQLStore {
	return &SQLStore{db: db, dialect: DialectPostgres}
}

func NewSQLiteStore(db *sql.DB) *SQLStore {
	return &SQLStore{db: db, dialect: DialectSQLite}
}

func (s *SQLStore) DB() *sql.DB {
	return s.db
}

func (s *SQLStore) Dialect() Dialect {
	return s.dialect
}

func (s *SQLStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLStore) CreateNote(ctx context.Context, note Note) (Note, error) {
	now := time.Now().UTC()
	note.CreatedAt, note.UpdatedAt = now, now
	if note.UpdatedBy == "" {
		note.UpdatedBy = note.CreatedBy
	}
	note.Revision = Revision(note.Content)
	_, err := s.db.ExecContext(ctx, s.dialect.rebind(`
		INSERT INTO notes (id, title, content, plain_text, revision, created_by, updated_by, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`), note.ID, note.Title, string(note.Content), note.PlainText, note.Revision, note.CreatedBy, note.UpdatedBy, now, now)
	if err != nil {
		return Note{}, fmt.Errorf("insert note: %w", err)
	}
	return note, nil
}

func (s *SQLStore) GetNote(ctx context.Context, id string) (Note, error) {
	row := s.db.QueryRowContext(ctx, s.dialect.rebind(`
		SELECT id, title, content, plain_text, revision, created_by, updated_by, created_at, updated_at
		FROM notes WHERE id = ?
	`), id)
	note, err := scanNote(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Note{}, ErrNotFound
	}
	if err != nil {
		return Note{}, fmt.Errorf("get note: %w", err)
	}
	return note, nil
}

func (s *SQLStore) ListNotes(ctx context.Context, limit int) ([]Note, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, s.dialect.rebind(`
		SELECT id, title, content, plain_text, revision, created_by, updated_by, created_at, updated_at
		FROM notes ORDER BY updated_at DESC, id LIMIT ?
	`), limit)
	if err != nil {
		return nil, fmt.Errorf("list notes: %w", err)
	}
	defer rows.Close()

	notes := make([]Note, 0)
	for rows.Next() {
		note, err := scanNote(rows)
		if err != nil {
			return nil, fmt.Errorf("scan note: %w", err)
		}
		notes = append(notes, note)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate notes: %w", err)
	}
	return notes, nil
}

// UpdateNote stores new content. When expectedRevision is set the write only
// succeeds if it is still the stored revision.
func (s *SQLStore) UpdateNote(ctx context.Context, note Note, expectedRevision string) (Note, error) {
	note.Revision = Revision(note.Content)
	note.UpdatedAt = time.Now().UTC()

	query := `UPDATE notes SET title = ?, content = ?, plain_text = ?, revision = ?, updated_by = ?, updated_at = ? WHERE id = ?`
	args := []any{note.Title, string(note.Content), note.PlainText, note.Revision, note.UpdatedBy, note.UpdatedAt, note.ID}
	if expectedRevision != "" {
		query += ` AND revision = ?`
		args = append(args, expectedRevision)
	}
	result, err := s.db.ExecContext(ctx, s.dialect.rebind(query), args...)
	if err != nil {
		return Note{}, fmt.Errorf("update note: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return Note{}, fmt.Errorf("update note rows: %w", err)
	}
	if affected == 0 {
		if _, err := s.GetNote(ctx, note.ID); err != nil {
			return Note{}, err
		}
		return Note{}, ErrConflict
	}
	return s.GetNote(ctx, note.ID)
}

func (s *SQLStore) DeleteNote(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, s.dialect.rebind(`DELETE FROM notes WHERE id = ?`), id)
	if err != nil {
		return fmt.Errorf("delete note: %w", err)
	}
	if affected, err := result.RowsAffected(); err == nil && affected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLStore) RecordEvent(ctx context.Context, event NoteEvent) error {
	detail := event.Detail
	if len(detail) == 0 {
		detail = json.RawMessage(`{}`)
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, s.dialect.rebind(`
		INSERT INTO note_events (note_id, kind, actor, suggestion_id, detail, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`), event.NoteID, event.Kind, event.Actor, event.SuggestionID, string(detail), event.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert note event: %w", err)
	}
	return nil
}

// ListEvents returns the newest events of a note first.
func (s *SQLStore) ListEvents(ctx context.Context, noteID string, limit int) ([]NoteEvent, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, s.dialect.rebind(`
		SELECT id, note_id, kind, actor, suggestion_id, detail, created_at
		FROM note_events WHERE note_id = ? ORDER BY id DESC LIMIT ?
	`), noteID, limit)
	if err != nil {
		return nil, fmt.Errorf("list note events: %w", err)
	}
	defer rows.Close()

	events := make([]NoteEvent, 0)
	for rows.Next() {
		var event NoteEvent
		var detail []byte
		if err := rows.Scan(&event.ID, &event.NoteID, &event.Kind, &event.Actor, &event.SuggestionID, &detail, &event.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan note event: %w", err)
		}
		event.Detail = json.RawMessage(detail)
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate note events: %w", err)
	}
	return events, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanNote(row rowScanner) (Note, error) {
	var note Note
	var content []byte
	err := row.Scan(&note.ID, &note.Title, &content, &note.PlainText, &note.Revision,
		&note.CreatedBy, &note.UpdatedBy, &note.CreatedAt, &note.UpdatedAt)
	if err != nil {
		return Note{}, err
	}
	note.Content = json.RawMessage(content)
	return note, nil
}
