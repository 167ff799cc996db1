package search

import (
	"context"
	"database/sql"
	"log"
)

// Service is the facade that tries Meilisearch first and falls back to the
// database searcher.
type Service struct {
	meili    *Meili
	fallback Searcher
}

// NewService creates a search service. meili may be nil if Meilisearch is not configured.
func NewService(meili *Meili, fallback Searcher) *Service {
	return &Service{meili: meili, fallback: fallback}
}

// Search tries Meilisearch if healthy, otherwise falls back to the database.
func (s *Service) Search(q Query) Response {
	if s.meiliReady() {
		results, total, err := s.meili.Search(q)
		if err == nil {
			return Response{Results: nonNil(results), Total: total, Query: q.Text}
		}
		log.Printf("search: meilisearch error, falling back: %v", err)
	}

	if s.fallback == nil {
		return Response{Results: []Result{}, Total: 0, Query: q.Text}
	}
	results, total, err := s.fallback.Search(q)
	if err != nil {
		log.Printf("search: fallback error: %v", err)
		return Response{Results: []Result{}, Total: 0, Query: q.Text}
	}
	return Response{Results: nonNil(results), Total: total, Query: q.Text}
}

// IndexNote indexes a note (fire-and-forget to Meilisearch).
func (s *Service) IndexNote(note NoteRecord) {
	if !s.meiliReady() {
		return
	}
	go func() {
		if err := s.meili.IndexNote(note); err != nil {
			log.Printf("search: index note %s: %v", note.ID, err)
		}
	}()
}

// DeleteNote removes a note from the search index (fire-and-forget).
func (s *Service) DeleteNote(id string) {
	if !s.meiliReady() {
		return
	}
	go func() {
		if err := s.meili.DeleteNote(id); err != nil {
			log.Printf("search: delete note %s: %v", id, err)
		}
	}()
}

// SyncSuggestions indexes the pending suggestions of a note and drops the
// resolved ones (fire-and-forget).
func (s *Service) SyncSuggestions(pending []SuggestionRecord, resolved []string) {
	if !s.meiliReady() || (len(pending) == 0 && len(resolved) == 0) {
		return
	}
	go func() {
		if err := s.meili.IndexSuggestions(pending); err != nil {
			log.Printf("search: index suggestions: %v", err)
		}
		for _, id := range resolved {
			if err := s.meili.DeleteSuggestion(id); err != nil {
				log.Printf("search: delete suggestion %s: %v", id, err)
			}
		}
	}()
}

// ReindexFromDB pushes every stored note to Meilisearch.
func (s *Service) ReindexFromDB(ctx context.Context, db *sql.DB) {
	if !s.meiliReady() {
		return
	}
	notes, err := LoadNotes(ctx, db)
	if err != nil {
		log.Printf("search: reindex load failed: %v", err)
		return
	}
	if err := s.meili.IndexNotes(notes); err != nil {
		log.Printf("search: reindex notes: %v", err)
	}
}

func (s *Service) meiliReady() bool {
	return s.meili != nil && s.meili.Healthy()
}

func nonNil(r []Result) []Result {
	if r == nil {
		return []Result{}
	}
	return r
}
