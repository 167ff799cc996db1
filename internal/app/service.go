package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"capnote/api/internal/aistream"
	"capnote/api/internal/auth"
	"capnote/api/internal/blob"
	"capnote/api/internal/config"
	"capnote/api/internal/doc"
	"capnote/api/internal/editor"
	"capnote/api/internal/export"
	"capnote/api/internal/gitrepo"
	"capnote/api/internal/markup"
	"capnote/api/internal/search"
	"capnote/api/internal/session"
	"capnote/api/internal/store"
	"capnote/api/internal/suggest"
	"capnote/api/internal/util"
)

type Session struct {
	Token     string
	UserID    string
	UserName  string
	JTI       string
	ExpiresAt time.Time
}

// NoteInput carries a full content replacement. Doc wins over Markup when
// both are set; Revision overrides the revision the live draft is based on.
type NoteInput struct {
	Title    *string         `json:"title"`
	Doc      json.RawMessage `json:"doc"`
	Markup   *string         `json:"markup"`
	Revision string          `json:"revision"`
}

type noteStore interface {
	CreateNote(context.Context, store.Note) (store.Note, error)
	GetNote(context.Context, string) (store.Note, error)
	ListNotes(context.Context, int) ([]store.Note, error)
	UpdateNote(context.Context, store.Note, string) (store.Note, error)
	DeleteNote(context.Context, string) error
	RecordEvent(context.Context, store.NoteEvent) error
	ListEvents(context.Context, string, int) ([]store.NoteEvent, error)
	Ping(context.Context) error
}

type historyService interface {
	Commit(string, gitrepo.Content, string, string) (store.CommitInfo, error)
	History(string, int) ([]store.CommitInfo, error)
	ContentAt(string, string) (gitrepo.Content, error)
}

type searchService interface {
	Search(search.Query) search.Response
	IndexNote(search.NoteRecord)
	DeleteNote(string)
	SyncSuggestions([]search.SuggestionRecord, []string)
}

type exporter interface {
	Export(context.Context, export.Request) (*export.Result, error)
}

type blobStore interface {
	Put(ctx context.Context, key, contentType, filename string, data []byte) (blob.Object, error)
}

// Deps are the collaborators of a Service. Search, Blobs and AI may be nil.
type Deps struct {
	Store   noteStore
	Drafts  session.Store
	History historyService
	Search  searchService
	Export  exporter
	Blobs   blobStore
	AI      aistream.Service
}

// liveNote is an open note: its editor and the stored revision the editor
// content is based on.
type liveNote struct {
	id          string
	ed          *editor.Editor
	unsubscribe func()

	mu           sync.Mutex
	title        string
	baseRevision string
	dirty        bool
}

func (n *liveNote) state() (title, baseRevision string, dirty bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.title, n.baseRevision, n.dirty
}

type Service struct {
	cfg     config.Config
	schema  *doc.Schema
	store   noteStore
	drafts  session.Store
	git     historyService
	search  searchService
	export  exporter
	blobs   blobStore
	ai      aistream.Service
	notesMu sync.Mutex
	notes   map[string]*liveNote
}

func New(cfg config.Config, deps Deps) *Service {
	return &Service{
		cfg:    cfg,
		schema: suggest.DefaultSchema(),
		store:  deps.Store,
		drafts: deps.Drafts,
		git:    deps.History,
		search: deps.Search,
		export: deps.Export,
		blobs:  deps.Blobs,
		ai:     deps.AI,
		notes:  make(map[string]*liveNote),
	}
}

func (s *Service) Ping(ctx context.Context) error {
	if err := s.store.Ping(ctx); err != nil {
		return fmt.Errorf("database: %w", err)
	}
	if err := s.drafts.Ping(ctx); err != nil {
		return fmt.Errorf("drafts: %w", err)
	}
	return nil
}

// AI returns the configured stream service, or nil.
func (s *Service) AI() aistream.Service {
	if gw, ok := s.ai.(*aistream.Gateway); ok && !gw.Configured() {
		return nil
	}
	return s.ai
}

func (s *Service) Login(_ context.Context, name, secret string) (Session, error) {
	if err := auth.CheckSecret(s.cfg.LoginSecret, secret); err != nil {
		return Session{}, domainError(http.StatusUnauthorized, "UNAUTHORIZED", "Invalid login secret", nil)
	}
	userName := strings.TrimSpace(name)
	if userName == "" {
		userName = "User"
	}
	claims := auth.NewClaims(userName, s.cfg.AccessTTL, time.Now())
	token, err := auth.IssueToken([]byte(s.cfg.JWTSecret), claims)
	if err != nil {
		return Session{}, err
	}
	return Session{
		Token:     token,
		UserID:    claims.Sub,
		UserName:  claims.Name,
		JTI:       claims.JTI,
		ExpiresAt: claims.ExpiresAt(),
	}, nil
}

func (s *Service) SessionFromToken(ctx context.Context, token string) (Session, error) {
	claims, err := auth.ParseToken([]byte(s.cfg.JWTSecret), token)
	if err != nil {
		return Session{}, err
	}
	revoked, err := s.drafts.IsRevoked(ctx, claims.JTI)
	if err != nil {
		return Session{}, err
	}
	if revoked {
		return Session{}, auth.ErrInvalidToken
	}
	return Session{
		Token:     token,
		UserID:    claims.Sub,
		UserName:  claims.Name,
		JTI:       claims.JTI,
		ExpiresAt: claims.ExpiresAt(),
	}, nil
}

func (s *Service) Logout(ctx context.Context, sess Session) error {
	if sess.JTI == "" {
		return nil
	}
	return s.drafts.RevokeToken(ctx, sess.JTI, sess.ExpiresAt)
}

func (s *Service) ListNotes(ctx context.Context, limit int) ([]map[string]any, error) {
	notes, err := s.store.ListNotes(ctx, limit)
	if err != nil {
		return nil, err
	}
	items := make([]map[string]any, 0, len(notes))
	for _, note := range notes {
		items = append(items, noteSummary(note))
	}
	return items, nil
}

func (s *Service) CreateNote(ctx context.Context, input NoteInput, userName string) (map[string]any, error) {
	title := ""
	if input.Title != nil {
		title = strings.TrimSpace(*input.Title)
	}
	if title == "" {
		return nil, validationError("title is required", nil)
	}
	d, err := s.parseContent(input)
	if err != nil {
		return nil, err
	}
	if d == nil {
		d = doc.New(s.schema, doc.Block("doc", nil, doc.Paragraph()))
	}
	content, err := json.Marshal(d)
	if err != nil {
		return nil, fmt.Errorf("encode note: %w", err)
	}

	note, err := s.store.CreateNote(ctx, store.Note{
		ID:        util.NewID("note"),
		Title:     title,
		Content:   content,
		PlainText: d.PlainText(),
		CreatedBy: userName,
	})
	if err != nil {
		return nil, err
	}
	s.recordEvent(ctx, note.ID, store.EventCreated, userName, "", nil)
	if _, err := s.git.Commit(note.ID, gitrepo.Content{Title: title, Doc: content}, userName, "Create note"); err != nil {
		log.Printf("app: commit new note %s: %v", note.ID, err)
	}
	s.indexNote(note.ID, title, d, userName)

	live, err := s.open(ctx, note.ID)
	if err != nil {
		return nil, err
	}
	return s.noteView(live), nil
}

func (s *Service) GetNote(ctx context.Context, noteID string) (map[string]any, error) {
	live, err := s.open(ctx, noteID)
	if err != nil {
		return nil, err
	}
	return s.noteView(live), nil
}

// UpdateNote persists the title and content in input as the next stored
// revision, then loads them into the live note. A failed save leaves the live
// note unchanged.
func (s *Service) UpdateNote(ctx context.Context, noteID string, input NoteInput, userName string) (map[string]any, error) {
	live, err := s.open(ctx, noteID)
	if err != nil {
		return nil, err
	}
	d, err := s.parseContent(input)
	if err != nil {
		return nil, err
	}
	title, _, _ := live.state()
	if input.Title != nil {
		title = strings.TrimSpace(*input.Title)
		if title == "" {
			return nil, validationError("title must not be empty", nil)
		}
	}
	content := live.ed.Document()
	if d != nil {
		content = d
	}
	saved, err := s.persist(ctx, live, title, content, input.Revision, userName)
	if err != nil {
		return nil, err
	}
	live.mu.Lock()
	live.title = title
	live.mu.Unlock()
	if d != nil {
		live.ed.Reset(d)
	}
	s.afterSave(ctx, live, saved, userName)
	return s.noteView(live), nil
}

func (s *Service) DeleteNote(ctx context.Context, noteID string) error {
	if err := s.store.DeleteNote(ctx, noteID); err != nil {
		return err
	}
	s.notesMu.Lock()
	if live, ok := s.notes[noteID]; ok {
		live.unsubscribe()
		delete(s.notes, noteID)
	}
	s.notesMu.Unlock()
	if err := s.drafts.DeleteDraft(ctx, noteID); err != nil {
		log.Printf("app: delete draft %s: %v", noteID, err)
	}
	if s.search != nil {
		s.search.DeleteNote(noteID)
	}
	return nil
}

func (s *Service) Markup(ctx context.Context, noteID string) (map[string]any, error) {
	live, err := s.open(ctx, noteID)
	if err != nil {
		return nil, err
	}
	_, base, dirty := live.state()
	return map[string]any{
		"noteId":   noteID,
		"markup":   markup.Render(live.ed.Document()),
		"revision": base,
		"dirty":    dirty,
	}, nil
}

func (s *Service) ListSuggestions(ctx context.Context, noteID string) (map[string]any, error) {
	live, err := s.open(ctx, noteID)
	if err != nil {
		return nil, err
	}
	d := live.ed.Document()
	return map[string]any{
		"noteId":          noteID,
		"suggestions":     nonNilSuggestions(suggest.List(d)),
		"hasSuggestions":  suggest.HasSuggestions(d),
		"previewAccepted": suggest.Preview(d, true),
		"previewRejected": suggest.Preview(d, false),
	}, nil
}

// Propose applies each proposal as a suggestion against the current content.
// Proposals whose target text cannot be located are skipped.
func (s *Service) Propose(ctx context.Context, noteID string, proposals []suggest.Proposal, userName string) (map[string]any, error) {
	if len(proposals) == 0 {
		return nil, validationError("at least one suggestion is required", nil)
	}
	live, err := s.open(ctx, noteID)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(proposals))
	skipped := 0
	for _, p := range proposals {
		id, ok := suggest.Propose(live.ed, p, userName)
		if !ok {
			skipped++
			continue
		}
		ids = append(ids, id)
	}
	if len(ids) == 0 {
		return nil, domainError(http.StatusUnprocessableEntity, "SUGGESTION_NOT_APPLIED", "No suggestion could be located in the note", map[string]any{"skipped": skipped})
	}
	s.afterPropose(ctx, live, ids, userName)

	payload := s.noteView(live)
	payload["suggestionIds"] = ids
	payload["skipped"] = skipped
	return payload, nil
}

// ResolveAll accepts or rejects every pending suggestion. applied is false
// when there was nothing to resolve.
func (s *Service) ResolveAll(ctx context.Context, noteID string, accept bool, userName string) (map[string]any, error) {
	live, err := s.open(ctx, noteID)
	if err != nil {
		return nil, err
	}
	pending := suggest.List(live.ed.Document())
	cmd := suggest.RejectAll
	if accept {
		cmd = suggest.AcceptAll
	}
	applied := live.ed.Run(cmd)
	resolved := make([]string, 0, len(pending))
	if applied {
		kind := resolveEvent(accept)
		for _, sg := range pending {
			resolved = append(resolved, sg.ID)
			s.recordEvent(ctx, noteID, kind, userName, sg.ID, map[string]any{"kind": sg.Kind})
		}
		if s.search != nil {
			s.search.SyncSuggestions(nil, resolved)
		}
	}
	payload := s.noteView(live)
	payload["applied"] = applied
	payload["resolved"] = resolved
	return payload, nil
}

func (s *Service) ResolveOne(ctx context.Context, noteID, suggestionID string, accept bool, userName string) (map[string]any, error) {
	live, err := s.open(ctx, noteID)
	if err != nil {
		return nil, err
	}
	kind, found := suggest.KindOf(live.ed.Document(), suggestionID)
	if !found {
		return nil, notFoundError("SUGGESTION_NOT_FOUND", "Suggestion not found")
	}
	cmd := suggest.RejectByID(suggestionID)
	if accept {
		cmd = suggest.AcceptByID(suggestionID)
	}
	if !live.ed.Run(cmd) {
		return nil, conflictError("SUGGESTION_NOT_APPLIED", "Suggestion could not be resolved", nil)
	}
	s.recordEvent(ctx, noteID, resolveEvent(accept), userName, suggestionID, map[string]any{"kind": kind})
	if s.search != nil {
		s.search.SyncSuggestions(nil, []string{suggestionID})
	}
	return s.noteView(live), nil
}

// Undo reverts the most recent change of the live note; redo reapplies it.
func (s *Service) Undo(ctx context.Context, noteID string, redo bool, userName string) (map[string]any, error) {
	live, err := s.open(ctx, noteID)
	if err != nil {
		return nil, err
	}
	var ok bool
	if redo {
		ok = live.ed.Redo()
	} else {
		ok = live.ed.Undo()
	}
	if !ok {
		return nil, conflictError("NOTHING_TO_UNDO", "Nothing to undo", nil)
	}
	s.recordEvent(ctx, noteID, store.EventUndone, userName, "", map[string]any{"redo": redo})
	if s.search != nil {
		s.search.SyncSuggestions(suggestionRecords(noteID, suggest.List(live.ed.Document()), nil), nil)
	}
	return s.noteView(live), nil
}

func (s *Service) History(ctx context.Context, noteID string, limit int) (map[string]any, error) {
	if _, err := s.store.GetNote(ctx, noteID); err != nil {
		return nil, err
	}
	commits, err := s.git.History(noteID, limit)
	if err != nil {
		return nil, err
	}
	items := make([]map[string]any, 0, len(commits))
	for _, item := range commits {
		items = append(items, map[string]any{
			"hash":      item.Hash,
			"message":   item.Message,
			"author":    item.Author,
			"createdAt": item.CreatedAt.Format(time.RFC3339),
			"meta":      fmt.Sprintf("%s · %s", item.Author, relative(item.CreatedAt)),
		})
	}
	return map[string]any{"noteId": noteID, "commits": items}, nil
}

func (s *Service) Version(ctx context.Context, noteID, hash string) (map[string]any, error) {
	if _, err := s.store.GetNote(ctx, noteID); err != nil {
		return nil, err
	}
	content, err := s.git.ContentAt(noteID, hash)
	if err != nil {
		notFound := notFoundError("VERSION_NOT_FOUND", "Version not found")
		notFound.Cause = err
		return nil, notFound
	}
	d, err := doc.ParseJSON(s.schema, content.Doc)
	if err != nil {
		return nil, fmt.Errorf("decode version %s: %w", hash, err)
	}
	return map[string]any{
		"noteId": noteID,
		"hash":   hash,
		"title":  content.Title,
		"doc":    d,
		"markup": markup.Render(d),
	}, nil
}

func (s *Service) Events(ctx context.Context, noteID string, limit int) (map[string]any, error) {
	if _, err := s.store.GetNote(ctx, noteID); err != nil {
		return nil, err
	}
	events, err := s.store.ListEvents(ctx, noteID, limit)
	if err != nil {
		return nil, err
	}
	items := make([]map[string]any, 0, len(events))
	for _, event := range events {
		items = append(items, map[string]any{
			"id":           event.ID,
			"kind":         event.Kind,
			"actor":        event.Actor,
			"suggestionId": nilIfEmpty(event.SuggestionID),
			"detail":       event.Detail,
			"createdAt":    event.CreatedAt.Format(time.RFC3339),
		})
	}
	return map[string]any{"noteId": noteID, "events": items}, nil
}

// Export renders the live note. With upload set and blob storage configured
// the artifact is stored and a download link returned instead of the bytes.
func (s *Service) Export(ctx context.Context, noteID string, format export.Format, mode export.Mode, upload bool) (*export.Result, *blob.Object, error) {
	live, err := s.open(ctx, noteID)
	if err != nil {
		return nil, nil, err
	}
	note, err := s.store.GetNote(ctx, noteID)
	if err != nil {
		return nil, nil, err
	}
	title, base, _ := live.state()
	result, err := s.export.Export(ctx, export.Request{
		Title:     title,
		Author:    note.UpdatedBy,
		UpdatedAt: note.UpdatedAt,
		Doc:       live.ed.Document(),
		Format:    format,
		Mode:      mode,
	})
	if err != nil {
		return nil, nil, err
	}
	if !upload {
		return result, nil, nil
	}
	if s.blobs == nil {
		return nil, nil, domainError(http.StatusServiceUnavailable, "BLOB_UNAVAILABLE", "Export storage not configured", nil)
	}
	object, err := s.blobs.Put(ctx, blob.ObjectKey(noteID, base, result.Filename), result.MimeType, result.Filename, result.Data)
	if err != nil {
		return nil, nil, err
	}
	return result, &object, nil
}

func (s *Service) Search(_ context.Context, q search.Query) (search.Response, error) {
	if s.search == nil {
		return search.Response{Results: []search.Result{}, Query: q.Text}, nil
	}
	if q.Limit <= 0 || q.Limit > 100 {
		q.Limit = 20
	}
	if q.Offset < 0 {
		q.Offset = 0
	}
	return s.search.Search(q), nil
}

// open returns the live note, loading it on first use. A cached draft based
// on the current stored revision replaces the stored content.
func (s *Service) open(ctx context.Context, noteID string) (*liveNote, error) {
	s.notesMu.Lock()
	live, ok := s.notes[noteID]
	s.notesMu.Unlock()
	if ok {
		return live, nil
	}

	note, err := s.store.GetNote(ctx, noteID)
	if err != nil {
		return nil, err
	}
	content, dirty := note.Content, false
	draft, err := s.drafts.LoadDraft(ctx, noteID)
	switch {
	case err == nil && draft.BaseRevision == note.Revision:
		content, dirty = draft.Content, true
	case err == nil:
		log.Printf("app: dropping stale draft of %s (base %s, stored %s)", noteID, draft.BaseRevision, note.Revision)
		_ = s.drafts.DeleteDraft(ctx, noteID)
	case !errors.Is(err, session.ErrNoDraft):
		log.Printf("app: load draft %s: %v", noteID, err)
	}

	d, err := doc.ParseJSON(s.schema, content)
	if err != nil && dirty {
		log.Printf("app: dropping unreadable draft of %s: %v", noteID, err)
		_ = s.drafts.DeleteDraft(ctx, noteID)
		dirty = false
		d, err = doc.ParseJSON(s.schema, note.Content)
	}
	if err != nil {
		return nil, fmt.Errorf("decode note %s: %w", noteID, err)
	}

	s.notesMu.Lock()
	defer s.notesMu.Unlock()
	if existing, ok := s.notes[noteID]; ok {
		return existing, nil
	}
	live = &liveNote{
		id:           noteID,
		ed:           editor.New(d),
		title:        note.Title,
		baseRevision: note.Revision,
		dirty:        dirty,
	}
	live.unsubscribe = live.ed.OnChange(func(change editor.Change) {
		s.saveDraft(live, change.Doc)
	})
	s.notes[noteID] = live
	return live, nil
}

func (s *Service) saveDraft(live *liveNote, d *doc.Document) {
	content, err := json.Marshal(d)
	if err != nil {
		log.Printf("app: encode draft %s: %v", live.id, err)
		return
	}
	live.mu.Lock()
	live.dirty = true
	base := live.baseRevision
	live.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.drafts.SaveDraft(ctx, session.Draft{
		NoteID:       live.id,
		BaseRevision: base,
		Content:      content,
		SavedAt:      time.Now().UTC(),
	}); err != nil {
		log.Printf("app: save draft %s: %v", live.id, err)
	}
}

// savedNote is a persisted revision waiting for its side effects.
type savedNote struct {
	title    string
	doc      *doc.Document
	content  []byte
	revision string
}

// persist writes title and d as the note's next revision. expectedRevision
// defaults to the revision the live content is based on. The live note is not
// touched.
func (s *Service) persist(ctx context.Context, live *liveNote, title string, d *doc.Document, expectedRevision, userName string) (savedNote, error) {
	_, base, _ := live.state()
	if expectedRevision == "" {
		expectedRevision = base
	}
	content, err := json.Marshal(d)
	if err != nil {
		return savedNote{}, fmt.Errorf("encode note: %w", err)
	}
	updated, err := s.store.UpdateNote(ctx, store.Note{
		ID:        live.id,
		Title:     title,
		Content:   content,
		PlainText: d.PlainText(),
		UpdatedBy: userName,
	}, expectedRevision)
	if errors.Is(err, store.ErrConflict) {
		current, getErr := s.store.GetNote(ctx, live.id)
		if getErr != nil {
			return savedNote{}, getErr
		}
		return savedNote{}, conflictError("REVISION_CONFLICT", "Note was changed by someone else", map[string]any{
			"expectedRevision": expectedRevision,
			"currentRevision":  current.Revision,
		})
	}
	if err != nil {
		return savedNote{}, err
	}
	return savedNote{title: title, doc: d, content: content, revision: updated.Revision}, nil
}

// afterSave rebases the live note on saved and runs the save side effects:
// the draft is dropped, then the event, commit and index update follow.
func (s *Service) afterSave(ctx context.Context, live *liveNote, saved savedNote, userName string) {
	live.mu.Lock()
	live.baseRevision = saved.revision
	live.dirty = false
	live.mu.Unlock()

	if err := s.drafts.DeleteDraft(ctx, live.id); err != nil {
		log.Printf("app: delete draft %s: %v", live.id, err)
	}
	s.recordEvent(ctx, live.id, store.EventUpdated, userName, "", map[string]any{"revision": saved.revision})
	if _, err := s.git.Commit(live.id, gitrepo.Content{Title: saved.title, Doc: saved.content}, userName, "Save note"); err != nil {
		log.Printf("app: commit note %s: %v", live.id, err)
	}
	s.indexNote(live.id, saved.title, saved.doc, userName)
}

// Save persists the current live content without replacing it.
func (s *Service) Save(ctx context.Context, noteID, expectedRevision, userName string) (map[string]any, error) {
	live, err := s.open(ctx, noteID)
	if err != nil {
		return nil, err
	}
	title, _, _ := live.state()
	saved, err := s.persist(ctx, live, title, live.ed.Document(), expectedRevision, userName)
	if err != nil {
		return nil, err
	}
	s.afterSave(ctx, live, saved, userName)
	return s.noteView(live), nil
}

// ApplyStream proposes the finished output of an AI session into a note.
func (s *Service) ApplyStream(ctx context.Context, noteID string, sess *aistream.Session, tmpl suggest.Proposal, userName string) ([]string, error) {
	live, err := s.open(ctx, noteID)
	if err != nil {
		return nil, err
	}
	ids, err := sess.ProposeInto(live.ed, tmpl, userName)
	if err != nil {
		return nil, err
	}
	if len(ids) > 0 {
		s.afterPropose(ctx, live, ids, userName)
	}
	return ids, nil
}

// NoteText returns the plain text of the live note, used as AI context.
func (s *Service) NoteText(ctx context.Context, noteID string) (string, error) {
	live, err := s.open(ctx, noteID)
	if err != nil {
		return "", err
	}
	return live.ed.Document().PlainText(), nil
}

func (s *Service) afterPropose(ctx context.Context, live *liveNote, ids []string, userName string) {
	all := suggest.List(live.ed.Document())
	for _, id := range ids {
		s.recordEvent(ctx, live.id, store.EventProposed, userName, id, nil)
	}
	if s.search != nil {
		s.search.SyncSuggestions(suggestionRecords(live.id, all, ids), nil)
	}
}

func (s *Service) recordEvent(ctx context.Context, noteID, kind, actor, suggestionID string, detail map[string]any) {
	event := store.NoteEvent{NoteID: noteID, Kind: kind, Actor: actor, SuggestionID: suggestionID}
	if detail != nil {
		raw, err := json.Marshal(detail)
		if err == nil {
			event.Detail = raw
		}
	}
	if err := s.store.RecordEvent(ctx, event); err != nil {
		log.Printf("app: record %s event for %s: %v", kind, noteID, err)
	}
}

func (s *Service) indexNote(noteID, title string, d *doc.Document, userName string) {
	if s.search == nil {
		return
	}
	s.search.IndexNote(search.NoteRecord{ID: noteID, Title: title, Body: d.PlainText(), UpdatedBy: userName})
}

// parseContent returns the document carried by input, or nil when it has
// none.
func (s *Service) parseContent(input NoteInput) (*doc.Document, error) {
	switch {
	case len(input.Doc) > 0 && string(input.Doc) != "null":
		d, err := doc.ParseJSON(s.schema, input.Doc)
		if err != nil {
			return nil, validationError("doc is not a valid document", err)
		}
		return d, nil
	case input.Markup != nil:
		d, err := markup.Parse(s.schema, *input.Markup)
		if err != nil {
			return nil, validationError("markup could not be parsed", err)
		}
		return d, nil
	}
	return nil, nil
}

func (s *Service) noteView(live *liveNote) map[string]any {
	title, base, dirty := live.state()
	d := live.ed.Document()
	return map[string]any{
		"note": map[string]any{
			"id":             live.id,
			"title":          title,
			"revision":       base,
			"dirty":          dirty,
			"doc":            d,
			"plainText":      d.PlainText(),
			"suggestions":    nonNilSuggestions(suggest.List(d)),
			"hasSuggestions": suggest.HasSuggestions(d),
			"canUndo":        live.ed.CanUndo(),
		},
	}
}

func noteSummary(note store.Note) map[string]any {
	return map[string]any{
		"id":        note.ID,
		"title":     note.Title,
		"revision":  note.Revision,
		"excerpt":   excerpt(note.PlainText, 140),
		"updatedBy": note.UpdatedBy,
		"updatedAt": note.UpdatedAt.Format(time.RFC3339),
		"updated":   relative(note.UpdatedAt),
	}
}

func suggestionRecords(noteID string, all []suggest.Suggestion, only []string) []search.SuggestionRecord {
	var keep map[string]bool
	if only != nil {
		keep = make(map[string]bool, len(only))
		for _, id := range only {
			keep[id] = true
		}
	}
	records := make([]search.SuggestionRecord, 0, len(all))
	for _, sg := range all {
		if keep != nil && !keep[sg.ID] {
			continue
		}
		records = append(records, search.SuggestionRecord{
			ID:       sg.ID,
			NoteID:   noteID,
			Kind:     string(sg.Kind),
			User:     sg.User,
			Reason:   sg.Reason,
			Inserted: sg.Inserted,
			Deleted:  sg.Deleted,
		})
	}
	return records
}

func resolveEvent(accept bool) string {
	if accept {
		return store.EventAccepted
	}
	return store.EventRejected
}

func nonNilSuggestions(items []suggest.Suggestion) []suggest.Suggestion {
	if items == nil {
		return []suggest.Suggestion{}
	}
	return items
}

func excerpt(text string, limit int) string {
	text = strings.Join(strings.Fields(text), " ")
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	return string(runes[:limit]) + "…"
}

func nilIfEmpty(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func relative(value time.Time) string {
	minutes := int(time.Since(value).Minutes())
	if minutes < 1 {
		minutes = 1
	}
	if minutes < 60 {
		return fmt.Sprintf("%dm ago", minutes)
	}
	hours := minutes / 60
	if hours < 24 {
		return fmt.Sprintf("%dh ago", hours)
	}
	days := hours / 24
	return fmt.Sprintf("%dd ago", days)
}
