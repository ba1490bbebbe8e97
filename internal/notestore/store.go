// Package notestore is the single owner of every note and folder. Callers
// always receive copies; the stored values are never aliased.
package notestore

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/starford/neuralnotes/internal/apperr"
	"github.com/starford/neuralnotes/internal/backlink"
	"github.com/starford/neuralnotes/internal/editor"
	"github.com/starford/neuralnotes/internal/models"
)

// DefaultTitle is used when a note is created without a title.
const DefaultTitle = "Untitled Note"

// EventKind names a store notification.
type EventKind string

const (
	NoteCreated   EventKind = "note.created"
	NoteUpdated   EventKind = "note.updated"
	NoteDeleted   EventKind = "note.deleted"
	NoteSelected  EventKind = "note.selected"
	FolderCreated EventKind = "folder.created"
	FolderUpdated EventKind = "folder.updated"
)

// Event is delivered to observers after a mutation has been applied and
// the note's derived fields are current.
type Event struct {
	Kind   EventKind      `json:"kind"`
	ID     string         `json:"id"`
	Note   *models.Note   `json:"note,omitempty"`
	Folder *models.Folder `json:"folder,omitempty"`
}

// Observer receives store events. Observers run synchronously in mutation
// order and must not mutate the store.
type Observer func(Event)

// Option configures a Store.
type Option func(*Store)

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithIDFunc overrides the identifier generator.
func WithIDFunc(fn func() string) Option {
	return func(s *Store) { s.newID = fn }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// Store holds notes newest first, folders in creation order and the
// current selection.
type Store struct {
	mu       sync.RWMutex
	notes    []*models.Note
	folders  []*models.Folder
	selected string

	emitMu    sync.Mutex
	observers []Observer

	now    func() time.Time
	newID  func() string
	logger *slog.Logger
}

var _ editor.Collection = (*Store)(nil)

// New creates an empty store.
func New(opts ...Option) *Store {
	s := &Store{
		now:    time.Now,
		newID:  uuid.NewString,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Subscribe registers an observer.
func (s *Store) Subscribe(o Observer) {
	s.emitMu.Lock()
	s.observers = append(s.observers, o)
	s.emitMu.Unlock()
}

// unlockAndEmit releases the write lock and then delivers events. emitMu is
// taken before the write lock is released so deliveries keep mutation order.
func (s *Store) unlockAndEmit(events ...Event) {
	s.emitMu.Lock()
	s.mu.Unlock()
	defer s.emitMu.Unlock()
	for _, ev := range events {
		for _, o := range s.observers {
			o(ev)
		}
	}
}

func (s *Store) indexOf(id string) int {
	for i, n := range s.notes {
		if n.ID == id {
			return i
		}
	}
	return -1
}

func notFound(what, id string) error {
	return fmt.Errorf("%s %s: %w", what, id, apperr.ErrNotFound)
}

// Get returns a copy of the note with the given id.
func (s *Store) Get(id string) (*models.Note, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i := s.indexOf(id)
	if i < 0 {
		return nil, notFound("note", id)
	}
	return s.notes[i].Clone(), nil
}

// List returns copies of every note, newest first.
func (s *Store) List() []*models.Note {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.Note, len(s.notes))
	for i, n := range s.notes {
		out[i] = n.Clone()
	}
	return out
}

// Len returns the number of notes.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.notes)
}

// Filter returns notes whose title or content contains query, ignoring
// case. An empty query matches everything.
func (s *Store) Filter(query string) []*models.Note {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return s.List()
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.Note
	for _, n := range s.notes {
		if matches(n, q) {
			out = append(out, n.Clone())
		}
	}
	return out
}

func matches(n *models.Note, lowerQuery string) bool {
	return strings.Contains(strings.ToLower(n.Title), lowerQuery) ||
		strings.Contains(strings.ToLower(n.Content), lowerQuery)
}

// Targets lists every note as a backlink target, newest first.
func (s *Store) Targets() []backlink.Target {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]backlink.Target, len(s.notes))
	for i, n := range s.notes {
		out[i] = backlink.Target{ID: n.ID, Title: n.Title}
	}
	return out
}

// Resolver builds a backlink resolver over the current titles.
func (s *Store) Resolver() *backlink.Resolver {
	return backlink.NewResolver(s.Targets())
}

// Create adds an empty one-line note at the front of the list and selects it.
func (s *Store) Create(title string) *models.Note {
	title = strings.TrimSpace(title)
	if title == "" {
		title = DefaultTitle
	}
	n := models.NewNote(s.newID(), title, s.now())

	s.mu.Lock()
	s.notes = append([]*models.Note{n}, s.notes...)
	s.selected = n.ID
	out := n.Clone()
	s.unlockAndEmit(
		Event{Kind: NoteCreated, ID: n.ID, Note: out.Clone()},
		Event{Kind: NoteSelected, ID: n.ID, Note: out.Clone()},
	)
	s.logger.Debug("note created", slog.String("id", n.ID), slog.String("title", title))
	return out
}

// Apply carries out an editor action and returns the affected note.
func (s *Store) Apply(a editor.Action) (*models.Note, error) {
	switch act := a.(type) {
	case editor.EditAction:
		if act.Note == nil {
			return nil, fmt.Errorf("edit without note: %w", apperr.ErrInvalid)
		}
		return s.update(act.Note.ID, func(n *models.Note) error {
			n.Lines = append([]string(nil), act.Note.Lines...)
			return nil
		})
	case editor.NavigateAction:
		return s.Select(act.ID)
	case editor.CreateAction:
		return s.Create(act.Title), nil
	default:
		return nil, fmt.Errorf("unknown action %T: %w", a, apperr.ErrInvalid)
	}
}

// update mutates the stored note with fn, recomputes derived fields and
// emits NoteUpdated. An error from fn aborts the change.
func (s *Store) update(id string, fn func(n *models.Note) error) (*models.Note, error) {
	s.mu.Lock()
	i := s.indexOf(id)
	if i < 0 {
		s.mu.Unlock()
		return nil, notFound("note", id)
	}
	n := s.notes[i].Clone()
	if err := fn(n); err != nil {
		s.mu.Unlock()
		return nil, err
	}
	n.RecomputeDerived(s.now())
	s.notes[i] = n
	out := n.Clone()
	s.unlockAndEmit(Event{Kind: NoteUpdated, ID: id, Note: out.Clone()})
	return out, nil
}

// Replace swaps the lines of a note. A non-empty ifMatch must equal the
// stored checksum.
func (s *Store) Replace(id string, lines []string, ifMatch string) (*models.Note, error) {
	return s.update(id, func(n *models.Note) error {
		if ifMatch != "" && n.Checksum != ifMatch {
			return fmt.Errorf("note %s: %w", id, apperr.ErrConflict)
		}
		n.Lines = append([]string(nil), lines...)
		return nil
	})
}

// SetTitle renames a note. Backlinks resolve against the new title on the
// next render.
func (s *Store) SetTitle(id, title string) (*models.Note, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, fmt.Errorf("empty title: %w", apperr.ErrInvalid)
	}
	return s.update(id, func(n *models.Note) error {
		n.Title = title
		return nil
	})
}

// Delete removes a note. The selection is cleared when it pointed at it.
func (s *Store) Delete(id string) error {
	s.mu.Lock()
	i := s.indexOf(id)
	if i < 0 {
		s.mu.Unlock()
		return notFound("note", id)
	}
	s.notes = append(s.notes[:i], s.notes[i+1:]...)
	if s.selected == id {
		s.selected = ""
	}
	s.unlockAndEmit(Event{Kind: NoteDeleted, ID: id})
	s.logger.Debug("note deleted", slog.String("id", id))
	return nil
}

// Select makes id the selected note.
func (s *Store) Select(id string) (*models.Note, error) {
	s.mu.Lock()
	i := s.indexOf(id)
	if i < 0 {
		s.mu.Unlock()
		return nil, notFound("note", id)
	}
	s.selected = id
	out := s.notes[i].Clone()
	s.unlockAndEmit(Event{Kind: NoteSelected, ID: id, Note: out.Clone()})
	return out, nil
}

// Selected returns the selected note, if any.
func (s *Store) Selected() (*models.Note, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.selected == "" {
		return nil, false
	}
	i := s.indexOf(s.selected)
	if i < 0 {
		return nil, false
	}
	return s.notes[i].Clone(), true
}

// Put inserts n or replaces the note with the same id, keeping its position.
// New notes go to the front. It reports whether the note was new.
func (s *Store) Put(n *models.Note) bool {
	c := n.Clone()
	c.RecomputeDerived(c.LastModified)

	s.mu.Lock()
	i := s.indexOf(c.ID)
	kind := NoteUpdated
	if i < 0 {
		kind = NoteCreated
		s.notes = append([]*models.Note{c}, s.notes...)
	} else {
		s.notes[i] = c
	}
	s.unlockAndEmit(Event{Kind: kind, ID: c.ID, Note: c.Clone()})
	return kind == NoteCreated
}
