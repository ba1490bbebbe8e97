package editor

import (
	"fmt"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/starford/neuralnotes/internal/backlink"
	"github.com/starford/neuralnotes/internal/models"
)

// Action is a request from the editor to the collection that owns its note.
// Edits and navigation are distinct actions so the collection never has to
// guess intent from object identity.
type Action interface {
	action()
}

// EditAction replaces the stored note with Note.
type EditAction struct {
	Note *models.Note
}

// NavigateAction selects an existing note.
type NavigateAction struct {
	ID string
}

// CreateAction creates an empty note titled Title and selects it.
type CreateAction struct {
	Title string
}

func (EditAction) action()     {}
func (NavigateAction) action() {}
func (CreateAction) action()   {}

// Collection is the owner of every note, as seen by an editor session.
type Collection interface {
	Get(id string) (*models.Note, error)
	Apply(a Action) (*models.Note, error)
	Targets() []backlink.Target
}

// CaretPlacer is provided by the host to move the real caret once its view
// reflects a committed mutation.
type CaretPlacer func(Caret)

// Suggestions is the backlink autocomplete state of a session.
type Suggestions struct {
	Line  int               `json:"line"`
	Query string            `json:"query"`
	Items []backlink.Target `json:"items"`
}

// Visible reports whether the suggestion list should be shown.
func (s *Suggestions) Visible() bool {
	return s != nil && len(s.Items) > 0
}

// SessionOption configures a Session.
type SessionOption func(*Session)

// WithCaretPlacer installs the host callback run by FlushCaret.
func WithCaretPlacer(p CaretPlacer) SessionOption {
	return func(s *Session) { s.place = p }
}

// WithSuggestionLimit caps the number of backlink suggestions.
func WithSuggestionLimit(n int) SessionOption {
	return func(s *Session) {
		if n > 0 {
			s.limit = n
		}
	}
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) SessionOption {
	return func(s *Session) { s.now = now }
}

// Session edits one note on behalf of one host. It keeps a private working
// copy and pushes every committed mutation to the collection.
type Session struct {
	mu sync.Mutex

	id      string
	noteID  string
	coll    Collection
	doc     *models.Note
	ranges  []models.CodeBlockRange
	focus   FocusState
	pending *Caret
	caret   Caret
	suggest *Suggestions

	place CaretPlacer
	limit int
	now   func() time.Time
}

// NewSession opens a session on the note noteID.
func NewSession(id string, coll Collection, noteID string, opts ...SessionOption) (*Session, error) {
	doc, err := coll.Get(noteID)
	if err != nil {
		return nil, fmt.Errorf("editor: open %s: %w", noteID, err)
	}
	s := &Session{
		id:     id,
		noteID: doc.ID,
		coll:   coll,
		doc:    doc,
		focus:  NoFocus(),
		limit:  5,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.ranges = ScanCodeBlocks(doc.Lines)
	return s, nil
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// NoteID returns the id of the edited note. It does not take the session
// lock, so store observers may call it.
func (s *Session) NoteID() string { return s.noteID }

// State is a consistent snapshot of a session.
type State struct {
	SessionID   string                  `json:"session_id"`
	Note        *models.Note            `json:"note"`
	Ranges      []models.CodeBlockRange `json:"code_blocks"`
	Focus       FocusState              `json:"focus"`
	Caret       Caret                   `json:"caret"`
	Pending     *Caret                  `json:"pending_caret,omitempty"`
	Suggestions *Suggestions            `json:"suggestions,omitempty"`
}

// Decider returns a render decider for the snapshot.
func (st State) Decider() Decider {
	return Decider{Lines: st.Note.Lines, Ranges: st.Ranges, Focus: st.Focus}
}

// Snapshot refreshes from the collection and returns the current state.
func (s *Session) Snapshot() (State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.refresh(); err != nil {
		return State{}, err
	}
	return s.stateLocked(), nil
}

func (s *Session) stateLocked() State {
	st := State{
		SessionID: s.id,
		Note:      s.doc.Clone(),
		Ranges:    append([]models.CodeBlockRange(nil), s.ranges...),
		Focus:     s.focus,
		Caret:     s.caret,
	}
	if s.pending != nil {
		p := *s.pending
		st.Pending = &p
	}
	if s.suggest.Visible() {
		sg := *s.suggest
		sg.Items = append([]backlink.Target(nil), s.suggest.Items...)
		st.Suggestions = &sg
	}
	return st
}

// refresh adopts the stored note when it changed outside this session.
func (s *Session) refresh() error {
	latest, err := s.coll.Get(s.doc.ID)
	if err != nil {
		return err
	}
	if latest.Checksum == s.doc.Checksum {
		return nil
	}
	s.doc = latest
	s.ranges = ScanCodeBlocks(s.doc.Lines)
	if s.focus.Editing >= len(s.doc.Lines) {
		s.focus.Editing = NoLine
	}
	if s.focus.Focused >= len(s.doc.Lines) {
		s.focus.Focused = NoLine
	}
	if s.suggest != nil && s.suggest.Line >= len(s.doc.Lines) {
		s.suggest = nil
	}
	return nil
}

// commit runs the update pipeline after a structural change: derived fields,
// code-block ranges, then the collection.
func (s *Session) commit(lines []string) error {
	s.doc.Lines = lines
	s.doc.RecomputeDerived(s.now())
	s.ranges = ScanCodeBlocks(s.doc.Lines)
	stored, err := s.coll.Apply(EditAction{Note: s.doc.Clone()})
	if err != nil {
		return err
	}
	s.doc = stored
	s.ranges = ScanCodeBlocks(s.doc.Lines)
	return nil
}

// requestCaret records phase one of the caret protocol. A newer request
// replaces an unflushed one.
func (s *Session) requestCaret(c Caret) {
	s.focus.Editing = c.Line
	s.pending = &c
}

// FlushCaret runs phase two: the pending caret is clamped to the current
// document, becomes the focused line and is handed to the host placer.
func (s *Session) FlushCaret() (Caret, bool) {
	s.mu.Lock()
	if s.pending == nil {
		s.mu.Unlock()
		return Caret{}, false
	}
	c := s.pending.Clamp(s.doc.Lines)
	s.pending = nil
	s.focus.Focused = c.Line
	s.caret = c
	place := s.place
	s.mu.Unlock()

	if place != nil {
		place(c)
	}
	return c, true
}

func (s *Session) do(fn func() error) (State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.refresh(); err != nil {
		return State{}, err
	}
	if err := fn(); err != nil {
		return State{}, err
	}
	return s.stateLocked(), nil
}

// Split handles Enter at offset of line i.
func (s *Session) Split(i, offset int) (State, error) {
	return s.do(func() error {
		s.suggest = nil
		lines, c, ok := SplitLine(s.doc.Lines, i, offset)
		if !ok {
			return nil
		}
		if err := s.commit(lines); err != nil {
			return err
		}
		s.requestCaret(c)
		return nil
	})
}

// Backspace handles Backspace at offset of line i. Only a press at the start
// of a line other than the first changes structure.
func (s *Session) Backspace(i, offset int) (State, error) {
	return s.do(func() error {
		if offset != 0 {
			return nil
		}
		return s.mergeLocked(i)
	})
}

// Merge joins line i onto line i-1.
func (s *Session) Merge(i int) (State, error) {
	return s.do(func() error { return s.mergeLocked(i) })
}

func (s *Session) mergeLocked(i int) error {
	lines, c, ok := MergeLine(s.doc.Lines, i)
	if !ok {
		return nil
	}
	s.suggest = nil
	if err := s.commit(lines); err != nil {
		return err
	}
	s.requestCaret(c)
	return nil
}

// Navigate handles an arrow key pressed at offset of line i.
func (s *Session) Navigate(i, offset int, dir Direction) (State, error) {
	return s.do(func() error {
		c, ok := Move(s.doc.Lines, Caret{Line: i, Offset: offset}, dir)
		if ok {
			s.requestCaret(c)
		}
		return nil
	})
}

// InsertAt inserts a line of text before index i.
func (s *Session) InsertAt(i int, text string) (State, error) {
	return s.do(func() error {
		s.suggest = nil
		return s.commit(InsertLine(s.doc.Lines, i, text))
	})
}

// DeleteAt removes line i unless it is the only line.
func (s *Session) DeleteAt(i int) (State, error) {
	return s.do(func() error {
		lines, ok := DeleteLine(s.doc.Lines, i)
		if !ok {
			return nil
		}
		s.suggest = nil
		return s.commit(lines)
	})
}

// UpdateLine replaces the text of line i and refreshes backlink suggestions.
func (s *Session) UpdateLine(i int, text string) (State, error) {
	return s.do(func() error { return s.updateLocked(i, text) })
}

func (s *Session) updateLocked(i int, text string) error {
	if i < 0 || i >= len(s.doc.Lines) {
		return nil
	}
	lines := append([]string(nil), s.doc.Lines...)
	lines[i] = text
	if err := s.commit(lines); err != nil {
		return err
	}
	s.checkSuggestions(i, text)
	return nil
}

func (s *Session) checkSuggestions(i int, text string) {
	query, items, ok := backlink.Suggest(text, s.coll.Targets(), s.doc.ID, s.limit)
	if !ok {
		s.suggest = nil
		return
	}
	s.suggest = &Suggestions{Line: i, Query: query, Items: items}
}

// AcceptSuggestion completes the open [[ token with title and asks for the
// caret right after the inserted link.
func (s *Session) AcceptSuggestion(title string) (State, error) {
	return s.do(func() error {
		if s.suggest == nil {
			return nil
		}
		i := s.suggest.Line
		if i >= len(s.doc.Lines) {
			s.suggest = nil
			return nil
		}
		updated := backlink.Complete(s.doc.Lines[i], title)
		if err := s.updateLocked(i, updated); err != nil {
			return err
		}
		s.suggest = nil
		s.requestCaret(Caret{Line: i, Offset: utf8.RuneCountInString(updated)})
		return nil
	})
}

// DismissSuggestions hides the suggestion list.
func (s *Session) DismissSuggestions() {
	s.mu.Lock()
	s.suggest = nil
	s.mu.Unlock()
}

// ToggleCheckbox flips the checkbox on line i.
func (s *Session) ToggleCheckbox(i int) (State, error) {
	return s.do(func() error { return s.toggleLocked(i) })
}

func (s *Session) toggleLocked(i int) error {
	if i < 0 || i >= len(s.doc.Lines) {
		return nil
	}
	line, ok := ToggleCheckbox(s.doc.Lines[i])
	if !ok {
		return nil
	}
	lines := append([]string(nil), s.doc.Lines...)
	lines[i] = line
	return s.commit(lines)
}

// Focus marks line i as edited and focused.
func (s *Session) Focus(i int) (State, error) {
	return s.do(func() error {
		if i < 0 || i >= len(s.doc.Lines) {
			return nil
		}
		s.focus = FocusState{Editing: i, Focused: i}
		return nil
	})
}

// Blur releases line i. Editing is cleared only if it still points at i, so a
// focus that already moved elsewhere survives a late blur.
func (s *Session) Blur(i int) (State, error) {
	return s.do(func() error {
		if s.focus.Editing == i {
			s.focus.Editing = NoLine
		}
		s.focus.Focused = NoLine
		return nil
	})
}

// ClickKind identifies what part of a rendered line was clicked.
type ClickKind string

const (
	ClickText     ClickKind = "text"
	ClickCheckbox ClickKind = "checkbox"
	ClickBacklink ClickKind = "backlink"
)

// Click describes a click on rendered markup.
type Click struct {
	Kind   ClickKind `json:"kind"`
	Title  string    `json:"title,omitempty"`
	Offset int       `json:"offset,omitempty"`
}

// OpenResult is the outcome of following a backlink.
type OpenResult struct {
	Action  string       `json:"action"`
	Note    *models.Note `json:"note"`
	Created bool         `json:"created"`
}

// ClickRendered routes a click on rendered line i: checkboxes toggle,
// backlinks open their target, anything else switches the line to editing.
// Clicking a collapsed code block edits its first content line.
func (s *Session) ClickRendered(i int, click Click) (State, *OpenResult, error) {
	if click.Kind == ClickBacklink {
		res, err := s.OpenBacklink(click.Title)
		if err != nil {
			return State{}, nil, err
		}
		st, err := s.Snapshot()
		return st, res, err
	}
	st, err := s.do(func() error {
		if click.Kind == ClickCheckbox {
			return s.toggleLocked(i)
		}
		target, offset := i, click.Offset
		if r, ok := rangeAt(s.ranges, i); ok {
			target, offset = min(r.Start+1, len(s.doc.Lines)-1), 0
		}
		s.focus = FocusState{Editing: target, Focused: target}
		s.requestCaret(Caret{Line: target, Offset: offset})
		return nil
	})
	return st, nil, err
}

// ClickCodeBlock switches a collapsed code block starting at start to editing.
func (s *Session) ClickCodeBlock(start int) (State, error) {
	st, _, err := s.ClickRendered(start, Click{Kind: ClickText})
	return st, err
}

// OpenBacklink follows [[title]]: an existing note is selected, a missing
// one is created with that title and selected.
func (s *Session) OpenBacklink(title string) (*OpenResult, error) {
	return OpenBacklink(s.coll, title)
}

// OpenBacklink resolves title against coll outside of any session.
func OpenBacklink(coll Collection, title string) (*OpenResult, error) {
	resolver := backlink.NewResolver(coll.Targets())
	if t, ok := resolver.Lookup(title); ok {
		n, err := coll.Apply(NavigateAction{ID: t.ID})
		if err != nil {
			return nil, err
		}
		return &OpenResult{Action: "navigate", Note: n}, nil
	}
	n, err := coll.Apply(CreateAction{Title: title})
	if err != nil {
		return nil, err
	}
	return &OpenResult{Action: "create", Note: n, Created: true}, nil
}
