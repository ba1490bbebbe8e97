package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/neuralnotes/internal/editor"
	"github.com/starford/neuralnotes/internal/markdown"
	"github.com/starford/neuralnotes/internal/notestore"
)

// SessionHandler exposes editor sessions over HTTP. A host opens a session
// per note it edits and drives it with one POST per key press or click.
type SessionHandler struct {
	sessions *editor.Manager
	store    *notestore.Store
	renderer *markdown.Renderer
}

// NewSessionHandler creates a SessionHandler.
func NewSessionHandler(sessions *editor.Manager, store *notestore.Store, renderer *markdown.Renderer) *SessionHandler {
	return &SessionHandler{sessions: sessions, store: store, renderer: renderer}
}

func (h *SessionHandler) response(st editor.State) SessionResponse {
	return SessionResponse{
		State: st,
		Items: h.renderer.Items(st.Decider(), h.store.Resolver()),
	}
}

func (h *SessionHandler) session(w http.ResponseWriter, r *http.Request) (*editor.Session, bool) {
	id := chi.URLParam(r, "id")
	s, err := h.sessions.Get(id)
	if err != nil {
		writeError(w, err, "get session", slog.String("session", id))
		return nil, false
	}
	return s, true
}

// Open handles POST /api/sessions.
//
//	@Summary		Open an editor session on a note
//	@Tags			sessions
//	@Accept			json
//	@Produce		json
//	@Param			body	body		OpenSessionRequest	true	"Note to edit"
//	@Success		201		{object}	SessionResponse
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/sessions [post]
func (h *SessionHandler) Open(w http.ResponseWriter, r *http.Request) {
	var req OpenSessionRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	s, err := h.sessions.Open(req.NoteID)
	if err != nil {
		writeError(w, err, "open session", slog.String("note", req.NoteID))
		return
	}
	st, err := s.Snapshot()
	if err != nil {
		writeError(w, err, "open session", slog.String("note", req.NoteID))
		return
	}
	writeJSON(w, http.StatusCreated, h.response(st))
}

// Get handles GET /api/sessions/{id}.
func (h *SessionHandler) Get(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	st, err := s.Snapshot()
	if err != nil {
		writeError(w, err, "session state", slog.String("session", s.ID()))
		return
	}
	writeJSON(w, http.StatusOK, h.response(st))
}

// Op handles POST /api/sessions/{id}/ops.
//
//	@Summary		Apply one editor operation
//	@Tags			sessions
//	@Accept			json
//	@Produce		json
//	@Param			id		path		string				true	"Session id"
//	@Param			body	body		SessionOpRequest	true	"Operation"
//	@Success		200		{object}	OpResponse
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/sessions/{id}/ops [post]
func (h *SessionHandler) Op(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	var req SessionOpRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	st, opened, err := apply(s, req)
	if err != nil {
		writeError(w, err, "session op", slog.String("session", s.ID()), slog.String("op", req.Op))
		return
	}
	writeJSON(w, http.StatusOK, OpResponse{SessionResponse: h.response(st), Opened: opened})
}

func apply(s *editor.Session, req SessionOpRequest) (editor.State, *editor.OpenResult, error) {
	var (
		st  editor.State
		err error
	)
	switch req.Op {
	case OpSplit:
		st, err = s.Split(req.Line, req.Offset)
	case OpBackspace:
		st, err = s.Backspace(req.Line, req.Offset)
	case OpMerge:
		st, err = s.Merge(req.Line)
	case OpInsert:
		st, err = s.InsertAt(req.Line, req.Text)
	case OpDelete:
		st, err = s.DeleteAt(req.Line)
	case OpUpdate:
		st, err = s.UpdateLine(req.Line, req.Text)
	case OpToggle:
		st, err = s.ToggleCheckbox(req.Line)
	case OpUp, OpDown, OpLeft, OpRight:
		st, err = s.Navigate(req.Line, req.Offset, editor.Direction(req.Op))
	case OpFocus:
		st, err = s.Focus(req.Line)
	case OpBlur:
		st, err = s.Blur(req.Line)
	case OpClick:
		return s.ClickRendered(req.Line, *req.Click)
	case OpSuggestAccept:
		st, err = s.AcceptSuggestion(req.Title)
	case OpSuggestDismiss:
		s.DismissSuggestions()
		st, err = s.Snapshot()
	}
	return st, nil, err
}

// Caret handles POST /api/sessions/{id}/caret. The host calls it once its
// view reflects the last mutation.
func (h *SessionHandler) Caret(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	c, flushed := s.FlushCaret()
	writeJSON(w, http.StatusOK, CaretResponse{Caret: c, Flushed: flushed})
}

// Close handles DELETE /api/sessions/{id}.
func (h *SessionHandler) Close(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	h.sessions.Close(s.ID())
	w.WriteHeader(http.StatusNoContent)
}
