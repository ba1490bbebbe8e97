package api

import (
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/starford/neuralnotes/internal/editor"
	"github.com/starford/neuralnotes/internal/index"
	"github.com/starford/neuralnotes/internal/markdown"
	"github.com/starford/neuralnotes/internal/models"
	"github.com/starford/neuralnotes/internal/notestore"
)

// Handler holds the note, folder, search and graph handlers.
type Handler struct {
	store    *notestore.Store
	index    index.NoteIndex
	renderer *markdown.Renderer
}

// NewHandler creates a new Handler. idx may be nil, in which case search,
// graph and backlinks report empty results.
func NewHandler(store *notestore.Store, idx index.NoteIndex, renderer *markdown.Renderer) *Handler {
	return &Handler{store: store, index: idx, renderer: renderer}
}

func noteID(r *http.Request) string {
	return chi.URLParam(r, "id")
}

// etag quotes a checksum for the ETag header.
func etag(checksum string) string {
	return `"` + checksum + `"`
}

// ListNotes handles GET /api/notes.
//
//	@Summary		List notes, newest first
//	@Tags			notes
//	@Produce		json
//	@Param			q		query		string	false	"Case-insensitive match on title or content"
//	@Param			folder	query		string	false	"Folder id, or 'uncategorized'"
//	@Success		200		{object}	NoteListResponse
//	@Security		BearerAuth
//	@Router			/notes [get]
func (h *Handler) ListNotes(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	notes := h.store.Filter(q.Get("q"))
	if folder := q.Get("folder"); folder != "" {
		notes = inFolder(notes, folder)
	}
	writeJSON(w, http.StatusOK, NoteListResponse{Notes: notes, Total: len(notes)})
}

func inFolder(notes []*models.Note, folder string) []*models.Note {
	if folder == notestore.Uncategorized {
		folder = ""
	}
	out := make([]*models.Note, 0, len(notes))
	for _, n := range notes {
		if n.FolderID == folder {
			out = append(out, n)
		}
	}
	return out
}

// GetNote handles GET /api/notes/{id}.
//
//	@Summary		Get a single note with its backlinks
//	@Tags			notes
//	@Produce		json
//	@Param			id	path		string	true	"Note id"
//	@Success		200	{object}	NoteDetail
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/notes/{id} [get]
func (h *Handler) GetNote(w http.ResponseWriter, r *http.Request) {
	id := noteID(r)
	n, err := h.store.Get(id)
	if err != nil {
		writeError(w, err, "get note", slog.String("id", id))
		return
	}
	refs := []index.NoteRef{}
	if h.index != nil {
		if refs, err = h.index.Backlinks(n.Title); err != nil {
			writeError(w, err, "backlinks", slog.String("id", id))
			return
		}
	}
	w.Header().Set("ETag", etag(n.Checksum))
	writeJSON(w, http.StatusOK, NoteDetail{Note: n, Backlinks: refs})
}

// CreateNote handles POST /api/notes.
//
//	@Summary		Create a note and select it
//	@Tags			notes
//	@Accept			json
//	@Produce		json
//	@Param			body	body		CreateNoteRequest	true	"Note to create"
//	@Success		201		{object}	models.Note
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/notes [post]
func (h *Handler) CreateNote(w http.ResponseWriter, r *http.Request) {
	var req CreateNoteRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.FolderID != "" && req.FolderID != notestore.Uncategorized {
		if _, err := h.store.Folder(req.FolderID); err != nil {
			writeError(w, err, "create note")
			return
		}
	}

	n := h.store.Create(req.Title)
	id := n.ID
	var err error
	if req.FolderID != "" {
		if n, err = h.store.MoveToFolder(id, req.FolderID); err != nil {
			writeError(w, err, "create note", slog.String("id", id))
			return
		}
	}
	if req.Content != "" {
		if n, err = h.store.Replace(id, models.SplitLines(req.Content), ""); err != nil {
			writeError(w, err, "create note", slog.String("id", id))
			return
		}
	}
	w.Header().Set("ETag", etag(n.Checksum))
	writeJSON(w, http.StatusCreated, n)
}

// PatchNote handles PATCH /api/notes/{id}.
//
//	@Summary		Rename a note or move it to a folder
//	@Tags			notes
//	@Accept			json
//	@Produce		json
//	@Param			id		path		string				true	"Note id"
//	@Param			body	body		PatchNoteRequest	true	"Fields to change"
//	@Success		200		{object}	models.Note
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/notes/{id} [patch]
func (h *Handler) PatchNote(w http.ResponseWriter, r *http.Request) {
	id := noteID(r)
	var req PatchNoteRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	var (
		n   *models.Note
		err error
	)
	if req.Title != nil {
		if n, err = h.store.SetTitle(id, *req.Title); err != nil {
			writeError(w, err, "rename note", slog.String("id", id))
			return
		}
	}
	if req.FolderID != nil {
		if n, err = h.store.MoveToFolder(id, *req.FolderID); err != nil {
			writeError(w, err, "move note", slog.String("id", id))
			return
		}
	}
	writeJSON(w, http.StatusOK, n)
}

// UpdateNote handles PUT /api/notes/{id}.
//
//	@Summary		Replace a note's content with optimistic concurrency
//	@Tags			notes
//	@Accept			json
//	@Produce		json
//	@Param			id			path		string				true	"Note id"
//	@Param			If-Match	header		string				false	"Checksum the change is based on"
//	@Param			body		body		UpdateNoteRequest	true	"New content"
//	@Success		200			{object}	models.Note
//	@Failure		404			{object}	errResponse
//	@Failure		409			{object}	errResponse
//	@Security		BearerAuth
//	@Router			/notes/{id} [put]
func (h *Handler) UpdateNote(w http.ResponseWriter, r *http.Request) {
	id := noteID(r)
	var req UpdateNoteRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	ifMatch := strings.Trim(r.Header.Get("If-Match"), `"`)

	n, err := h.store.Replace(id, models.SplitLines(req.Content), ifMatch)
	if err != nil {
		writeError(w, err, "update note", slog.String("id", id))
		return
	}
	w.Header().Set("ETag", etag(n.Checksum))
	writeJSON(w, http.StatusOK, n)
}

// DeleteNote handles DELETE /api/notes/{id}.
//
//	@Summary		Delete a note
//	@Tags			notes
//	@Param			id	path	string	true	"Note id"
//	@Success		204	"Note deleted"
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/notes/{id} [delete]
func (h *Handler) DeleteNote(w http.ResponseWriter, r *http.Request) {
	id := noteID(r)
	if err := h.store.Delete(id); err != nil {
		writeError(w, err, "delete note", slog.String("id", id))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// RenderNote handles GET /api/notes/{id}/render.
//
//	@Summary		Render a note read-only
//	@Tags			notes
//	@Produce		json
//	@Param			id	path		string	true	"Note id"
//	@Success		200	{object}	RenderResponse
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/notes/{id}/render [get]
func (h *Handler) RenderNote(w http.ResponseWriter, r *http.Request) {
	id := noteID(r)
	n, err := h.store.Get(id)
	if err != nil {
		writeError(w, err, "render note", slog.String("id", id))
		return
	}
	views := h.renderer.Note(n, h.store.Resolver())
	writeJSON(w, http.StatusOK, RenderResponse{ID: n.ID, Items: views, HTML: markdown.HTML(views)})
}

// AddTag handles POST /api/notes/{id}/tags.
func (h *Handler) AddTag(w http.ResponseWriter, r *http.Request) {
	id := noteID(r)
	var req TagRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	n, err := h.store.AddTag(id, req.Tag)
	if err != nil {
		writeError(w, err, "add tag", slog.String("id", id))
		return
	}
	writeJSON(w, http.StatusOK, n)
}

// RemoveTag handles DELETE /api/notes/{id}/tags/{tag}.
func (h *Handler) RemoveTag(w http.ResponseWriter, r *http.Request) {
	id := noteID(r)
	tag, err := url.PathUnescape(chi.URLParam(r, "tag"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid tag"))
		return
	}
	n, err := h.store.RemoveTag(id, tag)
	if err != nil {
		writeError(w, err, "remove tag", slog.String("id", id))
		return
	}
	writeJSON(w, http.StatusOK, n)
}

// SuggestTags handles GET /api/notes/{id}/tags/suggest.
//
//	@Summary		Suggest existing tags for a note
//	@Tags			tags
//	@Produce		json
//	@Param			id	path		string	true	"Note id"
//	@Param			q	query		string	false	"Tag prefix or fragment"
//	@Success		200	{object}	map[string][]string
//	@Security		BearerAuth
//	@Router			/notes/{id}/tags/suggest [get]
func (h *Handler) SuggestTags(w http.ResponseWriter, r *http.Request) {
	id := noteID(r)
	tags, err := h.store.SuggestTags(id, r.URL.Query().Get("q"))
	if err != nil {
		writeError(w, err, "suggest tags", slog.String("id", id))
		return
	}
	writeJSON(w, http.StatusOK, map[string][]string{"suggestions": tags})
}

// ListTags handles GET /api/tags.
func (h *Handler) ListTags(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string][]string{"tags": h.store.AllTags()})
}

// SelectNote handles POST /api/notes/{id}/select.
func (h *Handler) SelectNote(w http.ResponseWriter, r *http.Request) {
	id := noteID(r)
	n, err := h.store.Select(id)
	if err != nil {
		writeError(w, err, "select note", slog.String("id", id))
		return
	}
	writeJSON(w, http.StatusOK, n)
}

// Selected handles GET /api/selected.
func (h *Handler) Selected(w http.ResponseWriter, _ *http.Request) {
	n, ok := h.store.Selected()
	if !ok {
		writeJSON(w, http.StatusNotFound, errorBody("no note selected"))
		return
	}
	writeJSON(w, http.StatusOK, n)
}

// ListFolders handles GET /api/folders.
func (h *Handler) ListFolders(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"folders": h.store.Folders()})
}

// CreateFolder handles POST /api/folders.
//
//	@Summary		Create a folder
//	@Tags			folders
//	@Accept			json
//	@Produce		json
//	@Param			body	body		CreateFolderRequest	true	"Folder to create"
//	@Success		201		{object}	models.Folder
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/folders [post]
func (h *Handler) CreateFolder(w http.ResponseWriter, r *http.Request) {
	var req CreateFolderRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	f, err := h.store.CreateFolder(req.Name, req.Color)
	if err != nil {
		writeError(w, err, "create folder", slog.String("name", req.Name))
		return
	}
	writeJSON(w, http.StatusCreated, f)
}

// ToggleFolder handles POST /api/folders/{id}/toggle.
func (h *Handler) ToggleFolder(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	f, err := h.store.ToggleFolder(id)
	if err != nil {
		writeError(w, err, "toggle folder", slog.String("id", id))
		return
	}
	writeJSON(w, http.StatusOK, f)
}

// Sidebar handles GET /api/sidebar.
//
//	@Summary		Notes grouped by folder, uncategorized last
//	@Tags			folders
//	@Produce		json
//	@Param			q	query		string	false	"Filter applied before grouping"
//	@Success		200	{object}	SidebarResponse
//	@Security		BearerAuth
//	@Router			/sidebar [get]
func (h *Handler) Sidebar(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, SidebarResponse{Groups: h.store.NotesByFolder(r.URL.Query().Get("q"))})
}

// OpenBacklink handles POST /api/backlinks/open.
//
//	@Summary		Follow a [[Title]] link, creating the note when missing
//	@Tags			backlinks
//	@Accept			json
//	@Produce		json
//	@Param			body	body		OpenBacklinkRequest	true	"Link title"
//	@Success		200		{object}	editor.OpenResult
//	@Success		201		{object}	editor.OpenResult
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/backlinks/open [post]
func (h *Handler) OpenBacklink(w http.ResponseWriter, r *http.Request) {
	var req OpenBacklinkRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	res, err := editor.OpenBacklink(h.store, req.Title)
	if err != nil {
		writeError(w, err, "open backlink", slog.String("title", req.Title))
		return
	}
	status := http.StatusOK
	if res.Created {
		status = http.StatusCreated
	}
	writeJSON(w, status, res)
}

// Search handles GET /api/search.
//
//	@Summary		Full-text search across notes
//	@Tags			search
//	@Produce		json
//	@Param			q		query		string	true	"Search query"
//	@Param			limit	query		int		false	"Max results"
//	@Success		200		{object}	SearchResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/search [get]
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if q == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("query parameter 'q' is required"))
		return
	}
	if h.index == nil {
		writeJSON(w, http.StatusOK, SearchResponse{Results: []index.SearchResult{}})
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	results, err := h.index.Search(q, limit)
	if err != nil {
		writeError(w, err, "search", slog.String("query", q))
		return
	}
	writeJSON(w, http.StatusOK, SearchResponse{Results: results})
}

// Graph handles GET /api/graph.
//
//	@Summary		Get the link graph
//	@Tags			graph
//	@Produce		json
//	@Success		200	{object}	GraphResponse
//	@Security		BearerAuth
//	@Router			/graph [get]
func (h *Handler) Graph(w http.ResponseWriter, _ *http.Request) {
	if h.index == nil {
		writeJSON(w, http.StatusOK, GraphResponse{Nodes: []index.GraphNode{}, Links: []index.GraphLink{}})
		return
	}
	nodes, links, err := h.index.Graph()
	if err != nil {
		writeError(w, err, "graph")
		return
	}
	writeJSON(w, http.StatusOK, GraphResponse{Nodes: nodes, Links: links})
}

// HighlightCSS handles GET /api/highlight.css, the stylesheet for rendered
// code blocks.
func (h *Handler) HighlightCSS(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/css; charset=utf-8")
	if err := h.renderer.WriteCSS(w); err != nil {
		slog.Error("write css failed", slog.String("error", err.Error()))
	}
}
