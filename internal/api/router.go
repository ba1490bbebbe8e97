package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/neuralnotes/internal/editor"
	"github.com/starford/neuralnotes/internal/index"
	"github.com/starford/neuralnotes/internal/markdown"
	"github.com/starford/neuralnotes/internal/notestore"
)

// Deps are the collaborators the API is built from. Index and Events may
// be nil.
type Deps struct {
	Store    *notestore.Store
	Sessions *editor.Manager
	Renderer *markdown.Renderer
	Index    index.NoteIndex
	Events   http.Handler
}

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
func NewRouter(d Deps, authEnabled bool, token string) chi.Router {
	h := NewHandler(d.Store, d.Index, d.Renderer)
	sh := NewSessionHandler(d.Sessions, d.Store, d.Renderer)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	r.Route("/notes", func(r chi.Router) {
		r.Get("/", h.ListNotes)
		r.Post("/", h.CreateNote)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.GetNote)
			r.Patch("/", h.PatchNote)
			r.Put("/", h.UpdateNote)
			r.Delete("/", h.DeleteNote)
			r.Get("/render", h.RenderNote)
			r.Post("/select", h.SelectNote)
			r.Post("/tags", h.AddTag)
			r.Get("/tags/suggest", h.SuggestTags)
			r.Delete("/tags/{tag}", h.RemoveTag)
		})
	})
	r.Get("/selected", h.Selected)
	r.Get("/tags", h.ListTags)

	r.Get("/folders", h.ListFolders)
	r.Post("/folders", h.CreateFolder)
	r.Post("/folders/{id}/toggle", h.ToggleFolder)
	r.Get("/sidebar", h.Sidebar)

	r.Post("/backlinks/open", h.OpenBacklink)
	r.Get("/search", h.Search)
	r.Get("/graph", h.Graph)
	r.Get("/highlight.css", h.HighlightCSS)

	r.Route("/sessions", func(r chi.Router) {
		r.Post("/", sh.Open)
		r.Get("/{id}", sh.Get)
		r.Post("/{id}/ops", sh.Op)
		r.Post("/{id}/caret", sh.Caret)
		r.Delete("/{id}", sh.Close)
	})

	// SSE endpoint (protected by same auth middleware).
	if d.Events != nil {
		r.Get("/events", d.Events.ServeHTTP)
	}

	return r
}
