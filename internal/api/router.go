package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/ruin/internal/engine"
)

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
// sseHandler, if non-nil, is mounted at GET /events inside the auth group.
func NewRouter(eng engine.NoteEngine, authEnabled bool, token string, sseHandler http.Handler) chi.Router {
	h := NewHandler(eng)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	// Notes.
	r.Get("/notes", h.SearchNotes)
	r.Post("/notes", h.CreateNote)
	r.Get("/notes/today", h.TodayNotes)
	r.Get("/notes/{id}", h.GetNote)

	// Tags.
	r.Get("/tags", h.ListTags)
	r.Put("/tags/{name}", h.RenameTag)
	r.Delete("/tags/{name}", h.DeleteTag)

	// Saved queries.
	r.Get("/queries", h.ListQueries)
	r.Put("/queries/{name}", h.SaveQuery)
	r.Delete("/queries/{name}", h.DeleteQuery)
	r.Get("/queries/{name}/results", h.RunQuery)

	if sseHandler != nil {
		r.Get("/events", sseHandler.ServeHTTP)
	}

	return r
}
