package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/ruin/internal/engine"
	"github.com/starford/ruin/internal/models"
)

// Handler holds API route handlers.
type Handler struct {
	eng engine.NoteEngine
}

// NewHandler creates a new Handler.
func NewHandler(eng engine.NoteEngine) *Handler {
	return &Handler{eng: eng}
}

// SearchNotes handles GET /api/notes?q=.
//
//	@Summary		Search notes with the query language
//	@Tags			notes
//	@Produce		json
//	@Param			q	query		string	true	"Query, e.g. #work && created:this-week"
//	@Success		200	{array}		models.Summary
//	@Failure		400	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/notes [get]
func (h *Handler) SearchNotes(w http.ResponseWriter, r *http.Request) {
	notes, err := h.eng.Search(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		writeError(w, "search", err)
		return
	}
	writeJSON(w, http.StatusOK, models.Summarize(notes))
}

// TodayNotes handles GET /api/notes/today.
//
//	@Summary		Notes created today
//	@Tags			notes
//	@Produce		json
//	@Success		200	{array}	models.Summary
//	@Security		BearerAuth
//	@Router			/notes/today [get]
func (h *Handler) TodayNotes(w http.ResponseWriter, r *http.Request) {
	notes, err := h.eng.Today(r.Context())
	if err != nil {
		writeError(w, "today", err)
		return
	}
	writeJSON(w, http.StatusOK, models.Summarize(notes))
}

// GetNote handles GET /api/notes/{id}.
//
//	@Summary		Get a single note by id
//	@Tags			notes
//	@Produce		json
//	@Param			id	path		string	true	"Note UUID"
//	@Success		200	{object}	NoteDetail
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/notes/{id} [get]
func (h *Handler) GetNote(w http.ResponseWriter, r *http.Request) {
	note, err := h.eng.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, "get note", err)
		return
	}
	writeJSON(w, http.StatusOK, noteDetail(note))
}

// CreateNote handles POST /api/notes.
//
//	@Summary		Create a new note
//	@Tags			notes
//	@Accept			json
//	@Produce		json
//	@Param			body	body		CreateNoteRequest	true	"Note to create"
//	@Success		201		{object}	models.LogResult
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/notes [post]
func (h *Handler) CreateNote(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 10<<20)
	var req CreateNoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	res, err := h.eng.Create(r.Context(), req.Content, req.Title)
	if err != nil {
		writeError(w, "create note", err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

// ListTags handles GET /api/tags.
//
//	@Summary		List tags with note counts
//	@Tags			tags
//	@Produce		json
//	@Success		200	{array}	models.Tag
//	@Security		BearerAuth
//	@Router			/tags [get]
func (h *Handler) ListTags(w http.ResponseWriter, r *http.Request) {
	tags, err := h.eng.Tags(r.Context())
	if err != nil {
		writeError(w, "list tags", err)
		return
	}
	writeJSON(w, http.StatusOK, tags)
}

// RenameTag handles PUT /api/tags/{name}.
//
//	@Summary		Rename or merge a tag
//	@Tags			tags
//	@Accept			json
//	@Param			name	path	string				true	"Current tag name"
//	@Param			body	body	RenameTagRequest	true	"New name"
//	@Success		204
//	@Failure		400	{object}	errResponse
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/tags/{name} [put]
func (h *Handler) RenameTag(w http.ResponseWriter, r *http.Request) {
	var req RenameTagRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	if err := h.eng.RenameTag(r.Context(), chi.URLParam(r, "name"), req.Name); err != nil {
		writeError(w, "rename tag", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// DeleteTag handles DELETE /api/tags/{name}.
//
//	@Summary		Remove a tag from every note
//	@Tags			tags
//	@Param			name	path	string	true	"Tag name"
//	@Success		204
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/tags/{name} [delete]
func (h *Handler) DeleteTag(w http.ResponseWriter, r *http.Request) {
	if err := h.eng.DeleteTag(r.Context(), chi.URLParam(r, "name")); err != nil {
		writeError(w, "delete tag", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListQueries handles GET /api/queries.
//
//	@Summary		List saved queries
//	@Tags			queries
//	@Produce		json
//	@Success		200	{array}	models.SavedQuery
//	@Security		BearerAuth
//	@Router			/queries [get]
func (h *Handler) ListQueries(w http.ResponseWriter, r *http.Request) {
	list, err := h.eng.Queries(r.Context())
	if err != nil {
		writeError(w, "list queries", err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

// SaveQuery handles PUT /api/queries/{name}.
//
//	@Summary		Create or replace a saved query
//	@Tags			queries
//	@Accept			json
//	@Param			name	path	string				true	"Query name"
//	@Param			body	body	SaveQueryRequest	true	"Query text"
//	@Success		204
//	@Failure		400	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/queries/{name} [put]
func (h *Handler) SaveQuery(w http.ResponseWriter, r *http.Request) {
	var req SaveQueryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	if err := h.eng.SaveQuery(r.Context(), chi.URLParam(r, "name"), req.Query); err != nil {
		writeError(w, "save query", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// DeleteQuery handles DELETE /api/queries/{name}.
//
//	@Summary		Delete a saved query
//	@Tags			queries
//	@Param			name	path	string	true	"Query name"
//	@Success		204
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/queries/{name} [delete]
func (h *Handler) DeleteQuery(w http.ResponseWriter, r *http.Request) {
	if err := h.eng.DeleteQuery(r.Context(), chi.URLParam(r, "name")); err != nil {
		writeError(w, "delete query", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// RunQuery handles GET /api/queries/{name}/results.
//
//	@Summary		Run a saved query against the live store
//	@Tags			queries
//	@Produce		json
//	@Param			name	path		string	true	"Query name"
//	@Success		200		{array}		models.Summary
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/queries/{name}/results [get]
func (h *Handler) RunQuery(w http.ResponseWriter, r *http.Request) {
	notes, err := h.eng.RunQuery(r.Context(), chi.URLParam(r, "name"))
	if err != nil {
		writeError(w, "run query", err)
		return
	}
	writeJSON(w, http.StatusOK, models.Summarize(notes))
}
