package api

import (
	"time"

	"github.com/starford/ruin/internal/models"
)

// CreateNoteRequest is the request body for creating a note.
type CreateNoteRequest struct {
	Content string `json:"content" example:"Buy milk #errands" validate:"required"`
	Title   string `json:"title,omitempty" example:"Shopping"`
}

// RenameTagRequest is the request body for renaming a tag.
type RenameTagRequest struct {
	Name string `json:"name" example:"chores" validate:"required"`
}

// SaveQueryRequest is the request body for saving a query.
type SaveQueryRequest struct {
	Query string `json:"query" example:"#work && created:this-week" validate:"required"`
}

// NoteDetail is the full note response, including raw file content.
type NoteDetail struct {
	UUID      string    `json:"uuid" validate:"required"`
	Path      string    `json:"path" validate:"required"`
	Title     string    `json:"title,omitempty"`
	Tags      []string  `json:"tags" validate:"required"`
	Content   string    `json:"content" validate:"required"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func noteDetail(n *models.Note) NoteDetail {
	tags := n.Tags
	if tags == nil {
		tags = []string{}
	}
	return NoteDetail{
		UUID:      n.ID,
		Path:      n.Path,
		Title:     n.Title,
		Tags:      tags,
		Content:   string(n.Content),
		CreatedAt: n.CreatedAt,
		UpdatedAt: n.UpdatedAt,
	}
}
