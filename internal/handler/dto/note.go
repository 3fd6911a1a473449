package dto

import (
	"time"

	"github.com/notesd/notesd/internal/model"
)

// CreateNoteRequest represents the request body for creating a note.
type CreateNoteRequest struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

// UpdateNoteRequest is a partial update; absent fields are left untouched.
// PUT and PATCH share it.
type UpdateNoteRequest struct {
	Title      *string `json:"title,omitempty"`
	Content    *string `json:"content,omitempty"`
	IsArchived *bool   `json:"is_archived,omitempty"`
}

// Patch converts the request into a model.NotePatch.
func (r UpdateNoteRequest) Patch() model.NotePatch {
	return model.NotePatch{
		Title:      r.Title,
		Content:    r.Content,
		IsArchived: r.IsArchived,
	}
}

// ShareNoteRequest is the optional body of the share call.
type ShareNoteRequest struct {
	ExpiresInHours *int `json:"expires_in_hours,omitempty"`
}

// NoteResponse represents a note in owner-facing responses.
type NoteResponse struct {
	ID             string     `json:"id"`
	Title          string     `json:"title"`
	Content        string     `json:"content"`
	IsArchived     bool       `json:"is_archived"`
	IsPublic       bool       `json:"is_public"`
	PublicSlug     *string    `json:"public_slug"`
	ShareExpiresAt *time.Time `json:"share_expires_at"`
	Version        int        `json:"version"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// ToNoteResponse converts a model.Note to NoteResponse.
func ToNoteResponse(n *model.Note) NoteResponse {
	return NoteResponse{
		ID:             n.ID,
		Title:          n.Title,
		Content:        n.Content,
		IsArchived:     n.IsArchived,
		IsPublic:       n.IsPublic,
		PublicSlug:     n.PublicSlug,
		ShareExpiresAt: n.ShareExpiresAt,
		Version:        n.Version,
		CreatedAt:      n.CreatedAt,
		UpdatedAt:      n.UpdatedAt,
	}
}

// ToNoteListResponse converts notes, keeping an empty list as [] rather than null.
func ToNoteListResponse(notes []*model.Note) []NoteResponse {
	out := make([]NoteResponse, 0, len(notes))
	for _, n := range notes {
		out = append(out, ToNoteResponse(n))
	}
	return out
}

// ShareResponse is returned by the share call.
type ShareResponse struct {
	PublicURL string     `json:"public_url"`
	Slug      string     `json:"slug"`
	ExpiresAt *time.Time `json:"expires_at"`
}
