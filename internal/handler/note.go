package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/notesd/notesd/internal/auth"
	"github.com/notesd/notesd/internal/handler/dto"
	"github.com/notesd/notesd/internal/service"
)

// errBadIfMatch is returned for an If-Match value that names no version.
var errBadIfMatch = errors.New("malformed If-Match header")

// NoteHandler handles the owner-scoped note endpoints.
type NoteHandler struct {
	svc    *service.NoteService
	logger *slog.Logger
}

// NewNoteHandler creates a new NoteHandler.
func NewNoteHandler(svc *service.NoteService, logger *slog.Logger) *NoteHandler {
	return &NoteHandler{
		svc:    svc,
		logger: logger,
	}
}

// List handles GET /api/notes.
func (h *NoteHandler) List(w http.ResponseWriter, r *http.Request) {
	var filter service.ListFilter
	if raw := r.URL.Query().Get("archived"); raw != "" {
		archived, err := strconv.ParseBool(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_FILTER", "archived must be true or false")
			return
		}
		filter.Archived = &archived
	}

	notes, err := h.svc.List(r.Context(), auth.UserIDFromContext(r.Context()), filter)
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.ToNoteListResponse(notes))
}

// Create handles POST /api/notes.
func (h *NoteHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req dto.CreateNoteRequest
	if err := decodeJSON(r, &req, true); err != nil {
		writeDecodeError(w, err)
		return
	}

	note, err := h.svc.Create(r.Context(), auth.UserIDFromContext(r.Context()), req.Title, req.Content)
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}

	h.logger.Info("note_created", "note_id", note.ID)

	w.Header().Set("ETag", note.ETag())
	writeJSON(w, http.StatusOK, dto.ToNoteResponse(note))
}

// Get handles GET /api/notes/{id}.
func (h *NoteHandler) Get(w http.ResponseWriter, r *http.Request) {
	note, err := h.svc.Get(r.Context(), auth.UserIDFromContext(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}

	w.Header().Set("ETag", note.ETag())
	writeJSON(w, http.StatusOK, dto.ToNoteResponse(note))
}

// Update handles PUT and PATCH /api/notes/{id}. Both apply a partial update.
// If-Match, when present, must name the current version.
func (h *NoteHandler) Update(w http.ResponseWriter, r *http.Request) {
	expected, err := parseIfMatch(r.Header.Get("If-Match"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_IF_MATCH", "If-Match must be a quoted version number or *")
		return
	}

	var req dto.UpdateNoteRequest
	if err := decodeJSON(r, &req, true); err != nil {
		writeDecodeError(w, err)
		return
	}

	id := chi.URLParam(r, "id")
	note, err := h.svc.Update(r.Context(), auth.UserIDFromContext(r.Context()), id, req.Patch(), expected)
	if err != nil {
		var conflict *service.VersionConflictError
		if errors.As(err, &conflict) {
			h.logger.Info("version_conflict",
				"note_id", id,
				"expected_version", conflict.Expected,
				"current_version", conflict.Actual,
			)
		}
		handleServiceError(w, r, h.logger, err)
		return
	}

	h.logger.Info("note_updated", "note_id", note.ID, "version", note.Version)

	w.Header().Set("ETag", note.ETag())
	writeJSON(w, http.StatusOK, dto.ToNoteResponse(note))
}

// Delete handles DELETE /api/notes/{id}.
func (h *NoteHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.svc.Delete(r.Context(), auth.UserIDFromContext(r.Context()), id); err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}

	h.logger.Info("note_deleted", "note_id", id)

	writeJSON(w, http.StatusOK, dto.MessageResponse{Message: "Note deleted"})
}

// Share handles POST /api/notes/{id}/share. The body is optional.
func (h *NoteHandler) Share(w http.ResponseWriter, r *http.Request) {
	var req dto.ShareNoteRequest
	if err := decodeJSON(r, &req, true); err != nil {
		writeDecodeError(w, err)
		return
	}

	result, err := h.svc.Share(r.Context(), auth.UserIDFromContext(r.Context()), chi.URLParam(r, "id"), req.ExpiresInHours)
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}

	h.logger.Info("note_shared",
		"note_id", result.Note.ID,
		"has_expiry", result.ExpiresAt != nil,
	)

	w.Header().Set("ETag", result.Note.ETag())
	writeJSON(w, http.StatusOK, dto.ShareResponse{
		PublicURL: result.PublicURL,
		Slug:      result.Slug,
		ExpiresAt: result.ExpiresAt,
	})
}

// Unshare handles DELETE /api/notes/{id}/share.
func (h *NoteHandler) Unshare(w http.ResponseWriter, r *http.Request) {
	note, err := h.svc.Unshare(r.Context(), auth.UserIDFromContext(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}

	h.logger.Info("note_unshared", "note_id", note.ID)

	w.Header().Set("ETag", note.ETag())
	writeJSON(w, http.StatusOK, dto.ToNoteResponse(note))
}

// parseIfMatch returns the expected version named by an If-Match header.
// An absent header or * means an unconditional write and yields nil.
func parseIfMatch(raw string) (*int, error) {
	v := strings.TrimSpace(raw)
	if v == "" || v == "*" {
		return nil, nil
	}

	v = strings.TrimPrefix(v, "W/")
	if len(v) >= 2 && v[0] == '"' && v[len(v)-1] == '"' {
		v = v[1 : len(v)-1]
	}
	if v == "" || v[0] == '+' || v[0] == '-' {
		return nil, errBadIfMatch
	}

	version, err := strconv.Atoi(v)
	if err != nil {
		return nil, errBadIfMatch
	}
	return &version, nil
}
