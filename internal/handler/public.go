package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/notesd/notesd/internal/handler/dto"
	"github.com/notesd/notesd/internal/service"
)

// PublicHandler serves shared notes to anonymous readers.
type PublicHandler struct {
	svc    *service.PublicService
	logger *slog.Logger
}

// NewPublicHandler creates a new PublicHandler.
func NewPublicHandler(svc *service.PublicService, logger *slog.Logger) *PublicHandler {
	return &PublicHandler{
		svc:    svc,
		logger: logger,
	}
}

// Get handles GET /public/{slug}. Missing, unshared and expired notes all read
// as 404. The body is the owner-facing note shape, which carries no owner id.
func (h *PublicHandler) Get(w http.ResponseWriter, r *http.Request) {
	note, err := h.svc.Resolve(r.Context(), chi.URLParam(r, "slug"))
	if err != nil {
		if errors.Is(err, service.ErrNoteNotFound) {
			h.logger.Debug("public_note_not_found")
		}
		handleServiceError(w, r, h.logger, err)
		return
	}

	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("X-Robots-Tag", "noindex")
	writeJSON(w, http.StatusOK, dto.ToNoteResponse(note))
}
