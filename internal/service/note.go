// Package service provides business logic for the application.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/notesd/notesd/internal/metrics"
	"github.com/notesd/notesd/internal/model"
	"github.com/notesd/notesd/internal/repository"
)

const (
	maxTitleLength   = 500
	maxContentBytes  = 1 << 20
	maxSlugAttempts  = 5
	maxShareDuration = 10 * 365 * 24 * time.Hour
)

// NoteService handles owner-scoped note operations and sharing.
type NoteService struct {
	store   NoteStore
	baseURL string
	metrics metrics.Recorder
	logger  *slog.Logger
	now     func() time.Time
	newSlug func() (string, error)
}

// NewNoteService creates a new NoteService.
func NewNoteService(store NoteStore, baseURL string, recorder metrics.Recorder, logger *slog.Logger) *NoteService {
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &NoteService{
		store:   store,
		baseURL: strings.TrimSuffix(baseURL, "/"),
		metrics: recorder,
		logger:  logger,
		now:     time.Now,
		newSlug: GenerateSlug,
	}
}

// WithClock replaces the time source. Used by tests.
func (s *NoteService) WithClock(now func() time.Time) *NoteService {
	s.now = now
	return s
}

// clock returns the current time at the precision both stores keep.
func (s *NoteService) clock() time.Time {
	return s.now().UTC().Truncate(time.Microsecond)
}

// ListFilter narrows List results.
type ListFilter struct {
	Archived *bool
}

// List returns the owner's notes, most recently updated first.
func (s *NoteService) List(ctx context.Context, ownerID string, filter ListFilter) ([]*model.Note, error) {
	notes, err := s.store.ListNotes(ctx, ownerID, filter.Archived)
	if err != nil {
		return nil, err
	}
	if notes == nil {
		notes = []*model.Note{}
	}
	return notes, nil
}

// Create stores a new unshared note at version 1.
func (s *NoteService) Create(ctx context.Context, ownerID, title, content string) (*model.Note, error) {
	if err := validateFields(&title, &content); err != nil {
		return nil, err
	}

	now := s.clock()
	note := &model.Note{
		ID:        uuid.NewString(),
		OwnerID:   ownerID,
		Title:     title,
		Content:   content,
		Version:   1,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.store.CreateNote(ctx, note); err != nil {
		return nil, fmt.Errorf("failed to create note: %w", err)
	}

	s.metrics.IncNoteCreated()
	return note, nil
}

// Get retrieves a note owned by ownerID.
func (s *NoteService) Get(ctx context.Context, ownerID, id string) (*model.Note, error) {
	if !validID(id) {
		return nil, ErrNoteNotFound
	}
	note, err := s.store.GetNote(ctx, ownerID, id)
	if err != nil {
		return nil, mapNoteError(err)
	}
	return note, nil
}

// Update applies patch to the note. When expectedVersion is set the write only
// happens if it equals the stored version; otherwise a *VersionConflictError
// is returned and nothing changes.
func (s *NoteService) Update(ctx context.Context, ownerID, id string, patch model.NotePatch, expectedVersion *int) (*model.Note, error) {
	if !validID(id) {
		return nil, ErrNoteNotFound
	}
	if err := validateFields(patch.Title, patch.Content); err != nil {
		return nil, err
	}

	note, err := s.store.UpdateNote(ctx, ownerID, id, patch, expectedVersion, s.clock())
	if err != nil {
		var conflict *repository.VersionConflictError
		if errors.As(err, &conflict) {
			s.metrics.IncVersionConflict()
			return nil, &VersionConflictError{Expected: conflict.Expected, Actual: conflict.Actual}
		}
		return nil, mapNoteError(err)
	}

	s.metrics.IncNoteUpdated()
	return note, nil
}

// Delete removes a note owned by ownerID.
func (s *NoteService) Delete(ctx context.Context, ownerID, id string) error {
	if !validID(id) {
		return ErrNoteNotFound
	}
	if err := s.store.DeleteNote(ctx, ownerID, id); err != nil {
		return mapNoteError(err)
	}
	s.metrics.IncNoteDeleted()
	return nil
}

// ShareResult is returned by Share.
type ShareResult struct {
	Note      *model.Note
	Slug      string
	PublicURL string
	ExpiresAt *time.Time
}

// Share makes the note publicly readable. An existing slug is reused. A nil
// expiresInHours clears any expiry; zero or negative hours expire the share
// immediately.
func (s *NoteService) Share(ctx context.Context, ownerID, id string, expiresInHours *int) (*ShareResult, error) {
	if !validID(id) {
		return nil, ErrNoteNotFound
	}

	note, err := s.store.GetNote(ctx, ownerID, id)
	if err != nil {
		return nil, mapNoteError(err)
	}

	now := s.clock()
	var expiresAt *time.Time
	if expiresInHours != nil {
		if *expiresInHours > int(maxShareDuration/time.Hour) {
			return nil, invalidInput("expires_in_hours", "too far in the future")
		}
		// Non-positive hours store an instant already in the past.
		exp := now.Add(-time.Microsecond)
		if *expiresInHours > 0 {
			exp = now.Add(time.Duration(*expiresInHours) * time.Hour)
		}
		expiresAt = &exp
	}

	for attempt := 0; attempt < maxSlugAttempts; attempt++ {
		slug, err := s.pickSlug(ctx, note)
		if err != nil {
			return nil, err
		}
		if slug == "" {
			continue
		}

		shared, err := s.store.ShareNote(ctx, ownerID, id, slug, expiresAt, now)
		if errors.Is(err, repository.ErrSlugTaken) {
			s.metrics.IncSlugCollision()
			s.logger.Warn("slug_collision", "note_id", id, "attempt", attempt+1)
			continue
		}
		if err != nil {
			return nil, mapNoteError(err)
		}

		s.metrics.IncNoteShared()
		return &ShareResult{
			Note:      shared,
			Slug:      *shared.PublicSlug,
			PublicURL: s.PublicURL(*shared.PublicSlug),
			ExpiresAt: shared.ShareExpiresAt,
		}, nil
	}

	return nil, ErrSlugExhausted
}

// pickSlug returns the note's existing slug, a fresh unused one, or "" when
// the fresh candidate is already taken.
func (s *NoteService) pickSlug(ctx context.Context, note *model.Note) (string, error) {
	if note.IsShared() {
		return *note.PublicSlug, nil
	}

	slug, err := s.newSlug()
	if err != nil {
		return "", err
	}
	exists, err := s.store.SlugExists(ctx, slug)
	if err != nil {
		return "", err
	}
	if exists {
		s.metrics.IncSlugCollision()
		return "", nil
	}
	return slug, nil
}

// Unshare revokes public access and frees the slug.
func (s *NoteService) Unshare(ctx context.Context, ownerID, id string) (*model.Note, error) {
	if !validID(id) {
		return nil, ErrNoteNotFound
	}
	note, err := s.store.UnshareNote(ctx, ownerID, id, s.clock())
	if err != nil {
		return nil, mapNoteError(err)
	}
	s.metrics.IncNoteUnshared()
	return note, nil
}

// PublicURL builds the reader-facing link for slug.
func (s *NoteService) PublicURL(slug string) string {
	return s.baseURL + "/s/" + slug
}

func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

func validateFields(title, content *string) error {
	if title != nil && utf8.RuneCountInString(*title) > maxTitleLength {
		return invalidInput("title", fmt.Sprintf("must be at most %d characters", maxTitleLength))
	}
	if content != nil && len(*content) > maxContentBytes {
		return invalidInput("content", "must be at most 1 MiB")
	}
	return nil
}

func mapNoteError(err error) error {
	if errors.Is(err, repository.ErrNoteNotFound) {
		return ErrNoteNotFound
	}
	return err
}
