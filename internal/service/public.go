package service

import (
	"context"
	"errors"
	"time"

	"github.com/notesd/notesd/internal/metrics"
	"github.com/notesd/notesd/internal/model"
	"github.com/notesd/notesd/internal/repository"
)

// SlugReader looks notes up by public slug.
type SlugReader interface {
	GetNoteBySlug(ctx context.Context, slug string) (*model.Note, error)
}

// PublicService resolves public slugs for anonymous readers.
type PublicService struct {
	store   SlugReader
	metrics metrics.Recorder
	now     func() time.Time
}

// NewPublicService creates a new PublicService.
func NewPublicService(store SlugReader, recorder metrics.Recorder) *PublicService {
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	return &PublicService{store: store, metrics: recorder, now: time.Now}
}

// WithClock replaces the time source. Used by tests.
func (s *PublicService) WithClock(now func() time.Time) *PublicService {
	s.now = now
	return s
}

// Resolve returns the note published under slug. Unknown, unshared and
// expired slugs are all ErrNoteNotFound. Expiry is checked on read and
// leaves the row untouched.
func (s *PublicService) Resolve(ctx context.Context, slug string) (*model.Note, error) {
	start := time.Now()
	defer func() {
		s.metrics.ObservePublicResolveDuration(time.Since(start))
	}()

	if !ValidSlug(slug) {
		s.metrics.IncPublicView(false)
		return nil, ErrNoteNotFound
	}

	note, err := s.store.GetNoteBySlug(ctx, slug)
	if err != nil {
		if errors.Is(err, repository.ErrNoteNotFound) {
			s.metrics.IncPublicView(false)
			return nil, ErrNoteNotFound
		}
		return nil, err
	}

	if !note.PubliclyVisible(s.now()) {
		s.metrics.IncPublicView(false)
		return nil, ErrNoteNotFound
	}

	s.metrics.IncPublicView(true)
	return note, nil
}
