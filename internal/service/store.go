package service

import (
	"context"
	"time"

	"github.com/notesd/notesd/internal/model"
)

// NoteStore is the persistence contract for notes. Both the PostgreSQL
// repository and the SQLite store implement it.
type NoteStore interface {
	CreateNote(ctx context.Context, note *model.Note) error
	GetNote(ctx context.Context, ownerID, id string) (*model.Note, error)
	ListNotes(ctx context.Context, ownerID string, archived *bool) ([]*model.Note, error)
	UpdateNote(ctx context.Context, ownerID, id string, patch model.NotePatch, expected *int, now time.Time) (*model.Note, error)
	DeleteNote(ctx context.Context, ownerID, id string) error
	ShareNote(ctx context.Context, ownerID, id, slug string, expiresAt *time.Time, now time.Time) (*model.Note, error)
	UnshareNote(ctx context.Context, ownerID, id string, now time.Time) (*model.Note, error)
	GetNoteBySlug(ctx context.Context, slug string) (*model.Note, error)
	SlugExists(ctx context.Context, slug string) (bool, error)
}

// UserStore is the persistence contract for accounts.
type UserStore interface {
	CreateUser(ctx context.Context, user *model.User) error
	GetUserByID(ctx context.Context, id string) (*model.User, error)
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)
	DeleteUser(ctx context.Context, id string) error
}

// Store is a full storage backend.
type Store interface {
	NoteStore
	UserStore
	Ping(ctx context.Context) error
	Close() error
}
