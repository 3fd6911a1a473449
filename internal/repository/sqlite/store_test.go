package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/notesd/notesd/internal/model"
	"github.com/notesd/notesd/internal/repository"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(context.Background(), filepath.Join(t.TempDir(), "notes.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func createUser(t *testing.T, store *Store, email string) *model.User {
	t.Helper()
	user := &model.User{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: "$argon2id$v=19$m=1024,t=1,p=1$c2FsdA$aGFzaA",
		CreatedAt:    time.Now().UTC(),
	}
	require.NoError(t, store.CreateUser(context.Background(), user))
	return user
}

func createNote(t *testing.T, store *Store, ownerID, title string, at time.Time) *model.Note {
	t.Helper()
	note := &model.Note{
		ID:        uuid.NewString(),
		OwnerID:   ownerID,
		Title:     title,
		Version:   1,
		CreatedAt: at,
		UpdatedAt: at,
	}
	require.NoError(t, store.CreateNote(context.Background(), note))
	return note
}

func ptr[T any](v T) *T { return &v }

func TestDriverDSN(t *testing.T) {
	assert.Equal(t, "/tmp/a.db?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)", driverDSN("sqlite:///tmp/a.db"))
	assert.Equal(t, "file:a.db?mode=rwc&_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)", driverDSN("file:a.db?mode=rwc"))
	assert.True(t, IsDSN("sqlite://notes.db"))
	assert.True(t, IsDSN("file:notes.db"))
	assert.False(t, IsDSN("postgres://localhost/notes"))
}

func TestStore_Users(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	alice := createUser(t, store, "alice@example.com")

	got, err := store.GetUserByEmail(ctx, "alice@example.com")
	require.NoError(t, err)
	assert.Equal(t, alice.ID, got.ID)
	assert.Equal(t, alice.PasswordHash, got.PasswordHash)

	got, err = store.GetUserByID(ctx, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, alice.Email, got.Email)

	dup := &model.User{ID: uuid.NewString(), Email: "alice@example.com", PasswordHash: "x", CreatedAt: time.Now()}
	assert.ErrorIs(t, store.CreateUser(ctx, dup), repository.ErrEmailExists)

	_, err = store.GetUserByEmail(ctx, "nobody@example.com")
	assert.ErrorIs(t, err, repository.ErrUserNotFound)
}

func TestStore_ListOrderingAndScope(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	alice := createUser(t, store, "alice@example.com")
	bob := createUser(t, store, "bob@example.com")

	base := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	first := createNote(t, store, alice.ID, "first", base)
	second := createNote(t, store, alice.ID, "second", base.Add(time.Second))
	createNote(t, store, bob.ID, "bob's", base.Add(2*time.Second))

	notes, err := store.ListNotes(ctx, alice.ID, nil)
	require.NoError(t, err)
	require.Len(t, notes, 2)
	assert.Equal(t, second.ID, notes[0].ID)
	assert.Equal(t, first.ID, notes[1].ID)

	// Touching the older note moves it to the front.
	_, err = store.UpdateNote(ctx, alice.ID, first.ID, model.NotePatch{Title: ptr("first!")}, nil, base.Add(time.Minute))
	require.NoError(t, err)

	notes, err = store.ListNotes(ctx, alice.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, first.ID, notes[0].ID)

	empty, err := store.ListNotes(ctx, uuid.NewString(), nil)
	require.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)
}

func TestStore_ListArchivedFilter(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	alice := createUser(t, store, "alice@example.com")
	now := time.Now().UTC()

	kept := createNote(t, store, alice.ID, "kept", now)
	archived := createNote(t, store, alice.ID, "old", now)
	_, err := store.UpdateNote(ctx, alice.ID, archived.ID, model.NotePatch{IsArchived: ptr(true)}, nil, now)
	require.NoError(t, err)

	notes, err := store.ListNotes(ctx, alice.ID, ptr(true))
	require.NoError(t, err)
	require.Len(t, notes, 1)
	assert.Equal(t, archived.ID, notes[0].ID)

	notes, err = store.ListNotes(ctx, alice.ID, ptr(false))
	require.NoError(t, err)
	require.Len(t, notes, 1)
	assert.Equal(t, kept.ID, notes[0].ID)
}

func TestStore_UpdateNoteCAS(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	alice := createUser(t, store, "alice@example.com")
	now := time.Now().UTC()
	note := createNote(t, store, alice.ID, "A", now)

	updated, err := store.UpdateNote(ctx, alice.ID, note.ID, model.NotePatch{Title: ptr("B")}, ptr(1), now.Add(time.Second))
	require.NoError(t, err)
	assert.Equal(t, 2, updated.Version)
	assert.Equal(t, "B", updated.Title)
	assert.Equal(t, "", updated.Content)
	assert.True(t, updated.UpdatedAt.After(updated.CreatedAt))

	_, err = store.UpdateNote(ctx, alice.ID, note.ID, model.NotePatch{Title: ptr("C")}, ptr(1), now.Add(2*time.Second))
	require.Error(t, err)
	assert.True(t, errors.Is(err, repository.ErrVersionConflict))
	var conflict *repository.VersionConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, 1, conflict.Expected)
	assert.Equal(t, 2, conflict.Actual)

	current, err := store.GetNote(ctx, alice.ID, note.ID)
	require.NoError(t, err)
	assert.Equal(t, "B", current.Title)
	assert.Equal(t, 2, current.Version)

	_, err = store.UpdateNote(ctx, alice.ID, uuid.NewString(), model.NotePatch{}, ptr(1), now)
	assert.ErrorIs(t, err, repository.ErrNoteNotFound)
}

func TestStore_OwnershipScoping(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	alice := createUser(t, store, "alice@example.com")
	mallory := createUser(t, store, "mallory@example.com")
	note := createNote(t, store, alice.ID, "secret", time.Now().UTC())

	_, err := store.GetNote(ctx, mallory.ID, note.ID)
	assert.ErrorIs(t, err, repository.ErrNoteNotFound)

	_, err = store.UpdateNote(ctx, mallory.ID, note.ID, model.NotePatch{Title: ptr("pwned")}, ptr(1), time.Now())
	assert.ErrorIs(t, err, repository.ErrNoteNotFound)

	_, err = store.ShareNote(ctx, mallory.ID, note.ID, "AbCdEfGhIjKl", nil, time.Now())
	assert.ErrorIs(t, err, repository.ErrNoteNotFound)

	assert.ErrorIs(t, store.DeleteNote(ctx, mallory.ID, note.ID), repository.ErrNoteNotFound)

	got, err := store.GetNote(ctx, alice.ID, note.ID)
	require.NoError(t, err)
	assert.Equal(t, "secret", got.Title)
	assert.Equal(t, 1, got.Version)
}

func TestStore_ShareKeepsSlug(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	alice := createUser(t, store, "alice@example.com")
	now := time.Now().UTC()
	note := createNote(t, store, alice.ID, "shared", now)

	shared, err := store.ShareNote(ctx, alice.ID, note.ID, "AAAAAAAAAAAA", nil, now)
	require.NoError(t, err)
	require.NotNil(t, shared.PublicSlug)
	assert.Equal(t, "AAAAAAAAAAAA", *shared.PublicSlug)
	assert.True(t, shared.IsPublic)
	assert.Equal(t, 2, shared.Version)
	assert.Nil(t, shared.ShareExpiresAt)

	expiry := now.Add(time.Hour)
	again, err := store.ShareNote(ctx, alice.ID, note.ID, "BBBBBBBBBBBB", &expiry, now)
	require.NoError(t, err)
	assert.Equal(t, "AAAAAAAAAAAA", *again.PublicSlug)
	assert.Equal(t, 3, again.Version)
	require.NotNil(t, again.ShareExpiresAt)
	assert.True(t, expiry.Equal(*again.ShareExpiresAt))

	bySlug, err := store.GetNoteBySlug(ctx, "AAAAAAAAAAAA")
	require.NoError(t, err)
	assert.Equal(t, note.ID, bySlug.ID)

	exists, err := store.SlugExists(ctx, "AAAAAAAAAAAA")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestStore_SlugCollision(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	alice := createUser(t, store, "alice@example.com")
	now := time.Now().UTC()
	a := createNote(t, store, alice.ID, "a", now)
	b := createNote(t, store, alice.ID, "b", now)

	_, err := store.ShareNote(ctx, alice.ID, a.ID, "SAMESLUG1234", nil, now)
	require.NoError(t, err)

	_, err = store.ShareNote(ctx, alice.ID, b.ID, "SAMESLUG1234", nil, now)
	assert.ErrorIs(t, err, repository.ErrSlugTaken)

	unchanged, err := store.GetNote(ctx, alice.ID, b.ID)
	require.NoError(t, err)
	assert.False(t, unchanged.IsPublic)
	assert.Equal(t, 1, unchanged.Version)
}

func TestStore_UnshareFreesSlug(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	alice := createUser(t, store, "alice@example.com")
	now := time.Now().UTC()
	a := createNote(t, store, alice.ID, "a", now)
	b := createNote(t, store, alice.ID, "b", now)

	_, err := store.ShareNote(ctx, alice.ID, a.ID, "REUSEDSLUG12", nil, now)
	require.NoError(t, err)

	unshared, err := store.UnshareNote(ctx, alice.ID, a.ID, now)
	require.NoError(t, err)
	assert.False(t, unshared.IsPublic)
	assert.Nil(t, unshared.PublicSlug)
	assert.Nil(t, unshared.ShareExpiresAt)
	assert.Equal(t, 3, unshared.Version)

	_, err = store.GetNoteBySlug(ctx, "REUSEDSLUG12")
	assert.ErrorIs(t, err, repository.ErrNoteNotFound)

	reshared, err := store.ShareNote(ctx, alice.ID, b.ID, "REUSEDSLUG12", nil, now)
	require.NoError(t, err)
	assert.Equal(t, "REUSEDSLUG12", *reshared.PublicSlug)
}

func TestStore_DeleteUserCascades(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	alice := createUser(t, store, "alice@example.com")
	note := createNote(t, store, alice.ID, "doomed", time.Now().UTC())
	_, err := store.ShareNote(ctx, alice.ID, note.ID, "CASCADESLUG1", nil, time.Now())
	require.NoError(t, err)

	require.NoError(t, store.DeleteUser(ctx, alice.ID))

	notes, err := store.ListNotes(ctx, alice.ID, nil)
	require.NoError(t, err)
	assert.Empty(t, notes)

	_, err = store.GetNoteBySlug(ctx, "CASCADESLUG1")
	assert.ErrorIs(t, err, repository.ErrNoteNotFound)

	assert.ErrorIs(t, store.DeleteUser(ctx, alice.ID), repository.ErrUserNotFound)
}
