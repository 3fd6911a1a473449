package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/notesd/notesd/internal/model"
	"github.com/notesd/notesd/internal/repository"
)

const noteColumns = `id, owner_id, title, content, is_archived, is_public, public_slug,
	share_expires_at, version, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

// CreateNote inserts a new note.
func (s *Store) CreateNote(ctx context.Context, note *model.Note) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO notes (`+noteColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		note.ID,
		note.OwnerID,
		note.Title,
		note.Content,
		note.IsArchived,
		note.IsPublic,
		note.PublicSlug,
		formatTimePtr(note.ShareExpiresAt),
		note.Version,
		formatTime(note.CreatedAt),
		formatTime(note.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to create note: %w", err)
	}
	return nil
}

// GetNote retrieves a note owned by ownerID.
func (s *Store) GetNote(ctx context.Context, ownerID, id string) (*model.Note, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+noteColumns+` FROM notes WHERE id = ? AND owner_id = ?`, id, ownerID)
	note, err := scanNote(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNoteNotFound
		}
		return nil, fmt.Errorf("failed to get note: %w", err)
	}
	return note, nil
}

// ListNotes returns an owner's notes, most recently updated first.
func (s *Store) ListNotes(ctx context.Context, ownerID string, archived *bool) ([]*model.Note, error) {
	query := `SELECT ` + noteColumns + ` FROM notes WHERE owner_id = ?`
	args := []any{ownerID}
	if archived != nil {
		query += ` AND is_archived = ?`
		args = append(args, *archived)
	}
	query += ` ORDER BY updated_at DESC, id DESC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list notes: %w", err)
	}
	defer rows.Close()

	notes := make([]*model.Note, 0)
	for rows.Next() {
		note, err := scanNote(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan note: %w", err)
		}
		notes = append(notes, note)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate notes: %w", err)
	}
	return notes, nil
}

// UpdateNote applies patch under a version compare-and-swap.
func (s *Store) UpdateNote(ctx context.Context, ownerID, id string, patch model.NotePatch, expected *int, now time.Time) (*model.Note, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	row := tx.QueryRowContext(ctx, `
		UPDATE notes SET
			title = COALESCE(?, title),
			content = COALESCE(?, content),
			is_archived = COALESCE(?, is_archived),
			version = version + 1,
			updated_at = ?
		WHERE id = ? AND owner_id = ? AND (? IS NULL OR version = ?)
		RETURNING `+noteColumns,
		patch.Title, patch.Content, patch.IsArchived, formatTime(now),
		id, ownerID, expected, expected,
	)
	note, err := scanNote(row)
	if err == nil {
		if err := tx.Commit(); err != nil {
			return nil, fmt.Errorf("failed to commit update: %w", err)
		}
		return note, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("failed to update note: %w", err)
	}
	if expected == nil {
		return nil, repository.ErrNoteNotFound
	}

	var actual int
	err = tx.QueryRowContext(ctx, `SELECT version FROM notes WHERE id = ? AND owner_id = ?`, id, ownerID).Scan(&actual)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrNoteNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read note version: %w", err)
	}
	return nil, &repository.VersionConflictError{Expected: *expected, Actual: actual}
}

// DeleteNote removes a note owned by ownerID.
func (s *Store) DeleteNote(ctx context.Context, ownerID, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM notes WHERE id = ? AND owner_id = ?`, id, ownerID)
	if err != nil {
		return fmt.Errorf("failed to delete note: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to delete note: %w", err)
	}
	if n == 0 {
		return repository.ErrNoteNotFound
	}
	return nil
}

// ShareNote marks a note public, keeping any slug it already has.
func (s *Store) ShareNote(ctx context.Context, ownerID, id, slug string, expiresAt *time.Time, now time.Time) (*model.Note, error) {
	row := s.db.QueryRowContext(ctx, `
		UPDATE notes SET
			is_public = 1,
			public_slug = CASE WHEN public_slug IS NULL THEN ? ELSE public_slug END,
			share_expires_at = ?,
			version = version + 1,
			updated_at = ?
		WHERE id = ? AND owner_id = ?
		RETURNING `+noteColumns,
		slug, formatTimePtr(expiresAt), formatTime(now), id, ownerID,
	)
	note, err := scanNote(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNoteNotFound
		}
		if uniqueViolation(err, "notes.public_slug") {
			return nil, repository.ErrSlugTaken
		}
		return nil, fmt.Errorf("failed to share note: %w", err)
	}
	return note, nil
}

// UnshareNote clears the public flag, slug and expiry.
func (s *Store) UnshareNote(ctx context.Context, ownerID, id string, now time.Time) (*model.Note, error) {
	row := s.db.QueryRowContext(ctx, `
		UPDATE notes SET
			is_public = 0,
			public_slug = NULL,
			share_expires_at = NULL,
			version = version + 1,
			updated_at = ?
		WHERE id = ? AND owner_id = ?
		RETURNING `+noteColumns,
		formatTime(now), id, ownerID,
	)
	note, err := scanNote(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNoteNotFound
		}
		return nil, fmt.Errorf("failed to unshare note: %w", err)
	}
	return note, nil
}

// GetNoteBySlug retrieves a public note by slug. Expiry is left to the caller.
func (s *Store) GetNoteBySlug(ctx context.Context, slug string) (*model.Note, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+noteColumns+` FROM notes WHERE public_slug = ? AND is_public = 1`, slug)
	note, err := scanNote(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNoteNotFound
		}
		return nil, fmt.Errorf("failed to get note by slug: %w", err)
	}
	return note, nil
}

// SlugExists reports whether any note holds slug.
func (s *Store) SlugExists(ctx context.Context, slug string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM notes WHERE public_slug = ?)`, slug).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check slug: %w", err)
	}
	return exists, nil
}

func scanNote(row rowScanner) (*model.Note, error) {
	var (
		note      model.Note
		slug      sql.NullString
		expiresAt sql.NullString
		createdAt string
		updatedAt string
	)
	if err := row.Scan(
		&note.ID,
		&note.OwnerID,
		&note.Title,
		&note.Content,
		&note.IsArchived,
		&note.IsPublic,
		&slug,
		&expiresAt,
		&note.Version,
		&createdAt,
		&updatedAt,
	); err != nil {
		return nil, err
	}

	var err error
	if slug.Valid {
		note.PublicSlug = &slug.String
	}
	if expiresAt.Valid {
		t, err := parseTime(expiresAt.String)
		if err != nil {
			return nil, err
		}
		note.ShareExpiresAt = &t
	}
	if note.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if note.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	return &note, nil
}
