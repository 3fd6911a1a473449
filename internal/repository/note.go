package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/notesd/notesd/internal/model"
)

const noteColumns = `id, owner_id, title, content, is_archived, is_public, public_slug,
	share_expires_at, version, created_at, updated_at`

// CreateNote inserts a new note.
func (r *Repository) CreateNote(ctx context.Context, note *model.Note) error {
	query := `
		INSERT INTO notes (id, owner_id, title, content, is_archived, is_public, public_slug,
			share_expires_at, version, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	_, err := r.pool.Exec(ctx, query,
		note.ID,
		note.OwnerID,
		note.Title,
		note.Content,
		note.IsArchived,
		note.IsPublic,
		note.PublicSlug,
		note.ShareExpiresAt,
		note.Version,
		note.CreatedAt,
		note.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create note: %w", err)
	}
	return nil
}

// GetNote retrieves a note owned by ownerID.
func (r *Repository) GetNote(ctx context.Context, ownerID, id string) (*model.Note, error) {
	query := `SELECT ` + noteColumns + ` FROM notes WHERE id = $1 AND owner_id = $2`

	note, err := scanNote(r.pool.QueryRow(ctx, query, id, ownerID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNoteNotFound
		}
		return nil, fmt.Errorf("failed to get note: %w", err)
	}
	return note, nil
}

// ListNotes returns an owner's notes, most recently updated first.
// A nil archived returns notes regardless of archive state.
func (r *Repository) ListNotes(ctx context.Context, ownerID string, archived *bool) ([]*model.Note, error) {
	var sb strings.Builder
	sb.WriteString(`SELECT ` + noteColumns + ` FROM notes WHERE owner_id = $1`)
	args := []any{ownerID}
	if archived != nil {
		sb.WriteString(` AND is_archived = $2`)
		args = append(args, *archived)
	}
	sb.WriteString(` ORDER BY updated_at DESC, id DESC`)

	rows, err := r.pool.Query(ctx, sb.String(), args...)
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

// UpdateNote applies patch when the stored version equals expected (or
// unconditionally when expected is nil) and bumps the version by one.
// On a mismatch nothing is written and a *VersionConflictError is returned.
func (r *Repository) UpdateNote(ctx context.Context, ownerID, id string, patch model.NotePatch, expected *int, now time.Time) (*model.Note, error) {
	query := `
		UPDATE notes SET
			title = COALESCE($3, title),
			content = COALESCE($4, content),
			is_archived = COALESCE($5, is_archived),
			version = version + 1,
			updated_at = $6
		WHERE id = $1 AND owner_id = $2 AND ($7::integer IS NULL OR version = $7::integer)
		RETURNING ` + noteColumns

	var updated *model.Note
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		note, err := scanNote(tx.QueryRow(ctx, query,
			id, ownerID, patch.Title, patch.Content, patch.IsArchived, now, expected))
		if err == nil {
			updated = note
			return nil
		}
		if !errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("failed to update note: %w", err)
		}
		if expected == nil {
			return ErrNoteNotFound
		}

		var actual int
		err = tx.QueryRow(ctx, `SELECT version FROM notes WHERE id = $1 AND owner_id = $2`, id, ownerID).Scan(&actual)
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNoteNotFound
		}
		if err != nil {
			return fmt.Errorf("failed to read note version: %w", err)
		}
		return &VersionConflictError{Expected: *expected, Actual: actual}
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// DeleteNote removes a note owned by ownerID.
func (r *Repository) DeleteNote(ctx context.Context, ownerID, id string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM notes WHERE id = $1 AND owner_id = $2`, id, ownerID)
	if err != nil {
		return fmt.Errorf("failed to delete note: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNoteNotFound
	}
	return nil
}

// ShareNote marks a note public. An existing slug is kept, otherwise slug is
// stored. Returns ErrSlugTaken when slug collides with another note's.
func (r *Repository) ShareNote(ctx context.Context, ownerID, id, slug string, expiresAt *time.Time, now time.Time) (*model.Note, error) {
	query := `
		UPDATE notes SET
			is_public = TRUE,
			public_slug = CASE WHEN public_slug IS NULL THEN $3 ELSE public_slug END,
			share_expires_at = $4,
			version = version + 1,
			updated_at = $5
		WHERE id = $1 AND owner_id = $2
		RETURNING ` + noteColumns

	note, err := scanNote(r.pool.QueryRow(ctx, query, id, ownerID, slug, expiresAt, now))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNoteNotFound
		}
		if _, ok := uniqueViolation(err); ok {
			return nil, ErrSlugTaken
		}
		return nil, fmt.Errorf("failed to share note: %w", err)
	}
	return note, nil
}

// UnshareNote clears the public flag, slug and expiry.
func (r *Repository) UnshareNote(ctx context.Context, ownerID, id string, now time.Time) (*model.Note, error) {
	query := `
		UPDATE notes SET
			is_public = FALSE,
			public_slug = NULL,
			share_expires_at = NULL,
			version = version + 1,
			updated_at = $3
		WHERE id = $1 AND owner_id = $2
		RETURNING ` + noteColumns

	note, err := scanNote(r.pool.QueryRow(ctx, query, id, ownerID, now))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNoteNotFound
		}
		return nil, fmt.Errorf("failed to unshare note: %w", err)
	}
	return note, nil
}

// GetNoteBySlug retrieves a public note by slug, without an owner check.
// Expiry is left to the caller.
func (r *Repository) GetNoteBySlug(ctx context.Context, slug string) (*model.Note, error) {
	query := `SELECT ` + noteColumns + ` FROM notes WHERE public_slug = $1 AND is_public`

	note, err := scanNote(r.pool.QueryRow(ctx, query, slug))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNoteNotFound
		}
		return nil, fmt.Errorf("failed to get note by slug: %w", err)
	}
	return note, nil
}

// SlugExists reports whether any note holds slug.
func (r *Repository) SlugExists(ctx context.Context, slug string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM notes WHERE public_slug = $1)`, slug).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check slug: %w", err)
	}
	return exists, nil
}

func scanNote(row pgx.Row) (*model.Note, error) {
	var note model.Note
	if err := row.Scan(
		&note.ID,
		&note.OwnerID,
		&note.Title,
		&note.Content,
		&note.IsArchived,
		&note.IsPublic,
		&note.PublicSlug,
		&note.ShareExpiresAt,
		&note.Version,
		&note.CreatedAt,
		&note.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &note, nil
}
