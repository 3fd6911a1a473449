// Package model defines domain entities for the application.
package model

import (
	"strconv"
	"time"
)

// Note is a user-owned document that can optionally be shared through a public slug.
type Note struct {
	ID             string     `json:"id"`
	OwnerID        string     `json:"owner_id"`
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

// NotePatch carries the fields of a partial update. Nil fields are left untouched.
type NotePatch struct {
	Title      *string
	Content    *string
	IsArchived *bool
}

// IsEmpty reports whether the patch sets no field at all.
func (p NotePatch) IsEmpty() bool {
	return p.Title == nil && p.Content == nil && p.IsArchived == nil
}

// IsShared returns true if the note currently exposes a public slug.
func (n *Note) IsShared() bool {
	return n.IsPublic && n.PublicSlug != nil
}

// ShareExpired reports whether the share expiry has passed at now.
// The expiry instant itself is still readable.
func (n *Note) ShareExpired(now time.Time) bool {
	return n.ShareExpiresAt != nil && now.After(*n.ShareExpiresAt)
}

// PubliclyVisible reports whether a public reader may see the note at now.
func (n *Note) PubliclyVisible(now time.Time) bool {
	return n.IsShared() && !n.ShareExpired(now)
}

// ETag returns the quoted entity tag for the current version.
func (n *Note) ETag() string {
	return `"` + strconv.Itoa(n.Version) + `"`
}
