// Package metrics provides lightweight hooks for instrumentation.
package metrics

import "time"

// Recorder captures metric events for the application.
type Recorder interface {
	// Note lifecycle
	IncNoteCreated()
	IncNoteUpdated()
	IncNoteDeleted()
	IncNoteShared()
	IncNoteUnshared()

	// Concurrency control
	IncVersionConflict()
	IncSlugCollision()

	// Public access
	IncPublicView(found bool)
	ObservePublicResolveDuration(duration time.Duration)

	// Accounts
	IncLogin(success bool)
	IncRateLimited(scope string)
}

// Snapshotter exposes a snapshot of current metrics.
type Snapshotter interface {
	Snapshot() Snapshot
}
