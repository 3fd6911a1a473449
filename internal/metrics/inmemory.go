package metrics

import (
	"sync"
	"sync/atomic"
	"time"
)

// Snapshot captures current in-memory counters.
type Snapshot struct {
	NotesCreated         uint64
	NotesUpdated         uint64
	NotesDeleted         uint64
	NotesShared          uint64
	NotesUnshared        uint64
	VersionConflicts     uint64
	SlugCollisions       uint64
	PublicViewsFound     uint64
	PublicViewsNotFound  uint64
	PublicResolveCount   uint64
	PublicResolveTotalNs int64
	LoginsSucceeded      uint64
	LoginsFailed         uint64
	RateLimitedByScope   map[string]uint64
}

// InMemoryRecorder stores metrics in memory. It backs the /metrics endpoint
// and tests.
type InMemoryRecorder struct {
	notesCreated         uint64
	notesUpdated         uint64
	notesDeleted         uint64
	notesShared          uint64
	notesUnshared        uint64
	versionConflicts     uint64
	slugCollisions       uint64
	publicViewsFound     uint64
	publicViewsNotFound  uint64
	publicResolveCount   uint64
	publicResolveTotalNs int64
	loginsSucceeded      uint64
	loginsFailed         uint64

	mu          sync.Mutex
	rateLimited map[string]uint64
}

// NewInMemory returns a Recorder that stores counters in memory.
func NewInMemory() *InMemoryRecorder {
	return &InMemoryRecorder{rateLimited: make(map[string]uint64)}
}

// Snapshot returns a copy of the counters.
func (m *InMemoryRecorder) Snapshot() Snapshot {
	m.mu.Lock()
	limited := make(map[string]uint64, len(m.rateLimited))
	for scope, n := range m.rateLimited {
		limited[scope] = n
	}
	m.mu.Unlock()

	return Snapshot{
		NotesCreated:         atomic.LoadUint64(&m.notesCreated),
		NotesUpdated:         atomic.LoadUint64(&m.notesUpdated),
		NotesDeleted:         atomic.LoadUint64(&m.notesDeleted),
		NotesShared:          atomic.LoadUint64(&m.notesShared),
		NotesUnshared:        atomic.LoadUint64(&m.notesUnshared),
		VersionConflicts:     atomic.LoadUint64(&m.versionConflicts),
		SlugCollisions:       atomic.LoadUint64(&m.slugCollisions),
		PublicViewsFound:     atomic.LoadUint64(&m.publicViewsFound),
		PublicViewsNotFound:  atomic.LoadUint64(&m.publicViewsNotFound),
		PublicResolveCount:   atomic.LoadUint64(&m.publicResolveCount),
		PublicResolveTotalNs: atomic.LoadInt64(&m.publicResolveTotalNs),
		LoginsSucceeded:      atomic.LoadUint64(&m.loginsSucceeded),
		LoginsFailed:         atomic.LoadUint64(&m.loginsFailed),
		RateLimitedByScope:   limited,
	}
}

func (m *InMemoryRecorder) IncNoteCreated()     { atomic.AddUint64(&m.notesCreated, 1) }
func (m *InMemoryRecorder) IncNoteUpdated()     { atomic.AddUint64(&m.notesUpdated, 1) }
func (m *InMemoryRecorder) IncNoteDeleted()     { atomic.AddUint64(&m.notesDeleted, 1) }
func (m *InMemoryRecorder) IncNoteShared()      { atomic.AddUint64(&m.notesShared, 1) }
func (m *InMemoryRecorder) IncNoteUnshared()    { atomic.AddUint64(&m.notesUnshared, 1) }
func (m *InMemoryRecorder) IncVersionConflict() { atomic.AddUint64(&m.versionConflicts, 1) }
func (m *InMemoryRecorder) IncSlugCollision()   { atomic.AddUint64(&m.slugCollisions, 1) }

// IncPublicView counts a public slug lookup by outcome.
func (m *InMemoryRecorder) IncPublicView(found bool) {
	if found {
		atomic.AddUint64(&m.publicViewsFound, 1)
		return
	}
	atomic.AddUint64(&m.publicViewsNotFound, 1)
}

// ObservePublicResolveDuration records how long a slug lookup took.
func (m *InMemoryRecorder) ObservePublicResolveDuration(duration time.Duration) {
	atomic.AddUint64(&m.publicResolveCount, 1)
	atomic.AddInt64(&m.publicResolveTotalNs, duration.Nanoseconds())
}

// IncLogin counts login attempts by outcome.
func (m *InMemoryRecorder) IncLogin(success bool) {
	if success {
		atomic.AddUint64(&m.loginsSucceeded, 1)
		return
	}
	atomic.AddUint64(&m.loginsFailed, 1)
}

// IncRateLimited counts rejected requests per limiter scope.
func (m *InMemoryRecorder) IncRateLimited(scope string) {
	m.mu.Lock()
	m.rateLimited[scope]++
	m.mu.Unlock()
}
