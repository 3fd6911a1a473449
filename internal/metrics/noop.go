package metrics

import "time"

// NoopRecorder implements Recorder with no-op methods.
type NoopRecorder struct{}

// NewNoop returns a Recorder that discards all metrics.
func NewNoop() Recorder {
	return &NoopRecorder{}
}

func (n *NoopRecorder) IncNoteCreated()                                     {}
func (n *NoopRecorder) IncNoteUpdated()                                     {}
func (n *NoopRecorder) IncNoteDeleted()                                     {}
func (n *NoopRecorder) IncNoteShared()                                      {}
func (n *NoopRecorder) IncNoteUnshared()                                    {}
func (n *NoopRecorder) IncVersionConflict()                                 {}
func (n *NoopRecorder) IncSlugCollision()                                   {}
func (n *NoopRecorder) IncPublicView(found bool)                            {}
func (n *NoopRecorder) ObservePublicResolveDuration(duration time.Duration) {}
func (n *NoopRecorder) IncLogin(success bool)                               {}
func (n *NoopRecorder) IncRateLimited(scope string)                         {}
