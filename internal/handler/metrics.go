package handler

import (
	"fmt"
	"net/http"
	"sort"

	"github.com/notesd/notesd/internal/metrics"
)

// MetricsHandler exposes in-memory metrics.
type MetricsHandler struct {
	snapshotter metrics.Snapshotter
}

// NewMetricsHandler creates a new MetricsHandler.
func NewMetricsHandler(snapshotter metrics.Snapshotter) *MetricsHandler {
	return &MetricsHandler{snapshotter: snapshotter}
}

// Metrics returns metrics in Prometheus exposition format.
func (h *MetricsHandler) Metrics(w http.ResponseWriter, r *http.Request) {
	if h.snapshotter == nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}

	snap := h.snapshotter.Snapshot()

	w.Header().Set("Content-Type", "text/plain; version=0.0.4")

	writeMetric(w, "notesd_notes_created_total %d\n", snap.NotesCreated)
	writeMetric(w, "notesd_notes_updated_total %d\n", snap.NotesUpdated)
	writeMetric(w, "notesd_notes_deleted_total %d\n", snap.NotesDeleted)
	writeMetric(w, "notesd_notes_shared_total %d\n", snap.NotesShared)
	writeMetric(w, "notesd_notes_unshared_total %d\n", snap.NotesUnshared)
	writeMetric(w, "notesd_version_conflicts_total %d\n", snap.VersionConflicts)
	writeMetric(w, "notesd_slug_collisions_total %d\n", snap.SlugCollisions)

	writeMetric(w, "notesd_public_views_total{result=\"found\"} %d\n", snap.PublicViewsFound)
	writeMetric(w, "notesd_public_views_total{result=\"not_found\"} %d\n", snap.PublicViewsNotFound)
	writeMetric(w, "notesd_public_resolve_duration_seconds_count %d\n", snap.PublicResolveCount)
	writeMetric(w, "notesd_public_resolve_duration_seconds_sum %.6f\n", float64(snap.PublicResolveTotalNs)/1e9)

	writeMetric(w, "notesd_logins_total{result=\"success\"} %d\n", snap.LoginsSucceeded)
	writeMetric(w, "notesd_logins_total{result=\"failure\"} %d\n", snap.LoginsFailed)

	scopes := make([]string, 0, len(snap.RateLimitedByScope))
	for scope := range snap.RateLimitedByScope {
		scopes = append(scopes, scope)
	}
	sort.Strings(scopes)
	for _, scope := range scopes {
		writeMetric(w, "notesd_rate_limited_total{scope=%q} %d\n", scope, snap.RateLimitedByScope[scope])
	}
}

func writeMetric(w http.ResponseWriter, format string, args ...any) {
	_, _ = fmt.Fprintf(w, format, args...)
}
