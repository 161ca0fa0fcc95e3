package engine

import (
	"time"

	"github.com/mesh-intelligence/taskbridge/internal/state"
	"github.com/mesh-intelligence/taskbridge/pkg/types"
)

// ShouldSkip reports whether a pass requested for source should be
// suppressed as an echo: the engine itself just finished a pass on behalf
// of the opposite source, and the incoming change-notification is presumed
// to be caused by that pass's own writes.
//
// This is a heuristic, not a proof. A genuine human edit arriving inside
// the window is also skipped; the next trigger after the window closes
// picks it up from the live snapshot.
func ShouldSkip(m state.Marker, source types.Source, now time.Time, window time.Duration) bool {
	if m.LastPassTime.IsZero() {
		return false
	}
	elapsed := now.Sub(m.LastPassTime)
	return elapsed < window && m.LastPassOrigin == source.Opposite()
}
