package types

import "errors"

// Standard errors. Adapters and the engine return these (possibly wrapped)
// so callers can classify failures without string matching.
var (
	// ErrStateCorrupt means the persisted sync state and its backup are
	// both unreadable. Fatal: resetting silently would cause mass
	// duplicate creation on the next pass.
	ErrStateCorrupt = errors.New("sync state corrupt")

	// ErrSchemaDrift means an upstream database no longer has the shape
	// this version understands. The whole pass aborts before any mutation.
	ErrSchemaDrift = errors.New("upstream schema drift")

	// ErrStoreUnavailable means a store could not be reached after bounded
	// retries. The affected work is retried on the next pass.
	ErrStoreUnavailable = errors.New("store unavailable")

	// ErrNoConfidentMatch means no match strategy located an occurrence
	// with enough confidence to act on it.
	ErrNoConfidentMatch = errors.New("no confident match")

	// ErrUnknownSource means a pass was requested for a source that is
	// neither "notes" nor "tasks".
	ErrUnknownSource = errors.New("unknown source")
)
