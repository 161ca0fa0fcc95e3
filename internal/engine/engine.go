// Package engine implements the reconciliation core: given a change-origin
// hint and readable snapshots of both stores, it computes and applies the
// minimal set of cross-store mutations, guarded by the echo-suppression
// cooldown. All mutations are additive (create) or monotonic (mark
// complete); the engine never deletes user content in either store.
package engine

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/mesh-intelligence/taskbridge/pkg/types"
)

// NoteStore is the capability surface of the notes app (store A).
type NoteStore interface {
	// ListContainers enumerates notes that contain checkbox items,
	// together with the occurrences parsed from their current content.
	ListContainers(ctx context.Context) ([]types.Container, error)

	// WriteCompletion flips the first unchecked occurrence matching the
	// text hint to checked inside the given note. Returns false when no
	// matching line was found.
	WriteCompletion(ctx context.Context, containerID, textHint string) (bool, error)

	// ContainerURL returns a callback URL that opens the note, used as a
	// back-reference in created items.
	ContainerURL(containerID string) string
}

// TaskStore is the capability surface of the task manager (store B).
type TaskStore interface {
	// Available reports whether the task manager can accept writes.
	Available(ctx context.Context) bool

	// Projects returns the normalized-key to display-name map of project
	// names.
	Projects(ctx context.Context) (map[string]string, error)

	// ListIncompleteItems returns the incomplete items, optionally scoped
	// to a project (empty string means all).
	ListIncompleteItems(ctx context.Context, project string) ([]types.RemoteItem, error)

	// CompletedItems returns which of the given tracked IDs are completed
	// (and not trashed) in the task store.
	CompletedItems(ctx context.Context, ids []string) (map[string]bool, error)

	// CreateItem creates an item and returns its remote ID.
	CreateItem(ctx context.Context, item types.NewItem) (string, error)

	// CompleteItem marks the item with the given remote ID completed.
	CompleteItem(ctx context.Context, remoteID string) (bool, error)
}

// Summary reports what a single pass did.
type Summary struct {
	Created   int // items created in the task store
	Completed int // completions propagated (either direction)
	Adopted   int // untracked occurrences adopted onto existing remote items
	Skipped   int // item operations skipped after errors or ambiguity
	Removed   int // container records garbage-collected
}

// Empty reports whether the pass performed no work at all.
func (s Summary) Empty() bool {
	return s == Summary{}
}

// Reconciler orchestrates passes between the two stores. One Reconciler is
// safe for sequential use; pass-level exclusion is the state store's job.
type Reconciler struct {
	notes NoteStore
	tasks TaskStore
	cfg   types.Config
	log   *logrus.Logger
	now   func() time.Time
}

// New returns a Reconciler over the two store adapters.
func New(notes NoteStore, tasks TaskStore, cfg types.Config, log *logrus.Logger) *Reconciler {
	return &Reconciler{
		notes: notes,
		tasks: tasks,
		cfg:   cfg,
		log:   log,
		now:   time.Now,
	}
}

// newPassID returns a fresh UUIDv7 identifying one pass in the marker and
// the logs.
func newPassID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.New().String()
	}
	return id.String()
}
