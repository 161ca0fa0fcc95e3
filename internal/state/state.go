// Package state persists the durable mapping between note checkbox items
// and task-store items. The on-disk form is a single versioned JSON
// document; every load migrates it to the current schema, and every save is
// atomic. An exclusive file lock serializes whole reconciliation passes.
package state

import (
	"time"

	"github.com/mesh-intelligence/taskbridge/pkg/types"
)

// CurrentVersion is the schema version this build reads and writes.
// Version history:
//
//	1 — synced items stored as a bare list of identities per note
//	2 — per-item records with remote IDs and completion flags
//	3 — content-based identities, text snapshots, global pass marker
const CurrentVersion = 3

// SyncRecord tracks one note item that has been propagated to the task
// store. Mutated only by the reconciler, and only after the corresponding
// remote write succeeded.
type SyncRecord struct {
	RemoteID     string       `json:"remote_id"`
	Completed    bool         `json:"completed"`
	TextSnapshot string       `json:"text"`
	ModifiedAt   time.Time    `json:"modified_at"`
	ModifiedBy   types.Source `json:"modified_by"`
}

// ContainerRecord groups the sync records belonging to one note.
type ContainerRecord struct {
	Title   string                 `json:"title"`
	Records map[string]*SyncRecord `json:"records"`
}

// Marker is the global sync marker: when the last pass ran and on whose
// behalf. The cooldown guard reads it; every completed pass writes it.
type Marker struct {
	LastPassTime   time.Time    `json:"last_pass_time"`
	LastPassOrigin types.Source `json:"last_pass_origin"`
	LastPassID     string       `json:"last_pass_id,omitempty"`
}

// State is the full persisted document.
type State struct {
	Version    int                         `json:"_version"`
	Marker     Marker                      `json:"marker"`
	Containers map[string]*ContainerRecord `json:"containers"`
}

// New returns an empty state on the current schema version.
func New() *State {
	return &State{
		Version:    CurrentVersion,
		Containers: make(map[string]*ContainerRecord),
	}
}

// Container returns the record for the given note, creating it if needed
// and refreshing the stored title.
func (s *State) Container(id, title string) *ContainerRecord {
	c, ok := s.Containers[id]
	if !ok {
		c = &ContainerRecord{Records: make(map[string]*SyncRecord)}
		s.Containers[id] = c
	}
	if c.Records == nil {
		c.Records = make(map[string]*SyncRecord)
	}
	c.Title = title
	return c
}

// GC removes container records whose source note no longer exists. The
// whole record goes, sync records included; nothing is soft-deleted.
// Returns the number of containers dropped.
func (s *State) GC(live map[string]bool) int {
	removed := 0
	for id := range s.Containers {
		if !live[id] {
			delete(s.Containers, id)
			removed++
		}
	}
	return removed
}

// TrackedRemoteIDs returns the remote IDs of all records not yet marked
// completed. These are the items whose completion status a tasks-origin
// pass needs to check.
func (s *State) TrackedRemoteIDs() []string {
	var ids []string
	for _, c := range s.Containers {
		for _, r := range c.Records {
			if r.RemoteID != "" && !r.Completed {
				ids = append(ids, r.RemoteID)
			}
		}
	}
	return ids
}

// FindByRemoteID locates the container and identity owning a remote ID.
func (s *State) FindByRemoteID(remoteID string) (containerID, identity string, rec *SyncRecord, ok bool) {
	for cid, c := range s.Containers {
		for id, r := range c.Records {
			if r.RemoteID == remoteID {
				return cid, id, r, true
			}
		}
	}
	return "", "", nil, false
}
