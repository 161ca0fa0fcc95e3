package engine

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/sirupsen/logrus"

	"github.com/mesh-intelligence/taskbridge/pkg/types"
)

// fakeNotes is an in-memory NoteStore.
type fakeNotes struct {
	containers []types.Container
	listErr    error

	failWrite   bool
	completions []string // "containerID/text" per successful write
}

func (f *fakeNotes) ListContainers(ctx context.Context) ([]types.Container, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.containers, nil
}

func (f *fakeNotes) WriteCompletion(ctx context.Context, containerID, textHint string) (bool, error) {
	if f.failWrite {
		return false, errors.New("bridge timeout")
	}
	for ci, c := range f.containers {
		if c.ID != containerID {
			continue
		}
		for oi, occ := range c.Occurrences {
			if occ.Text == textHint && !occ.Completed {
				f.containers[ci].Occurrences[oi].Completed = true
				f.completions = append(f.completions, containerID+"/"+textHint)
				return true, nil
			}
		}
	}
	return false, nil
}

func (f *fakeNotes) ContainerURL(containerID string) string {
	return "notes://open-note?id=" + containerID
}

// fakeTasks is an in-memory TaskStore.
type fakeTasks struct {
	down       bool
	projects   map[string]string
	incomplete []types.RemoteItem
	completed  map[string]bool

	failCreate   bool
	failComplete bool

	created      []types.NewItem
	createdIDs   []string
	completeCalls []string
	nextID       int
}

func (f *fakeTasks) Available(ctx context.Context) bool {
	return !f.down
}

func (f *fakeTasks) Projects(ctx context.Context) (map[string]string, error) {
	if f.projects == nil {
		return map[string]string{}, nil
	}
	return f.projects, nil
}

func (f *fakeTasks) ListIncompleteItems(ctx context.Context, project string) ([]types.RemoteItem, error) {
	return f.incomplete, nil
}

func (f *fakeTasks) CompletedItems(ctx context.Context, ids []string) (map[string]bool, error) {
	out := make(map[string]bool)
	for _, id := range ids {
		if f.completed[id] {
			out[id] = true
		}
	}
	return out, nil
}

func (f *fakeTasks) CreateItem(ctx context.Context, item types.NewItem) (string, error) {
	if f.failCreate {
		return "", errors.New("bridge timeout")
	}
	f.nextID++
	id := fmt.Sprintf("REMOTE-%d", f.nextID)
	f.created = append(f.created, item)
	f.createdIDs = append(f.createdIDs, id)
	return id, nil
}

func (f *fakeTasks) CompleteItem(ctx context.Context, remoteID string) (bool, error) {
	if f.failComplete {
		return false, errors.New("bridge timeout")
	}
	f.completeCalls = append(f.completeCalls, remoteID)
	return true, nil
}

func quietLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}
