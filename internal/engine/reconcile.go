package engine

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/mesh-intelligence/taskbridge/internal/identity"
	"github.com/mesh-intelligence/taskbridge/internal/naming"
	"github.com/mesh-intelligence/taskbridge/internal/state"
	"github.com/mesh-intelligence/taskbridge/pkg/types"
)

// Reconcile runs one pass on behalf of the given source, mutating s and
// issuing writes to the opposite store. It returns what the pass did and
// whether s needs persisting. A cooldown skip is not an error: it returns
// an empty summary with dirty=false.
func (r *Reconciler) Reconcile(ctx context.Context, source types.Source, s *state.State) (Summary, bool, error) {
	if !source.Valid() {
		return Summary{}, false, fmt.Errorf("%w: %q", types.ErrUnknownSource, source)
	}

	if ShouldSkip(s.Marker, source, r.now(), r.cfg.CooldownWindow) {
		r.log.WithFields(logrus.Fields{
			"source":      source,
			"last_origin": s.Marker.LastPassOrigin,
		}).Debug("skipping pass inside cooldown window, presumed echo")
		return Summary{}, false, nil
	}

	passID := newPassID()
	log := r.log.WithFields(logrus.Fields{"pass": passID, "source": source})
	log.Info("starting reconciliation pass")

	var (
		sum Summary
		err error
	)
	switch source {
	case types.SourceNotes:
		sum, err = r.fromNotes(ctx, s, log)
	case types.SourceTasks:
		sum, err = r.fromTasks(ctx, s, log)
	}
	if err != nil {
		// The pass aborted before mutating the marker; state is not
		// saved and the next trigger re-derives any missed work.
		return Summary{}, false, err
	}

	s.Marker = state.Marker{
		LastPassTime:   r.now(),
		LastPassOrigin: source,
		LastPassID:     passID,
	}

	log.WithFields(logrus.Fields{
		"created":   sum.Created,
		"completed": sum.Completed,
		"adopted":   sum.Adopted,
		"skipped":   sum.Skipped,
		"removed":   sum.Removed,
	}).Info("pass complete")
	return sum, true, nil
}

// fromNotes propagates notes-side changes into the task store: untracked
// incomplete occurrences become new items, tracked occurrences that turned
// complete get a completion write. Never deletes or un-completes anything
// in the task store.
func (r *Reconciler) fromNotes(ctx context.Context, s *state.State, log *logrus.Entry) (Summary, error) {
	var sum Summary

	containers, err := r.notes.ListContainers(ctx)
	if err != nil {
		return sum, fmt.Errorf("list note containers: %w", err)
	}

	if !r.tasks.Available(ctx) {
		return sum, fmt.Errorf("%w: task store not running, will retry on next trigger", types.ErrStoreUnavailable)
	}

	projects, err := r.tasks.Projects(ctx)
	if err != nil {
		return sum, fmt.Errorf("list projects: %w", err)
	}

	incomplete, err := r.tasks.ListIncompleteItems(ctx, "")
	if err != nil {
		return sum, fmt.Errorf("list incomplete items: %w", err)
	}
	// Index for duplicate adoption: normalized item name -> remote ID.
	existing := make(map[string]string, len(incomplete))
	for _, item := range incomplete {
		existing[naming.Key(item.Name)] = item.ID
	}

	live := make(map[string]bool, len(containers))
	for _, container := range containers {
		live[container.ID] = true
		r.reconcileContainer(ctx, s, container, projects, existing, log, &sum)
	}

	sum.Removed = s.GC(live)
	return sum, nil
}

// reconcileContainer handles one note: completion propagation for tracked
// records first, then creation of untracked incomplete occurrences.
func (r *Reconciler) reconcileContainer(
	ctx context.Context,
	s *state.State,
	container types.Container,
	projects map[string]string,
	existing map[string]string,
	log *logrus.Entry,
	sum *Summary,
) {
	rec := s.Container(container.ID, container.Title)

	current := make(map[string]types.Occurrence, len(container.Occurrences))
	for _, occ := range container.Occurrences {
		current[identity.Derive(container.ID, occ.Text)] = occ
	}

	// Completion check for already-tracked items. Identity is tried first;
	// a snapshot re-match handles lightly edited lines and re-keys the
	// record under the new identity. The key list is snapshotted up front
	// because re-keying mutates the map mid-walk.
	ids := make([]string, 0, len(rec.Records))
	for id := range rec.Records {
		ids = append(ids, id)
	}
	for _, id := range ids {
		tracked := rec.Records[id]
		if tracked == nil {
			// Re-keyed away earlier in this walk.
			continue
		}
		occ, ok := current[id]
		if !ok {
			occ, ok = matchOccurrence(container.ID, tracked.TextSnapshot, container.Occurrences)
			if !ok {
				continue
			}
			if newID := identity.Derive(container.ID, occ.Text); newID != id {
				log.WithFields(logrus.Fields{"old": id, "new": newID}).
					Warn("occurrence text changed, re-keying record")
				rec.Records[newID] = tracked
				delete(rec.Records, id)
				tracked.TextSnapshot = occ.Text
			}
		}

		if !occ.Completed || tracked.Completed {
			continue
		}
		if tracked.RemoteID == "" {
			// Record survives from a v1 state file; nothing to complete.
			continue
		}
		ok, err := r.tasks.CompleteItem(ctx, tracked.RemoteID)
		if err != nil || !ok {
			log.WithField("remote_id", tracked.RemoteID).WithError(err).
				Warn("completion write failed, will retry next pass")
			sum.Skipped++
			continue
		}
		tracked.Completed = true
		tracked.ModifiedAt = r.now()
		tracked.ModifiedBy = types.SourceNotes
		sum.Completed++
		log.WithField("text", occ.Text).Info("completed in task store")
	}

	// Create untracked incomplete occurrences.
	for _, occ := range container.Occurrences {
		if occ.Completed {
			continue
		}
		id := identity.Derive(container.ID, occ.Text)
		if _, tracked := rec.Records[id]; tracked {
			continue
		}
		if _, matched := matchSnapshot(rec.Records, container.ID, occ.Text); matched {
			// Already tracked under a pre-edit identity; the completion
			// loop above re-keys it.
			continue
		}

		labels, project := r.routeLabels(occ.Labels, projects)

		if remoteID, ok := existing[naming.Key(occ.Text)]; ok {
			// An incomplete item with this name already exists remotely
			// (state was reset or the item predates tracking). Adopt it
			// instead of creating a duplicate.
			rec.Records[id] = &state.SyncRecord{
				RemoteID:     remoteID,
				TextSnapshot: occ.Text,
				ModifiedAt:   r.now(),
				ModifiedBy:   types.SourceNotes,
			}
			sum.Adopted++
			log.WithFields(logrus.Fields{"text": occ.Text, "remote_id": remoteID}).
				Info("adopted existing task store item")
			continue
		}

		remoteID, err := r.tasks.CreateItem(ctx, types.NewItem{
			Name:    occ.Text,
			Body:    fmt.Sprintf("From note: %s\n%s", container.Title, r.notes.ContainerURL(container.ID)),
			Labels:  labels,
			Project: project,
		})
		if err != nil || remoteID == "" {
			log.WithField("text", occ.Text).WithError(err).
				Warn("create failed, will retry next pass")
			sum.Skipped++
			continue
		}

		rec.Records[id] = &state.SyncRecord{
			RemoteID:     remoteID,
			TextSnapshot: occ.Text,
			ModifiedAt:   r.now(),
			ModifiedBy:   types.SourceNotes,
		}
		sum.Created++
		fields := logrus.Fields{"text": occ.Text, "note": container.Title}
		if project != "" {
			fields["project"] = project
		}
		log.WithFields(fields).Info("created in task store")
	}
}

// routeLabels normalizes the note's labels and applies the project
// exclusion rule: the first label whose normalized form names an existing
// project routes the item into that project and is dropped from the label
// set. The sync tag always leads the remaining labels.
func (r *Reconciler) routeLabels(raw []string, projects map[string]string) (labels []string, project string) {
	labels = []string{r.cfg.SyncTag}
	for _, l := range raw {
		name := naming.Normalize(l)
		if name.Key == "" {
			continue
		}
		if project == "" {
			if display, ok := projects[name.Key]; ok {
				project = display
				continue
			}
		}
		labels = append(labels, name.Display)
	}
	return labels, project
}

// matchSnapshot reports whether any tracked record's snapshot still refers
// to this occurrence text, under normalized equality.
func matchSnapshot(records map[string]*state.SyncRecord, containerID, text string) (string, bool) {
	want := identity.Normalized(text)
	for id, rec := range records {
		if rec.TextSnapshot != "" && identity.Normalized(rec.TextSnapshot) == want {
			return id, true
		}
	}
	return "", false
}

// fromTasks propagates task-store completions back into note text.
// Creation never flows this way: the notes app is the authoring surface.
func (r *Reconciler) fromTasks(ctx context.Context, s *state.State, log *logrus.Entry) (Summary, error) {
	var sum Summary

	ids := s.TrackedRemoteIDs()
	if len(ids) == 0 {
		return sum, nil
	}

	completed, err := r.tasks.CompletedItems(ctx, ids)
	if err != nil {
		return sum, fmt.Errorf("query completed items: %w", err)
	}
	if len(completed) == 0 {
		return sum, nil
	}

	containers, err := r.notes.ListContainers(ctx)
	if err != nil {
		return sum, fmt.Errorf("list note containers: %w", err)
	}
	byID := make(map[string]types.Container, len(containers))
	for _, c := range containers {
		byID[c.ID] = c
	}

	for remoteID, done := range completed {
		if !done {
			continue
		}
		cid, _, rec, ok := s.FindByRemoteID(remoteID)
		if !ok || rec.Completed {
			continue
		}

		container, ok := byID[cid]
		if !ok {
			log.WithField("container", cid).Warn("source note gone, skipping completion write-back")
			sum.Skipped++
			continue
		}

		occ, ok := matchOccurrence(cid, rec.TextSnapshot, container.Occurrences)
		if !ok {
			log.WithFields(logrus.Fields{"container": cid, "text": rec.TextSnapshot}).
				Warn("no confident occurrence match, skipping completion write-back")
			sum.Skipped++
			continue
		}

		if !occ.Completed {
			wrote, err := r.notes.WriteCompletion(ctx, cid, occ.Text)
			if err != nil || !wrote {
				log.WithField("text", occ.Text).WithError(err).
					Warn("note completion write failed, will retry next pass")
				sum.Skipped++
				continue
			}
		}

		rec.Completed = true
		rec.ModifiedAt = r.now()
		rec.ModifiedBy = types.SourceTasks
		sum.Completed++
		log.WithField("text", occ.Text).Info("completed in note")
	}
	return sum, nil
}
