// Package watcher triggers reconciliation passes when an upstream database
// file changes on disk. Each source is throttled independently so a burst
// of writes from an app does not thrash the engine.
package watcher

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"

	"github.com/mesh-intelligence/taskbridge/pkg/types"
)

// PassFunc runs one reconciliation pass for the given change origin.
type PassFunc func(ctx context.Context, source types.Source) error

// Target is one database file to monitor. The containing directory is
// watched because SQLite writes through -wal and -shm siblings.
type Target struct {
	Source       types.Source
	DatabasePath string
}

// Watcher monitors the target databases and fires passes.
type Watcher struct {
	targets     []Target
	fire        PassFunc
	minInterval time.Duration
	log         *logrus.Logger

	now      func() time.Time
	lastFire map[types.Source]time.Time
}

// New returns a Watcher over the given targets.
func New(targets []Target, minInterval time.Duration, fire PassFunc, log *logrus.Logger) *Watcher {
	return &Watcher{
		targets:     targets,
		fire:        fire,
		minInterval: minInterval,
		log:         log,
		now:         time.Now,
		lastFire:    make(map[types.Source]time.Time),
	}
}

// Run watches until the context is canceled. It returns the context error
// on cancellation and any watcher setup failure immediately.
func (w *Watcher) Run(ctx context.Context) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create file watcher: %w", err)
	}
	defer fsw.Close()

	for _, t := range w.targets {
		dir := filepath.Dir(t.DatabasePath)
		if err := fsw.Add(dir); err != nil {
			return fmt.Errorf("watch %s: %w", dir, err)
		}
		w.log.WithFields(logrus.Fields{
			"source": t.Source,
			"dir":    dir,
		}).Info("watching database directory")
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			w.handleEvent(ctx, ev)
		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			w.log.WithError(err).Warn("file watcher error")
		}
	}
}

func (w *Watcher) handleEvent(ctx context.Context, ev fsnotify.Event) {
	if !ev.Op.Has(fsnotify.Write) && !ev.Op.Has(fsnotify.Create) {
		return
	}

	target, ok := w.match(ev.Name)
	if !ok {
		return
	}

	now := w.now()
	if since := now.Sub(w.lastFire[target.Source]); since < w.minInterval {
		w.log.WithFields(logrus.Fields{
			"source": target.Source,
			"since":  since,
		}).Debug("change ignored, too soon since last pass")
		return
	}

	w.log.WithFields(logrus.Fields{
		"source": target.Source,
		"file":   ev.Name,
	}).Info("database changed")

	if err := w.fire(ctx, target.Source); err != nil {
		w.log.WithError(err).WithField("source", target.Source).Error("pass failed")
		return
	}
	w.lastFire[target.Source] = w.now()
}

// match reports which target, if any, the changed path belongs to. SQLite
// sidecar files (-wal, -shm, journals) count as changes to the database.
func (w *Watcher) match(path string) (Target, bool) {
	base := filepath.Base(path)
	for _, t := range w.targets {
		if strings.Contains(base, filepath.Base(t.DatabasePath)) {
			return t, true
		}
	}
	return Target{}, false
}
