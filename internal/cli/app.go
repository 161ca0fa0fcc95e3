package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/mesh-intelligence/taskbridge/internal/engine"
	"github.com/mesh-intelligence/taskbridge/internal/logging"
	"github.com/mesh-intelligence/taskbridge/internal/notes"
	"github.com/mesh-intelligence/taskbridge/internal/osa"
	"github.com/mesh-intelligence/taskbridge/internal/paths"
	"github.com/mesh-intelligence/taskbridge/internal/state"
	"github.com/mesh-intelligence/taskbridge/internal/tasks"
	"github.com/mesh-intelligence/taskbridge/pkg/types"
)

// scriptTimeout bounds a single osascript invocation.
const scriptTimeout = 30 * time.Second

// app bundles the wired-up components behind the sync and watch commands.
type app struct {
	cfg     types.Config
	log     *logrus.Logger
	store   *state.Store
	rec     *engine.Reconciler
	notes   *notes.Store
	tasks   *tasks.Store
	runner  *osa.Exec
	dataDir string

	notesDBPath string
	tasksDBPath string
}

// buildApp resolves directories, loads configuration, discovers the
// upstream databases, and opens both adapters.
func buildApp(ctx context.Context) (*app, error) {
	configDir, err := paths.ResolveConfigDir(flags.configDir)
	if err != nil {
		return nil, fmt.Errorf("resolve config dir: %w", err)
	}
	cfg, err := loadConfig(configDir)
	if err != nil {
		return nil, err
	}
	dataDir, err := paths.ResolveDataDir(flags.dataDir, "")
	if err != nil {
		return nil, fmt.Errorf("resolve data dir: %w", err)
	}

	log, err := logging.New(cfg.LogLevel, dataDir)
	if err != nil {
		return nil, err
	}

	notesDB, err := paths.NotesDatabasePath(cfg.NotesDatabasePath)
	if err != nil {
		return nil, err
	}
	tasksDB, err := paths.TasksDatabasePath(cfg.TasksDatabasePath)
	if err != nil {
		return nil, err
	}

	runner := osa.NewExec(scriptTimeout, cfg.MaxRetries, cfg.RetryInitialDelay, log)

	noteStore, err := notes.Open(ctx, notesDB, runner, cfg, log)
	if err != nil {
		return nil, err
	}
	taskStore, err := tasks.Open(ctx, tasksDB, runner, cfg, log)
	if err != nil {
		noteStore.Close()
		return nil, err
	}

	return &app{
		cfg:         cfg,
		log:         log,
		store:       state.NewStore(dataDir),
		rec:         engine.New(noteStore, taskStore, cfg, log),
		notes:       noteStore,
		tasks:       taskStore,
		runner:      runner,
		dataDir:     dataDir,
		notesDBPath: notesDB,
		tasksDBPath: tasksDB,
	}, nil
}

func (a *app) Close() {
	a.notes.Close()
	a.tasks.Close()
}

// runPass executes one reconciliation pass under the state lock and
// returns its summary. An unavailable task store additionally raises a
// user notification, since watch mode has no terminal to complain to.
func (a *app) runPass(ctx context.Context, source types.Source) (engine.Summary, error) {
	var sum engine.Summary
	err := a.store.WithLock(ctx, func(s *state.State) (bool, error) {
		var dirty bool
		var err error
		sum, dirty, err = a.rec.Reconcile(ctx, source, s)
		return dirty, err
	})
	if errors.Is(err, types.ErrStoreUnavailable) {
		a.runner.Notify(ctx, "Taskbridge",
			"Task manager is not running; sync deferred until the next change.")
	}
	return sum, err
}
