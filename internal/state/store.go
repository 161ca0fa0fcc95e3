package state

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"

	"github.com/mesh-intelligence/taskbridge/pkg/types"
)

const (
	stateFileName  = "sync_state.json"
	backupFileName = "sync_state.json.backup"
	lockFileName   = "sync.lock"

	lockRetryInterval = 100 * time.Millisecond
)

// Store owns the state file on disk. All access goes through Load, Save,
// and WithLock.
type Store struct {
	dataDir string
}

// NewStore returns a store rooted at dataDir. The directory is created on
// first save.
func NewStore(dataDir string) *Store {
	return &Store{dataDir: dataDir}
}

// Path returns the location of the state file.
func (st *Store) Path() string {
	return filepath.Join(st.dataDir, stateFileName)
}

// BackupPath returns the location of the pre-overwrite backup.
func (st *Store) BackupPath() string {
	return filepath.Join(st.dataDir, backupFileName)
}

// Load reads the state file, migrates it to the current schema, and
// returns the typed state. A missing file yields a fresh empty state. If
// the main file is unreadable the backup is tried; if both fail the error
// wraps types.ErrStateCorrupt so the caller surfaces it instead of
// resetting.
func (st *Store) Load() (*State, error) {
	doc, err := readDocument(st.Path())
	if os.IsNotExist(err) {
		return New(), nil
	}
	if err != nil {
		doc, err = readDocument(st.BackupPath())
		if err != nil {
			return nil, fmt.Errorf("%w: %s unreadable and backup failed: %v",
				types.ErrStateCorrupt, st.Path(), err)
		}
	}

	if err := Migrate(doc); err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrStateCorrupt, err)
	}

	s, err := decode(doc)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrStateCorrupt, err)
	}
	return s, nil
}

// Save writes the state atomically: serialize fully, write to a temp file
// in the same directory, fsync, then rename over the old file. The
// previous file is copied to the backup path first, so a crash mid-write
// never leaves the last valid state unrecoverable.
func (st *Store) Save(s *State) error {
	if err := os.MkdirAll(st.dataDir, 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}

	s.Version = CurrentVersion
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}

	if prev, err := os.ReadFile(st.Path()); err == nil {
		// Backup failure is logged by the caller via the wrapped save
		// error only if the write itself also fails; a stale backup is
		// better than no save.
		_ = os.WriteFile(st.BackupPath(), prev, 0o644)
	}

	tmp, err := os.CreateTemp(st.dataDir, ".sync_state-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("writing state: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("syncing temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Rename(tmpName, st.Path()); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("renaming temp file: %w", err)
	}
	return nil
}

// WithLock runs fn under the exclusive pass lock, loading the state first
// and saving it afterwards when fn reports it mutated something. Two
// concurrently triggered passes serialize here: the second blocks until
// the first releases the lock.
func (st *Store) WithLock(ctx context.Context, fn func(*State) (dirty bool, err error)) error {
	if err := os.MkdirAll(st.dataDir, 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}

	lock := flock.New(filepath.Join(st.dataDir, lockFileName))
	locked, err := lock.TryLockContext(ctx, lockRetryInterval)
	if err != nil {
		return fmt.Errorf("acquiring pass lock: %w", err)
	}
	if !locked {
		return fmt.Errorf("acquiring pass lock: not granted")
	}
	defer func() { _ = lock.Unlock() }()

	s, err := st.Load()
	if err != nil {
		return err
	}

	dirty, err := fn(s)
	if err != nil {
		return err
	}
	if dirty {
		return st.Save(s)
	}
	return nil
}

func readDocument(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var doc map[string]any
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return doc, nil
}

// decode converts a migrated raw document into the typed State.
func decode(doc map[string]any) (*State, error) {
	data, err := json.Marshal(doc)
	if err != nil {
		return nil, err
	}
	s := New()
	if err := json.Unmarshal(data, s); err != nil {
		return nil, err
	}
	if s.Containers == nil {
		s.Containers = make(map[string]*ContainerRecord)
	}
	for _, c := range s.Containers {
		if c.Records == nil {
			c.Records = make(map[string]*SyncRecord)
		}
	}
	return s, nil
}
