// Package tasks is the task-manager adapter: reads go against the app's
// SQLite database read-only, writes go through the scripting bridge. The
// database is never written directly.
package tasks

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"

	"github.com/mesh-intelligence/taskbridge/internal/naming"
	"github.com/mesh-intelligence/taskbridge/internal/osa"
	"github.com/mesh-intelligence/taskbridge/pkg/types"
)

// Status and type values in the TMTask table. Projects and headings live
// in the same table as to-dos, distinguished by type.
const (
	statusIncomplete = 0
	statusCompleted  = 3
	typeToDo         = 0
)

// requiredSchema is the database shape this version understands.
var requiredSchema = map[string][]string{
	"TMTask": {"uuid", "status", "trashed", "title", "type"},
}

// Store implements engine.TaskStore.
type Store struct {
	db     *sql.DB
	path   string
	runner osa.Runner
	cfg    types.Config
	log    *logrus.Logger
}

// Open opens the task database read-only and validates its schema once.
// A schema mismatch returns an error wrapping types.ErrSchemaDrift.
func Open(ctx context.Context, path string, runner osa.Runner, cfg types.Config, log *logrus.Logger) (*Store, error) {
	dsn := fmt.Sprintf("file:%s?mode=ro&_pragma=busy_timeout(%d)",
		path, cfg.SQLiteTimeout.Milliseconds())
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open tasks database: %w", err)
	}

	s := &Store{db: db, path: path, runner: runner, cfg: cfg, log: log}
	if err := s.validateSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) validateSchema(ctx context.Context) error {
	for table, columns := range requiredSchema {
		var name string
		err := s.db.QueryRowContext(ctx,
			`SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?`, table).Scan(&name)
		if err == sql.ErrNoRows {
			return fmt.Errorf("%w: tasks table %q not found", types.ErrSchemaDrift, table)
		}
		if err != nil {
			return fmt.Errorf("validate tasks schema: %w", err)
		}

		rows, err := s.db.QueryContext(ctx, fmt.Sprintf("PRAGMA table_info(%s)", table))
		if err != nil {
			return fmt.Errorf("validate tasks schema: %w", err)
		}
		existing := make(map[string]bool)
		for rows.Next() {
			var (
				cid        int
				col, typ   string
				notNull    int
				defaultVal sql.NullString
				pk         int
			)
			if err := rows.Scan(&cid, &col, &typ, &notNull, &defaultVal, &pk); err != nil {
				rows.Close()
				return fmt.Errorf("validate tasks schema: %w", err)
			}
			existing[col] = true
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return fmt.Errorf("validate tasks schema: %w", err)
		}
		rows.Close()

		for _, col := range columns {
			if !existing[col] {
				return fmt.Errorf("%w: tasks table %q missing column %q",
					types.ErrSchemaDrift, table, col)
			}
		}
	}
	s.log.Debug("tasks schema validation passed")
	return nil
}

// Available reports whether the task manager is running and can accept
// scripting-bridge writes.
func (s *Store) Available(ctx context.Context) bool {
	out, err := s.runner.Run(ctx, `tell application "System Events"
	return exists application process "Things3"
end tell`)
	if err != nil {
		return false
	}
	return strings.EqualFold(out, "true")
}

// Projects returns project names keyed by their normalized form, so notes
// labels can be routed to projects regardless of emoji and word-case
// differences.
func (s *Store) Projects(ctx context.Context) (map[string]string, error) {
	out, err := s.runner.Run(ctx, `tell application "Things3"
	set projectList to {}
	repeat with aProject in projects
		set end of projectList to name of aProject
	end repeat
	return projectList
end tell`)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}

	projects := make(map[string]string)
	if out == "" {
		return projects, nil
	}
	for _, name := range strings.Split(out, ", ") {
		if name == "" {
			continue
		}
		if key := naming.Normalize(name).Key; key != "" {
			projects[key] = name
		}
	}
	return projects, nil
}

// ListIncompleteItems returns the incomplete, non-trashed items, optionally
// scoped to a project by title.
func (s *Store) ListIncompleteItems(ctx context.Context, project string) ([]types.RemoteItem, error) {
	query := `
		SELECT uuid, title FROM TMTask
		WHERE status = ? AND trashed = 0 AND type = ? AND title != ''`
	args := []any{statusIncomplete, typeToDo}
	if project != "" {
		query = `
			SELECT t.uuid, t.title FROM TMTask t
			JOIN TMTask p ON t.project = p.uuid
			WHERE t.status = ? AND t.trashed = 0 AND t.type = ? AND t.title != '' AND p.title = ?`
		args = append(args, project)
	}

	var items []types.RemoteItem
	err := s.withBusyRetry(ctx, func() error {
		items = items[:0]
		rows, err := s.db.QueryContext(ctx, query, args...)
		if err != nil {
			return fmt.Errorf("query incomplete items: %w", err)
		}
		defer rows.Close()
		for rows.Next() {
			var it types.RemoteItem
			if err := rows.Scan(&it.ID, &it.Name); err != nil {
				return fmt.Errorf("scan item: %w", err)
			}
			items = append(items, it)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return items, nil
}

// CompletedItems reports which of the given tracked IDs are completed and
// not trashed. A trashed item is deliberately not treated as completed.
func (s *Store) CompletedItems(ctx context.Context, ids []string) (map[string]bool, error) {
	completed := make(map[string]bool)
	if len(ids) == 0 {
		return completed, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	query := fmt.Sprintf(`
		SELECT uuid FROM TMTask
		WHERE uuid IN (%s) AND status = %d AND trashed = 0`,
		placeholders, statusCompleted)
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	err := s.withBusyRetry(ctx, func() error {
		clear(completed)
		rows, err := s.db.QueryContext(ctx, query, args...)
		if err != nil {
			return fmt.Errorf("query completed items: %w", err)
		}
		defer rows.Close()
		for rows.Next() {
			var id string
			if err := rows.Scan(&id); err != nil {
				return fmt.Errorf("scan completed id: %w", err)
			}
			completed[id] = true
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	s.log.WithField("count", len(completed)).Debug("completed tracked items")
	return completed, nil
}

// CreateItem creates an item through the scripting bridge and returns its
// remote ID.
func (s *Store) CreateItem(ctx context.Context, item types.NewItem) (string, error) {
	props := []string{
		fmt.Sprintf(`name:"%s"`, osa.Escape(item.Name)),
		fmt.Sprintf(`notes:"%s"`, osa.Escape(item.Body)),
	}
	if len(item.Labels) > 0 {
		escaped := make([]string, len(item.Labels))
		for i, l := range item.Labels {
			escaped[i] = osa.Escape(l)
		}
		props = append(props, fmt.Sprintf(`tag names:"%s"`, strings.Join(escaped, ", ")))
	}

	var script string
	if item.Project != "" {
		script = fmt.Sprintf(`tell application "Things3"
	set targetProject to first project whose name is "%s"
	set newToDo to make new to do at end of to dos of targetProject with properties {%s}
	return id of newToDo
end tell`, osa.Escape(item.Project), strings.Join(props, ", "))
	} else {
		script = fmt.Sprintf(`tell application "Things3"
	set newToDo to make new to do with properties {%s}
	return id of newToDo
end tell`, strings.Join(props, ", "))
	}

	id, err := s.runner.RunRetry(ctx, script)
	if err != nil {
		return "", fmt.Errorf("create item %q: %w", item.Name, err)
	}
	if id == "" {
		return "", fmt.Errorf("create item %q: empty remote id", item.Name)
	}
	return id, nil
}

// CompleteItem marks the item with the given remote ID completed.
func (s *Store) CompleteItem(ctx context.Context, remoteID string) (bool, error) {
	script := fmt.Sprintf(`tell application "Things3"
	set theTodo to to do id "%s"
	set status of theTodo to completed
	return true
end tell`, osa.Escape(remoteID))

	if _, err := s.runner.RunRetry(ctx, script); err != nil {
		return false, fmt.Errorf("complete item %s: %w", remoteID, err)
	}
	return true, nil
}

// withBusyRetry runs fn, retrying locked-database failures with bounded
// exponential backoff.
func (s *Store) withBusyRetry(ctx context.Context, fn func() error) error {
	delay := s.cfg.RetryInitialDelay
	var lastErr error
	for attempt := 1; attempt <= s.cfg.MaxRetries; attempt++ {
		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		if !isLocked(lastErr) {
			return lastErr
		}
		if attempt < s.cfg.MaxRetries {
			s.log.WithFields(logrus.Fields{
				"attempt": attempt,
				"max":     s.cfg.MaxRetries,
			}).Warn("tasks database locked, retrying")
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return ctx.Err()
			}
			delay *= 2
		}
	}
	return fmt.Errorf("tasks database locked after %d attempts: %w", s.cfg.MaxRetries, lastErr)
}

func isLocked(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "locked") || strings.Contains(msg, "busy")
}
