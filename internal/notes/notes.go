// Package notes reads checkbox items out of the notes app's SQLite
// database and writes completions back through the scripting bridge. The
// database itself is never written: it belongs to the app, and all
// mutations go through AppleScript so the app stays consistent.
package notes

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"

	"github.com/mesh-intelligence/taskbridge/internal/osa"
	"github.com/mesh-intelligence/taskbridge/pkg/types"
)

// requiredSchema is the shape of the notes database this version
// understands. Anything missing means the app updated underneath us and
// the pass must abort before touching either store.
var requiredSchema = map[string][]string{
	"ZSFNOTE":    {"ZUNIQUEIDENTIFIER", "ZTITLE", "ZTEXT", "Z_PK", "ZTRASHED", "ZARCHIVED"},
	"Z_5TAGS":    {"Z_5NOTES", "Z_13TAGS"},
	"ZSFNOTETAG": {"Z_PK", "ZTITLE"},
}

// Store is the read side of the notes app plus its scripting-bridge write
// path. It implements engine.NoteStore.
type Store struct {
	db     *sql.DB
	path   string
	runner osa.Runner
	cfg    types.Config
	log    *logrus.Logger
}

// Open opens the notes database read-only and validates its schema once.
// A schema mismatch returns an error wrapping types.ErrSchemaDrift.
func Open(ctx context.Context, path string, runner osa.Runner, cfg types.Config, log *logrus.Logger) (*Store, error) {
	dsn := fmt.Sprintf("file:%s?mode=ro&_pragma=busy_timeout(%d)",
		path, cfg.SQLiteTimeout.Milliseconds())
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open notes database: %w", err)
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
			return fmt.Errorf("%w: notes table %q not found", types.ErrSchemaDrift, table)
		}
		if err != nil {
			return fmt.Errorf("validate notes schema: %w", err)
		}

		existing, err := s.tableColumns(ctx, table)
		if err != nil {
			return fmt.Errorf("validate notes schema: %w", err)
		}
		for _, col := range columns {
			if !existing[col] {
				return fmt.Errorf("%w: notes table %q missing column %q",
					types.ErrSchemaDrift, table, col)
			}
		}
	}
	s.log.Debug("notes schema validation passed")
	return nil
}

func (s *Store) tableColumns(ctx context.Context, table string) (map[string]bool, error) {
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf("PRAGMA table_info(%s)", table))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	cols := make(map[string]bool)
	for rows.Next() {
		var (
			cid        int
			name, typ  string
			notNull    int
			defaultVal sql.NullString
			pk         int
		)
		if err := rows.Scan(&cid, &name, &typ, &notNull, &defaultVal, &pk); err != nil {
			return nil, err
		}
		cols[name] = true
	}
	return cols, rows.Err()
}

// ListContainers returns every live note whose text contains a checkbox
// marker, with occurrences parsed from its current content. Locked-database
// errors are retried with bounded exponential backoff because the app may
// be mid-write.
func (s *Store) ListContainers(ctx context.Context) ([]types.Container, error) {
	var (
		containers []types.Container
		lastErr    error
	)
	delay := s.cfg.RetryInitialDelay
	for attempt := 1; attempt <= s.cfg.MaxRetries; attempt++ {
		containers, lastErr = s.listOnce(ctx)
		if lastErr == nil {
			return containers, nil
		}
		if !isLocked(lastErr) {
			return nil, lastErr
		}
		if attempt < s.cfg.MaxRetries {
			s.log.WithFields(logrus.Fields{
				"attempt": attempt,
				"max":     s.cfg.MaxRetries,
			}).Warn("notes database locked, retrying")
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
			delay *= 2
		}
	}
	return nil, fmt.Errorf("notes database locked after %d attempts: %w", s.cfg.MaxRetries, lastErr)
}

func (s *Store) listOnce(ctx context.Context) ([]types.Container, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT ZUNIQUEIDENTIFIER, ZTITLE, ZTEXT, Z_PK
		FROM ZSFNOTE
		WHERE ZTRASHED = 0 AND ZARCHIVED = 0`)
	if err != nil {
		return nil, fmt.Errorf("query notes: %w", err)
	}
	defer rows.Close()

	type row struct {
		id    string
		title string
		text  string
		pk    int64
	}
	var candidates []row
	for rows.Next() {
		var (
			r     row
			title sql.NullString
			text  sql.NullString
		)
		if err := rows.Scan(&r.id, &title, &text, &r.pk); err != nil {
			return nil, fmt.Errorf("scan note: %w", err)
		}
		r.title = title.String
		r.text = text.String
		if r.title == "" {
			r.title = "Untitled"
		}
		if HasCheckbox(r.text) {
			candidates = append(candidates, r)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate notes: %w", err)
	}

	containers := make([]types.Container, 0, len(candidates))
	for _, c := range candidates {
		labels, err := s.noteLabels(ctx, c.pk)
		if err != nil {
			return nil, err
		}
		containers = append(containers, types.Container{
			ID:          c.id,
			Title:       c.title,
			Occurrences: ExtractOccurrences(c.id, c.text, labels),
		})
	}
	s.log.WithField("count", len(containers)).Debug("notes with checkbox items")
	return containers, nil
}

func (s *Store) noteLabels(ctx context.Context, notePK int64) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT ZSFNOTETAG.ZTITLE
		FROM Z_5TAGS
		JOIN ZSFNOTETAG ON Z_5TAGS.Z_13TAGS = ZSFNOTETAG.Z_PK
		WHERE Z_5TAGS.Z_5NOTES = ?`, notePK)
	if err != nil {
		return nil, fmt.Errorf("query note tags: %w", err)
	}
	defer rows.Close()

	var labels []string
	for rows.Next() {
		var title sql.NullString
		if err := rows.Scan(&title); err != nil {
			return nil, fmt.Errorf("scan tag: %w", err)
		}
		if title.String != "" {
			labels = append(labels, title.String)
		}
	}
	return labels, rows.Err()
}

// WriteCompletion flips the first unchecked occurrence whose text equals
// the hint to checked, round-tripping the note body through the scripting
// bridge. Returns false when no matching unchecked line exists.
func (s *Store) WriteCompletion(ctx context.Context, containerID, textHint string) (bool, error) {
	getScript := fmt.Sprintf(`tell application "Bear"
	return text of note id "%s"
end tell`, osa.Escape(containerID))

	content, err := s.runner.RunRetry(ctx, getScript)
	if err != nil {
		return false, fmt.Errorf("fetch note text: %w", err)
	}

	lines := strings.Split(content, "\n")
	modified := false
	for i, line := range lines {
		if modified {
			break
		}
		m := incompletePattern.FindStringSubmatch(strings.TrimSpace(line))
		if m == nil || strings.TrimSpace(m[1]) != textHint {
			continue
		}
		lines[i] = strings.Replace(line, "[ ]", "[x]", 1)
		modified = true
	}
	if !modified {
		s.log.WithFields(logrus.Fields{
			"note": containerID,
			"text": textHint,
		}).Warn("checkbox item not found in note")
		return false, nil
	}

	setScript := fmt.Sprintf(`tell application "Bear"
	set text of note id "%s" to "%s"
	return true
end tell`, osa.Escape(containerID), osa.Escape(strings.Join(lines, "\n")))

	if _, err := s.runner.RunRetry(ctx, setScript); err != nil {
		return false, fmt.Errorf("write note text: %w", err)
	}
	return true, nil
}

// ContainerURL returns the callback URL that opens the note, embedded in
// created items as a back-reference.
func (s *Store) ContainerURL(containerID string) string {
	return "bear://x-callback-url/open-note?id=" + containerID
}

func isLocked(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "locked") || strings.Contains(msg, "busy")
}
