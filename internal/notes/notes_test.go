package notes

import (
	"context"
	"database/sql"
	"io"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/mesh-intelligence/taskbridge/pkg/types"
)

const fixtureSchema = `
CREATE TABLE ZSFNOTE (
	Z_PK INTEGER PRIMARY KEY,
	ZUNIQUEIDENTIFIER TEXT,
	ZTITLE TEXT,
	ZTEXT TEXT,
	ZTRASHED INTEGER DEFAULT 0,
	ZARCHIVED INTEGER DEFAULT 0
);
CREATE TABLE ZSFNOTETAG (
	Z_PK INTEGER PRIMARY KEY,
	ZTITLE TEXT
);
CREATE TABLE Z_5TAGS (
	Z_5NOTES INTEGER,
	Z_13TAGS INTEGER
);
`

func createDB(t *testing.T, schema string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "database.sqlite")
	db, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	defer db.Close()
	_, err = db.Exec(schema)
	require.NoError(t, err)
	return path
}

func seed(t *testing.T, path string, stmts ...string) {
	t.Helper()
	db, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	defer db.Close()
	for _, stmt := range stmts {
		_, err := db.Exec(stmt)
		require.NoError(t, err)
	}
}

func quiet() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

// fakeRunner records scripts and serves canned note text, so the
// completion round trip can be tested without osascript.
type fakeRunner struct {
	noteText string
	scripts  []string
	err      error
}

func (f *fakeRunner) Run(ctx context.Context, script string) (string, error) {
	return f.RunRetry(ctx, script)
}

func (f *fakeRunner) RunRetry(ctx context.Context, script string) (string, error) {
	f.scripts = append(f.scripts, script)
	if f.err != nil {
		return "", f.err
	}
	if strings.Contains(script, "return text of note") {
		return f.noteText, nil
	}
	return "true", nil
}

func openStore(t *testing.T, path string, runner *fakeRunner) *Store {
	t.Helper()
	s, err := Open(context.Background(), path, runner, types.Default(), quiet())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestOpenValidSchema(t *testing.T) {
	path := createDB(t, fixtureSchema)
	s, err := Open(context.Background(), path, &fakeRunner{}, types.Default(), quiet())
	require.NoError(t, err)
	s.Close()
}

func TestOpenSchemaDrift(t *testing.T) {
	tests := []struct {
		name   string
		schema string
	}{
		{
			"missing table",
			`CREATE TABLE ZSFNOTE (Z_PK INTEGER PRIMARY KEY, ZUNIQUEIDENTIFIER TEXT,
				ZTITLE TEXT, ZTEXT TEXT, ZTRASHED INTEGER, ZARCHIVED INTEGER);`,
		},
		{
			"missing column",
			`CREATE TABLE ZSFNOTE (Z_PK INTEGER PRIMARY KEY, ZUNIQUEIDENTIFIER TEXT,
				ZTITLE TEXT, ZTEXT TEXT, ZTRASHED INTEGER);
			CREATE TABLE ZSFNOTETAG (Z_PK INTEGER PRIMARY KEY, ZTITLE TEXT);
			CREATE TABLE Z_5TAGS (Z_5NOTES INTEGER, Z_13TAGS INTEGER);`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := createDB(t, tt.schema)
			_, err := Open(context.Background(), path, &fakeRunner{}, types.Default(), quiet())
			assert.ErrorIs(t, err, types.ErrSchemaDrift)
		})
	}
}

func TestListContainers(t *testing.T) {
	path := createDB(t, fixtureSchema)
	seed(t, path,
		`INSERT INTO ZSFNOTE (Z_PK, ZUNIQUEIDENTIFIER, ZTITLE, ZTEXT) VALUES
			(1, 'N1', 'Groceries', '- [ ] Buy milk' || char(10) || '- [x] Pay rent'),
			(2, 'N2', 'Plain note', 'no items here'),
			(3, 'N3', NULL, '* [ ] Untitled item')`,
		`INSERT INTO ZSFNOTE (Z_PK, ZUNIQUEIDENTIFIER, ZTITLE, ZTEXT, ZTRASHED) VALUES
			(4, 'N4', 'Trashed', '- [ ] Gone', 1)`,
		`INSERT INTO ZSFNOTE (Z_PK, ZUNIQUEIDENTIFIER, ZTITLE, ZTEXT, ZARCHIVED) VALUES
			(5, 'N5', 'Archived', '- [ ] Gone too', 1)`,
		`INSERT INTO ZSFNOTETAG (Z_PK, ZTITLE) VALUES (10, 'Errands'), (11, 'TrainingTools')`,
		`INSERT INTO Z_5TAGS (Z_5NOTES, Z_13TAGS) VALUES (1, 10), (1, 11)`,
	)

	s := openStore(t, path, &fakeRunner{})
	containers, err := s.ListContainers(context.Background())
	require.NoError(t, err)
	require.Len(t, containers, 2)

	byID := make(map[string]types.Container)
	for _, c := range containers {
		byID[c.ID] = c
	}

	groceries := byID["N1"]
	assert.Equal(t, "Groceries", groceries.Title)
	require.Len(t, groceries.Occurrences, 2)
	assert.Equal(t, "Buy milk", groceries.Occurrences[0].Text)
	assert.False(t, groceries.Occurrences[0].Completed)
	assert.ElementsMatch(t, []string{"Errands", "TrainingTools"}, groceries.Occurrences[0].Labels)
	assert.True(t, groceries.Occurrences[1].Completed)

	untitled := byID["N3"]
	assert.Equal(t, "Untitled", untitled.Title)
	require.Len(t, untitled.Occurrences, 1)
	assert.Empty(t, untitled.Occurrences[0].Labels)
}

func TestWriteCompletion(t *testing.T) {
	runner := &fakeRunner{noteText: "# Groceries\n- [ ] Buy milk\n- [ ] Walk dog"}
	path := createDB(t, fixtureSchema)
	s := openStore(t, path, runner)

	ok, err := s.WriteCompletion(context.Background(), "N1", "Buy milk")
	require.NoError(t, err)
	assert.True(t, ok)

	require.Len(t, runner.scripts, 2)
	set := runner.scripts[1]
	assert.Contains(t, set, `note id "N1"`)
	assert.Contains(t, set, `- [x] Buy milk`)
	assert.Contains(t, set, `- [ ] Walk dog`)
}

func TestWriteCompletionFlipsOnlyFirstMatch(t *testing.T) {
	runner := &fakeRunner{noteText: "- [ ] Buy milk\n- [ ] Buy milk"}
	path := createDB(t, fixtureSchema)
	s := openStore(t, path, runner)

	ok, err := s.WriteCompletion(context.Background(), "N1", "Buy milk")
	require.NoError(t, err)
	assert.True(t, ok)

	set := runner.scripts[1]
	assert.Equal(t, 1, strings.Count(set, `[x] Buy milk`))
	assert.Equal(t, 1, strings.Count(set, `[ ] Buy milk`))
}

func TestWriteCompletionNotFound(t *testing.T) {
	runner := &fakeRunner{noteText: "- [ ] Walk dog"}
	path := createDB(t, fixtureSchema)
	s := openStore(t, path, runner)

	ok, err := s.WriteCompletion(context.Background(), "N1", "Buy milk")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Len(t, runner.scripts, 1)
}

func TestWriteCompletionSkipsCheckedLines(t *testing.T) {
	runner := &fakeRunner{noteText: "- [x] Buy milk"}
	path := createDB(t, fixtureSchema)
	s := openStore(t, path, runner)

	ok, err := s.WriteCompletion(context.Background(), "N1", "Buy milk")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestContainerURL(t *testing.T) {
	path := createDB(t, fixtureSchema)
	s := openStore(t, path, &fakeRunner{})
	assert.Equal(t, "bear://x-callback-url/open-note?id=ABC-123", s.ContainerURL("ABC-123"))
}
