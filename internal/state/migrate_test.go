package state

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fixtureV1 is a state document in the oldest shipped format: a bare list
// of synced identities per container.
func fixtureV1() map[string]any {
	return map[string]any{
		"containers": map[string]any{
			"NOTE1": map[string]any{
				"title":  "Groceries",
				"synced": []any{"NOTE1:aaaa0000", "NOTE1:bbbb1111"},
			},
		},
	}
}

// fixtureV2 has per-item records but no text snapshots and no marker.
func fixtureV2() map[string]any {
	return map[string]any{
		"_version": float64(2),
		"containers": map[string]any{
			"NOTE1": map[string]any{
				"title": "Groceries",
				"records": map[string]any{
					"NOTE1:12": map[string]any{
						"remote_id": "THINGS-1",
						"completed": true,
					},
				},
			},
		},
	}
}

func TestMigrateV1(t *testing.T) {
	doc := fixtureV1()
	require.NoError(t, Migrate(doc))
	assert.Equal(t, CurrentVersion, doc["_version"])

	s, err := decode(doc)
	require.NoError(t, err)

	c := s.Containers["NOTE1"]
	require.NotNil(t, c)
	assert.Equal(t, "Groceries", c.Title)
	require.Len(t, c.Records, 2)

	// v1 never stored remote IDs; the records exist only to suppress
	// duplicate creation.
	rec := c.Records["NOTE1:aaaa0000"]
	require.NotNil(t, rec)
	assert.Empty(t, rec.RemoteID)
	assert.False(t, rec.Completed)
	assert.Empty(t, rec.TextSnapshot)
}

func TestMigrateV2(t *testing.T) {
	doc := fixtureV2()
	require.NoError(t, Migrate(doc))
	assert.Equal(t, CurrentVersion, doc["_version"])

	// Marker installed with zero values.
	_, ok := doc["marker"]
	assert.True(t, ok)

	s, err := decode(doc)
	require.NoError(t, err)

	rec := s.Containers["NOTE1"].Records["NOTE1:12"]
	require.NotNil(t, rec)
	// Data the previous version relied on is preserved.
	assert.Equal(t, "THINGS-1", rec.RemoteID)
	assert.True(t, rec.Completed)
	// New field defaulted.
	assert.Empty(t, rec.TextSnapshot)
}

func TestMigrateMissingVersionTreatedAsV1(t *testing.T) {
	doc := map[string]any{"containers": map[string]any{}}
	require.NoError(t, Migrate(doc))
	assert.Equal(t, CurrentVersion, doc["_version"])
}

func TestMigrateCurrentVersionNoop(t *testing.T) {
	doc := map[string]any{
		"_version":   float64(CurrentVersion),
		"containers": map[string]any{},
	}
	require.NoError(t, Migrate(doc))
	assert.Equal(t, float64(CurrentVersion), doc["_version"])
}

func TestMigrateFutureVersionRejected(t *testing.T) {
	doc := map[string]any{"_version": float64(CurrentVersion + 1)}
	err := Migrate(doc)
	assert.Error(t, err)
}

func TestMigrateChainNeverSkips(t *testing.T) {
	// A v1 document must pass through the v2 shape: records derived from
	// the synced list must then gain the v3 text default.
	doc := fixtureV1()
	require.NoError(t, Migrate(doc))

	cs := doc["containers"].(map[string]any)
	c := cs["NOTE1"].(map[string]any)
	records := c["records"].(map[string]any)
	rec := records["NOTE1:aaaa0000"].(map[string]any)
	_, ok := rec["text"]
	assert.True(t, ok)
	// The original list is untouched; migrations only add.
	_, ok = c["synced"]
	assert.True(t, ok)
}
