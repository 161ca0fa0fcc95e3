package state

import "fmt"

// A migration upgrades the raw state document from version From to
// From+1. Migrations are pure over the document, add fields with safe
// defaults, and never delete or rename data the previous version relied
// on.
type migration struct {
	From  int
	Apply func(doc map[string]any)
}

// migrations is the ordered upgrade chain. Load applies every step between
// the document's version and CurrentVersion; steps are never skipped.
var migrations = []migration{
	{From: 1, Apply: migrateV1toV2},
	{From: 2, Apply: migrateV2toV3},
}

// Migrate upgrades doc in place to CurrentVersion. A document without a
// "_version" field is treated as version 1. Unknown future versions are an
// error: downgrading would have to drop data.
func Migrate(doc map[string]any) error {
	version := docVersion(doc)
	if version > CurrentVersion {
		return fmt.Errorf("state version %d is newer than supported version %d", version, CurrentVersion)
	}
	for _, m := range migrations {
		if version == m.From {
			m.Apply(doc)
			version = m.From + 1
			doc["_version"] = version
		}
	}
	return nil
}

func docVersion(doc map[string]any) int {
	v, ok := doc["_version"]
	if !ok {
		return 1
	}
	switch n := v.(type) {
	case float64:
		return int(n)
	case int:
		return n
	}
	return 1
}

// migrateV1toV2 converts each container's bare identity list ("synced")
// into the per-item record map. The original remote IDs were never stored
// in v1, so the records carry empty remote IDs; such records suppress
// duplicate creation but cannot propagate completions.
func migrateV1toV2(doc map[string]any) {
	for _, c := range containers(doc) {
		synced, ok := c["synced"].([]any)
		if !ok {
			continue
		}
		records := make(map[string]any, len(synced))
		for _, v := range synced {
			id, ok := v.(string)
			if !ok {
				continue
			}
			records[id] = map[string]any{
				"remote_id": "",
				"completed": false,
				"text":      "",
			}
		}
		c["records"] = records
	}
}

// migrateV2toV3 defaults the text snapshot on every record (v2 predates
// fuzzy re-matching) and installs the global pass marker. Line-based v2
// identities keep working as opaque keys; new syncs use content-based
// identities.
func migrateV2toV3(doc map[string]any) {
	for _, c := range containers(doc) {
		records, ok := c["records"].(map[string]any)
		if !ok {
			continue
		}
		for _, v := range records {
			rec, ok := v.(map[string]any)
			if !ok {
				continue
			}
			if _, ok := rec["text"]; !ok {
				rec["text"] = ""
			}
		}
	}
	if _, ok := doc["marker"]; !ok {
		doc["marker"] = map[string]any{}
	}
}

func containers(doc map[string]any) map[string]map[string]any {
	raw, ok := doc["containers"].(map[string]any)
	if !ok {
		return nil
	}
	out := make(map[string]map[string]any, len(raw))
	for id, v := range raw {
		if c, ok := v.(map[string]any); ok {
			out[id] = c
		}
	}
	return out
}
