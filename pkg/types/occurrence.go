package types

// Occurrence is a single checkbox item found inside a note at pass time.
// Occurrences are ephemeral: they are re-parsed from the note's current
// content on every pass and never persisted directly.
type Occurrence struct {
	ContainerID string   // note the item was found in
	LineIndex   int      // zero-based line within the note (informational only)
	Text        string   // item text with the checkbox marker stripped
	Completed   bool     // true if the marker was checked
	Labels      []string // raw labels (tags) attached to the note
}

// Container is a note together with the occurrences parsed from it.
type Container struct {
	ID          string
	Title       string
	Occurrences []Occurrence
}

// RemoteItem is an item that exists in the task store.
type RemoteItem struct {
	ID   string
	Name string
}

// NewItem describes an item to create in the task store.
type NewItem struct {
	Name    string
	Body    string   // free-text notes attached to the item
	Labels  []string // display-form labels
	Project string   // display name of the target project; empty for the inbox
}
