package types

// Source identifies which store originated a change. Reconciliation passes
// are always run on behalf of exactly one source.
type Source string

const (
	// SourceNotes is the note-taking app: the authoring surface where
	// checkbox items are written.
	SourceNotes Source = "notes"

	// SourceTasks is the task manager: the sink that receives created
	// items and reports completions back.
	SourceTasks Source = "tasks"
)

// validSources is the set of recognized source values.
var validSources = map[Source]bool{
	SourceNotes: true,
	SourceTasks: true,
}

// Valid reports whether s is a recognized source.
func (s Source) Valid() bool {
	return validSources[s]
}

// Opposite returns the other source. Opposite of an invalid source is the
// empty string.
func (s Source) Opposite() Source {
	switch s {
	case SourceNotes:
		return SourceTasks
	case SourceTasks:
		return SourceNotes
	}
	return ""
}
