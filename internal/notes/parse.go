package notes

import (
	"regexp"
	"strings"

	"github.com/mesh-intelligence/taskbridge/pkg/types"
)

// Checkbox line shapes. Both markdown bullet styles are accepted; the
// completed marker is case-insensitive.
var (
	incompletePattern = regexp.MustCompile(`^[-*]\s+\[ \]\s+(.+)$`)
	completedPattern  = regexp.MustCompile(`^[-*]\s+\[[xX]\]\s+(.+)$`)
)

// markers is the cheap pre-filter applied before line-by-line parsing.
var markers = []string{"- [ ]", "* [ ]", "- [x]", "* [x]", "- [X]", "* [X]"}

// HasCheckbox reports whether the content contains any checkbox marker.
func HasCheckbox(content string) bool {
	for _, m := range markers {
		if strings.Contains(content, m) {
			return true
		}
	}
	return false
}

// ExtractOccurrences parses note content into checkbox occurrences. Lines
// that are not checkbox items are ignored. The note's labels are attached
// to every occurrence.
func ExtractOccurrences(containerID, content string, labels []string) []types.Occurrence {
	var out []types.Occurrence
	for i, line := range strings.Split(content, "\n") {
		stripped := strings.TrimSpace(line)

		if m := incompletePattern.FindStringSubmatch(stripped); m != nil {
			out = append(out, types.Occurrence{
				ContainerID: containerID,
				LineIndex:   i,
				Text:        strings.TrimSpace(m[1]),
				Labels:      labels,
			})
			continue
		}
		if m := completedPattern.FindStringSubmatch(stripped); m != nil {
			out = append(out, types.Occurrence{
				ContainerID: containerID,
				LineIndex:   i,
				Text:        strings.TrimSpace(m[1]),
				Completed:   true,
				Labels:      labels,
			})
		}
	}
	return out
}
