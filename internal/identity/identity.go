// Package identity derives stable, content-based identifiers for checkbox
// items found in notes. An identity depends only on the containing note and
// the item's semantic text, so it survives line moves, completion toggles,
// and whitespace edits.
package identity

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"strings"
)

// hashLen is the number of hex digits of the content hash kept in an
// identity. Eight digits give 32 bits of spread, plenty for the handful of
// items a single note holds; the note ID scopes the key anyway.
const hashLen = 8

// markerPattern strips a leading markdown checkbox marker, checked or not.
var markerPattern = regexp.MustCompile(`^[-*]\s+\[(?: |[xX])\]\s+`)

var spacePattern = regexp.MustCompile(`\s+`)

// Derive returns the stable identity for an item with the given raw text
// inside the given container. The result has the form "<containerID>:<hash>".
// Derive is a pure function: equal (container, semantic text) pairs always
// produce equal identities.
func Derive(containerID, rawText string) string {
	sum := sha256.Sum256([]byte(normalize(rawText)))
	return containerID + ":" + hex.EncodeToString(sum[:])[:hashLen]
}

// normalize reduces raw item text to its semantic form: the checkbox
// marker (if still present) is dropped, whitespace is collapsed, and the
// result is lowercased. Toggling completion or re-indenting a line must not
// change the normalized form.
func normalize(rawText string) string {
	s := strings.TrimSpace(rawText)
	s = markerPattern.ReplaceAllString(s, "")
	s = spacePattern.ReplaceAllString(s, " ")
	return strings.ToLower(strings.TrimSpace(s))
}

// Normalized exposes the normalized text form used for hashing. The engine
// uses it for snapshot comparison during fuzzy re-matching.
func Normalized(rawText string) string {
	return normalize(rawText)
}
