// Package naming canonicalizes free-form labels so that tags from the
// notes app and project names from the task manager can be compared. Two
// labels refer to the same thing iff their normalized keys are equal,
// ignoring emoji, letter case, and spacing convention.
package naming

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var titleCaser = cases.Title(language.English)

// Name is the canonical form of a label. Key is the lowercase comparison
// form; Display is the Title Case form presented to the task store.
type Name struct {
	Key     string
	Display string
}

// Normalize canonicalizes a label:
//
//  1. runes outside the letter/digit/space class are dropped (decorative
//     glyphs, emoji, joiners);
//  2. a single no-space token in a capitalized-word pattern such as
//     "TrainingTools" is split before each upper rune that follows a lower
//     rune; labels that already contain whitespace pass through unchanged;
//  3. whitespace is collapsed and trimmed;
//  4. Key lowercases the result, Display title-cases each word.
func Normalize(label string) Name {
	s := stripSymbols(label)
	s = splitWordCase(s)
	s = collapseSpaces(s)
	return Name{
		Key:     strings.ToLower(s),
		Display: titleCaser.String(strings.ToLower(s)),
	}
}

// Key is shorthand for Normalize(label).Key.
func Key(label string) string {
	return Normalize(label).Key
}

// stripSymbols keeps letters, digits, and spaces; everything else is
// dropped. Covers emoji prefixes, variation selectors, and zero-width
// joiners in one pass.
func stripSymbols(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsSpace(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// splitWordCase inserts a space before each internal upper rune that
// follows a lower rune, but only when the token has no interior whitespace.
// A label that is already word-separated is left alone.
func splitWordCase(s string) string {
	trimmed := strings.TrimSpace(s)
	if strings.ContainsFunc(trimmed, unicode.IsSpace) {
		return s
	}
	var b strings.Builder
	b.Grow(len(trimmed) + 4)
	runes := []rune(trimmed)
	for i, r := range runes {
		if i > 0 && unicode.IsUpper(r) && unicode.IsLower(runes[i-1]) {
			b.WriteRune(' ')
		}
		b.WriteRune(r)
	}
	return b.String()
}

func collapseSpaces(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
