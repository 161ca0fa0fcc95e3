package engine

import (
	"github.com/sahilm/fuzzy"

	"github.com/mesh-intelligence/taskbridge/internal/identity"
	"github.com/mesh-intelligence/taskbridge/pkg/types"
)

// matchOccurrence locates the live occurrence a stored text snapshot
// refers to, after the note line may have moved or been lightly edited.
// Strategies are tried in order; the first confident hit wins:
//
//  1. exact identity — the snapshot still derives to an occurrence's
//     identity (callers usually check this via map lookup first, but the
//     strategy is kept here so the ranked list is complete on its own);
//  2. normalized-text equality against each occurrence;
//  3. fuzzy rank over the normalized texts, accepted only when the top
//     candidate is confidently close.
//
// No confident hit returns ok=false; the caller skips the item with a
// warning rather than guessing.
func matchOccurrence(containerID, snapshot string, occs []types.Occurrence) (types.Occurrence, bool) {
	if snapshot == "" || len(occs) == 0 {
		return types.Occurrence{}, false
	}

	wantID := identity.Derive(containerID, snapshot)
	for _, occ := range occs {
		if identity.Derive(containerID, occ.Text) == wantID {
			return occ, true
		}
	}

	want := identity.Normalized(snapshot)
	for _, occ := range occs {
		if identity.Normalized(occ.Text) == want {
			return occ, true
		}
	}

	return fuzzyMatch(want, occs)
}

// fuzzyMatch ranks occurrences against the normalized snapshot and accepts
// the best hit only when it is confidently close: every snapshot rune must
// match in order, and the candidate may not be more than half again as
// long as the snapshot. Anything weaker is ambiguous and rejected.
func fuzzyMatch(want string, occs []types.Occurrence) (types.Occurrence, bool) {
	candidates := make([]string, len(occs))
	for i, occ := range occs {
		candidates[i] = identity.Normalized(occ.Text)
	}

	matches := fuzzy.Find(want, candidates)
	if len(matches) == 0 {
		return types.Occurrence{}, false
	}

	top := matches[0]
	if len(top.MatchedIndexes) < len([]rune(want)) {
		return types.Occurrence{}, false
	}
	if len(candidates[top.Index]) > len(want)+len(want)/2 {
		return types.Occurrence{}, false
	}
	return occs[top.Index], true
}
