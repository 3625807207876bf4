// Package index implements the exact-line membership structures that back
// linesearch queries. Every mode answers the same question, whether target
// is byte-equal to some corpus line, with different build and query costs.
package index

import (
	"fmt"

	lserrors "github.com/Aman-CERP/linesearch/internal/errors"
)

// Index answers exact-line membership for one corpus snapshot.
// Implementations are immutable after Build and safe for concurrent use.
type Index interface {
	// Mode reports the representation the index was built with.
	Mode() Mode
	// Len reports the number of corpus lines indexed, duplicates included.
	Len() int
	// Contains reports whether target equals some line byte for byte.
	Contains(target string) bool
}

// Build constructs the index for mode over lines. The slice is not modified
// but may be retained; callers must not mutate it afterwards.
// An invalid mode builds a linear index.
func Build(lines []string, mode Mode) Index {
	switch mode {
	case ModeHashSet:
		return newHashSet(lines)
	case ModeHashMap:
		return newHashMap(lines)
	case ModeEnumeratedMap:
		return newEnumeratedMap(lines)
	case ModeSortedArray:
		return newSortedArray(lines)
	case ModeTrie:
		return newTrie(lines)
	default:
		return newLinear(lines)
	}
}

// Query runs target against idx, which must have been built for mode.
func Query(idx Index, mode Mode, target string) (bool, error) {
	if idx == nil {
		return false, lserrors.SearchError(lserrors.ErrCodeIndexNotPrepared, "Index not prepared")
	}
	if idx.Mode() != mode {
		return false, lserrors.SearchError(lserrors.ErrCodeModeMismatch,
			fmt.Sprintf("Index built for %s, queried as %s", idx.Mode(), mode))
	}
	return idx.Contains(target), nil
}
