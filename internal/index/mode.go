package index

import (
	"log/slog"
	"strings"

	lserrors "github.com/Aman-CERP/linesearch/internal/errors"
)

// Mode selects the index representation used for a query.
type Mode int

const (
	// ModeLinear scans every line. No preprocessing.
	ModeLinear Mode = iota
	// ModeHashSet looks the target up in a set of lines.
	ModeHashSet
	// ModeHashMap looks the target up in a line -> bool map.
	ModeHashMap
	// ModeEnumeratedMap scans the values of a position -> line map.
	// Kept for benchmark comparisons; it is O(n) like ModeLinear.
	ModeEnumeratedMap
	// ModeSortedArray binary searches a sorted copy of the lines.
	ModeSortedArray
	// ModeTrie walks a byte trie with end-of-line markers.
	ModeTrie
)

// Modes lists every mode in declaration order.
var Modes = []Mode{
	ModeLinear,
	ModeHashSet,
	ModeHashMap,
	ModeEnumeratedMap,
	ModeSortedArray,
	ModeTrie,
}

var modeNames = [...]string{
	ModeLinear:        "linear",
	ModeHashSet:       "hash_set",
	ModeHashMap:       "hash_map",
	ModeEnumeratedMap: "enumerated_map",
	ModeSortedArray:   "sorted_array",
	ModeTrie:          "trie",
}

// aliases maps normalized wire names to modes. Older clients send the
// short names (naive, set, dict, index_map, binary) or the spelled-out
// "... search" names.
var aliases = map[string]Mode{
	"linear":          ModeLinear,
	"naive":           ModeLinear,
	"linear_search":   ModeLinear,
	"hash_set":        ModeHashSet,
	"set":             ModeHashSet,
	"hash_set_search": ModeHashSet,
	"hash_map":        ModeHashMap,
	"dict":            ModeHashMap,
	"map":             ModeHashMap,
	"enumerated_map":  ModeEnumeratedMap,
	"index_map":       ModeEnumeratedMap,
	"sorted_array":    ModeSortedArray,
	"binary":          ModeSortedArray,
	"binary_search":   ModeSortedArray,
	"sorted":          ModeSortedArray,
	"trie":            ModeTrie,
	"trie_search":     ModeTrie,
}

// String returns the canonical wire name of the mode.
func (m Mode) String() string {
	if m < 0 || int(m) >= len(modeNames) {
		return "unknown"
	}
	return modeNames[m]
}

// Valid reports whether m is one of the declared modes.
func (m Mode) Valid() bool {
	return m >= ModeLinear && m <= ModeTrie
}

// ParseMode looks up a mode by name. Matching ignores case, surrounding
// whitespace, and treats '-', '_' and ' ' as the same separator.
func ParseMode(name string) (Mode, bool) {
	m, ok := aliases[normalize(name)]
	return m, ok
}

// Resolve maps a requested name to a mode. An empty name yields fallback.
// An unrecognized name yields ModeLinear and a warning, so a bad mode never
// takes a request down.
func Resolve(name string, fallback Mode, logger *slog.Logger) Mode {
	if strings.TrimSpace(name) == "" {
		return fallback
	}
	if m, ok := ParseMode(name); ok {
		return m
	}
	if logger == nil {
		logger = slog.Default()
	}
	logger.Warn("unknown search mode, falling back to linear",
		slog.String("mode", name),
		slog.String("code", lserrors.ErrCodeUnknownMode))
	return ModeLinear
}

func normalize(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	return strings.Map(func(r rune) rune {
		if r == '-' || r == ' ' {
			return '_'
		}
		return r
	}, name)
}
