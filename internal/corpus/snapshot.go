package corpus

import (
	"bytes"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"

	"github.com/Aman-CERP/linesearch/internal/index"
)

// Snapshot is one immutable load of the corpus file. Indexes are derived
// from it lazily, at most once per mode while cached.
type Snapshot struct {
	// Version increases by one with every successful load.
	Version uint64
	// Path is the file the lines were read from.
	Path string
	// Lines holds the corpus in file order. Never modified.
	Lines []string
	// LoadedAt is when the file finished loading.
	LoadedAt time.Time

	indexes *lru.Cache[index.Mode, index.Index]
	flight  singleflight.Group
}

func newSnapshot(version uint64, path string, lines []string, cacheSize int) *Snapshot {
	// lru.New only fails for a non-positive size.
	cache, _ := lru.New[index.Mode, index.Index](cacheSize)
	return &Snapshot{
		Version:  version,
		Path:     path,
		Lines:    lines,
		LoadedAt: time.Now(),
		indexes:  cache,
	}
}

// Index returns the index for mode, building it on first use. Concurrent
// callers asking for the same mode share one build.
func (s *Snapshot) Index(mode index.Mode) index.Index {
	if idx, ok := s.indexes.Get(mode); ok {
		return idx
	}

	v, _, _ := s.flight.Do(mode.String(), func() (any, error) {
		if idx, ok := s.indexes.Get(mode); ok {
			return idx, nil
		}
		idx := index.Build(s.Lines, mode)
		s.indexes.Add(mode, idx)
		return idx, nil
	})
	return v.(index.Index)
}

// Cached reports whether the index for mode is currently built.
func (s *Snapshot) Cached(mode index.Mode) bool {
	return s.indexes.Contains(mode)
}

// splitLines breaks data into lines on '\n', dropping a trailing '\r' from
// each and the empty segment after a final newline.
func splitLines(data []byte) []string {
	if len(data) == 0 {
		return nil
	}

	n := bytes.Count(data, []byte{'\n'})
	lines := make([]string, 0, n+1)

	text := string(data)
	for len(text) > 0 {
		i := strings.IndexByte(text, '\n')
		var line string
		if i < 0 {
			line, text = text, ""
		} else {
			line, text = text[:i], text[i+1:]
		}
		lines = append(lines, strings.TrimSuffix(line, "\r"))
	}
	return lines
}
