package index

import (
	"slices"
	"sort"
)

type linear struct {
	lines []string
}

func newLinear(lines []string) *linear { return &linear{lines: lines} }

func (l *linear) Mode() Mode { return ModeLinear }
func (l *linear) Len() int   { return len(l.lines) }

func (l *linear) Contains(target string) bool {
	for _, line := range l.lines {
		if line == target {
			return true
		}
	}
	return false
}

type hashSet struct {
	set map[string]struct{}
	n   int
}

func newHashSet(lines []string) *hashSet {
	set := make(map[string]struct{}, len(lines))
	for _, line := range lines {
		set[line] = struct{}{}
	}
	return &hashSet{set: set, n: len(lines)}
}

func (h *hashSet) Mode() Mode { return ModeHashSet }
func (h *hashSet) Len() int   { return h.n }

func (h *hashSet) Contains(target string) bool {
	_, ok := h.set[target]
	return ok
}

type hashMap struct {
	m map[string]bool
	n int
}

func newHashMap(lines []string) *hashMap {
	m := make(map[string]bool, len(lines))
	for _, line := range lines {
		m[line] = true
	}
	return &hashMap{m: m, n: len(lines)}
}

func (h *hashMap) Mode() Mode { return ModeHashMap }
func (h *hashMap) Len() int   { return h.n }

func (h *hashMap) Contains(target string) bool {
	return h.m[target]
}

// enumeratedMap keys lines by position and searches the values.
type enumeratedMap struct {
	m map[int]string
}

func newEnumeratedMap(lines []string) *enumeratedMap {
	m := make(map[int]string, len(lines))
	for i, line := range lines {
		m[i] = line
	}
	return &enumeratedMap{m: m}
}

func (e *enumeratedMap) Mode() Mode { return ModeEnumeratedMap }
func (e *enumeratedMap) Len() int   { return len(e.m) }

func (e *enumeratedMap) Contains(target string) bool {
	for _, line := range e.m {
		if line == target {
			return true
		}
	}
	return false
}

// sortedArray holds a sorted copy; Go string comparison is byte order.
type sortedArray struct {
	sorted []string
}

func newSortedArray(lines []string) *sortedArray {
	sorted := slices.Clone(lines)
	slices.Sort(sorted)
	return &sortedArray{sorted: sorted}
}

func (s *sortedArray) Mode() Mode { return ModeSortedArray }
func (s *sortedArray) Len() int   { return len(s.sorted) }

func (s *sortedArray) Contains(target string) bool {
	i := sort.SearchStrings(s.sorted, target)
	return i < len(s.sorted) && s.sorted[i] == target
}
